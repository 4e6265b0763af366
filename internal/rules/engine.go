package rules

import (
	"strings"

	"xhrsaver/pkg/model"
)

// Engine 按拦截配置判断请求是否为目标请求
type Engine struct {
	cfg model.InterceptConfig
}

// New 创建匹配引擎
func New(cfg model.InterceptConfig) *Engine {
	cfg.TargetMethod = strings.ToUpper(cfg.TargetMethod)
	return &Engine{cfg: cfg}
}

// Config 返回当前配置
func (e *Engine) Config() model.InterceptConfig { return e.cfg }

// Match 方法大小写不敏感，URL 子串大小写敏感
func (e *Engine) Match(method, url string) bool {
	if e == nil || e.cfg.TargetURL == "" {
		return false
	}
	return strings.ToUpper(method) == e.cfg.TargetMethod && strings.Contains(url, e.cfg.TargetURL)
}

// URLPattern 返回 CDP Fetch.enable 使用的通配模式
func (e *Engine) URLPattern() string {
	return "*" + escapePattern(e.cfg.TargetURL) + "*"
}

// escapePattern 转义 Fetch 模式中的通配字符
func escapePattern(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}
