package interceptor

import (
	"context"

	ilog "xhrsaver/internal/logger"
	"xhrsaver/internal/protocol"
	"xhrsaver/internal/rules"
	"xhrsaver/pkg/model"
	"xhrsaver/pkg/traffic"

	"github.com/tidwall/gjson"
)

// Poster 页面消息出口
type Poster interface {
	Post(ctx context.Context, msg model.PageMessage) error
}

// Page 拦截器所在页面：消息来源标识和消息出口
type Page struct {
	Source model.TargetID
	Window Poster
}

// Interceptor 观察目标请求并把合法 JSON 响应投递到页面消息通道
type Interceptor struct {
	engine *rules.Engine
	page   Page
	log    ilog.Logger
}

// Install 解析注入的配置属性并创建拦截器；配置缺失或非法时返回错误，调用方应保持原始请求通道不变
func Install(attr string, page Page, l ilog.Logger) (*Interceptor, error) {
	if l == nil {
		l = ilog.NewNop()
	}
	l = l.With("component", "interceptor", "source", string(page.Source))

	cfg, err := protocol.DecodeInterceptConfig(attr)
	if err != nil {
		l.Err(err, "解析注入配置失败，拦截未启用")
		return nil, err
	}
	l.Info("拦截器已注入", "targetURL", cfg.TargetURL, "targetMethod", cfg.TargetMethod)
	return &Interceptor{engine: rules.New(cfg), page: page, log: l}, nil
}

// Config 返回拦截配置
func (ic *Interceptor) Config() model.InterceptConfig { return ic.engine.Config() }

// Engine 返回匹配引擎
func (ic *Interceptor) Engine() *rules.Engine { return ic.engine }

// Matches 判断请求是否为目标请求
func (ic *Interceptor) Matches(method, url string) bool {
	return ic != nil && ic.engine.Match(method, url)
}

// Observe 处理一次已完成的请求；非目标请求或非 JSON 响应不会产生消息
func (ic *Interceptor) Observe(ctx context.Context, ex traffic.Exchange) bool {
	if ic == nil || ex.Request == nil || ex.Response == nil {
		return false
	}
	if !ic.Matches(ex.Request.Method, ex.Request.URL) {
		return false
	}
	ic.log.Debug("命中目标请求", "method", ex.Request.Method, "url", ex.Request.URL)
	return ic.Relay(ctx, model.CapturedExchange{
		ResponseBody: string(ex.Response.Body),
		RequestBody:  ex.Request.PostBody(),
	})
}

// Relay 校验响应体为 JSON 后发送 FROM_PAGE_SCRIPT 消息
func (ic *Interceptor) Relay(ctx context.Context, ce model.CapturedExchange) bool {
	if !gjson.Valid(ce.ResponseBody) {
		ic.log.Warn("响应不是合法 JSON，不会保存", "size", len(ce.ResponseBody))
		return false
	}
	msg := model.PageMessage{
		Type:     model.PageMessageType,
		Source:   ic.page.Source,
		Data:     ce.ResponseBody,
		PostBody: ce.RequestBody,
	}
	if err := ic.page.Window.Post(ctx, msg); err != nil {
		ic.log.Err(err, "投递页面消息失败")
		return false
	}
	ic.log.Info("已投递 JSON 响应", "size", len(ce.ResponseBody), "hasPostBody", ce.RequestBody != nil)
	return true
}
