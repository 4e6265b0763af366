package protocol

import (
	"errors"
	"fmt"
	"strings"

	"xhrsaver/pkg/model"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	keyTargetURL    = "TARGET_URL"
	keyTargetMethod = "TARGET_METHOD"
)

var (
	// ErrConfigMissing 注入的配置不存在
	ErrConfigMissing = errors.New("configuration object not found")
	// ErrConfigInvalid 注入的配置无法解析
	ErrConfigInvalid = errors.New("failed to parse configuration")
)

// EncodeInterceptConfig 序列化拦截配置为注入属性字符串
func EncodeInterceptConfig(cfg model.InterceptConfig) (string, error) {
	out, err := sjson.Set("{}", keyTargetURL, cfg.TargetURL)
	if err != nil {
		return "", err
	}
	return sjson.Set(out, keyTargetMethod, cfg.TargetMethod)
}

// DecodeInterceptConfig 解析注入属性字符串
func DecodeInterceptConfig(attr string) (model.InterceptConfig, error) {
	var cfg model.InterceptConfig
	if strings.TrimSpace(attr) == "" {
		return cfg, ErrConfigMissing
	}
	if !gjson.Valid(attr) {
		return cfg, ErrConfigInvalid
	}
	root := gjson.Parse(attr)
	if !root.IsObject() {
		return cfg, ErrConfigMissing
	}

	u := root.Get(keyTargetURL)
	m := root.Get(keyTargetMethod)
	if u.Type != gjson.String || u.Str == "" {
		return cfg, fmt.Errorf("%w: %s must be a non-empty string", ErrConfigInvalid, keyTargetURL)
	}
	if m.Type != gjson.String || m.Str == "" {
		return cfg, fmt.Errorf("%w: %s must be a non-empty string", ErrConfigInvalid, keyTargetMethod)
	}
	cfg.TargetURL = u.Str
	cfg.TargetMethod = strings.ToUpper(m.Str)
	return cfg, nil
}
