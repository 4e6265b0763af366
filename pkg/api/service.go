package api

import (
	"context"
	"net/http"

	"xhrsaver/internal/logger"
	"xhrsaver/internal/saver"
	"xhrsaver/internal/service"
	"xhrsaver/pkg/model"
)

// Service 服务接口
type Service interface {
	// StartSession 启动会话
	StartSession(cfg model.SessionConfig) (model.SessionID, error)

	// StopSession 停止会话
	StopSession(id model.SessionID) error

	// ListTargets 列出目标
	ListTargets(ctx context.Context, id model.SessionID) ([]model.TargetInfo, error)

	// AttachTarget 附加浏览器目标，target 为空时选择第一个页面
	AttachTarget(ctx context.Context, id model.SessionID, target model.TargetID) (model.TargetID, error)

	// AttachClient 为 HTTP 客户端挂载拦截器
	AttachClient(id model.SessionID, source model.TargetID, base *http.Client) (*http.Client, error)

	// DetachTarget 分离目标
	DetachTarget(id model.SessionID, target model.TargetID) error

	// EnableInterception 启用拦截
	EnableInterception(ctx context.Context, id model.SessionID) error

	// DisableInterception 禁用拦截
	DisableInterception(ctx context.Context, id model.SessionID) error

	// SubscribeEvents 订阅事件
	SubscribeEvents(id model.SessionID) (<-chan model.Event, error)

	// Close 释放所有会话
	Close()
}

// NewService 创建并返回服务接口实现，downloads 负责查重与写文件
func NewService(l logger.Logger, downloads saver.Downloads) Service {
	return service.New(l, downloads)
}
