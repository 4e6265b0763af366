package handler

import (
	"context"
	"sync"
	"time"

	adapter "xhrsaver/internal/adapter/cdp"
	"xhrsaver/internal/interceptor"
	"xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/fetch"
)

const defaultProcessTimeoutMS = 3000

// Executor Fetch 域操作
type Executor interface {
	ContinueRequest(ctx context.Context, client *cdp.Client, ev *fetch.RequestPausedReply) error
	ContinueResponse(ctx context.Context, client *cdp.Client, ev *fetch.RequestPausedReply) error
	FetchResponseBody(ctx context.Context, client *cdp.Client, requestID fetch.RequestID) ([]byte, error)
}

// Handler 事件处理器，负责把暂停事件交给对应目标的拦截器并放行
type Handler struct {
	mu               sync.RWMutex
	interceptors     map[model.TargetID]*interceptor.Interceptor
	executor         Executor
	events           chan model.Event
	session          model.SessionID
	processTimeoutMS int
	log              logger.Logger
}

// Config 配置选项
type Config struct {
	Executor         Executor
	Events           chan model.Event
	Session          model.SessionID
	ProcessTimeoutMS int
	Logger           logger.Logger
}

// New 创建事件处理器
func New(cfg Config) *Handler {
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	return &Handler{
		interceptors:     make(map[model.TargetID]*interceptor.Interceptor),
		executor:         cfg.Executor,
		events:           cfg.Events,
		session:          cfg.Session,
		processTimeoutMS: cfg.ProcessTimeoutMS,
		log:              cfg.Logger,
	}
}

// SetProcessTimeout 设置处理超时时间
func (h *Handler) SetProcessTimeout(timeoutMS int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processTimeoutMS = timeoutMS
}

// Register 为目标注册拦截器
func (h *Handler) Register(target model.TargetID, ic *interceptor.Interceptor) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.interceptors[target] = ic
}

// Unregister 移除目标的拦截器
func (h *Handler) Unregister(target model.TargetID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.interceptors, target)
}

// Interceptor 返回目标的拦截器，未注册时为 nil
func (h *Handler) Interceptor(target model.TargetID) *interceptor.Interceptor {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.interceptors[target]
}

func (h *Handler) timeout() time.Duration {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.processTimeoutMS <= 0 {
		return defaultProcessTimeoutMS * time.Millisecond
	}
	return time.Duration(h.processTimeoutMS) * time.Millisecond
}

// Handle 处理一次暂停事件，按阶段分发
func (h *Handler) Handle(ctx context.Context, target model.TargetID, client *cdp.Client, ev *fetch.RequestPausedReply) {
	ctx, cancel := context.WithTimeout(ctx, h.timeout())
	defer cancel()

	l := h.log.With("target", string(target), "requestID", string(ev.RequestID))
	if ev.ResponseStatusCode == nil && ev.ResponseErrorReason == nil {
		h.HandleRequest(ctx, client, ev, l)
		return
	}
	h.HandleResponse(ctx, target, client, ev, l)
}

// HandleRequest 请求阶段不做处理，直接放行
func (h *Handler) HandleRequest(ctx context.Context, client *cdp.Client, ev *fetch.RequestPausedReply, l logger.Logger) {
	l.Debug("请求阶段放行", "method", ev.Request.Method, "url", ev.Request.URL)
	_ = h.executor.ContinueRequest(ctx, client, ev)
}

// HandleResponse 响应阶段：命中目标时读取响应体，原样放行后交给拦截器
func (h *Handler) HandleResponse(ctx context.Context, target model.TargetID, client *cdp.Client, ev *fetch.RequestPausedReply, l logger.Logger) {
	ic := h.Interceptor(target)
	if ev.ResponseErrorReason != nil || !ic.Matches(ev.Request.Method, ev.Request.URL) {
		_ = h.executor.ContinueResponse(ctx, client, ev)
		return
	}

	start := time.Now()
	body, err := h.executor.FetchResponseBody(ctx, client, ev.RequestID)
	// 无论读取是否成功都要放行，页面看到的响应保持不变
	_ = h.executor.ContinueResponse(ctx, client, ev)
	if err != nil {
		l.Err(err, "读取响应体失败")
		h.sendEvent(model.Event{Type: "failed", Target: target, URL: ev.Request.URL, Method: ev.Request.Method, Error: err.Error()})
		return
	}

	if !ic.Observe(ctx, adapter.ToExchange(ev, body)) {
		l.Debug("响应未转发", "duration", time.Since(start))
		return
	}
	h.sendEvent(model.Event{Type: "captured", Target: target, URL: ev.Request.URL, Method: ev.Request.Method})
	l.Debug("响应处理完成", "size", len(body), "duration", time.Since(start))
}

// Emit 发送会话事件
func (h *Handler) Emit(evt model.Event) { h.sendEvent(evt) }

// sendEvent 安全发送事件到通道，自动添加时间戳
func (h *Handler) sendEvent(evt model.Event) {
	if h.events == nil {
		return
	}
	evt.Session = h.session
	evt.Timestamp = time.Now().UnixMilli()
	select {
	case h.events <- evt:
	default:
	}
}
