package session

import (
	"context"
	"sync"

	"xhrsaver/internal/bridge"
	"xhrsaver/internal/bus"
	cdpmgr "xhrsaver/internal/cdp"
	"xhrsaver/internal/handler"
	"xhrsaver/pkg/model"
)

const defaultEventCapacity = 256

// attachment 单个目标上的 Bridge 运行状态
type attachment struct {
	bridge *bridge.Bridge
	cancel context.CancelFunc
	done   chan struct{}
}

// Session 一次浏览器监听会话：页面消息总线、事件通道和各目标的 Bridge
type Session struct {
	ID     model.SessionID
	Config model.SessionConfig

	Window  *bus.Window
	Events  chan model.Event
	Handler *handler.Handler
	Manager *cdpmgr.Manager

	mu          sync.Mutex
	attachments map[model.TargetID]*attachment
	ctx         context.Context
	cancel      context.CancelFunc
}

// New 创建会话
func New(id model.SessionID, cfg model.SessionConfig) *Session {
	if cfg.EventCapacity <= 0 {
		cfg.EventCapacity = defaultEventCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		ID:          id,
		Config:      cfg,
		Window:      bus.NewWindow(),
		Events:      make(chan model.Event, cfg.EventCapacity),
		attachments: make(map[model.TargetID]*attachment),
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Context 会话生命周期
func (s *Session) Context() context.Context { return s.ctx }

// AddBridge 启动目标的 Bridge，已存在时返回 false
func (s *Session) AddBridge(target model.TargetID, b *bridge.Bridge) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.attachments[target]; ok {
		return false
	}
	ctx, cancel := context.WithCancel(s.ctx)
	a := &attachment{bridge: b, cancel: cancel, done: make(chan struct{})}
	s.attachments[target] = a
	go func() {
		defer close(a.done)
		_ = b.Run(ctx)
	}()
	return true
}

// RemoveBridge 停止目标的 Bridge
func (s *Session) RemoveBridge(target model.TargetID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.attachments[target]
	if !ok {
		return false
	}
	a.cancel()
	delete(s.attachments, target)
	return true
}

// Targets 返回已挂载 Bridge 的目标
func (s *Session) Targets() []model.TargetID {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.TargetID, 0, len(s.attachments))
	for id := range s.attachments {
		out = append(out, id)
	}
	return out
}

// Close 停止所有 Bridge，等待其退出后关闭页面消息总线
func (s *Session) Close() {
	s.cancel()
	s.mu.Lock()
	attachments := s.attachments
	s.attachments = make(map[model.TargetID]*attachment)
	s.mu.Unlock()
	for _, a := range attachments {
		<-a.done
	}
	s.Window.Close()
	if s.Manager != nil {
		s.Manager.Close()
	}
}
