package cdp

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"xhrsaver/internal/handler"
	"xhrsaver/internal/logger"
	"xhrsaver/pkg/model"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/devtool"
	"github.com/mafredri/cdp/protocol/fetch"
	"github.com/mafredri/cdp/rpcc"
)

var (
	ErrNoTarget       = errors.New("no target")
	ErrNotAttached    = errors.New("target not attached")
	ErrNoInterceptor  = errors.New("no interceptor registered for target")
	ErrNoTargetsReady = errors.New("no attached targets")
)

// targetSession 单个目标的连接与事件消费状态
type targetSession struct {
	id     model.TargetID
	conn   *rpcc.Conn
	client *cdp.Client
	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	stream fetch.RequestPausedClient
}

// Manager 管理浏览器目标连接，并把 Fetch 暂停事件交给 handler
type Manager struct {
	devtoolsURL string
	handler     *handler.Handler
	log         logger.Logger

	targetsMu sync.Mutex
	targets   map[model.TargetID]*targetSession
	enabled   atomic.Bool
}

// New 创建 CDP 管理器
func New(devtoolsURL string, h *handler.Handler, l logger.Logger) *Manager {
	if l == nil {
		l = logger.NewNop()
	}
	return &Manager{
		devtoolsURL: devtoolsURL,
		handler:     h,
		log:         l.With("component", "cdp"),
		targets:     make(map[model.TargetID]*targetSession),
	}
}

// ListTargets 列出浏览器中的页面目标
func (m *Manager) ListTargets(ctx context.Context) ([]model.TargetInfo, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	out := make([]model.TargetInfo, 0, len(targets))
	for _, t := range targets {
		if t.Type != devtool.Page {
			continue
		}
		_, attached := m.targets[model.TargetID(t.ID)]
		out = append(out, model.TargetInfo{
			ID:        model.TargetID(t.ID),
			Type:      string(t.Type),
			URL:       t.URL,
			Title:     t.Title,
			IsCurrent: attached,
		})
	}
	return out, nil
}

// AttachTarget 连接指定目标，target 为空时选择第一个页面目标
func (m *Manager) AttachTarget(ctx context.Context, target model.TargetID) (model.TargetID, error) {
	targets, err := devtool.New(m.devtoolsURL).List(ctx)
	if err != nil {
		return "", fmt.Errorf("list targets: %w", err)
	}
	var sel *devtool.Target
	for _, t := range targets {
		if target == "" && t.Type == devtool.Page {
			sel = t
			break
		}
		if target != "" && model.TargetID(t.ID) == target {
			sel = t
			break
		}
	}
	if sel == nil {
		return "", ErrNoTarget
	}
	id := model.TargetID(sel.ID)

	m.targetsMu.Lock()
	if _, ok := m.targets[id]; ok {
		m.targetsMu.Unlock()
		return id, nil
	}
	m.targetsMu.Unlock()

	conn, err := rpcc.DialContext(ctx, sel.WebSocketDebuggerURL)
	if err != nil {
		return "", fmt.Errorf("dial target %s: %w", id, err)
	}
	tctx, cancel := context.WithCancel(context.Background())
	ts := &targetSession{id: id, conn: conn, client: cdp.NewClient(conn), ctx: tctx, cancel: cancel}

	m.targetsMu.Lock()
	m.targets[id] = ts
	m.targetsMu.Unlock()
	m.log.Info("已连接目标", "target", string(id), "url", sel.URL)
	return id, nil
}

// Enabled 是否已启用拦截
func (m *Manager) Enabled() bool { return m.enabled.Load() }

// EnableTarget 在单个已连接目标上启用拦截
func (m *Manager) EnableTarget(ctx context.Context, target model.TargetID) error {
	m.targetsMu.Lock()
	ts, ok := m.targets[target]
	m.targetsMu.Unlock()
	if !ok {
		return ErrNotAttached
	}
	return m.enableTarget(ctx, ts)
}

// DetachTarget 断开指定目标
func (m *Manager) DetachTarget(target model.TargetID) error {
	m.targetsMu.Lock()
	ts, ok := m.targets[target]
	if ok {
		delete(m.targets, target)
	}
	m.targetsMu.Unlock()
	if !ok {
		return ErrNotAttached
	}
	m.log.Info("已断开目标", "target", string(target))
	return m.closeTargetSession(ts)
}

// Enable 在所有已连接目标上启用响应阶段拦截
func (m *Manager) Enable(ctx context.Context) error {
	sessions := m.snapshot()
	if len(sessions) == 0 {
		return ErrNoTargetsReady
	}
	m.enabled.Store(true)
	var errs []error
	for _, ts := range sessions {
		if err := m.enableTarget(ctx, ts); err != nil {
			errs = append(errs, fmt.Errorf("enable %s: %w", ts.id, err))
		}
	}
	return errors.Join(errs...)
}

// Disable 停止所有目标的拦截
func (m *Manager) Disable(ctx context.Context) error {
	m.enabled.Store(false)
	var errs []error
	for _, ts := range m.snapshot() {
		// 先停止暂停再关闭事件流
		if err := ts.client.Fetch.Disable(ctx); err != nil {
			errs = append(errs, fmt.Errorf("disable %s: %w", ts.id, err))
		}
		ts.stopStream()
	}
	return errors.Join(errs...)
}

// Close 断开所有目标
func (m *Manager) Close() {
	m.enabled.Store(false)
	m.targetsMu.Lock()
	sessions := m.targets
	m.targets = make(map[model.TargetID]*targetSession)
	m.targetsMu.Unlock()
	for _, ts := range sessions {
		_ = m.closeTargetSession(ts)
	}
}

func (m *Manager) snapshot() []*targetSession {
	m.targetsMu.Lock()
	defer m.targetsMu.Unlock()
	out := make([]*targetSession, 0, len(m.targets))
	for _, ts := range m.targets {
		out = append(out, ts)
	}
	return out
}

// enableTarget 以目标拦截器的 URL 片段作为 Fetch 模式，只暂停响应阶段
//
// 事件流先于 Fetch.enable 订阅；已有事件流时只更新模式，每个目标同时只有一条事件流。
func (m *Manager) enableTarget(ctx context.Context, ts *targetSession) error {
	ic := m.handler.Interceptor(ts.id)
	if ic == nil {
		return ErrNoInterceptor
	}
	pattern := ic.Engine().URLPattern()
	patterns := []fetch.RequestPattern{
		{URLPattern: &pattern, RequestStage: fetch.RequestStageResponse},
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()

	var rp fetch.RequestPausedClient
	if ts.stream == nil {
		var err error
		rp, err = ts.client.Fetch.RequestPaused(ts.ctx)
		if err != nil {
			return fmt.Errorf("subscribe request paused: %w", err)
		}
	}
	if err := ts.client.Fetch.Enable(ctx, &fetch.EnableArgs{Patterns: patterns}); err != nil {
		if rp != nil {
			_ = rp.Close()
		}
		return err
	}
	if rp != nil {
		ts.stream = rp
		go m.consume(ts, rp)
	}
	m.log.Info("已启用拦截", "target", string(ts.id), "pattern", pattern)
	return nil
}

// consume 持续接收拦截事件并逐个分发处理
func (m *Manager) consume(ts *targetSession, rp fetch.RequestPausedClient) {
	m.log.Info("开始消费拦截事件流", "target", string(ts.id))
	for {
		ev, err := rp.Recv()
		if err != nil {
			m.handleTargetStreamClosed(ts, rp, err)
			return
		}
		go m.handler.Handle(ts.ctx, ts.id, ts.client, ev)
	}
}

// handleTargetStreamClosed 处理单个目标的拦截流终止；主动停止的流不做处理
func (m *Manager) handleTargetStreamClosed(ts *targetSession, rp fetch.RequestPausedClient, err error) {
	if !ts.releaseStream(rp) || ts.ctx.Err() != nil || !m.enabled.Load() {
		m.log.Debug("停止目标事件消费", "target", string(ts.id))
		return
	}

	m.log.Warn("拦截流被中断，自动移除目标", "target", string(ts.id), "error", err)

	m.targetsMu.Lock()
	cur, ok := m.targets[ts.id]
	if ok && cur == ts {
		delete(m.targets, ts.id)
	}
	m.targetsMu.Unlock()
	if ok && cur == ts {
		_ = m.closeTargetSession(ts)
		m.handler.Emit(model.Event{Type: "detached", Target: ts.id, Error: err.Error()})
	}
}

// releaseStream rp 仍是当前事件流时将其摘下并关闭，返回 true
func (ts *targetSession) releaseStream(rp fetch.RequestPausedClient) bool {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stream != rp {
		return false
	}
	ts.stream = nil
	_ = rp.Close()
	return true
}

func (ts *targetSession) stopStream() {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if ts.stream != nil {
		_ = ts.stream.Close()
		ts.stream = nil
	}
}

func (m *Manager) closeTargetSession(ts *targetSession) error {
	ts.stopStream()
	ts.cancel()
	return ts.conn.Close()
}
