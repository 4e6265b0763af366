package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"xhrsaver/internal/bridge"
	"xhrsaver/internal/bus"
	cdpmgr "xhrsaver/internal/cdp"
	"xhrsaver/internal/executor"
	"xhrsaver/internal/handler"
	"xhrsaver/internal/interceptor"
	"xhrsaver/internal/logger"
	"xhrsaver/internal/saver"
	"xhrsaver/internal/session"
	"xhrsaver/pkg/model"

	"github.com/google/uuid"
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrBridgeExists    = errors.New("target already attached")
	ErrBridgeNotReady  = errors.New("bridge did not start listening")
)

const bridgeReadyTimeout = 5 * time.Second

// svc 服务实现：会话管理 + 共享的 Runtime 通道，由 Saver 消费
type svc struct {
	sessions *session.Manager
	runtime  *bus.Runtime
	saver    *saver.Saver
	executor *executor.Executor
	log      logger.Logger
	cancel   context.CancelFunc
}

// New 创建服务实例，并在进程生命周期内由 Saver 消费 Runtime 消息
func New(l logger.Logger, downloads saver.Downloads) *svc {
	if l == nil {
		l = logger.NewNop()
	}
	l = l.With("component", "service")
	ctx, cancel := context.WithCancel(context.Background())
	s := &svc{
		sessions: session.NewManager(l),
		runtime:  bus.NewRuntime(0),
		saver:    saver.New(downloads, l),
		executor: executor.New(l),
		log:      l,
		cancel:   cancel,
	}
	go func() {
		if err := s.runtime.Serve(ctx, s.saver.HandleMessage); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Err(err, "Runtime 消费退出")
		}
	}()
	return s
}

// StartSession 创建新会话
func (s *svc) StartSession(cfg model.SessionConfig) (model.SessionID, error) {
	id := model.SessionID(uuid.NewString())
	ses := s.sessions.Create(id, cfg)
	ses.Handler = handler.New(handler.Config{
		Executor:         s.executor,
		Events:           ses.Events,
		Session:          id,
		ProcessTimeoutMS: ses.Config.ProcessTimeoutMS,
		Logger:           s.log.With("sessionID", string(id)),
	})
	ses.Manager = cdpmgr.New(ses.Config.DevToolsURL, ses.Handler, s.log.With("sessionID", string(id)))
	s.log.Info("会话已启动", "sessionID", string(id), "devtools", ses.Config.DevToolsURL)
	return id, nil
}

// StopSession 停止会话并断开所有目标
func (s *svc) StopSession(id model.SessionID) error {
	if !s.sessions.Delete(id) {
		return ErrSessionNotFound
	}
	return nil
}

// ListTargets 列出浏览器页面目标
func (s *svc) ListTargets(ctx context.Context, id model.SessionID) ([]model.TargetInfo, error) {
	ses, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return ses.Manager.ListTargets(ctx)
}

// AttachTarget 连接浏览器目标，注入拦截器并启动该页面的 Bridge
func (s *svc) AttachTarget(ctx context.Context, id model.SessionID, target model.TargetID) (model.TargetID, error) {
	ses, err := s.session(id)
	if err != nil {
		return "", err
	}
	tid, err := ses.Manager.AttachTarget(ctx, target)
	if err != nil {
		return "", err
	}
	ic, err := s.startBridge(ses, tid)
	if err != nil {
		_ = ses.Manager.DetachTarget(tid)
		return "", err
	}
	ses.Handler.Register(tid, ic)
	if ses.Manager.Enabled() {
		if err := ses.Manager.EnableTarget(ctx, tid); err != nil {
			s.log.Err(err, "目标启用拦截失败", "target", string(tid))
		}
	}
	ses.Handler.Emit(model.Event{Type: "attached", Target: tid})
	return tid, nil
}

// AttachClient 为 Go HTTP 客户端挂载拦截器，source 作为该客户端的页面标识
func (s *svc) AttachClient(id model.SessionID, source model.TargetID, base *http.Client) (*http.Client, error) {
	ses, err := s.session(id)
	if err != nil {
		return nil, err
	}
	ic, err := s.startBridge(ses, source)
	if err != nil {
		return nil, err
	}
	ses.Handler.Emit(model.Event{Type: "attached", Target: source})
	return interceptor.WrapClient(base, ic), nil
}

// DetachTarget 停止 Bridge 并断开目标
func (s *svc) DetachTarget(id model.SessionID, target model.TargetID) error {
	ses, err := s.session(id)
	if err != nil {
		return err
	}
	removed := ses.RemoveBridge(target)
	ses.Handler.Unregister(target)
	if err := ses.Manager.DetachTarget(target); err != nil && !(removed && errors.Is(err, cdpmgr.ErrNotAttached)) {
		return err
	}
	ses.Handler.Emit(model.Event{Type: "detached", Target: target})
	return nil
}

// EnableInterception 启用拦截
func (s *svc) EnableInterception(ctx context.Context, id model.SessionID) error {
	ses, err := s.session(id)
	if err != nil {
		return err
	}
	return ses.Manager.Enable(ctx)
}

// DisableInterception 禁用拦截
func (s *svc) DisableInterception(ctx context.Context, id model.SessionID) error {
	ses, err := s.session(id)
	if err != nil {
		return err
	}
	return ses.Manager.Disable(ctx)
}

// SubscribeEvents 订阅事件
func (s *svc) SubscribeEvents(id model.SessionID) (<-chan model.Event, error) {
	ses, err := s.session(id)
	if err != nil {
		return nil, err
	}
	return ses.Events, nil
}

// Close 停止所有会话和 Runtime 消费
func (s *svc) Close() {
	for _, ses := range s.sessions.List() {
		s.sessions.Delete(ses.ID)
	}
	s.runtime.Close()
	s.cancel()
}

func (s *svc) session(id model.SessionID) (*session.Session, error) {
	ses, ok := s.sessions.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return ses, nil
}

// startBridge 创建 Bridge、注入拦截器并等待其开始监听
func (s *svc) startBridge(ses *session.Session, source model.TargetID) (*interceptor.Interceptor, error) {
	b := bridge.New(source, ses.Window, s.runtime, s.log.With("sessionID", string(ses.ID)))
	ic, err := b.Inject()
	if err != nil {
		return nil, err
	}
	b.OnResult(func(_ model.RelayMessage, resp model.SaveResponse) {
		ses.Handler.Emit(model.Event{
			Type:       "saved",
			Target:     source,
			Status:     resp.Status,
			Filename:   resp.Filename,
			Error:      resp.Error,
			DownloadID: resp.DownloadID,
		})
	})
	if !ses.AddBridge(source, b) {
		return nil, ErrBridgeExists
	}

	select {
	case <-b.Ready():
		return ic, nil
	case <-time.After(bridgeReadyTimeout):
		ses.RemoveBridge(source)
		return nil, ErrBridgeNotReady
	}
}
