package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"xhrsaver/internal/interceptor"
	ilog "xhrsaver/internal/logger"
	"xhrsaver/internal/protocol"
	"xhrsaver/pkg/model"
)

// 目标请求，固定不可配置
const (
	TargetURL    = "/atlas/v1/purchase-history/v2/details"
	TargetMethod = "POST"
)

// Window 页面消息总线
type Window interface {
	interceptor.Poster
	Listen() (<-chan model.PageMessage, func())
}

// Runtime 跨上下文消息通道
type Runtime interface {
	SendMessage(ctx context.Context, msg model.RelayMessage) (<-chan model.SaveResponse, error)
}

// Bridge 页面与后台之间的中继：注入拦截器，并把同源页面消息转发给后台
type Bridge struct {
	source   model.TargetID
	window   Window
	runtime  Runtime
	log      ilog.Logger
	onResult func(model.RelayMessage, model.SaveResponse)

	ready     chan struct{}
	readyOnce sync.Once
}

// New 创建 Bridge，source 为所在页面的标识
func New(source model.TargetID, window Window, runtime Runtime, l ilog.Logger) *Bridge {
	if l == nil {
		l = ilog.NewNop()
	}
	return &Bridge{
		source:  source,
		window:  window,
		runtime: runtime,
		log:     l.With("component", "bridge", "source", string(source)),
		ready:   make(chan struct{}),
	}
}

// OnResult 设置后台应答回调
func (b *Bridge) OnResult(fn func(model.RelayMessage, model.SaveResponse)) {
	b.onResult = fn
}

// Ready Run 完成订阅后关闭
func (b *Bridge) Ready() <-chan struct{} { return b.ready }

// Config 返回注入给拦截器的配置
func Config() model.InterceptConfig {
	return model.InterceptConfig{TargetURL: TargetURL, TargetMethod: TargetMethod}
}

// Inject 序列化配置并在页面中安装拦截器
func (b *Bridge) Inject() (*interceptor.Interceptor, error) {
	attr, err := protocol.EncodeInterceptConfig(Config())
	if err != nil {
		return nil, fmt.Errorf("encode intercept config: %w", err)
	}
	ic, err := interceptor.Install(attr, interceptor.Page{Source: b.source, Window: b.window}, b.log)
	if err != nil {
		return nil, err
	}
	b.log.Info("拦截器注入完成", "targetURL", TargetURL)
	return ic, nil
}

// Run 监听页面消息直到 ctx 结束，只转发本页面发出的 FROM_PAGE_SCRIPT 消息
func (b *Bridge) Run(ctx context.Context) error {
	msgs, unsubscribe := b.window.Listen()
	defer unsubscribe()
	b.readyOnce.Do(func() { close(b.ready) })

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			if !b.accept(msg) {
				continue
			}
			if err := b.forward(ctx, msg); err != nil {
				if errors.Is(err, context.Canceled) {
					return err
				}
				b.log.Err(err, "转发消息失败")
			}
		}
	}
}

func (b *Bridge) accept(msg model.PageMessage) bool {
	if msg.Source != b.source {
		return false
	}
	return msg.Type == model.PageMessageType
}

// forward 原样转发数据，应答异步交给回调
func (b *Bridge) forward(ctx context.Context, msg model.PageMessage) error {
	relay := model.RelayMessage{
		Action:   model.ActionSaveJSON,
		Data:     msg.Data,
		PostBody: msg.PostBody,
	}
	reply, err := b.runtime.SendMessage(ctx, relay)
	if err != nil {
		return err
	}
	b.log.Debug("已转发页面消息", "size", len(msg.Data))
	go func() {
		resp, ok := <-reply
		if !ok {
			return
		}
		b.log.Info("收到保存结果", "status", string(resp.Status), "filename", resp.Filename, "reason", resp.Reason, "error", resp.Error)
		if b.onResult != nil {
			b.onResult(relay, resp)
		}
	}()
	return nil
}
