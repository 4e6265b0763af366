package bus

import (
	"context"
	"fmt"
	"sync"

	"xhrsaver/pkg/model"
)

// Handler 处理一条跨上下文消息，返回 nil 表示不应答
type Handler func(ctx context.Context, msg model.RelayMessage) *model.SaveResponse

type envelope struct {
	ctx   context.Context
	msg   model.RelayMessage
	reply chan model.SaveResponse
}

// Runtime 跨上下文消息通道，对应 runtime.sendMessage：单生产者单消费者，应答异步可选
type Runtime struct {
	queue     chan envelope
	done      chan struct{}
	closeOnce sync.Once
}

// NewRuntime 创建消息通道
func NewRuntime(capacity int) *Runtime {
	if capacity <= 0 {
		capacity = defaultListenerBuffer
	}
	return &Runtime{
		queue: make(chan envelope, capacity),
		done:  make(chan struct{}),
	}
}

// SendMessage 发送消息，返回的通道最多收到一个应答；处理方不应答时通道直接关闭
func (r *Runtime) SendMessage(ctx context.Context, msg model.RelayMessage) (<-chan model.SaveResponse, error) {
	env := envelope{ctx: context.WithoutCancel(ctx), msg: msg, reply: make(chan model.SaveResponse, 1)}
	select {
	case <-r.done:
		return nil, ErrClosed
	default:
	}
	select {
	case r.queue <- env:
		return env.reply, nil
	case <-r.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Serve 消费消息直到 ctx 结束或通道关闭，每条消息在独立 goroutine 中处理
func (r *Runtime) Serve(ctx context.Context, h Handler) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return nil
		case env := <-r.queue:
			wg.Add(1)
			go func() {
				defer wg.Done()
				dispatch(env, h)
			}()
		}
	}
}

// dispatch 调用处理函数，panic 时以 failed 应答
func dispatch(env envelope, h Handler) {
	defer close(env.reply)
	defer func() {
		if rec := recover(); rec != nil {
			env.reply <- model.SaveResponse{Status: model.SaveStatusFailed, Error: fmt.Sprint(rec)}
		}
	}()
	if resp := h(env.ctx, env.msg); resp != nil {
		env.reply <- *resp
	}
}

// Close 停止接收新消息
func (r *Runtime) Close() {
	r.closeOnce.Do(func() { close(r.done) })
}
