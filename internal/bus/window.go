package bus

import (
	"context"
	"errors"
	"sync"

	"xhrsaver/pkg/model"
)

// ErrClosed 总线已关闭
var ErrClosed = errors.New("bus closed")

const defaultListenerBuffer = 64

type listener struct {
	ch   chan model.PageMessage
	done chan struct{}
}

// Window 页面消息总线，对应 window.postMessage：每条消息投递给所有监听者，并携带来源
type Window struct {
	mu        sync.RWMutex
	listeners map[int]*listener
	nextID    int
	closed    bool
}

// NewWindow 创建页面消息总线
func NewWindow() *Window {
	return &Window{listeners: make(map[int]*listener)}
}

// Listen 订阅消息，返回的函数用于取消订阅；取消后通道不再收到消息
func (w *Window) Listen() (<-chan model.PageMessage, func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	l := &listener{ch: make(chan model.PageMessage, defaultListenerBuffer), done: make(chan struct{})}
	if w.closed {
		close(l.done)
		return l.ch, func() {}
	}
	id := w.nextID
	w.nextID++
	w.listeners[id] = l

	// done 由仍持有该订阅的一方关闭：取消订阅或 Close，只会发生一次
	return l.ch, func() {
		w.mu.Lock()
		defer w.mu.Unlock()
		if _, ok := w.listeners[id]; ok {
			delete(w.listeners, id)
			close(l.done)
		}
	}
}

// Post 将消息投递给当前所有监听者，监听者缓冲满时阻塞直到其取消订阅或 ctx 结束
func (w *Window) Post(ctx context.Context, msg model.PageMessage) error {
	w.mu.RLock()
	if w.closed {
		w.mu.RUnlock()
		return ErrClosed
	}
	targets := make([]*listener, 0, len(w.listeners))
	for _, l := range w.listeners {
		targets = append(targets, l)
	}
	w.mu.RUnlock()

	for _, l := range targets {
		select {
		case l.ch <- msg:
		case <-l.done:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close 关闭总线并取消所有订阅
func (w *Window) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	for id, l := range w.listeners {
		close(l.done)
		delete(w.listeners, id)
	}
}
