package executor

import (
	"context"
	"fmt"

	ilog "xhrsaver/internal/logger"
	"xhrsaver/internal/protocol"

	"github.com/mafredri/cdp"
	"github.com/mafredri/cdp/protocol/fetch"
)

// Executor 在 CDP 连接上执行 Fetch 域操作
type Executor struct {
	log ilog.Logger
}

// New 创建执行器
func New(l ilog.Logger) *Executor {
	if l == nil {
		l = ilog.NewNop()
	}
	return &Executor{log: l.With("component", "executor")}
}

// ContinueRequest 原样放行请求阶段的暂停
func (e *Executor) ContinueRequest(ctx context.Context, client *cdp.Client, ev *fetch.RequestPausedReply) error {
	if err := client.Fetch.ContinueRequest(ctx, &fetch.ContinueRequestArgs{RequestID: ev.RequestID}); err != nil {
		e.log.Err(err, "放行请求失败", "requestID", ev.RequestID)
		return err
	}
	return nil
}

// ContinueResponse 原样放行响应阶段的暂停，页面收到的响应不变
func (e *Executor) ContinueResponse(ctx context.Context, client *cdp.Client, ev *fetch.RequestPausedReply) error {
	if err := client.Fetch.ContinueResponse(ctx, &fetch.ContinueResponseArgs{RequestID: ev.RequestID}); err != nil {
		e.log.Err(err, "放行响应失败", "requestID", ev.RequestID)
		return err
	}
	return nil
}

// FetchResponseBody 读取暂停响应的完整响应体
func (e *Executor) FetchResponseBody(ctx context.Context, client *cdp.Client, requestID fetch.RequestID) ([]byte, error) {
	reply, err := client.Fetch.GetResponseBody(ctx, fetch.NewGetResponseBodyArgs(requestID))
	if err != nil {
		return nil, fmt.Errorf("get response body: %w", err)
	}
	body, err := protocol.DecodeBody(reply.Body, reply.Base64Encoded)
	if err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return body, nil
}
