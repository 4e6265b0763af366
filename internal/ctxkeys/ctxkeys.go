package ctxkeys

import "context"

// TraceIDKey 上下文中的追踪ID键
type TraceIDKey struct{}

// WithTraceID 返回携带追踪ID的上下文
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, TraceIDKey{}, id)
}

// TraceID 读取上下文中的追踪ID，不存在时返回空串
func TraceID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(TraceIDKey{}).(string)
	return id
}
