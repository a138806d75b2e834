package service

import "context"

type requestIDKey struct{}

// WithRequestID 把请求ID放进 context，流水线日志会带上它
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func RequestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
