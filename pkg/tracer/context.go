package tracer

import "context"

// SpanContext 是当前活跃 span 的 (trace id, span id) 对。
// 新建 span 的隐式 parent 从这里取，trace id 也从这里继承，
// 所以 context 必须携带完整的对，只带 span id 不够。
type SpanContext struct {
	TraceID Id
	SpanID  Id
}

func (sc SpanContext) Valid() bool {
	return sc.SpanID != InvalidID
}

type spanContextKey struct{}

// ContextWithSpan 返回携带 sc 的子 context。
func ContextWithSpan(ctx context.Context, sc SpanContext) context.Context {
	return context.WithValue(ctx, spanContextKey{}, sc)
}

// SpanFromContext 返回 ctx 携带的当前 span，没有则返回零值。
// 新 goroutine 拿到的裸 context 天然是 "无当前 span"。
func SpanFromContext(ctx context.Context) SpanContext {
	if ctx == nil {
		return SpanContext{}
	}
	if sc, ok := ctx.Value(spanContextKey{}).(SpanContext); ok {
		return sc
	}
	return SpanContext{}
}
