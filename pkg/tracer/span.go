package tracer

import (
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
)

// Span 是 StartSpan 返回的句柄。End 幂等，重复调用是空操作。
type Span struct {
	tracer  *Tracer
	traceID Id
	spanID  Id
	parent  Id
	ended   atomic.Bool
}

func (s *Span) ID() Id {
	if s == nil {
		return InvalidID
	}
	return s.spanID
}

func (s *Span) TraceID() Id {
	if s == nil {
		return InvalidID
	}
	return s.traceID
}

// End 发出 SpanEnd 记录。第二次调用起为空操作。
func (s *Span) End() {
	if s == nil || s.tracer == nil {
		return
	}
	if s.ended.Swap(true) {
		return
	}
	s.tracer.emitSpanEnd(s)
}

// startOptions 收集变长参数：属性和至多一条因果边。
type startOptions struct {
	cause     Id
	hasCause  bool
	parent    SpanContext
	hasParent bool
	attrs     []attribute.KeyValue
}

type StartOption func(*startOptions)

// CausedBy 建立到某个已存在实体的显式因果边。
// 传入多个时只有第一个生效，后续忽略。
func CausedBy(id Id) StartOption {
	return func(o *startOptions) {
		if o.hasCause {
			return
		}
		o.cause = id
		o.hasCause = true
	}
}

// WithAttributes 追加属性，超过 MaxAttributes 的部分被静默截断。
func WithAttributes(kvs ...attribute.KeyValue) StartOption {
	return func(o *startOptions) {
		o.attrs = append(o.attrs, kvs...)
	}
}

// WithParent 显式指定 parent，覆盖 context 里的隐式 parent。
func WithParent(sc SpanContext) StartOption {
	return func(o *startOptions) {
		o.parent = sc
		o.hasParent = true
	}
}

func applyStartOptions(opts []StartOption) startOptions {
	var o startOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
