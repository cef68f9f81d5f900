package tracer

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"

	r "github.com/stretchr/testify/require"
)

func TestTracer_RootSpan(t *testing.T) {
	tr := mockNewTracer(8)

	ctx, span := tr.StartSpan(context.Background(), "root")
	r.NotEqual(t, InvalidID, span.ID())
	// 根 span 的 trace id 就是自己的 span id
	r.Equal(t, span.ID(), span.TraceID())

	sc := SpanFromContext(ctx)
	r.Equal(t, span.ID(), sc.SpanID)
	r.Equal(t, span.TraceID(), sc.TraceID)

	rec := popTracelet(t, tr)
	r.Equal(t, KindSpanStart, rec.Kind)
	r.Equal(t, span.ID(), rec.SpanID)
	r.Equal(t, span.TraceID(), rec.TraceID)
	r.Equal(t, InvalidID, rec.ParentSpanID)
	r.Equal(t, "root", tr.strings.Resolve(rec.NameHash))
}

func TestTracer_TraceIDPropagation(t *testing.T) {
	tr := mockNewTracer(8)

	ctx := context.Background()
	ctx1, root := tr.StartSpan(ctx, "a")
	ctx2, mid := tr.StartSpan(ctx1, "b")
	_, leaf := tr.StartSpan(ctx2, "c")

	// 三层都继承根的 trace id，而不是各自 parent 的 span id
	r.Equal(t, root.ID(), root.TraceID())
	r.Equal(t, root.TraceID(), mid.TraceID())
	r.Equal(t, root.TraceID(), leaf.TraceID())

	recRoot := popTracelet(t, tr)
	recMid := popTracelet(t, tr)
	recLeaf := popTracelet(t, tr)

	r.Equal(t, InvalidID, recRoot.ParentSpanID)
	r.Equal(t, root.ID(), recMid.ParentSpanID)
	r.Equal(t, mid.ID(), recLeaf.ParentSpanID)
	r.Equal(t, root.ID(), recLeaf.TraceID)
}

func TestTracer_ContextUnchangedAfterEnd(t *testing.T) {
	tr := mockNewTracer(8)

	pctx, parent := tr.StartSpan(context.Background(), "parent")
	cctx, child := tr.StartSpan(pctx, "child")

	r.Equal(t, child.ID(), SpanFromContext(cctx).SpanID)

	// End 不改动任何 context：调用方手里的 pctx 依旧指向 parent
	child.End()
	r.Equal(t, parent.ID(), SpanFromContext(pctx).SpanID)
	r.Equal(t, child.ID(), SpanFromContext(cctx).SpanID)
}

func TestTracer_EndIdempotent(t *testing.T) {
	tr := mockNewTracer(8)

	_, span := tr.StartSpan(context.Background(), "once")
	span.End()
	span.End()
	span.End()

	r.Equal(t, KindSpanStart, popTracelet(t, tr).Kind)
	rec := popTracelet(t, tr)
	r.Equal(t, KindSpanEnd, rec.Kind)
	r.Equal(t, span.ID(), rec.SpanID)

	// 后续的 End 都是空操作
	var extra Tracelet
	r.False(t, tr.queue.TryPop(&extra))
}

func TestTracer_EventFreshID(t *testing.T) {
	tr := mockNewTracer(8)

	pctx, parent := tr.StartSpan(context.Background(), "parent")
	tr.Event(pctx, "evt")

	popTracelet(t, tr) // SpanStart
	rec := popTracelet(t, tr)
	r.Equal(t, KindEvent, rec.Kind)
	r.NotEqual(t, parent.ID(), rec.SpanID)
	r.Equal(t, parent.ID(), rec.ParentSpanID)
	r.Equal(t, parent.TraceID(), rec.TraceID)

	// 事件不改动 context
	r.Equal(t, parent.ID(), SpanFromContext(pctx).SpanID)
}

func TestTracer_CausedByFirstWins(t *testing.T) {
	tr := mockNewTracer(8)

	_, span := tr.StartSpan(context.Background(), "caused",
		CausedBy(Id(100)), CausedBy(Id(200)))
	_ = span

	rec := popTracelet(t, tr)
	r.Equal(t, Id(100), rec.CauseID)
}

func TestTracer_ExplicitParent(t *testing.T) {
	tr := mockNewTracer(8)

	sc := SpanContext{TraceID: 11, SpanID: 22}
	_, span := tr.StartSpan(context.Background(), "adopted", WithParent(sc))

	r.Equal(t, Id(11), span.TraceID())
	rec := popTracelet(t, tr)
	r.Equal(t, Id(22), rec.ParentSpanID)
	r.Equal(t, Id(11), rec.TraceID)
}

func TestTracer_AttributeTruncation(t *testing.T) {
	tr := mockNewTracer(8)

	kvs := make([]attribute.KeyValue, 0, MaxAttributes+2)
	for i := 0; i < MaxAttributes+2; i++ {
		kvs = append(kvs, attribute.Int("k", i))
	}
	tr.StartSpan(context.Background(), "truncated", WithAttributes(kvs...))

	rec := popTracelet(t, tr)
	r.Equal(t, uint8(MaxAttributes), rec.AttrCount)
	r.Equal(t, uint64(2), tr.droppedAttrs.Load())
}

func TestTracer_UnsupportedAttributeRejected(t *testing.T) {
	tr := mockNewTracer(8)

	tr.StartSpan(context.Background(), "mixed", WithAttributes(
		attribute.StringSlice("bad", []string{"x", "y"}),
		attribute.Bool("ok", true),
		attribute.Float64("pi", 3.14),
	))

	rec := popTracelet(t, tr)
	r.Equal(t, uint8(2), rec.AttrCount)
	r.Equal(t, tr.strings.Intern("ok"), rec.Attrs[0].Key)
	r.Equal(t, ValueBool, rec.Attrs[0].Value.Kind)
	r.Equal(t, ValueFloat64, rec.Attrs[1].Value.Kind)
}

func TestTracer_DropOnFull(t *testing.T) {
	// 容量 2：第三条 SpanStart 被丢弃，但句柄和 context 照常返回
	tr := mockNewTracer(2)

	ctx := context.Background()
	_, s1 := tr.StartSpan(ctx, "s1")
	_, s2 := tr.StartSpan(ctx, "s2")
	ctx3, s3 := tr.StartSpan(ctx, "s3")

	r.NotNil(t, s1)
	r.NotNil(t, s2)
	r.NotEqual(t, InvalidID, s3.ID())
	r.Equal(t, s3.ID(), SpanFromContext(ctx3).SpanID)

	stats := tr.Stats()
	r.Equal(t, uint64(2), stats.Emitted)
	r.Equal(t, uint64(1), stats.Dropped)
	r.Equal(t, 2, stats.Queued)
}

func TestTracer_IDsMonotonic(t *testing.T) {
	tr := mockNewTracer(8)

	var prev Id
	for i := 0; i < 5; i++ {
		id := tr.ids.next()
		r.Greater(t, id, prev)
		prev = id
	}
	r.Equal(t, Id(1), func() Id { a := &idAllocator{}; return a.next() }())
}

// mockers

// 不启动消费者，测试直接从队列里取记录。
func mockNewTracer(capacity int) *Tracer {
	queue, err := NewRing[Tracelet](capacity)
	if err != nil {
		panic(err)
	}
	t := &Tracer{
		strings: NewInterner(),
		queue:   queue,
	}
	t.proc = newProcessor(t)
	return t
}

func popTracelet(t *testing.T, tr *Tracer) Tracelet {
	t.Helper()
	var rec Tracelet
	r.True(t, tr.queue.TryPop(&rec))
	return rec
}
