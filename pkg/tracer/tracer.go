package tracer

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
	"github.com/stleox/spanflow/pkg/config"
	"go.opentelemetry.io/otel/attribute"
)

// Tracer 是进程内唯一的热路径前端：分配 id、驻留字符串、打时间戳、
// 组装 Tracelet 入队。所有操作非阻塞，队列满直接丢弃记录，
// 绝不拖慢被插桩的程序。
type Tracer struct {
	ids     idAllocator
	strings *Interner
	queue   *Ring[Tracelet]

	proc *Processor

	shutdown atomic.Bool

	emitted      atomic.Uint64
	dropped      atomic.Uint64
	droppedAttrs atomic.Uint64

	// 关停时依次调用，比如 otel provider 的 Shutdown
	closers []func(context.Context) error
}

// New 构建 Tracer 并启动消费者线程。
// vp 传 nil 时取默认配置，用于测试。
func New(vp *viper.Viper) (*Tracer, error) {
	capacity := config.DefaultRingCapacity
	if vp != nil {
		if c := vp.GetInt("ring-capacity"); c > 0 {
			capacity = c
		}
	}

	queue, err := NewRing[Tracelet](capacity)
	if err != nil {
		return nil, err
	}

	t := &Tracer{
		strings: NewInterner(),
		queue:   queue,
	}
	t.proc = newProcessor(t)
	go t.proc.run()

	logrus.Debugf("spanflow tracer up, ring capacity %d", queue.Cap())
	return t, nil
}

// StartSpan 开启一个 span，返回携带它的子 context 和句柄。
// parent 取 ctx 中的当前 span（可被 WithParent 覆盖）；
// 根 span 的 trace id 是它自己的 span id，子 span 继承 parent 的
// trace id 本身，而不是 parent 的 span id。
func (t *Tracer) StartSpan(ctx context.Context, name string, opts ...StartOption) (context.Context, *Span) {
	o := applyStartOptions(opts)

	parent := SpanFromContext(ctx)
	if o.hasParent {
		parent = o.parent
	}

	spanID := t.ids.next()
	traceID := parent.TraceID
	if !parent.Valid() {
		// 根 span：trace 即自身
		traceID = spanID
	}

	s := &Span{
		tracer:  t,
		traceID: traceID,
		spanID:  spanID,
		parent:  parent.SpanID,
	}

	var attrs [MaxAttributes]Attribute
	n := t.convertAttributes(&attrs, o.attrs)

	t.emit(newTracelet(now(), traceID, spanID, parent.SpanID, o.cause,
		t.strings.Intern(name), KindSpanStart, attrs, n))

	return ContextWithSpan(ctx, SpanContext{TraceID: traceID, SpanID: spanID}), s
}

// Event 发出一条挂在当前 span 下的事件，不改动 ctx。
// 事件有自己的新 id。
func (t *Tracer) Event(ctx context.Context, name string, opts ...StartOption) {
	o := applyStartOptions(opts)

	parent := SpanFromContext(ctx)
	if o.hasParent {
		parent = o.parent
	}

	eventID := t.ids.next()

	var attrs [MaxAttributes]Attribute
	n := t.convertAttributes(&attrs, o.attrs)

	t.emit(newTracelet(now(), parent.TraceID, eventID, parent.SpanID, o.cause,
		t.strings.Intern(name), KindEvent, attrs, n))
}

func (t *Tracer) emitSpanEnd(s *Span) {
	t.emit(newTracelet(now(), s.traceID, s.spanID, InvalidID, InvalidID, 0,
		KindSpanEnd, [MaxAttributes]Attribute{}, 0))
}

// emit 入队一条组装好的记录。队列满丢弃并计数。
func (t *Tracer) emit(rec Tracelet) {
	if t.shutdown.Load() {
		return
	}
	if !t.queue.TryPush(rec) {
		t.dropped.Add(1)
		metricDropped.Inc()
		if config.Debug {
			logrus.Debugf("spanflow dropped a %s tracelet: ring full", rec.Kind)
		}
		return
	}
	t.emitted.Add(1)
	metricEmitted.Inc()
}

func (t *Tracer) convertAttributes(dst *[MaxAttributes]Attribute, kvs []attribute.KeyValue) uint8 {
	var n uint8
	for i, kv := range kvs {
		if int(n) >= MaxAttributes {
			t.droppedAttrs.Add(uint64(len(kvs) - i))
			break
		}
		av, ok := t.convertValue(kv.Value)
		if !ok {
			// 协议只认四种标量，切片属性按非法参数拒绝
			t.droppedAttrs.Add(1)
			logrus.Warnf("spanflow rejected attribute %q: unsupported kind %s", kv.Key, kv.Value.Type())
			continue
		}
		dst[n] = Attribute{Key: t.strings.Intern(string(kv.Key)), Value: av}
		n++
	}
	return n
}

// Strings 暴露 interner，消费者和 sink 用它反解名字。
func (t *Tracer) Strings() *Interner {
	return t.strings
}

// AddSink 注册一个消费侧 sink。应在业务流量进入前完成。
func (t *Tracer) AddSink(s Sink) {
	t.proc.addSink(s)
}

// Stats 给出一次吞吐快照。
type Stats struct {
	Emitted  uint64
	Dropped  uint64
	Consumed uint64
	Queued   int
}

func (t *Tracer) Stats() Stats {
	return Stats{
		Emitted:  t.emitted.Load(),
		Dropped:  t.dropped.Load(),
		Consumed: t.proc.consumed.Load(),
		Queued:   t.queue.Len(),
	}
}

// Drain 轮询等待队列清空，给演示和测试收尾用。
// 生产者仍在写入时没有意义。
func (t *Tracer) Drain(ctx context.Context) error {
	ticker := time.NewTicker(config.PollInterval)
	defer ticker.Stop()
	for {
		if t.queue.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Shutdown 置关停标志并等待消费者退出，然后依次关闭注册的 sink。
// 与 Shutdown 竞争的生产者可能仍会入队，这些记录随消费循环退出丢弃。
func (t *Tracer) Shutdown(ctx context.Context) error {
	if t.shutdown.Swap(true) {
		return nil
	}

	select {
	case <-t.proc.done:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, closer := range t.closers {
		if err := closer(ctx); err != nil {
			logrus.WithError(err).Error("spanflow couldn't close sink")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func now() uint64 {
	return uint64(time.Now().UnixNano())
}
