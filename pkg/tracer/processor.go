package tracer

import (
	"sync"
	"sync/atomic"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"
	"github.com/stleox/spanflow/pkg/config"
)

// liveSpan 是消费者本地的活跃 span 表项，SpanStart 建、SpanEnd 删。
// 只有消费者线程访问，不需要同步。
type liveSpan struct {
	nameHash uint64
	parent   Id
	cause    Id
	start    uint64
	attrs    []Attribute
}

// Processor 是唯一的消费者：循环出队、维护活跃 span 表、
// 解析隐式因果、组装 FullRecord 并分发给各 sink。
type Processor struct {
	tracer *Tracer

	// span_id -> liveSpan。上限 config.MaxNumLiveSpan，
	// 泄漏的 span 按 LRU 淘汰，同 TracerManager 缓存的老规矩。
	live *lru.Cache[Id, *liveSpan]

	muSink sync.Mutex
	sinks  []Sink

	consumed atomic.Uint64
	done     chan struct{}
}

func newProcessor(t *Tracer) *Processor {
	live, _ := lru.New[Id, *liveSpan](config.MaxNumLiveSpan)
	return &Processor{
		tracer: t,
		live:   live,
		done:   make(chan struct{}),
	}
}

func (p *Processor) addSink(s Sink) {
	p.muSink.Lock()
	p.sinks = append(p.sinks, s)
	p.muSink.Unlock()
}

func (p *Processor) emitRecord(fr *FullRecord) {
	p.muSink.Lock()
	sinks := p.sinks
	p.muSink.Unlock()
	for _, s := range sinks {
		s.Emit(fr)
	}
}

// run 是消费循环。队列空时小睡退避；关停标志置位后退出，
// 在途的记录随之丢弃。
func (p *Processor) run() {
	defer close(p.done)

	var rec Tracelet
	for {
		if p.tracer.shutdown.Load() {
			return
		}
		if !p.tracer.queue.TryPop(&rec) {
			metricQueueDepth.Set(float64(p.tracer.queue.Len()))
			time.Sleep(config.PollInterval)
			continue
		}
		p.consumed.Add(1)
		metricConsumed.Inc()
		p.dispatch(&rec)
	}
}

func (p *Processor) dispatch(rec *Tracelet) {
	switch rec.Kind {
	case KindSpanStart:
		attrs := make([]Attribute, rec.AttrCount)
		copy(attrs, rec.Attrs[:rec.AttrCount])
		if evicted := p.live.Add(rec.SpanID, &liveSpan{
			nameHash: rec.NameHash,
			parent:   rec.ParentSpanID,
			cause:    rec.CauseID,
			start:    rec.Timestamp,
			attrs:    attrs,
		}); evicted {
			logrus.Debug("spanflow evicted the oldest live span: table full")
		}

	case KindSpanEnd:
		ls, ok := p.live.Peek(rec.SpanID)
		if !ok {
			// 孤儿 SpanEnd：对应的 SpanStart 可能因队列满被丢弃，忽略
			logrus.Debugf("spanflow ignored SpanEnd for unknown span %d", rec.SpanID)
			return
		}
		p.live.Remove(rec.SpanID)
		p.emitRecord(p.assembleSpan(rec, ls))

	case KindEvent:
		p.emitRecord(p.assembleEvent(rec))

	default:
		logrus.Warnf("spanflow met unsupported record kind: %d", rec.Kind)
	}
}

// assembleSpan 在 SpanEnd 时机组装完整的 span 记录，
// 起点数据来自活跃表项。
func (p *Processor) assembleSpan(rec *Tracelet, ls *liveSpan) *FullRecord {
	in := p.tracer.strings
	return &FullRecord{
		Name:     in.Resolve(ls.nameHash),
		Kind:     KindSpanEnd,
		TraceID:  rec.TraceID,
		SpanID:   rec.SpanID,
		ParentID: ls.parent,
		CauseID:  ls.cause,
		Start:    time.Unix(0, int64(ls.start)),
		End:      time.Unix(0, int64(rec.Timestamp)),
		Attrs:    resolveAttrs(in, ls.attrs),
	}
}

// assembleEvent 解析事件的有效因果并收集祖先 span 链。
func (p *Processor) assembleEvent(rec *Tracelet) *FullRecord {
	in := p.tracer.strings

	// 无显式因果时沿 parent 链上溯，取第一个带因果的祖先。
	// 链在第一个不在活跃表里的祖先处截断（已结束或尚未观测到）。
	cause := rec.CauseID
	implicit := false
	if cause == InvalidID {
		for cur := rec.ParentSpanID; cur != InvalidID; {
			ls, ok := p.live.Peek(cur)
			if !ok {
				break
			}
			if ls.cause != InvalidID {
				cause = ls.cause
				implicit = true
				break
			}
			cur = ls.parent
		}
	}

	var scope []SpanScope
	for cur := rec.ParentSpanID; cur != InvalidID; {
		ls, ok := p.live.Peek(cur)
		if !ok {
			break
		}
		scope = append(scope, SpanScope{
			Name:  in.Resolve(ls.nameHash),
			Attrs: resolveAttrs(in, ls.attrs),
		})
		cur = ls.parent
	}

	ts := time.Unix(0, int64(rec.Timestamp))
	return &FullRecord{
		Name:          in.Resolve(rec.NameHash),
		Kind:          KindEvent,
		TraceID:       rec.TraceID,
		SpanID:        rec.SpanID,
		ParentID:      rec.ParentSpanID,
		CauseID:       cause,
		CauseImplicit: implicit,
		Start:         ts,
		End:           ts,
		Attrs:         resolveAttrs(in, rec.Attrs[:rec.AttrCount]),
		Scope:         scope,
	}
}
