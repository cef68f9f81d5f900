package tracer

import (
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"
)

// Sink 接收消费者组装好的记录。Emit 在消费者线程上调用，
// 实现里不得回调生产者 API。
type Sink interface {
	Emit(fr *FullRecord)
}

// LogSink 把记录写进 logrus 全局 logger（默认输出到 stderr），是最小可用的 sink。
type LogSink struct{}

func (LogSink) Emit(fr *FullRecord) {
	fields := logrus.Fields{
		"trace_id": uint64(fr.TraceID),
		"span_id":  uint64(fr.SpanID),
	}
	if fr.ParentID != InvalidID {
		fields["parent_id"] = uint64(fr.ParentID)
	}
	if fr.CauseID != InvalidID {
		fields["cause_id"] = uint64(fr.CauseID)
		fields["cause_implicit"] = fr.CauseImplicit
	}
	for k, v := range fr.Attrs {
		fields["attr."+k] = v
	}

	switch fr.Kind {
	case KindSpanEnd:
		fields["duration"] = fr.Duration().String()
		logrus.WithFields(fields).Infof("span %q finished", fr.Name)
	case KindEvent:
		for i, scope := range fr.Scope {
			fields["scope."+strconv.Itoa(i)] = scope.Name
		}
		logrus.WithFields(fields).Infof("event %q", fr.Name)
	default:
		logrus.WithFields(fields).Infof("record %q", fr.Name)
	}
}

// InitLogSink 挂上 logrus 日志 sink。
func (t *Tracer) InitLogSink() {
	t.AddSink(LogSink{})
}

// CaptureSink 把记录攒在内存里，给测试断言用。
type CaptureSink struct {
	mu      sync.Mutex
	records []*FullRecord
}

func NewCaptureSink() *CaptureSink {
	return &CaptureSink{}
}

func (cs *CaptureSink) Emit(fr *FullRecord) {
	cs.mu.Lock()
	cs.records = append(cs.records, fr)
	cs.mu.Unlock()
}

// Records 返回当前已捕获记录的快照。
func (cs *CaptureSink) Records() []*FullRecord {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	out := make([]*FullRecord, len(cs.records))
	copy(out, cs.records)
	return out
}

// Find 返回第一条指定名字的记录，没有则返回 nil。
func (cs *CaptureSink) Find(name string) *FullRecord {
	cs.mu.Lock()
	defer cs.mu.Unlock()
	for _, fr := range cs.records {
		if fr.Name == name {
			return fr
		}
	}
	return nil
}
