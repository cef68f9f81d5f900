package bgtask

import (
	"github.com/stleox/spanflow/pkg/config"
	"github.com/stleox/spanflow/pkg/tracer"
	"github.com/zeromicro/go-zero/core/executors"
)

// Flusher 是挂在消费者上的 olap sink：记录先攒批，
// 到量或到时由 executor 统一落库，摊薄插入开销。
type Flusher struct {
	executor *executors.PeriodicalExecutor
	tasker   *flushTasker
}

func NewFlusher(olap *tracer.Olap) *Flusher {
	tasker := &flushTasker{
		olap: olap,
	}
	return &Flusher{
		executor: executors.NewPeriodicalExecutor(config.FlushInterval, tasker),
		tasker:   tasker,
	}
}

// Emit implements tracer.Sink.
func (f *Flusher) Emit(fr *tracer.FullRecord) {
	f.executor.Add(fr)
}

// Flush 把已攒的记录立即落库，关停前调用。
func (f *Flusher) Flush() {
	f.executor.Flush()
	f.tasker.olap.Flush()
}

type flushTasker struct {
	olap  *tracer.Olap
	tasks []*tracer.FullRecord
}

// AddTask 在 executor 的锁内调用，到量返回 true 触发立刻落库。
func (ft *flushTasker) AddTask(task any) bool {
	ft.tasks = append(ft.tasks, task.(*tracer.FullRecord))
	return len(ft.tasks) >= config.BatchRecord
}

func (ft *flushTasker) RemoveAll() any {
	tasks := ft.tasks
	ft.tasks = nil
	return tasks
}

func (ft *flushTasker) Execute(tasks any) {
	for _, fr := range tasks.([]*tracer.FullRecord) {
		switch fr.Kind {
		case tracer.KindSpanEnd:
			ft.olap.InsertSpan(fr)
		case tracer.KindEvent:
			ft.olap.InsertEvent(fr)
		}
	}
	ft.olap.Flush()
}
