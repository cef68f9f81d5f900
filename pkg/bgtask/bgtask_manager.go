package bgtask

import (
	"github.com/stleox/spanflow/pkg/tracer"
)

// BgTaskManager manages background periodical tasks.
// Includes:
// - Log a throughput summary
// The olap Flusher is not one of these tasks: it is attached to the
// tracer as a sink and flushed by its owner.
type BgTaskManager struct {
	bgTasks []BgTask
	tracer  *tracer.Tracer
}

type BgTask interface {
	Start()
}

func NewBgTaskManager(t *tracer.Tracer) *BgTaskManager {
	m := &BgTaskManager{
		bgTasks: make([]BgTask, 0),
		tracer:  t,
	}
	m.addSummaryTask()
	return m
}

func (m *BgTaskManager) StartAll() {
	for _, task := range m.bgTasks {
		task.Start()
	}
}
