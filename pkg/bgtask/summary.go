package bgtask

import (
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
	"github.com/stleox/spanflow/pkg/config"
)

type SummaryTask struct {
	m *BgTaskManager
}

func (m *BgTaskManager) addSummaryTask() {
	m.bgTasks = append(m.bgTasks, &SummaryTask{m: m})
}

// 打一条吞吐摘要
func (t *SummaryTask) Run() {
	stats := t.m.tracer.Stats()
	logrus.Debugf("spanflow emitted=%d dropped=%d consumed=%d queued=%d",
		stats.Emitted, stats.Dropped, stats.Consumed, stats.Queued)
}

func (t *SummaryTask) Start() {
	c := cron.New()
	_, err := c.AddJob("@every "+config.SummaryInterval.String(), t)
	if err != nil {
		logrus.Warn("spanflow couldn't add summary task")
		return
	}
	c.Start()
}
