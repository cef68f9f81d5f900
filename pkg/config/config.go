package config

import (
	"time"
)

const (
	// Resolve 未命中时的占位名
	NameUnknown = "???"
)

// for root
var (
	Debug = false
)

// for pkg tracer
var (
	// 环形队列的默认容量，会向上取整为 2 的幂
	DefaultRingCapacity = 8192

	// 队列为空时消费者的退避时长
	PollInterval = time.Millisecond

	// 消费者 live-span 表的容量上限。
	// 超过上限说明有 span 泄漏（只 Start 不 End），按 LRU 淘汰。
	MaxNumLiveSpan = 4096
)

// for pkg bgtask
var (
	// 打印吞吐摘要的时间间隔
	SummaryInterval = time.Second

	// 触发 olap Flush 的时间间隔
	FlushInterval = time.Second

	// 插入 olap 的记录攒批数量
	BatchRecord = 50
)

// for DB
var (
	// 测试账号
	SPANFLOW_DEFAULT_DSN = "root:@tcp(127.0.0.1:9030)/spanflow"

	// DATETIME(6) 的布局
	FormatDate6 = "2006-01-02 15:04:05.000000"
)
