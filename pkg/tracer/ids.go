package tracer

import "sync/atomic"

// idAllocator 产生严格递增的 64 位 id，首个值为 1。
// 进程内速率下不考虑回绕。
type idAllocator struct {
	last atomic.Uint64
}

func (a *idAllocator) next() Id {
	return Id(a.last.Add(1))
}
