package tracer

import (
	"fmt"
	"sync/atomic"
)

// Ring 是多生产者/单消费者的无锁环形队列。
// head、tail 是单调递增的计数器，仅在取下标时按 mask 取模。
//
// 发布协议：生产者先 CAS 占坑（tail），写完槽位后置 ready 位；
// 消费者以 ready 位为准判断槽位是否可读，tail 本身不代表数据可见。
// 这样消费者不会读到 "已占坑未写完" 的半成品记录。
type Ring[T any] struct {
	// head 只由消费者推进
	head atomic.Uint64
	_    [7]uint64
	// tail 只由生产者 CAS 推进
	tail atomic.Uint64
	_    [7]uint64

	capacity uint64
	mask     uint64
	slots    []T
	ready    []atomic.Bool
}

// NewRing creates a ring with the requested capacity rounded up to the
// smallest power of two >= 2. A capacity of zero is rejected.
func NewRing[T any](capacity int) (*Ring[T], error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("ring capacity must be positive, got %d", capacity)
	}
	c := nextPowerOfTwo(uint64(capacity))
	return &Ring[T]{
		capacity: c,
		mask:     c - 1,
		slots:    make([]T, c),
		ready:    make([]atomic.Bool, c),
	}, nil
}

func nextPowerOfTwo(n uint64) uint64 {
	if n <= 2 {
		return 2
	}
	p := uint64(1)
	for p < n {
		p <<= 1
	}
	return p
}

// TryPush 入队一条记录。队列满返回 false，永不阻塞。
func (rb *Ring[T]) TryPush(v T) bool {
	var slot uint64
	for {
		tail := rb.tail.Load()
		head := rb.head.Load()
		// 满判断用模算术：tail、head 不回绕
		if tail-head >= rb.capacity {
			return false
		}
		// CAS 只是占坑，数据可见性由 ready 位保证
		if rb.tail.CompareAndSwap(tail, tail+1) {
			slot = tail & rb.mask
			break
		}
	}
	rb.slots[slot] = v
	// 唯一的发布点
	rb.ready[slot].Store(true)
	return true
}

// TryPop 出队一条记录到 out。队列空、或队首槽位已被占坑但尚未发布时
// 返回 false。只允许单个消费者调用。
func (rb *Ring[T]) TryPop(out *T) bool {
	head := rb.head.Load()
	if head == rb.tail.Load() {
		return false
	}
	slot := head & rb.mask
	if !rb.ready[slot].Load() {
		return false
	}
	*out = rb.slots[slot]
	// 清槽，避免消费者侧残留引用
	var zero T
	rb.slots[slot] = zero
	rb.ready[slot].Store(false)
	rb.head.Store(head + 1)
	return true
}

// Len 返回当前占用的槽位数，仅用于观测。
func (rb *Ring[T]) Len() int {
	tail := rb.tail.Load()
	head := rb.head.Load()
	if tail < head {
		return 0
	}
	n := tail - head
	if n > rb.capacity {
		n = rb.capacity
	}
	return int(n)
}

// Cap 返回取整后的实际容量。
func (rb *Ring[T]) Cap() int {
	return int(rb.capacity)
}
