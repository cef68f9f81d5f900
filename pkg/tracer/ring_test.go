package tracer

import (
	"runtime"
	"sync"
	"testing"
	"time"

	r "github.com/stretchr/testify/require"
)

func TestRing_FillAndDrain(t *testing.T) {
	// 单线程灌满再排空，容量 4
	rb, err := NewRing[int](4)
	r.NoError(t, err)
	r.Equal(t, 4, rb.Cap())

	for i := 0; i < 4; i++ {
		r.True(t, rb.TryPush(i))
	}
	r.False(t, rb.TryPush(4))
	r.Equal(t, 4, rb.Len())

	var v int
	for i := 0; i < 4; i++ {
		r.True(t, rb.TryPop(&v))
		r.Equal(t, i, v)
	}
	r.False(t, rb.TryPop(&v))
	r.Equal(t, 0, rb.Len())
}

func TestRing_WrapAround(t *testing.T) {
	// 容量 2，覆盖下标回绕
	rb, err := NewRing[int](2)
	r.NoError(t, err)

	r.True(t, rb.TryPush(1))
	r.True(t, rb.TryPush(2))
	r.False(t, rb.TryPush(3))

	var v int
	r.True(t, rb.TryPop(&v))
	r.Equal(t, 1, v)

	r.True(t, rb.TryPush(3))

	r.True(t, rb.TryPop(&v))
	r.Equal(t, 2, v)
	r.True(t, rb.TryPop(&v))
	r.Equal(t, 3, v)
	r.False(t, rb.TryPop(&v))
}

func TestRing_InvalidCapacity(t *testing.T) {
	_, err := NewRing[int](0)
	r.Error(t, err)

	_, err = NewRing[int](-1)
	r.Error(t, err)

	// 1 提升为 2
	rb, err := NewRing[int](1)
	r.NoError(t, err)
	r.Equal(t, 2, rb.Cap())

	// 3 提升为 4
	rb, err = NewRing[int](3)
	r.NoError(t, err)
	r.Equal(t, 4, rb.Cap())
}

func TestRing_NextPowerOfTwo(t *testing.T) {
	tests := []struct {
		name string
		n    uint64
		want uint64
	}{
		{"zero", 0, 2},
		{"one", 1, 2},
		{"two", 2, 2},
		{"three", 3, 4},
		{"four", 4, 4},
		{"five", 5, 8},
		{"pow", 1024, 1024},
		{"pow+1", 1025, 2048},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nextPowerOfTwo(tt.n); got != tt.want {
				t.Errorf("nextPowerOfTwo(%d) = %d, want %d", tt.n, got, tt.want)
			}
		})
	}
}

func TestRing_MPSCContention(t *testing.T) {
	// 8 个生产者各写 1000 条，容量 8，验证不丢不重
	const (
		numProducers = 8
		perProducer  = 1000
		total        = numProducers * perProducer
	)

	rb, err := NewRing[int](8)
	r.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				v := p*perProducer + i
				for !rb.TryPush(v) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	seen := make(map[int]int, total)
	lastPerProducer := make([]int, numProducers)
	for p := range lastPerProducer {
		lastPerProducer[p] = -1
	}

	var v int
	for n := 0; n < total; {
		if !rb.TryPop(&v) {
			runtime.Gosched()
			continue
		}
		seen[v]++
		// 同一生产者的值必须按程序序到达
		p := v / perProducer
		r.Greater(t, v, lastPerProducer[p])
		lastPerProducer[p] = v
		n++
	}
	wg.Wait()

	r.Equal(t, total, len(seen))
	for i := 0; i < total; i++ {
		r.Equal(t, 1, seen[i])
	}
	r.False(t, rb.TryPop(&v))
}

func TestRing_SlowConsumer(t *testing.T) {
	// 生产快于消费：2 个生产者各 1000 条，容量 16，
	// 消费者每 32 条小睡一次，仍然不丢不重
	const (
		numProducers = 2
		perProducer  = 1000
		total        = numProducers * perProducer
	)

	rb, err := NewRing[int](16)
	r.NoError(t, err)

	var wg sync.WaitGroup
	for p := 0; p < numProducers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				for !rb.TryPush(p*perProducer + i) {
					runtime.Gosched()
				}
			}
		}(p)
	}

	seen := make(map[int]int, total)
	var v int
	for n := 0; n < total; {
		if !rb.TryPop(&v) {
			runtime.Gosched()
			continue
		}
		seen[v]++
		n++
		if n%32 == 0 {
			time.Sleep(10 * time.Microsecond)
		}
	}
	wg.Wait()

	r.Equal(t, total, len(seen))
	for _, count := range seen {
		r.Equal(t, 1, count)
	}
}

func TestRing_TraceletPayload(t *testing.T) {
	// 定长记录过环不会被撕裂：所有字段一起到达
	rb, err := NewRing[Tracelet](4)
	r.NoError(t, err)

	in := Tracelet{
		Timestamp: 42,
		TraceID:   7,
		SpanID:    8,
		NameHash:  fnv1a("payload"),
		Kind:      KindSpanStart,
		AttrCount: 1,
	}
	in.Attrs[0] = Attribute{Key: 3, Value: AttributeValue{Kind: ValueInt64, Bits: 99}}

	r.True(t, rb.TryPush(in))

	var out Tracelet
	r.True(t, rb.TryPop(&out))
	r.Equal(t, in, out)
}
