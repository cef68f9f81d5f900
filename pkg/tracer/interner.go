package tracer

import (
	"sync"

	"github.com/stleox/spanflow/pkg/config"
)

// FNV-1a 64 位参数。哈希即 id，生产者和消费者共用，不可变更。
const (
	fnvOffsetBasis = 0xcbf29ce484222325
	fnvPrime       = 0x100000001b3
)

func fnv1a(s string) uint64 {
	h := uint64(fnvOffsetBasis)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime
	}
	return h
}

// Interner 维护 hash -> string 的共享映射，用于把名字和字符串属性
// 压缩成 64 位 id。哈希冲突按先到先得处理。
type Interner struct {
	mu sync.Mutex
	m  map[uint64]string
}

func NewInterner() *Interner {
	return &Interner{
		// id 0 预留给空串
		m: map[uint64]string{0: ""},
	}
}

// Intern 返回 s 的 id，首次出现时复制进映射。幂等。
func (in *Interner) Intern(s string) uint64 {
	h := fnv1a(s)
	in.mu.Lock()
	if _, ok := in.m[h]; !ok {
		in.m[h] = s
	}
	in.mu.Unlock()
	return h
}

// Resolve 返回 id 对应的字符串，未知 id 返回占位名。
func (in *Interner) Resolve(id uint64) string {
	in.mu.Lock()
	defer in.mu.Unlock()
	if s, ok := in.m[id]; ok {
		return s
	}
	return config.NameUnknown
}

// Len 返回已驻留的字符串数，仅用于观测。
func (in *Interner) Len() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.m)
}
