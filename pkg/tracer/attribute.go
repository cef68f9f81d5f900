package tracer

import (
	"math"

	"go.opentelemetry.io/otel/attribute"
)

type ValueKind uint8

const (
	ValueBool ValueKind = iota
	ValueInt64
	ValueFloat64
	ValueString
)

// AttributeValue 是四选一的标量值。Bits 按 Kind 解释：
// bool 存 0/1，int64 存补码位，float64 存 IEEE-754 位，
// string 存 interner 的 id。零值是 bool false。
type AttributeValue struct {
	Kind ValueKind
	Bits uint64
}

func (v AttributeValue) Bool() bool       { return v.Bits != 0 }
func (v AttributeValue) Int64() int64     { return int64(v.Bits) }
func (v AttributeValue) Float64() float64 { return math.Float64frombits(v.Bits) }
func (v AttributeValue) StringID() uint64 { return v.Bits }

// Attribute 的 Key 是属性键经 interner 得到的 id。
type Attribute struct {
	Key   uint64
	Value AttributeValue
}

// convertValue 把 otel 的标量值转成内联表示。
// 切片类型不在协议内，返回 false 由调用方拒绝。
func (t *Tracer) convertValue(v attribute.Value) (AttributeValue, bool) {
	switch v.Type() {
	case attribute.BOOL:
		bits := uint64(0)
		if v.AsBool() {
			bits = 1
		}
		return AttributeValue{Kind: ValueBool, Bits: bits}, true
	case attribute.INT64:
		return AttributeValue{Kind: ValueInt64, Bits: uint64(v.AsInt64())}, true
	case attribute.FLOAT64:
		return AttributeValue{Kind: ValueFloat64, Bits: math.Float64bits(v.AsFloat64())}, true
	case attribute.STRING:
		return AttributeValue{Kind: ValueString, Bits: t.strings.Intern(v.AsString())}, true
	default:
		return AttributeValue{}, false
	}
}
