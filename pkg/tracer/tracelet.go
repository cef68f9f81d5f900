package tracer

// Id 是 trace 实体（trace、span、event）的统一标识。
// 只做相等比较，0 是无效值。
type Id uint64

const InvalidID Id = 0

type RecordKind uint8

const (
	KindSpanStart RecordKind = iota
	KindSpanEnd
	KindEvent
)

func (k RecordKind) String() string {
	switch k {
	case KindSpanStart:
		return "SpanStart"
	case KindSpanEnd:
		return "SpanEnd"
	case KindEvent:
		return "Event"
	default:
		return "Unknown"
	}
}

// MaxAttributes 是单条 Tracelet 内联属性的上限，超出的属性被丢弃。
const MaxAttributes = 6

// Tracelet 是入队的定长记录。值类型、无指针，生产者路径零堆分配，
// 未用的属性槽保持零值，因此同内容的记录按 == 比较恒等。
type Tracelet struct {
	Timestamp    uint64 // ns
	TraceID      Id
	SpanID       Id
	ParentSpanID Id
	CauseID      Id
	NameHash     uint64
	Kind         RecordKind
	AttrCount    uint8
	Attrs        [MaxAttributes]Attribute
}

func newTracelet(ts uint64, traceID, spanID, parent, cause Id, nameHash uint64, kind RecordKind, attrs [MaxAttributes]Attribute, attrCount uint8) Tracelet {
	if attrCount > MaxAttributes {
		attrCount = MaxAttributes
	}
	// 计数以外的槽位清零，记录内容只由有效属性决定
	for i := int(attrCount); i < MaxAttributes; i++ {
		attrs[i] = Attribute{}
	}
	return Tracelet{
		Timestamp:    ts,
		TraceID:      traceID,
		SpanID:       spanID,
		ParentSpanID: parent,
		CauseID:      cause,
		NameHash:     nameHash,
		Kind:         kind,
		AttrCount:    attrCount,
		Attrs:        attrs,
	}
}
