package tracer

import "time"

// SpanScope 是事件的一个祖先 span：名字加已反解的属性。
type SpanScope struct {
	Name  string
	Attrs map[string]any
}

// FullRecord 是消费者组装出的可读记录：名字和属性键都已经过
// interner 反解，值落成 bool | int64 | float64 | string。
type FullRecord struct {
	Name     string
	Kind     RecordKind
	TraceID  Id
	SpanID   Id
	ParentID Id // InvalidID 表示无
	CauseID  Id // InvalidID 表示无

	// CauseID 来自祖先链而非记录本身时为 true
	CauseImplicit bool

	// span 的起止；事件 Start == End
	Start time.Time
	End   time.Time

	Attrs map[string]any

	// 事件的祖先 span 链，从 parent 往上，事件以外为空
	Scope []SpanScope
}

func (fr *FullRecord) Duration() time.Duration {
	return fr.End.Sub(fr.Start)
}

// resolveAttrs 把内联属性反解成 key -> 值 的映射。
func resolveAttrs(in *Interner, attrs []Attribute) map[string]any {
	out := make(map[string]any, len(attrs))
	for _, a := range attrs {
		key := in.Resolve(a.Key)
		switch a.Value.Kind {
		case ValueBool:
			out[key] = a.Value.Bool()
		case ValueInt64:
			out[key] = a.Value.Int64()
		case ValueFloat64:
			out[key] = a.Value.Float64()
		case ValueString:
			out[key] = in.Resolve(a.Value.StringID())
		}
	}
	return out
}
