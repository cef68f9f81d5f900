package tracer

import (
	"context"
	"encoding/binary"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktr "go.opentelemetry.io/otel/sdk/trace"
	tr "go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func (t *Tracer) InitGRPCExporter(shutdownCtx context.Context) (func(context.Context) error, error) {
	exporter, err := otlptracegrpc.New(shutdownCtx,
		otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
	if err != nil {
		return nil, fmt.Errorf("creating gRPC exporter: %w", err)
	}

	return t.initOtelSink(
		sdktr.WithBatcher(exporter),
		sdktr.WithResource(resource.Empty())), nil
}

func (t *Tracer) InitStdoutExporter() (func(context.Context) error, error) {
	exporter, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
	if err != nil {
		return nil, fmt.Errorf("creating stdout exporter: %w", err)
	}

	return t.initOtelSink(
		sdktr.WithBatcher(exporter),
		sdktr.WithResource(resource.Empty())), nil
}

// InitDummyExporter only for testing purposes
func (t *Tracer) InitDummyExporter() (func(context.Context) error, error) {
	return t.initOtelSink(
		sdktr.WithResource(resource.NewSchemaless(attribute.Bool("debug", true)))), nil
}

func (t *Tracer) initOtelSink(opts ...sdktr.TracerProviderOption) func(context.Context) error {
	gen := &fixedIDGenerator{}
	opts = append(opts, sdktr.WithIDGenerator(gen))
	provider := sdktr.NewTracerProvider(opts...)

	t.AddSink(&OtelSink{
		tracer: provider.Tracer("spanflow"),
		gen:    gen,
	})
	t.closers = append(t.closers, provider.Shutdown)
	return provider.Shutdown
}

// OtelSink 把组装好的记录重放成 OTel span：span 带真实起止时间，
// 事件作为零时长 span。Emit 单线程调用，所以可以用 fixedIDGenerator
// 把我们的 64 位 id 原样写进导出数据，保证父子链路对得上。
type OtelSink struct {
	tracer tr.Tracer
	gen    *fixedIDGenerator
}

func (o *OtelSink) Emit(fr *FullRecord) {
	parentCtx := context.Background()
	if fr.ParentID != InvalidID {
		parentSpanCtx := tr.NewSpanContext(tr.SpanContextConfig{
			TraceID:    convertTraceID(fr.TraceID),
			SpanID:     convertSpanID(fr.ParentID),
			TraceFlags: tr.TraceFlags(0x01),
		})
		parentCtx = tr.ContextWithSpanContext(parentCtx, parentSpanCtx)
	}

	startOpts := make([]tr.SpanStartOption, 0, 3)
	startOpts = append(startOpts, tr.WithTimestamp(fr.Start))
	startOpts = append(startOpts, tr.WithAttributes(otelAttrs(fr)...))

	o.gen.stage(convertTraceID(fr.TraceID), convertSpanID(fr.SpanID))
	_, span := o.tracer.Start(parentCtx, fr.Name, startOpts...)
	span.End(tr.WithTimestamp(fr.End))
}

func otelAttrs(fr *FullRecord) []attribute.KeyValue {
	kvs := make([]attribute.KeyValue, 0, len(fr.Attrs)+2)
	for k, v := range fr.Attrs {
		switch v := v.(type) {
		case bool:
			kvs = append(kvs, attribute.Bool(k, v))
		case int64:
			kvs = append(kvs, attribute.Int64(k, v))
		case float64:
			kvs = append(kvs, attribute.Float64(k, v))
		case string:
			kvs = append(kvs, attribute.String(k, v))
		}
	}
	if fr.CauseID != InvalidID {
		kvs = append(kvs, attribute.Int64("cause_id", int64(fr.CauseID)))
		kvs = append(kvs, attribute.Bool("cause_implicit", fr.CauseImplicit))
	}
	return kvs
}

// fixedIDGenerator 让 provider 采用我们指定的 trace/span id。
// stage 与 Start 之间没有并发：Emit 只在消费者线程上跑。
type fixedIDGenerator struct {
	nextTrace tr.TraceID
	nextSpan  tr.SpanID
}

func (g *fixedIDGenerator) stage(traceID tr.TraceID, spanID tr.SpanID) {
	g.nextTrace = traceID
	g.nextSpan = spanID
}

func (g *fixedIDGenerator) NewIDs(context.Context) (tr.TraceID, tr.SpanID) {
	return g.nextTrace, g.nextSpan
}

func (g *fixedIDGenerator) NewSpanID(context.Context, tr.TraceID) tr.SpanID {
	return g.nextSpan
}

// convert to OTel TraceID
// 64 位 id 落在后 8 字节，前 8 字节补零。
func convertTraceID(id Id) tr.TraceID {
	var out tr.TraceID
	binary.BigEndian.PutUint64(out[8:], uint64(id))
	return out
}

// convert to OTel SpanID
func convertSpanID(id Id) tr.SpanID {
	var out tr.SpanID
	binary.BigEndian.PutUint64(out[:], uint64(id))
	return out
}
