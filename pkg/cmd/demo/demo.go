package demo

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/stleox/spanflow/pkg/bgtask"
	"github.com/stleox/spanflow/pkg/tracer"
	"go.opentelemetry.io/otel/attribute"
)

var (
	// workload var
	workloadOpts struct {
		producers int
		spans     int
		sink      string
	}

	// workload flags
	workloadFlags = pflag.NewFlagSet("workload", pflag.ContinueOnError)
)

func init() {
	workloadFlags.IntVar(&workloadOpts.producers, "producers", 4, "Number of concurrent producer goroutines")
	workloadFlags.IntVar(&workloadOpts.spans, "spans", 8, "Rounds each producer runs; each round opens a parent and a child span and emits one event")
	workloadFlags.StringVar(&workloadOpts.sink, "sink", "log", "Record sink: log, stdout-otel, grpc-otel, olap")
}

func New(vp *viper.Viper) *cobra.Command {
	demo := &cobra.Command{
		Use:   "demo",
		Short: "Run an instrumented example workload, then assemble and export its records",
		RunE: func(cmd *cobra.Command, args []string) error {
			// init main context
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, os.Kill)
			defer cancel()

			// init tracer
			t, err := tracer.New(vp)
			if err != nil {
				return err
			}

			// init sink
			switch workloadOpts.sink {
			case "log":
				t.InitLogSink()
			case "stdout-otel":
				if _, err := t.InitStdoutExporter(); err != nil {
					return err
				}
			case "grpc-otel":
				if _, err := t.InitGRPCExporter(ctx); err != nil {
					return err
				}
			case "olap":
				olap := tracer.NewOlap(vp)
				if olap == nil {
					return fmt.Errorf("olap server unavailable")
				}
				flusher := bgtask.NewFlusher(olap)
				t.AddSink(flusher)
				defer flusher.Flush()
			default:
				return fmt.Errorf("unknown sink %q", workloadOpts.sink)
			}

			// init bgTaskManager
			bg := bgtask.NewBgTaskManager(t)
			bg.StartAll()

			runWorkload(ctx, t)

			// 等消费者清空队列再关停
			drainCtx, drainCancel := context.WithTimeout(ctx, 5*time.Second)
			defer drainCancel()
			if err := t.Drain(drainCtx); err != nil {
				return err
			}
			return t.Shutdown(ctx)
		},
	}
	demo.Flags().AddFlagSet(workloadFlags)
	return demo
}

// 因果链演示：cause span 先结束，随后的事件没有显式因果，
// 只能靠祖先链拿到隐式因果。
func runWorkload(ctx context.Context, t *tracer.Tracer) {
	_, causeSpan := t.StartSpan(ctx, "initial_cause")
	causeID := causeSpan.ID()
	causeSpan.End()

	var wg sync.WaitGroup
	for i := 0; i < workloadOpts.producers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for j := 0; j < workloadOpts.spans; j++ {
				pctx, parent := t.StartSpan(ctx, "parent_with_cause",
					tracer.CausedBy(causeID),
					tracer.WithAttributes(
						attribute.Int("worker", worker),
						attribute.Int("round", j)))

				cctx, child := t.StartSpan(pctx, "nested_child_no_cause",
					tracer.WithAttributes(attribute.String("child_attr", "hello")))

				t.Event(cctx, "important_event",
					tracer.WithAttributes(attribute.String("status", "processing")))

				child.End()
				parent.End()
			}
		}(i)
	}
	wg.Wait()
}
