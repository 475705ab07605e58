package docstore

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taskmaster/tracker/internal/domain/entities"
	"github.com/taskmaster/tracker/internal/infrastructure/logger"
	"github.com/taskmaster/tracker/internal/ports"
)

// Instrumented records prometheus metrics and debug logs around another store
type Instrumented struct {
	next     ports.DocumentStore
	logger   *logger.Logger
	ops      *prometheus.CounterVec
	duration *prometheus.HistogramVec
	watches  *prometheus.GaugeVec
}

// NewInstrumented wraps next and registers its collectors on reg
func NewInstrumented(next ports.DocumentStore, reg prometheus.Registerer, log *logger.Logger) *Instrumented {
	s := &Instrumented{
		next:   next,
		logger: log.WithComponent("docstore"),
		ops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "docstore_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"op", "collection", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "docstore_operation_duration_seconds",
				Help:    "Document store operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op", "collection"},
		),
		watches: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "docstore_active_watches",
				Help: "Number of live document watches",
			},
			[]string{"collection"},
		),
	}
	reg.MustRegister(s.ops, s.duration, s.watches)
	return s
}

func (s *Instrumented) observe(op, collection string, start time.Time, err error) {
	elapsed := time.Since(start)
	result := "ok"
	if err != nil {
		result = "error"
		if kind, ok := entities.KindOf(err); ok {
			result = kind.String()
		}
	}
	s.ops.WithLabelValues(op, collection, result).Inc()
	s.duration.WithLabelValues(op, collection).Observe(elapsed.Seconds())
	s.logger.LogStoreOperation(op, collection, float64(elapsed.Microseconds())/1000, err)
}

func (s *Instrumented) Add(ctx context.Context, collection string, fields map[string]any) (id string, err error) {
	defer func(start time.Time) { s.observe("add", collection, start, err) }(time.Now())
	return s.next.Add(ctx, collection, fields)
}

func (s *Instrumented) Get(ctx context.Context, collection, id string) (doc *ports.Document, err error) {
	defer func(start time.Time) { s.observe("get", collection, start, err) }(time.Now())
	return s.next.Get(ctx, collection, id)
}

func (s *Instrumented) Update(ctx context.Context, collection, id string, fields map[string]any) (err error) {
	defer func(start time.Time) { s.observe("update", collection, start, err) }(time.Now())
	return s.next.Update(ctx, collection, id, fields)
}

func (s *Instrumented) Delete(ctx context.Context, collection, id string) (err error) {
	defer func(start time.Time) { s.observe("delete", collection, start, err) }(time.Now())
	return s.next.Delete(ctx, collection, id)
}

func (s *Instrumented) Find(ctx context.Context, q ports.Query) (docs []ports.Document, err error) {
	defer func(start time.Time) { s.observe("find", q.Collection, start, err) }(time.Now())
	return s.next.Find(ctx, q)
}

func (s *Instrumented) Watch(ctx context.Context, q ports.Query, fn ports.SnapshotFunc) (ports.CancelFunc, error) {
	start := time.Now()
	cancel, err := s.next.Watch(ctx, q, fn)
	s.observe("watch", q.Collection, start, err)
	if err != nil {
		return nil, err
	}

	gauge := s.watches.WithLabelValues(q.Collection)
	gauge.Inc()
	released := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-released:
		}
		gauge.Dec()
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			close(released)
		})
	}, nil
}

func (s *Instrumented) Ping(ctx context.Context) error {
	return s.next.Ping(ctx)
}
