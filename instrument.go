package segstore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/hugr-lab/segstore/catalog"
	"github.com/hugr-lab/segstore/column"
	"github.com/hugr-lab/segstore/filter"
	"github.com/hugr-lab/segstore/flight"
	"github.com/hugr-lab/segstore/query"
)

// Read outcome labels of segstore_reads_total.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusInvalid  = "invalid"
	StatusCanceled = "canceled"
	StatusError    = "error"
)

// ReadMetrics holds the Prometheus metrics of instrumented reads.
type ReadMetrics struct {
	Reads    *prometheus.CounterVec
	Duration prometheus.Histogram
	Rows     prometheus.Histogram
}

// NewReadMetrics creates the read metrics and registers them with reg.
// A nil reg leaves them unregistered. Metrics already registered by
// another store on the same registry are shared.
func NewReadMetrics(reg prometheus.Registerer) (*ReadMetrics, error) {
	m := &ReadMetrics{
		Reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "segstore_reads_total",
			Help: "Total reads by outcome",
		}, []string{"status"}),
		Duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "segstore_read_duration_seconds",
			Help:    "Read latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		Rows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "segstore_rows_returned",
			Help:    "Rows returned per successful read",
			Buckets: prometheus.ExponentialBuckets(1, 10, 8),
		}),
	}
	if reg == nil {
		return m, nil
	}

	var err error
	if m.Reads, err = register(reg, m.Reads); err != nil {
		return nil, err
	}
	if m.Duration, err = register(reg, m.Duration); err != nil {
		return nil, err
	}
	if m.Rows, err = register(reg, m.Rows); err != nil {
		return nil, err
	}
	return m, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if errors.As(err, &are) {
		if existing, ok := are.ExistingCollector.(C); ok {
			return existing, nil
		}
	}
	return c, err
}

// readStatus classifies a read error for metrics.
func readStatus(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return StatusCanceled
	case catalog.IsNotFound(err):
		return StatusNotFound
	case errors.Is(err, column.ErrIncompatibleTypes),
		errors.Is(err, filter.ErrInvalidExpression),
		errors.Is(err, filter.ErrUnsupportedOperator),
		errors.Is(err, filter.ErrUnsupportedLiteral):
		return StatusInvalid
	}
	return StatusError
}

// TracerName is the instrumentation scope of read spans.
const TracerName = "github.com/hugr-lab/segstore"

// Span attributes of segstore.Read.
const (
	AttrSymbol  = attribute.Key("segstore.Read.symbol")
	AttrAsOf    = attribute.Key("segstore.Read.as_of")
	AttrQueryID = attribute.Key("segstore.Read.query_id")
	AttrRows    = attribute.Key("segstore.Read.rows")
	AttrStatus  = attribute.Key("segstore.Read.status")
)

// instrumentedReader traces, logs and measures every read of the wrapped
// reader.
type instrumentedReader struct {
	next    Reader
	logger  *slog.Logger
	metrics *ReadMetrics
	tracer  trace.Tracer
	encoder *filter.DuckDBEncoder
}

// Instrument wraps next so that every read gets a query id, a
// "segstore.Read" span, start and finish log records and metrics.
// A nil metrics skips metrics; a nil tp uses the global otel provider.
func Instrument(next Reader, logger *slog.Logger, metrics *ReadMetrics, tp trace.TracerProvider) Reader {
	if logger == nil {
		logger = slog.Default()
	}
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	return &instrumentedReader{
		next:    next,
		logger:  logger,
		metrics: metrics,
		tracer:  tp.Tracer(TracerName),
		encoder: filter.NewDuckDBEncoder(nil),
	}
}

func (r *instrumentedReader) Read(ctx context.Context, symbol string, opts ReadOptions) (*query.Table, error) {
	queryID := uuid.NewString()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "segstore.Read", trace.WithAttributes(
		AttrSymbol.String(symbol),
		AttrAsOf.String(catalog.DescribeTimePoint(opts.As)),
		AttrQueryID.String(queryID),
	))
	defer span.End()

	r.logger.Info("Read started",
		"query_id", queryID,
		"symbol", symbol,
		"as_of", catalog.DescribeTimePoint(opts.As),
		"predicate", r.encoder.Encode(opts.Filter),
		"columns", opts.Columns,
		"trace_id", traceID(ctx, span),
	)

	table, err := r.next.Read(ctx, symbol, opts)
	elapsed := time.Since(start)
	status := readStatus(err)
	span.SetAttributes(AttrStatus.String(status))

	if r.metrics != nil {
		r.metrics.Reads.WithLabelValues(status).Inc()
		r.metrics.Duration.Observe(elapsed.Seconds())
		if err == nil {
			r.metrics.Rows.Observe(float64(table.NumRows()))
		}
	}

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.logger.Info("Read failed",
			"query_id", queryID,
			"symbol", symbol,
			"status", status,
			"duration", elapsed,
			"error", err,
		)
		return nil, err
	}

	for _, w := range table.Warnings() {
		r.logger.Debug("Predicate column absent",
			"query_id", queryID,
			"warning", w.String(),
		)
	}
	span.SetAttributes(AttrRows.Int(table.NumRows()))
	span.SetStatus(codes.Ok, "")
	r.logger.Info("Read finished",
		"query_id", queryID,
		"symbol", symbol,
		"rows", table.NumRows(),
		"columns", table.NumCols(),
		"duration", elapsed,
	)
	return table, nil
}

// traceID prefers the trace id the Flight client sent and falls back to
// the read span's.
func traceID(ctx context.Context, span trace.Span) string {
	if id := flight.TraceIDFromContext(ctx); id != "" {
		return id
	}
	if sc := span.SpanContext(); sc.HasTraceID() {
		return sc.TraceID().String()
	}
	return ""
}
