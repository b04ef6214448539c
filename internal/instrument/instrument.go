// Package instrument decorates an image host with tracing spans and prometheus metrics.
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"siteimage/internal/imagehost"
	"siteimage/internal/model"
)

const scope = "siteimage/internal/instrument"

// Outcome label values.
const (
	OutcomeSuccess            = "success"
	OutcomeBadRequest         = "bad_request"
	OutcomePreconditionFailed = "precondition_failed"
	OutcomeNotDecodable       = "not_decodable"
	OutcomeRemoteError        = "remote_error"
	OutcomeError              = "error"
)

// Metrics holds the collectors shared by every decorated host.
type Metrics struct {
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
}

// NewMetrics registers the image host collectors on reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "imagehost_operations_total",
				Help: "Image host operations by backend, operation and outcome.",
			},
			[]string{"backend", "operation", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "imagehost_operation_duration_seconds",
				Help:    "Image host operation latency.",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"backend", "operation"},
		),
	}
	for _, c := range []prometheus.Collector{m.operations, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Host wraps another imagehost.Host. It always implements imagehost.Pinger; Ping is a
// no-op when the wrapped host cannot be pinged.
type Host struct {
	next    imagehost.Host
	backend string
	metrics *Metrics
	tracer  trace.Tracer
}

var (
	_ imagehost.Host   = (*Host)(nil)
	_ imagehost.Pinger = (*Host)(nil)
)

type Option func(*Host)

// WithTracerProvider replaces the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(h *Host) { h.tracer = tp.Tracer(scope) }
}

// Wrap decorates next. A nil m disables metrics.
func Wrap(next imagehost.Host, m *Metrics, opts ...Option) *Host {
	h := &Host{
		next:    next,
		backend: next.Name(),
		metrics: m,
		tracer:  otel.Tracer(scope),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Unwrap returns the decorated host.
func (h *Host) Unwrap() imagehost.Host { return h.next }

func (h *Host) Name() string { return h.backend }

func (h *Host) GetTransformations() model.Transformations {
	return h.next.GetTransformations()
}

func (h *Host) Ping(ctx context.Context) error {
	p, ok := h.next.(imagehost.Pinger)
	if !ok {
		return nil
	}
	return do(ctx, h, "Ping", nil, p.Ping)
}

func (h *Host) Get(ctx context.Context, publicID, transformation string, format model.Format) (string, error) {
	return call(ctx, h, "Get", publicIDAttrs(publicID, attribute.String("imagehost.transformation", transformation)),
		func(ctx context.Context) (string, error) {
			return h.next.Get(ctx, publicID, transformation, format)
		})
}

func (h *Host) GetPlaceholder(ctx context.Context, transformation string) (string, error) {
	return call(ctx, h, "GetPlaceholder", []attribute.KeyValue{attribute.String("imagehost.transformation", transformation)},
		func(ctx context.Context) (string, error) {
			return h.next.GetPlaceholder(ctx, transformation)
		})
}

func (h *Host) Upload(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	return call(ctx, h, "Upload", uploadAttrs(opts), func(ctx context.Context) (*model.UploadResponse, error) {
		return h.next.Upload(ctx, source, opts)
	})
}

func (h *Host) UploadForModeration(ctx context.Context, source string, opts imagehost.UploadOptions) (*model.UploadResponse, error) {
	return call(ctx, h, "UploadForModeration", uploadAttrs(opts), func(ctx context.Context) (*model.UploadResponse, error) {
		return h.next.UploadForModeration(ctx, source, opts)
	})
}

func (h *Host) Approve(ctx context.Context, publicID string) error {
	return do(ctx, h, "Approve", publicIDAttrs(publicID), func(ctx context.Context) error {
		return h.next.Approve(ctx, publicID)
	})
}

func (h *Host) Reject(ctx context.Context, publicID string) error {
	return do(ctx, h, "Reject", publicIDAttrs(publicID), func(ctx context.Context) error {
		return h.next.Reject(ctx, publicID)
	})
}

func (h *Host) Destroy(ctx context.Context, publicID string) (bool, error) {
	return call(ctx, h, "Destroy", publicIDAttrs(publicID), func(ctx context.Context) (bool, error) {
		return h.next.Destroy(ctx, publicID)
	})
}

func (h *Host) DestroyAll(ctx context.Context, tag string) error {
	return do(ctx, h, "DestroyAll", []attribute.KeyValue{attribute.String("imagehost.tag", tag)}, func(ctx context.Context) error {
		return h.next.DestroyAll(ctx, tag)
	})
}

func (h *Host) Tagged(ctx context.Context, tag string) ([]string, error) {
	return call(ctx, h, "Tagged", []attribute.KeyValue{attribute.String("imagehost.tag", tag)}, func(ctx context.Context) ([]string, error) {
		return h.next.Tagged(ctx, tag)
	})
}

func (h *Host) Rename(ctx context.Context, publicID, newPublicID string, overwrite bool) (*model.UploadResponse, error) {
	attrs := publicIDAttrs(publicID,
		attribute.String("imagehost.new_public_id", newPublicID),
		attribute.Bool("imagehost.overwrite", overwrite),
	)
	return call(ctx, h, "Rename", attrs, func(ctx context.Context) (*model.UploadResponse, error) {
		return h.next.Rename(ctx, publicID, newPublicID, overwrite)
	})
}

func (h *Host) AllAssets(ctx context.Context, withTags bool) ([]model.UploadResponse, error) {
	return call(ctx, h, "AllAssets", []attribute.KeyValue{attribute.Bool("imagehost.with_tags", withTags)},
		func(ctx context.Context) ([]model.UploadResponse, error) {
			return h.next.AllAssets(ctx, withTags)
		})
}

func (h *Host) BuildTransformations(ctx context.Context) error {
	return do(ctx, h, "BuildTransformations", nil, h.next.BuildTransformations)
}

func do(ctx context.Context, h *Host, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	_, err := call(ctx, h, op, attrs, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

func call[T any](ctx context.Context, h *Host, op string, attrs []attribute.KeyValue, fn func(context.Context) (T, error)) (T, error) {
	attrs = append(attrs, attribute.String("imagehost.backend", h.backend))
	ctx, span := h.tracer.Start(ctx, "imagehost."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	v, err := fn(ctx)
	elapsed := time.Since(start)

	outcome := Outcome(err)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.SetAttributes(attribute.String("imagehost.outcome", outcome))

	if h.metrics != nil {
		h.metrics.operations.WithLabelValues(h.backend, op, outcome).Inc()
		h.metrics.duration.WithLabelValues(h.backend, op).Observe(elapsed.Seconds())
	}
	return v, err
}

// Outcome classifies err into one of the Outcome label values.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, imagehost.ErrBadRequest):
		return OutcomeBadRequest
	case errors.Is(err, imagehost.ErrPreconditionFailed):
		return OutcomePreconditionFailed
	case errors.Is(err, imagehost.ErrNotDecodable):
		return OutcomeNotDecodable
	case errors.Is(err, imagehost.ErrRemoteService):
		return OutcomeRemoteError
	default:
		return OutcomeError
	}
}

func publicIDAttrs(publicID string, extra ...attribute.KeyValue) []attribute.KeyValue {
	return append([]attribute.KeyValue{attribute.String("imagehost.public_id", publicID)}, extra...)
}

func uploadAttrs(opts imagehost.UploadOptions) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("imagehost.folder", opts.Folder),
		attribute.StringSlice("imagehost.tags", opts.Tags),
		attribute.StringSlice("imagehost.transformations", opts.Transformations),
		attribute.Bool("imagehost.overwrite", opts.Overwrite),
	}
}
