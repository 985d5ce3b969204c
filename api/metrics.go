package api

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	listRoute              = "/api/list/:token"
	listSpanName           = "list.request"
	listEventName          = "list.request"
	listEventDomain        = "shoplist"
	observabilityEventName = "observability.event"
	tracerName             = "shoplist-api/api"
)

type listRequestMetrics struct {
	logger        *log.Logger
	span          trace.Span
	start         time.Time
	method        string
	tokenHash     string
	readDuration  time.Duration
	mergeDuration time.Duration
	writeDuration time.Duration
	itemsIn       int
	itemsOut      int
	deleted       int
	skipped       int
	version       int64
	corrupt       bool
	errorStage    string
	failure       error
}

func newListRequestMetrics(ctx context.Context, logger *log.Logger, method string) (*listRequestMetrics, context.Context) {
	spanCtx, span := otel.Tracer(tracerName).Start(ctx, listSpanName, trace.WithSpanKind(trace.SpanKindServer))
	return &listRequestMetrics{
		logger: logger,
		span:   span,
		start:  time.Now(),
		method: method,
	}, spanCtx
}

// hashToken keeps bearer tokens out of logs and traces.
func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])[:12]
}

func (m *listRequestMetrics) SetToken(token string) {
	m.tokenHash = hashToken(token)
}

func (m *listRequestMetrics) ObserveRead(d time.Duration) {
	if d > 0 {
		m.readDuration = d
	}
}

func (m *listRequestMetrics) ObserveMerge(d time.Duration) {
	if d > 0 {
		m.mergeDuration = d
	}
}

func (m *listRequestMetrics) ObserveWrite(d time.Duration) {
	if d > 0 {
		m.writeDuration = d
	}
}

func (m *listRequestMetrics) SetItemsIn(n int) { m.itemsIn = max(n, 0) }
func (m *listRequestMetrics) SetItemsOut(n int) { m.itemsOut = max(n, 0) }
func (m *listRequestMetrics) SetDeleted(n int) { m.deleted = max(n, 0) }
func (m *listRequestMetrics) SetSkipped(n int) { m.skipped = max(n, 0) }
func (m *listRequestMetrics) SetVersion(v int64) { m.version = v }
func (m *listRequestMetrics) SetCorrupt(c bool) { m.corrupt = c }
func (m *listRequestMetrics) SetFailure(err error) { m.failure = err }

func (m *listRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func severityForStatus(status int, err error) (string, int) {
	switch {
	case status >= http.StatusInternalServerError:
		return "ERROR", 17
	case status >= http.StatusBadRequest:
		return "WARN", 13
	case err != nil:
		return "ERROR", 17
	default:
		return "INFO", 9
	}
}

func (m *listRequestMetrics) attributes(status int) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String("http.route", listRoute),
		attribute.String("http.method", m.method),
		attribute.Int("http.status_code", status),
		attribute.Float64("shoplist.list.total_ms", durationToMillis(time.Since(m.start))),
		attribute.Int("shoplist.list.items_in", m.itemsIn),
		attribute.Int("shoplist.list.items_out", m.itemsOut),
		attribute.Int("shoplist.list.deleted", m.deleted),
		attribute.Int64("shoplist.list.version", m.version),
	}
	if m.tokenHash != "" {
		attrs = append(attrs, attribute.String("shoplist.list.token_hash", m.tokenHash))
	}
	if m.readDuration > 0 {
		attrs = append(attrs, attribute.Float64("shoplist.list.read_ms", durationToMillis(m.readDuration)))
	}
	if m.mergeDuration > 0 {
		attrs = append(attrs, attribute.Float64("shoplist.list.merge_ms", durationToMillis(m.mergeDuration)))
	}
	if m.writeDuration > 0 {
		attrs = append(attrs, attribute.Float64("shoplist.list.write_ms", durationToMillis(m.writeDuration)))
	}
	if m.skipped > 0 {
		attrs = append(attrs, attribute.Int("shoplist.list.skipped_items", m.skipped))
	}
	if m.corrupt {
		attrs = append(attrs, attribute.Bool("shoplist.list.corrupt_document", true))
	}
	if m.errorStage != "" {
		attrs = append(attrs, attribute.String("shoplist.list.error_stage", m.errorStage))
	}
	return attrs
}

// Log emits the request event to the logger and the span, then ends the span.
func (m *listRequestMetrics) Log(status int, err error) {
	if m == nil {
		return
	}
	if err == nil {
		err = m.failure
	}

	severityText, severityNumber := severityForStatus(status, err)
	attrs := m.attributes(status)
	eventAttrs := append([]attribute.KeyValue{
		attribute.String("event.name", listEventName),
		attribute.String("event.domain", listEventDomain),
		attribute.String("severity_text", severityText),
		attribute.Int("severity_number", severityNumber),
	}, attrs...)
	if err != nil {
		eventAttrs = append(eventAttrs, attribute.String("error.message", err.Error()))
	}

	if m.span != nil {
		m.span.SetAttributes(attrs...)
		m.span.AddEvent(observabilityEventName, trace.WithAttributes(eventAttrs...))
		if severityNumber >= 17 {
			desc := http.StatusText(status)
			if err != nil {
				desc = err.Error()
			}
			m.span.SetStatus(codes.Error, desc)
		} else {
			m.span.SetStatus(codes.Ok, "")
		}
		defer m.span.End()
	}

	if m.logger == nil {
		return
	}
	attrMap := make(map[string]any, len(attrs))
	for _, kv := range attrs {
		attrMap[string(kv.Key)] = kv.Value.AsInterface()
	}
	fields := log.Fields{
		"event.name":      listEventName,
		"event.domain":    listEventDomain,
		"severity_text":   severityText,
		"severity_number": severityNumber,
		"attributes":      attrMap,
	}
	if m.span != nil {
		if sc := m.span.SpanContext(); sc.IsValid() {
			fields["trace_id"] = sc.TraceID().String()
			fields["span_id"] = sc.SpanID().String()
		}
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	level := log.InfoLevel
	switch severityText {
	case "WARN":
		level = log.WarnLevel
	case "ERROR":
		level = log.ErrorLevel
	}
	m.logger.WithFields(fields).Log(level, observabilityEventName)
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
