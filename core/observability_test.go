package core

import (
	"context"
	"sync"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type capturedCounter struct {
	name  string
	value int64
	tags  map[string]string
}

type capturedHistogram struct {
	name  string
	value float64
	tags  map[string]string
}

type captureMetricsRecorder struct {
	mu         sync.Mutex
	counters   []capturedCounter
	histograms []capturedHistogram
}

func (m *captureMetricsRecorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters = append(m.counters, capturedCounter{name: name, value: value, tags: cloneTags(tags)})
}

func (m *captureMetricsRecorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms = append(m.histograms, capturedHistogram{name: name, value: value, tags: cloneTags(tags)})
}

type capturedLog struct {
	level  string
	msg    string
	fields map[string]any
}

type captureLogger struct {
	mu       *sync.Mutex
	records  *[]capturedLog
	defaults map[string]any
}

func newCaptureLogger() *captureLogger {
	records := []capturedLog{}
	return &captureLogger{mu: &sync.Mutex{}, records: &records, defaults: map[string]any{}}
}

func (l *captureLogger) WithFields(fields map[string]any) Logger {
	merged := cloneFields(l.defaults)
	for key, value := range fields {
		merged[key] = value
	}
	return &captureLogger{mu: l.mu, records: l.records, defaults: merged}
}

func (l *captureLogger) Trace(msg string, args ...any) { l.record("trace", msg, args...) }
func (l *captureLogger) Debug(msg string, args ...any) { l.record("debug", msg, args...) }
func (l *captureLogger) Info(msg string, args ...any)  { l.record("info", msg, args...) }
func (l *captureLogger) Warn(msg string, args ...any)  { l.record("warn", msg, args...) }
func (l *captureLogger) Error(msg string, args ...any) { l.record("error", msg, args...) }
func (l *captureLogger) Fatal(msg string, args ...any) { l.record("fatal", msg, args...) }

func (l *captureLogger) WithContext(context.Context) Logger {
	return &captureLogger{mu: l.mu, records: l.records, defaults: cloneFields(l.defaults)}
}

func (l *captureLogger) record(level string, msg string, args ...any) {
	fields := cloneFields(l.defaults)
	for index := 0; index+1 < len(args); index += 2 {
		key, ok := args[index].(string)
		if !ok {
			continue
		}
		fields[key] = args[index+1]
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	*l.records = append(*l.records, capturedLog{level: level, msg: msg, fields: fields})
}

func (l *captureLogger) snapshot() []capturedLog {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := *l.records
	out := make([]capturedLog, len(items))
	copy(out, items)
	return out
}

func newObservedDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *captureMetricsRecorder, *captureLogger) {
	t.Helper()
	metrics := &captureMetricsRecorder{}
	logger := newCaptureLogger()
	base := []Option{
		WithMetricsRecorder(metrics),
		WithLoggerProvider(stubLoggerProvider{logger: logger}),
		WithLogger(logger),
	}
	dispatcher, err := NewDispatcher(DefaultConfig(), append(base, opts...)...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	return dispatcher, metrics, logger
}

func TestDispatcherObservability_RunSuccess(t *testing.T) {
	process := &stubProcess{id: 3, name: "inactive-record-closure", result: NewSuccessfulResult(3, 2, 2, "done")}
	dispatcher, metrics, logger := newObservedDispatcher(t, WithProcessProviders(process))

	if _, err := dispatcher.RunProcessByID(context.Background(), 3, ProcessParameter{TriggeredBy: "scheduler"}); err != nil {
		t.Fatalf("run process: %v", err)
	}

	if !hasCounter(metrics.counters, "processes.run.total", "success") {
		t.Fatalf("expected processes.run.total success counter, got %#v", metrics.counters)
	}
	if !hasHistogram(metrics.histograms, "processes.run.duration_ms", "success") {
		t.Fatalf("expected processes.run.duration_ms success histogram")
	}
	if metrics.counters[0].tags["process_id"] != "3" {
		t.Fatalf("expected process_id tag, got %#v", metrics.counters[0].tags)
	}
	if !hasLog(logger.snapshot(), "info", "run succeeded", "run") {
		t.Fatalf("expected info log for run")
	}
}

func TestDispatcherObservability_FailedResultLogsError(t *testing.T) {
	failed := FailedResultFromError(4, ValidationFailed("notification", "notification parameters are required"))
	process := &stubProcess{id: 4, name: "notification-batch", result: failed}
	dispatcher, metrics, logger := newObservedDispatcher(t, WithProcessProviders(process))

	result, err := dispatcher.RunProcessByID(context.Background(), 4, ProcessParameter{})
	if err != nil {
		t.Fatalf("failed results are not dispatch errors: %v", err)
	}
	if result.Status != ProcessStatusFailed {
		t.Fatalf("expected failed status, got %s", result.Status)
	}
	if !hasCounter(metrics.counters, "processes.run.total", "failure") {
		t.Fatalf("expected failure counter")
	}
	if !hasLog(logger.snapshot(), "error", "run failed", "run") {
		t.Fatalf("expected error log for failed run")
	}
}

func TestDispatcherObservability_RichErrorFields(t *testing.T) {
	dispatcher, _, logger := newObservedDispatcher(t)

	richErr := RemoteCallFailed(500, "accounts(1)", []byte(`{"error":"boom"}`))
	dispatcher.observeOperation(
		context.Background(),
		time.Now().Add(-50*time.Millisecond),
		"run",
		richErr,
		map[string]any{"process_id": 1},
	)

	records := logger.snapshot()
	if len(records) == 0 {
		t.Fatalf("expected logs to be emitted")
	}
	last := records[len(records)-1]
	if last.fields["error_category"] != goerrors.CategoryExternal.String() {
		t.Fatalf("expected external category, got %#v", last.fields["error_category"])
	}
	if last.fields["error_text_code"] != ErrorRemoteCallFailed {
		t.Fatalf("expected remote call text code, got %#v", last.fields["error_text_code"])
	}
	metadata, ok := last.fields["error_metadata"].(map[string]any)
	if !ok {
		t.Fatalf("expected error_metadata map, got %#v", last.fields["error_metadata"])
	}
	if metadata["uri"] != "accounts(1)" {
		t.Fatalf("expected uri metadata, got %#v", metadata["uri"])
	}
}

func hasCounter(items []capturedCounter, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasHistogram(items []capturedHistogram, name string, status string) bool {
	for _, item := range items {
		if item.name == name && item.tags["status"] == status {
			return true
		}
	}
	return false
}

func hasLog(items []capturedLog, level string, message string, eventType string) bool {
	for _, item := range items {
		if item.level != level {
			continue
		}
		if item.msg != message {
			continue
		}
		if item.fields["event_type"] != eventType {
			continue
		}
		return true
	}
	return false
}

func TestMetricNameNormalizesOperation(t *testing.T) {
	if got := MetricName("Run Batch", "total"); got != "processes.run_batch.total" {
		t.Fatalf("unexpected metric name %q", got)
	}
	tags := operationTags("run", "success", map[string]any{"process_id": 4, "batch_type_id": nil})
	if tags["process_id"] != "4" {
		t.Fatalf("expected process_id tag, got %#v", tags)
	}
	if _, ok := tags["batch_type_id"]; ok {
		t.Fatalf("expected nil batch_type_id to be skipped, got %#v", tags)
	}
}
