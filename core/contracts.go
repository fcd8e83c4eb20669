package core

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// ProcessProvider runs one numbered business process. Implementations are
// stateless; per-run state lives inside Run. Run never returns an error:
// every failure is reported through the ProcessResult.
type ProcessProvider interface {
	ID() int
	Name() string
	Run(ctx context.Context, params ProcessParameter) ProcessResult
}

// BatchProvider handles one batch type fed by a JSON document.
type BatchProvider interface {
	TypeID() int
	Name() string
	Run(ctx context.Context, document json.RawMessage) (any, error)
}

type ProcessDescriptor struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// RunRecord is what the dispatcher hands to recorders and publishers after
// a process finished.
type RunRecord struct {
	ProcessID   int
	ProcessName string
	Parameters  ProcessParameter
	Result      ProcessResult
	StartedAt   time.Time
	Duration    time.Duration
}

type RunRecorder interface {
	RecordRun(ctx context.Context, record RunRecord) error
}

type ResultPublisher interface {
	PublishResult(ctx context.Context, record RunRecord) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

type TransportRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    []byte
	Timeout time.Duration
}

type TransportResponse struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
	Metadata   map[string]any
}

// Header returns a response header, matching the name case-insensitively.
func (r TransportResponse) Header(name string) string {
	if value, ok := r.Headers[name]; ok {
		return value
	}
	for key, value := range r.Headers {
		if strings.EqualFold(key, name) {
			return value
		}
	}
	return ""
}

func (r TransportResponse) Successful() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// TransportAdapter executes one HTTP exchange. It never retries and never
// interprets the status code.
type TransportAdapter interface {
	Kind() string
	Do(ctx context.Context, req TransportRequest) (TransportResponse, error)
}
