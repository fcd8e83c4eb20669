// Package gojob runs processes from go-job queue deliveries.
package gojob

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/core"
)

const (
	JobIDRunProcess = "processes.run"
	JobIDRunBatch   = "processes.batch.run"

	ParamProcessID   = "process_id"
	ParamParameters  = "parameters"
	ParamBatchTypeID = "batch_type_id"
	ParamDocument    = "document"
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:     3,
		BaseDelay:       30 * time.Second,
		MaxDelay:        10 * time.Minute,
		DeadLetterOnMax: true,
	}
}

// Backoff doubles BaseDelay per attempt, capped by MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return delay
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewRunProcessMessage builds the queue message for one process run.
func NewRunProcessMessage(processID int, params core.ProcessParameter, idempotencyKey string) (*job.ExecutionMessage, error) {
	if processID <= 0 {
		return nil, core.ValidationFailed(ParamProcessID, "process id must be positive")
	}
	encoded, err := toMap(params)
	if err != nil {
		return nil, err
	}
	return &job.ExecutionMessage{
		JobID:          JobIDRunProcess,
		ScriptPath:     JobIDRunProcess,
		Parameters:     map[string]any{ParamProcessID: processID, ParamParameters: encoded},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

func NewRunBatchMessage(batchTypeID int, document json.RawMessage, idempotencyKey string) (*job.ExecutionMessage, error) {
	if batchTypeID <= 0 {
		return nil, core.ValidationFailed(ParamBatchTypeID, "batch type id must be positive")
	}
	if !json.Valid(document) {
		return nil, core.ValidationFailed(ParamDocument, "batch document is not valid json")
	}
	return &job.ExecutionMessage{
		JobID:          JobIDRunBatch,
		ScriptPath:     JobIDRunBatch,
		Parameters:     map[string]any{ParamBatchTypeID: batchTypeID, ParamDocument: string(document)},
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
	}, nil
}

// DecodeRunProcess reads a run request from queue parameters. Backends that
// round-trip parameters through JSON deliver numbers as float64 and nested
// objects as maps; both are accepted.
func DecodeRunProcess(msg *job.ExecutionMessage) (core.RunProcessRequest, error) {
	if msg == nil {
		return core.RunProcessRequest{}, core.ValidationFailed("message", "execution message is required")
	}
	processID, err := intParam(msg.Parameters, ParamProcessID)
	if err != nil {
		return core.RunProcessRequest{}, err
	}
	req := core.RunProcessRequest{ProcessID: processID}
	if raw, ok := msg.Parameters[ParamParameters]; ok && raw != nil {
		if err := fromAny(raw, &req.Parameters); err != nil {
			return core.RunProcessRequest{}, core.ValidationFailed(ParamParameters, "process parameters are invalid: "+err.Error())
		}
	}
	return req, nil
}

func DecodeRunBatch(msg *job.ExecutionMessage) (core.RunBatchRequest, error) {
	if msg == nil {
		return core.RunBatchRequest{}, core.ValidationFailed("message", "execution message is required")
	}
	batchTypeID, err := intParam(msg.Parameters, ParamBatchTypeID)
	if err != nil {
		return core.RunBatchRequest{}, err
	}
	var document json.RawMessage
	switch typed := msg.Parameters[ParamDocument].(type) {
	case string:
		document = json.RawMessage(typed)
	case []byte:
		document = json.RawMessage(typed)
	case json.RawMessage:
		document = typed
	case nil:
		return core.RunBatchRequest{}, core.ValidationFailed(ParamDocument, "batch document is required")
	default:
		encoded, err := json.Marshal(typed)
		if err != nil {
			return core.RunBatchRequest{}, core.ValidationFailed(ParamDocument, "batch document is invalid: "+err.Error())
		}
		document = encoded
	}
	return core.RunBatchRequest{BatchTypeID: batchTypeID, Document: document}, nil
}

// Dispatcher is the part of core.Dispatcher the worker needs.
type Dispatcher interface {
	RunProcessByID(ctx context.Context, processID int, params core.ProcessParameter) (core.ProcessResult, error)
	RunBatch(ctx context.Context, batchTypeID int, document json.RawMessage) (any, error)
}

// Enqueuer schedules process runs on a go-job queue.
type Enqueuer struct {
	enqueuer queue.Enqueuer
}

func NewEnqueuer(enqueuer queue.Enqueuer) *Enqueuer {
	return &Enqueuer{enqueuer: enqueuer}
}

func (e *Enqueuer) EnqueueProcess(ctx context.Context, processID int, params core.ProcessParameter, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewRunProcessMessage(processID, params, idempotencyKey)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

func (e *Enqueuer) EnqueueBatch(ctx context.Context, batchTypeID int, document json.RawMessage, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	msg, err := NewRunBatchMessage(batchTypeID, document, idempotencyKey)
	if err != nil {
		return err
	}
	return e.enqueuer.Enqueue(ctx, msg)
}

type WorkerOption func(*Worker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
	}
}

func WithLogger(logger glog.Logger) WorkerOption {
	return func(w *Worker) {
		w.logger = logger
	}
}

func WithLoggerProvider(provider glog.LoggerProvider) WorkerOption {
	return func(w *Worker) {
		w.loggerProvider = provider
	}
}

// Worker turns deliveries into dispatcher runs. Successful, partial and
// completed runs are acked. Failed runs are retried under the policy;
// malformed messages and unknown ids are dead-lettered at once.
type Worker struct {
	dispatcher     Dispatcher
	policy         RetryPolicy
	logger         glog.Logger
	loggerProvider glog.LoggerProvider
}

func NewWorker(dispatcher Dispatcher, opts ...WorkerOption) *Worker {
	w := &Worker{dispatcher: dispatcher, policy: DefaultRetryPolicy()}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	provider, logger := glog.Resolve("processes.gojob", w.loggerProvider, w.logger)
	w.loggerProvider = provider
	w.logger = glog.Ensure(logger)
	return w
}

// Handle processes one delivery. attempt is 1-based.
func (w *Worker) Handle(ctx context.Context, delivery queue.Delivery, attempt int) error {
	if w == nil || w.dispatcher == nil {
		return fmt.Errorf("gojob: dispatcher is not configured")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	jobID := ""
	if msg != nil {
		jobID = strings.TrimSpace(msg.JobID)
	}

	switch jobID {
	case JobIDRunProcess:
		req, err := DecodeRunProcess(msg)
		if err != nil {
			return w.reject(ctx, delivery, jobID, err)
		}
		result, err := w.dispatcher.RunProcessByID(ctx, req.ProcessID, req.Parameters)
		if err != nil {
			return w.reject(ctx, delivery, jobID, err)
		}
		return w.settle(ctx, delivery, attempt, jobID, result)
	case JobIDRunBatch:
		req, err := DecodeRunBatch(msg)
		if err != nil {
			return w.reject(ctx, delivery, jobID, err)
		}
		out, err := w.dispatcher.RunBatch(ctx, req.BatchTypeID, req.Document)
		if err != nil {
			return w.reject(ctx, delivery, jobID, err)
		}
		if result, ok := out.(core.ProcessResult); ok {
			return w.settle(ctx, delivery, attempt, jobID, result)
		}
		return delivery.Ack(ctx)
	default:
		return w.reject(ctx, delivery, jobID, core.ValidationFailed("job_id", fmt.Sprintf("unsupported job %q", jobID)))
	}
}

// Poll dequeues and handles a single delivery.
func (w *Worker) Poll(ctx context.Context, dequeuer queue.Dequeuer, attempt int) error {
	if dequeuer == nil {
		return fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	return w.Handle(ctx, delivery, attempt)
}

func (w *Worker) settle(ctx context.Context, delivery queue.Delivery, attempt int, jobID string, result core.ProcessResult) error {
	if result.Status != core.ProcessStatusFailed {
		w.logger.Info("queued process run finished",
			"job_id", jobID,
			"process_id", result.ProcessID,
			"status", string(result.Status),
		)
		return delivery.Ack(ctx)
	}
	if !result.Retryable() {
		w.logger.Warn("queued process run failed validation",
			"job_id", jobID,
			"process_id", result.ProcessID,
			"attempt", attempt,
			"reason", result.ResultMessage,
		)
		return delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: result.ResultMessage})
	}
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Delay:   w.policy.Backoff(attempt),
		Requeue: true,
		Reason:  result.ResultMessage,
	}, attempt)
	w.logger.Warn("queued process run failed",
		"job_id", jobID,
		"process_id", result.ProcessID,
		"attempt", attempt,
		"requeue", opts.Requeue,
		"dead_letter", opts.DeadLetter,
		"reason", opts.Reason,
	)
	return delivery.Nack(ctx, opts)
}

func (w *Worker) reject(ctx context.Context, delivery queue.Delivery, jobID string, cause error) error {
	w.logger.Error("queued process run rejected", "job_id", jobID, "error", cause.Error())
	opts := queue.NackOptions{DeadLetter: true, Reason: cause.Error()}
	if err := delivery.Nack(ctx, opts); err != nil {
		return err
	}
	return nil
}

// LoggingHook reports go-job worker lifecycle events through glog.
type LoggingHook struct {
	logger glog.Logger
}

func NewLoggingHook(logger glog.Logger) *LoggingHook {
	return &LoggingHook{logger: glog.Ensure(logger)}
}

func (h *LoggingHook) OnStart(_ context.Context, event worker.Event) {
	h.logger.Debug("process job started", eventFields(event)...)
}

func (h *LoggingHook) OnSuccess(_ context.Context, event worker.Event) {
	h.logger.Info("process job succeeded", eventFields(event)...)
}

func (h *LoggingHook) OnFailure(_ context.Context, event worker.Event) {
	h.logger.Error("process job failed", eventFields(event)...)
}

func (h *LoggingHook) OnRetry(_ context.Context, event worker.Event) {
	h.logger.Warn("process job retrying", eventFields(event)...)
}

func eventFields(event worker.Event) []any {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	fields := []any{"attempt", event.Attempt, "duration_ms", event.Duration.Milliseconds()}
	if message != nil {
		fields = append(fields, "job_id", message.JobID)
		if value, ok := message.Parameters[ParamProcessID]; ok {
			fields = append(fields, "process_id", value)
		}
	}
	if event.Delay > 0 {
		fields = append(fields, "delay", event.Delay.String())
	}
	if event.Err != nil {
		fields = append(fields, "error", event.Err.Error())
	}
	return fields
}

func intParam(params map[string]any, key string) (int, error) {
	raw, ok := params[key]
	if !ok || raw == nil {
		return 0, core.ValidationFailed(key, key+" is required")
	}
	var value int
	switch typed := raw.(type) {
	case int:
		value = typed
	case int32:
		value = int(typed)
	case int64:
		value = int(typed)
	case float64:
		if typed != float64(int(typed)) {
			return 0, core.ValidationFailed(key, key+" must be an integer")
		}
		value = int(typed)
	case json.Number:
		parsed, err := strconv.Atoi(typed.String())
		if err != nil {
			return 0, core.ValidationFailed(key, key+" must be an integer")
		}
		value = parsed
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0, core.ValidationFailed(key, key+" must be an integer")
		}
		value = parsed
	default:
		return 0, core.ValidationFailed(key, fmt.Sprintf("%s has unsupported type %T", key, raw))
	}
	if value <= 0 {
		return 0, core.ValidationFailed(key, key+" must be positive")
	}
	return value, nil
}

func toMap(params core.ProcessParameter) (map[string]any, error) {
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, core.ValidationFailed(ParamParameters, "process parameters are not serializable: "+err.Error())
	}
	out := map[string]any{}
	if err := json.Unmarshal(encoded, &out); err != nil {
		return nil, core.ValidationFailed(ParamParameters, "process parameters are not serializable: "+err.Error())
	}
	return out, nil
}

func fromAny(raw any, target any) error {
	var encoded []byte
	switch typed := raw.(type) {
	case string:
		encoded = []byte(typed)
	case []byte:
		encoded = typed
	case json.RawMessage:
		encoded = typed
	default:
		var err error
		encoded, err = json.Marshal(typed)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(encoded, target)
}

var (
	_ worker.Hook = (*LoggingHook)(nil)
	_ Dispatcher  = (*core.Dispatcher)(nil)
)
