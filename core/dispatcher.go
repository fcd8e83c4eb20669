package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"runtime/debug"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

// Dispatcher resolves numbered processes and batch types and runs them. It
// is the containment boundary: provider failures surface as Failed results,
// only dispatch failures are returned as errors.
type Dispatcher struct {
	config          Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	processes       *ProcessRegistry
	batches         *BatchRegistry
	recorder        RunRecorder
	publisher       ResultPublisher
	now             func() time.Time
}

func NewDispatcher(cfg Config, opts ...Option) (*Dispatcher, error) {
	builder := defaultDispatcherBuilder(cfg)
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}

	provider, logger := glog.Resolve("processes", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if provider != nil {
		if named := provider.GetLogger("processes.dispatcher"); named != nil {
			logger = glog.Ensure(named)
		}
	}

	if builder.metricsRecorder == nil {
		builder.metricsRecorder = NopMetricsRecorder{}
	}
	if builder.errorMapper == nil {
		builder.errorMapper = MapError
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	if builder.now == nil {
		builder.now = time.Now
	}
	if builder.processes == nil {
		builder.processes, _ = NewProcessRegistry()
	}
	if builder.batches == nil {
		builder.batches, _ = NewBatchRegistry()
	}
	for _, process := range builder.processList {
		if err := builder.processes.Register(process); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}
	for _, batch := range builder.batchList {
		if err := builder.batches.Register(batch); err != nil {
			return nil, mapBuildError(builder.errorMapper, err)
		}
	}

	finalConfig, err := resolveConfig(builder)
	if err != nil {
		return nil, mapBuildError(builder.errorMapper, err)
	}

	return &Dispatcher{
		config:          finalConfig,
		logger:          logger,
		loggerProvider:  provider,
		metricsRecorder: builder.metricsRecorder,
		errorMapper:     builder.errorMapper,
		processes:       builder.processes,
		batches:         builder.batches,
		recorder:        builder.recorder,
		publisher:       builder.publisher,
		now:             builder.now,
	}, nil
}

// ResolveConfig layers defaults, the configured provider and cfg the same way
// NewDispatcher does, so collaborators built before the dispatcher see the
// final settings.
func ResolveConfig(cfg Config, opts ...Option) (Config, error) {
	builder := defaultDispatcherBuilder(cfg)
	for _, opt := range opts {
		if opt != nil {
			opt(&builder)
		}
	}
	if builder.configProvider == nil {
		builder.configProvider = NewCfgxConfigProvider(nil)
	}
	if builder.optionsResolver == nil {
		builder.optionsResolver = GoOptionsResolver{}
	}
	resolved, err := resolveConfig(builder)
	if err != nil {
		return Config{}, mapBuildError(MapError, err)
	}
	return resolved, nil
}

func resolveConfig(builder dispatcherBuilder) (Config, error) {
	defaults := DefaultConfig()
	loaded, err := builder.configProvider.Load(context.Background(), defaults)
	if err != nil {
		return Config{}, err
	}
	return builder.optionsResolver.Resolve(defaults, loaded, builder.runtimeConfig)
}

func mapBuildError(mapper ErrorMapper, err error) error {
	if err == nil {
		return nil
	}
	if mapper == nil {
		return err
	}
	mapped := mapper(err)
	if mapped == nil {
		return err
	}
	return mapped
}

func (d *Dispatcher) Config() Config {
	if d == nil {
		return Config{}
	}
	return d.config
}

// RunRecorder returns the configured recorder, or nil.
func (d *Dispatcher) RunRecorder() RunRecorder {
	if d == nil {
		return nil
	}
	return d.recorder
}

func (d *Dispatcher) LoggerProvider() LoggerProvider {
	if d == nil {
		return nil
	}
	return d.loggerProvider
}

func (d *Dispatcher) Processes() []ProcessDescriptor {
	if d == nil {
		return nil
	}
	providers := d.processes.List()
	out := make([]ProcessDescriptor, 0, len(providers))
	for _, provider := range providers {
		out = append(out, ProcessDescriptor{ID: provider.ID(), Name: provider.Name()})
	}
	return out
}

func (d *Dispatcher) BatchTypes() []ProcessDescriptor {
	if d == nil {
		return nil
	}
	providers := d.batches.List()
	out := make([]ProcessDescriptor, 0, len(providers))
	for _, provider := range providers {
		out = append(out, ProcessDescriptor{ID: provider.TypeID(), Name: provider.Name()})
	}
	return out
}

// RunProcessByID resolves the provider and returns its result verbatim.
func (d *Dispatcher) RunProcessByID(ctx context.Context, processID int, params ProcessParameter) (result ProcessResult, err error) {
	if d == nil {
		return ProcessResult{}, InternalError("core: dispatcher is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := d.now()
	fields := map[string]any{
		"process_id":   processID,
		"triggered_by": params.TriggeredBy,
		"caller_id":    params.CallerID,
	}
	defer func() {
		fields["result_status"] = result.Status
		fields["total_processed"] = result.TotalProcessed
		fields["total_records"] = result.TotalRecords
		d.observeOperation(ctx, startedAt, "run", err, fields)
	}()

	provider, ok := d.processes.Get(processID)
	if !ok {
		return ProcessResult{}, ProcessNotFound(processID)
	}
	fields["process_name"] = provider.Name()

	result = d.invoke(ctx, provider, params.Clone())
	d.afterRun(ctx, RunRecord{
		ProcessID:   processID,
		ProcessName: provider.Name(),
		Parameters:  params.Clone(),
		Result:      result.Clone(),
		StartedAt:   startedAt.UTC(),
		Duration:    d.now().Sub(startedAt),
	})
	return result, nil
}

func (d *Dispatcher) invoke(ctx context.Context, provider ProcessProvider, params ProcessParameter) (result ProcessResult) {
	defer func() {
		if recovered := recover(); recovered != nil {
			d.logError(ctx, "process provider panicked", map[string]any{
				"process_id":   provider.ID(),
				"process_name": provider.Name(),
				"panic":        fmt.Sprint(recovered),
				"stack":        string(debug.Stack()),
			})
			result = FailedResultFromError(provider.ID(), InternalError(fmt.Sprintf("core: process %d panicked: %v", provider.ID(), recovered)))
		}
	}()
	return provider.Run(ctx, params)
}

func (d *Dispatcher) afterRun(ctx context.Context, record RunRecord) {
	fields := map[string]any{
		"process_id":   record.ProcessID,
		"process_name": record.ProcessName,
	}
	if d.recorder != nil {
		if err := d.recorder.RecordRun(ctx, record); err != nil {
			warn := cloneFields(fields)
			warn["error"] = err.Error()
			d.logWarn(ctx, "process run could not be recorded", warn)
		}
	}
	if d.publisher != nil {
		if err := d.publisher.PublishResult(ctx, record); err != nil {
			warn := cloneFields(fields)
			warn["error"] = err.Error()
			d.logWarn(ctx, "process result could not be published", warn)
		}
	}
}

// RunBatch hands a batch document to the provider registered for the type.
func (d *Dispatcher) RunBatch(ctx context.Context, batchTypeID int, document json.RawMessage) (out any, err error) {
	if d == nil {
		return nil, InternalError("core: dispatcher is nil")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	startedAt := d.now()
	fields := map[string]any{"batch_type_id": batchTypeID}
	defer func() {
		if result, ok := out.(ProcessResult); ok {
			fields["result_status"] = result.Status
		}
		d.observeOperation(ctx, startedAt, "run_batch", err, fields)
	}()

	trimmed := bytes.TrimSpace(document)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, ValidationFailed("document", "batch document is required")
	}
	provider, ok := d.batches.Get(batchTypeID)
	if !ok {
		return nil, BatchTypeNotFound(batchTypeID)
	}
	fields["batch_name"] = provider.Name()

	defer func() {
		if recovered := recover(); recovered != nil {
			out = nil
			err = InternalError(fmt.Sprintf("core: batch type %d panicked: %v", batchTypeID, recovered))
		}
	}()
	payload := make(json.RawMessage, len(trimmed))
	copy(payload, trimmed)
	return provider.Run(ctx, payload)
}
