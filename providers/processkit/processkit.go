// Package processkit runs the fetch, compute and write-back phases shared by
// every process provider.
package processkit

import (
	"context"
	"fmt"
	"time"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-processes/core"
)

// Definition describes one process. R is the fetched record type and M the
// computed mutation handed to WriteBack.
type Definition[R any, M any] struct {
	ProcessID int
	Name      string
	Rules     []core.ValidationRule
	Fetch     func(ctx context.Context, params core.ProcessParameter) ([]R, error)
	Compute   func(params core.ProcessParameter, records []R) (M, error)
	WriteBack func(ctx context.Context, params core.ProcessParameter, mutation M) (core.BatchOutcome, error)
	Policy    core.PartialPolicy
	// Message prefixes the result message of a run that reached write-back.
	Message string
	Logger  core.Logger
	Now     func() time.Time
}

// Invocation is the per-run state of a Definition. It is not shared between
// runs.
type Invocation[R any, M any] struct {
	def       Definition[R, M]
	params    core.ProcessParameter
	data      *core.ProcessData[[]R]
	lifecycle *core.Lifecycle
	logger    core.Logger
}

func NewInvocation[R any, M any](def Definition[R, M], params core.ProcessParameter) *Invocation[R, M] {
	inv := &Invocation[R, M]{
		def:       def,
		params:    params,
		lifecycle: core.NewLifecycle(def.ProcessID, def.Now),
		logger:    glog.Ensure(def.Logger),
	}
	inv.data = core.NewProcessData(func(ctx context.Context) ([]R, error) {
		if def.Fetch == nil {
			return nil, core.InternalError(fmt.Sprintf("processkit: %s has no fetch phase", def.Name))
		}
		return def.Fetch(ctx, inv.params)
	})
	return inv
}

// Run executes one invocation of def.
func Run[R any, M any](ctx context.Context, def Definition[R, M], params core.ProcessParameter) core.ProcessResult {
	return NewInvocation(def, params).Run(ctx)
}

// Data is the memoized fetch of this invocation.
func (inv *Invocation[R, M]) Data() *core.ProcessData[[]R] {
	return inv.data
}

func (inv *Invocation[R, M]) Phase() core.Phase {
	return inv.lifecycle.Phase
}

func (inv *Invocation[R, M]) History() []core.PhaseChange {
	return append([]core.PhaseChange(nil), inv.lifecycle.History...)
}

func (inv *Invocation[R, M]) Run(ctx context.Context) core.ProcessResult {
	def := inv.def
	if ctx == nil {
		ctx = context.Background()
	}
	if err := core.ValidateParameters(inv.params, def.Rules...); err != nil {
		inv.lifecycle.Fail()
		inv.logger.Warn("process parameters rejected", inv.fields("error", err.Error())...)
		return core.FailedResultFromError(def.ProcessID, err)
	}

	if err := inv.lifecycle.TransitionTo(core.PhaseFetching); err != nil {
		return inv.fail("fetch", err)
	}
	loaded, err := inv.data.GetData(ctx)
	if err != nil {
		return inv.fail("fetch", err)
	}
	records := *loaded
	if len(records) == 0 {
		// Zero work still walks every phase; compute and write-back are not called.
		for _, phase := range []core.Phase{core.PhaseComputing, core.PhaseWritingBack, core.PhaseCompleted} {
			if err := inv.lifecycle.TransitionTo(phase); err != nil {
				return inv.fail("complete", err)
			}
		}
		inv.logger.Info("no records to process", inv.fields()...)
		return core.NewCompletedResult(def.ProcessID, fmt.Sprintf("%s: no records to process", inv.message()))
	}

	if err := inv.lifecycle.TransitionTo(core.PhaseComputing); err != nil {
		return inv.fail("compute", err)
	}
	if def.Compute == nil || def.WriteBack == nil {
		return inv.fail("compute", core.InternalError(fmt.Sprintf("processkit: %s is missing a compute or write-back phase", def.Name)))
	}
	mutation, err := def.Compute(inv.params, records)
	if err != nil {
		return inv.fail("compute", err)
	}

	if err := inv.lifecycle.TransitionTo(core.PhaseWritingBack); err != nil {
		return inv.fail("write_back", err)
	}
	outcome, err := def.WriteBack(ctx, inv.params, mutation)
	if err != nil {
		if !outcome.HasErrors() {
			return inv.fail("write_back", err)
		}
		inv.lifecycle.Fail()
		inv.logger.Error("write-back rejected", inv.fields("error", err.Error(), "failed", outcome.Failed())...)
		result := core.ResultFromOutcome(def.ProcessID, outcome, core.FailOnPartial, inv.message())
		result.Errors = append([]string{core.FailedResultFromError(def.ProcessID, err).Errors[0]}, result.Errors...)
		return result
	}

	result := core.ResultFromOutcome(def.ProcessID, outcome, def.Policy, inv.message())
	switch result.Status {
	case core.ProcessStatusSuccessful:
		_ = inv.lifecycle.TransitionTo(core.PhaseCompleted)
		inv.logger.Info("process completed", inv.fields("total_processed", result.TotalProcessed, "total_records", result.TotalRecords)...)
	case core.ProcessStatusPartialSuccess:
		_ = inv.lifecycle.TransitionTo(core.PhasePartiallyCompleted)
		inv.logger.Warn("process partially completed", inv.fields("total_processed", result.TotalProcessed, "total_records", result.TotalRecords, "failed", outcome.Failed())...)
	default:
		inv.lifecycle.Fail()
		inv.logger.Error("process failed", inv.fields("total_processed", result.TotalProcessed, "total_records", result.TotalRecords, "failed", outcome.Failed())...)
	}
	return result
}

func (inv *Invocation[R, M]) fail(phase string, err error) core.ProcessResult {
	inv.lifecycle.Fail()
	inv.logger.Error("process phase failed", inv.fields("phase", phase, "error", err.Error())...)
	return core.FailedResultFromError(inv.def.ProcessID, err)
}

func (inv *Invocation[R, M]) message() string {
	if inv.def.Message != "" {
		return inv.def.Message
	}
	return inv.def.Name
}

func (inv *Invocation[R, M]) fields(extra ...any) []any {
	out := []any{"process_id", inv.def.ProcessID, "process_name", inv.def.Name}
	if inv.params.CallerID != "" {
		out = append(out, "caller_id", inv.params.CallerID)
	}
	return append(out, extra...)
}

// Logger resolves the named logger for a provider.
func Logger(name string, provider core.LoggerProvider, logger core.Logger) core.Logger {
	_, resolved := glog.Resolve("processes.provider."+name, provider, logger)
	return glog.Ensure(resolved)
}
