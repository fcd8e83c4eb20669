package command

import (
	"context"
	"encoding/json"

	gocmd "github.com/goliatone/go-command"
	"github.com/goliatone/go-processes/core"
)

// Dispatcher is the part of core.Dispatcher the commands need.
type Dispatcher interface {
	RunProcessByID(ctx context.Context, processID int, params core.ProcessParameter) (core.ProcessResult, error)
	RunBatch(ctx context.Context, batchTypeID int, document json.RawMessage) (any, error)
}

type RunProcessCommand struct {
	dispatcher Dispatcher
}

func NewRunProcessCommand(dispatcher Dispatcher) *RunProcessCommand {
	return &RunProcessCommand{dispatcher: dispatcher}
}

// Execute stores the ProcessResult in the context result collector. Failed
// runs are not errors; only dispatch failures are returned.
func (c *RunProcessCommand) Execute(ctx context.Context, msg RunProcessMessage) error {
	if c == nil || c.dispatcher == nil {
		return missingDependency("process dispatcher")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.dispatcher.RunProcessByID(ctx, msg.ProcessID, msg.Parameters)
	if err != nil {
		return err
	}
	storeResult(ctx, out)
	return nil
}

type RunBatchCommand struct {
	dispatcher Dispatcher
}

func NewRunBatchCommand(dispatcher Dispatcher) *RunBatchCommand {
	return &RunBatchCommand{dispatcher: dispatcher}
}

// Execute stores whatever the batch provider returned. Providers that report
// a ProcessResult can be read back with a core.ProcessResult collector.
func (c *RunBatchCommand) Execute(ctx context.Context, msg RunBatchMessage) error {
	if c == nil || c.dispatcher == nil {
		return missingDependency("batch dispatcher")
	}
	if err := msg.Validate(); err != nil {
		return err
	}
	out, err := c.dispatcher.RunBatch(ctx, msg.BatchTypeID, msg.Document)
	if err != nil {
		return err
	}
	if result, ok := out.(core.ProcessResult); ok {
		storeResult(ctx, result)
		return nil
	}
	storeResult(ctx, out)
	return nil
}

func storeResult[T any](ctx context.Context, value T) {
	collector := gocmd.ResultFromContext[T](ctx)
	if collector == nil {
		return
	}
	collector.Store(value)
}
