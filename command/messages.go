package command

import (
	"bytes"
	"encoding/json"

	"github.com/goliatone/go-processes/core"
)

const (
	TypeRunProcess = "processes.command.process.run"
	TypeRunBatch   = "processes.command.batch.run"
)

type RunProcessMessage struct {
	ProcessID  int
	Parameters core.ProcessParameter
}

func (RunProcessMessage) Type() string { return TypeRunProcess }

func (m RunProcessMessage) Validate() error {
	if m.ProcessID <= 0 {
		return invalidMessage(TypeRunProcess, "process_id", "process id must be positive")
	}
	return nil
}

// RunProcessMessageFromRequest adapts the JSON dispatch request.
func RunProcessMessageFromRequest(req core.RunProcessRequest) RunProcessMessage {
	return RunProcessMessage{ProcessID: req.ProcessID, Parameters: req.Parameters}
}

type RunBatchMessage struct {
	BatchTypeID int
	Document    json.RawMessage
}

func (RunBatchMessage) Type() string { return TypeRunBatch }

func (m RunBatchMessage) Validate() error {
	if m.BatchTypeID <= 0 {
		return invalidMessage(TypeRunBatch, "batch_type_id", "batch type id must be positive")
	}
	if len(bytes.TrimSpace(m.Document)) == 0 {
		return invalidMessage(TypeRunBatch, "document", "batch document is required")
	}
	return nil
}

func RunBatchMessageFromRequest(req core.RunBatchRequest) RunBatchMessage {
	return RunBatchMessage{BatchTypeID: req.BatchTypeID, Document: req.Document}
}
