package core

import (
	"strings"
	"time"
)

// ProcessRun is one persisted dispatcher run.
type ProcessRun struct {
	ID                string
	ProcessID         int
	ProcessName       string
	Status            ProcessStatus
	CompletedNoErrors bool
	TotalProcessed    int
	TotalRecords      int
	ResultMessage     string
	Errors            []string
	CallerID          string
	TriggeredBy       string
	StartedAt         time.Time
	CompletedAt       time.Time
	DurationMS        int64
}

// NewProcessRun flattens a run record for storage. The id is left to the
// store.
func NewProcessRun(record RunRecord) ProcessRun {
	return ProcessRun{
		ProcessID:         record.ProcessID,
		ProcessName:       record.ProcessName,
		Status:            record.Result.Status,
		CompletedNoErrors: record.Result.CompletedNoErrors,
		TotalProcessed:    record.Result.TotalProcessed,
		TotalRecords:      record.Result.TotalRecords,
		ResultMessage:     record.Result.ResultMessage,
		Errors:            copyStrings(record.Result.Errors),
		CallerID:          strings.TrimSpace(record.Parameters.CallerID),
		TriggeredBy:       strings.TrimSpace(record.Parameters.TriggeredBy),
		StartedAt:         record.StartedAt.UTC(),
		CompletedAt:       record.Result.CompletedAt.UTC(),
		DurationMS:        record.Duration.Milliseconds(),
	}
}

// Result rebuilds the ProcessResult the run produced.
func (r ProcessRun) Result() ProcessResult {
	return ProcessResult{
		ProcessID:         r.ProcessID,
		CompletedNoErrors: r.CompletedNoErrors,
		Status:            r.Status,
		TotalProcessed:    r.TotalProcessed,
		TotalRecords:      r.TotalRecords,
		CompletedAt:       r.CompletedAt,
		ResultMessage:     r.ResultMessage,
		Errors:            copyStrings(r.Errors),
	}
}

type ProcessRunFilter struct {
	ProcessID int
	Status    ProcessStatus
	CallerID  string
	From      *time.Time
	To        *time.Time
	Page      int
	PerPage   int
}

type ProcessRunPage struct {
	Items   []ProcessRun
	Page    int
	PerPage int
	Total   int
	HasNext bool
}
