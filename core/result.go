package core

import (
	"fmt"
	"strings"
	"time"
)

type ProcessStatus string

const (
	ProcessStatusSuccessful     ProcessStatus = "Successful"
	ProcessStatusPartialSuccess ProcessStatus = "PartialSuccess"
	ProcessStatusFailed         ProcessStatus = "Failed"
	ProcessStatusCompleted      ProcessStatus = "Completed"
)

// ProcessResult is the only externally observable outcome of a process run.
// Build it through the constructors below; the Errors slice is copied on
// every constructor and accessor.
type ProcessResult struct {
	ProcessID         int           `json:"processId"`
	CompletedNoErrors bool          `json:"completedNoErrors"`
	Status            ProcessStatus `json:"status"`
	TotalProcessed    int           `json:"totalProcessed"`
	TotalRecords      int           `json:"totalRecords"`
	CompletedAt       time.Time     `json:"completedAt"`
	ResultMessage     string        `json:"resultMessage"`
	Errors            []string      `json:"errors"`
}

func NewSuccessfulResult(processID int, processed int, total int, message string) ProcessResult {
	return ProcessResult{
		ProcessID:         processID,
		CompletedNoErrors: true,
		Status:            ProcessStatusSuccessful,
		TotalProcessed:    processed,
		TotalRecords:      total,
		CompletedAt:       time.Now().UTC(),
		ResultMessage:     message,
		Errors:            []string{},
	}
}

// NewCompletedResult reports that there was nothing to do. It is not a failure.
func NewCompletedResult(processID int, message string) ProcessResult {
	return ProcessResult{
		ProcessID:         processID,
		CompletedNoErrors: true,
		Status:            ProcessStatusCompleted,
		CompletedAt:       time.Now().UTC(),
		ResultMessage:     message,
		Errors:            []string{},
	}
}

func NewPartialResult(processID int, processed int, total int, message string, errs []string) ProcessResult {
	return ProcessResult{
		ProcessID:      processID,
		Status:         ProcessStatusPartialSuccess,
		TotalProcessed: processed,
		TotalRecords:   total,
		CompletedAt:    time.Now().UTC(),
		ResultMessage:  message,
		Errors:         copyStrings(errs),
	}
}

func NewFailedResult(processID int, processed int, total int, message string, errs ...error) ProcessResult {
	details := make([]string, 0, len(errs))
	for _, err := range errs {
		if detail := errorDetail(err); detail != "" {
			details = append(details, detail)
		}
	}
	return ProcessResult{
		ProcessID:      processID,
		Status:         ProcessStatusFailed,
		TotalProcessed: processed,
		TotalRecords:   total,
		CompletedAt:    time.Now().UTC(),
		ResultMessage:  message,
		Errors:         details,
	}
}

// FailedResultFromError is the shorthand used at containment boundaries.
func FailedResultFromError(processID int, err error) ProcessResult {
	message := "process failed"
	if err != nil {
		message = fmt.Sprintf("process failed: %s", errorDetail(err))
	}
	return NewFailedResult(processID, 0, 0, message, err)
}

func (r ProcessResult) Succeeded() bool {
	return r.Status == ProcessStatusSuccessful || r.Status == ProcessStatusCompleted
}

// Retryable reports whether a failed run could succeed on a later attempt.
// Runs rejected by parameter validation never can.
func (r ProcessResult) Retryable() bool {
	if r.Status != ProcessStatusFailed {
		return false
	}
	for _, detail := range r.Errors {
		if strings.HasPrefix(detail, ErrorValidationFailed) {
			return false
		}
	}
	return true
}

func (r ProcessResult) Clone() ProcessResult {
	out := r
	out.Errors = copyStrings(r.Errors)
	return out
}

type BatchError struct {
	Index      int    `json:"index"`
	ContentID  string `json:"contentId"`
	Target     string `json:"target"`
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Operation  string `json:"operation"`
}

func (e BatchError) String() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("operation %d (%s) failed with status %d: %s; request: %s", e.Index+1, e.Target, e.StatusCode, e.Message, e.Operation)
	}
	return fmt.Sprintf("operation %d (%s) failed: %s; request: %s", e.Index+1, e.Target, e.Message, e.Operation)
}

// BatchOutcome is the decomposition of one multipart batch response.
type BatchOutcome struct {
	TotalRecords   int          `json:"totalRecords"`
	TotalProcessed int          `json:"totalProcessed"`
	Errors         []BatchError `json:"errors"`
}

// SingleWriteOutcome describes a single PATCH/POST write-back.
func SingleWriteOutcome(target string, statusCode int, message string, operation string) BatchOutcome {
	if statusCode >= 200 && statusCode < 300 {
		return BatchOutcome{TotalRecords: 1, TotalProcessed: 1, Errors: []BatchError{}}
	}
	return BatchOutcome{
		TotalRecords: 1,
		Errors: []BatchError{{
			Index:      0,
			ContentID:  "1",
			Target:     target,
			StatusCode: statusCode,
			Message:    message,
			Operation:  operation,
		}},
	}
}

func (o BatchOutcome) Failed() int {
	return len(o.Errors)
}

func (o BatchOutcome) HasErrors() bool {
	return len(o.Errors) > 0
}

// Append merges next after o. Error indexes in next are shifted past the
// records already counted in o.
func (o BatchOutcome) Append(next BatchOutcome) BatchOutcome {
	merged := BatchOutcome{
		TotalRecords:   o.TotalRecords + next.TotalRecords,
		TotalProcessed: o.TotalProcessed + next.TotalProcessed,
		Errors:         make([]BatchError, 0, len(o.Errors)+len(next.Errors)),
	}
	merged.Errors = append(merged.Errors, o.Errors...)
	for _, entry := range next.Errors {
		entry.Index += o.TotalRecords
		merged.Errors = append(merged.Errors, entry)
	}
	return merged
}

// Err returns a PartialBatchFailure when any part failed.
func (o BatchOutcome) Err() error {
	if !o.HasErrors() {
		return nil
	}
	return PartialBatchFailure(o)
}

func (o BatchOutcome) ErrorMessages() []string {
	out := make([]string, 0, len(o.Errors))
	for _, entry := range o.Errors {
		out = append(out, entry.String())
	}
	return out
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

// PartialPolicy decides how a write-back with some failed parts is reported.
type PartialPolicy int

const (
	// FailOnPartial reports any failed part as a Failed result.
	FailOnPartial PartialPolicy = iota
	// TolerateFailures reports a mix of processed and failed parts as PartialSuccess.
	TolerateFailures
)

func (p PartialPolicy) String() string {
	switch p {
	case TolerateFailures:
		return "tolerate_failures"
	default:
		return "fail_on_partial"
	}
}

// ResultFromOutcome maps a write-back outcome onto a ProcessResult.
func ResultFromOutcome(processID int, outcome BatchOutcome, policy PartialPolicy, message string) ProcessResult {
	if !outcome.HasErrors() {
		return NewSuccessfulResult(processID, outcome.TotalProcessed, outcome.TotalRecords, message)
	}
	errs := outcome.ErrorMessages()
	if policy == TolerateFailures && outcome.TotalProcessed > 0 {
		partial := fmt.Sprintf("%s: %d of %d records processed", message, outcome.TotalProcessed, outcome.TotalRecords)
		return NewPartialResult(processID, outcome.TotalProcessed, outcome.TotalRecords, partial, errs)
	}
	failed := NewFailedResult(processID, outcome.TotalProcessed, outcome.TotalRecords,
		fmt.Sprintf("%s: %d of %d records failed", message, outcome.Failed(), outcome.TotalRecords),
		outcome.Err(),
	)
	failed.Errors = append(failed.Errors, errs...)
	return failed
}
