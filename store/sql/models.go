package sqlstore

import (
	"strings"
	"time"

	"github.com/goliatone/go-processes/core"
	"github.com/uptrace/bun"
)

type processRunRecord struct {
	bun.BaseModel `bun:"table:process_runs,alias:pr"`

	ID                string    `bun:"id,pk"`
	ProcessID         int       `bun:"process_id,notnull"`
	ProcessName       string    `bun:"process_name,notnull"`
	Status            string    `bun:"status,notnull"`
	CompletedNoErrors bool      `bun:"completed_no_errors,notnull"`
	TotalProcessed    int       `bun:"total_processed,notnull"`
	TotalRecords      int       `bun:"total_records,notnull"`
	ResultMessage     string    `bun:"result_message,notnull"`
	Errors            []string  `bun:"errors,type:jsonb,notnull"`
	CallerID          string    `bun:"caller_id,notnull"`
	TriggeredBy       string    `bun:"triggered_by,notnull"`
	StartedAt         time.Time `bun:"started_at,notnull"`
	CompletedAt       time.Time `bun:"completed_at,notnull"`
	DurationMS        int64     `bun:"duration_ms,notnull"`
	CreatedAt         time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
}

func processRunRecordFromDomain(run core.ProcessRun) *processRunRecord {
	errs := make([]string, 0, len(run.Errors))
	errs = append(errs, run.Errors...)
	return &processRunRecord{
		ID:                strings.TrimSpace(run.ID),
		ProcessID:         run.ProcessID,
		ProcessName:       strings.TrimSpace(run.ProcessName),
		Status:            string(run.Status),
		CompletedNoErrors: run.CompletedNoErrors,
		TotalProcessed:    run.TotalProcessed,
		TotalRecords:      run.TotalRecords,
		ResultMessage:     run.ResultMessage,
		Errors:            errs,
		CallerID:          strings.TrimSpace(run.CallerID),
		TriggeredBy:       strings.TrimSpace(run.TriggeredBy),
		StartedAt:         run.StartedAt.UTC(),
		CompletedAt:       run.CompletedAt.UTC(),
		DurationMS:        run.DurationMS,
	}
}

func (r *processRunRecord) toDomain() core.ProcessRun {
	if r == nil {
		return core.ProcessRun{}
	}
	return core.ProcessRun{
		ID:                r.ID,
		ProcessID:         r.ProcessID,
		ProcessName:       r.ProcessName,
		Status:            core.ProcessStatus(r.Status),
		CompletedNoErrors: r.CompletedNoErrors,
		TotalProcessed:    r.TotalProcessed,
		TotalRecords:      r.TotalRecords,
		ResultMessage:     r.ResultMessage,
		Errors:            append([]string(nil), r.Errors...),
		CallerID:          r.CallerID,
		TriggeredBy:       r.TriggeredBy,
		StartedAt:         r.StartedAt.UTC(),
		CompletedAt:       r.CompletedAt.UTC(),
		DurationMS:        r.DurationMS,
	}
}
