package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-processes/core"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

const defaultRunsPerPage = 25

// ProcessRunStore persists dispatcher runs in the process_runs table.
type ProcessRunStore struct {
	db   *bun.DB
	repo repository.Repository[*processRunRecord]
}

func NewProcessRunStore(db *bun.DB) (*ProcessRunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	repo := repository.NewRepository[*processRunRecord](db, processRunHandlers())
	if validator, ok := repo.(repository.Validator); ok {
		if err := validator.Validate(); err != nil {
			return nil, fmt.Errorf("sqlstore: invalid process run repository wiring: %w", err)
		}
	}
	return &ProcessRunStore{db: db, repo: repo}, nil
}

// RecordRun stores a finished run under a fresh id.
func (s *ProcessRunStore) RecordRun(ctx context.Context, record core.RunRecord) error {
	_, err := s.Save(ctx, core.NewProcessRun(record))
	return err
}

// Save inserts run and returns it with its assigned id.
func (s *ProcessRunStore) Save(ctx context.Context, run core.ProcessRun) (core.ProcessRun, error) {
	if s == nil || s.repo == nil {
		return core.ProcessRun{}, fmt.Errorf("sqlstore: process run store is not configured")
	}
	if run.ProcessID <= 0 {
		return core.ProcessRun{}, core.ValidationFailed("process_id", "process id must be positive")
	}
	if strings.TrimSpace(string(run.Status)) == "" {
		return core.ProcessRun{}, core.ValidationFailed("status", "run status is required")
	}
	record := processRunRecordFromDomain(run)
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.CompletedAt.IsZero() {
		record.CompletedAt = time.Now().UTC()
	}
	if record.StartedAt.IsZero() {
		record.StartedAt = record.CompletedAt
	}
	created, err := s.repo.Create(ctx, record)
	if err != nil {
		return core.ProcessRun{}, err
	}
	return created.toDomain(), nil
}

func (s *ProcessRunStore) GetRun(ctx context.Context, id string) (core.ProcessRun, error) {
	if s == nil || s.db == nil {
		return core.ProcessRun{}, fmt.Errorf("sqlstore: process run store is not configured")
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return core.ProcessRun{}, core.ValidationFailed("run_id", "run id is required")
	}
	record := &processRunRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.ProcessRun{}, core.RunNotFound(id)
		}
		return core.ProcessRun{}, err
	}
	return record.toDomain(), nil
}

// ListRuns pages runs newest first.
func (s *ProcessRunStore) ListRuns(ctx context.Context, filter core.ProcessRunFilter) (core.ProcessRunPage, error) {
	if s == nil || s.repo == nil {
		return core.ProcessRunPage{}, fmt.Errorf("sqlstore: process run store is not configured")
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	perPage := filter.PerPage
	if perPage <= 0 {
		perPage = defaultRunsPerPage
	}
	offset := (page - 1) * perPage

	selectors := []repository.SelectCriteria{
		repository.OrderBy("completed_at DESC"),
		repository.SelectPaginate(perPage, offset),
	}
	if filter.ProcessID > 0 {
		processID := filter.ProcessID
		selectors = append(selectors, repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.process_id = ?", processID)
		}))
	}
	if status := strings.TrimSpace(string(filter.Status)); status != "" {
		selectors = append(selectors, repository.SelectBy("status", "=", status))
	}
	if callerID := strings.TrimSpace(filter.CallerID); callerID != "" {
		selectors = append(selectors, repository.SelectBy("caller_id", "=", callerID))
	}
	if filter.From != nil {
		selectors = append(selectors, repository.SelectByTimetz("completed_at", ">=", filter.From.UTC()))
	}
	if filter.To != nil {
		selectors = append(selectors, repository.SelectByTimetz("completed_at", "<=", filter.To.UTC()))
	}

	records, total, err := s.repo.List(ctx, selectors...)
	if err != nil {
		return core.ProcessRunPage{}, err
	}
	items := make([]core.ProcessRun, 0, len(records))
	for _, record := range records {
		items = append(items, record.toDomain())
	}
	return core.ProcessRunPage{
		Items:   items,
		Page:    page,
		PerPage: perPage,
		Total:   total,
		HasNext: offset+len(items) < total,
	}, nil
}

// Prune deletes runs completed before cutoff and reports how many were removed.
func (s *ProcessRunStore) Prune(ctx context.Context, cutoff time.Time) (int, error) {
	if s == nil || s.db == nil {
		return 0, fmt.Errorf("sqlstore: process run store is not configured")
	}
	res, err := s.db.NewDelete().
		Model((*processRunRecord)(nil)).
		Where("completed_at < ?", cutoff.UTC()).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	affected, _ := res.RowsAffected()
	return int(affected), nil
}
