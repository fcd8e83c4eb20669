// Package inactiveclosure deactivates records that have not been modified
// for a configured number of days.
package inactiveclosure

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-processes/batch"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/processkit"
)

const (
	ProcessID = 3
	Name      = "inactive-record-closure"
)

type Record map[string]any

type Config struct {
	// KeyFields maps an entity set to its primary key attribute. Sets not
	// listed use the singular set name plus "id".
	KeyFields map[string]string
	// ClosedState and ClosedStatus are written to every closed record.
	ClosedState  int
	ClosedStatus int
	// BatchSize caps the operations sent in one $batch request.
	BatchSize int
}

func DefaultConfig() Config {
	return Config{
		KeyFields: map[string]string{
			"accounts":      "accountid",
			"contacts":      "contactid",
			"opportunities": "opportunityid",
			"incidents":     "incidentid",
			"tasks":         "activityid",
		},
		ClosedState:  1,
		ClosedStatus: 2,
		BatchSize:    batch.MaxBatchOperations,
	}
}

func (c Config) keyField(entitySet string) string {
	if field, ok := c.KeyFields[entitySet]; ok && field != "" {
		return field
	}
	return strings.TrimSuffix(entitySet, "s") + "id"
}

type Provider struct {
	base     processkit.Base
	cfg      Config
	composer *batch.Composer
}

func New(c *client.Client, registry *core.CredentialRegistry, cfg Config, opts ...processkit.Option) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.KeyFields == nil {
		cfg.KeyFields = defaults.KeyFields
	}
	if cfg.ClosedState == 0 && cfg.ClosedStatus == 0 {
		cfg.ClosedState, cfg.ClosedStatus = defaults.ClosedState, defaults.ClosedStatus
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > batch.MaxBatchOperations {
		cfg.BatchSize = defaults.BatchSize
	}
	base, err := processkit.NewBase(Name, c, registry, core.RoleSystem, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{
		base:     base,
		cfg:      cfg,
		composer: batch.NewComposer(c, batch.WithLogger(base.Logger)),
	}, nil
}

func (*Provider) ID() int {
	return ProcessID
}

func (*Provider) Name() string {
	return Name
}

func (p *Provider) Run(ctx context.Context, params core.ProcessParameter) core.ProcessResult {
	return processkit.Run(ctx, processkit.Definition[Record, []batch.Operation]{
		ProcessID: ProcessID,
		Name:      Name,
		Rules:     []core.ValidationRule{core.RequireInactiveClosure},
		Fetch:     p.fetch,
		Compute:   p.compute,
		WriteBack: p.writeBack,
		Policy:    core.TolerateFailures,
		Message:   "inactive record closure",
		Logger:    p.base.Logger,
		Now:       p.base.Now,
	}, params)
}

// Cutoff is the modification instant before which a record counts as inactive.
func (p *Provider) Cutoff(params core.ProcessParameter) time.Time {
	days := params.InactiveClosure.InactiveDays
	return params.ReferenceTime(p.base.Now).AddDate(0, 0, -days)
}

func (p *Provider) fetch(ctx context.Context, params core.ProcessParameter) ([]Record, error) {
	set := strings.TrimSpace(params.InactiveClosure.EntitySet)
	query := client.Query{
		EntitySet: set,
		Select:    []string{p.cfg.keyField(set), "modifiedon"},
		Filter: []client.Condition{
			client.Eq("statecode", 0),
			client.Lt("modifiedon", p.Cutoff(params)),
		},
		OrderBy: []string{"modifiedon asc"},
		Top:     params.InactiveClosure.MaxRecords,
	}
	return processkit.FetchAll[Record](ctx, p.base, query.String())
}

func (p *Provider) compute(params core.ProcessParameter, records []Record) ([]batch.Operation, error) {
	set := strings.TrimSpace(params.InactiveClosure.EntitySet)
	key := p.cfg.keyField(set)
	ops := make([]batch.Operation, 0, len(records))
	for idx, record := range records {
		id, _ := record[key].(string)
		if strings.TrimSpace(id) == "" {
			return nil, core.DeserializationFailed(fmt.Errorf("record %d has no %s", idx, key), set)
		}
		ops = append(ops, batch.Update(set, id, map[string]any{
			"statecode":  p.cfg.ClosedState,
			"statuscode": p.cfg.ClosedStatus,
		}))
	}
	return ops, nil
}

func (p *Provider) writeBack(ctx context.Context, params core.ProcessParameter, ops []batch.Operation) (core.BatchOutcome, error) {
	return p.composer.SubmitChunked(ctx, p.base.Identity, ops, params.CallerID, p.cfg.BatchSize)
}

var _ core.ProcessProvider = (*Provider)(nil)
