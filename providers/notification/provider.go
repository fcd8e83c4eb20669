// Package notification creates one follow-up task per active contact of a
// program, prioritized by how close the due date is.
package notification

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/goliatone/go-processes/batch"
	"github.com/goliatone/go-processes/calc"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/processkit"
	"github.com/shopspring/decimal"
)

const (
	ProcessID = 4
	Name      = "notification-batch"
)

const (
	PriorityLow    = 0
	PriorityNormal = 1
	PriorityHigh   = 2
)

type Recipient struct {
	ID       string `json:"contactid"`
	FullName string `json:"fullname"`
	Email    string `json:"emailaddress1"`
}

type Config struct {
	RecipientEntitySet string
	ActivityEntitySet  string
	ProgramLookupField string
	// Priorities maps whole days until the due date to a task priority.
	Priorities calc.StepSchedule[int]
}

func DefaultPriorities() calc.StepSchedule[int] {
	schedule, err := calc.NewStepSchedule(
		[]decimal.Decimal{decimal.NewFromInt(3), decimal.NewFromInt(14)},
		[]int{PriorityHigh, PriorityNormal, PriorityLow},
	)
	if err != nil {
		panic(err)
	}
	return schedule
}

func DefaultConfig() Config {
	return Config{
		RecipientEntitySet: "contacts",
		ActivityEntitySet:  "tasks",
		ProgramLookupField: "_programid_value",
		Priorities:         DefaultPriorities(),
	}
}

type Provider struct {
	base     processkit.Base
	cfg      Config
	composer *batch.Composer
}

func New(c *client.Client, registry *core.CredentialRegistry, cfg Config, opts ...processkit.Option) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.RecipientEntitySet == "" {
		cfg.RecipientEntitySet = defaults.RecipientEntitySet
	}
	if cfg.ActivityEntitySet == "" {
		cfg.ActivityEntitySet = defaults.ActivityEntitySet
	}
	if cfg.ProgramLookupField == "" {
		cfg.ProgramLookupField = defaults.ProgramLookupField
	}
	if cfg.Priorities.Len() == 0 {
		cfg.Priorities = defaults.Priorities
	}
	base, err := processkit.NewBase(Name, c, registry, core.RoleNotification, opts...)
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
	return processkit.Run(ctx, processkit.Definition[Recipient, []batch.Operation]{
		ProcessID: ProcessID,
		Name:      Name,
		Rules:     []core.ValidationRule{core.RequireNotification},
		Fetch:     p.fetch,
		Compute:   p.compute,
		WriteBack: p.writeBack,
		Policy:    core.TolerateFailures,
		Message:   "notification batch",
		Logger:    p.base.Logger,
		Now:       p.base.Now,
	}, params)
}

func (p *Provider) fetch(ctx context.Context, params core.ProcessParameter) ([]Recipient, error) {
	query := client.Query{
		EntitySet: p.cfg.RecipientEntitySet,
		Select:    []string{"contactid", "fullname", "emailaddress1"},
		Filter: []client.Condition{
			client.Eq(p.cfg.ProgramLookupField, client.GUID(params.Notification.ProgramID)),
			client.Eq("statecode", 0),
		},
		OrderBy: []string{"fullname asc"},
	}
	return processkit.FetchAll[Recipient](ctx, p.base, query.String())
}

// Priority picks the task priority for a due date. No due date is the
// lowest priority.
func (p *Provider) Priority(due time.Time, at time.Time) int {
	if due.IsZero() {
		return p.cfg.Priorities.Lookup(decimal.NewFromInt(math.MaxInt32))
	}
	days := math.Floor(due.Sub(at).Hours() / 24)
	return p.cfg.Priorities.Lookup(decimal.NewFromFloat(days))
}

func (p *Provider) compute(params core.ProcessParameter, recipients []Recipient) ([]batch.Operation, error) {
	notice := params.Notification
	at := params.ReferenceTime(p.base.Now)
	priority := p.Priority(notice.DueOn, at)
	ops := make([]batch.Operation, 0, len(recipients))
	for _, recipient := range recipients {
		if strings.TrimSpace(recipient.ID) == "" {
			continue
		}
		body := map[string]any{
			"subject":                              notice.Subject,
			"description":                          notice.Message,
			"prioritycode":                         priority,
			"regardingobjectid_contact@odata.bind": fmt.Sprintf("/%s", client.EntityPath(p.cfg.RecipientEntitySet, recipient.ID)),
		}
		if !notice.DueOn.IsZero() {
			body["scheduledend"] = notice.DueOn.UTC().Format(time.RFC3339)
		}
		ops = append(ops, batch.Create(p.cfg.ActivityEntitySet, body))
	}
	if len(ops) == 0 {
		return nil, core.DeserializationFailed(fmt.Errorf("no recipient carried a contact id"), p.cfg.RecipientEntitySet)
	}
	return ops, nil
}

func (p *Provider) writeBack(ctx context.Context, params core.ProcessParameter, ops []batch.Operation) (core.BatchOutcome, error) {
	return p.composer.Submit(ctx, p.base.Identity, ops, params.CallerID)
}

var _ core.ProcessProvider = (*Provider)(nil)
