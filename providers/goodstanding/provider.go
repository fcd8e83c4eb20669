// Package goodstanding verifies that an organization satisfies every
// required, unexpired requirement and records the verdict on it.
package goodstanding

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/processkit"
)

const (
	ProcessID = 2
	Name      = "good-standing-verification"
)

// Requirement is one organization requirement record.
type Requirement struct {
	ID        string     `json:"organizationrequirementid"`
	Name      string     `json:"name"`
	Required  bool       `json:"isrequired"`
	Status    int        `json:"statuscode"`
	ExpiresOn *time.Time `json:"expireson"`
}

// Verdict is the write-back for one organization.
type Verdict struct {
	OrganizationID string
	GoodStanding   bool
	Outstanding    []string
	VerifiedOn     time.Time
}

type Config struct {
	RequirementEntity     string
	RequirementEntitySet  string
	OrganizationEntitySet string
	// SatisfiedStatus is the status code of a met requirement.
	SatisfiedStatus int
}

func DefaultConfig() Config {
	return Config{
		RequirementEntity:     "organizationrequirement",
		RequirementEntitySet:  "organizationrequirements",
		OrganizationEntitySet: "accounts",
		SatisfiedStatus:       2,
	}
}

type Provider struct {
	base processkit.Base
	cfg  Config
}

func New(c *client.Client, registry *core.CredentialRegistry, cfg Config, opts ...processkit.Option) (*Provider, error) {
	defaults := DefaultConfig()
	if cfg.RequirementEntity == "" {
		cfg.RequirementEntity = defaults.RequirementEntity
	}
	if cfg.RequirementEntitySet == "" {
		cfg.RequirementEntitySet = defaults.RequirementEntitySet
	}
	if cfg.OrganizationEntitySet == "" {
		cfg.OrganizationEntitySet = defaults.OrganizationEntitySet
	}
	if cfg.SatisfiedStatus == 0 {
		cfg.SatisfiedStatus = defaults.SatisfiedStatus
	}
	base, err := processkit.NewBase(Name, c, registry, core.RoleSystem, opts...)
	if err != nil {
		return nil, err
	}
	return &Provider{base: base, cfg: cfg}, nil
}

func (*Provider) ID() int {
	return ProcessID
}

func (*Provider) Name() string {
	return Name
}

func (p *Provider) Run(ctx context.Context, params core.ProcessParameter) core.ProcessResult {
	return processkit.Run(ctx, processkit.Definition[Requirement, Verdict]{
		ProcessID: ProcessID,
		Name:      Name,
		Rules:     []core.ValidationRule{core.RequireOrganizationID},
		Fetch:     p.fetch,
		Compute:   p.compute,
		WriteBack: p.writeBack,
		Policy:    core.FailOnPartial,
		Message:   "good standing verification",
		Logger:    p.base.Logger,
		Now:       p.base.Now,
	}, params)
}

// Query is the FetchXML read of an organization's active requirements.
func (p *Provider) Query(params core.OrganizationVerificationParameters) client.FetchQuery {
	conditions := []client.FetchCondition{
		{Attribute: "organizationid", Operator: "eq", Value: params.OrganizationID},
		{Attribute: "statecode", Operator: "eq", Value: "0"},
	}
	if params.ProgramYear > 0 {
		conditions = append(conditions, client.FetchCondition{Attribute: "programyear", Operator: "eq", Value: strconv.Itoa(params.ProgramYear)})
	}
	return client.FetchQuery{
		Entity:     p.cfg.RequirementEntity,
		EntitySet:  p.cfg.RequirementEntitySet,
		Attributes: []string{"organizationrequirementid", "name", "isrequired", "statuscode", "expireson"},
		Filter:     client.FetchFilter{Type: "and", Conditions: conditions},
		Orders:     []client.FetchOrder{{Attribute: "name"}},
	}
}

func (p *Provider) fetch(ctx context.Context, params core.ProcessParameter) ([]Requirement, error) {
	return processkit.FetchAllXML[Requirement](ctx, p.base, p.Query(*params.OrganizationVerification))
}

func (p *Provider) compute(params core.ProcessParameter, requirements []Requirement) (Verdict, error) {
	return Evaluate(p.cfg, params.OrganizationVerification.OrganizationID, requirements, params.ReferenceTime(p.base.Now)), nil
}

// Evaluate marks an organization in good standing when no required
// requirement is unmet or expired at the reference time.
func Evaluate(cfg Config, organizationID string, requirements []Requirement, at time.Time) Verdict {
	outstanding := make([]string, 0)
	for _, requirement := range requirements {
		if !requirement.Required {
			continue
		}
		satisfied := requirement.Status == cfg.SatisfiedStatus
		expired := requirement.ExpiresOn != nil && !requirement.ExpiresOn.After(at)
		if satisfied && !expired {
			continue
		}
		name := strings.TrimSpace(requirement.Name)
		if name == "" {
			name = requirement.ID
		}
		outstanding = append(outstanding, name)
	}
	return Verdict{
		OrganizationID: organizationID,
		GoodStanding:   len(outstanding) == 0,
		Outstanding:    outstanding,
		VerifiedOn:     at,
	}
}

func (p *Provider) writeBack(ctx context.Context, _ core.ProcessParameter, verdict Verdict) (core.BatchOutcome, error) {
	body := map[string]any{
		"goodstanding":            verdict.GoodStanding,
		"goodstandingverifiedon":  verdict.VerifiedOn.Format(time.RFC3339),
		"outstandingrequirements": strings.Join(verdict.Outstanding, "; "),
	}
	return processkit.PatchOne(ctx, p.base, client.EntityPath(p.cfg.OrganizationEntitySet, verdict.OrganizationID), body)
}

var _ core.ProcessProvider = (*Provider)(nil)
