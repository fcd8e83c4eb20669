// Package funding computes an application's funding award from the
// enrollment of its sites.
package funding

import (
	"context"
	"encoding/json"
	"time"

	"github.com/goliatone/go-processes/calc"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/processkit"
	"github.com/shopspring/decimal"
)

const (
	ProcessID = 1
	Name      = "funding-calculation"
)

// Site is one application site as stored in the entity-store.
type Site struct {
	ID                  string          `json:"applicationsiteid"`
	Name                string          `json:"name"`
	Enrolled            decimal.Decimal `json:"enrolledparticipants"`
	LowIncomePercentage decimal.Decimal `json:"lowincomepercentage"`
}

// Award is the computed write-back for one application.
type Award struct {
	ApplicationID       string
	LowIncomePercentage decimal.Decimal
	Rate                decimal.Decimal
	Enrolled            decimal.Decimal
	Amount              decimal.Decimal
	CalculatedOn        time.Time
}

type Config struct {
	SiteEntitySet        string
	ApplicationEntitySet string
	// Band splits the weighted low-income percentage; Rates holds the
	// per-participant rate for each side of it.
	Band  calc.Band
	Rates calc.ThreeWay[decimal.Decimal]
}

func DefaultConfig() Config {
	return Config{
		SiteEntitySet:        "applicationsites",
		ApplicationEntitySet: "applications",
		Band: calc.Band{
			Lower: decimal.NewFromInt(40),
			Upper: decimal.NewFromInt(60),
		},
		Rates: calc.ThreeWay[decimal.Decimal]{
			Below:   decimal.NewFromInt(1200),
			Between: decimal.NewFromInt(1450),
			Above:   decimal.NewFromInt(1700),
		},
	}
}

type Provider struct {
	base processkit.Base
	cfg  Config
}

func New(c *client.Client, registry *core.CredentialRegistry, cfg Config, opts ...processkit.Option) (*Provider, error) {
	if _, err := calc.NewBand(cfg.Band.Lower, cfg.Band.Upper); err != nil {
		return nil, err
	}
	defaults := DefaultConfig()
	if cfg.SiteEntitySet == "" {
		cfg.SiteEntitySet = defaults.SiteEntitySet
	}
	if cfg.ApplicationEntitySet == "" {
		cfg.ApplicationEntitySet = defaults.ApplicationEntitySet
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
	return processkit.Run(ctx, p.definition(), params)
}

func (p *Provider) definition() processkit.Definition[Site, Award] {
	return processkit.Definition[Site, Award]{
		ProcessID: ProcessID,
		Name:      Name,
		Rules:     []core.ValidationRule{core.RequireFundingCalculation},
		Fetch:     p.fetch,
		Compute:   p.compute,
		WriteBack: p.writeBack,
		Policy:    core.FailOnPartial,
		Message:   "funding calculation",
		Logger:    p.base.Logger,
		Now:       p.base.Now,
	}
}

func (p *Provider) fetch(ctx context.Context, params core.ProcessParameter) ([]Site, error) {
	query := client.Query{
		EntitySet: p.cfg.SiteEntitySet,
		Select:    []string{"applicationsiteid", "name", "enrolledparticipants", "lowincomepercentage"},
		Filter: []client.Condition{
			client.Eq("_applicationid_value", client.GUID(params.FundingCalculation.ApplicationID)),
			client.Eq("statecode", 0),
		},
	}
	return processkit.FetchAll[Site](ctx, p.base, query.String())
}

func (p *Provider) compute(params core.ProcessParameter, sites []Site) (Award, error) {
	return Compute(p.cfg, params.FundingCalculation.ApplicationID, sites, params.ReferenceTime(p.base.Now)), nil
}

// Compute weighs each site's low-income percentage by its enrollment, rounds
// the result to a whole percentage and prices the total enrollment at the
// rate of the band it falls in.
func Compute(cfg Config, applicationID string, sites []Site, at time.Time) Award {
	weighted := make([]calc.Weighted, 0, len(sites))
	enrolled := decimal.Zero
	for _, site := range sites {
		weighted = append(weighted, calc.Weighted{Weight: site.Enrolled, Percentage: site.LowIncomePercentage})
		enrolled = enrolled.Add(site.Enrolled)
	}
	percentage := calc.RoundHalfAwayFromZero(calc.WeightedPercentage(weighted), 0)
	rate := cfg.Rates.Select(cfg.Band, percentage)
	return Award{
		ApplicationID:       applicationID,
		LowIncomePercentage: percentage,
		Rate:                rate,
		Enrolled:            enrolled,
		Amount:              calc.Money(rate.Mul(enrolled)),
		CalculatedOn:        at,
	}
}

func (p *Provider) writeBack(ctx context.Context, _ core.ProcessParameter, award Award) (core.BatchOutcome, error) {
	body := map[string]any{
		"lowincomepercentage": json.Number(award.LowIncomePercentage.String()),
		"perparticipantrate":  json.Number(award.Rate.StringFixed(2)),
		"totalenrolled":       json.Number(award.Enrolled.String()),
		"fundingamount":       json.Number(award.Amount.StringFixed(2)),
		"fundingcalculatedon": award.CalculatedOn.Format(time.RFC3339),
	}
	return processkit.PatchOne(ctx, p.base, client.EntityPath(p.cfg.ApplicationEntitySet, award.ApplicationID), body)
}

var _ core.ProcessProvider = (*Provider)(nil)
