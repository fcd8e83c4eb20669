package providers

import (
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers/bulkupdate"
	"github.com/goliatone/go-processes/providers/funding"
	"github.com/goliatone/go-processes/providers/goodstanding"
	"github.com/goliatone/go-processes/providers/inactiveclosure"
	"github.com/goliatone/go-processes/providers/notification"
	"github.com/goliatone/go-processes/providers/processkit"
)

// Config carries per-provider tuning. Notification can be disabled for
// deployments without a notification identity.
type Config struct {
	Funding             funding.Config
	GoodStanding        goodstanding.Config
	InactiveClosure     inactiveclosure.Config
	Notification        notification.Config
	DisableNotification bool
}

func DefaultConfig() Config {
	return Config{
		Funding:         funding.DefaultConfig(),
		GoodStanding:    goodstanding.DefaultConfig(),
		InactiveClosure: inactiveclosure.DefaultConfig(),
		Notification:    notification.DefaultConfig(),
	}
}

// Set is the list of providers ready to hand to core.WithProcessProviders and
// core.WithBatchProviders.
type Set struct {
	Processes []core.ProcessProvider
	Batches   []core.BatchProvider
}

// Options returns the dispatcher options registering the set.
func (s Set) Options() []core.Option {
	return []core.Option{
		core.WithProcessProviders(s.Processes...),
		core.WithBatchProviders(s.Batches...),
	}
}

// Builtins constructs every built-in provider. Identity resolution happens
// here, so a missing role fails at startup rather than on the first run.
func Builtins(c *client.Client, registry *core.CredentialRegistry, cfg Config, opts ...processkit.Option) (Set, error) {
	set := Set{}

	fundingProvider, err := funding.New(c, registry, cfg.Funding, opts...)
	if err != nil {
		return Set{}, err
	}
	goodStandingProvider, err := goodstanding.New(c, registry, cfg.GoodStanding, opts...)
	if err != nil {
		return Set{}, err
	}
	closureProvider, err := inactiveclosure.New(c, registry, cfg.InactiveClosure, opts...)
	if err != nil {
		return Set{}, err
	}
	set.Processes = append(set.Processes, fundingProvider, goodStandingProvider, closureProvider)

	if !cfg.DisableNotification {
		notificationProvider, err := notification.New(c, registry, cfg.Notification, opts...)
		if err != nil {
			return Set{}, err
		}
		set.Processes = append(set.Processes, notificationProvider)
	}

	bulk, err := bulkupdate.New(c, registry, opts...)
	if err != nil {
		return Set{}, err
	}
	set.Batches = append(set.Batches, bulk)
	return set, nil
}
