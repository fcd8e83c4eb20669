package processkit

import (
	"strings"
	"time"

	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
)

// Settings are the collaborators every provider constructor accepts.
type Settings struct {
	Role           string
	Logger         core.Logger
	LoggerProvider core.LoggerProvider
	Now            func() time.Time
}

type Option func(*Settings)

// WithRole selects the service identity role the provider acts as.
func WithRole(role string) Option {
	return func(s *Settings) {
		if role = strings.TrimSpace(role); role != "" {
			s.Role = role
		}
	}
}

func WithLogger(logger core.Logger) Option {
	return func(s *Settings) {
		s.Logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(s *Settings) {
		s.LoggerProvider = provider
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Settings) {
		if now != nil {
			s.Now = now
		}
	}
}

func ApplyOptions(defaultRole string, opts ...Option) Settings {
	settings := Settings{
		Role: defaultRole,
		Now:  func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&settings)
		}
	}
	return settings
}

// Base holds what every provider resolves at construction: the client, the
// identity for its role and a named logger.
type Base struct {
	Client   *client.Client
	Identity core.ServiceIdentity
	Logger   core.Logger
	Now      func() time.Time
}

// NewBase resolves the identity for the configured role. A missing role is a
// startup error.
func NewBase(name string, c *client.Client, registry *core.CredentialRegistry, defaultRole string, opts ...Option) (Base, error) {
	if c == nil {
		return Base{}, core.ValidationFailed("client", name+" requires an entity-store client")
	}
	settings := ApplyOptions(defaultRole, opts...)
	identity, err := registry.Resolve(settings.Role)
	if err != nil {
		return Base{}, err
	}
	return Base{
		Client:   c,
		Identity: identity,
		Logger:   Logger(name, settings.LoggerProvider, settings.Logger),
		Now:      settings.Now,
	}, nil
}
