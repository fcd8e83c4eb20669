package core

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fixedConfigProvider struct {
	cfg Config
	err error
}

func (p *fixedConfigProvider) Load(context.Context, Config) (Config, error) {
	return p.cfg, p.err
}

type fixedOptionsResolver struct {
	cfg Config
}

func (r *fixedOptionsResolver) Resolve(Config, Config, Config) (Config, error) {
	return r.cfg, nil
}

func TestNewDispatcher_DefaultDependencies(t *testing.T) {
	dispatcher, err := NewDispatcher(Config{})
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if dispatcher.logger == nil {
		t.Fatalf("expected default logger")
	}
	if dispatcher.LoggerProvider() == nil {
		t.Fatalf("expected default logger provider")
	}
	if dispatcher.errorMapper == nil {
		t.Fatalf("expected default error mapper")
	}
	if _, ok := dispatcher.metricsRecorder.(NopMetricsRecorder); !ok {
		t.Fatalf("expected nop metrics recorder, got %T", dispatcher.metricsRecorder)
	}
	cfg := dispatcher.Config()
	if cfg.ServiceName != "processes" {
		t.Fatalf("expected default service name, got %q", cfg.ServiceName)
	}
	if cfg.Endpoints.RequestTimeout != DefaultRequestTimeout {
		t.Fatalf("expected default timeout, got %s", cfg.Endpoints.RequestTimeout)
	}
}

func TestNewDispatcher_CustomResolverWins(t *testing.T) {
	custom := DefaultConfig()
	custom.ServiceName = "custom"
	custom.Auth.ExpiryGuard = 2 * time.Minute
	dispatcher, err := NewDispatcher(Config{},
		WithConfigProvider(&fixedConfigProvider{cfg: DefaultConfig()}),
		WithOptionsResolver(&fixedOptionsResolver{cfg: custom}),
	)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	if dispatcher.Config().ServiceName != "custom" || dispatcher.Config().Auth.ExpiryGuard != 2*time.Minute {
		t.Fatalf("expected resolver output, got %#v", dispatcher.Config())
	}
}

func TestNewDispatcher_ConfigProviderErrorIsMapped(t *testing.T) {
	_, err := NewDispatcher(Config{}, WithConfigProvider(&fixedConfigProvider{err: errors.New("config file invalid")}))
	if err == nil {
		t.Fatalf("expected config error")
	}
	if !IsValidationFailed(err) {
		t.Fatalf("expected mapped validation error, got %v", err)
	}
}

func TestGoOptionsResolver_IdentitiesFromLoadedLayer(t *testing.T) {
	loaded := Config{Identities: []IdentityConfig{{
		ID:           "system",
		Role:         "System",
		TenantID:     "tenant",
		ClientID:     "client",
		ClientSecret: "secret",
		BaseURL:      "https://org.example.com/",
	}}}
	resolved, err := GoOptionsResolver{}.Resolve(DefaultConfig(), loaded, Config{})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if len(resolved.Identities) != 1 || resolved.Identities[0].ID != "system" {
		t.Fatalf("expected identity from loaded layer, got %#v", resolved.Identities)
	}

	registry, err := NewCredentialRegistryFromConfig(resolved)
	if err != nil {
		t.Fatalf("registry from config: %v", err)
	}
	identity, err := registry.Resolve("system")
	if err != nil {
		t.Fatalf("resolve system role: %v", err)
	}
	if identity.BaseURL != "https://org.example.com" {
		t.Fatalf("expected trimmed base url, got %q", identity.BaseURL)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Identities = []IdentityConfig{{ID: "broken", Role: "system"}}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected invalid identity to fail validation")
	}
	cfg = DefaultConfig()
	cfg.Endpoints.DefaultPageSize = -1
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected negative page size to fail validation")
	}
}
