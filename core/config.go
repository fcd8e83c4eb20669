package core

import (
	"fmt"
	"strings"
	"time"
)

const (
	DefaultAuthority        = "https://login.microsoftonline.com"
	DefaultAPIVersion       = "v9.2"
	DefaultSearchVersion    = "v1.0"
	DefaultRequestTimeout   = 30 * time.Second
	DefaultTokenExpiryGuard = 60 * time.Second
	DefaultPageSize         = 50
)

type IdentityConfig struct {
	ID           string `koanf:"id" mapstructure:"id"`
	Role         string `koanf:"role" mapstructure:"role"`
	TenantID     string `koanf:"tenant_id" mapstructure:"tenant_id"`
	ClientID     string `koanf:"client_id" mapstructure:"client_id"`
	ClientSecret string `koanf:"client_secret" mapstructure:"client_secret"`
	BaseURL      string `koanf:"base_url" mapstructure:"base_url"`
	Resource     string `koanf:"resource" mapstructure:"resource"`
}

type EndpointConfig struct {
	APIVersion      string        `koanf:"api_version" mapstructure:"api_version"`
	SearchVersion   string        `koanf:"search_version" mapstructure:"search_version"`
	RequestTimeout  time.Duration `koanf:"request_timeout" mapstructure:"request_timeout"`
	DefaultPageSize int           `koanf:"default_page_size" mapstructure:"default_page_size"`
}

type AuthConfig struct {
	Authority   string        `koanf:"authority" mapstructure:"authority"`
	ExpiryGuard time.Duration `koanf:"expiry_guard" mapstructure:"expiry_guard"`
}

type Config struct {
	ServiceName string           `koanf:"service_name" mapstructure:"service_name"`
	Auth        AuthConfig       `koanf:"auth" mapstructure:"auth"`
	Endpoints   EndpointConfig   `koanf:"endpoints" mapstructure:"endpoints"`
	Identities  []IdentityConfig `koanf:"identities" mapstructure:"identities"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName: "processes",
		Auth: AuthConfig{
			Authority:   DefaultAuthority,
			ExpiryGuard: DefaultTokenExpiryGuard,
		},
		Endpoints: EndpointConfig{
			APIVersion:      DefaultAPIVersion,
			SearchVersion:   DefaultSearchVersion,
			RequestTimeout:  DefaultRequestTimeout,
			DefaultPageSize: DefaultPageSize,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if c.Endpoints.DefaultPageSize < 0 {
		return fmt.Errorf("core: endpoints.default_page_size must not be negative")
	}
	if c.Endpoints.RequestTimeout < 0 {
		return fmt.Errorf("core: endpoints.request_timeout must not be negative")
	}
	if c.Auth.ExpiryGuard < 0 {
		return fmt.Errorf("core: auth.expiry_guard must not be negative")
	}
	for index, identity := range c.Identities {
		if err := identity.ToServiceIdentity().Validate(); err != nil {
			return fmt.Errorf("core: identities[%d]: %w", index, err)
		}
	}
	return nil
}

// WithDefaults fills zero-valued settings from DefaultConfig.
func (c Config) WithDefaults() Config {
	defaults := DefaultConfig()
	if strings.TrimSpace(c.ServiceName) == "" {
		c.ServiceName = defaults.ServiceName
	}
	if strings.TrimSpace(c.Auth.Authority) == "" {
		c.Auth.Authority = defaults.Auth.Authority
	}
	if c.Auth.ExpiryGuard == 0 {
		c.Auth.ExpiryGuard = defaults.Auth.ExpiryGuard
	}
	if strings.TrimSpace(c.Endpoints.APIVersion) == "" {
		c.Endpoints.APIVersion = defaults.Endpoints.APIVersion
	}
	if strings.TrimSpace(c.Endpoints.SearchVersion) == "" {
		c.Endpoints.SearchVersion = defaults.Endpoints.SearchVersion
	}
	if c.Endpoints.RequestTimeout == 0 {
		c.Endpoints.RequestTimeout = defaults.Endpoints.RequestTimeout
	}
	if c.Endpoints.DefaultPageSize == 0 {
		c.Endpoints.DefaultPageSize = defaults.Endpoints.DefaultPageSize
	}
	return c
}

func (c IdentityConfig) ToServiceIdentity() ServiceIdentity {
	return ServiceIdentity{
		ID:           strings.TrimSpace(c.ID),
		Role:         strings.TrimSpace(strings.ToLower(c.Role)),
		TenantID:     strings.TrimSpace(c.TenantID),
		ClientID:     strings.TrimSpace(c.ClientID),
		ClientSecret: strings.TrimSpace(c.ClientSecret),
		BaseURL:      strings.TrimRight(strings.TrimSpace(c.BaseURL), "/"),
		Resource:     strings.TrimRight(strings.TrimSpace(c.Resource), "/"),
	}
}
