package core

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

const (
	RoleSystem       = "system"
	RolePortal       = "portal"
	RoleNotification = "notification"
)

// ServiceIdentity is a machine credential used for unattended access to the
// entity-store. Values are immutable once registered.
type ServiceIdentity struct {
	ID           string
	Role         string
	TenantID     string
	ClientID     string
	ClientSecret string
	BaseURL      string
	Resource     string
}

func (s ServiceIdentity) Validate() error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("core: identity id is required")
	case strings.TrimSpace(s.Role) == "":
		return fmt.Errorf("core: identity %s role is required", s.ID)
	case strings.TrimSpace(s.TenantID) == "":
		return fmt.Errorf("core: identity %s tenant_id is required", s.ID)
	case strings.TrimSpace(s.ClientID) == "":
		return fmt.Errorf("core: identity %s client_id is required", s.ID)
	case strings.TrimSpace(s.ClientSecret) == "":
		return fmt.Errorf("core: identity %s client_secret is required", s.ID)
	case strings.TrimSpace(s.BaseURL) == "":
		return fmt.Errorf("core: identity %s base_url is required", s.ID)
	}
	parsed, err := url.Parse(s.BaseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("core: identity %s base_url is invalid", s.ID)
	}
	return nil
}

// ResourceScope is the client-credentials scope for the identity's resource.
func (s ServiceIdentity) ResourceScope() string {
	resource := strings.TrimRight(strings.TrimSpace(s.Resource), "/")
	if resource == "" {
		resource = strings.TrimRight(strings.TrimSpace(s.BaseURL), "/")
	}
	return resource + "/.default"
}

// String never includes the client secret.
func (s ServiceIdentity) String() string {
	return fmt.Sprintf("%s(%s)", s.ID, s.Role)
}

// CredentialRegistry is populated once at construction and read-only afterwards.
type CredentialRegistry struct {
	byRole map[string]ServiceIdentity
	byID   map[string]ServiceIdentity
}

func NewCredentialRegistry(identities ...ServiceIdentity) (*CredentialRegistry, error) {
	registry := &CredentialRegistry{
		byRole: make(map[string]ServiceIdentity, len(identities)),
		byID:   make(map[string]ServiceIdentity, len(identities)),
	}
	for _, identity := range identities {
		if err := registry.add(identity); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func NewCredentialRegistryFromConfig(cfg Config) (*CredentialRegistry, error) {
	identities := make([]ServiceIdentity, 0, len(cfg.Identities))
	for _, identity := range cfg.Identities {
		identities = append(identities, identity.ToServiceIdentity())
	}
	return NewCredentialRegistry(identities...)
}

func (r *CredentialRegistry) add(identity ServiceIdentity) error {
	identity.ID = strings.TrimSpace(identity.ID)
	identity.Role = strings.TrimSpace(strings.ToLower(identity.Role))
	identity.BaseURL = strings.TrimRight(strings.TrimSpace(identity.BaseURL), "/")
	if err := identity.Validate(); err != nil {
		return err
	}
	if _, exists := r.byID[identity.ID]; exists {
		return RegistrationConflict(fmt.Sprintf("core: identity already registered: %s", identity.ID))
	}
	if existing, exists := r.byRole[identity.Role]; exists {
		return RegistrationConflict(fmt.Sprintf("core: role %s already bound to identity %s", identity.Role, existing.ID))
	}
	r.byID[identity.ID] = identity
	r.byRole[identity.Role] = identity
	return nil
}

func (r *CredentialRegistry) Resolve(role string) (ServiceIdentity, error) {
	key := strings.TrimSpace(strings.ToLower(role))
	if r == nil || key == "" {
		return ServiceIdentity{}, IdentityNotFound(role)
	}
	identity, ok := r.byRole[key]
	if !ok {
		return ServiceIdentity{}, IdentityNotFound(role)
	}
	return identity, nil
}

func (r *CredentialRegistry) Identities() []ServiceIdentity {
	if r == nil {
		return nil
	}
	out := make([]ServiceIdentity, 0, len(r.byID))
	for _, identity := range r.byID {
		out = append(out, identity)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
