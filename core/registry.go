package core

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

type ProcessRegistry struct {
	mu        sync.RWMutex
	providers map[int]ProcessProvider
}

func NewProcessRegistry(providers ...ProcessProvider) (*ProcessRegistry, error) {
	registry := &ProcessRegistry{providers: make(map[int]ProcessProvider)}
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// Register rejects duplicate ids so conflicts surface at startup.
func (r *ProcessRegistry) Register(provider ProcessProvider) error {
	if provider == nil {
		return RegistrationConflict("core: process provider is nil")
	}
	id := provider.ID()
	if id <= 0 {
		return RegistrationConflict(fmt.Sprintf("core: process provider %q has invalid id %d", provider.Name(), id))
	}
	if strings.TrimSpace(provider.Name()) == "" {
		return RegistrationConflict(fmt.Sprintf("core: process provider %d name is required", id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.providers[id]; exists {
		return RegistrationConflict(fmt.Sprintf("core: process %d already registered by %s", id, existing.Name())).
			WithMetadata(map[string]any{"process_id": id})
	}
	r.providers[id] = provider
	return nil
}

func (r *ProcessRegistry) Get(processID int) (ProcessProvider, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[processID]
	r.mu.RUnlock()
	return provider, ok
}

func (r *ProcessRegistry) List() []ProcessProvider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	providers := make([]ProcessProvider, 0, len(r.providers))
	for _, provider := range r.providers {
		providers = append(providers, provider)
	}
	r.mu.RUnlock()
	sort.Slice(providers, func(i, j int) bool { return providers[i].ID() < providers[j].ID() })
	return providers
}

type BatchRegistry struct {
	mu        sync.RWMutex
	providers map[int]BatchProvider
}

func NewBatchRegistry(providers ...BatchProvider) (*BatchRegistry, error) {
	registry := &BatchRegistry{providers: make(map[int]BatchProvider)}
	for _, provider := range providers {
		if err := registry.Register(provider); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *BatchRegistry) Register(provider BatchProvider) error {
	if provider == nil {
		return RegistrationConflict("core: batch provider is nil")
	}
	id := provider.TypeID()
	if id <= 0 {
		return RegistrationConflict(fmt.Sprintf("core: batch provider %q has invalid type id %d", provider.Name(), id))
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, exists := r.providers[id]; exists {
		return RegistrationConflict(fmt.Sprintf("core: batch type %d already registered by %s", id, existing.Name())).
			WithMetadata(map[string]any{"batch_type_id": id})
	}
	r.providers[id] = provider
	return nil
}

func (r *BatchRegistry) Get(typeID int) (BatchProvider, bool) {
	if r == nil {
		return nil, false
	}
	r.mu.RLock()
	provider, ok := r.providers[typeID]
	r.mu.RUnlock()
	return provider, ok
}

func (r *BatchRegistry) List() []BatchProvider {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	providers := make([]BatchProvider, 0, len(r.providers))
	for _, provider := range r.providers {
		providers = append(providers, provider)
	}
	r.mu.RUnlock()
	sort.Slice(providers, func(i, j int) bool { return providers[i].TypeID() < providers[j].TypeID() })
	return providers
}
