package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-config/cfgx"
	goerrors "github.com/goliatone/go-errors"
	glog "github.com/goliatone/go-logger/glog"
	opts "github.com/goliatone/go-options"
)

type ErrorMapper func(err error) *goerrors.Error

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type dispatcherBuilder struct {
	runtimeConfig   Config
	logger          Logger
	loggerProvider  LoggerProvider
	metricsRecorder MetricsRecorder
	errorMapper     ErrorMapper
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
	processes       *ProcessRegistry
	batches         *BatchRegistry
	processList     []ProcessProvider
	batchList       []BatchProvider
	recorder        RunRecorder
	publisher       ResultPublisher
	now             func() time.Time
}

type Option func(*dispatcherBuilder)

func WithLogger(logger Logger) Option {
	return func(b *dispatcherBuilder) {
		b.logger = logger
	}
}

func WithLoggerProvider(provider LoggerProvider) Option {
	return func(b *dispatcherBuilder) {
		b.loggerProvider = provider
	}
}

func WithMetricsRecorder(recorder MetricsRecorder) Option {
	return func(b *dispatcherBuilder) {
		b.metricsRecorder = recorder
	}
}

func WithErrorMapper(mapper ErrorMapper) Option {
	return func(b *dispatcherBuilder) {
		b.errorMapper = mapper
	}
}

func WithConfigProvider(provider ConfigProvider) Option {
	return func(b *dispatcherBuilder) {
		b.configProvider = provider
	}
}

func WithOptionsResolver(resolver OptionsResolver) Option {
	return func(b *dispatcherBuilder) {
		b.optionsResolver = resolver
	}
}

func WithProcessRegistry(registry *ProcessRegistry) Option {
	return func(b *dispatcherBuilder) {
		b.processes = registry
	}
}

func WithBatchRegistry(registry *BatchRegistry) Option {
	return func(b *dispatcherBuilder) {
		b.batches = registry
	}
}

// WithProcessProviders registers providers on the dispatcher's process registry.
func WithProcessProviders(providers ...ProcessProvider) Option {
	return func(b *dispatcherBuilder) {
		b.processList = append(b.processList, providers...)
	}
}

func WithBatchProviders(providers ...BatchProvider) Option {
	return func(b *dispatcherBuilder) {
		b.batchList = append(b.batchList, providers...)
	}
}

func WithRunRecorder(recorder RunRecorder) Option {
	return func(b *dispatcherBuilder) {
		b.recorder = recorder
	}
}

func WithResultPublisher(publisher ResultPublisher) Option {
	return func(b *dispatcherBuilder) {
		b.publisher = publisher
	}
}

func WithClock(now func() time.Time) Option {
	return func(b *dispatcherBuilder) {
		b.now = now
	}
}

func defaultDispatcherBuilder(runtime Config) dispatcherBuilder {
	loggerProvider, logger := glog.Resolve("processes", nil, nil)
	return dispatcherBuilder{
		runtimeConfig:   runtime,
		loggerProvider:  loggerProvider,
		logger:          logger,
		metricsRecorder: NopMetricsRecorder{},
		errorMapper:     MapError,
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
		now:             time.Now,
	}
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, typically decoded from a file
// by the host application.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			configToLayerMap(defaults, true),
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			configToLayerMap(loaded, false),
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			configToLayerMap(runtime, false),
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	resolved = resolved.WithDefaults()
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.ServiceName) != "" {
		layer["service_name"] = cfg.ServiceName
	}

	auth := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Auth.Authority) != "" {
		auth["authority"] = cfg.Auth.Authority
	}
	if includeZero || cfg.Auth.ExpiryGuard > 0 {
		auth["expiry_guard"] = cfg.Auth.ExpiryGuard
	}
	if len(auth) > 0 {
		layer["auth"] = auth
	}

	endpoints := map[string]any{}
	if includeZero || strings.TrimSpace(cfg.Endpoints.APIVersion) != "" {
		endpoints["api_version"] = cfg.Endpoints.APIVersion
	}
	if includeZero || strings.TrimSpace(cfg.Endpoints.SearchVersion) != "" {
		endpoints["search_version"] = cfg.Endpoints.SearchVersion
	}
	if includeZero || cfg.Endpoints.RequestTimeout > 0 {
		endpoints["request_timeout"] = cfg.Endpoints.RequestTimeout
	}
	if includeZero || cfg.Endpoints.DefaultPageSize > 0 {
		endpoints["default_page_size"] = cfg.Endpoints.DefaultPageSize
	}
	if len(endpoints) > 0 {
		layer["endpoints"] = endpoints
	}

	if includeZero || len(cfg.Identities) > 0 {
		identities := make([]any, 0, len(cfg.Identities))
		for _, identity := range cfg.Identities {
			identities = append(identities, map[string]any{
				"id":            identity.ID,
				"role":          identity.Role,
				"tenant_id":     identity.TenantID,
				"client_id":     identity.ClientID,
				"client_secret": identity.ClientSecret,
				"base_url":      identity.BaseURL,
				"resource":      identity.Resource,
			})
		}
		layer["identities"] = identities
	}
	return layer
}
