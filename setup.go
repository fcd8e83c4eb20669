package processes

import (
	"fmt"

	"github.com/goliatone/go-processes/auth"
	"github.com/goliatone/go-processes/client"
	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers"
	"github.com/goliatone/go-processes/providers/processkit"
	"github.com/goliatone/go-processes/transport"
)

// Runtime is the assembled middleware: identities, token cache, entity-store
// client and a dispatcher with the built-in providers registered.
type Runtime struct {
	Config     Config
	Identities *core.CredentialRegistry
	Tokens     *auth.TokenCache
	Client     *client.Client
	Dispatcher *core.Dispatcher
}

type SetupOption func(*setupOptions)

type setupOptions struct {
	providers         providers.Config
	exchanger         auth.Exchanger
	transport         core.TransportAdapter
	dispatcherOptions []core.Option
	providerOptions   []processkit.Option
	extraProcesses    []core.ProcessProvider
	extraBatches      []core.BatchProvider
	logger            core.Logger
	loggerProvider    core.LoggerProvider
}

// WithRuntimeLogger routes every component's logs through logger.
func WithRuntimeLogger(logger core.Logger) SetupOption {
	return func(o *setupOptions) {
		o.logger = logger
	}
}

// WithRuntimeLoggerProvider hands each component its named logger
// (processes.dispatcher, processes.token_cache, processes.provider.<name>).
func WithRuntimeLoggerProvider(provider core.LoggerProvider) SetupOption {
	return func(o *setupOptions) {
		o.loggerProvider = provider
	}
}

func WithProvidersConfig(cfg providers.Config) SetupOption {
	return func(o *setupOptions) {
		o.providers = cfg
	}
}

// WithExchanger replaces the client-credentials exchanger, mainly for tests.
func WithExchanger(exchanger auth.Exchanger) SetupOption {
	return func(o *setupOptions) {
		o.exchanger = exchanger
	}
}

func WithTransport(adapter core.TransportAdapter) SetupOption {
	return func(o *setupOptions) {
		o.transport = adapter
	}
}

func WithDispatcherOptions(opts ...core.Option) SetupOption {
	return func(o *setupOptions) {
		o.dispatcherOptions = append(o.dispatcherOptions, opts...)
	}
}

func WithProviderOptions(opts ...processkit.Option) SetupOption {
	return func(o *setupOptions) {
		o.providerOptions = append(o.providerOptions, opts...)
	}
}

// WithExtraProviders registers host-specific providers next to the built-ins.
func WithExtraProviders(processes []core.ProcessProvider, batches []core.BatchProvider) SetupOption {
	return func(o *setupOptions) {
		o.extraProcesses = append(o.extraProcesses, processes...)
		o.extraBatches = append(o.extraBatches, batches...)
	}
}

// Setup resolves configuration once and builds every component from it.
func Setup(cfg Config, opts ...SetupOption) (*Runtime, error) {
	options := setupOptions{providers: providers.DefaultConfig()}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	resolved, err := core.ResolveConfig(cfg, options.dispatcherOptions...)
	if err != nil {
		return nil, err
	}
	identities, err := core.NewCredentialRegistryFromConfig(resolved)
	if err != nil {
		return nil, err
	}

	exchanger := options.exchanger
	if exchanger == nil {
		exchanger = auth.NewClientCredentialsExchanger(auth.ClientCredentialsExchangerConfig{
			Authority: resolved.Auth.Authority,
		})
	}
	tokens := auth.NewTokenCache(auth.TokenCacheConfig{
		Exchanger:      exchanger,
		ExpiryGuard:    resolved.Auth.ExpiryGuard,
		Logger:         options.logger,
		LoggerProvider: options.loggerProvider,
	})

	adapter := options.transport
	if adapter == nil {
		adapter = transport.NewRESTAdapterFromConfig(resolved.Endpoints)
	}
	entityClient, err := client.New(resolved.Endpoints, tokens, adapter,
		client.WithLogger(options.logger),
		client.WithLoggerProvider(options.loggerProvider),
	)
	if err != nil {
		return nil, err
	}

	providerOptions := append([]processkit.Option{
		processkit.WithLogger(options.logger),
		processkit.WithLoggerProvider(options.loggerProvider),
	}, options.providerOptions...)
	set, err := providers.Builtins(entityClient, identities, options.providers, providerOptions...)
	if err != nil {
		return nil, fmt.Errorf("processes: build providers: %w", err)
	}
	set.Processes = append(set.Processes, options.extraProcesses...)
	set.Batches = append(set.Batches, options.extraBatches...)

	dispatcherOptions := append(set.Options(),
		core.WithLogger(options.logger),
		core.WithLoggerProvider(options.loggerProvider),
	)
	dispatcherOptions = append(dispatcherOptions, options.dispatcherOptions...)
	dispatcher, err := core.NewDispatcher(resolved, dispatcherOptions...)
	if err != nil {
		return nil, err
	}

	return &Runtime{
		Config:     dispatcher.Config(),
		Identities: identities,
		Tokens:     tokens,
		Client:     entityClient,
		Dispatcher: dispatcher,
	}, nil
}
