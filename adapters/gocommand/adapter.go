// Package gocommand wires the process commands and queries into go-command.
package gocommand

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-command"
	commanddispatcher "github.com/goliatone/go-command/dispatcher"
	"github.com/goliatone/go-command/runner"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	processcommand "github.com/goliatone/go-processes/command"
	"github.com/goliatone/go-processes/core"
	processquery "github.com/goliatone/go-processes/query"
)

// ValidateMessageContract enforces Type() plus optional Validate() contract.
func ValidateMessageContract(msg any) error {
	if err := command.ValidateMessage(msg); err != nil {
		return err
	}
	m, ok := msg.(command.Message)
	if !ok {
		return fmt.Errorf("gocommand: message must implement Type() string")
	}
	if strings.TrimSpace(m.Type()) == "" {
		return fmt.Errorf("gocommand: message type is required")
	}
	return nil
}

type RegistryAdapter struct {
	registry *command.Registry
}

func NewRegistryAdapter(registry *command.Registry) *RegistryAdapter {
	if registry == nil {
		registry = command.NewRegistry()
	}
	return &RegistryAdapter{registry: registry}
}

func (a *RegistryAdapter) Registry() *command.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *RegistryAdapter) RegisterCommand(cmd any) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.RegisterCommand(cmd)
}

// AddQueueResolver mirrors registered commands into a go-job queue registry
// so process runs can also be enqueued as commands.
func (a *RegistryAdapter) AddQueueResolver(key string, queueRegistry *jobqueuecommand.Registry) error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	if queueRegistry == nil {
		return fmt.Errorf("gocommand: queue registry is required")
	}
	return a.registry.AddResolver(strings.TrimSpace(key), jobqueuecommand.QueueResolver(queueRegistry))
}

func (a *RegistryAdapter) Initialize() error {
	if a == nil || a.registry == nil {
		return fmt.Errorf("gocommand: registry is not configured")
	}
	return a.registry.Initialize()
}

func Dispatch[T any](ctx context.Context, msg T) error {
	return commanddispatcher.Dispatch(ctx, msg)
}

func Query[T any, R any](ctx context.Context, msg T) (R, error) {
	return commanddispatcher.Query[T, R](ctx, msg)
}

func RegisterAndSubscribe[T any](
	adapter *RegistryAdapter,
	cmd command.Commander[T],
	runnerOpts ...runner.Option,
) (commanddispatcher.Subscription, error) {
	if adapter == nil || adapter.registry == nil {
		return nil, fmt.Errorf("gocommand: registry is not configured")
	}
	if cmd == nil {
		return nil, fmt.Errorf("gocommand: command is required")
	}
	subscription := commanddispatcher.SubscribeCommand(cmd, runnerOpts...)
	if err := adapter.RegisterCommand(cmd); err != nil {
		if subscription != nil {
			subscription.Unsubscribe()
		}
		return nil, err
	}
	return subscription, nil
}

func SubscribeQuery[T any, R any](qry command.Querier[T, R], runnerOpts ...runner.Option) commanddispatcher.Subscription {
	return commanddispatcher.SubscribeQuery(qry, runnerOpts...)
}

// Handlers groups the collaborators the process handlers delegate to. Runs
// may be nil when no ledger is configured; the run queries are then skipped.
type Handlers struct {
	Dispatcher interface {
		processcommand.Dispatcher
		processquery.ProcessCatalog
	}
	Runs processquery.ProcessRunReader
}

// Subscriptions can be released together.
type Subscriptions []commanddispatcher.Subscription

func (s Subscriptions) Unsubscribe() {
	for _, subscription := range s {
		if subscription != nil {
			subscription.Unsubscribe()
		}
	}
}

// RegisterProcessHandlers registers the run commands and subscribes the
// catalog and run queries.
func RegisterProcessHandlers(adapter *RegistryAdapter, handlers Handlers, runnerOpts ...runner.Option) (Subscriptions, error) {
	if handlers.Dispatcher == nil {
		return nil, fmt.Errorf("gocommand: process dispatcher is required")
	}
	subs := Subscriptions{}
	runProcess, err := RegisterAndSubscribe[processcommand.RunProcessMessage](adapter, processcommand.NewRunProcessCommand(handlers.Dispatcher), runnerOpts...)
	if err != nil {
		return nil, err
	}
	subs = append(subs, runProcess)

	runBatch, err := RegisterAndSubscribe[processcommand.RunBatchMessage](adapter, processcommand.NewRunBatchCommand(handlers.Dispatcher), runnerOpts...)
	if err != nil {
		subs.Unsubscribe()
		return nil, err
	}
	subs = append(subs, runBatch)

	subs = append(subs, SubscribeQuery[processquery.ListProcessesMessage, processquery.Catalog](
		processquery.NewListProcessesQuery(handlers.Dispatcher), runnerOpts...))
	if handlers.Runs != nil {
		subs = append(subs,
			SubscribeQuery[processquery.GetProcessRunMessage, core.ProcessRun](processquery.NewGetProcessRunQuery(handlers.Runs), runnerOpts...),
			SubscribeQuery[processquery.ListProcessRunsMessage, core.ProcessRunPage](processquery.NewListProcessRunsQuery(handlers.Runs), runnerOpts...),
		)
	}
	return subs, nil
}
