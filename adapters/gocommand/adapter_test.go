package gocommand

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/goliatone/go-command"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	processcommand "github.com/goliatone/go-processes/command"
	"github.com/goliatone/go-processes/core"
	processquery "github.com/goliatone/go-processes/query"
)

type okMessage struct{}

func (okMessage) Type() string { return "processes.command.ok" }

type invalidMessage struct{}

func (invalidMessage) Type() string { return "" }

type failingMessage struct{}

func (failingMessage) Type() string { return "processes.command.fail" }

func (failingMessage) Validate() error { return errors.New("invalid payload") }

type queueMessage struct{}

func (queueMessage) Type() string { return "processes.command.queue" }

func TestValidateMessageContract(t *testing.T) {
	if err := ValidateMessageContract(okMessage{}); err != nil {
		t.Fatalf("expected valid message, got %v", err)
	}
	if err := ValidateMessageContract(invalidMessage{}); err == nil {
		t.Fatalf("expected empty type to fail contract validation")
	}
	if err := ValidateMessageContract(failingMessage{}); err == nil {
		t.Fatalf("expected Validate() failure to bubble")
	}
	if err := ValidateMessageContract(processcommand.RunProcessMessage{ProcessID: 1}); err != nil {
		t.Fatalf("expected run process message to satisfy the contract, got %v", err)
	}
}

type stubDispatcher struct {
	runs []int
}

func (s *stubDispatcher) RunProcessByID(_ context.Context, processID int, _ core.ProcessParameter) (core.ProcessResult, error) {
	s.runs = append(s.runs, processID)
	return core.NewCompletedResult(processID, "nothing to do"), nil
}

func (s *stubDispatcher) RunBatch(_ context.Context, batchTypeID int, _ json.RawMessage) (any, error) {
	return core.NewCompletedResult(batchTypeID, "empty batch"), nil
}

func (s *stubDispatcher) Processes() []core.ProcessDescriptor {
	return []core.ProcessDescriptor{{ID: 1, Name: "funding-calculation"}}
}

func (s *stubDispatcher) BatchTypes() []core.ProcessDescriptor {
	return []core.ProcessDescriptor{{ID: 1, Name: "bulk-record-update"}}
}

type stubRuns struct{}

func (stubRuns) GetRun(_ context.Context, id string) (core.ProcessRun, error) {
	return core.ProcessRun{ID: id, ProcessID: 1, Status: core.ProcessStatusCompleted}, nil
}

func (stubRuns) ListRuns(context.Context, core.ProcessRunFilter) (core.ProcessRunPage, error) {
	return core.ProcessRunPage{Items: []core.ProcessRun{{ID: "run_1"}}, Total: 1}, nil
}

func TestRegisterProcessHandlers_DispatchAndQuery(t *testing.T) {
	dispatcher := &stubDispatcher{}
	adapter := NewRegistryAdapter(command.NewRegistry())
	subs, err := RegisterProcessHandlers(adapter, Handlers{Dispatcher: dispatcher, Runs: stubRuns{}})
	if err != nil {
		t.Fatalf("register handlers: %v", err)
	}
	defer subs.Unsubscribe()
	if len(subs) != 5 {
		t.Fatalf("expected 5 subscriptions, got %d", len(subs))
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	collector := command.NewResult[core.ProcessResult]()
	ctx := command.ContextWithResult(context.Background(), collector)
	if err := Dispatch(ctx, processcommand.RunProcessMessage{ProcessID: 1}); err != nil {
		t.Fatalf("dispatch run process: %v", err)
	}
	if len(dispatcher.runs) != 1 || dispatcher.runs[0] != 1 {
		t.Fatalf("expected process 1 to run once, got %v", dispatcher.runs)
	}
	if result, ok := collector.Load(); !ok || result.Status != core.ProcessStatusCompleted {
		t.Fatalf("expected completed result in collector, got %#v", result)
	}

	catalog, err := Query[processquery.ListProcessesMessage, processquery.Catalog](context.Background(), processquery.ListProcessesMessage{IncludeBatchTypes: true})
	if err != nil {
		t.Fatalf("query catalog: %v", err)
	}
	if len(catalog.Processes) != 1 || len(catalog.BatchTypes) != 1 {
		t.Fatalf("unexpected catalog %#v", catalog)
	}

	run, err := Query[processquery.GetProcessRunMessage, core.ProcessRun](context.Background(), processquery.GetProcessRunMessage{RunID: "run_9"})
	if err != nil {
		t.Fatalf("query run: %v", err)
	}
	if run.ID != "run_9" {
		t.Fatalf("unexpected run %#v", run)
	}
}

func TestRegisterProcessHandlers_RequiresDispatcher(t *testing.T) {
	if _, err := RegisterProcessHandlers(NewRegistryAdapter(nil), Handlers{}); err == nil {
		t.Fatalf("expected missing dispatcher to fail")
	}
}

func TestQueueResolverHookWiring(t *testing.T) {
	adapter := NewRegistryAdapter(command.NewRegistry())
	queueRegistry := jobqueuecommand.NewRegistry()

	cmd := command.CommandFunc[queueMessage](func(context.Context, queueMessage) error { return nil })

	if err := adapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := adapter.RegisterCommand(cmd); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize registry: %v", err)
	}

	if _, ok := queueRegistry.Get("processes.command.queue"); !ok {
		t.Fatalf("expected command to be mirrored into queue registry")
	}
}
