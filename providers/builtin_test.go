package providers_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/goliatone/go-processes/core"
	"github.com/goliatone/go-processes/providers"
	"github.com/goliatone/go-processes/providers/devkit"
)

func TestBuiltins_RegistersEveryProviderOnTheDispatcher(t *testing.T) {
	transport := devkit.NewRoutedTransportAdapter()
	c, _ := devkit.NewClient(transport, nil)
	registry := devkit.Registry(
		devkit.Identity("sys", core.RoleSystem),
		devkit.Identity("notify", core.RoleNotification),
	)

	set, err := providers.Builtins(c, registry, providers.DefaultConfig())
	if err != nil {
		t.Fatalf("builtins: %v", err)
	}
	dispatcher, err := core.NewDispatcher(core.DefaultConfig(), set.Options()...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}

	processes := dispatcher.Processes()
	if len(processes) != 4 {
		t.Fatalf("expected 4 processes, got %+v", processes)
	}
	for idx, want := range []string{"funding-calculation", "good-standing-verification", "inactive-record-closure", "notification-batch"} {
		if processes[idx].ID != idx+1 || processes[idx].Name != want {
			t.Fatalf("process %d: expected %d/%s, got %+v", idx, idx+1, want, processes[idx])
		}
	}
	if batches := dispatcher.BatchTypes(); len(batches) != 1 || batches[0].Name != "bulk-record-update" {
		t.Fatalf("unexpected batch types %+v", batches)
	}

	result, err := dispatcher.RunProcessByID(context.Background(), 1, core.ProcessParameter{})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Status != core.ProcessStatusFailed {
		t.Fatalf("expected validation failure as a result, got %s", result.Status)
	}
	if len(transport.Requests()) != 0 {
		t.Fatalf("expected no network call")
	}
}

func TestBuiltins_MissingNotificationIdentity(t *testing.T) {
	c, _ := devkit.NewClient(devkit.NewRoutedTransportAdapter(), nil)
	registry := devkit.Registry(devkit.Identity("sys", core.RoleSystem))

	if _, err := providers.Builtins(c, registry, providers.DefaultConfig()); err == nil {
		t.Fatalf("expected missing notification identity to fail")
	}

	cfg := providers.DefaultConfig()
	cfg.DisableNotification = true
	set, err := providers.Builtins(c, registry, cfg)
	if err != nil {
		t.Fatalf("builtins without notification: %v", err)
	}
	if len(set.Processes) != 3 {
		t.Fatalf("expected 3 processes, got %d", len(set.Processes))
	}
}

func TestBuiltins_BatchDispatchEndToEnd(t *testing.T) {
	transport := devkit.NewRoutedTransportAdapter(
		devkit.Route{Method: http.MethodPost, URLContains: "$batch", Script: devkit.BatchStatuses(http.StatusNoContent)},
	)
	c, _ := devkit.NewClient(transport, nil)
	cfg := providers.DefaultConfig()
	cfg.DisableNotification = true
	set, err := providers.Builtins(c, devkit.Registry(devkit.Identity("sys", core.RoleSystem)), cfg)
	if err != nil {
		t.Fatalf("builtins: %v", err)
	}
	dispatcher, err := core.NewDispatcher(core.DefaultConfig(), set.Options()...)
	if err != nil {
		t.Fatalf("new dispatcher: %v", err)
	}
	out, err := dispatcher.RunBatch(context.Background(), 1, json.RawMessage(`{"entitySet":"accounts","records":[{"id":"a","fields":{"name":"x"}}]}`))
	if err != nil {
		t.Fatalf("run batch: %v", err)
	}
	result, ok := out.(core.ProcessResult)
	if !ok || result.Status != core.ProcessStatusSuccessful || result.TotalProcessed != 1 {
		t.Fatalf("unexpected batch result %#v", out)
	}
}
