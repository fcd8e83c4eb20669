package devkit

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/goliatone/go-processes/core"
)

func ValidateTransportAdapterConformance(
	ctx context.Context,
	adapter core.TransportAdapter,
	request core.TransportRequest,
) error {
	if adapter == nil {
		return fmt.Errorf("devkit: transport adapter is required")
	}
	if strings.TrimSpace(adapter.Kind()) == "" {
		return fmt.Errorf("devkit: transport adapter kind is required")
	}
	_, err := adapter.Do(ctx, request)
	return err
}

// ValidateProcessProviderConformance checks the registration contract and
// that an empty parameter envelope fails validation without touching the
// transport.
func ValidateProcessProviderConformance(
	ctx context.Context,
	provider core.ProcessProvider,
	transport *FakeTransportAdapter,
) error {
	if provider == nil {
		return fmt.Errorf("devkit: process provider is required")
	}
	if provider.ID() <= 0 {
		return fmt.Errorf("devkit: process id must be positive, got %d", provider.ID())
	}
	if strings.TrimSpace(provider.Name()) == "" {
		return fmt.Errorf("devkit: process name is required")
	}
	before := len(transport.Requests())
	result := provider.Run(ctx, core.ProcessParameter{})
	if result.Status != core.ProcessStatusFailed || result.CompletedNoErrors {
		return fmt.Errorf("devkit: empty parameters should fail, got %s", result.Status)
	}
	if result.ProcessID != provider.ID() {
		return fmt.Errorf("devkit: result process id %d does not match provider id %d", result.ProcessID, provider.ID())
	}
	if after := len(transport.Requests()); after != before {
		return fmt.Errorf("devkit: validation failure issued %d network calls", after-before)
	}
	return nil
}

// ValidateBatchProviderConformance checks the registration contract and that
// a malformed document is rejected with a validation error.
func ValidateBatchProviderConformance(ctx context.Context, provider core.BatchProvider) error {
	if provider == nil {
		return fmt.Errorf("devkit: batch provider is required")
	}
	if provider.TypeID() <= 0 {
		return fmt.Errorf("devkit: batch type id must be positive, got %d", provider.TypeID())
	}
	if strings.TrimSpace(provider.Name()) == "" {
		return fmt.Errorf("devkit: batch provider name is required")
	}
	if _, err := provider.Run(ctx, json.RawMessage(`{`)); !core.IsValidationFailed(err) {
		return fmt.Errorf("devkit: malformed document should fail validation, got %v", err)
	}
	return nil
}
