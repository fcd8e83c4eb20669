package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-processes/core"
)

func TestRunBatchMessage_ValidateReturnsRichError(t *testing.T) {
	err := (RunBatchMessage{BatchTypeID: 1}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorValidationFailed {
		t.Fatalf("expected %q text code, got %q", core.ErrorValidationFailed, rich.TextCode)
	}
	if rich.Metadata["message_type"] != TypeRunBatch {
		t.Fatalf("expected message type metadata, got %#v", rich.Metadata)
	}
	validation := rich.AllValidationErrors()
	if len(validation) != 1 || validation[0].Field != "document" {
		t.Fatalf("expected document field error, got %#v", validation)
	}
}

func TestRunProcessCommand_NilDispatcherReturnsRichError(t *testing.T) {
	var cmd *RunProcessCommand
	err := cmd.Execute(context.Background(), RunProcessMessage{ProcessID: 1})
	if err == nil {
		t.Fatalf("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.Metadata["dependency"] != "process dispatcher" {
		t.Fatalf("expected dependency metadata, got %#v", rich.Metadata)
	}
}
