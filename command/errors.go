package command

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-processes/core"
)

// missingDependency reports a handler built without one of its collaborators.
func missingDependency(dependency string) error {
	return goerrors.New("command: "+dependency+" is required", goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(core.ErrorInternal).
		WithMetadata(map[string]any{"dependency": dependency})
}

func invalidMessage(messageType string, field string, message string) error {
	return goerrors.NewValidation("command: invalid "+messageType, goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(core.ErrorValidationFailed).
		WithSeverity(goerrors.SeverityError).
		WithMetadata(map[string]any{"message_type": messageType})
}
