package transport

import (
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-processes/core"
)

// failure builds the error envelope for one failed exchange. source may be
// nil. The adapter kind is always attached to the metadata.
func failure(source error, category goerrors.Category, message string, metadata map[string]any) error {
	var err *goerrors.Error
	if source == nil {
		err = goerrors.New(message, category)
	} else {
		err = goerrors.Wrap(source, category, message)
	}
	fields := map[string]any{"adapter": KindREST}
	for key, value := range metadata {
		fields[key] = value
	}
	return err.
		WithCode(statusForCategory(category)).
		WithTextCode(textCodeForCategory(category)).
		WithMetadata(fields)
}

func statusForCategory(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func textCodeForCategory(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return core.ErrorValidationFailed
	case goerrors.CategoryExternal:
		return core.ErrorRemoteCallFailed
	default:
		return core.ErrorInternal
	}
}
