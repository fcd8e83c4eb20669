package core

import (
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	ErrorAuthenticationFailed  = "PROCESS_AUTHENTICATION_FAILED"
	ErrorProcessNotFound       = "PROCESS_NOT_FOUND"
	ErrorBatchTypeNotFound     = "PROCESS_BATCH_TYPE_NOT_FOUND"
	ErrorIdentityNotFound      = "PROCESS_IDENTITY_NOT_FOUND"
	ErrorRunNotFound           = "PROCESS_RUN_NOT_FOUND"
	ErrorValidationFailed      = "PROCESS_VALIDATION_FAILED"
	ErrorRemoteCallFailed      = "PROCESS_REMOTE_CALL_FAILED"
	ErrorPartialBatchFailure   = "PROCESS_PARTIAL_BATCH_FAILURE"
	ErrorDeserializationFailed = "PROCESS_DESERIALIZATION_FAILED"
	ErrorRegistrationConflict  = "PROCESS_REGISTRATION_CONFLICT"
	ErrorInternal              = "PROCESS_INTERNAL_ERROR"
)

// StatusMultiStatus is used as the envelope code for partial batch failures.
const StatusMultiStatus = http.StatusMultiStatus

const maxErrorBodyMetadata = 4 << 10

func AuthenticationFailed(source error, identityID string) *goerrors.Error {
	message := "core: token exchange failed"
	if identityID = strings.TrimSpace(identityID); identityID != "" {
		message = fmt.Sprintf("core: token exchange failed for identity %s", identityID)
	}
	err := goerrors.Wrap(source, goerrors.CategoryAuth, message)
	if err == nil {
		err = goerrors.New(message, goerrors.CategoryAuth)
	}
	// Wrap keeps the category of rich sources; authentication always wins here.
	err.Category = goerrors.CategoryAuth
	return err.
		WithCode(http.StatusUnauthorized).
		WithTextCode(ErrorAuthenticationFailed).
		WithMetadata(map[string]any{"identity_id": identityID})
}

func ProcessNotFound(processID int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("core: process %d is not registered", processID), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorProcessNotFound).
		WithMetadata(map[string]any{"process_id": processID})
}

func BatchTypeNotFound(batchTypeID int) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("core: batch type %d is not registered", batchTypeID), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorBatchTypeNotFound).
		WithMetadata(map[string]any{"batch_type_id": batchTypeID})
}

func IdentityNotFound(role string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("core: no service identity registered for role %q", role), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorIdentityNotFound).
		WithMetadata(map[string]any{"role": role})
}

func RunNotFound(runID string) *goerrors.Error {
	return goerrors.New(fmt.Sprintf("core: process run %q not found", runID), goerrors.CategoryNotFound).
		WithCode(http.StatusNotFound).
		WithTextCode(ErrorRunNotFound).
		WithMetadata(map[string]any{"run_id": runID})
}

// ValidationFailed reports a missing or invalid field. It is raised before
// any network call is made.
func ValidationFailed(field string, message string) *goerrors.Error {
	return goerrors.NewValidation("core: validation failed", goerrors.FieldError{
		Field:   field,
		Message: message,
	}).
		WithCode(http.StatusBadRequest).
		WithTextCode(ErrorValidationFailed).
		WithSeverity(goerrors.SeverityError)
}

func RemoteCallFailed(statusCode int, uri string, body []byte) *goerrors.Error {
	trimmed := strings.TrimSpace(string(body))
	message := fmt.Sprintf("core: remote call failed with status %d", statusCode)
	if trimmed != "" {
		message = fmt.Sprintf("%s: %s", message, trimmed)
	}
	if len(trimmed) > maxErrorBodyMetadata {
		trimmed = trimmed[:maxErrorBodyMetadata]
	}
	return goerrors.New(message, goerrors.CategoryExternal).
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorRemoteCallFailed).
		WithMetadata(map[string]any{
			"status_code": statusCode,
			"uri":         uri,
			"body":        trimmed,
		})
}

func PartialBatchFailure(outcome BatchOutcome) *goerrors.Error {
	return goerrors.New(
		fmt.Sprintf("core: %d of %d batch operations failed", len(outcome.Errors), outcome.TotalRecords),
		goerrors.CategoryOperation,
	).
		WithCode(StatusMultiStatus).
		WithTextCode(ErrorPartialBatchFailure).
		WithMetadata(map[string]any{
			"total_records":   outcome.TotalRecords,
			"total_processed": outcome.TotalProcessed,
			"failed":          len(outcome.Errors),
		})
}

func DeserializationFailed(source error, target string) *goerrors.Error {
	message := fmt.Sprintf("core: response did not match %s", target)
	err := goerrors.Wrap(source, goerrors.CategoryExternal, message)
	if err == nil {
		err = goerrors.New(message, goerrors.CategoryExternal)
	}
	err.Category = goerrors.CategoryExternal
	return err.
		WithCode(http.StatusBadGateway).
		WithTextCode(ErrorDeserializationFailed).
		WithMetadata(map[string]any{"target": target})
}

func RegistrationConflict(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryConflict).
		WithCode(http.StatusConflict).
		WithTextCode(ErrorRegistrationConflict)
}

func InternalError(message string) *goerrors.Error {
	return goerrors.New(message, goerrors.CategoryInternal).
		WithCode(http.StatusInternalServerError).
		WithTextCode(ErrorInternal)
}

func HasTextCode(err error, textCode string) bool {
	if err == nil {
		return false
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		return false
	}
	return rich.TextCode == textCode
}

func IsAuthenticationFailed(err error) bool {
	return HasTextCode(err, ErrorAuthenticationFailed)
}

func IsProcessNotFound(err error) bool {
	return HasTextCode(err, ErrorProcessNotFound)
}

func IsBatchTypeNotFound(err error) bool {
	return HasTextCode(err, ErrorBatchTypeNotFound)
}

func IsRunNotFound(err error) bool {
	return HasTextCode(err, ErrorRunNotFound)
}

func IsValidationFailed(err error) bool {
	return HasTextCode(err, ErrorValidationFailed)
}

func IsRemoteCallFailed(err error) bool {
	return HasTextCode(err, ErrorRemoteCallFailed)
}

func IsDeserializationFailed(err error) bool {
	return HasTextCode(err, ErrorDeserializationFailed)
}

// MapError normalizes foreign errors into the process envelope.
func MapError(err error) *goerrors.Error {
	if err == nil {
		return nil
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		return ensureErrorEnvelope(richErr)
	}

	msg := strings.ToLower(strings.TrimSpace(err.Error()))
	switch {
	case strings.Contains(msg, "process") && strings.Contains(msg, "not registered"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryNotFound).WithTextCode(ErrorProcessNotFound))
	case strings.Contains(msg, "token"), strings.Contains(msg, "unauthorized"):
		return ensureErrorEnvelope(goerrors.Wrap(err, goerrors.CategoryAuth, "core: authentication failed").WithTextCode(ErrorAuthenticationFailed))
	case strings.Contains(msg, "required"), strings.Contains(msg, "invalid"):
		return ensureErrorEnvelope(goerrors.New(err.Error(), goerrors.CategoryValidation).WithTextCode(ErrorValidationFailed))
	}

	mapped := goerrors.MapToError(err, goerrors.DefaultErrorMappers())
	return ensureErrorEnvelope(mapped)
}

func ensureErrorEnvelope(err *goerrors.Error) *goerrors.Error {
	if err == nil {
		return nil
	}
	if err.Code == 0 {
		err.Code = httpStatus(err.Category)
	}
	if strings.TrimSpace(err.TextCode) == "" {
		err.TextCode = defaultTextCode(err.Category)
	}
	if err.Category == goerrors.CategoryInternal && strings.TrimSpace(err.Message) == "" {
		err.Message = "An unexpected error occurred"
	}
	return err
}

func defaultTextCode(category goerrors.Category) string {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return ErrorValidationFailed
	case goerrors.CategoryAuth, goerrors.CategoryAuthz:
		return ErrorAuthenticationFailed
	case goerrors.CategoryNotFound:
		return ErrorProcessNotFound
	case goerrors.CategoryExternal:
		return ErrorRemoteCallFailed
	case goerrors.CategoryConflict:
		return ErrorRegistrationConflict
	default:
		return ErrorInternal
	}
}

func httpStatus(category goerrors.Category) int {
	switch category {
	case goerrors.CategoryBadInput, goerrors.CategoryValidation:
		return http.StatusBadRequest
	case goerrors.CategoryNotFound:
		return http.StatusNotFound
	case goerrors.CategoryAuth:
		return http.StatusUnauthorized
	case goerrors.CategoryAuthz:
		return http.StatusForbidden
	case goerrors.CategoryConflict:
		return http.StatusConflict
	case goerrors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// errorDetail renders an error for ProcessResult.Errors.
func errorDetail(err error) string {
	if err == nil {
		return ""
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		detail := rich.Message
		if rich.TextCode != "" {
			detail = rich.TextCode + ": " + detail
		}
		if len(rich.ValidationErrors) > 0 {
			detail = detail + " (" + rich.ValidationErrors.Error() + ")"
		}
		if rich.Source != nil {
			detail = detail + ": " + rich.Source.Error()
		}
		return detail
	}
	return err.Error()
}
