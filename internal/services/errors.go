package services

import (
	"errors"
	"fmt"
	"strings"

	"ampliflow/internal/runs"
)

var (
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later status classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &stageError{
		marker:  marker,
		stage:   strings.TrimSpace(stage),
		op:      strings.TrimSpace(operation),
		message: strings.TrimSpace(message),
		cause:   err,
	}
}

type stageError struct {
	marker  error
	stage   string
	op      string
	message string
	cause   error
}

func (e *stageError) Error() string {
	detail := buildDetail(e.stage, e.op, e.message)
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %s", e.marker, detail, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.marker, detail)
}

func (e *stageError) Unwrap() []error {
	if e.cause == nil {
		return []error{e.marker}
	}
	return []error{e.marker, e.cause}
}

// ErrorDetails is the user-facing breakdown of a wrapped stage error.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
}

// Details extracts the stage, operation, and message recorded by Wrap. Errors
// not produced by Wrap yield their Error text as the message.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var se *stageError
	if errors.As(err, &se) {
		msg := se.message
		if msg == "" && se.cause != nil {
			msg = se.cause.Error()
		}
		return ErrorDetails{
			Kind:      kindOf(se.marker),
			Stage:     se.stage,
			Operation: se.op,
			Message:   msg,
		}
	}
	return ErrorDetails{Kind: kindOf(err), Message: err.Error()}
}

func kindOf(err error) string {
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrExternalTool):
		return "external_tool"
	default:
		return "transient"
	}
}

// FailureStatus maps a stage error to the run status persisted after the
// stage fails. Problems the user must fix in their inputs map to
// StatusInvalid; everything else is a plain failure.
func FailureStatus(err error) runs.Status {
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrConfiguration), errors.Is(err, ErrNotFound):
		return runs.StatusInvalid
	default:
		return runs.StatusFailed
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
