package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotSupported      = errors.New("conversion not supported")
	ErrInvalidChain      = errors.New("invalid converter chain")
	ErrStepFailure       = errors.New("chain step failed")
	ErrTaskFailure       = errors.New("task failed")
	ErrInconsistentGraph = errors.New("inconsistent conversion graph")
	ErrValidation        = errors.New("validation error")
	ErrConfiguration     = errors.New("configuration error")
	ErrExternalTool      = errors.New("external tool error")
)

var markers = []error{
	ErrNotSupported,
	ErrInvalidChain,
	ErrStepFailure,
	ErrTaskFailure,
	ErrInconsistentGraph,
	ErrValidation,
	ErrConfiguration,
	ErrExternalTool,
}

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTaskFailure
	}
	if err != nil {
		return &wrapped{
			marker:    marker,
			component: strings.TrimSpace(component),
			operation: strings.TrimSpace(operation),
			message:   strings.TrimSpace(message),
			cause:     err,
			text:      fmt.Sprintf("%s: %s: %s", marker, detail, err),
		}
	}
	return &wrapped{
		marker:    marker,
		component: strings.TrimSpace(component),
		operation: strings.TrimSpace(operation),
		message:   strings.TrimSpace(message),
		text:      fmt.Sprintf("%s: %s", marker, detail),
	}
}

type wrapped struct {
	marker    error
	component string
	operation string
	message   string
	cause     error
	text      string
}

func (w *wrapped) Error() string { return w.text }

func (w *wrapped) Unwrap() []error {
	if w.cause == nil {
		return []error{w.marker}
	}
	return []error{w.marker, w.cause}
}

// ErrorDetails is the structured view of an error produced by Wrap.
type ErrorDetails struct {
	Kind      string
	Component string
	Operation string
	Message   string
	Cause     error
}

// Details extracts structured fields from err. Errors not produced by Wrap
// still report a Kind when they match a known marker.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var w *wrapped
	if errors.As(err, &w) {
		return ErrorDetails{
			Kind:      Kind(w.marker),
			Component: w.component,
			Operation: w.operation,
			Message:   w.message,
			Cause:     w.cause,
		}
	}
	return ErrorDetails{Kind: Kind(err), Message: err.Error()}
}

// Kind returns a short classification for err ("not_supported",
// "step_failure", ...) or "unknown".
func Kind(err error) string {
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return strings.ReplaceAll(kindName(marker), " ", "_")
		}
	}
	return "unknown"
}

func kindName(marker error) string {
	switch marker {
	case ErrNotSupported:
		return "not supported"
	case ErrInvalidChain:
		return "invalid chain"
	case ErrStepFailure:
		return "step failure"
	case ErrTaskFailure:
		return "task failure"
	case ErrInconsistentGraph:
		return "inconsistent graph"
	case ErrValidation:
		return "validation"
	case ErrConfiguration:
		return "configuration"
	case ErrExternalTool:
		return "external tool"
	default:
		return "unknown"
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
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
