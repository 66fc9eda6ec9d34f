package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrResolutionFailed = errors.New("resolution failed")
	ErrTooLarge         = errors.New("too large")
	ErrTransferFailed   = errors.New("transfer failed")
	ErrExternalTool     = errors.New("external tool error")
	ErrConfiguration    = errors.New("configuration error")
	ErrTimeout          = errors.New("timeout")
)

// Reason labels recorded for rejected items.
const (
	ReasonResolutionFailed = "resolution_failed"
	ReasonTooLarge         = "too_large"
	ReasonTransferFailed   = "transfer_failed"
	ReasonInvalidInput     = "invalid_input"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one of the
// exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransferFailed
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// TooLargeError reports a rendition or file that exceeds the transfer ceiling.
type TooLargeError struct {
	SizeBytes    int64
	CeilingBytes int64
}

func (e *TooLargeError) Error() string {
	return fmt.Sprintf("size %d bytes exceeds ceiling of %d bytes", e.SizeBytes, e.CeilingBytes)
}

// Is lets errors.Is(err, ErrTooLarge) match without wrapping.
func (e *TooLargeError) Is(target error) bool {
	return target == ErrTooLarge
}

// OversizeBytes extracts the offending size from a too-large error chain.
func OversizeBytes(err error) (int64, bool) {
	var tooLarge *TooLargeError
	if errors.As(err, &tooLarge) {
		return tooLarge.SizeBytes, true
	}
	return 0, false
}

// Reason maps a per-item error to the reason label reported to the operator.
// Unclassified errors are treated as transfer failures.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTooLarge):
		return ReasonTooLarge
	case errors.Is(err, ErrResolutionFailed):
		return ReasonResolutionFailed
	case errors.Is(err, ErrInvalidInput):
		return ReasonInvalidInput
	default:
		return ReasonTransferFailed
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
