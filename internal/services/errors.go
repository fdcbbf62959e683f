package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrConfiguration   = errors.New("configuration error")
	ErrNetwork         = errors.New("network error")
	ErrProtocol        = errors.New("protocol error")
	ErrConcurrency     = errors.New("concurrency error")
	ErrWorkerLifecycle = errors.New("worker lifecycle error")
	ErrWorkerIO        = errors.New("worker io error")
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("validation error")
	// ErrRejected marks a request a dependency received and answered with a
	// failure of its own, such as a worker reporting an unreadable image.
	ErrRejected = errors.New("rejected by dependency")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrNetwork
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind returns a short label for the marker carried by err, used for metric
// labels and API error bodies.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConcurrency):
		return "concurrency"
	case errors.Is(err, ErrWorkerLifecycle):
		return "worker_lifecycle"
	case errors.Is(err, ErrWorkerIO):
		return "worker_io"
	case errors.Is(err, ErrProtocol):
		return "protocol"
	case errors.Is(err, ErrRejected):
		return "rejected"
	default:
		return "network"
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
