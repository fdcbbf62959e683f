package ocr

import (
	"errors"
	"fmt"

	"dailycraft/internal/services"
)

var (
	// ErrWorkerUnavailable reports that the interpreter or script cannot be found.
	// Retrying without fixing the installation will not help.
	ErrWorkerUnavailable = fmt.Errorf("extraction worker unavailable: %w", services.ErrWorkerLifecycle)
	// ErrWorkerStartup reports a failed or refused handshake.
	ErrWorkerStartup = fmt.Errorf("extraction worker startup failed: %w", services.ErrWorkerLifecycle)
	// ErrWorkerIO reports a broken pipe, timeout or undecodable response. The
	// worker is destroyed and replaced on the next call.
	ErrWorkerIO = fmt.Errorf("extraction worker io failed: %w", services.ErrWorkerIO)
	// ErrImageNotFound reports a missing input image; the worker is not touched.
	ErrImageNotFound = fmt.Errorf("image not found: %w", services.ErrNotFound)
	// ErrExtraction carries an error reported by the worker for one image.
	ErrExtraction = fmt.Errorf("text extraction failed: %w", services.ErrRejected)
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("extraction manager closed")
)
