package pipeline

import (
	"errors"
	"fmt"

	"github.com/abhisek-1221/korai-sub001/internal/store"
)

var (
	// ErrValidation marks input rejected before any state change or dispatch.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned for missing or foreign entities.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when the entity is not in a state that accepts
	// the operation, or moved on while the operation ran.
	ErrConflict = errors.New("stale state conflict")
	// ErrNotReady is returned to workers whose result arrived before the
	// gateway recorded the hand-off it answers. Retry after a short delay.
	ErrNotReady = errors.New("not ready: hand-off not yet recorded")
	// ErrRenderClaimed is returned to an export worker whose batch was
	// already claimed by an earlier delivery. The batch must not be rendered
	// again; report it as interrupted.
	ErrRenderClaimed = errors.New("render already started for this batch")
	// ErrDispatch is returned when a work item could not be enqueued. The
	// entity is left in its pre-dispatch state.
	ErrDispatch = errors.New("work dispatch failed")
)

// ReasonRenderInterrupted is the failure reason of a batch whose render was
// cut short by shutdown or lost with a crashed worker.
const ReasonRenderInterrupted = "render interrupted"

func invalid(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// storeErr maps persistence sentinels onto the pipeline taxonomy.
func storeErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case errors.Is(err, store.ErrStaleState):
		return fmt.Errorf("%w: %w", ErrConflict, err)
	}
	return err
}
