package entities

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation          = errors.New("validation error")     // 400
	ErrRunNotFound         = errors.New("run not found")        // 404
	ErrItemNotFound        = errors.New("item not found")       // 404
	ErrInvalidRunState     = errors.New("invalid run state")    // 409
	ErrRunBusy             = errors.New("run busy")             // 409
	ErrAlreadyGenerated    = errors.New("already generated")    // 409
	ErrNoShortages         = errors.New("no shortages")         // 422
	ErrCyclicBOM           = errors.New("cyclic bom")           // 422
	ErrCancelled           = errors.New("run cancelled")        // 409
	ErrSnapshotUnavailable = errors.New("snapshot unavailable") // 502
	ErrRunAbandoned        = errors.New("run abandoned")
)

// CyclicBOMError carries the item chain that closed a cycle or exceeded the depth bound
type CyclicBOMError struct {
	Chain         []ItemID
	DepthExceeded bool
}

func (e *CyclicBOMError) Error() string {
	parts := make([]string, len(e.Chain))
	for i, id := range e.Chain {
		parts[i] = string(id)
	}
	if e.DepthExceeded {
		return fmt.Sprintf("bom depth exceeded at %s", strings.Join(parts, " -> "))
	}
	return fmt.Sprintf("bom cycle detected: %s", strings.Join(parts, " -> "))
}

func (e *CyclicBOMError) Is(target error) bool {
	return target == ErrCyclicBOM
}

// InvalidTransitionError reports an event that the current run status cannot accept
type InvalidTransitionError struct {
	From  RunStatus
	Event RunEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot apply %s to run in status %s", e.Event, e.From)
}

func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidRunState
}
