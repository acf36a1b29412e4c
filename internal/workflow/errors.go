package workflow

import "errors"

var (
	// ErrNotPending is returned when a decision targets an already-terminal request.
	ErrNotPending = errors.New("request is not pending")

	// ErrNotWaitingOnUser is returned when the acting user is not currently
	// gating the request's active level.
	ErrNotWaitingOnUser = errors.New("request is not waiting on user")

	// ErrOptimisticLock is returned when a concurrent transition won the
	// version race. Callers surface a retry prompt; the engine never retries.
	ErrOptimisticLock = errors.New("request was updated concurrently")

	// ErrDuplicateRequest is returned when a submission matches the request
	// key of an existing request.
	ErrDuplicateRequest = errors.New("duplicate request submission")

	// ErrDefinitionNotFound is returned when no workflow definition exists
	// for the requested type.
	ErrDefinitionNotFound = errors.New("workflow definition not found")

	// ErrDefinitionInvalid is returned when a workflow definition fails
	// validation.
	ErrDefinitionInvalid = errors.New("workflow definition is invalid")
)
