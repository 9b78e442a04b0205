package consult

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when neither the portal nor the store knows the
	// case number.
	ErrNotFound = errors.New("case not found")

	ErrInvalidCaseNumber = errors.New("case number is required")
	ErrMissingRequester  = errors.New("requester id is required")
	ErrAlreadyMonitored  = errors.New("case already monitored")
)

// FetchError means basic info could not be obtained from the portal. Callers
// see it as ErrNotFound; the audit trail records it as portal_unavailable.
type FetchError struct {
	CaseNumber string
	Cause      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("portal unavailable for case %s: %v", e.CaseNumber, e.Cause)
}

func (e *FetchError) Unwrap() error {
	return e.Cause
}

func (e *FetchError) Is(target error) bool {
	return target == ErrNotFound
}
