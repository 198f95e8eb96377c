// Package services defines the business logic for directory listings:
// submission, browsing, detail views, visitor reports, and administration.
// This file centralizes service-level error values so that they can be
// consistently returned by service methods and checked by callers.
//
// Translation into HTTP status codes and stable error codes is performed by
// the handler layer.
package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Submission errors.
var (
	// ErrDuplicateLink indicates a listing with the same normalized link exists.
	ErrDuplicateLink = errors.New("link already listed")

	// ErrDuplicateName indicates a listing whose name produces the same slug
	// exists.
	ErrDuplicateName = errors.New("name already listed")

	// ErrVerificationFailed is returned when the human-verification answer is
	// missing, expired, or wrong.
	ErrVerificationFailed = errors.New("human verification failed")
)

// Lookup and action errors.
var (
	// ErrListingNotFound indicates that no listing matches the request.
	ErrListingNotFound = errors.New("listing not found")

	// ErrInvalidNetwork is returned for a network outside the catalog.
	ErrInvalidNetwork = errors.New("unknown network")

	// ErrInvalidReport is returned for a report kind other than broken_link
	// or report.
	ErrInvalidReport = errors.New("unknown report kind")

	// ErrAlertsDisabled is returned when no operator alert channel is set up.
	ErrAlertsDisabled = errors.New("alerts disabled")

	// ErrInvalidCredentials is returned by admin login on a bad email or
	// password.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAdminDisabled is returned when admin credentials are not configured.
	ErrAdminDisabled = errors.New("admin login disabled")
)

// ValidationError carries one message per failing field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// StageError reports the submission stage at which Submit stopped.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }
