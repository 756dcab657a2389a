// Package errors provides error handling for lathe.
//
// This package re-exports github.com/cockroachdb/errors, providing:
//   - Stack traces for debugging
//   - Error wrapping and context
//   - User-facing hints
//
// Usage:
//
//	// Wrap a sentinel with context
//	return errors.Wrapf(errors.ErrInvalidRange, "reorder from %d", from)
//
//	// Add hints for users
//	return errors.WithHint(err, "use 'ls' to list valid indices")
//
//	// Check errors
//	if errors.Is(err, errors.ErrEmptyStack) {
//	    // nothing to undo
//	}
//
// For full documentation see: https://pkg.go.dev/github.com/cockroachdb/errors
package errors

import (
	crdb "github.com/cockroachdb/errors"
)

// Core error creation and wrapping
var (
	New          = crdb.New
	Newf         = crdb.Newf
	Wrap         = crdb.Wrap
	Wrapf        = crdb.Wrapf
	WithStack    = crdb.WithStack
	WithMessage  = crdb.WithMessage
	WithMessagef = crdb.WithMessagef
)

// User-facing messages and details
var (
	WithHint           = crdb.WithHint
	WithHintf          = crdb.WithHintf
	WithDetail         = crdb.WithDetail
	WithDetailf        = crdb.WithDetailf
	WithSecondaryError = crdb.WithSecondaryError
)

// Error inspection
var (
	Is             = crdb.Is
	IsAny          = crdb.IsAny
	As             = crdb.As
	Unwrap         = crdb.Unwrap
	UnwrapAll      = crdb.UnwrapAll
	GetAllHints    = crdb.GetAllHints
	GetAllDetails  = crdb.GetAllDetails
	FlattenHints   = crdb.FlattenHints
	FlattenDetails = crdb.FlattenDetails
)

// Assertions
var (
	AssertionFailedf = crdb.AssertionFailedf
)

// Sentinel errors for the feature history core.
// Wrap these with Wrapf to add context while preserving the kind.
var (
	// ErrInvalidReference indicates an unknown or duplicate feature/entity id.
	// Most mutations treat an unknown id as a silent no-op; registration
	// of a duplicate id is a hard failure.
	ErrInvalidReference = New("invalid reference")

	// ErrInvalidRange indicates an index outside the valid bounds, or an
	// entry that cannot be moved (component children).
	ErrInvalidRange = New("invalid range")

	// ErrEmptyStack indicates undo or redo was requested with nothing to restore.
	ErrEmptyStack = New("empty stack")

	// ErrInvalidSnapshot indicates a snapshot slice was handed to a
	// participant that did not produce it.
	ErrInvalidSnapshot = New("invalid snapshot")

	// ErrInvalidKind indicates an unknown feature kind.
	ErrInvalidKind = New("invalid feature kind")
)

// IsInvalidReference checks if an error is or wraps ErrInvalidReference
func IsInvalidReference(err error) bool {
	return err != nil && Is(err, ErrInvalidReference)
}

// IsInvalidRange checks if an error is or wraps ErrInvalidRange
func IsInvalidRange(err error) bool {
	return err != nil && Is(err, ErrInvalidRange)
}

// IsEmptyStack checks if an error is or wraps ErrEmptyStack
func IsEmptyStack(err error) bool {
	return err != nil && Is(err, ErrEmptyStack)
}

// NewInvalidReferenceError creates an invalid-reference error with a formatted message
func NewInvalidReferenceError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidReference, format, args...)
}

// NewInvalidRangeError creates an invalid-range error with a formatted message
func NewInvalidRangeError(format string, args ...interface{}) error {
	return Wrapf(ErrInvalidRange, format, args...)
}
