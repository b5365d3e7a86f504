// SPDX-License-Identifier: MIT

package pathspace

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
)

// Code is the closed set of error kinds every layer and the facade
// return, bit-stable across layers per spec.md §6.6.
type Code int

const (
	NoSuchPath Code = iota
	InvalidPath
	InvalidPathSubcomponent
	InvalidType
	Timeout
	CapabilityMismatch
	CapabilityWriteMissing
	InvalidPermissions
	MemoryAllocationFailed
	MalformedInput
	UnmatchedQuotes
	NoObjectFound
	NotFound
	NotSupported
	SerializationFunctionMissing
	UnserializableType
	UnknownError
)

func (c Code) String() string {
	switch c {
	case NoSuchPath:
		return "NoSuchPath"
	case InvalidPath:
		return "InvalidPath"
	case InvalidPathSubcomponent:
		return "InvalidPathSubcomponent"
	case InvalidType:
		return "InvalidType"
	case Timeout:
		return "Timeout"
	case CapabilityMismatch:
		return "CapabilityMismatch"
	case CapabilityWriteMissing:
		return "CapabilityWriteMissing"
	case InvalidPermissions:
		return "InvalidPermissions"
	case MemoryAllocationFailed:
		return "MemoryAllocationFailed"
	case MalformedInput:
		return "MalformedInput"
	case UnmatchedQuotes:
		return "UnmatchedQuotes"
	case NoObjectFound:
		return "NoObjectFound"
	case NotFound:
		return "NotFound"
	case NotSupported:
		return "NotSupported"
	case SerializationFunctionMissing:
		return "SerializationFunctionMissing"
	case UnserializableType:
		return "UnserializableType"
	default:
		return "UnknownError"
	}
}

// Error is the typed error every public operation returns instead of
// raising a control-flow exception; task failures are captured the same
// way and surfaced through Failed state rather than a panic crossing an
// API boundary.
type Error struct {
	Code    Code
	Path    string
	Message string
	Err     error // wrapped cause, if any
}

func (e *Error) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("pathspace: %s at %q: %s", e.Code, e.Path, e.Message)
	}
	return fmt.Sprintf("pathspace: %s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// newError constructs an *Error with no wrapped cause.
func newError(code Code, path, message string) *Error {
	return &Error{Code: code, Path: path, Message: message}
}

// NewError is the exported constructor layers (layer/alias,
// layer/trellis, layer/snapshotcache) use to build a Base-contract
// error without reaching into the facade's unexported helpers.
func NewError(code Code, path, message string) *Error {
	return newError(code, path, message)
}

// wrapError constructs an *Error wrapping a lower-level cause (e.g. a
// tree.Err* or queue.Err* sentinel) and classifying it with code.
func wrapError(code Code, path string, cause error) *Error {
	return &Error{Code: code, Path: path, Message: cause.Error(), Err: cause}
}

// appendError folds err into a *multierror.Error accumulator, mirroring
// InsertReturn.Errors's aggregation of per-child failures from a glob
// fan-out insert (YaoApp-yao's use of go-multierror, SPEC_FULL.md §1.2).
func appendError(acc *multierror.Error, err error) *multierror.Error {
	return multierror.Append(acc, err)
}
