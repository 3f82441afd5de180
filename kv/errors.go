// Copyright 2026 The kvidxkit Authors
// This file is part of kvidxkit.
//
// kvidxkit is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// kvidxkit is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with kvidxkit. If not, see <http://www.gnu.org/licenses/>.

package kv

import (
	"errors"
	"fmt"

	"github.com/go-stack/stack"
)

// ErrorKind is the four-band error taxonomy surfaced to callers.
type ErrorKind int

const (
	KindOK ErrorKind = iota
	KindNotFound
	KindDuplicateKey
	KindConditionFailed
	KindInvalidArgument
	KindIO
	KindInternal
	KindNotSupported
	KindCancelled
)

func (k ErrorKind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindNotFound:
		return "not-found"
	case KindDuplicateKey:
		return "duplicate-key"
	case KindConditionFailed:
		return "condition-failed"
	case KindInvalidArgument:
		return "invalid-argument"
	case KindIO:
		return "io"
	case KindInternal:
		return "internal"
	case KindNotSupported:
		return "not-supported"
	case KindCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Error is the concrete error type returned across the contract. Predicate
// failures (KindNotFound, KindDuplicateKey, KindConditionFailed) carry no
// diagnostic message, by design of the predicate band in spec §7; the other
// bands attach Message and, for the storage/internal bands, a call-site
// frame captured with go-stack so engine-originated failures are easier to
// place during triage.
type Error struct {
	Kind    ErrorKind
	Message string
	Frame   string
	Wrapped error
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Kind.String()
	}
	if e.Frame != "" {
		return fmt.Sprintf("%s: %s (at %s)", e.Kind, e.Message, e.Frame)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Wrapped }

// Is supports errors.Is(err, kv.ErrNotFound) and friends by comparing Kind.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

// Sentinel errors for errors.Is comparisons. Predicate-band sentinels carry
// no message; callers branch on them directly.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrDuplicateKey    = &Error{Kind: KindDuplicateKey}
	ErrConditionFailed = &Error{Kind: KindConditionFailed}
	ErrCancelled       = &Error{Kind: KindCancelled}
)

// InvalidArgument builds an argument-band error identifying which argument
// is at fault.
func InvalidArgument(format string, args ...any) *Error {
	return &Error{Kind: KindInvalidArgument, Message: fmt.Sprintf(format, args...)}
}

// NotSupported builds an argument-band error for an operation a given
// adapter does not implement.
func NotSupported(format string, args ...any) *Error {
	return &Error{Kind: KindNotSupported, Message: fmt.Sprintf(format, args...)}
}

// IOError builds a storage-band error preserving the engine's own text and
// a captured call-site frame.
func IOError(wrapped error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindIO,
		Message: fmt.Sprintf(format, args...),
		Frame:   callerFrame(),
		Wrapped: wrapped,
	}
}

// InternalError builds an internal-band error: a store invariant was
// violated in a way the caller cannot act on directly.
func InternalError(wrapped error, format string, args ...any) *Error {
	return &Error{
		Kind:    KindInternal,
		Message: fmt.Sprintf(format, args...),
		Frame:   callerFrame(),
		Wrapped: wrapped,
	}
}

func callerFrame() string {
	c := stack.Caller(2)
	return fmt.Sprintf("%+v", c)
}

// KindOf extracts the ErrorKind from err, defaulting to KindInternal for
// errors not produced by this package.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindOK
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
