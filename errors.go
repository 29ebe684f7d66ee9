// SPDX-License-Identifier: MPL-2.0
// Copyright (c) 2026 Peter Nørlund

package snmp

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure into one of the four broker-side categories.
//
// The kind travels across the RPC boundary with the error message, so a
// worker sees the same classification the broker produced.
type ErrorKind int

const (
	// ErrorConfig covers bad or missing credential material. Fatal,
	// surfaced immediately, never retried.
	ErrorConfig ErrorKind = iota + 1

	// ErrorTransport covers network and timeout failures. Retry policy, if
	// any, belongs to the device-protocol engine, not to this package.
	ErrorTransport

	// ErrorDevice covers non-zero device status on an otherwise successful
	// exchange; the message carries the device-provided status text.
	ErrorDevice

	// ErrorProtocol covers malformed or unrecognized wire frames. A
	// protocol error on the request pipe terminates that broker's loop.
	ErrorProtocol
)

// String returns the wire name of the error kind.
func (k ErrorKind) String() string {
	switch k {
	case ErrorConfig:
		return "config"
	case ErrorTransport:
		return "transport"
	case ErrorDevice:
		return "device"
	case ErrorProtocol:
		return "protocol"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// parseErrorKind maps a wire name back to an ErrorKind.
func parseErrorKind(s string) (ErrorKind, bool) {
	switch s {
	case "config":
		return ErrorConfig, true
	case "transport":
		return ErrorTransport, true
	case "device":
		return ErrorDevice, true
	case "protocol":
		return ErrorProtocol, true
	default:
		return 0, false
	}
}

// ErrMissingCredential is reported by ResolveCredentials when neither a
// community string nor a username is configured.
var ErrMissingCredential = errors.New("neither community nor username configured")

// Error is the single error type produced by this package.
//
// Broker-side errors cross the RPC boundary as an error-response field and
// are rebuilt client-side as the same type, so callers decide success or
// failure without parsing message text.
type Error struct {
	// Kind classifies the failure
	Kind ErrorKind

	// Op names the operation that failed (get, set, walk, ...)
	Op string

	// Message is the human-readable failure description
	Message string

	// Err is the wrapped cause, when one exists locally. It does not
	// survive the RPC boundary; only Kind, Op and Message do.
	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("snmp: %s failed: %s", e.Op, e.Message)
	}
	return "snmp: " + e.Message
}

// Unwrap returns the wrapped cause, if any.
func (e *Error) Unwrap() error {
	return e.Err
}

func configErrorf(op, format string, args ...any) *Error {
	return &Error{Kind: ErrorConfig, Op: op, Message: fmt.Sprintf(format, args...)}
}

func transportErrorf(op string, cause error, format string, args ...any) *Error {
	return &Error{Kind: ErrorTransport, Op: op, Message: fmt.Sprintf(format, args...), Err: cause}
}

func deviceErrorf(op, format string, args ...any) *Error {
	return &Error{Kind: ErrorDevice, Op: op, Message: fmt.Sprintf(format, args...)}
}

func protocolErrorf(op, format string, args ...any) *Error {
	return &Error{Kind: ErrorProtocol, Op: op, Message: fmt.Sprintf(format, args...)}
}

// asError coerces any error into *Error, wrapping foreign errors as
// transport failures so the worker-facing surface stays uniform.
func asError(op string, err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return transportErrorf(op, err, "%s", err.Error())
}
