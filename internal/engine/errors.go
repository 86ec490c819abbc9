package engine

import (
	"errors"
	"fmt"
)

// ErrorKind classifies per-engine failures so callers can react without
// string-matching messages.
type ErrorKind int

const (
	// KindUnavailable means the engine is not configured or reachable.
	KindUnavailable ErrorKind = iota
	// KindTransientNetwork covers timeouts and connection resets.
	KindTransientNetwork
	// KindContentBlocked means a remote safety or policy filter
	// rejected the content. Never retried.
	KindContentBlocked
	// KindAuthentication means invalid or expired credentials. Fatal
	// for the engine; the message names the credential involved.
	KindAuthentication
	// KindUnsupportedLanguage means the requested language pair is not
	// in the engine's supported set. Raised before any network call.
	KindUnsupportedLanguage
	// KindUnknown is anything the adapter could not classify.
	KindUnknown
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnavailable:
		return "EngineUnavailable"
	case KindTransientNetwork:
		return "TransientNetwork"
	case KindContentBlocked:
		return "ContentBlocked"
	case KindAuthentication:
		return "Authentication"
	case KindUnsupportedLanguage:
		return "UnsupportedLanguage"
	default:
		return "Unknown"
	}
}

// Error is the structured per-engine failure recorded on a run.
type Error struct {
	Kind    ErrorKind
	Engine  string
	Message string
	Cause   error
}

func NewError(kind ErrorKind, engine, message string) *Error {
	return &Error{Kind: kind, Engine: engine, Message: message}
}

func NewErrorWithCause(kind ErrorKind, engine, message string, cause error) *Error {
	return &Error{Kind: kind, Engine: engine, Message: message, Cause: cause}
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s: %s", e.Kind, e.Engine, e.Message)
	if e.Cause != nil {
		msg += fmt.Sprintf(" | cause: %v", e.Cause)
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// IsKind reports whether err is an engine error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr.Kind == kind
	}
	return false
}

// KindOf extracts the kind of an engine error, or KindUnknown for
// anything else.
func KindOf(err error) ErrorKind {
	var engErr *Error
	if errors.As(err, &engErr) {
		return engErr.Kind
	}
	return KindUnknown
}
