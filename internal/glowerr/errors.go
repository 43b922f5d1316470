// Package glowerr classifies setup failures and derives remediation hints from them.
package glowerr

import (
	"errors"
	"fmt"
)

// IssuesURL is where unexpected failures should be reported.
const IssuesURL = "https://github.com/friedjof/GlowLight/issues"

// Kind identifies the class of a setup failure.
type Kind string

const (
	// KindTemplateMissing indicates the configuration template is absent or incomplete.
	KindTemplateMissing Kind = "template missing"
	// KindConfigMissing indicates GlowConfig.h has not been created yet.
	KindConfigMissing Kind = "config missing"
	// KindValidation indicates pin or mesh settings were rejected.
	KindValidation Kind = "validation failed"
	// KindToolMissing indicates PlatformIO (or its installer) could not be found.
	KindToolMissing Kind = "external tool missing"
	// KindToolFailed indicates an external command exited non-zero.
	KindToolFailed Kind = "external tool failed"
	// KindDeviceNotFound indicates no usable serial device was found.
	KindDeviceNotFound Kind = "device not found"
	// KindNotFound indicates a named backup, environment or log does not exist.
	KindNotFound Kind = "not found"
	// KindCancelled indicates the user declined an operation.
	KindCancelled Kind = "cancelled"
)

// Error wraps an underlying error with a Kind and optional remediation hints.
type Error struct {
	Kind  Kind
	Err   error
	Hints []string
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return string(e.Kind)
	}
	var inner *Error
	if errors.As(e.Err, &inner) && inner.Kind == e.Kind {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

// Unwrap exposes the wrapped error to errors.Is/As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New wraps err with kind. A nil err yields an error that reads as the kind alone.
func New(kind Kind, err error) error {
	return &Error{Kind: kind, Err: err}
}

// Errorf formats a message and wraps it with kind.
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// WithHints attaches remediation hints to err, keeping its Kind. Unclassified errors
// are treated as external tool failures.
func WithHints(err error, hints ...string) error {
	if err == nil || len(hints) == 0 {
		return err
	}
	kind := KindOf(err)
	if kind == "" {
		kind = KindToolFailed
	}
	return &Error{Kind: kind, Err: err, Hints: hints}
}

// KindOf returns the outermost Kind in err's chain, or "" if unclassified.
func KindOf(err error) Kind {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}

// Is reports whether err carries kind anywhere in its chain.
func Is(err error, kind Kind) bool {
	for err != nil {
		var ge *Error
		if !errors.As(err, &ge) {
			return false
		}
		if ge.Kind == kind {
			return true
		}
		err = ge.Err
	}
	return false
}
