// Package apperr classifies errors that reach the CLI boundary.
//
// A domain error carries a Kind and a user-safe one-line message. Anything
// that is not a domain error is treated as unexpected and printed with full
// detail.
package apperr

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Kind groups domain errors by how the user should react to them.
type Kind string

const (
	KindConfig     Kind = "config"
	KindDependency Kind = "dependency"
	KindConflict   Kind = "conflict"
	KindProcess    Kind = "process"
	KindResource   Kind = "resource"
	KindUsage      Kind = "usage"
)

// Error separates a user-safe message from verbose debug details.
type Error struct {
	Kind        Kind
	UserSafe    string
	DebugDetail string
	Err         error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if strings.TrimSpace(e.UserSafe) == "" {
		if e.Err != nil {
			return e.Err.Error()
		}
		return "operation failed"
	}
	return e.UserSafe
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a domain error with a user-safe message.
func New(kind Kind, userSafe string) error {
	return &Error{Kind: kind, UserSafe: userSafe}
}

// Newf is New with formatting.
func Newf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, UserSafe: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under kind. The user-safe message replaces err's text
// on the CLI while errors.Is and errors.As still reach err.
func Wrap(kind Kind, err error, userSafe string) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, UserSafe: userSafe, DebugDetail: err.Error(), Err: err}
}

// KindOf returns the kind of the outermost domain error in err's chain.
func KindOf(err error) (Kind, bool) {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// Is reports whether err is a domain error of the given kind.
func Is(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}

// IsDomain reports whether err was raised deliberately by oo.
func IsDomain(err error) bool {
	_, ok := KindOf(err)
	return ok
}

// UserMessage returns a message safe to show in CLI contexts.
func UserMessage(err error, redact bool) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var ae *Error
	if errors.As(err, &ae) {
		msg = ae.Error()
	}
	if redact {
		return RedactMessage(msg)
	}
	return msg
}

// DebugMessage returns detailed error text for logs.
func DebugMessage(err error) string {
	if err == nil {
		return ""
	}
	var ae *Error
	if errors.As(err, &ae) && strings.TrimSpace(ae.DebugDetail) != "" {
		return ae.DebugDetail
	}
	return err.Error()
}

// RedactMessage replaces the home directory with "~".
func RedactMessage(msg string) string {
	if msg == "" {
		return msg
	}
	if home, err := os.UserHomeDir(); err == nil && home != "" && home != "/" {
		return strings.ReplaceAll(msg, home, "~")
	}
	return msg
}
