// Package validate provides fail-fast precondition checks used when
// maskers, rules and pipelines are constructed.
//
// Every check returns nil or a *Error. All errors unwrap to ErrInvalid so
// callers can test for a configuration failure with errors.Is.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

// ErrInvalid is the sentinel wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Error describes a failed precondition.
type Error struct {
	Field  string
	Reason string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalid, e.Reason)
	}
	return fmt.Sprintf("%s: %s %s", ErrInvalid, e.Field, e.Reason)
}

// Unwrap returns ErrInvalid.
func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Errorf builds an *Error with a formatted reason.
func Errorf(field, format string, args ...any) error {
	return &Error{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// NotNil fails when v is nil, including typed nil pointers, maps, slices,
// funcs, channels and interfaces.
func NotNil(field string, v any) error {
	if v == nil {
		return &Error{Field: field, Reason: "must not be nil"}
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		if rv.IsNil() {
			return &Error{Field: field, Reason: "must not be nil"}
		}
	}
	return nil
}

// NotEmpty fails when s is empty or contains only whitespace.
func NotEmpty(field, s string) error {
	if strings.TrimSpace(s) == "" {
		return &Error{Field: field, Reason: "must not be empty"}
	}
	return nil
}

// NotEmptySlice fails when s has no elements.
func NotEmptySlice[T any](field string, s []T) error {
	if len(s) == 0 {
		return &Error{Field: field, Reason: "must not be empty"}
	}
	return nil
}

// True fails with reason when cond is false.
func True(field string, cond bool, reason string) error {
	if !cond {
		return &Error{Field: field, Reason: reason}
	}
	return nil
}

var kebabCase = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// KebabCase fails unless s is lower-case words joined by single hyphens,
// e.g. "except-first-character".
func KebabCase(field, s string) error {
	if err := NotEmpty(field, s); err != nil {
		return err
	}
	if !kebabCase.MatchString(s) {
		return &Error{Field: field, Reason: fmt.Sprintf("%q must be in kebab-case", s)}
	}
	return nil
}

// First returns the first non-nil error.
func First(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
