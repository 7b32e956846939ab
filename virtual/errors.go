package virtual

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode categorizes virtual field errors.
type ErrorCode string

const (
	// ErrCodeInvalidConfig is a configuration value that could not be parsed.
	ErrCodeInvalidConfig ErrorCode = "INVALID_CONFIG"

	// ErrCodeUnknownGenerator is a generator identifier with no registered factory.
	ErrCodeUnknownGenerator ErrorCode = "UNKNOWN_GENERATOR"

	// ErrCodeMissingConfig is a required configuration value that was not set.
	ErrCodeMissingConfig ErrorCode = "MISSING_CONFIG"

	// ErrCodeUnknownColumn is a required column that is not in the table schema.
	ErrCodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"

	// ErrCodeMissingGenerator is a virtual field read with no generator configured.
	ErrCodeMissingGenerator ErrorCode = "MISSING_GENERATOR"

	// ErrCodeUnresolvableField is a field that cannot be computed for a record,
	// usually because a required column is null or absent.
	ErrCodeUnresolvableField ErrorCode = "UNRESOLVABLE_FIELD"
)

// Error is returned by registry construction and field resolution.
// Configuration codes are only returned while building a Registry, the
// other codes only while reading a record.
type Error struct {
	Code ErrorCode

	// Field is the virtual field (or identity field) involved, if any.
	Field string

	// Generator is the generator identifier involved, if any.
	Generator string

	// Column is the source column involved, if any.
	Column string

	Message string

	Err error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(string(e.Code))
	b.WriteString(": ")
	b.WriteString(e.Message)

	var attrs []string
	if e.Field != "" {
		attrs = append(attrs, "field="+e.Field)
	}
	if e.Generator != "" {
		attrs = append(attrs, "generator="+e.Generator)
	}
	if e.Column != "" {
		attrs = append(attrs, "column="+e.Column)
	}
	if len(attrs) > 0 {
		b.WriteString(" (")
		b.WriteString(strings.Join(attrs, ", "))
		b.WriteString(")")
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsConfiguration reports whether the error came from building a Registry.
func (e *Error) IsConfiguration() bool {
	switch e.Code {
	case ErrCodeInvalidConfig, ErrCodeUnknownGenerator, ErrCodeMissingConfig, ErrCodeUnknownColumn:
		return true
	}
	return false
}

// IsPermanent marks configuration errors as not worth retrying.
func (e *Error) IsPermanent() bool {
	return e.IsConfiguration()
}

func IsConfigurationError(err error) bool {
	var ve *Error
	return errors.As(err, &ve) && ve.IsConfiguration()
}

func IsMissingGeneratorError(err error) bool {
	return hasCode(err, ErrCodeMissingGenerator)
}

func IsUnresolvableFieldError(err error) bool {
	return hasCode(err, ErrCodeUnresolvableField)
}

// CodeOf returns the code of the first *Error in err's chain, or "".
func CodeOf(err error) ErrorCode {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Code
	}
	return ""
}

func hasCode(err error, code ErrorCode) bool {
	return CodeOf(err) == code
}

func invalidConfig(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeInvalidConfig,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func missingConfig(field, format string, args ...any) *Error {
	return &Error{
		Code:    ErrCodeMissingConfig,
		Field:   field,
		Message: fmt.Sprintf(format, args...),
	}
}

func missingGenerator(field string) *Error {
	return &Error{
		Code:    ErrCodeMissingGenerator,
		Field:   field,
		Message: "no generator configured for virtual field",
	}
}

func unresolvable(field, generator, column, format string, args ...any) *Error {
	return &Error{
		Code:      ErrCodeUnresolvableField,
		Field:     field,
		Generator: generator,
		Column:    column,
		Message:   fmt.Sprintf(format, args...),
	}
}
