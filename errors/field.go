package errors

import (
	"fmt"

	"github.com/pkg/errors"
)

// Field attributes err to a named field of a model or configuration. Nil is
// returned when err is nil. A stack trace is attached if err does not carry
// one yet.
//
// Field names use Go naming, for example MinChannelAmount. Nested fields are
// joined with a dot (Configuration.Owner) and list elements are named by
// their index (Accounts.2).
func Field(fieldName string, err error, description string, args ...interface{}) error {
	if isNilErr(err) {
		return nil
	}
	if stackTrace(err) == nil {
		err = errors.WithStack(err)
	}
	if len(args) > 0 {
		description = fmt.Sprintf(description, args...)
	}
	return &fieldError{parent: err, field: fieldName, desc: description}
}

// AppendField adds a field error to errs. Both errs and fieldErr can be nil.
// This is the usual way of collecting all problems found by a Validate
// method.
func AppendField(errs error, fieldName string, fieldErr error) error {
	return Append(errs, Field(fieldName, fieldErr, ""))
}

type fieldError struct {
	parent error
	field  string
	desc   string
}

func (e *fieldError) Error() string {
	if e.desc == "" {
		return fmt.Sprintf("field %q: %s", e.field, e.parent)
	}
	return fmt.Sprintf("field %q: %s: %s", e.field, e.desc, e.parent)
}

// Cause implements causer.
func (e *fieldError) Cause() error {
	return e.parent
}

// Field returns the name of the field this error was created for.
func (e *fieldError) Field() string {
	return e.field
}

// FieldErrors walks the error tree and returns every error created for given
// field name. The search does not descend into a matching field error, so
// for nested errors of the same field only the outermost one is returned.
func FieldErrors(err error, fieldName string) []error {
	var res []error
	for !isNilErr(err) {
		if f, ok := err.(interface{ Field() string }); ok && f.Field() == fieldName {
			return append(res, err)
		}
		switch e := err.(type) {
		case unpacker:
			for _, child := range e.Unpack() {
				res = append(res, FieldErrors(child, fieldName)...)
			}
			return res
		case causer:
			err = e.Cause()
		default:
			return res
		}
	}
	return res
}
