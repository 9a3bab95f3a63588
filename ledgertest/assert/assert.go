// Package assert provides the few assertions used across the ledger tests.
package assert

import (
	"reflect"
	"testing"

	"github.com/iov-one/chanledger/errors"
)

// Tester is the part of testing.TB the assertions need.
type Tester interface {
	Helper()
	Fatal(...interface{})
	Fatalf(string, ...interface{})
}

// Nil fails the test unless value is nil or a nil pointer, map, slice,
// channel, function or interface.
func Nil(t Tester, value interface{}) {
	t.Helper()
	if !isNil(value) {
		// %+v prints the stack trace of errors that carry one.
		t.Fatalf("want a nil value, got %+v", value)
	}
}

func isNil(value interface{}) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map, reflect.Ptr, reflect.Slice:
		return v.IsNil()
	default:
		return false
	}
}

// Equal fails the test unless both values are deeply equal and of the same
// type.
func Equal(t Tester, want, got interface{}) {
	t.Helper()
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("values not equal \nwant %T %v\n got %T %v", want, want, got, got)
	}
}

// Panics fails the test if fn returns without panicking.
func Panics(t Tester, fn func()) {
	t.Helper()
	defer func() {
		if recover() == nil {
			t.Fatal("panic expected")
		}
	}()
	fn()
}

// IsErr fails the test unless got is of the kind of want. Two nil errors
// match.
func IsErr(t Tester, want, got error) {
	t.Helper()
	if want == got {
		return
	}
	if kind, ok := want.(interface{ Is(error) bool }); ok && kind.Is(got) {
		return
	}
	t.Fatalf("want %q, got %+v", want, got)
}

// FieldError fails the test unless err holds exactly one error for given
// field and that error is of the kind of want. With want being nil, the test
// fails if any error was found for the field.
func FieldError(t testing.TB, err error, fieldName string, want *errors.Error) {
	t.Helper()

	errs := errors.FieldErrors(err, fieldName)
	if want == nil && len(errs) == 0 {
		return
	}
	if want != nil && len(errs) == 1 {
		if !want.Is(errs[0]) {
			t.Fatalf("field %q: want %q, got %+v", fieldName, want, errs[0])
		}
		return
	}
	for i, e := range errs {
		t.Logf("\terror %d: %q", i+1, e)
	}
	if want == nil {
		t.Fatalf("field %q: want no error, got %d", fieldName, len(errs))
	} else {
		t.Fatalf("field %q: want one %q error, got %d", fieldName, want, len(errs))
	}
}
