package errors

import (
	"fmt"
	"strings"
)

// Append clubs together all provided errors. Nil values are ignored.
//
// If no error is given, nil is returned. If a single non nil error is given,
// it is returned unchanged. Multi errors are flattened.
func Append(errs ...error) error {
	var res multiErr
	for _, err := range errs {
		if isNilErr(err) {
			continue
		}
		if m, ok := err.(multiErr); ok {
			res = append(res, m...)
			continue
		}
		res = append(res, err)
	}

	switch len(res) {
	case 0:
		return nil
	case 1:
		return res[0]
	default:
		return res
	}
}

type multiErr []error

var (
	_ unpacker = multiErr(nil)
	_ coder    = multiErr(nil)
)

func (m multiErr) Error() string {
	points := make([]string, len(m))
	for i, err := range m {
		points[i] = fmt.Sprintf("* %s", err)
	}
	return fmt.Sprintf("%d errors occurred:\n\t%s\n", len(m), strings.Join(points, "\n\t"))
}

// Unpack returns all errors grouped by this instance.
func (m multiErr) Unpack() []error {
	return m
}

// Code returns the code of the first error, consistent with a fail fast
// approach.
func (m multiErr) Code() uint32 {
	return Code(m[0])
}
