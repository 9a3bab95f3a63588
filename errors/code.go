package errors

import "fmt"

const (
	// SuccessCode is used when the processing was successful and no error
	// is returned.
	SuccessCode uint32 = 0

	// All unclassified errors that do not provide a code are clubbed under
	// an internal error code and a generic message instead of detailed
	// error string.
	internalCode uint32 = 1
	internalLog         = "internal error"
)

type coder interface {
	Code() uint32
}

// Code returns the registered code of the root cause of given error. Errors
// that do not originate from this package are reported as internal.
func Code(err error) uint32 {
	if isNilErr(err) {
		return SuccessCode
	}

	for {
		if c, ok := err.(coder); ok {
			return c.Code()
		}

		if c, ok := err.(causer); ok {
			err = c.Cause()
		} else {
			return internalCode
		}
	}
}

// Info returns the error code and a message that can be safely returned to
// the client.
//
// When not running in a debug mode all messages of errors that do not provide
// code information are replaced with generic "internal error".
func Info(err error, debug bool) (uint32, string) {
	if isNilErr(err) {
		return SuccessCode, ""
	}

	code := Code(err)
	if debug {
		// Try to trigger full information formatting. This might
		// produce a stacktrace.
		return code, fmt.Sprintf("%+v", err)
	}
	if code == internalCode || ErrPanic.Is(err) {
		return internalCode, internalLog
	}
	return code, err.Error()
}
