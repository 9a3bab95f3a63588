/*
Package errors implements custom error interfaces for the channel ledger.

Reuse the errors declared by this package where possible and register custom
package errors only when absolutely necessary. Every root error carries a code
that allows the client to distinguish kinds of failures and act accordingly.

If you want to register a custom error - use Register(code, description).
For reusing errors - use Errxxx.New and Errxxx.Newf, or Wrap and Wrapf.
Test the kind of an error with Errxxx.Is(err).

Stacktraces are attached by the most inner Wrap call. Do not create errors as a
global `var ErrFoo = errors.ErrInput.New("foo")` or you will get a useless
stacktrace.

Once you have an error, you can use `fmt.Printf/Sprintf` to get more context
	%s is just the error message
	%+v is the message followed by the stack trace
*/
package errors
