package app

import (
	"context"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// DeliverFunc applies state transitions to the store.
type DeliverFunc func(ctx context.Context, db chanledger.KVStore) error

// recovering turns panics raised by fn into ErrPanic errors, so that a
// single faulty call cannot bring the application down.
func recovering(fn DeliverFunc) DeliverFunc {
	return func(ctx context.Context, db chanledger.KVStore) (err error) {
		defer errors.Recover(&err)
		return fn(ctx, db)
	}
}
