package orm

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// Counter is a single unsigned number stored in the db. Unlike Sequence it
// can move in both directions, but never below zero nor past the uint64
// range.
//
// Counters are stored under the following key:
//    _cnt.<bucket>:<name>
type Counter struct {
	id []byte
}

// NewCounter returns a counter stored next to given bucket.
func NewCounter(bucket, name string) Counter {
	return Counter{id: []byte("_cnt." + bucket + ":" + name)}
}

// Value returns the current state of the counter. A counter that was never
// written is zero.
func (c Counter) Value(db chanledger.ReadOnlyKVStore) (uint64, error) {
	raw, err := db.Get(c.id)
	if err != nil {
		return 0, err
	}
	return DecodeSequence(raw)
}

// Add increases the counter by delta and returns the new value.
func (c Counter) Add(db chanledger.KVStore, delta uint64) (uint64, error) {
	val, err := c.Value(db)
	if err != nil {
		return 0, err
	}
	next := val + delta
	if next < val {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d + %d", val, delta)
	}
	return next, c.set(db, next)
}

// Sub decreases the counter by delta and returns the new value.
func (c Counter) Sub(db chanledger.KVStore, delta uint64) (uint64, error) {
	val, err := c.Value(db)
	if err != nil {
		return 0, err
	}
	if delta > val {
		return 0, errors.Wrapf(errors.ErrOverflow, "%d - %d is below zero", val, delta)
	}
	next := val - delta
	return next, c.set(db, next)
}

func (c Counter) set(db chanledger.KVStore, val uint64) error {
	return db.Set(c.id, EncodeSequence(val))
}
