package orm

import (
	"bytes"
	"encoding/binary"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

const idxPrefix = "_i."

// MultiKeyIndexer calculates the secondary index values for a given model.
// Returning no values means the model is not indexed.
type MultiKeyIndexer func(Model) ([][]byte, error)

// Index is a non unique secondary index. Every (value, primary key) pair is
// stored as a separate db entry, so indexing a value does not require
// reading or rewriting the other references to it.
type Index struct {
	name    string
	id      []byte
	indexer MultiKeyIndexer
}

// NewIndex returns an index stored under _i.<name>: that uses indexer to
// compute the values a model is indexed by.
func NewIndex(name string, indexer MultiKeyIndexer) Index {
	return Index{
		name:    name,
		id:      []byte(idxPrefix + name + ":"),
		indexer: indexer,
	}
}

// Name returns the name of this index.
func (i Index) Name() string {
	return i.name
}

// valuePrefix returns the db prefix shared by all entries indexed under
// value. Value length is encoded first so that a value is never a prefix of
// another one.
func (i Index) valuePrefix(value []byte) []byte {
	l := len(i.id)
	out := make([]byte, l+2+len(value))
	copy(out, i.id)
	binary.BigEndian.PutUint16(out[l:], uint16(len(value)))
	copy(out[l+2:], value)
	return out
}

func (i Index) entryKey(value, pk []byte) []byte {
	prefix := i.valuePrefix(value)
	out := make([]byte, len(prefix)+len(pk))
	copy(out, prefix)
	copy(out[len(prefix):], pk)
	return out
}

// Update moves the references of primary key pk from the values of prev to
// the values of save.
//
// prev == nil means insert
// save == nil means delete
func (i Index) Update(db chanledger.KVStore, pk []byte, prev, save Model) error {
	if prev == nil && save == nil {
		return errors.Wrap(errors.ErrHuman, "update requires at least one non-nil model")
	}
	var oldValues, newValues [][]byte
	if prev != nil {
		vals, err := i.indexer(prev)
		if err != nil {
			return err
		}
		oldValues = vals
	}
	if save != nil {
		vals, err := i.indexer(save)
		if err != nil {
			return err
		}
		newValues = vals
	}

	for _, v := range oldValues {
		if containsValue(newValues, v) {
			continue
		}
		if err := db.Delete(i.entryKey(v, pk)); err != nil {
			return err
		}
	}
	for _, v := range newValues {
		if len(v) > 0xffff {
			return errors.Wrap(errors.ErrInput, "index value too long")
		}
		if err := db.Set(i.entryKey(v, pk), []byte{}); err != nil {
			return err
		}
	}
	return nil
}

// Keys returns all primary keys indexed under given value, in ascending
// order.
func (i Index) Keys(db chanledger.ReadOnlyKVStore, value []byte) ([][]byte, error) {
	prefix := i.valuePrefix(value)
	it, err := db.Iterator(prefix, prefixEnd(prefix))
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	defer it.Release()

	var keys [][]byte
	for {
		key, _, err := it.Next()
		if errors.ErrIteratorDone.Is(err) {
			return keys, nil
		}
		if err != nil {
			return nil, err
		}
		pk := make([]byte, len(key)-len(prefix))
		copy(pk, key[len(prefix):])
		keys = append(keys, pk)
	}
}

func containsValue(values [][]byte, v []byte) bool {
	for _, x := range values {
		if bytes.Equal(x, v) {
			return true
		}
	}
	return false
}
