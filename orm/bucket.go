package orm

import (
	"fmt"
	"regexp"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

var (
	isBucketName = regexp.MustCompile(`^[a-z_]{3,10}$`).MatchString
)

// Bucket is a prefixed subspace of the DB holding one type of Model.
//
// It is a generic building block that should generally be embedded in a
// type-safe wrapper to ensure all data is the same type.
type Bucket struct {
	name    string
	prefix  []byte
	proto   Model
	indexes map[string]Index
}

// NewBucket creates a bucket to store data. proto is the type of all models
// stored, it is cloned whenever the bucket must decode a model on its own.
// Panics on an illegal name.
func NewBucket(name string, proto Model) Bucket {
	if !isBucketName(name) {
		panic(fmt.Sprintf("Illegal bucket: %s", name))
	}
	return Bucket{
		name:   name,
		prefix: append([]byte(name), ':'),
		proto:  proto,
	}
}

// Name returns the name of this bucket.
func (b Bucket) Name() string {
	return b.name
}

// DBKey is the full key we store in the db, including prefix
// We copy into a new array rather than use append, as we don't
// want consecutive calls to overwrite the same byte array.
func (b Bucket) DBKey(key []byte) []byte {
	l := len(b.prefix)
	out := make([]byte, l+len(key))
	copy(out, b.prefix)
	copy(out[l:], key)
	return out
}

// One loads the model stored under given primary key into dest.
// ErrNotFound is returned if nothing is stored under that key.
func (b Bucket) One(db chanledger.ReadOnlyKVStore, key []byte, dest Model) error {
	raw, err := db.Get(b.DBKey(key))
	if err != nil {
		return errors.Wrap(err, "cannot read from the database")
	}
	if raw == nil {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", b.name, key)
	}
	if err := proto.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot unmarshal %T: %s", dest, err)
	}
	return nil
}

// Has returns true if a model is stored under given primary key.
func (b Bucket) Has(db chanledger.ReadOnlyKVStore, key []byte) (bool, error) {
	return db.Has(b.DBKey(key))
}

// Put validates and saves given model, updating all indexes.
func (b Bucket) Put(db chanledger.KVStore, key []byte, m Model) error {
	if len(key) == 0 {
		return errors.Wrap(errors.ErrEmpty, "key")
	}
	if err := m.Validate(); err != nil {
		return errors.Wrap(err, "invalid model")
	}
	raw, err := proto.Marshal(m)
	if err != nil {
		return errors.Wrapf(errors.ErrModel, "cannot marshal %T: %s", m, err)
	}
	if err := b.updateIndexes(db, key, m); err != nil {
		return err
	}
	if raw == nil {
		raw = []byte{}
	}
	if err := db.Set(b.DBKey(key), raw); err != nil {
		return errors.Wrap(err, "cannot store in the database")
	}
	return nil
}

// Delete removes the model stored under given key. It returns ErrNotFound
// if nothing is stored there.
func (b Bucket) Delete(db chanledger.KVStore, key []byte) error {
	has, err := b.Has(db, key)
	if err != nil {
		return err
	}
	if !has {
		return errors.Wrapf(errors.ErrNotFound, "%s %X", b.name, key)
	}
	if err := b.updateIndexes(db, key, nil); err != nil {
		return err
	}
	return db.Delete(b.DBKey(key))
}

// PrefixScan returns an iterator over all models whose primary key starts
// with given prefix, in key order. A nil prefix iterates over the whole
// bucket.
func (b Bucket) PrefixScan(db chanledger.ReadOnlyKVStore, prefix []byte, reverse bool) (*ModelIterator, error) {
	start := b.DBKey(prefix)
	end := prefixEnd(start)
	var (
		it  chanledger.Iterator
		err error
	)
	if reverse {
		it, err = db.ReverseIterator(start, end)
	} else {
		it, err = db.Iterator(start, end)
	}
	if err != nil {
		return nil, errors.Wrap(err, "cannot create iterator")
	}
	return &ModelIterator{iter: it, prefixLen: len(b.prefix)}, nil
}

// Sequence returns a Sequence by name
func (b Bucket) Sequence(name string) Sequence {
	return NewSequence(b.name, name)
}

// WithIndex returns a copy of this bucket with given index,
// panics if it an index with that name is already registered.
//
// Designed to be chained.
func (b Bucket) WithIndex(name string, indexer MultiKeyIndexer) Bucket {
	if _, ok := b.indexes[name]; ok {
		panic(fmt.Sprintf("Index %s registered twice", name))
	}
	indexes := make(map[string]Index, len(b.indexes)+1)
	for n, i := range b.indexes {
		indexes[n] = i
	}
	indexes[name] = NewIndex(b.name+"_"+name, indexer)
	b.indexes = indexes
	return b
}

// IndexKeys returns all primary keys indexed under given value by the named
// index, in ascending order.
func (b Bucket) IndexKeys(db chanledger.ReadOnlyKVStore, name string, value []byte) ([][]byte, error) {
	idx, ok := b.indexes[name]
	if !ok {
		return nil, errors.Wrap(ErrInvalidIndex, name)
	}
	return idx.Keys(db, value)
}

func (b Bucket) updateIndexes(db chanledger.KVStore, key []byte, save Model) error {
	if len(b.indexes) == 0 {
		return nil
	}
	var prev Model
	if has, err := b.Has(db, key); err != nil {
		return err
	} else if has {
		prev = proto.Clone(b.proto).(Model)
		if err := b.One(db, key, prev); err != nil {
			return err
		}
	}
	for _, idx := range b.indexes {
		if err := idx.Update(db, key, prev, save); err != nil {
			return errors.Wrapf(err, "index %s", idx.Name())
		}
	}
	return nil
}

// prefixEnd returns the smallest key that is greater than all keys starting
// with given prefix, or nil if there is none.
func prefixEnd(prefix []byte) []byte {
	end := make([]byte, len(prefix))
	copy(end, prefix)
	for i := len(end) - 1; i >= 0; i-- {
		if end[i] < 0xff {
			end[i]++
			return end[:i+1]
		}
	}
	return nil
}
