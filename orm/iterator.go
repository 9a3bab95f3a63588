package orm

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// ModelIterator decodes models from a bucket range.
//
//   it, err := bucket.PrefixScan(db, nil, false)
//   ...
//   defer it.Release()
//   for {
//     var m MyModel
//     key, err := it.LoadNext(&m)
//     if errors.ErrIteratorDone.Is(err) {
//       break
//     }
//     ...
//   }
type ModelIterator struct {
	iter      chanledger.Iterator
	prefixLen int
}

// LoadNext loads the next model into dest and returns its primary key. It
// returns ErrIteratorDone once all models were read.
func (it *ModelIterator) LoadNext(dest Model) ([]byte, error) {
	key, raw, err := it.iter.Next()
	if err != nil {
		return nil, err
	}
	if err := proto.Unmarshal(raw, dest); err != nil {
		return nil, errors.Wrapf(errors.ErrModel, "cannot unmarshal %T: %s", dest, err)
	}
	pk := make([]byte, len(key)-it.prefixLen)
	copy(pk, key[it.prefixLen:])
	return pk, nil
}

// Release releases the underlying iterator.
func (it *ModelIterator) Release() {
	it.iter.Release()
}
