//nolint
package store

import "github.com/iov-one/chanledger"

// Move references for all storage types into this package
// for shorter names everywhere

type ReadOnlyKVStore = chanledger.ReadOnlyKVStore
type SetDeleter = chanledger.SetDeleter
type KVStore = chanledger.KVStore
type Iterator = chanledger.Iterator
type CacheableKVStore = chanledger.CacheableKVStore
type KVCacheWrap = chanledger.KVCacheWrap
type CommitKVStore = chanledger.CommitKVStore
type CommitID = chanledger.CommitID
type Model = chanledger.Model

// Pair constructs a model from a key-value pair
func Pair(key, value []byte) Model {
	return Model{Key: key, Value: value}
}

// Batch can write multiple ops atomically to an underlying KVStore
type Batch interface {
	SetDeleter
	Write() error
}
