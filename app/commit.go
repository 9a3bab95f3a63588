package app

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/orm"
)

// CommitStore handles loading from a CommitKVStore, maintaining the
// deliver CacheWrap, and returning useful state info.
type CommitStore struct {
	committed chanledger.CommitKVStore
	deliver   chanledger.KVCacheWrap
}

// NewCommitStore loads the latest version of the CommitKVStore and sets up
// the deliver cache.
func NewCommitStore(store chanledger.CommitKVStore) (*CommitStore, error) {
	if err := store.LoadLatestVersion(); err != nil {
		return nil, errors.Wrap(err, "load latest version")
	}
	return &CommitStore{
		committed: store,
		deliver:   store.CacheWrap(),
	}, nil
}

// CommitInfo returns the current version and hash
func (cs *CommitStore) CommitInfo() (chanledger.CommitID, error) {
	return cs.committed.LatestVersion()
}

// Commit will flush deliver to the underlying store and commit it
// to disk. It then regenerates a new deliver cache.
func (cs *CommitStore) Commit() (chanledger.CommitID, error) {
	if err := cs.deliver.Write(); err != nil {
		return chanledger.CommitID{}, err
	}
	res, err := cs.committed.Commit()
	if err != nil {
		return res, err
	}
	cs.deliver = cs.committed.CacheWrap()
	return res, nil
}

// DeliverStore returns the store all state transitions are applied to.
func (cs *CommitStore) DeliverStore() chanledger.CacheableKVStore {
	return cs.deliver
}

//------- storing chainID and height ---------

// _cl: is a prefix for ledger internal data
const (
	chainIDKey = "_cl:chainID"
	heightKey  = "_cl:height"
)

// loadChainID returns the chain id stored if any
func loadChainID(kv chanledger.ReadOnlyKVStore) (string, error) {
	v, err := kv.Get([]byte(chainIDKey))
	if err != nil {
		return "", errors.Wrap(err, "load chain id")
	}
	return string(v), nil
}

// saveChainID stores a chain id in the kv store.
// Returns error if already set, or invalid name
func saveChainID(kv chanledger.KVStore, chainID string) error {
	if !chanledger.IsValidChainID(chainID) {
		return errors.Wrapf(errors.ErrInput, "chain id: %v", chainID)
	}
	k := []byte(chainIDKey)
	exists, err := kv.Has(k)
	if err != nil {
		return errors.Wrap(err, "load chain id")
	}
	if exists {
		return errors.Wrap(errors.ErrUnauthorized, "can't modify chain id after genesis init")
	}
	if err := kv.Set(k, []byte(chainID)); err != nil {
		return errors.Wrap(err, "save chain id")
	}
	return nil
}

// loadHeight returns the highest block height any transition was applied at.
func loadHeight(kv chanledger.ReadOnlyKVStore) (int64, error) {
	v, err := kv.Get([]byte(heightKey))
	if err != nil {
		return 0, errors.Wrap(err, "load height")
	}
	h, err := orm.DecodeSequence(v)
	if err != nil {
		return 0, errors.Wrap(err, "decode height")
	}
	return int64(h), nil
}

func saveHeight(kv chanledger.KVStore, height int64) error {
	return kv.Set([]byte(heightKey), orm.EncodeSequence(uint64(height)))
}
