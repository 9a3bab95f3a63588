package store

// Recorder interface is implemented by anything returned from
// NewRecordingStore
type Recorder interface {
	// KVPairs returns all keys modified since the store was created.
	// Value is the value written, or nil for delete.
	KVPairs() map[string][]byte
}

// RecordingStore is a KVStore that keeps track of all the keys modified
// through it. Writes done through cache wraps created from it are recorded
// as well, once the cache wrap is written.
type RecordingStore interface {
	CacheableKVStore
	Recorder
}

// NewRecordingStore initializes a recording store wrapping this
// base store. Stores that cannot be cache wrapped get a btree cache.
func NewRecordingStore(db KVStore) RecordingStore {
	cached, ok := db.(CacheableKVStore)
	if !ok {
		cached = BTreeCacheable{db}
	}
	return &recordingStore{
		CacheableKVStore: cached,
		changes:          make(map[string][]byte),
	}
}

type recordingStore struct {
	CacheableKVStore
	changes map[string][]byte
}

var _ RecordingStore = (*recordingStore)(nil)

// KVPairs implements Recorder.
func (r *recordingStore) KVPairs() map[string][]byte {
	return r.changes
}

// Set records the changes while performing
func (r *recordingStore) Set(key, value []byte) error {
	if err := r.CacheableKVStore.Set(key, value); err != nil {
		return err
	}
	r.changes[string(key)] = value
	return nil
}

// Delete records the changes while performing
func (r *recordingStore) Delete(key []byte) error {
	if err := r.CacheableKVStore.Delete(key); err != nil {
		return err
	}
	r.changes[string(key)] = nil
	return nil
}

// CacheWrap makes sure all cached writes also go through this
func (r *recordingStore) CacheWrap() KVCacheWrap {
	return NewBTreeCacheWrap(r, NewNonAtomicBatch(r), nil)
}
