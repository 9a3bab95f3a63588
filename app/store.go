package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/store"
	"github.com/iov-one/chanledger/x/cash"
	"github.com/iov-one/chanledger/x/channel"
	"github.com/tendermint/tendermint/libs/log"
)

// StoreApp contains a data store and the channel ledger operating on it.
//
// Every call to Deliver is applied at an explicit block height and is
// serialized with all other calls. Changes are persisted with Commit.
type StoreApp struct {
	mu     sync.Mutex
	logger log.Logger

	// Database state (committed, deliver)
	store *CommitStore

	ledger *channel.Ledger
	cash   cash.Controller

	// pending holds events of the running Deliver until its changes are
	// written, only then are they passed to emitter
	pending *chanledger.EventLog
	emitter chanledger.EventEmitter

	// Code to initialize from a genesis file
	initializer chanledger.Initializer

	// chainID is loaded from db in initialization
	// saved once in InitChain
	chainID string

	// height is the highest block height a transition was applied at
	height int64

	// baseContext contains context info that is valid for
	// lifetime of this app (eg. chainID)
	baseContext context.Context
}

// NewStoreApp loads the state from given store. Ledger events of a
// successful Deliver are passed to the emitter, which may be nil.
func NewStoreApp(kv chanledger.CommitKVStore, emitter chanledger.EventEmitter) (*StoreApp, error) {
	cs, err := NewCommitStore(kv)
	if err != nil {
		return nil, err
	}
	if emitter == nil {
		emitter = chanledger.NopEmitter{}
	}
	ctrl := cash.NewController(cash.NewBucket())
	pending := chanledger.NewEventLog()
	s := &StoreApp{
		store:   cs,
		cash:    ctrl,
		ledger:  channel.NewLedger(ctrl, pending),
		pending: pending,
		emitter: emitter,
		initializer: chanledger.ChainInitializers(
			cash.Initializer{},
			channel.Initializer{},
		),
		baseContext: context.Background(),
	}
	s = s.WithLogger(log.NewNopLogger())

	if s.chainID, err = loadChainID(cs.DeliverStore()); err != nil {
		return nil, err
	}
	if s.chainID != "" {
		s.baseContext = chanledger.WithChainID(s.baseContext, s.chainID)
	}
	if s.height, err = loadHeight(cs.DeliverStore()); err != nil {
		return nil, err
	}
	return s, nil
}

// WithLogger sets the logger on the StoreApp and returns it,
// to make it easy to chain in initialization
//
// also sets baseContext logger
func (s *StoreApp) WithLogger(logger log.Logger) *StoreApp {
	s.baseContext = chanledger.WithLogger(s.baseContext, logger)
	s.logger = logger
	return s
}

// Logger returns the application base logger
func (s *StoreApp) Logger() log.Logger {
	return s.logger
}

// ChainID returns the chain id set at genesis or an empty string.
func (s *StoreApp) ChainID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.chainID
}

// Height returns the highest block height a transition was applied at.
func (s *StoreApp) Height() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.height
}

// Ledger returns the channel ledger. Use Deliver to run its operations.
func (s *StoreApp) Ledger() *channel.Ledger {
	return s.ledger
}

// Cash returns the value transfer controller.
func (s *StoreApp) Cash() cash.Controller {
	return s.cash
}

// InitChain stores the chain id and initializes all extensions from the
// genesis options. It can be called only once per store.
func (s *StoreApp) InitChain(gen Genesis) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID != "" {
		return errors.Wrapf(errors.ErrState, "genesis previously loaded for chain: %s", s.chainID)
	}
	if len(gen.AppOptions) == 0 {
		return errors.Wrap(errors.ErrEmpty, "app_options not set in genesis")
	}

	err := chanledger.Atomic(s.store.DeliverStore(), func(db chanledger.KVStore) error {
		if err := saveChainID(db, gen.ChainID); err != nil {
			return err
		}
		return s.initializer.FromGenesis(gen.AppOptions, db)
	})
	if err != nil {
		return errors.Wrap(err, "init chain")
	}
	s.chainID = gen.ChainID
	s.baseContext = chanledger.WithChainID(s.baseContext, s.chainID)
	s.logger.Info("Genesis loaded", "chain_id", s.chainID)
	return nil
}

// Deliver runs fn at given block height. All changes made by fn are
// discarded if it returns an error or panics. Heights must not decrease
// between calls, as block height is the only clock of the ledger.
//
// Events of ledger operations run by fn are emitted after the changes are
// written. A failed Deliver emits nothing.
func (s *StoreApp) Deliver(height int64, fn DeliverFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.chainID == "" {
		return errors.Wrap(errors.ErrState, "genesis not loaded")
	}
	if height < s.height {
		return errors.Wrapf(errors.ErrState, "height %d is lower than %d", height, s.height)
	}

	ctx := chanledger.WithHeight(s.baseContext, height)
	ctx = chanledger.WithLogInfo(ctx, "height", height)

	s.pending.Reset()
	defer s.pending.Reset()

	rec := store.NewRecordingStore(s.store.DeliverStore())
	err := chanledger.Atomic(rec, func(db chanledger.KVStore) error {
		if err := recovering(fn)(ctx, db); err != nil {
			return err
		}
		return saveHeight(db, height)
	})
	if err != nil {
		return err
	}
	s.height = height
	s.logger.Debug("Delivered", "height", height, "keys", changedKeys(rec.KVPairs()))
	s.flushEvents()
	return nil
}

// flushEvents passes all pending events to the emitter. Emitter failures
// are logged, the changes are already written.
func (s *StoreApp) flushEvents() {
	for _, ev := range s.pending.Events() {
		if err := s.emitter.Emit(ev); err != nil {
			s.logger.Error("cannot emit event", "event", ev.Type, "channel", ev.ChannelID, "err", err)
		}
	}
}

// Commit persists all delivered changes as a new version.
func (s *StoreApp) Commit() (chanledger.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	commitID, err := s.store.Commit()
	if err != nil {
		return commitID, errors.Wrap(err, "commit")
	}
	s.logger.Debug("Commit synced",
		"version", commitID.Version,
		"hash", fmt.Sprintf("%X", commitID.Hash),
	)
	return commitID, nil
}

// CommitInfo returns the latest committed version.
func (s *StoreApp) CommitInfo() (chanledger.CommitID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.CommitInfo()
}

// Query runs a ledger query against the delivered, not necessarily
// committed, state.
func (s *StoreApp) Query(path string, data []byte) (interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.ledger.Query(s.store.DeliverStore(), path, data)
	if err != nil {
		return nil, errors.Wrapf(err, "query %s", path)
	}
	return res, nil
}

// View runs fn against the delivered state. Writes done by fn are discarded.
func (s *StoreApp) View(fn func(db chanledger.ReadOnlyKVStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cache := s.store.DeliverStore().CacheWrap()
	defer cache.Discard()
	return fn(cache)
}

func changedKeys(pairs map[string][]byte) []string {
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, fmt.Sprintf("%q", k))
	}
	sort.Strings(keys)
	return keys
}
