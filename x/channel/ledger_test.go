package channel

import (
	"context"
	"testing"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/gconf"
	"github.com/iov-one/chanledger/ledgertest"
	"github.com/iov-one/chanledger/ledgertest/assert"
	"github.com/iov-one/chanledger/store"
	"github.com/iov-one/chanledger/x/cash"
)

const initialFunds = 100000000

type fixture struct {
	t      testing.TB
	db     chanledger.CacheableKVStore
	cash   cash.Controller
	ledger *Ledger
	events *chanledger.EventLog

	owner chanledger.Address
	alice chanledger.Address
	bert  chanledger.Address
	carl  chanledger.Address
}

func newFixture(t testing.TB) *fixture {
	return newFixtureWithConf(t, nil)
}

// newFixtureWithConf creates a ledger with the default configuration, after
// applying given modifier if not nil. Alice and Bert get the initial funds,
// Carl owns nothing.
func newFixtureWithConf(t testing.TB, modify func(*Configuration)) *fixture {
	t.Helper()

	f := &fixture{
		t:      t,
		db:     store.MemStore(),
		cash:   cash.NewController(cash.NewBucket()),
		events: chanledger.NewEventLog(),
		owner:  ledgertest.NewAddress(),
		alice:  ledgertest.NewAddress(),
		bert:   ledgertest.NewAddress(),
		carl:   ledgertest.NewAddress(),
	}
	f.ledger = NewLedger(f.cash, f.events)

	conf := DefaultConfiguration(f.owner)
	if modify != nil {
		modify(&conf)
	}
	assert.Nil(t, gconf.Save(f.db, packageName, &conf))
	assert.Nil(t, f.cash.IssueCoins(f.db, f.alice, initialFunds))
	assert.Nil(t, f.cash.IssueCoins(f.db, f.bert, initialFunds))
	return f
}

func atHeight(h int64) context.Context {
	return chanledger.WithHeight(context.Background(), h)
}

func (f *fixture) balance(addr chanledger.Address) uint64 {
	f.t.Helper()
	b, err := f.cash.Balance(f.db, addr)
	assert.Nil(f.t, err)
	return b
}

func (f *fixture) channel(id uint64) *Channel {
	f.t.Helper()
	ch, err := f.ledger.ChannelDetails(f.db, id)
	assert.Nil(f.t, err)
	return ch
}

func (f *fixture) locked() uint64 {
	f.t.Helper()
	stats, err := f.ledger.ContractStats(f.db)
	assert.Nil(f.t, err)
	return stats.TotalLocked
}

// open creates a channel between alice and bert and funds it.
func (f *fixture) open(h int64, amountA, amountB uint64) uint64 {
	f.t.Helper()
	id, err := f.ledger.OpenChannel(atHeight(h), f.db, f.alice, f.bert, amountA, amountB)
	assert.Nil(f.t, err)
	if amountB > 0 {
		assert.Nil(f.t, f.ledger.FundChannel(atHeight(h), f.db, f.bert, id, amountB))
	}
	return id
}

// checkInvariants ensures that every channel conserves its total amount and
// that the pool holds exactly the locked value.
func (f *fixture) checkInvariants() {
	f.t.Helper()
	stats, err := f.ledger.ContractStats(f.db)
	assert.Nil(f.t, err)
	for id := uint64(0); id < stats.TotalChannels; id++ {
		ch := f.channel(id)
		if ch.BalanceA+ch.BalanceB != ch.TotalAmount {
			f.t.Fatalf("channel %d: %d + %d != %d", id, ch.BalanceA, ch.BalanceB, ch.TotalAmount)
		}
	}
	assert.Nil(f.t, f.ledger.CheckBalance(f.db))
}

func hash(b byte) []byte {
	h := make([]byte, CommitmentHashLength)
	for i := range h {
		h[i] = b
	}
	return h
}

func TestOpenChannel(t *testing.T) {
	poor := ledgertest.NewAddress()

	cases := map[string]struct {
		caller       func(*fixture) chanledger.Address
		counterparty func(*fixture) chanledger.Address
		amountA      uint64
		amountB      uint64
		wantErr      *errors.Error
	}{
		"success": {
			amountA: 5000000,
			amountB: 3000000,
		},
		"counterparty does not deposit": {
			amountA: 5000000,
		},
		"opener does not deposit": {
			amountB: 5000000,
		},
		"total at minimum": {
			amountA: 600000,
			amountB: 400000,
		},
		"channel with self": {
			counterparty: func(f *fixture) chanledger.Address { return f.alice },
			amountA:      5000000,
			amountB:      3000000,
			wantErr:      ErrUnauthorized,
		},
		"total below minimum": {
			amountA: 500000,
			amountB: 499999,
			wantErr: ErrInvalidAmount,
		},
		"total above maximum": {
			amountA: 1,
			amountB: DefaultMaxChannelAmount,
			wantErr: ErrInvalidAmount,
		},
		"total overflows": {
			amountA: 5000000,
			amountB: ^uint64(0),
			wantErr: ErrInvalidAmount,
		},
		"cannot cover the deposit": {
			amountA: initialFunds + 1,
			amountB: 0,
			wantErr: ErrInsufficientBalance,
		},
		"cannot cover the fee": {
			caller:  func(*fixture) chanledger.Address { return poor },
			amountA: 5000000,
			wantErr: ErrInsufficientBalance,
		},
		"invalid counterparty": {
			counterparty: func(*fixture) chanledger.Address { return chanledger.Address("short") },
			amountA:      5000000,
			wantErr:      errors.ErrInput,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			assert.Nil(t, f.cash.IssueCoins(f.db, poor, 5000000))

			caller, counterparty := f.alice, f.bert
			if tc.caller != nil {
				caller = tc.caller(f)
			}
			if tc.counterparty != nil {
				counterparty = tc.counterparty(f)
			}
			before := f.balance(caller)

			id, err := f.ledger.OpenChannel(atHeight(10), f.db, caller, counterparty, tc.amountA, tc.amountB)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			if tc.wantErr != nil {
				assert.Equal(t, before, f.balance(caller))
				assert.Equal(t, uint64(0), f.locked())
				assert.Equal(t, 0, len(f.events.Events()))
				if _, err := f.ledger.ChannelDetails(f.db, 0); !ErrChannelNotFound.Is(err) {
					t.Fatalf("channel created: %v", err)
				}
				f.checkInvariants()
				return
			}

			assert.Equal(t, uint64(0), id)
			want := &Channel{
				ParticipantA: caller,
				ParticipantB: counterparty,
				BalanceA:     tc.amountA,
				BalanceB:     tc.amountB,
				TotalAmount:  tc.amountA + tc.amountB,
				DepositB:     tc.amountB,
				Funded:       tc.amountB == 0,
				State:        ChannelState_Open,
				TimeoutBlock: 10 + DefaultChannelTimeout,
				CreatedAt:    10,
				LastUpdate:   10,
			}
			assert.Equal(t, want, f.channel(id))

			assert.Equal(t, before-tc.amountA-DefaultSettlementFee, f.balance(caller))
			assert.Equal(t, DefaultSettlementFee, f.balance(f.owner))
			assert.Equal(t, tc.amountA, f.balance(PoolAddress))
			assert.Equal(t, tc.amountA, f.locked())

			active, err := f.ledger.IsChannelActive(f.db, id)
			assert.Nil(t, err)
			assert.Equal(t, true, active)

			events := f.events.OfType(chanledger.EventChannelOpened)
			assert.Equal(t, 1, len(events))
			assert.Equal(t, int64(10), events[0].Height)
			assert.Equal(t, caller.String(), string(events[0].Attr("participant_a")))
			f.checkInvariants()
		})
	}
}

func TestChannelIDsAreSequential(t *testing.T) {
	f := newFixture(t)
	for want := uint64(0); want < 4; want++ {
		id, err := f.ledger.OpenChannel(atHeight(1), f.db, f.alice, f.bert, 1000000, 0)
		assert.Nil(t, err)
		assert.Equal(t, want, id)
	}
	stats, err := f.ledger.ContractStats(f.db)
	assert.Nil(t, err)
	assert.Equal(t, uint64(4), stats.TotalChannels)
	assert.Equal(t, uint64(4000000), stats.TotalLocked)
	assert.Equal(t, DefaultConfiguration(f.owner), stats.Configuration)
}

func TestUserChannelCount(t *testing.T) {
	f := newFixtureWithConf(t, func(c *Configuration) {
		c.MaxChannelsPerUser = 2
	})

	count := func(addr chanledger.Address) uint64 {
		n, err := f.ledger.UserChannelCount(f.db, addr)
		assert.Nil(t, err)
		return n
	}
	assert.Equal(t, uint64(0), count(f.alice))

	first := f.open(1, 2000000, 1000000)
	assert.Equal(t, uint64(1), count(f.alice))
	assert.Equal(t, uint64(1), count(f.bert))

	// Counterparty counts are enforced as well.
	_, err := f.ledger.OpenChannel(atHeight(1), f.db, f.bert, f.alice, 2000000, 0)
	assert.Nil(t, err)
	assert.Equal(t, uint64(2), count(f.alice))
	assert.Equal(t, uint64(2), count(f.bert))

	// Closing does not free a slot.
	assert.Nil(t, f.ledger.CloseChannel(atHeight(2), f.db, f.alice, first))
	assert.Equal(t, uint64(2), count(f.alice))

	assert.Nil(t, f.cash.IssueCoins(f.db, f.carl, initialFunds))
	_, err = f.ledger.OpenChannel(atHeight(3), f.db, f.carl, f.alice, 2000000, 0)
	assert.IsErr(t, ErrMaxChannelsExceeded, err)
	_, err = f.ledger.OpenChannel(atHeight(3), f.db, f.alice, f.carl, 2000000, 0)
	assert.IsErr(t, ErrMaxChannelsExceeded, err)
	assert.Equal(t, uint64(0), count(f.carl))

	ids, err := f.ledger.ChannelsOf(f.db, f.alice)
	assert.Nil(t, err)
	assert.Equal(t, []uint64{0, 1}, ids)
	f.checkInvariants()
}

func TestFundChannel(t *testing.T) {
	cases := map[string]struct {
		prepare func(*fixture) uint64
		caller  func(*fixture) chanledger.Address
		amount  uint64
		wantErr *errors.Error
	}{
		"success": {
			amount: 3000000,
		},
		"channel not found": {
			prepare: func(*fixture) uint64 { return 42 },
			amount:  3000000,
			wantErr: ErrChannelNotFound,
		},
		"opener cannot fund": {
			caller:  func(f *fixture) chanledger.Address { return f.alice },
			amount:  3000000,
			wantErr: ErrUnauthorized,
		},
		"stranger cannot fund": {
			caller:  func(f *fixture) chanledger.Address { return f.carl },
			amount:  3000000,
			wantErr: ErrUnauthorized,
		},
		"amount lower than declared": {
			amount:  2999999,
			wantErr: ErrInvalidAmount,
		},
		"amount greater than declared": {
			amount:  3000001,
			wantErr: ErrInvalidAmount,
		},
		"already funded": {
			prepare: func(f *fixture) uint64 {
				id := f.openUnfunded(1)
				assert.Nil(f.t, f.ledger.FundChannel(atHeight(1), f.db, f.bert, id, 3000000))
				return id
			},
			amount:  3000000,
			wantErr: ErrChannelAlreadyExists,
		},
		"nothing to fund": {
			prepare: func(f *fixture) uint64 {
				id, err := f.ledger.OpenChannel(atHeight(1), f.db, f.alice, f.bert, 5000000, 0)
				assert.Nil(f.t, err)
				return id
			},
			amount:  0,
			wantErr: ErrChannelAlreadyExists,
		},
		"closed channel": {
			prepare: func(f *fixture) uint64 {
				id := f.openUnfunded(1)
				assert.Nil(f.t, f.ledger.CloseChannel(atHeight(1), f.db, f.alice, id))
				return id
			},
			amount:  3000000,
			wantErr: ErrChannelClosed,
		},
		"cannot cover the deposit": {
			prepare: func(f *fixture) uint64 {
				id, err := f.ledger.OpenChannel(atHeight(1), f.db, f.alice, f.carl, 5000000, 3000000)
				assert.Nil(f.t, err)
				return id
			},
			caller:  func(f *fixture) chanledger.Address { return f.carl },
			amount:  3000000,
			wantErr: ErrInsufficientBalance,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			var id uint64
			if tc.prepare != nil {
				id = tc.prepare(f)
			} else {
				id = f.openUnfunded(1)
			}
			caller := f.bert
			if tc.caller != nil {
				caller = tc.caller(f)
			}
			lockedBefore := f.locked()
			balanceBefore := f.balance(caller)

			err := f.ledger.FundChannel(atHeight(20), f.db, caller, id, tc.amount)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			f.checkInvariants()
			if tc.wantErr != nil {
				assert.Equal(t, lockedBefore, f.locked())
				assert.Equal(t, balanceBefore, f.balance(caller))
				return
			}

			ch := f.channel(id)
			assert.Equal(t, true, ch.Funded)
			assert.Equal(t, uint64(5000000), ch.BalanceA)
			assert.Equal(t, uint64(3000000), ch.BalanceB)
			assert.Equal(t, 20+DefaultChannelTimeout, ch.TimeoutBlock)
			assert.Equal(t, int64(20), ch.LastUpdate)
			assert.Equal(t, lockedBefore+tc.amount, f.locked())
			assert.Equal(t, balanceBefore-tc.amount, f.balance(caller))
			assert.Equal(t, 1, len(f.events.OfType(chanledger.EventChannelFunded)))
		})
	}
}

// openUnfunded opens a 5M/3M channel between alice and bert without funding
// it.
func (f *fixture) openUnfunded(h int64) uint64 {
	f.t.Helper()
	id, err := f.ledger.OpenChannel(atHeight(h), f.db, f.alice, f.bert, 5000000, 3000000)
	assert.Nil(f.t, err)
	return id
}

func TestUpdateChannel(t *testing.T) {
	f := newFixture(t)
	id := f.open(1, 5000000, 3000000)

	cases := []struct {
		name    string
		caller  chanledger.Address
		a, b    uint64
		nonce   uint64
		hash    []byte
		wantErr *errors.Error
	}{
		{"first update", f.alice, 4000000, 4000000, 1, hash(1), nil},
		{"replay", f.alice, 4000000, 4000000, 1, hash(1), ErrInvalidNonce},
		{"counterparty posts", f.bert, 3000000, 5000000, 2, hash(2), nil},
		{"stale nonce", f.bert, 8000000, 0, 1, hash(3), ErrInvalidNonce},
		{"zero nonce", f.bert, 8000000, 0, 0, hash(3), ErrInvalidNonce},
		{"creates value", f.alice, 5000000, 5000000, 3, hash(3), ErrInvalidAmount},
		{"destroys value", f.alice, 1000000, 1000000, 3, hash(3), ErrInvalidAmount},
		{"overflowing balances", f.alice, ^uint64(0), 8000001, 3, hash(3), ErrInvalidAmount},
		{"stranger", f.carl, 4000000, 4000000, 3, hash(3), ErrUnauthorized},
		{"short hash", f.alice, 4000000, 4000000, 3, []byte("short"), errors.ErrInput},
		{"whole balance to one side", f.alice, 0, 8000000, 7, hash(7), nil},
	}

	var lastNonce uint64
	for i, tc := range cases {
		h := int64(10 + i)
		before := f.channel(id)

		err := f.ledger.UpdateChannel(atHeight(h), f.db, tc.caller, id, tc.a, tc.b, tc.nonce, tc.hash)
		if !tc.wantErr.Is(err) {
			t.Fatalf("%s: unexpected error: %+v", tc.name, err)
		}
		f.checkInvariants()

		ch := f.channel(id)
		if tc.wantErr != nil {
			assert.Equal(t, before, ch)
			continue
		}
		if ch.Nonce <= lastNonce {
			t.Fatalf("%s: nonce did not increase: %d <= %d", tc.name, ch.Nonce, lastNonce)
		}
		lastNonce = ch.Nonce
		assert.Equal(t, tc.a, ch.BalanceA)
		assert.Equal(t, tc.b, ch.BalanceB)
		assert.Equal(t, h+DefaultChannelTimeout, ch.TimeoutBlock)
		assert.Equal(t, h, ch.LastUpdate)

		pc, err := f.ledger.PaymentCommitment(f.db, id, tc.nonce)
		assert.Nil(t, err)
		want := &PaymentCommitment{
			ChannelID:      id,
			Nonce:          tc.nonce,
			BalanceA:       tc.a,
			BalanceB:       tc.b,
			CommitmentHash: tc.hash,
			Timestamp:      h,
		}
		assert.Equal(t, want, pc)
	}

	all, err := f.ledger.ChannelCommitments(f.db, id)
	assert.Nil(t, err)
	assert.Equal(t, 3, len(all))
	for i, nonce := range []uint64{1, 2, 7} {
		assert.Equal(t, nonce, all[i].Nonce)
	}
	assert.Equal(t, 3, len(f.events.OfType(chanledger.EventChannelUpdated)))

	_, err = f.ledger.PaymentCommitment(f.db, id, 3)
	assert.IsErr(t, errors.ErrNotFound, err)
	// Value never left the pool.
	assert.Equal(t, uint64(8000000), f.balance(PoolAddress))
}

func TestUpdateRequiresOpenFundedChannel(t *testing.T) {
	f := newFixture(t)

	unfunded := f.openUnfunded(1)
	err := f.ledger.UpdateChannel(atHeight(2), f.db, f.alice, unfunded, 4000000, 4000000, 1, hash(1))
	assert.IsErr(t, ErrChannelClosed, err)

	disputed := f.open(1, 5000000, 3000000)
	assert.Nil(t, f.ledger.InitiateDispute(atHeight(2), f.db, f.alice, disputed, 6000000, 2000000, 0))
	err = f.ledger.UpdateChannel(atHeight(3), f.db, f.alice, disputed, 4000000, 4000000, 1, hash(1))
	assert.IsErr(t, ErrDisputeActive, err)

	closed := f.open(1, 5000000, 3000000)
	assert.Nil(t, f.ledger.CloseChannel(atHeight(2), f.db, f.bert, closed))
	err = f.ledger.UpdateChannel(atHeight(3), f.db, f.alice, closed, 4000000, 4000000, 1, hash(1))
	assert.IsErr(t, ErrChannelClosed, err)

	err = f.ledger.UpdateChannel(atHeight(3), f.db, f.alice, 99, 4000000, 4000000, 1, hash(1))
	assert.IsErr(t, ErrChannelNotFound, err)
	f.checkInvariants()
}

func TestInitiateDispute(t *testing.T) {
	cases := map[string]struct {
		caller  func(*fixture) chanledger.Address
		a, b    uint64
		nonce   uint64
		wantErr *errors.Error
	}{
		"opener disputes with the current nonce": {
			caller: func(f *fixture) chanledger.Address { return f.alice },
			a:      7000000, b: 1000000, nonce: 1,
		},
		"counterparty disputes with a newer nonce": {
			caller: func(f *fixture) chanledger.Address { return f.bert },
			a:      2000000, b: 6000000, nonce: 5,
		},
		"older nonce": {
			caller: func(f *fixture) chanledger.Address { return f.bert },
			a:      2000000, b: 6000000, nonce: 0,
			wantErr: ErrInvalidNonce,
		},
		"balances do not sum up": {
			caller: func(f *fixture) chanledger.Address { return f.bert },
			a:      2000000, b: 2000000, nonce: 2,
			wantErr: ErrInvalidAmount,
		},
		"stranger": {
			caller: func(f *fixture) chanledger.Address { return f.carl },
			a:      2000000, b: 6000000, nonce: 2,
			wantErr: ErrUnauthorized,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			id := f.open(1, 5000000, 3000000)
			assert.Nil(t, f.ledger.UpdateChannel(atHeight(2), f.db, f.alice, id, 6000000, 2000000, 1, hash(1)))
			caller := tc.caller(f)

			err := f.ledger.InitiateDispute(atHeight(5), f.db, caller, id, tc.a, tc.b, tc.nonce)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			f.checkInvariants()

			ch := f.channel(id)
			if tc.wantErr != nil {
				assert.Equal(t, ChannelState_Open, ch.State)
				_, err := f.ledger.ChannelDispute(f.db, id)
				assert.IsErr(t, errors.ErrNotFound, err)
				return
			}

			assert.Equal(t, ChannelState_Disputed, ch.State)
			// Balances change only on resolution.
			assert.Equal(t, uint64(6000000), ch.BalanceA)
			assert.Equal(t, uint64(2000000), ch.BalanceB)
			assert.Equal(t, int64(5), ch.LastUpdate)
			assert.Equal(t, 2+DefaultChannelTimeout, ch.TimeoutBlock)

			d, err := f.ledger.ChannelDispute(f.db, id)
			assert.Nil(t, err)
			want := &Dispute{
				Initiator:        caller,
				DisputeBlock:     5,
				ProposedBalanceA: tc.a,
				ProposedBalanceB: tc.b,
				DisputeNonce:     tc.nonce,
			}
			assert.Equal(t, want, d)

			active, err := f.ledger.IsChannelActive(f.db, id)
			assert.Nil(t, err)
			assert.Equal(t, false, active)

			// A second dispute is rejected.
			err = f.ledger.InitiateDispute(atHeight(6), f.db, caller, id, tc.a, tc.b, tc.nonce)
			assert.IsErr(t, ErrDisputeActive, err)
		})
	}
}

func TestResolveDispute(t *testing.T) {
	f := newFixture(t)
	id := f.open(1, 5000000, 3000000)

	// Nothing to resolve yet.
	err := f.ledger.ResolveDispute(atHeight(2), f.db, f.alice, id)
	assert.IsErr(t, errors.ErrNotFound, err)
	err = f.ledger.ResolveDispute(atHeight(2), f.db, f.alice, 99)
	assert.IsErr(t, ErrChannelNotFound, err)

	assert.Nil(t, f.ledger.InitiateDispute(atHeight(10), f.db, f.bert, id, 1000000, 7000000, 0))

	for _, h := range []int64{10, 11, 10 + DefaultDisputeTimeout - 1} {
		err := f.ledger.ResolveDispute(atHeight(h), f.db, f.carl, id)
		assert.IsErr(t, ErrTimeoutNotReached, err)
	}
	f.checkInvariants()

	alice, bert := f.balance(f.alice), f.balance(f.bert)
	// Anybody can finalize an expired dispute.
	assert.Nil(t, f.ledger.ResolveDispute(atHeight(10+DefaultDisputeTimeout), f.db, f.carl, id))
	assert.Equal(t, alice+1000000, f.balance(f.alice))
	assert.Equal(t, bert+7000000, f.balance(f.bert))
	assert.Equal(t, uint64(0), f.balance(f.carl))
	assert.Equal(t, uint64(0), f.locked())

	ch := f.channel(id)
	assert.Equal(t, ChannelState_Closed, ch.State)
	assert.Equal(t, uint64(1000000), ch.BalanceA)
	assert.Equal(t, uint64(7000000), ch.BalanceB)
	f.checkInvariants()

	// The dispute is kept as history and cannot be resolved twice.
	_, err = f.ledger.ChannelDispute(f.db, id)
	assert.Nil(t, err)
	err = f.ledger.ResolveDispute(atHeight(500), f.db, f.carl, id)
	assert.IsErr(t, ErrChannelClosed, err)

	events := f.events.OfType(chanledger.EventDisputeResolved)
	assert.Equal(t, 1, len(events))
	assert.Equal(t, "7000000", string(events[0].Attr("balance_b")))
}

func TestCloseChannel(t *testing.T) {
	f := newFixture(t)
	id := f.open(1, 5000000, 3000000)
	other := f.open(1, 2000000, 2000000)
	assert.Equal(t, uint64(12000000), f.locked())

	err := f.ledger.CloseChannel(atHeight(2), f.db, f.carl, id)
	assert.IsErr(t, ErrUnauthorized, err)

	alice, bert := f.balance(f.alice), f.balance(f.bert)
	assert.Nil(t, f.ledger.CloseChannel(atHeight(2), f.db, f.bert, id))
	assert.Equal(t, alice+5000000, f.balance(f.alice))
	assert.Equal(t, bert+3000000, f.balance(f.bert))
	assert.Equal(t, uint64(4000000), f.locked())

	active, err := f.ledger.IsChannelActive(f.db, id)
	assert.Nil(t, err)
	assert.Equal(t, false, active)
	active, err = f.ledger.IsChannelActive(f.db, other)
	assert.Nil(t, err)
	assert.Equal(t, true, active)

	err = f.ledger.CloseChannel(atHeight(3), f.db, f.alice, id)
	assert.IsErr(t, ErrChannelClosed, err)
	err = f.ledger.CloseChannel(atHeight(3), f.db, f.alice, 99)
	assert.IsErr(t, ErrChannelNotFound, err)
	f.checkInvariants()

	// Closed record is retained.
	ch := f.channel(id)
	assert.Equal(t, ChannelState_Closed, ch.State)
	assert.Equal(t, uint64(8000000), ch.TotalAmount)
}

func TestCloseDisputedChannel(t *testing.T) {
	f := newFixture(t)
	id := f.open(1, 5000000, 3000000)
	assert.Nil(t, f.ledger.InitiateDispute(atHeight(2), f.db, f.alice, id, 8000000, 0, 0))

	for _, h := range []int64{2, 100, 2 + DefaultDisputeTimeout, 10000} {
		err := f.ledger.CloseChannel(atHeight(h), f.db, f.bert, id)
		assert.IsErr(t, ErrChannelClosed, err)
		err = f.ledger.CloseChannel(atHeight(h), f.db, f.alice, id)
		assert.IsErr(t, ErrChannelClosed, err)
	}
	assert.Equal(t, ChannelState_Disputed, f.channel(id).State)
	f.checkInvariants()
}

func TestCloseUnfundedChannel(t *testing.T) {
	f := newFixture(t)
	id := f.openUnfunded(1)
	assert.Equal(t, uint64(5000000), f.locked())

	alice, bert := f.balance(f.alice), f.balance(f.bert)
	assert.Nil(t, f.ledger.CloseChannel(atHeight(2), f.db, f.bert, id))
	assert.Equal(t, alice+5000000, f.balance(f.alice))
	assert.Equal(t, bert, f.balance(f.bert))
	assert.Equal(t, uint64(0), f.locked())
	assert.Equal(t, uint64(0), f.balance(PoolAddress))
	f.checkInvariants()
}

func TestEmergencyClose(t *testing.T) {
	cases := map[string]struct {
		dispute bool
		update  bool
		height  int64
		wantErr *errors.Error
	}{
		"open, before timeout": {
			height:  1 + DefaultChannelTimeout - 1,
			wantErr: ErrTimeoutNotReached,
		},
		"open, at timeout": {
			height: 1 + DefaultChannelTimeout,
		},
		"open, long after timeout": {
			height: 5000,
		},
		"update refreshes the timeout": {
			update:  true,
			height:  1 + DefaultChannelTimeout,
			wantErr: ErrTimeoutNotReached,
		},
		"disputed, before channel timeout": {
			dispute: true,
			height:  1 + DefaultChannelTimeout - 1,
			wantErr: ErrTimeoutNotReached,
		},
		"disputed, at channel timeout before dispute timeout": {
			dispute: true,
			height:  1 + DefaultChannelTimeout,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			id := f.open(1, 5000000, 3000000)
			wantA, wantB := uint64(5000000), uint64(3000000)
			if tc.update {
				assert.Nil(t, f.ledger.UpdateChannel(atHeight(20), f.db, f.bert, id, 4000000, 4000000, 1, hash(1)))
				wantA, wantB = 4000000, 4000000
			}
			if tc.dispute {
				// Dispute raised late, so its own timeout is not over
				// when the channel times out.
				assert.Nil(t, f.ledger.InitiateDispute(atHeight(100), f.db, f.bert, id, 0, 8000000, 0))
			}

			err := f.ledger.EmergencyClose(atHeight(100), f.db, f.carl, id)
			assert.IsErr(t, ErrUnauthorized, err)

			alice, bert := f.balance(f.alice), f.balance(f.bert)
			err = f.ledger.EmergencyClose(atHeight(tc.height), f.db, f.alice, id)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			f.checkInvariants()
			if tc.wantErr != nil {
				assert.Equal(t, alice, f.balance(f.alice))
				assert.Equal(t, uint64(8000000), f.locked())
				return
			}

			// Last posted balances are paid, never the disputed proposal.
			assert.Equal(t, alice+wantA, f.balance(f.alice))
			assert.Equal(t, bert+wantB, f.balance(f.bert))
			assert.Equal(t, uint64(0), f.locked())
			assert.Equal(t, ChannelState_Closed, f.channel(id).State)
			assert.Equal(t, 1, len(f.events.OfType(chanledger.EventEmergencyClose)))

			err = f.ledger.EmergencyClose(atHeight(tc.height+1), f.db, f.alice, id)
			assert.IsErr(t, ErrChannelClosed, err)
			if tc.dispute {
				err = f.ledger.ResolveDispute(atHeight(10000), f.db, f.alice, id)
				assert.IsErr(t, ErrChannelClosed, err)
			}
		})
	}
}

func TestCooperativeScenario(t *testing.T) {
	f := newFixture(t)

	id, err := f.ledger.OpenChannel(atHeight(1), f.db, f.alice, f.bert, 5000000, 3000000)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), id)
	assert.Nil(t, f.ledger.FundChannel(atHeight(2), f.db, f.bert, id, 3000000))
	assert.Nil(t, f.ledger.UpdateChannel(atHeight(3), f.db, f.alice, id, 4000000, 4000000, 1, PaymentDigest(id, 1, 4000000, 4000000)))
	assert.Nil(t, f.ledger.UpdateChannel(atHeight(4), f.db, f.bert, id, 3000000, 5000000, 2, PaymentDigest(id, 2, 3000000, 5000000)))
	f.checkInvariants()

	alice, bert := f.balance(f.alice), f.balance(f.bert)
	assert.Nil(t, f.ledger.CloseChannel(atHeight(5), f.db, f.alice, id))
	assert.Equal(t, alice+3000000, f.balance(f.alice))
	assert.Equal(t, bert+5000000, f.balance(f.bert))
	assert.Equal(t, ChannelState_Closed, f.channel(id).State)
	assert.Equal(t, uint64(0), f.locked())
	f.checkInvariants()

	var types []string
	for _, e := range f.events.Events() {
		types = append(types, e.Type)
	}
	assert.Equal(t, []string{
		chanledger.EventChannelOpened,
		chanledger.EventChannelFunded,
		chanledger.EventChannelUpdated,
		chanledger.EventChannelUpdated,
		chanledger.EventChannelClosed,
	}, types)
}

func TestDisputeScenario(t *testing.T) {
	f := newFixture(t)

	id := f.open(1, 5000000, 3000000)
	assert.Nil(t, f.ledger.UpdateChannel(atHeight(2), f.db, f.alice, id, 6000000, 2000000, 1, hash(1)))
	assert.Nil(t, f.ledger.InitiateDispute(atHeight(3), f.db, f.bert, id, 7000000, 1000000, 2))

	err := f.ledger.ResolveDispute(atHeight(3+DefaultDisputeTimeout-1), f.db, f.alice, id)
	assert.IsErr(t, ErrTimeoutNotReached, err)

	alice, bert := f.balance(f.alice), f.balance(f.bert)
	assert.Nil(t, f.ledger.ResolveDispute(atHeight(3+DefaultDisputeTimeout), f.db, f.alice, id))
	assert.Equal(t, alice+7000000, f.balance(f.alice))
	assert.Equal(t, bert+1000000, f.balance(f.bert))
	assert.Equal(t, uint64(0), f.locked())
	f.checkInvariants()
}

// failingController fails the n-th MoveCoins call.
type failingController struct {
	cash.Controller
	failAt int
	calls  int
}

func (c *failingController) MoveCoins(db chanledger.KVStore, src, dst chanledger.Address, amount uint64) error {
	c.calls++
	if c.calls == c.failAt {
		return errors.Wrap(errors.ErrDatabase, "transfer failed")
	}
	return c.Controller.MoveCoins(db, src, dst, amount)
}

func TestFailedTransferLeavesNoTrace(t *testing.T) {
	f := newFixture(t)
	ctrl := &failingController{Controller: f.cash, failAt: 2}
	ledger := NewLedger(ctrl, f.events)

	// The deposit succeeds, the fee transfer fails.
	_, err := ledger.OpenChannel(atHeight(1), f.db, f.alice, f.bert, 5000000, 3000000)
	assert.IsErr(t, errors.ErrDatabase, err)
	assert.Equal(t, uint64(initialFunds), f.balance(f.alice))
	assert.Equal(t, uint64(0), f.balance(PoolAddress))
	assert.Equal(t, uint64(0), f.balance(f.owner))
	assert.Equal(t, uint64(0), f.locked())
	n, err := ledger.UserChannelCount(f.db, f.alice)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), n)
	_, err = ledger.ChannelDetails(f.db, 0)
	assert.IsErr(t, ErrChannelNotFound, err)
	assert.Equal(t, 0, len(f.events.Events()))

	// Paying participant B fails after A was paid.
	id := f.open(2, 5000000, 3000000)
	ctrl.calls, ctrl.failAt = 0, 2
	err = ledger.CloseChannel(atHeight(3), f.db, f.alice, id)
	assert.IsErr(t, errors.ErrDatabase, err)
	assert.Equal(t, ChannelState_Open, f.channel(id).State)
	assert.Equal(t, uint64(8000000), f.balance(PoolAddress))
	f.checkInvariants()
}

func TestTransitionRequiresCacheableStore(t *testing.T) {
	f := newFixture(t)
	ctrl := &failingController{Controller: f.cash, failAt: 2}
	ledger := NewLedger(ctrl, f.events)

	plain := struct{ chanledger.KVStore }{f.db}
	_, err := ledger.OpenChannel(atHeight(1), plain, f.alice, f.bert, 5000000, 3000000)
	assert.IsErr(t, errors.ErrHuman, err)
	assert.Equal(t, 0, ctrl.calls)
	assert.Equal(t, uint64(initialFunds), f.balance(f.alice))
	assert.Equal(t, uint64(0), f.balance(PoolAddress))
	assert.Equal(t, uint64(0), f.locked())
	assert.Equal(t, 0, len(f.events.Events()))
	f.checkInvariants()
}

func TestEmitterFailureDoesNotAffectTransition(t *testing.T) {
	f := newFixture(t)
	var calls int
	emitter := chanledger.EventEmitterFunc(func(chanledger.Event) error {
		calls++
		return errors.Wrap(errors.ErrDatabase, "emitter down")
	})
	ledger := NewLedger(f.cash, emitter)

	id, err := ledger.OpenChannel(atHeight(1), f.db, f.alice, f.bert, 5000000, 0)
	assert.Nil(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, ChannelState_Open, f.channel(id).State)

	// Rejected calls emit nothing.
	err = ledger.CloseChannel(atHeight(1), f.db, f.carl, id)
	assert.IsErr(t, ErrUnauthorized, err)
	assert.Equal(t, 1, calls)
}

func TestHeightRequired(t *testing.T) {
	f := newFixture(t)
	_, err := f.ledger.OpenChannel(context.Background(), f.db, f.alice, f.bert, 5000000, 0)
	assert.IsErr(t, errors.ErrHuman, err)
}

func TestMissingConfiguration(t *testing.T) {
	db := store.MemStore()
	ctrl := cash.NewController(cash.NewBucket())
	alice, bert := ledgertest.NewAddress(), ledgertest.NewAddress()
	assert.Nil(t, ctrl.IssueCoins(db, alice, initialFunds))

	_, err := NewLedger(ctrl, nil).OpenChannel(atHeight(1), db, alice, bert, 5000000, 0)
	assert.IsErr(t, errors.ErrNotFound, err)
}
