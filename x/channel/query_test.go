package channel

import (
	"testing"

	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/ledgertest"
	"github.com/iov-one/chanledger/ledgertest/assert"
)

func TestQuery(t *testing.T) {
	f := newFixture(t)
	id := f.open(1, 5000000, 3000000)
	assert.Nil(t, f.ledger.UpdateChannel(atHeight(2), f.db, f.alice, id, 4000000, 4000000, 1, hash(1)))
	assert.Nil(t, f.ledger.UpdateChannel(atHeight(3), f.db, f.alice, id, 2000000, 6000000, 2, hash(2)))
	assert.Nil(t, f.ledger.InitiateDispute(atHeight(4), f.db, f.bert, id, 1000000, 7000000, 2))

	cases := map[string]struct {
		path    string
		data    []byte
		wantErr *errors.Error
		check   func(t *testing.T, res interface{})
	}{
		"channel": {
			path: QueryChannels,
			data: ledgertest.SequenceID(id),
			check: func(t *testing.T, res interface{}) {
				ch := res.(*Channel)
				assert.Equal(t, ChannelState_Disputed, ch.State)
				assert.Equal(t, uint64(2), ch.Nonce)
			},
		},
		"missing channel": {
			path:    QueryChannels,
			data:    ledgertest.SequenceID(7),
			wantErr: ErrChannelNotFound,
		},
		"channel id required": {
			path:    QueryChannels,
			wantErr: errors.ErrEmpty,
		},
		"malformed channel id": {
			path:    QueryActive,
			data:    []byte{1, 2},
			wantErr: errors.ErrInput,
		},
		"dispute": {
			path: QueryDisputes,
			data: ledgertest.SequenceID(id),
			check: func(t *testing.T, res interface{}) {
				d := res.(*Dispute)
				assert.Equal(t, f.bert, d.Initiator)
				assert.Equal(t, uint64(7000000), d.ProposedBalanceB)
			},
		},
		"all commitments": {
			path: QueryCommitments,
			data: ledgertest.SequenceID(id),
			check: func(t *testing.T, res interface{}) {
				all := res.([]*PaymentCommitment)
				assert.Equal(t, 2, len(all))
				assert.Equal(t, uint64(6000000), all[1].BalanceB)
			},
		},
		"single commitment": {
			path: QueryCommitments,
			data: append(ledgertest.SequenceID(id), ledgertest.SequenceID(1)...),
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, hash(1), res.(*PaymentCommitment).CommitmentHash)
			},
		},
		"unknown commitment nonce": {
			path:    QueryCommitments,
			data:    append(ledgertest.SequenceID(id), ledgertest.SequenceID(9)...),
			wantErr: errors.ErrNotFound,
		},
		"empty commitment key": {
			path:    QueryCommitments,
			wantErr: errors.ErrInput,
		},
		"malformed commitment key": {
			path:    QueryCommitments,
			data:    []byte{1, 2, 3},
			wantErr: errors.ErrInput,
		},
		"count": {
			path: QueryCounts,
			data: f.alice,
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, uint64(1), res.(uint64))
			},
		},
		"participants": {
			path: QueryParticipants,
			data: f.bert,
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, []uint64{id}, res.([]uint64))
			},
		},
		"stats": {
			path: QueryStats,
			check: func(t *testing.T, res interface{}) {
				stats := res.(*ContractStats)
				assert.Equal(t, uint64(1), stats.TotalChannels)
				assert.Equal(t, uint64(8000000), stats.TotalLocked)
				assert.Equal(t, DefaultSettlementFee, stats.Configuration.SettlementFee)
			},
		},
		"active": {
			path: QueryActive,
			data: ledgertest.SequenceID(id),
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, false, res.(bool))
			},
		},
		"balance": {
			path: QueryBalance,
			check: func(t *testing.T, res interface{}) {
				assert.Equal(t, uint64(8000000), res.(uint64))
			},
		},
		"unknown path": {
			path:    "/wallets",
			wantErr: errors.ErrNotFound,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			res, err := f.ledger.Query(f.db, tc.path, tc.data)
			if !tc.wantErr.Is(err) {
				t.Fatalf("unexpected error: %+v", err)
			}
			if tc.check != nil {
				tc.check(t, res)
			}
		})
	}
}

func TestContractBalanceMatchesLocked(t *testing.T) {
	f := newFixture(t)
	a := f.open(1, 5000000, 3000000)
	b := f.openUnfunded(1)
	c := f.open(1, 1000000, 0)

	steps := []func() error{
		func() error { return f.ledger.UpdateChannel(atHeight(2), f.db, f.bert, a, 1000000, 7000000, 1, hash(1)) },
		func() error { return f.ledger.FundChannel(atHeight(3), f.db, f.bert, b, 3000000) },
		func() error { return f.ledger.CloseChannel(atHeight(4), f.db, f.alice, c) },
		func() error { return f.ledger.InitiateDispute(atHeight(5), f.db, f.alice, a, 8000000, 0, 1) },
		func() error { return f.ledger.ResolveDispute(atHeight(5+DefaultDisputeTimeout), f.db, f.bert, a) },
		func() error { return f.ledger.EmergencyClose(atHeight(3+DefaultChannelTimeout), f.db, f.bert, b) },
	}
	for i, step := range steps {
		if err := step(); err != nil {
			t.Fatalf("step %d: %+v", i, err)
		}
		f.checkInvariants()
	}

	bal, err := f.ledger.ContractBalance(f.db)
	assert.Nil(t, err)
	assert.Equal(t, uint64(0), bal)
}
