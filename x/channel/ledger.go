package channel

import (
	"context"
	"fmt"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/orm"
	"github.com/iov-one/chanledger/x/cash"
	"github.com/tendermint/tendermint/libs/common"
)

// PoolAddress is the custodial account holding the value of all channels.
// Nobody can sign for it, only the ledger operations move value in or out.
var PoolAddress = chanledger.NewCondition("channel", "pool", nil).Address()

// Ledger implements the channel state machine. It holds no state of its own,
// everything is kept in the store passed to each operation. Writes to one
// store must be serialized by the caller.
type Ledger struct {
	cash        cash.Controller
	channels    ChannelBucket
	disputes    DisputeBucket
	commitments CommitmentBucket
	counts      CountBucket
	locked      orm.Counter
	emitter     chanledger.EventEmitter
}

// NewLedger returns a ledger that moves value using given controller and
// reports every applied transition to the emitter. A nil emitter discards
// events.
func NewLedger(ctrl cash.Controller, emitter chanledger.EventEmitter) *Ledger {
	if emitter == nil {
		emitter = chanledger.NopEmitter{}
	}
	channels := NewChannelBucket()
	return &Ledger{
		cash:        ctrl,
		channels:    channels,
		disputes:    NewDisputeBucket(),
		commitments: NewCommitmentBucket(),
		counts:      NewCountBucket(),
		locked:      orm.NewCounter(channels.Name(), "locked"),
		emitter:     emitter,
	}
}

// transitionFn checks all preconditions and applies the effects of a single
// operation. Returned event is emitted once the changes were written.
type transitionFn func(db chanledger.KVStore, height int64) (*chanledger.Event, error)

// transition runs fn at the current block height. All writes done by fn are
// discarded if it fails, so a rejected call leaves no trace.
func (l *Ledger) transition(ctx context.Context, db chanledger.KVStore, op string, fn transitionFn) error {
	height, ok := chanledger.GetHeight(ctx)
	if !ok {
		return errors.Wrap(errors.ErrHuman, "block height not set")
	}
	logger := chanledger.GetLogger(ctx).With("module", "channel", "op", op, "height", height)

	var ev *chanledger.Event
	err := chanledger.Atomic(db, func(db chanledger.KVStore) error {
		var err error
		ev, err = fn(db, height)
		return err
	})
	if err != nil {
		logger.Debug("rejected", "err", err)
		return err
	}

	ev.Height = height
	logger.Info("applied", "event", ev.Type, "channel", ev.ChannelID)
	if err := l.emitter.Emit(*ev); err != nil {
		logger.Error("cannot emit event", "event", ev.Type, "err", err)
	}
	return nil
}

// OpenChannel creates a channel between caller and counterparty. The caller
// deposits amountA and pays the settlement fee, the counterparty is expected
// to deposit amountB with FundChannel. Returns the ID of the new channel.
func (l *Ledger) OpenChannel(ctx context.Context, db chanledger.KVStore,
	caller, counterparty chanledger.Address, amountA, amountB uint64) (uint64, error) {

	var id uint64
	err := l.transition(ctx, db, "open", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		if err := caller.Validate(); err != nil {
			return nil, errors.Field("Caller", err, "invalid caller")
		}
		if err := counterparty.Validate(); err != nil {
			return nil, errors.Field("Counterparty", err, "invalid counterparty")
		}
		if caller.Equals(counterparty) {
			return nil, errors.Wrap(ErrUnauthorized, "cannot open a channel with self")
		}
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}

		total := amountA + amountB
		if total < amountA || total < conf.MinChannelAmount || total > conf.MaxChannelAmount {
			return nil, errors.Wrapf(ErrInvalidAmount, "total must be within [%d, %d]",
				conf.MinChannelAmount, conf.MaxChannelAmount)
		}
		for _, addr := range []chanledger.Address{caller, counterparty} {
			n, err := l.counts.Count(db, addr)
			if err != nil {
				return nil, errors.Wrap(err, "channel count")
			}
			if n >= conf.MaxChannelsPerUser {
				return nil, errors.Wrapf(ErrMaxChannelsExceeded, "%s joined %d channels", addr, n)
			}
		}
		required := amountA + conf.SettlementFee
		if required < amountA {
			return nil, errors.Wrap(ErrInvalidAmount, "deposit with fee overflows")
		}
		if err := l.requireBalance(db, caller, required); err != nil {
			return nil, err
		}

		if err := l.cash.MoveCoins(db, caller, PoolAddress, amountA); err != nil {
			return nil, errors.Wrap(err, "deposit")
		}
		if err := l.cash.MoveCoins(db, caller, conf.Owner, conf.SettlementFee); err != nil {
			return nil, errors.Wrap(err, "settlement fee")
		}
		if _, err := l.locked.Add(db, amountA); err != nil {
			return nil, errors.Wrap(err, "total locked")
		}
		if err := l.counts.Increment(db, caller); err != nil {
			return nil, err
		}
		if err := l.counts.Increment(db, counterparty); err != nil {
			return nil, err
		}

		id, err = l.channels.Create(db, &Channel{
			ParticipantA: caller,
			ParticipantB: counterparty,
			BalanceA:     amountA,
			BalanceB:     amountB,
			TotalAmount:  total,
			DepositB:     amountB,
			Funded:       amountB == 0,
			Nonce:        0,
			State:        ChannelState_Open,
			TimeoutBlock: height + conf.ChannelTimeout,
			CreatedAt:    height,
			LastUpdate:   height,
		})
		if err != nil {
			return nil, errors.Wrap(err, "create channel")
		}
		return &chanledger.Event{
			Type:      chanledger.EventChannelOpened,
			ChannelID: id,
			Attributes: []common.KVPair{
				attr("participant_a", caller),
				attr("participant_b", counterparty),
				attr("total_amount", total),
			},
		}, nil
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// FundChannel deposits the share of participant B.
func (l *Ledger) FundChannel(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64, amount uint64) error {

	return l.transition(ctx, db, "fund", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		if !ch.ParticipantB.Equals(caller) {
			return nil, errors.Wrap(ErrUnauthorized, "only participant B can fund")
		}
		if ch.State != ChannelState_Open {
			return nil, errors.Wrapf(ErrChannelClosed, "channel is %s", ch.State)
		}
		if ch.Funded {
			return nil, errors.Wrapf(ErrChannelAlreadyExists, "channel %d", id)
		}
		if amount != ch.DepositB {
			return nil, errors.Wrapf(ErrInvalidAmount, "want %d, got %d", ch.DepositB, amount)
		}
		if err := l.requireBalance(db, caller, amount); err != nil {
			return nil, err
		}
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}

		if err := l.cash.MoveCoins(db, caller, PoolAddress, amount); err != nil {
			return nil, errors.Wrap(err, "deposit")
		}
		if _, err := l.locked.Add(db, amount); err != nil {
			return nil, errors.Wrap(err, "total locked")
		}
		ch.Funded = true
		ch.TimeoutBlock = height + conf.ChannelTimeout
		ch.LastUpdate = height
		if err := l.channels.Save(db, id, ch); err != nil {
			return nil, err
		}
		return &chanledger.Event{
			Type:      chanledger.EventChannelFunded,
			ChannelID: id,
			Attributes: []common.KVPair{
				attr("participant_b", caller),
				attr("amount", amount),
			},
		}, nil
	})
}

// UpdateChannel posts the latest balances both participants agreed on off
// the chain. Only a state with a nonce greater than the current one is
// accepted.
func (l *Ledger) UpdateChannel(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64, balanceA, balanceB, nonce uint64, commitmentHash []byte) error {

	return l.transition(ctx, db, "update", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		if !ch.HasParticipant(caller) {
			return nil, errors.Wrap(ErrUnauthorized, "not a channel participant")
		}
		if err := requireOpen(ch); err != nil {
			return nil, err
		}
		if nonce <= ch.Nonce {
			return nil, errors.Wrapf(ErrInvalidNonce, "nonce must be greater than %d", ch.Nonce)
		}
		if !conserves(ch, balanceA, balanceB) {
			return nil, errors.Wrapf(ErrInvalidAmount, "balances must sum up to %d", ch.TotalAmount)
		}
		if len(commitmentHash) != CommitmentHashLength {
			return nil, errors.Field("CommitmentHash", errors.ErrInput,
				"must be %d bytes", CommitmentHashLength)
		}
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}

		ch.BalanceA = balanceA
		ch.BalanceB = balanceB
		ch.Nonce = nonce
		ch.TimeoutBlock = height + conf.ChannelTimeout
		ch.LastUpdate = height
		if err := l.channels.Save(db, id, ch); err != nil {
			return nil, err
		}
		err = l.commitments.Append(db, &PaymentCommitment{
			ChannelID:      id,
			Nonce:          nonce,
			BalanceA:       balanceA,
			BalanceB:       balanceB,
			CommitmentHash: commitmentHash,
			Timestamp:      height,
		})
		if err != nil {
			return nil, errors.Wrap(err, "payment commitment")
		}
		return &chanledger.Event{
			Type:      chanledger.EventChannelUpdated,
			ChannelID: id,
			Attributes: []common.KVPair{
				attr("nonce", nonce),
				attr("balance_a", balanceA),
				attr("balance_b", balanceB),
			},
		}, nil
	})
}

// InitiateDispute proposes a final balance split. Balances are not changed
// until the dispute is resolved.
func (l *Ledger) InitiateDispute(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64, balanceA, balanceB, nonce uint64) error {

	return l.transition(ctx, db, "dispute", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		if !ch.HasParticipant(caller) {
			return nil, errors.Wrap(ErrUnauthorized, "not a channel participant")
		}
		if err := requireOpen(ch); err != nil {
			return nil, err
		}
		if !conserves(ch, balanceA, balanceB) {
			return nil, errors.Wrapf(ErrInvalidAmount, "balances must sum up to %d", ch.TotalAmount)
		}
		if nonce < ch.Nonce {
			return nil, errors.Wrapf(ErrInvalidNonce, "nonce must not be less than %d", ch.Nonce)
		}

		// TimeoutBlock is not refreshed, so emergency close stays reachable
		// while a dispute is pending.
		ch.State = ChannelState_Disputed
		ch.LastUpdate = height
		if err := l.channels.Save(db, id, ch); err != nil {
			return nil, err
		}
		err = l.disputes.Save(db, id, &Dispute{
			Initiator:        caller,
			DisputeBlock:     height,
			ProposedBalanceA: balanceA,
			ProposedBalanceB: balanceB,
			DisputeNonce:     nonce,
		})
		if err != nil {
			return nil, errors.Wrap(err, "dispute")
		}
		return &chanledger.Event{
			Type:      chanledger.EventDisputeInitiated,
			ChannelID: id,
			Attributes: []common.KVPair{
				attr("initiator", caller),
				attr("nonce", nonce),
				attr("balance_a", balanceA),
				attr("balance_b", balanceB),
			},
		}, nil
	})
}

// ResolveDispute settles a disputed channel using the proposed balances once
// the dispute timeout passed. Anybody can resolve a dispute.
func (l *Ledger) ResolveDispute(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64) error {

	return l.transition(ctx, db, "resolve", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		d, err := l.disputes.GetDispute(db, id)
		if err != nil {
			return nil, errors.Wrapf(err, "dispute of channel %d", id)
		}
		if ch.State != ChannelState_Disputed {
			return nil, errors.Wrapf(ErrChannelClosed, "channel is %s", ch.State)
		}
		conf, err := loadConf(db)
		if err != nil {
			return nil, err
		}
		if deadline := d.DisputeBlock + conf.DisputeTimeout; height < deadline {
			return nil, errors.Wrapf(ErrTimeoutNotReached, "dispute can be resolved at %d", deadline)
		}

		if err := l.settle(db, ch, d.ProposedBalanceA, d.ProposedBalanceB); err != nil {
			return nil, err
		}
		ch.BalanceA = d.ProposedBalanceA
		ch.BalanceB = d.ProposedBalanceB
		ch.State = ChannelState_Closed
		ch.LastUpdate = height
		if err := l.channels.Save(db, id, ch); err != nil {
			return nil, err
		}
		return &chanledger.Event{
			Type:      chanledger.EventDisputeResolved,
			ChannelID: id,
			Attributes: []common.KVPair{
				attr("resolver", caller),
				attr("balance_a", d.ProposedBalanceA),
				attr("balance_b", d.ProposedBalanceB),
			},
		}, nil
	})
}

// CloseChannel cooperatively settles an open channel using the current
// balances. A disputed channel cannot be closed this way.
func (l *Ledger) CloseChannel(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64) error {

	return l.transition(ctx, db, "close", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		if !ch.HasParticipant(caller) {
			return nil, errors.Wrap(ErrUnauthorized, "not a channel participant")
		}
		if ch.State != ChannelState_Open {
			return nil, errors.Wrapf(ErrChannelClosed, "channel is %s", ch.State)
		}
		return l.closeWith(db, ch, id, height, chanledger.EventChannelClosed)
	})
}

// EmergencyClose settles an open or disputed channel using the last posted
// balances once the channel timeout passed.
func (l *Ledger) EmergencyClose(ctx context.Context, db chanledger.KVStore,
	caller chanledger.Address, id uint64) error {

	return l.transition(ctx, db, "emergency", func(db chanledger.KVStore, height int64) (*chanledger.Event, error) {
		ch, err := l.channels.GetChannel(db, id)
		if err != nil {
			return nil, err
		}
		if !ch.HasParticipant(caller) {
			return nil, errors.Wrap(ErrUnauthorized, "not a channel participant")
		}
		if ch.State == ChannelState_Closed {
			return nil, errors.Wrapf(ErrChannelClosed, "channel %d", id)
		}
		if height < ch.TimeoutBlock {
			return nil, errors.Wrapf(ErrTimeoutNotReached, "channel times out at %d", ch.TimeoutBlock)
		}
		return l.closeWith(db, ch, id, height, chanledger.EventEmergencyClose)
	})
}

func (l *Ledger) closeWith(db chanledger.KVStore, ch *Channel, id uint64, height int64, eventType string) (*chanledger.Event, error) {
	if err := l.settle(db, ch, ch.BalanceA, ch.BalanceB); err != nil {
		return nil, err
	}
	ch.State = ChannelState_Closed
	ch.LastUpdate = height
	if err := l.channels.Save(db, id, ch); err != nil {
		return nil, err
	}
	return &chanledger.Event{
		Type:      eventType,
		ChannelID: id,
		Attributes: []common.KVPair{
			attr("balance_a", ch.BalanceA),
			attr("balance_b", ch.BalanceB),
		},
	}, nil
}

// settle pays out the channel from the pool and releases its locked value.
// If B never deposited, the opener gets back the deposit and B gets nothing.
func (l *Ledger) settle(db chanledger.KVStore, ch *Channel, payA, payB uint64) error {
	custodied := ch.Custodied()
	if !ch.Funded {
		payA, payB = custodied, 0
	}
	if err := l.cash.MoveCoins(db, PoolAddress, ch.ParticipantA, payA); err != nil {
		return errors.Wrap(err, "pay participant A")
	}
	if err := l.cash.MoveCoins(db, PoolAddress, ch.ParticipantB, payB); err != nil {
		return errors.Wrap(err, "pay participant B")
	}
	if _, err := l.locked.Sub(db, custodied); err != nil {
		return errors.Wrap(err, "total locked")
	}
	return nil
}

func (l *Ledger) requireBalance(db chanledger.ReadOnlyKVStore, addr chanledger.Address, amount uint64) error {
	bal, err := l.cash.Balance(db, addr)
	if err != nil {
		return err
	}
	if bal < amount {
		return errors.Wrapf(ErrInsufficientBalance, "have %d, need %d", bal, amount)
	}
	return nil
}

// requireOpen ensures balances of the channel can still be changed.
func requireOpen(ch *Channel) error {
	switch ch.State {
	case ChannelState_Open:
		if !ch.Funded {
			return errors.Wrap(ErrChannelClosed, "channel not funded")
		}
		return nil
	case ChannelState_Disputed:
		return errors.Wrap(ErrDisputeActive, "channel is disputed")
	default:
		return errors.Wrapf(ErrChannelClosed, "channel is %s", ch.State)
	}
}

// conserves returns true if given balances sum up to the channel total.
func conserves(ch *Channel, balanceA, balanceB uint64) bool {
	return balanceA <= ch.TotalAmount && ch.TotalAmount-balanceA == balanceB
}

func attr(key string, value interface{}) common.KVPair {
	return common.KVPair{Key: []byte(key), Value: []byte(fmt.Sprint(value))}
}
