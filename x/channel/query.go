package channel

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/orm"
)

// Query paths served by Ledger.Query.
const (
	QueryChannels     = "/channels"
	QueryDisputes     = "/disputes"
	QueryCommitments  = "/commitments"
	QueryCounts       = "/counts"
	QueryParticipants = "/participants"
	QueryStats        = "/stats"
	QueryActive       = "/active"
	QueryBalance      = "/balance"
)

// ContractStats aggregates the ledger wide state.
type ContractStats struct {
	TotalChannels uint64        `json:"total_channels"`
	TotalLocked   uint64        `json:"total_locked"`
	Configuration Configuration `json:"configuration"`
}

// ChannelDetails returns the channel with given ID.
func (l *Ledger) ChannelDetails(db chanledger.ReadOnlyKVStore, id uint64) (*Channel, error) {
	return l.channels.GetChannel(db, id)
}

// ChannelDispute returns the dispute raised on given channel. Disputes are
// kept after the channel is closed.
func (l *Ledger) ChannelDispute(db chanledger.ReadOnlyKVStore, id uint64) (*Dispute, error) {
	return l.disputes.GetDispute(db, id)
}

// PaymentCommitment returns the commitment posted with given nonce.
func (l *Ledger) PaymentCommitment(db chanledger.ReadOnlyKVStore, id, nonce uint64) (*PaymentCommitment, error) {
	return l.commitments.GetCommitment(db, id, nonce)
}

// ChannelCommitments returns all commitments of a channel in nonce order.
func (l *Ledger) ChannelCommitments(db chanledger.ReadOnlyKVStore, id uint64) ([]*PaymentCommitment, error) {
	return l.commitments.ByChannel(db, id)
}

// UserChannelCount returns the number of channels given address ever joined.
func (l *Ledger) UserChannelCount(db chanledger.ReadOnlyKVStore, addr chanledger.Address) (uint64, error) {
	return l.counts.Count(db, addr)
}

// ChannelsOf returns IDs of all channels given address participates in.
func (l *Ledger) ChannelsOf(db chanledger.ReadOnlyKVStore, addr chanledger.Address) ([]uint64, error) {
	return l.channels.ByParticipant(db, addr)
}

// ContractStats returns the number of channels created, the value locked
// and the configuration.
func (l *Ledger) ContractStats(db chanledger.ReadOnlyKVStore) (*ContractStats, error) {
	total, err := l.channels.NextID(db)
	if err != nil {
		return nil, errors.Wrap(err, "channel counter")
	}
	locked, err := l.locked.Value(db)
	if err != nil {
		return nil, errors.Wrap(err, "total locked")
	}
	conf, err := loadConf(db)
	if err != nil {
		return nil, err
	}
	return &ContractStats{
		TotalChannels: total,
		TotalLocked:   locked,
		Configuration: *conf,
	}, nil
}

// IsChannelActive returns true if the channel exists and is open.
func (l *Ledger) IsChannelActive(db chanledger.ReadOnlyKVStore, id uint64) (bool, error) {
	ch, err := l.channels.GetChannel(db, id)
	switch {
	case err == nil:
		return ch.State == ChannelState_Open, nil
	case ErrChannelNotFound.Is(err):
		return false, nil
	default:
		return false, err
	}
}

// ContractBalance returns the value actually held by the pool.
func (l *Ledger) ContractBalance(db chanledger.ReadOnlyKVStore) (uint64, error) {
	return l.cash.Balance(db, PoolAddress)
}

// CheckBalance returns ErrState if the value held by the pool differs from
// the value the ledger accounts as locked.
func (l *Ledger) CheckBalance(db chanledger.ReadOnlyKVStore) error {
	held, err := l.ContractBalance(db)
	if err != nil {
		return err
	}
	locked, err := l.locked.Value(db)
	if err != nil {
		return err
	}
	if held != locked {
		return errors.Wrapf(errors.ErrState, "pool holds %d, locked %d", held, locked)
	}
	return nil
}

// Query serves the read only surface by path. Channel IDs are passed as 8
// byte big endian values. The commitments path accepts either a channel ID,
// returning all commitments, or a channel ID followed by a nonce.
func (l *Ledger) Query(db chanledger.ReadOnlyKVStore, path string, data []byte) (interface{}, error) {
	switch path {
	case QueryChannels:
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		return l.ChannelDetails(db, id)
	case QueryDisputes:
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		return l.ChannelDispute(db, id)
	case QueryCommitments:
		switch len(data) {
		case 8:
			id, err := decodeID(data)
			if err != nil {
				return nil, err
			}
			return l.ChannelCommitments(db, id)
		case 16:
			id, err := decodeID(data[:8])
			if err != nil {
				return nil, err
			}
			nonce, err := orm.DecodeSequence(data[8:])
			if err != nil {
				return nil, errors.Wrap(err, "nonce")
			}
			return l.PaymentCommitment(db, id, nonce)
		default:
			return nil, errors.Wrapf(errors.ErrInput, "invalid commitment key length %d", len(data))
		}
	case QueryCounts:
		return l.UserChannelCount(db, chanledger.Address(data))
	case QueryParticipants:
		return l.ChannelsOf(db, chanledger.Address(data))
	case QueryStats:
		return l.ContractStats(db)
	case QueryActive:
		id, err := decodeID(data)
		if err != nil {
			return nil, err
		}
		return l.IsChannelActive(db, id)
	case QueryBalance:
		return l.ContractBalance(db)
	default:
		return nil, errors.Wrapf(errors.ErrNotFound, "unknown query path %q", path)
	}
}

// decodeID parses a channel ID, unlike orm.DecodeSequence empty input is
// rejected.
func decodeID(data []byte) (uint64, error) {
	if err := orm.ValidateSequence(data); err != nil {
		return 0, errors.Wrap(err, "channel id")
	}
	return orm.DecodeSequence(data)
}
