package channel

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/orm"
)

const (
	// CommitmentHashLength is the size of the opaque digest stored with
	// every payment commitment.
	CommitmentHashLength = 32

	participantIndex = "participant"
)

var (
	_ orm.Model = (*Channel)(nil)
	_ orm.Model = (*Dispute)(nil)
	_ orm.Model = (*PaymentCommitment)(nil)
	_ orm.Model = (*UserChannelCount)(nil)
)

// Validate ensures the channel is valid.
func (c *Channel) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "ParticipantA", c.ParticipantA.Validate())
	errs = errors.AppendField(errs, "ParticipantB", c.ParticipantB.Validate())
	if c.ParticipantA.Equals(c.ParticipantB) {
		errs = errors.AppendField(errs, "ParticipantB",
			errors.Wrap(errors.ErrModel, "participants must be distinct"))
	}
	if c.BalanceA+c.BalanceB != c.TotalAmount || c.BalanceA > c.TotalAmount {
		errs = errors.AppendField(errs, "TotalAmount",
			errors.Wrap(errors.ErrModel, "balances must sum up to the total amount"))
	}
	if c.DepositB > c.TotalAmount {
		errs = errors.AppendField(errs, "DepositB",
			errors.Wrap(errors.ErrModel, "deposit greater than total amount"))
	}
	if _, ok := ChannelState_name[int32(c.State)]; !ok || c.State == ChannelState_Invalid {
		errs = errors.AppendField(errs, "State",
			errors.Wrapf(errors.ErrState, "invalid state %d", c.State))
	}
	if c.CreatedAt < 0 || c.LastUpdate < c.CreatedAt {
		errs = errors.AppendField(errs, "LastUpdate",
			errors.Wrap(errors.ErrModel, "updated before created"))
	}
	return errs
}

// HasParticipant returns true if given address is one of the two channel
// participants.
func (c *Channel) HasParticipant(addr chanledger.Address) bool {
	return c.ParticipantA.Equals(addr) || c.ParticipantB.Equals(addr)
}

// Custodied returns the value the pool holds for this channel. Until
// participant B deposits, only the opener share is custodied.
func (c *Channel) Custodied() uint64 {
	if c.Funded {
		return c.TotalAmount
	}
	return c.TotalAmount - c.DepositB
}

// Validate ensures the dispute is valid.
func (d *Dispute) Validate() error {
	if err := d.Initiator.Validate(); err != nil {
		return errors.Field("Initiator", err, "invalid initiator")
	}
	if d.DisputeBlock < 0 {
		return errors.Field("DisputeBlock", errors.ErrModel, "negative height")
	}
	if d.ProposedBalanceA+d.ProposedBalanceB < d.ProposedBalanceA {
		return errors.Field("ProposedBalanceB", errors.ErrOverflow, "proposed balances overflow")
	}
	return nil
}

// Validate ensures the payment commitment is valid.
func (p *PaymentCommitment) Validate() error {
	if len(p.CommitmentHash) != CommitmentHashLength {
		return errors.Field("CommitmentHash", errors.ErrInput,
			"must be %d bytes, got %d", CommitmentHashLength, len(p.CommitmentHash))
	}
	if p.Nonce == 0 {
		return errors.Field("Nonce", errors.ErrModel, "commitments start at nonce 1")
	}
	return nil
}

// Validate is a noop, any count is valid.
func (c *UserChannelCount) Validate() error {
	return nil
}

// ChannelBucket is a wrapper over orm.Bucket that ensures that only
// Channel entities can be persisted.
type ChannelBucket struct {
	orm.Bucket
	idSeq orm.Sequence
}

// NewChannelBucket returns a bucket for storing Channel state.
func NewChannelBucket() ChannelBucket {
	b := orm.NewBucket("channel", &Channel{}).
		WithIndex(participantIndex, participantIndexer)
	return ChannelBucket{
		Bucket: b,
		idSeq:  b.Sequence("id"),
	}
}

// participantIndexer indexes a channel under both participant addresses.
func participantIndexer(m orm.Model) ([][]byte, error) {
	c, ok := m.(*Channel)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, m)
	}
	return [][]byte{c.ParticipantA, c.ParticipantB}, nil
}

// Create allocates the next channel ID, stores given channel under it and
// returns the ID.
func (b ChannelBucket) Create(db chanledger.KVStore, c *Channel) (uint64, error) {
	id, err := b.idSeq.Next(db)
	if err != nil {
		return 0, errors.Wrap(err, "channel id")
	}
	return id, b.Save(db, id, c)
}

// NextID returns the ID the next created channel will get. This is also the
// number of channels created so far.
func (b ChannelBucket) NextID(db chanledger.ReadOnlyKVStore) (uint64, error) {
	return b.idSeq.Current(db)
}

// Save updates the state of given channel.
func (b ChannelBucket) Save(db chanledger.KVStore, id uint64, c *Channel) error {
	return b.Put(db, orm.EncodeSequence(id), c)
}

// GetChannel returns the channel with given ID or ErrChannelNotFound.
func (b ChannelBucket) GetChannel(db chanledger.ReadOnlyKVStore, id uint64) (*Channel, error) {
	var c Channel
	if err := b.One(db, orm.EncodeSequence(id), &c); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, errors.Wrapf(ErrChannelNotFound, "channel %d", id)
		}
		return nil, err
	}
	return &c, nil
}

// ByParticipant returns IDs of all channels given address participates in,
// in ascending order.
func (b ChannelBucket) ByParticipant(db chanledger.ReadOnlyKVStore, addr chanledger.Address) ([]uint64, error) {
	keys, err := b.IndexKeys(db, participantIndex, addr)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, 0, len(keys))
	for _, k := range keys {
		id, err := orm.DecodeSequence(k)
		if err != nil {
			return nil, errors.Wrap(err, "channel key")
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// DisputeBucket stores at most one dispute per channel.
type DisputeBucket struct {
	orm.Bucket
}

// NewDisputeBucket returns a bucket for storing Dispute records.
func NewDisputeBucket() DisputeBucket {
	return DisputeBucket{
		Bucket: orm.NewBucket("dispute", &Dispute{}),
	}
}

// GetDispute returns the dispute of given channel or ErrNotFound.
func (b DisputeBucket) GetDispute(db chanledger.ReadOnlyKVStore, channelID uint64) (*Dispute, error) {
	var d Dispute
	if err := b.One(db, orm.EncodeSequence(channelID), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// Save stores the dispute of given channel.
func (b DisputeBucket) Save(db chanledger.KVStore, channelID uint64, d *Dispute) error {
	return b.Put(db, orm.EncodeSequence(channelID), d)
}

// CommitmentBucket is an append only store of payment commitments, keyed by
// channel ID and nonce.
type CommitmentBucket struct {
	orm.Bucket
}

// NewCommitmentBucket returns a bucket for storing PaymentCommitment records.
func NewCommitmentBucket() CommitmentBucket {
	return CommitmentBucket{
		Bucket: orm.NewBucket("commitment", &PaymentCommitment{}),
	}
}

func commitmentKey(channelID, nonce uint64) []byte {
	return append(orm.EncodeSequence(channelID), orm.EncodeSequence(nonce)...)
}

// Append stores a new commitment. Commitments are never overwritten.
func (b CommitmentBucket) Append(db chanledger.KVStore, p *PaymentCommitment) error {
	key := commitmentKey(p.ChannelID, p.Nonce)
	switch has, err := b.Has(db, key); {
	case err != nil:
		return err
	case has:
		return errors.Wrapf(errors.ErrDuplicate, "commitment %d/%d", p.ChannelID, p.Nonce)
	}
	return b.Put(db, key, p)
}

// GetCommitment returns the commitment posted for given channel and nonce or
// ErrNotFound.
func (b CommitmentBucket) GetCommitment(db chanledger.ReadOnlyKVStore, channelID, nonce uint64) (*PaymentCommitment, error) {
	var p PaymentCommitment
	if err := b.One(db, commitmentKey(channelID, nonce), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// ByChannel returns all commitments of given channel in nonce order.
func (b CommitmentBucket) ByChannel(db chanledger.ReadOnlyKVStore, channelID uint64) ([]*PaymentCommitment, error) {
	it, err := b.PrefixScan(db, orm.EncodeSequence(channelID), false)
	if err != nil {
		return nil, err
	}
	defer it.Release()

	var res []*PaymentCommitment
	for {
		var p PaymentCommitment
		switch _, err := it.LoadNext(&p); {
		case err == nil:
			res = append(res, &p)
		case errors.ErrIteratorDone.Is(err):
			return res, nil
		default:
			return nil, err
		}
	}
}

// CountBucket tracks how many channels an address ever joined.
type CountBucket struct {
	orm.Bucket
}

// NewCountBucket returns a bucket for storing UserChannelCount records.
func NewCountBucket() CountBucket {
	return CountBucket{
		Bucket: orm.NewBucket("chancount", &UserChannelCount{}),
	}
}

// Count returns the number of channels given address joined.
func (b CountBucket) Count(db chanledger.ReadOnlyKVStore, addr chanledger.Address) (uint64, error) {
	var c UserChannelCount
	switch err := b.One(db, addr, &c); {
	case err == nil:
		return c.Count, nil
	case errors.ErrNotFound.Is(err):
		return 0, nil
	default:
		return 0, err
	}
}

// Increment adds one to the count of given address.
func (b CountBucket) Increment(db chanledger.KVStore, addr chanledger.Address) error {
	n, err := b.Count(db, addr)
	if err != nil {
		return err
	}
	return b.Put(db, addr, &UserChannelCount{Count: n + 1})
}
