package channel

import (
	"encoding/json"

	"github.com/gogo/protobuf/proto"
	github_com_iov_one_chanledger "github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// ChannelState is the lifecycle stage of a channel.
type ChannelState int32

const (
	ChannelState_Invalid  ChannelState = 0
	ChannelState_Open     ChannelState = 1
	ChannelState_Disputed ChannelState = 2
	ChannelState_Closed   ChannelState = 3
)

var ChannelState_name = map[int32]string{
	0: "Invalid",
	1: "Open",
	2: "Disputed",
	3: "Closed",
}

var ChannelState_value = map[string]int32{
	"Invalid":  0,
	"Open":     1,
	"Disputed": 2,
	"Closed":   3,
}

func (x ChannelState) String() string {
	return proto.EnumName(ChannelState_name, int32(x))
}

// MarshalJSON encodes the state by its name.
func (x ChannelState) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.String())
}

// UnmarshalJSON accepts the state name.
func (x *ChannelState) UnmarshalJSON(raw []byte) error {
	var name string
	if err := json.Unmarshal(raw, &name); err != nil {
		return errors.Wrap(errors.ErrInput, "channel state")
	}
	val, ok := ChannelState_value[name]
	if !ok {
		return errors.Wrapf(errors.ErrInput, "unknown channel state %q", name)
	}
	*x = ChannelState(val)
	return nil
}

// Channel is a bilateral custodial balance agreement between two
// participants.
type Channel struct {
	ParticipantA github_com_iov_one_chanledger.Address `protobuf:"bytes,1,opt,name=participant_a,json=participantA,proto3,casttype=github.com/iov-one/chanledger.Address" json:"participant_a,omitempty"`
	ParticipantB github_com_iov_one_chanledger.Address `protobuf:"bytes,2,opt,name=participant_b,json=participantB,proto3,casttype=github.com/iov-one/chanledger.Address" json:"participant_b,omitempty"`
	BalanceA     uint64                                `protobuf:"varint,3,opt,name=balance_a,json=balanceA,proto3" json:"balance_a,omitempty"`
	BalanceB     uint64                                `protobuf:"varint,4,opt,name=balance_b,json=balanceB,proto3" json:"balance_b,omitempty"`
	// Sum of both balances, fixed when the channel is opened.
	TotalAmount uint64 `protobuf:"varint,5,opt,name=total_amount,json=totalAmount,proto3" json:"total_amount,omitempty"`
	// Value participant B must deposit to fund the channel.
	DepositB uint64       `protobuf:"varint,6,opt,name=deposit_b,json=depositB,proto3" json:"deposit_b,omitempty"`
	Funded   bool         `protobuf:"varint,7,opt,name=funded,proto3" json:"funded,omitempty"`
	Nonce    uint64       `protobuf:"varint,8,opt,name=nonce,proto3" json:"nonce,omitempty"`
	State    ChannelState `protobuf:"varint,9,opt,name=state,proto3" json:"state,omitempty"`
	// Block height at which either participant may force close.
	TimeoutBlock int64 `protobuf:"varint,10,opt,name=timeout_block,json=timeoutBlock,proto3" json:"timeout_block,omitempty"`
	CreatedAt    int64 `protobuf:"varint,11,opt,name=created_at,json=createdAt,proto3" json:"created_at,omitempty"`
	LastUpdate   int64 `protobuf:"varint,12,opt,name=last_update,json=lastUpdate,proto3" json:"last_update,omitempty"`
}

func (m *Channel) Reset()         { *m = Channel{} }
func (m *Channel) String() string { return proto.CompactTextString(m) }
func (*Channel) ProtoMessage()    {}

// Dispute is a proposed final balance split. It becomes final once the
// dispute timeout passed.
type Dispute struct {
	Initiator        github_com_iov_one_chanledger.Address `protobuf:"bytes,1,opt,name=initiator,proto3,casttype=github.com/iov-one/chanledger.Address" json:"initiator,omitempty"`
	DisputeBlock     int64                                 `protobuf:"varint,2,opt,name=dispute_block,json=disputeBlock,proto3" json:"dispute_block,omitempty"`
	ProposedBalanceA uint64                                `protobuf:"varint,3,opt,name=proposed_balance_a,json=proposedBalanceA,proto3" json:"proposed_balance_a,omitempty"`
	ProposedBalanceB uint64                                `protobuf:"varint,4,opt,name=proposed_balance_b,json=proposedBalanceB,proto3" json:"proposed_balance_b,omitempty"`
	DisputeNonce     uint64                                `protobuf:"varint,5,opt,name=dispute_nonce,json=disputeNonce,proto3" json:"dispute_nonce,omitempty"`
}

func (m *Dispute) Reset()         { *m = Dispute{} }
func (m *Dispute) String() string { return proto.CompactTextString(m) }
func (*Dispute) ProtoMessage()    {}

// PaymentCommitment is an audit record of a posted channel update.
type PaymentCommitment struct {
	ChannelID uint64 `protobuf:"varint,1,opt,name=channel_id,json=channelId,proto3" json:"channel_id"`
	Nonce     uint64 `protobuf:"varint,2,opt,name=nonce,proto3" json:"nonce"`
	BalanceA  uint64 `protobuf:"varint,3,opt,name=balance_a,json=balanceA,proto3" json:"balance_a"`
	BalanceB  uint64 `protobuf:"varint,4,opt,name=balance_b,json=balanceB,proto3" json:"balance_b"`
	// Opaque digest binding this record to an off chain payment.
	CommitmentHash []byte `protobuf:"bytes,5,opt,name=commitment_hash,json=commitmentHash,proto3" json:"commitment_hash,omitempty"`
	Timestamp      int64  `protobuf:"varint,6,opt,name=timestamp,proto3" json:"timestamp"`
}

func (m *PaymentCommitment) Reset()         { *m = PaymentCommitment{} }
func (m *PaymentCommitment) String() string { return proto.CompactTextString(m) }
func (*PaymentCommitment) ProtoMessage()    {}

// UserChannelCount is the number of channels an address ever joined.
type UserChannelCount struct {
	Count uint64 `protobuf:"varint,1,opt,name=count,proto3" json:"count"`
}

func (m *UserChannelCount) Reset()         { *m = UserChannelCount{} }
func (m *UserChannelCount) String() string { return proto.CompactTextString(m) }
func (*UserChannelCount) ProtoMessage()    {}

// Configuration is set at genesis and never changes afterwards.
type Configuration struct {
	// Owner receives the settlement fee.
	Owner              github_com_iov_one_chanledger.Address `protobuf:"bytes,1,opt,name=owner,proto3,casttype=github.com/iov-one/chanledger.Address" json:"owner,omitempty"`
	MinChannelAmount   uint64                                `protobuf:"varint,2,opt,name=min_channel_amount,json=minChannelAmount,proto3" json:"min_channel_amount"`
	MaxChannelAmount   uint64                                `protobuf:"varint,3,opt,name=max_channel_amount,json=maxChannelAmount,proto3" json:"max_channel_amount"`
	ChannelTimeout     int64                                 `protobuf:"varint,4,opt,name=channel_timeout,json=channelTimeout,proto3" json:"channel_timeout"`
	DisputeTimeout     int64                                 `protobuf:"varint,5,opt,name=dispute_timeout,json=disputeTimeout,proto3" json:"dispute_timeout"`
	SettlementFee      uint64                                `protobuf:"varint,6,opt,name=settlement_fee,json=settlementFee,proto3" json:"settlement_fee"`
	MaxChannelsPerUser uint64                                `protobuf:"varint,7,opt,name=max_channels_per_user,json=maxChannelsPerUser,proto3" json:"max_channels_per_user"`
}

func (m *Configuration) Reset()         { *m = Configuration{} }
func (m *Configuration) String() string { return proto.CompactTextString(m) }
func (*Configuration) ProtoMessage()    {}
