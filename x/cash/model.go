package cash

import (
	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/orm"
)

// BucketName is where we store the balances
const BucketName = "cash"

// Wallet holds the value owned by a single address.
type Wallet struct {
	Amount uint64 `protobuf:"varint,1,opt,name=amount,proto3" json:"amount,omitempty"`
}

func (m *Wallet) Reset()         { *m = Wallet{} }
func (m *Wallet) String() string { return proto.CompactTextString(m) }
func (*Wallet) ProtoMessage()    {}

func (m *Wallet) GetAmount() uint64 {
	if m != nil {
		return m.Amount
	}
	return 0
}

// Validate is a noop, any amount is a valid balance.
func (m *Wallet) Validate() error {
	return nil
}

// Bucket is a type-safe wrapper around orm.Bucket
type Bucket struct {
	orm.Bucket
}

// NewBucket initializes a cash.Bucket with default name
func NewBucket() Bucket {
	return Bucket{
		Bucket: orm.NewBucket(BucketName, &Wallet{}),
	}
}

// Get returns the wallet stored under given address, or nil if the address
// never held any value.
func (b Bucket) Get(db chanledger.ReadOnlyKVStore, addr chanledger.Address) (*Wallet, error) {
	var w Wallet
	switch err := b.One(db, addr, &w); {
	case err == nil:
		return &w, nil
	case errors.ErrNotFound.Is(err):
		return nil, nil
	default:
		return nil, err
	}
}

// GetOrCreate returns the wallet stored under given address, or an empty
// one if it does not exist yet.
func (b Bucket) GetOrCreate(db chanledger.ReadOnlyKVStore, addr chanledger.Address) (*Wallet, error) {
	w, err := b.Get(db, addr)
	if err != nil {
		return nil, err
	}
	if w == nil {
		w = &Wallet{}
	}
	return w, nil
}

// Save stores the wallet under given address.
func (b Bucket) Save(db chanledger.KVStore, addr chanledger.Address, w *Wallet) error {
	if err := addr.Validate(); err != nil {
		return errors.Wrap(err, "wallet address")
	}
	return b.Put(db, addr, w)
}
