package cash

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// Controller is the functionality needed by other extensions to move value.
type Controller interface {
	Balance(chanledger.ReadOnlyKVStore, chanledger.Address) (uint64, error)
	MoveCoins(chanledger.KVStore, chanledger.Address, chanledger.Address, uint64) error
	IssueCoins(chanledger.KVStore, chanledger.Address, uint64) error
}

// BaseController is a simple implementation of controller
type BaseController struct {
	bucket Bucket
}

var _ Controller = BaseController{}

// NewController returns a basic controller implementation
func NewController(bucket Bucket) BaseController {
	return BaseController{bucket: bucket}
}

// Balance returns the amount held by given address. Unknown addresses hold
// nothing.
func (c BaseController) Balance(store chanledger.ReadOnlyKVStore, addr chanledger.Address) (uint64, error) {
	w, err := c.bucket.Get(store, addr)
	if err != nil {
		return 0, errors.Wrap(err, "cannot get wallet")
	}
	return w.GetAmount(), nil
}

// MoveCoins moves the given amount from src to dest.
// If src doesn't exist, or doesn't have sufficient
// coins, it fails. Moving zero is a noop.
func (c BaseController) MoveCoins(store chanledger.KVStore,
	src chanledger.Address, dest chanledger.Address, amount uint64) error {

	if amount == 0 {
		return nil
	}

	sender, err := c.bucket.Get(store, src)
	if err != nil {
		return errors.Wrap(err, "cannot get sender")
	}
	if sender == nil {
		return errors.Wrapf(errors.ErrEmpty, "empty account %s", src)
	}
	if sender.Amount < amount {
		return errors.Wrapf(errors.ErrInsufficientAmount, "have %d, need %d", sender.Amount, amount)
	}

	if src.Equals(dest) {
		return nil
	}

	recipient, err := c.bucket.GetOrCreate(store, dest)
	if err != nil {
		return errors.Wrap(err, "cannot get recipient")
	}
	if recipient.Amount+amount < recipient.Amount {
		return errors.Wrapf(errors.ErrOverflow, "recipient %s", dest)
	}

	sender.Amount -= amount
	recipient.Amount += amount

	if err := c.bucket.Save(store, src, sender); err != nil {
		return errors.Wrap(err, "cannot save sender")
	}
	if err := c.bucket.Save(store, dest, recipient); err != nil {
		return errors.Wrap(err, "cannot save recipient")
	}
	return nil
}

// IssueCoins attempts to add the given amount of coins to
// the destination address. Fails if it overflows the wallet.
func (c BaseController) IssueCoins(store chanledger.KVStore,
	dest chanledger.Address, amount uint64) error {

	recipient, err := c.bucket.GetOrCreate(store, dest)
	if err != nil {
		return errors.Wrap(err, "cannot get recipient")
	}
	if recipient.Amount+amount < recipient.Amount {
		return errors.Wrapf(errors.ErrOverflow, "recipient %s", dest)
	}
	recipient.Amount += amount
	return c.bucket.Save(store, dest, recipient)
}
