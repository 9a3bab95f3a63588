package cash

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

const optKey = "cash"

// GenesisAccount is used to parse the json from genesis file
// use chanledger.Address, so address in hex, not base64
type GenesisAccount struct {
	Address chanledger.Address `json:"address"`
	Amount  uint64             `json:"amount"`
}

// Initializer fulfils the Initializer interface to load data from
// the genesis file
type Initializer struct{}

var _ chanledger.Initializer = Initializer{}

// FromGenesis will parse initial account info from genesis
// and save it to the database
func (Initializer) FromGenesis(opts chanledger.Options, kv chanledger.KVStore) error {
	accts := []GenesisAccount{}
	err := opts.ReadOptions(optKey, &accts)
	if err != nil {
		return err
	}
	ctrl := NewController(NewBucket())
	for i, acct := range accts {
		if err := acct.Address.Validate(); err != nil {
			return errors.Wrapf(err, "account %d", i)
		}
		if err := ctrl.IssueCoins(kv, acct.Address, acct.Amount); err != nil {
			return errors.Wrapf(err, "account %d", i)
		}
	}
	return nil
}
