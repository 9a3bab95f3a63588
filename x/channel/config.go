package channel

import (
	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/gconf"
)

const packageName = "channel"

// Defaults used for every configuration value that genesis does not set.
const (
	DefaultMinChannelAmount   uint64 = 1000000
	DefaultMaxChannelAmount   uint64 = 1000000000000
	DefaultChannelTimeout     int64  = 144
	DefaultDisputeTimeout     int64  = 144
	DefaultSettlementFee      uint64 = 10000
	DefaultMaxChannelsPerUser uint64 = 100
)

var _ gconf.Configuration = (*Configuration)(nil)

// DefaultConfiguration returns the default configuration with the fee paid
// to given owner.
func DefaultConfiguration(owner chanledger.Address) Configuration {
	return Configuration{
		Owner:              owner,
		MinChannelAmount:   DefaultMinChannelAmount,
		MaxChannelAmount:   DefaultMaxChannelAmount,
		ChannelTimeout:     DefaultChannelTimeout,
		DisputeTimeout:     DefaultDisputeTimeout,
		SettlementFee:      DefaultSettlementFee,
		MaxChannelsPerUser: DefaultMaxChannelsPerUser,
	}
}

// Validate ensures the configuration is usable.
func (c *Configuration) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Owner", c.Owner.Validate())
	if c.MinChannelAmount == 0 {
		errs = errors.AppendField(errs, "MinChannelAmount",
			errors.Wrap(errors.ErrModel, "must be greater than zero"))
	}
	if c.MaxChannelAmount < c.MinChannelAmount {
		errs = errors.AppendField(errs, "MaxChannelAmount",
			errors.Wrap(errors.ErrModel, "must not be less than the minimum"))
	}
	if c.ChannelTimeout <= 0 {
		errs = errors.AppendField(errs, "ChannelTimeout",
			errors.Wrap(errors.ErrModel, "must be greater than zero"))
	}
	if c.DisputeTimeout <= 0 {
		errs = errors.AppendField(errs, "DisputeTimeout",
			errors.Wrap(errors.ErrModel, "must be greater than zero"))
	}
	if c.MaxChannelsPerUser == 0 {
		errs = errors.AppendField(errs, "MaxChannelsPerUser",
			errors.Wrap(errors.ErrModel, "must be greater than zero"))
	}
	return errs
}

// loadConf returns the configuration stored at genesis.
func loadConf(db gconf.ReadStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, packageName, &conf); err != nil {
		return nil, errors.Wrap(err, "load configuration")
	}
	return &conf, nil
}

// Initializer stores the channel configuration found in the genesis file.
// Values missing from genesis fall back to the defaults, the owner is
// required.
type Initializer struct{}

var _ chanledger.Initializer = Initializer{}

// FromGenesis reads conf.channel and saves it.
func (Initializer) FromGenesis(opts chanledger.Options, kv chanledger.KVStore) error {
	conf := DefaultConfiguration(nil)
	return gconf.InitConfig(kv, opts, packageName, &conf)
}
