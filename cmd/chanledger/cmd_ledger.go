package main

import (
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/app"
	"github.com/iov-one/chanledger/x/channel"
)

func cmdInit(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Initialize the ledger state from a genesis file. The genesis file provides the
chain ID, the channel configuration and the initial wallet balances. A ledger
can be initialized only once.
		`)
		fl.PrintDefaults()
	}
	var (
		sf        = addStateFlags(fl)
		genesisFl = fl.String("genesis", "genesis.json", "Path to the genesis file.")
	)
	fl.Parse(args)

	gen, err := app.LoadGenesis(*genesisFl)
	if err != nil {
		return err
	}
	return withApp(sf, nil, func(s *app.StoreApp) error {
		if err := s.InitChain(gen); err != nil {
			return err
		}
		cid, err := s.Commit()
		if err != nil {
			return err
		}
		return writeJSON(output, deliverResult{Version: cid.Version, Events: []jsonEvent{}})
	})
}

// transitionFlags are shared by all commands that apply a state transition.
type transitionFlags struct {
	stateFlags
	height *int64
	caller *chanledger.Address
}

func addTransitionFlags(fl *flag.FlagSet) transitionFlags {
	return transitionFlags{
		stateFlags: addStateFlags(fl),
		height:     fl.Int64("height", 0, "Block height the operation is executed at. Zero means the last used height."),
		caller:     flAddress(fl, "caller", "", "Address of the account executing the operation."),
	}
}

func (tf transitionFlags) validate() {
	if *tf.height < 0 {
		flagDie("-height must not be negative")
	}
	requireAddress("caller", *tf.caller)
}

func cmdOpen(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Open a new channel between the caller and the counterparty. The caller deposits
its share together with the settlement fee. The counterparty is expected to
deposit its share using the fund command.
		`)
		fl.PrintDefaults()
	}
	var (
		tf             = addTransitionFlags(fl)
		counterpartyFl = flAddress(fl, "counterparty", "", "Address of the second channel participant.")
		amountAFl      = fl.Uint64("amount-a", 0, "Amount deposited by the caller.")
		amountBFl      = fl.Uint64("amount-b", 0, "Amount the counterparty is expected to deposit.")
	)
	fl.Parse(args)
	tf.validate()
	requireAddress("counterparty", *counterpartyFl)

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			_, err := s.Ledger().OpenChannel(ctx, db, *tf.caller, *counterpartyFl, *amountAFl, *amountBFl)
			return err
		}
	})
}

func cmdFund(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Deposit the counterparty share of a channel. Only the second participant can
fund a channel and the amount must match what was declared on open.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
		amountFl  = fl.Uint64("amount", 0, "Amount deposited.")
	)
	fl.Parse(args)
	tf.validate()

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().FundChannel(ctx, db, *tf.caller, *channelFl, *amountFl)
		}
	})
}

func cmdUpdate(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Post a new balance split of a channel. The nonce must be greater than the
current one. When no commitment hash is given, the payment digest of the
update is used.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
		balanceA  = fl.Uint64("balance-a", 0, "New balance of the first participant.")
		balanceB  = fl.Uint64("balance-b", 0, "New balance of the second participant.")
		nonceFl   = fl.Uint64("nonce", 0, "Nonce of the update.")
		hashFl    = flHex(fl, "hash", "", "Hex encoded commitment hash.")
	)
	fl.Parse(args)
	tf.validate()

	hash := *hashFl
	if len(hash) == 0 {
		hash = channel.PaymentDigest(*channelFl, *nonceFl, *balanceA, *balanceB)
	}

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().UpdateChannel(ctx, db, *tf.caller, *channelFl, *balanceA, *balanceB, *nonceFl, hash)
		}
	})
}

func cmdDispute(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Start a dispute over a channel, proposing the final balance split. The channel
can be resolved once the dispute timeout has passed.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
		balanceA  = fl.Uint64("balance-a", 0, "Proposed balance of the first participant.")
		balanceB  = fl.Uint64("balance-b", 0, "Proposed balance of the second participant.")
		nonceFl   = fl.Uint64("nonce", 0, "Nonce of the proposed state.")
	)
	fl.Parse(args)
	tf.validate()

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().InitiateDispute(ctx, db, *tf.caller, *channelFl, *balanceA, *balanceB, *nonceFl)
		}
	})
}

func cmdResolve(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Resolve a disputed channel, paying out the proposed balances. Anyone can
resolve a dispute once the dispute timeout has passed.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
	)
	fl.Parse(args)
	tf.validate()

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().ResolveDispute(ctx, db, *tf.caller, *channelFl)
		}
	})
}

func cmdClose(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Cooperatively close an open channel, paying out the current balances.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
	)
	fl.Parse(args)
	tf.validate()

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().CloseChannel(ctx, db, *tf.caller, *channelFl)
		}
	})
}

func cmdEmergencyClose(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Close an open or disputed channel after its timeout, paying out the last
posted balances.
		`)
		fl.PrintDefaults()
	}
	var (
		tf        = addTransitionFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
	)
	fl.Parse(args)
	tf.validate()

	return deliver(output, tf.stateFlags, *tf.height, func(s *app.StoreApp) app.DeliverFunc {
		return func(ctx context.Context, db chanledger.KVStore) error {
			return s.Ledger().EmergencyClose(ctx, db, *tf.caller, *channelFl)
		}
	})
}
