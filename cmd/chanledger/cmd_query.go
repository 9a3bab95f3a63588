package main

import (
	"encoding/hex"
	"flag"
	"fmt"
	"io"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/app"
	"github.com/iov-one/chanledger/orm"
	"github.com/iov-one/chanledger/x/channel"
)

// channelQuery builds a command printing the result of a query that takes a
// channel ID.
func channelQuery(path, description string) func(io.Reader, io.Writer, []string) error {
	return func(input io.Reader, output io.Writer, args []string) error {
		fl := flag.NewFlagSet("", flag.ExitOnError)
		fl.Usage = func() {
			fmt.Fprintln(flag.CommandLine.Output(), description)
			fl.PrintDefaults()
		}
		var (
			sf        = addStateFlags(fl)
			channelFl = fl.Uint64("channel", 0, "Channel ID.")
		)
		fl.Parse(args)
		return query(output, sf, path, orm.EncodeSequence(*channelFl))
	}
}

var (
	cmdChannel = channelQuery(channel.QueryChannels, `
Print the state of a channel.
`)
	cmdDisputeInfo = channelQuery(channel.QueryDisputes, `
Print the dispute recorded for a channel.
`)
	cmdCommitments = channelQuery(channel.QueryCommitments, `
Print all payment commitments of a channel in nonce order.
`)
	cmdActive = channelQuery(channel.QueryActive, `
Print true if the channel exists and is open.
`)
)

func cmdCommitment(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the payment commitment posted to a channel with given nonce.
		`)
		fl.PrintDefaults()
	}
	var (
		sf        = addStateFlags(fl)
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
		nonceFl   = fl.Uint64("nonce", 0, "Nonce of the commitment.")
	)
	fl.Parse(args)

	key := append(orm.EncodeSequence(*channelFl), orm.EncodeSequence(*nonceFl)...)
	return query(output, sf, channel.QueryCommitments, key)
}

func cmdCount(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the number of channels an account ever participated in, together with
their IDs.
		`)
		fl.PrintDefaults()
	}
	var (
		sf        = addStateFlags(fl)
		addressFl = flAddress(fl, "address", "", "Account address.")
	)
	fl.Parse(args)
	requireAddress("address", *addressFl)

	return withApp(sf, nil, func(s *app.StoreApp) error {
		count, err := s.Query(channel.QueryCounts, *addressFl)
		if err != nil {
			return err
		}
		ids, err := s.Query(channel.QueryParticipants, *addressFl)
		if err != nil {
			return err
		}
		return writeJSON(output, struct {
			Count    interface{} `json:"count"`
			Channels interface{} `json:"channels"`
		}{count, ids})
	})
}

func cmdStats(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the number of channels, the total locked value and the configuration.
		`)
		fl.PrintDefaults()
	}
	sf := addStateFlags(fl)
	fl.Parse(args)
	return query(output, sf, channel.QueryStats, nil)
}

func cmdBalance(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the value held by the channel pool. When -check is set, fail unless it
equals the total locked value.
		`)
		fl.PrintDefaults()
	}
	var (
		sf      = addStateFlags(fl)
		checkFl = fl.Bool("check", false, "Verify that the pool holds exactly the locked value.")
	)
	fl.Parse(args)

	return withApp(sf, nil, func(s *app.StoreApp) error {
		var held uint64
		err := s.View(func(db chanledger.ReadOnlyKVStore) error {
			if *checkFl {
				if err := s.Ledger().CheckBalance(db); err != nil {
					return err
				}
			}
			var err error
			held, err = s.Ledger().ContractBalance(db)
			return err
		})
		if err != nil {
			return err
		}
		return writeJSON(output, struct {
			Pool    chanledger.Address `json:"pool"`
			Balance uint64             `json:"balance"`
		}{channel.PoolAddress, held})
	})
}

func cmdWallet(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the balance of an account.
		`)
		fl.PrintDefaults()
	}
	var (
		sf        = addStateFlags(fl)
		addressFl = flAddress(fl, "address", "", "Account address.")
	)
	fl.Parse(args)
	requireAddress("address", *addressFl)

	return withApp(sf, nil, func(s *app.StoreApp) error {
		var amount uint64
		err := s.View(func(db chanledger.ReadOnlyKVStore) error {
			var err error
			amount, err = s.Cash().Balance(db, *addressFl)
			return err
		})
		if err != nil {
			return err
		}
		return writeJSON(output, struct {
			Address chanledger.Address `json:"address"`
			Balance uint64             `json:"balance"`
		}{*addressFl, amount})
	})
}

func cmdDigest(input io.Reader, output io.Writer, args []string) error {
	fl := flag.NewFlagSet("", flag.ExitOnError)
	fl.Usage = func() {
		fmt.Fprintln(flag.CommandLine.Output(), `
Print the hex encoded payment digest binding a balance split to a channel and
a nonce. The digest can be used as the commitment hash of an update.
		`)
		fl.PrintDefaults()
	}
	var (
		channelFl = fl.Uint64("channel", 0, "Channel ID.")
		nonceFl   = fl.Uint64("nonce", 0, "Nonce of the update.")
		balanceA  = fl.Uint64("balance-a", 0, "Balance of the first participant.")
		balanceB  = fl.Uint64("balance-b", 0, "Balance of the second participant.")
	)
	fl.Parse(args)

	digest := channel.PaymentDigest(*channelFl, *nonceFl, *balanceA, *balanceB)
	_, err := fmt.Fprintln(output, hex.EncodeToString(digest))
	return err
}
