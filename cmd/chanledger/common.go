package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/app"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/store/iavl"
	"github.com/tendermint/tendermint/libs/log"
)

// storeName is the name of the database created in the home directory.
const storeName = "chanledger"

// stateFlags are shared by all commands that access the ledger state.
type stateFlags struct {
	home     *string
	logLevel *string
}

func addStateFlags(fl *flag.FlagSet) stateFlags {
	return stateFlags{
		home:     fl.String("home", defaultHome(), "Directory the ledger state is stored in."),
		logLevel: fl.String("log", env("CHANLEDGER_LOG", "error"), "Log level: debug, info, error or none."),
	}
}

func (sf stateFlags) logger() (log.Logger, error) {
	opt, err := log.AllowLevel(*sf.logLevel)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInput, err.Error())
	}
	logger := log.NewTMLogger(log.NewSyncWriter(os.Stderr)).
		With("module", "chanledger")
	return log.NewFilter(logger, opt), nil
}

// withApp opens the ledger state, calls fn and releases the database. Events
// emitted by the ledger are passed to given emitter.
func withApp(sf stateFlags, emitter chanledger.EventEmitter, fn func(*app.StoreApp) error) error {
	logger, err := sf.logger()
	if err != nil {
		return err
	}
	kv, err := iavl.NewCommitStore(*sf.home, storeName)
	if err != nil {
		return errors.Wrap(err, "open store")
	}
	defer kv.Close()

	s, err := app.NewStoreApp(kv, emitter)
	if err != nil {
		return err
	}
	return fn(s.WithLogger(logger))
}

// deliverResult is printed by every command that changes the ledger state.
type deliverResult struct {
	Height    int64       `json:"height"`
	Version   int64       `json:"version"`
	ChannelID *uint64     `json:"channel_id,omitempty"`
	Events    []jsonEvent `json:"events"`
}

type jsonEvent struct {
	Type       string            `json:"type"`
	ChannelID  uint64            `json:"channel_id"`
	Height     int64             `json:"height"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

func toJSONEvents(events []chanledger.Event) []jsonEvent {
	res := make([]jsonEvent, 0, len(events))
	for _, e := range events {
		je := jsonEvent{
			Type:       e.Type,
			ChannelID:  e.ChannelID,
			Height:     e.Height,
			Attributes: make(map[string]string, len(e.Attributes)),
		}
		for _, kv := range e.Attributes {
			je.Attributes[string(kv.Key)] = string(kv.Value)
		}
		res = append(res, je)
	}
	return res
}

// deliver applies fn at given height and commits the result. Height zero
// means the height of the last applied operation.
func deliver(out io.Writer, sf stateFlags, height int64, fn func(*app.StoreApp) app.DeliverFunc) error {
	events := chanledger.NewEventLog()
	return withApp(sf, events, func(s *app.StoreApp) error {
		if height == 0 {
			height = s.Height()
		}
		if err := s.Deliver(height, fn(s)); err != nil {
			return err
		}
		cid, err := s.Commit()
		if err != nil {
			return err
		}
		res := deliverResult{
			Height:  height,
			Version: cid.Version,
			Events:  toJSONEvents(events.Events()),
		}
		for _, e := range events.OfType(chanledger.EventChannelOpened) {
			id := e.ChannelID
			res.ChannelID = &id
		}
		return writeJSON(out, res)
	})
}

// query runs a ledger query and prints its result.
func query(out io.Writer, sf stateFlags, path string, data []byte) error {
	return withApp(sf, nil, func(s *app.StoreApp) error {
		res, err := s.Query(path, data)
		if err != nil {
			return err
		}
		return writeJSON(out, res)
	})
}

func writeJSON(out io.Writer, obj interface{}) error {
	raw, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return fmt.Errorf("cannot serialize: %s", err)
	}
	_, err = fmt.Fprintln(out, string(raw))
	return err
}
