package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// commands is a register of all available commands that can be executed by
// this program. The name is used to match with the first argument given.
//
// A command function is given stdin, stdout and command line arguments except
// the program name and the command name. It is the responsibility of the
// command function to parse the arguments. Every command that touches the
// ledger state opens the store found in the -home directory, applies a single
// operation and commits the result before returning.
var commands = map[string]func(input io.Reader, output io.Writer, args []string) error{
	"active":          cmdActive,
	"balance":         cmdBalance,
	"channel":         cmdChannel,
	"close":           cmdClose,
	"commitment":      cmdCommitment,
	"commitments":     cmdCommitments,
	"count":           cmdCount,
	"digest":          cmdDigest,
	"dispute":         cmdDispute,
	"dispute-info":    cmdDisputeInfo,
	"emergency-close": cmdEmergencyClose,
	"fund":            cmdFund,
	"init":            cmdInit,
	"open":            cmdOpen,
	"resolve":         cmdResolve,
	"stats":           cmdStats,
	"update":          cmdUpdate,
	"version":         cmdVersion,
	"wallet":          cmdWallet,
}

func main() {
	if len(os.Args) == 1 {
		fmt.Fprintf(os.Stderr, "%s is a command line tool for a payment channel ledger.\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Usage: %s <command> [<flags>]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		fmt.Fprintf(os.Stderr, "Run '%s <command> -help' to learn more about each command.\n", os.Args[0])
		os.Exit(2)
	}
	run, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q\n", os.Args[1])
		fmt.Fprintf(os.Stderr, "\nAvailable commands are:\n\t%s\n", strings.Join(availableCmds(), "\n\t"))
		os.Exit(2)
	}

	// Skip two first arguments. Second argument is the command name that
	// we just consumed.
	if err := run(os.Stdin, os.Stdout, os.Args[2:]); err != nil {
		debug, _ := strconv.ParseBool(env("CHANLEDGER_DEBUG", "false"))
		printErr(os.Stderr, err, debug)
		os.Exit(1)
	}
}

// printErr writes the code and message of err. Unless debug is set, errors
// without a registered code are reported as internal without details.
func printErr(w io.Writer, err error, debug bool) {
	code, msg := errors.Info(err, debug)
	fmt.Fprintf(w, "error %d: %s\n", code, msg)
}

func availableCmds() []string {
	available := make([]string, 0, len(commands))
	for name := range commands {
		available = append(available, name)
	}
	sort.Strings(available)
	return available
}

func cmdVersion(in io.Reader, out io.Writer, args []string) error {
	fmt.Fprintln(out, chanledger.Version())
	return nil
}
