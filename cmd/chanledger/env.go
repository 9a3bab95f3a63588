package main

import (
	"os"
	"path/filepath"
)

// env returns the value of an environment variable if provided (even if empty)
// or a fallback value.
func env(name, fallback string) string {
	if v, ok := os.LookupEnv(name); ok {
		return v
	}
	return fallback
}

// defaultHome returns the directory the ledger state is kept in, unless
// overwritten with the -home flag.
func defaultHome() string {
	if h := env("CHANLEDGER_HOME", ""); h != "" {
		return h
	}
	return filepath.Join(os.Getenv("HOME"), ".chanledger")
}
