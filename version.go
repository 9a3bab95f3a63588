package chanledger

import "fmt"

// Release numbers of the ledger. Suffix marks builds that are not tagged.
const (
	Maj    = 0
	Min    = 1
	Fix    = 0
	Suffix = "-dev"
)

// GitCommit is set at build time with -ldflags.
var GitCommit = ""

// Version returns the release name, followed by the commit hash if known.
func Version() string {
	v := fmt.Sprintf("v%d.%d.%d%s", Maj, Min, Fix, Suffix)
	if GitCommit != "" {
		v += " " + GitCommit
	}
	return v
}
