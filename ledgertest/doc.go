// Package ledgertest provides helpers for testing ledger extensions.
package ledgertest
