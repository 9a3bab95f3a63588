/*

Package chanledger defines interfaces used throughout the channel ledger, such
as: storage, identities, events and genesis options. It also contains helpers
to work with the execution context (block height, logger).

The channel state machine itself lives in x/channel and moves value using the
x/cash extension. Look into this package to get a brief overview of the
building blocks shared by all extensions.

*/

package chanledger
