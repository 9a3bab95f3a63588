/*
Package cash defines a simple implementation of moving value between
wallets.

There is no logic in the tokens, except that the balance of any wallet may
not go below zero nor overflow. Thus, this implementation is referred to as
cash. Simple and safe.

The payment channel ledger uses the Controller to move value into and out of
its custodial pool. No other package should write to the wallet bucket
directly.
*/
package cash
