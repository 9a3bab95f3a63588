/*
Package channel implements bilateral payment channels.

Two participants lock value in a channel and exchange balance updates off the
chain. The ledger is touched only to open and fund a channel, to post the
latest agreed balances, and to settle it, either cooperatively or through a
dispute that becomes final once its timeout has passed.

Every channel moves forward through the states

    Open -> Disputed -> Closed
    Open -> Closed

and the sum of both balances always equals the total amount the channel was
opened with. Funds are held by a custodial pool account that only the ledger
operations move value into or out of, so the pool balance always equals the
total value locked by the ledger.

Block height is the only clock. The channel timeout is refreshed by every
funding and update, the dispute timeout is counted from the block the dispute
was raised at.
*/
package channel
