package channel

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// digestPrefix separates payment digests from any other blake2b digest.
const digestPrefix = "chanledger/payment"

// PaymentDigest returns a 32 byte digest binding a channel state. Off chain
// participants may sign it and post it as the commitment hash of an update.
// The ledger itself never verifies the commitment hash.
func PaymentDigest(channelID, nonce, balanceA, balanceB uint64) []byte {
	msg := make([]byte, len(digestPrefix)+32)
	n := copy(msg, digestPrefix)
	binary.BigEndian.PutUint64(msg[n:], channelID)
	binary.BigEndian.PutUint64(msg[n+8:], nonce)
	binary.BigEndian.PutUint64(msg[n+16:], balanceA)
	binary.BigEndian.PutUint64(msg[n+24:], balanceB)
	sum := blake2b.Sum256(msg)
	return sum[:]
}
