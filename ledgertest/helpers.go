package ledgertest

import (
	"encoding/binary"
	"testing"

	"github.com/iov-one/chanledger"
)

// SequenceID returns an 8 byte big endian representation of given number,
// the same encoding orm.Sequence uses for ids.
func SequenceID(n uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, n)
	return b
}

// ParseAddress takes an address in a human readable format and returns
// its binary representation.
func ParseAddress(t testing.TB, encodedAddress string) chanledger.Address {
	t.Helper()

	addr, err := chanledger.ParseAddress(encodedAddress)
	if err != nil {
		t.Fatalf("cannot parse %q address: %s", encodedAddress, err)
	}
	return addr
}
