package ledgertest

import (
	"crypto/rand"

	"github.com/iov-one/chanledger"
	"golang.org/x/crypto/ed25519"
)

// NewKey returns a fresh ed25519 private key. Test only, panics if the
// system random source fails.
func NewKey() ed25519.PrivateKey {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		panic(err)
	}
	return priv
}

// NewCondition returns a signature condition for a fresh public key.
func NewCondition() chanledger.Condition {
	pub := NewKey().Public().(ed25519.PublicKey)
	return chanledger.NewCondition("sigs", "ed25519", pub)
}

// NewAddress returns a fresh, valid participant address.
func NewAddress() chanledger.Address {
	return NewCondition().Address()
}
