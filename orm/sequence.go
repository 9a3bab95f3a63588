package orm

import (
	"encoding/binary"

	"github.com/iov-one/chanledger"
	"github.com/iov-one/chanledger/errors"
)

// Sequence maintains a counter, and generates a series of ids. Each id is
// greater than the last, both as a number as well as bytes.Compare() on its
// encoded form. The first id handed out is zero.
type Sequence struct {
	id []byte
}

// NewSequence returns a sequence counter. Sequence is using following pattern
// to construct a key:
//    _s.<bucket>:<name>
func NewSequence(bucket, name string) Sequence {
	id := "_s." + bucket + ":" + name
	return Sequence{
		id: []byte(id),
	}
}

// Next returns the next free id and advances the sequence.
func (s Sequence) Next(db chanledger.KVStore) (uint64, error) {
	val, err := s.Current(db)
	if err != nil {
		return 0, err
	}
	if val == ^uint64(0) {
		return 0, errors.Wrap(errors.ErrOverflow, "sequence exhausted")
	}
	if err := db.Set(s.id, EncodeSequence(val+1)); err != nil {
		return 0, err
	}
	return val, nil
}

// NextVal returns the next free id encoded as 8 bytes and advances the
// sequence.
func (s Sequence) NextVal(db chanledger.KVStore) ([]byte, error) {
	val, err := s.Next(db)
	if err != nil {
		return nil, err
	}
	return EncodeSequence(val), nil
}

// Current returns the number of ids handed out so far, which is also the next
// id to be returned. This method does not modify the sequence state.
func (s Sequence) Current(db chanledger.ReadOnlyKVStore) (uint64, error) {
	raw, err := db.Get(s.id)
	if err != nil {
		return 0, err
	}
	return DecodeSequence(raw)
}

// DecodeSequence is the inverse of EncodeSequence. An empty value decodes to
// zero.
func DecodeSequence(bz []byte) (uint64, error) {
	if len(bz) == 0 {
		return 0, nil
	}
	if err := ValidateSequence(bz); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(bz), nil
}

// EncodeSequence returns the 8 byte big endian representation of val, so
// that the byte order matches the numeric one.
func EncodeSequence(val uint64) []byte {
	bz := make([]byte, 8)
	binary.BigEndian.PutUint64(bz, val)
	return bz
}

// ValidateSequence returns an error if this is not an 8-byte
// as expected for a sequence value
func ValidateSequence(id []byte) error {
	if len(id) == 0 {
		return errors.Wrap(errors.ErrEmpty, "sequence missing")
	}
	if len(id) != 8 {
		return errors.Wrap(errors.ErrInput, "sequence is invalid length (expect 8 bytes)")
	}
	return nil
}
