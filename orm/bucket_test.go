package orm

import (
	"testing"

	"github.com/gogo/protobuf/proto"
	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/ledgertest/assert"
	"github.com/iov-one/chanledger/store"
)

// thing is a minimal protobuf model used to exercise buckets.
type thing struct {
	Name  string `protobuf:"bytes,1,opt,name=name,proto3" json:"name,omitempty"`
	Owner []byte `protobuf:"bytes,2,opt,name=owner,proto3" json:"owner,omitempty"`
	Count int64  `protobuf:"varint,3,opt,name=count,proto3" json:"count,omitempty"`
}

func (m *thing) Reset()         { *m = thing{} }
func (m *thing) String() string { return proto.CompactTextString(m) }
func (*thing) ProtoMessage()    {}

func (m *thing) Validate() error {
	if m.Name == "" {
		return errors.Field("Name", errors.ErrEmpty, "required")
	}
	return nil
}

func TestBucketPutOneDelete(t *testing.T) {
	db := store.MemStore()
	b := NewBucket("things", &thing{})

	var got thing
	err := b.One(db, []byte("a"), &got)
	assert.IsErr(t, errors.ErrNotFound, err)

	want := thing{Name: "first", Owner: []byte("alice"), Count: 7}
	assert.Nil(t, b.Put(db, []byte("a"), &want))

	assert.Nil(t, b.One(db, []byte("a"), &got))
	assert.Equal(t, want, got)

	has, err := b.Has(db, []byte("a"))
	assert.Nil(t, err)
	assert.Equal(t, true, has)

	// stored under the bucket prefix
	raw, err := db.Get([]byte("things:a"))
	assert.Nil(t, err)
	if len(raw) == 0 {
		t.Fatal("model not stored under the bucket prefix")
	}

	assert.Nil(t, b.Delete(db, []byte("a")))
	assert.IsErr(t, errors.ErrNotFound, b.One(db, []byte("a"), &got))
	assert.IsErr(t, errors.ErrNotFound, b.Delete(db, []byte("a")))
}

func TestBucketPutValidates(t *testing.T) {
	db := store.MemStore()
	b := NewBucket("things", &thing{})

	err := b.Put(db, []byte("a"), &thing{Count: 1})
	assert.FieldError(t, err, "Name", errors.ErrEmpty)
	assert.IsErr(t, errors.ErrEmpty, b.Put(db, nil, &thing{Name: "x"}))

	has, err := b.Has(db, []byte("a"))
	assert.Nil(t, err)
	assert.Equal(t, false, has)
}

func TestBucketOneOverwritesDestination(t *testing.T) {
	db := store.MemStore()
	b := NewBucket("things", &thing{})
	assert.Nil(t, b.Put(db, []byte("a"), &thing{Name: "only name"}))

	got := thing{Name: "stale", Count: 99}
	assert.Nil(t, b.One(db, []byte("a"), &got))
	assert.Equal(t, thing{Name: "only name"}, got)
}

func TestIllegalBucketName(t *testing.T) {
	assert.Panics(t, func() { NewBucket("no", &thing{}) })
	assert.Panics(t, func() { NewBucket("Upper", &thing{}) })
	assert.Panics(t, func() { NewBucket("way_too_long_name", &thing{}) })
}

func TestPrefixScan(t *testing.T) {
	db := store.MemStore()
	b := NewBucket("things", &thing{})
	other := NewBucket("thingsx", &thing{})

	for _, k := range []string{"b2", "a1", "b1", "c1"} {
		assert.Nil(t, b.Put(db, []byte(k), &thing{Name: k}))
	}
	// must not leak into the scan of the first bucket
	assert.Nil(t, other.Put(db, []byte("a0"), &thing{Name: "other"}))

	cases := map[string]struct {
		prefix  []byte
		reverse bool
		want    []string
	}{
		"whole bucket":       {nil, false, []string{"a1", "b1", "b2", "c1"}},
		"whole bucket desc":  {nil, true, []string{"c1", "b2", "b1", "a1"}},
		"with prefix":        {[]byte("b"), false, []string{"b1", "b2"}},
		"with prefix desc":   {[]byte("b"), true, []string{"b2", "b1"}},
		"no matching prefix": {[]byte("z"), false, nil},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			it, err := b.PrefixScan(db, tc.prefix, tc.reverse)
			assert.Nil(t, err)
			defer it.Release()

			var keys []string
			for {
				var m thing
				key, err := it.LoadNext(&m)
				if errors.ErrIteratorDone.Is(err) {
					break
				}
				assert.Nil(t, err)
				assert.Equal(t, string(key), m.Name)
				keys = append(keys, string(key))
			}
			assert.Equal(t, tc.want, keys)
		})
	}
}

func TestPrefixEnd(t *testing.T) {
	assert.Equal(t, []byte("abd"), prefixEnd([]byte("abc")))
	assert.Equal(t, []byte{0x01}, prefixEnd([]byte{0x00, 0xff}))
	assert.Equal(t, []byte(nil), prefixEnd([]byte{0xff, 0xff}))
}
