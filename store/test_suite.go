package store

import (
	"bytes"
	"crypto/rand"
	"fmt"
	"sort"
	"testing"

	"github.com/iov-one/chanledger/errors"
	"github.com/iov-one/chanledger/ledgertest/assert"
)

// TestSuite runs the same set of checks against any CacheableKVStore
// implementation. Each check gets a fresh store from the constructor.
type TestSuite struct {
	makeBase TestStoreConstructor
}

// TestStoreConstructor returns a fresh store and a function releasing it.
type TestStoreConstructor func() (base CacheableKVStore, cleanup func())

// NewTestSuite returns a suite running all checks against stores returned by
// given constructor.
func NewTestSuite(constructor TestStoreConstructor) *TestSuite {
	return &TestSuite{makeBase: constructor}
}

// CacheLayers ensures that a cache wrap reads through to its parent, keeps
// its writes private until Write and drops them on Discard.
func (s *TestSuite) CacheLayers(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	conf, wallet, channel := []byte("_c:channel"), []byte("cash:alice"), []byte("channel:0")

	s.AssertGetHas(t, base, conf, nil, false)
	assert.Nil(t, base.Set(conf, []byte("v1")))
	s.AssertGetHas(t, base, conf, []byte("v1"), true)

	open := base.CacheWrap()
	s.AssertGetHas(t, open, conf, []byte("v1"), true)
	assert.Nil(t, open.Set(wallet, []byte("100")))
	assert.Nil(t, open.Set(channel, []byte("open")))
	s.AssertGetHas(t, open, channel, []byte("open"), true)
	s.AssertGetHas(t, base, channel, nil, false)
	assert.Nil(t, open.Write())
	s.AssertGetHas(t, base, wallet, []byte("100"), true)
	s.AssertGetHas(t, base, channel, []byte("open"), true)

	rejected := base.CacheWrap()
	assert.Nil(t, rejected.Set(wallet, []byte("0")))
	assert.Nil(t, rejected.Delete(channel))
	rejected.Discard()
	s.AssertGetHas(t, base, wallet, []byte("100"), true)
	s.AssertGetHas(t, base, channel, []byte("open"), true)

	closing := base.CacheWrap()
	assert.Nil(t, closing.Delete(wallet))
	s.AssertGetHas(t, closing, wallet, nil, false)
	s.AssertGetHas(t, base, wallet, []byte("100"), true)
	assert.Nil(t, closing.Write())
	s.AssertGetHas(t, base, wallet, nil, false)
}

// NestedWrites checks that writes travel through many layers of cache wraps
// and that discarding a middle layer drops everything above it.
func (s *TestSuite) NestedWrites(t *testing.T) {
	base, cleanup := s.makeBase()
	defer cleanup()

	k1, k2, k3 := []byte("key-1"), []byte("key-2"), []byte("key-3")
	assert.Nil(t, base.Set(k1, []byte("base")))

	mid := base.CacheWrap()
	assert.Nil(t, mid.Set(k2, []byte("mid")))

	top := mid.CacheWrap()
	assert.Nil(t, top.Set(k3, []byte("top")))
	assert.Nil(t, top.Delete(k1))
	s.AssertGetHas(t, top, k1, nil, false)
	s.AssertGetHas(t, mid, k1, []byte("base"), true)

	assert.Nil(t, top.Write())
	s.AssertGetHas(t, mid, k3, []byte("top"), true)
	s.AssertGetHas(t, base, k3, nil, false)

	mid.Discard()
	s.AssertGetHas(t, base, k1, []byte("base"), true)
	s.AssertGetHas(t, base, k2, nil, false)
	s.AssertGetHas(t, base, k3, nil, false)
}

// Overrides checks reads and iteration when a cache wrap overwrites or
// deletes values of its parent.
func (s *TestSuite) Overrides(t *testing.T) {
	k := func(n int) []byte { return []byte(fmt.Sprintf("commitment:%02d", n)) }
	v := func(s string) []byte { return []byte(s) }

	cases := map[string]struct {
		parent []Op
		child  []Op
		// Expected content of the child, in key order.
		want []Model
	}{
		"child only": {
			child: []Op{SetOp(k(3), v("c")), SetOp(k(1), v("a")), SetOp(k(2), v("b"))},
			want:  []Model{Pair(k(1), v("a")), Pair(k(2), v("b")), Pair(k(3), v("c"))},
		},
		"parent only": {
			parent: []Op{SetOp(k(2), v("b")), SetOp(k(1), v("a"))},
			want:   []Model{Pair(k(1), v("a")), Pair(k(2), v("b"))},
		},
		"child overwrites parent": {
			parent: []Op{SetOp(k(1), v("a")), SetOp(k(2), v("b")), SetOp(k(3), v("c"))},
			child:  []Op{SetOp(k(1), v("A")), SetOp(k(3), v("C")), SetOp(k(4), v("d"))},
			want: []Model{
				Pair(k(1), v("A")), Pair(k(2), v("b")),
				Pair(k(3), v("C")), Pair(k(4), v("d")),
			},
		},
		"child deletes from parent": {
			parent: []Op{SetOp(k(1), v("a")), SetOp(k(3), v("c")), SetOp(k(4), v("d"))},
			child:  []Op{DelOp(k(1)), DelOp(k(2)), DelOp(k(4))},
			want:   []Model{Pair(k(3), v("c"))},
		},
		"child deletes what it wrote": {
			parent: []Op{SetOp(k(2), v("b"))},
			child:  []Op{SetOp(k(1), v("a")), DelOp(k(1)), SetOp(k(2), v("B"))},
			want:   []Model{Pair(k(2), v("B"))},
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			base, cleanup := s.makeBase()
			defer cleanup()

			child := applyLayers(t, base, tc.parent, tc.child)
			assertRange(t, child, nil, nil, false, tc.want)
			assertRange(t, child, nil, nil, true, reverse(tc.want))
			if len(tc.want) > 1 {
				last := tc.want[len(tc.want)-1].Key
				assertRange(t, child, nil, last, false, tc.want[:len(tc.want)-1])
				assertRange(t, child, tc.want[1].Key, nil, true, reverse(tc.want[1:]))
			}

			assert.Nil(t, child.Write())
			for _, m := range tc.want {
				s.AssertGetHas(t, base, m.Key, m.Value, true)
			}
		})
	}
}

// RangeScan fills a parent and a child layer with random data and checks
// bounded iteration in both directions.
func (s *TestSuite) RangeScan(t *testing.T) {
	const size = 40

	childSet := randModels(size)
	parentSet := randModels(size)
	onlyChild := sortModels(childSet)
	both := sortModels(append(childSet, parentSet...))

	// Deleting keys that were never written must not show up.
	var ghosts []Op
	for _, m := range randModels(10) {
		ghosts = append(ghosts, DelOp(m.Key))
	}

	cases := map[string]struct {
		parent []Op
		child  []Op
		all    []Model
	}{
		"empty parent": {
			child: append(setOps(childSet), ghosts...),
			all:   onlyChild,
		},
		"parent and child": {
			parent: append(setOps(parentSet), ghosts...),
			child:  setOps(childSet),
			all:    both,
		},
	}

	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			base, cleanup := s.makeBase()
			defer cleanup()

			child := applyLayers(t, base, tc.parent, tc.child)
			all := tc.all
			n := len(all)

			assertRange(t, child, nil, nil, false, all)
			assertRange(t, child, all[7].Key, nil, false, all[7:])
			assertRange(t, child, nil, all[n-5].Key, false, all[:n-5])
			assertRange(t, child, all[11].Key, all[23].Key, false, all[11:23])

			assertRange(t, child, nil, nil, true, reverse(all))
			assertRange(t, child, all[n-9].Key, nil, true, reverse(all[n-9:]))
			assertRange(t, child, nil, all[13].Key, true, reverse(all[:13]))
			assertRange(t, child, all[3].Key, all[30].Key, true, reverse(all[3:30]))
		})
	}
}

// AssertGetHas ensures that Get returns val and Has returns has for key.
func (s *TestSuite) AssertGetHas(t testing.TB, kv ReadOnlyKVStore, key, val []byte, has bool) {
	t.Helper()
	got, err := kv.Get(key)
	assert.Nil(t, err)
	assert.Equal(t, val, got)
	exists, err := kv.Has(key)
	assert.Nil(t, err)
	assert.Equal(t, has, exists)
}

func applyLayers(t testing.TB, base CacheableKVStore, parent, child []Op) KVCacheWrap {
	t.Helper()
	for _, op := range parent {
		assert.Nil(t, op.Apply(base))
	}
	cache := base.CacheWrap()
	for _, op := range child {
		assert.Nil(t, op.Apply(cache))
	}
	return cache
}

func assertRange(t testing.TB, kv ReadOnlyKVStore, start, end []byte, descending bool, want []Model) {
	t.Helper()

	var (
		it  Iterator
		err error
	)
	if descending {
		it, err = kv.ReverseIterator(start, end)
	} else {
		it, err = kv.Iterator(start, end)
	}
	assert.Nil(t, err)
	defer it.Release()

	for i, w := range want {
		key, value, err := it.Next()
		assert.Nil(t, err)
		if !bytes.Equal(w.Key, key) {
			t.Fatalf("element %d: want key %X, got %X", i, w.Key, key)
		}
		assert.Equal(t, w.Value, value)
	}
	if _, _, err := it.Next(); !errors.ErrIteratorDone.Is(err) {
		t.Fatalf("want iterator to be done, got %+v", err)
	}
}

// randModels returns count models with random 8 byte keys and 32 byte
// values.
func randModels(count int) []Model {
	res := make([]Model, count)
	for i := range res {
		res[i] = Pair(randBytes(8), randBytes(32))
	}
	return res
}

func randBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

func reverse(models []Model) []Model {
	res := make([]Model, len(models))
	for i, m := range models {
		res[len(models)-1-i] = m
	}
	return res
}

func sortModels(models []Model) []Model {
	res := make([]Model, len(models))
	copy(res, models)
	sort.Slice(res, func(i, j int) bool {
		return bytes.Compare(res[i].Key, res[j].Key) < 0
	})
	return res
}

func setOps(models []Model) []Op {
	res := make([]Op, len(models))
	for i, m := range models {
		res[i] = SetOp(m.Key, m.Value)
	}
	return res
}
