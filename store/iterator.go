package store

import (
	"bytes"

	"github.com/google/btree"
	"github.com/iov-one/chanledger/errors"
)

// ascendBtree returns all cached items in [start, end) in ascending order.
// A nil boundary is unbounded.
func ascendBtree(bt *btree.BTree, start, end []byte) []*entry {
	var res []*entry
	collect := func(item btree.Item) bool {
		res = append(res, item.(*entry))
		return true
	}
	switch {
	case start == nil && end == nil:
		bt.Ascend(collect)
	case start == nil:
		bt.AscendLessThan(&entry{key: end}, collect)
	case end == nil:
		bt.AscendGreaterOrEqual(&entry{key: start}, collect)
	default:
		bt.AscendRange(&entry{key: start}, &entry{key: end}, collect)
	}
	return res
}

// descendBtree returns all cached items in [start, end) in descending order.
func descendBtree(bt *btree.BTree, start, end []byte) []*entry {
	res := ascendBtree(bt, start, end)
	for i, j := 0, len(res)-1; i < j; i, j = i+1, j-1 {
		res[i], res[j] = res[j], res[i]
	}
	return res
}

// mergeIterator combines the cached items with the iterator of the parent
// store. Cached items take precedence over parent values with the same key
// and deleted items hide them.
type mergeIterator struct {
	parent    Iterator
	items     []*entry
	idx       int
	ascending bool

	// next parent entry, read ahead
	pKey   []byte
	pValue []byte
	pValid bool
}

var _ Iterator = (*mergeIterator)(nil)

func newMergeIterator(parent Iterator, items []*entry, ascending bool) (*mergeIterator, error) {
	it := &mergeIterator{
		parent:    parent,
		items:     items,
		ascending: ascending,
	}
	if err := it.advanceParent(); err != nil {
		parent.Release()
		return nil, err
	}
	return it, nil
}

func (it *mergeIterator) advanceParent() error {
	key, value, err := it.parent.Next()
	switch {
	case err == nil:
		it.pKey, it.pValue, it.pValid = key, value, true
		return nil
	case errors.ErrIteratorDone.Is(err):
		it.pKey, it.pValue, it.pValid = nil, nil, false
		return nil
	default:
		return err
	}
}

// Next implements Iterator.
func (it *mergeIterator) Next() (key, value []byte, err error) {
	for {
		hasCached := it.idx < len(it.items)
		if !hasCached && !it.pValid {
			return nil, nil, errors.Wrap(errors.ErrIteratorDone, "merge iterator")
		}

		if !hasCached {
			key, value = it.pKey, it.pValue
			if err := it.advanceParent(); err != nil {
				return nil, nil, err
			}
			return key, value, nil
		}

		item := it.items[it.idx]
		if it.pValid {
			cmp := bytes.Compare(item.key, it.pKey)
			if !it.ascending {
				cmp = -cmp
			}
			if cmp > 0 {
				// parent entry comes first
				key, value = it.pKey, it.pValue
				if err := it.advanceParent(); err != nil {
					return nil, nil, err
				}
				return key, value, nil
			}
			if cmp == 0 {
				// cached item overrides the parent entry
				if err := it.advanceParent(); err != nil {
					return nil, nil, err
				}
			}
		}

		it.idx++
		if !item.deleted {
			return item.key, item.value, nil
		}
	}
}

// Release implements Iterator.
func (it *mergeIterator) Release() {
	it.parent.Release()
	it.items = nil
}
