package bptree

import (
	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

// Iterator walks the leaf chain left to right. It holds only a basic
// (pin-only) guard on the current leaf, so iteration concurrent with
// mutation is not strictly serialisable; callers needing that must fence
// with transactional locks.
type Iterator struct {
	tree  *BPlusTree
	guard buffer.BasicPageGuard
	leaf  page.PageID
	slot  int
}

// Iterator returns an iterator positioned at the tree's smallest key.
func (t *BPlusTree) Iterator() (*Iterator, error) {
	return t.iteratorAt(nil)
}

// IteratorFrom returns an iterator positioned at the first key >= key.
func (t *BPlusTree) IteratorFrom(key []byte) (*Iterator, error) {
	return t.iteratorAt(key)
}

// iteratorAt descends to the target leaf with read latches, then hands
// the position to a pin-only iterator. A nil key targets the leftmost
// entry.
func (t *BPlusTree) iteratorAt(key []byte) (*Iterator, error) {
	end := &Iterator{tree: t, leaf: page.InvalidPageID}

	header, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return nil, err
	}
	rootID := headerRoot(header.GetData())
	if rootID == page.InvalidPageID {
		header.Drop()
		return end, nil
	}
	cur, err := t.bpm.FetchPageRead(rootID)
	if err != nil {
		header.Drop()
		return nil, err
	}
	header.Drop()

	for {
		n := nodeView(cur.GetData(), t.keySize)
		if n.isLeaf() {
			slot := 0
			if key != nil {
				slot = t.leafLowerBound(n, key)
			}
			leafID := cur.PageID()
			cur.Drop()
			it := &Iterator{tree: t, leaf: leafID, slot: slot}
			guard, err := t.bpm.FetchPageBasic(leafID)
			if err != nil {
				return nil, err
			}
			it.guard = guard
			it.skipExhausted()
			return it, nil
		}
		idx := 0
		if key != nil {
			idx = t.childIndex(n, key)
		}
		child, err := t.bpm.FetchPageRead(n.childAt(idx))
		if err != nil {
			cur.Drop()
			return nil, err
		}
		cur.Drop()
		cur.MoveFrom(&child)
	}
}

// skipExhausted follows next pointers while positioned past the end of
// the current leaf; leaves on the chain are never empty except a lone
// root drained concurrently.
func (it *Iterator) skipExhausted() {
	for it.leaf != page.InvalidPageID {
		n := nodeView(it.guard.GetData(), it.tree.keySize)
		if it.slot < n.size() {
			return
		}
		next := n.next()
		it.guard.Drop()
		it.leaf = next
		it.slot = 0
		if next == page.InvalidPageID {
			return
		}
		guard, err := it.tree.bpm.FetchPageBasic(next)
		if err != nil {
			it.leaf = page.InvalidPageID
			return
		}
		it.guard = guard
	}
}

// IsEnd reports whether the iterator is past the last entry.
func (it *Iterator) IsEnd() bool { return it.leaf == page.InvalidPageID }

// Key returns the current entry's key bytes. Valid only before IsEnd.
func (it *Iterator) Key() []byte {
	n := nodeView(it.guard.GetData(), it.tree.keySize)
	key := make([]byte, it.tree.keySize)
	copy(key, n.keyAt(it.slot))
	return key
}

// RID returns the current entry's record id. Valid only before IsEnd.
func (it *Iterator) RID() page.RID {
	n := nodeView(it.guard.GetData(), it.tree.keySize)
	return n.ridAt(it.slot)
}

// Next advances to the following entry, crossing to the next leaf when
// the current one is exhausted.
func (it *Iterator) Next() {
	if it.IsEnd() {
		return
	}
	it.slot++
	it.skipExhausted()
}

// Close releases the iterator's pin. Safe to call at any point.
func (it *Iterator) Close() {
	it.guard.Drop()
	it.leaf = page.InvalidPageID
}
