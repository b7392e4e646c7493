package bptree

import (
	"bytes"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/sushant-115/sukunadb/core/buffer"
	"github.com/sushant-115/sukunadb/core/storage/page"
)

var (
	ErrDuplicateKey = errors.New("key already exists")
	ErrKeyTooLarge  = errors.New("key size does not fit the tree's key layout")
	ErrNodeTooWide  = errors.New("node max size does not fit in one page")
)

// KeyComparator orders two keys, returning <0, 0 or >0.
type KeyComparator func(a, b []byte) int

// BytesComparator orders keys lexicographically. Suitable for
// order-preserving encodings such as big-endian integers.
func BytesComparator(a, b []byte) int { return bytes.Compare(a, b) }

// BPlusTree is an order-parameterised B+ tree whose nodes live on buffer
// pool pages. The header page holds the root page id; leaves are linked
// left to right. Leaf and internal fan-outs are independent parameters.
//
// Mutating operations descend with exclusive latches and release all
// ancestor latches as soon as the current node is proven safe; lookups
// crab with shared latches.
type BPlusTree struct {
	bpm             *buffer.BufferPoolManager
	headerPageID    page.PageID
	cmp             KeyComparator
	keySize         int
	leafMaxSize     int
	internalMaxSize int
	logger          *zap.Logger
}

// New creates a B+ tree, allocating its header page. keySize fixes the
// serialized key width; leafMaxSize and internalMaxSize bound node
// occupancy (a node is split when its size exceeds the bound).
func New(bpm *buffer.BufferPoolManager, cmp KeyComparator, keySize, leafMaxSize, internalMaxSize int, logger *zap.Logger) (*BPlusTree, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	t := &BPlusTree{
		bpm:             bpm,
		cmp:             cmp,
		keySize:         keySize,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		logger:          logger,
	}
	// One slack slot per node: entries are placed first and split after.
	leafBytes := nodeHeaderSize + (leafMaxSize+1)*(keySize+ridSize)
	internalBytes := nodeHeaderSize + (internalMaxSize+1)*(keySize+childIDSize)
	if leafBytes > page.DefaultPageSize || internalBytes > page.DefaultPageSize {
		return nil, ErrNodeTooWide
	}

	header, err := bpm.NewPageGuarded()
	if err != nil {
		return nil, fmt.Errorf("failed to allocate tree header page: %w", err)
	}
	defer header.Drop()
	t.headerPageID = header.PageID()
	setHeaderRoot(header.GetDataMut(), page.InvalidPageID)
	return t, nil
}

// Open attaches to an existing tree by its header page id.
func Open(bpm *buffer.BufferPoolManager, headerPageID page.PageID, cmp KeyComparator, keySize, leafMaxSize, internalMaxSize int, logger *zap.Logger) *BPlusTree {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BPlusTree{
		bpm:             bpm,
		headerPageID:    headerPageID,
		cmp:             cmp,
		keySize:         keySize,
		leafMaxSize:     leafMaxSize,
		internalMaxSize: internalMaxSize,
		logger:          logger,
	}
}

// HeaderPageID returns the id of the tree's header page.
func (t *BPlusTree) HeaderPageID() page.PageID { return t.headerPageID }

// IsEmpty reports whether the tree has a root, by checking the header
// page's root id against the sentinel.
func (t *BPlusTree) IsEmpty() (bool, error) {
	header, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return false, err
	}
	defer header.Drop()
	return headerRoot(header.GetData()) == page.InvalidPageID, nil
}

// leafLowerBound returns the first entry index whose key is >= key.
func (t *BPlusTree) leafLowerBound(n node, key []byte) int {
	lo, hi := 0, n.size()
	for lo < hi {
		mid := (lo + hi) / 2
		if t.cmp(n.keyAt(mid), key) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

// childIndex returns the index of the child to descend into: the largest
// i in [1, size) whose separator is <= key, or 0 when none is.
func (t *BPlusTree) childIndex(n node, key []byte) int {
	lo, hi := 1, n.size()
	for lo < hi {
		mid := (lo + hi) / 2
		if t.cmp(n.keyAt(mid), key) <= 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo - 1
}

// GetValue performs a point lookup, crabbing down with shared latches.
func (t *BPlusTree) GetValue(key []byte) (page.RID, bool, error) {
	header, err := t.bpm.FetchPageRead(t.headerPageID)
	if err != nil {
		return page.RID{}, false, err
	}
	rootID := headerRoot(header.GetData())
	if rootID == page.InvalidPageID {
		header.Drop()
		return page.RID{}, false, nil
	}

	cur, err := t.bpm.FetchPageRead(rootID)
	if err != nil {
		header.Drop()
		return page.RID{}, false, err
	}
	header.Drop()

	for {
		n := nodeView(cur.GetData(), t.keySize)
		if n.isLeaf() {
			idx := t.leafLowerBound(n, key)
			if idx < n.size() && t.cmp(n.keyAt(idx), key) == 0 {
				rid := n.ridAt(idx)
				cur.Drop()
				return rid, true, nil
			}
			cur.Drop()
			return page.RID{}, false, nil
		}
		childID := n.childAt(t.childIndex(n, key))
		child, err := t.bpm.FetchPageRead(childID)
		if err != nil {
			cur.Drop()
			return page.RID{}, false, err
		}
		cur.Drop()
		cur.MoveFrom(&child)
	}
}

// writeContext carries the chain of exclusive latches held during a
// mutating descent: the header guard plus the root-to-current path.
type writeContext struct {
	header     buffer.WritePageGuard
	headerHeld bool
	path       []buffer.WritePageGuard
	childIdx   []int // index of path[i] within path[i-1]
}

// releaseAncestors drops every latch above the current node, header
// included. Called once the current node is proven safe.
func (c *writeContext) releaseAncestors() {
	if c.headerHeld {
		c.header.Drop()
		c.headerHeld = false
	}
	for i := 0; i < len(c.path)-1; i++ {
		c.path[i].Drop()
	}
	if len(c.path) > 0 {
		last := c.path[len(c.path)-1]
		lastIdx := c.childIdx[len(c.childIdx)-1]
		c.path = c.path[:0]
		c.childIdx = c.childIdx[:0]
		c.path = append(c.path, last)
		c.childIdx = append(c.childIdx, lastIdx)
	}
}

// releaseAll drops every held latch.
func (c *writeContext) releaseAll() {
	if c.headerHeld {
		c.header.Drop()
		c.headerHeld = false
	}
	for i := range c.path {
		c.path[i].Drop()
	}
	c.path = c.path[:0]
	c.childIdx = c.childIdx[:0]
}

// Insert adds a key/rid pair, splitting nodes as needed. Duplicate keys
// are refused with ErrDuplicateKey.
func (t *BPlusTree) Insert(key []byte, rid page.RID) error {
	if len(key) != t.keySize {
		return fmt.Errorf("%w: got %d, want %d", ErrKeyTooLarge, len(key), t.keySize)
	}
	ctx := &writeContext{}
	var err error
	ctx.header, err = t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return err
	}
	ctx.headerHeld = true
	defer ctx.releaseAll()

	rootID := headerRoot(ctx.header.GetData())
	if rootID == page.InvalidPageID {
		// Empty tree: the first insert creates a leaf root.
		rootGuard, err := t.bpm.NewPageGuarded()
		if err != nil {
			return fmt.Errorf("failed to create root leaf: %w", err)
		}
		root := rootGuard.UpgradeWrite()
		initLeaf(root.GetDataMut(), t.leafMaxSize)
		n := nodeView(root.GetData(), t.keySize)
		n.setKeyAt(0, key)
		n.setRIDAt(0, rid)
		n.setSize(1)
		setHeaderRoot(ctx.header.GetDataMut(), root.PageID())
		root.Drop()
		return nil
	}

	// Descend, keeping the latch chain until a node proves safe.
	cur, err := t.bpm.FetchPageWrite(rootID)
	if err != nil {
		return err
	}
	ctx.path = append(ctx.path, cur)
	ctx.childIdx = append(ctx.childIdx, 0)
	for {
		g := &ctx.path[len(ctx.path)-1]
		n := nodeView(g.GetData(), t.keySize)
		if n.size() < n.maxSize() {
			ctx.releaseAncestors()
		}
		if n.isLeaf() {
			break
		}
		idx := t.childIndex(n, key)
		child, err := t.bpm.FetchPageWrite(n.childAt(idx))
		if err != nil {
			return err
		}
		ctx.path = append(ctx.path, child)
		ctx.childIdx = append(ctx.childIdx, idx)
	}

	leafGuard := &ctx.path[len(ctx.path)-1]
	leaf := nodeView(leafGuard.GetDataMut(), t.keySize)
	pos := t.leafLowerBound(leaf, key)
	if pos < leaf.size() && t.cmp(leaf.keyAt(pos), key) == 0 {
		return ErrDuplicateKey
	}
	leaf.shiftRight(pos)
	leaf.setKeyAt(pos, key)
	leaf.setRIDAt(pos, rid)
	leaf.setSize(leaf.size() + 1)

	return t.splitUpward(ctx)
}

// splitUpward walks the held latch chain from the leaf up, splitting any
// node that exceeds its max size and propagating separators.
func (t *BPlusTree) splitUpward(ctx *writeContext) error {
	for len(ctx.path) > 0 {
		g := &ctx.path[len(ctx.path)-1]
		n := nodeView(g.GetData(), t.keySize)
		if n.size() <= n.maxSize() {
			return nil
		}

		sepKey, newPageID, err := t.splitNode(n)
		if err != nil {
			return err
		}

		if len(ctx.path) == 1 {
			// Root split: grow the tree by one level.
			newRootGuard, err := t.bpm.NewPageGuarded()
			if err != nil {
				return err
			}
			newRoot := newRootGuard.UpgradeWrite()
			initInternal(newRoot.GetDataMut(), t.internalMaxSize)
			rn := nodeView(newRoot.GetData(), t.keySize)
			rn.setChildAt(0, g.PageID())
			rn.setKeyAt(1, sepKey)
			rn.setChildAt(1, newPageID)
			rn.setSize(2)
			setHeaderRoot(ctx.header.GetDataMut(), newRoot.PageID())
			newRoot.Drop()
			return nil
		}

		childIdx := ctx.childIdx[len(ctx.childIdx)-1]
		parentGuard := &ctx.path[len(ctx.path)-2]
		parent := nodeView(parentGuard.GetDataMut(), t.keySize)
		// Insert the separator and the new child just after the split child.
		parent.shiftRight(childIdx + 1)
		parent.setKeyAt(childIdx+1, sepKey)
		parent.setChildAt(childIdx+1, newPageID)
		parent.setSize(parent.size() + 1)

		g.Drop()
		ctx.path = ctx.path[:len(ctx.path)-1]
		ctx.childIdx = ctx.childIdx[:len(ctx.childIdx)-1]
	}
	return nil
}

// splitNode moves the upper half of an overfull node into a fresh
// sibling and returns the separator key and new sibling's page id. The
// left half keeps ceil(n/2) entries.
func (t *BPlusTree) splitNode(n node) ([]byte, page.PageID, error) {
	siblingGuard, err := t.bpm.NewPageGuarded()
	if err != nil {
		return nil, page.InvalidPageID, fmt.Errorf("failed to allocate split sibling: %w", err)
	}
	sibling := siblingGuard.UpgradeWrite()
	defer sibling.Drop()

	total := n.size()
	leftKeep := (total + 1) / 2
	moved := total - leftKeep

	sep := make([]byte, t.keySize)
	if n.isLeaf() {
		initLeaf(sibling.GetDataMut(), t.leafMaxSize)
		sn := nodeView(sibling.GetData(), t.keySize)
		sn.copyEntries(0, n, leftKeep, moved)
		sn.setSize(moved)
		sn.setNext(n.next())
		n.setNext(sibling.PageID())
		n.setSize(leftKeep)
		copy(sep, sn.keyAt(0))
	} else {
		initInternal(sibling.GetDataMut(), t.internalMaxSize)
		sn := nodeView(sibling.GetData(), t.keySize)
		sn.copyEntries(0, n, leftKeep, moved)
		sn.setSize(moved)
		n.setSize(leftKeep)
		// The right half's first key moves up; its slot 0 key is unused.
		copy(sep, sn.keyAt(0))
	}
	return sep, sibling.PageID(), nil
}

// Remove deletes a key if present. Removing an absent key is a no-op.
func (t *BPlusTree) Remove(key []byte) error {
	ctx := &writeContext{}
	var err error
	ctx.header, err = t.bpm.FetchPageWrite(t.headerPageID)
	if err != nil {
		return err
	}
	ctx.headerHeld = true
	defer ctx.releaseAll()

	rootID := headerRoot(ctx.header.GetData())
	if rootID == page.InvalidPageID {
		return nil
	}

	cur, err := t.bpm.FetchPageWrite(rootID)
	if err != nil {
		return err
	}
	ctx.path = append(ctx.path, cur)
	ctx.childIdx = append(ctx.childIdx, 0)
	for {
		g := &ctx.path[len(ctx.path)-1]
		n := nodeView(g.GetData(), t.keySize)
		// A node that cannot underflow lets every ancestor latch go. The
		// root is exempt from the minimum-size rule but must stay latched
		// (with the header) while it could collapse.
		safe := n.size() > n.minSize()
		if len(ctx.path) == 1 {
			if n.isLeaf() {
				safe = n.size() > 1
			} else {
				safe = n.size() > 2
			}
		}
		if safe {
			ctx.releaseAncestors()
		}
		if n.isLeaf() {
			break
		}
		idx := t.childIndex(n, key)
		child, err := t.bpm.FetchPageWrite(n.childAt(idx))
		if err != nil {
			return err
		}
		ctx.path = append(ctx.path, child)
		ctx.childIdx = append(ctx.childIdx, idx)
	}

	leafGuard := &ctx.path[len(ctx.path)-1]
	leaf := nodeView(leafGuard.GetDataMut(), t.keySize)
	pos := t.leafLowerBound(leaf, key)
	if pos >= leaf.size() || t.cmp(leaf.keyAt(pos), key) != 0 {
		return nil
	}
	leaf.shiftLeft(pos)
	leaf.setSize(leaf.size() - 1)

	return t.rebalanceUpward(ctx)
}

// rebalanceUpward restores minimum occupancy from the leaf up: borrow
// from a sibling when one can spare, otherwise merge, removing the
// parent entry and continuing upward.
func (t *BPlusTree) rebalanceUpward(ctx *writeContext) error {
	for {
		g := &ctx.path[len(ctx.path)-1]
		n := nodeView(g.GetDataMut(), t.keySize)

		if len(ctx.path) == 1 {
			// One latched node is left. With the header latch still held it
			// is the tree root; otherwise it is a node proven safe during
			// the descent, so nothing above it changes.
			if !ctx.headerHeld {
				return nil
			}
			if !n.isLeaf() && n.size() == 1 {
				// Root with a single child: the child becomes the new root.
				newRootID := n.childAt(0)
				oldRootID := g.PageID()
				setHeaderRoot(ctx.header.GetDataMut(), newRootID)
				g.Drop()
				ctx.path = ctx.path[:0]
				ctx.childIdx = ctx.childIdx[:0]
				t.bpm.DeletePage(oldRootID)
				return nil
			}
			if n.isLeaf() && n.size() == 0 {
				// The last key is gone; the tree is empty again.
				oldRootID := g.PageID()
				setHeaderRoot(ctx.header.GetDataMut(), page.InvalidPageID)
				g.Drop()
				ctx.path = ctx.path[:0]
				ctx.childIdx = ctx.childIdx[:0]
				t.bpm.DeletePage(oldRootID)
				return nil
			}
			return nil
		}

		if n.size() >= n.minSize() {
			return nil
		}

		childIdx := ctx.childIdx[len(ctx.childIdx)-1]
		parentGuard := &ctx.path[len(ctx.path)-2]
		parent := nodeView(parentGuard.GetDataMut(), t.keySize)

		// Borrow from the left sibling first, then the right.
		if childIdx > 0 {
			leftGuard, err := t.bpm.FetchPageWrite(parent.childAt(childIdx - 1))
			if err != nil {
				return err
			}
			left := nodeView(leftGuard.GetDataMut(), t.keySize)
			if left.size() > left.minSize() {
				t.borrowFromLeft(n, left, parent, childIdx)
				leftGuard.Drop()
				return nil
			}
			leftGuard.Drop()
		}
		if childIdx < parent.size()-1 {
			rightGuard, err := t.bpm.FetchPageWrite(parent.childAt(childIdx + 1))
			if err != nil {
				return err
			}
			right := nodeView(rightGuard.GetDataMut(), t.keySize)
			if right.size() > right.minSize() {
				t.borrowFromRight(n, right, parent, childIdx)
				rightGuard.Drop()
				return nil
			}
			rightGuard.Drop()
		}

		// No sibling can spare: merge into the left neighbour, or absorb
		// the right one when the node is the leftmost child.
		if childIdx > 0 {
			leftGuard, err := t.bpm.FetchPageWrite(parent.childAt(childIdx - 1))
			if err != nil {
				return err
			}
			left := nodeView(leftGuard.GetDataMut(), t.keySize)
			t.mergeNodes(left, n, parent, childIdx)
			leftGuard.Drop()
			deadID := g.PageID()
			g.Drop()
			ctx.path = ctx.path[:len(ctx.path)-1]
			ctx.childIdx = ctx.childIdx[:len(ctx.childIdx)-1]
			t.bpm.DeletePage(deadID)
		} else {
			rightGuard, err := t.bpm.FetchPageWrite(parent.childAt(childIdx + 1))
			if err != nil {
				return err
			}
			right := nodeView(rightGuard.GetDataMut(), t.keySize)
			t.mergeNodes(n, right, parent, childIdx+1)
			deadID := rightGuard.PageID()
			rightGuard.Drop()
			g.Drop()
			ctx.path = ctx.path[:len(ctx.path)-1]
			ctx.childIdx = ctx.childIdx[:len(ctx.childIdx)-1]
			t.bpm.DeletePage(deadID)
		}
		// The parent lost an entry; continue rebalancing there.
	}
}

// borrowFromLeft rotates the left sibling's last entry into n through
// the parent separator at childIdx.
func (t *BPlusTree) borrowFromLeft(n, left, parent node, childIdx int) {
	last := left.size() - 1
	n.shiftRight(0)
	if n.isLeaf() {
		n.setKeyAt(0, left.keyAt(last))
		n.setRIDAt(0, left.ridAt(last))
		parent.setKeyAt(childIdx, left.keyAt(last))
	} else {
		// The old separator comes down into slot 1; the left sibling's
		// last key replaces it in the parent.
		n.setKeyAt(1, parent.keyAt(childIdx))
		n.setChildAt(0, left.childAt(last))
		parent.setKeyAt(childIdx, left.keyAt(last))
	}
	n.setSize(n.size() + 1)
	left.setSize(left.size() - 1)
}

// borrowFromRight rotates the right sibling's first entry into n through
// the parent separator at childIdx+1.
func (t *BPlusTree) borrowFromRight(n, right, parent node, childIdx int) {
	if n.isLeaf() {
		n.setKeyAt(n.size(), right.keyAt(0))
		n.setRIDAt(n.size(), right.ridAt(0))
		n.setSize(n.size() + 1)
		right.shiftLeft(0)
		right.setSize(right.size() - 1)
		parent.setKeyAt(childIdx+1, right.keyAt(0))
	} else {
		n.setKeyAt(n.size(), parent.keyAt(childIdx+1))
		n.setChildAt(n.size(), right.childAt(0))
		n.setSize(n.size() + 1)
		parent.setKeyAt(childIdx+1, right.keyAt(1))
		right.shiftLeft(0)
		right.setSize(right.size() - 1)
	}
}

// mergeNodes folds right into left and removes right's entry (at
// rightIdx) from the parent. For internal nodes the separator is pulled
// down between the two halves.
func (t *BPlusTree) mergeNodes(left, right, parent node, rightIdx int) {
	if left.isLeaf() {
		left.copyEntries(left.size(), right, 0, right.size())
		left.setSize(left.size() + right.size())
		left.setNext(right.next())
	} else {
		// Pulled-down separator becomes the key guarding right's first child.
		left.copyEntries(left.size(), right, 0, right.size())
		left.setKeyAt(left.size(), parent.keyAt(rightIdx))
		left.setSize(left.size() + right.size())
	}
	parent.shiftLeft(rightIdx)
	parent.setSize(parent.size() - 1)
}
