// Package bptree implements a disk-resident B+ tree over the buffer
// pool. Keys are fixed-size byte strings ordered by a caller-supplied
// comparator; values are record ids. Concurrent access uses latch
// crabbing through the buffer pool's page guards.
package bptree

import (
	"encoding/binary"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

// Page layout. Every node occupies one page:
//
//	offset 0  uint16  page type (leaf / internal)
//	offset 2  uint16  current size
//	offset 4  uint16  max size
//	offset 8  int64   next leaf page id (leaf nodes only)
//	offset 16 ...     sorted entry area
//
// A leaf entry is key bytes followed by a RID (page id int64, slot
// uint32). An internal entry is key bytes followed by a child page id;
// entry 0's key slot is unused. The tree's header page stores the root
// page id as an int64 at offset 0.
const (
	pageTypeInvalid  = 0
	pageTypeLeaf     = 1
	pageTypeInternal = 2

	nodeHeaderSize = 16

	typeOffset = 0
	sizeOffset = 2
	maxOffset  = 4
	nextOffset = 8

	ridSize     = 12
	childIDSize = 8
)

// node is a view over one page's bytes. It performs no locking; callers
// hold the appropriate guard.
type node struct {
	data    []byte
	keySize int
}

func nodeView(data []byte, keySize int) node {
	return node{data: data, keySize: keySize}
}

func (n node) pageType() uint16 { return binary.LittleEndian.Uint16(n.data[typeOffset:]) }
func (n node) isLeaf() bool     { return n.pageType() == pageTypeLeaf }

func (n node) size() int { return int(binary.LittleEndian.Uint16(n.data[sizeOffset:])) }
func (n node) setSize(s int) {
	binary.LittleEndian.PutUint16(n.data[sizeOffset:], uint16(s))
}

func (n node) maxSize() int { return int(binary.LittleEndian.Uint16(n.data[maxOffset:])) }

// minSize is the underflow bound for non-root nodes.
func (n node) minSize() int { return n.maxSize() / 2 }

func (n node) next() page.PageID {
	return page.PageID(binary.LittleEndian.Uint64(n.data[nextOffset:]))
}

func (n node) setNext(id page.PageID) {
	binary.LittleEndian.PutUint64(n.data[nextOffset:], uint64(id))
}

func (n node) entrySize() int {
	if n.isLeaf() {
		return n.keySize + ridSize
	}
	return n.keySize + childIDSize
}

func (n node) entryOffset(i int) int { return nodeHeaderSize + i*n.entrySize() }

// keyAt returns the key bytes of entry i. For internal nodes entry 0's
// key is unused.
func (n node) keyAt(i int) []byte {
	off := n.entryOffset(i)
	return n.data[off : off+n.keySize]
}

func (n node) setKeyAt(i int, key []byte) {
	copy(n.keyAt(i), key)
}

// ridAt returns the record id stored in leaf entry i.
func (n node) ridAt(i int) page.RID {
	off := n.entryOffset(i) + n.keySize
	return page.RID{
		PageID:  page.PageID(binary.LittleEndian.Uint64(n.data[off:])),
		SlotNum: binary.LittleEndian.Uint32(n.data[off+8:]),
	}
}

func (n node) setRIDAt(i int, rid page.RID) {
	off := n.entryOffset(i) + n.keySize
	binary.LittleEndian.PutUint64(n.data[off:], uint64(rid.PageID))
	binary.LittleEndian.PutUint32(n.data[off+8:], rid.SlotNum)
}

// childAt returns the child page id of internal entry i.
func (n node) childAt(i int) page.PageID {
	off := n.entryOffset(i) + n.keySize
	return page.PageID(binary.LittleEndian.Uint64(n.data[off:]))
}

func (n node) setChildAt(i int, id page.PageID) {
	off := n.entryOffset(i) + n.keySize
	binary.LittleEndian.PutUint64(n.data[off:], uint64(id))
}

// shiftRight opens a hole at entry index i by moving entries [i, size)
// one slot to the right. The caller adjusts size afterwards.
func (n node) shiftRight(i int) {
	es := n.entrySize()
	start := n.entryOffset(i)
	end := n.entryOffset(n.size())
	copy(n.data[start+es:end+es], n.data[start:end])
}

// shiftLeft closes the hole at entry index i by moving entries [i+1,
// size) one slot to the left. The caller adjusts size afterwards.
func (n node) shiftLeft(i int) {
	es := n.entrySize()
	start := n.entryOffset(i)
	end := n.entryOffset(n.size())
	copy(n.data[start:], n.data[start+es:end])
}

// copyEntries copies count entries starting at srcIdx in src to dstIdx
// in n. Source and destination must be distinct pages of the same kind.
func (n node) copyEntries(dstIdx int, src node, srcIdx, count int) {
	es := n.entrySize()
	dstOff := n.entryOffset(dstIdx)
	srcOff := src.entryOffset(srcIdx)
	copy(n.data[dstOff:dstOff+count*es], src.data[srcOff:srcOff+count*es])
}

// initLeaf formats the page as an empty leaf.
func initLeaf(data []byte, maxSize int) {
	binary.LittleEndian.PutUint16(data[typeOffset:], pageTypeLeaf)
	binary.LittleEndian.PutUint16(data[sizeOffset:], 0)
	binary.LittleEndian.PutUint16(data[maxOffset:], uint16(maxSize))
	invalidID := page.InvalidPageID
	binary.LittleEndian.PutUint64(data[nextOffset:], uint64(invalidID))
}

// initInternal formats the page as an empty internal node.
func initInternal(data []byte, maxSize int) {
	binary.LittleEndian.PutUint16(data[typeOffset:], pageTypeInternal)
	binary.LittleEndian.PutUint16(data[sizeOffset:], 0)
	binary.LittleEndian.PutUint16(data[maxOffset:], uint16(maxSize))
	invalidID := page.InvalidPageID
	binary.LittleEndian.PutUint64(data[nextOffset:], uint64(invalidID))
}

// Header page layout: root page id at offset 0.

func headerRoot(data []byte) page.PageID {
	return page.PageID(binary.LittleEndian.Uint64(data))
}

func setHeaderRoot(data []byte, id page.PageID) {
	binary.LittleEndian.PutUint64(data, uint64(id))
}
