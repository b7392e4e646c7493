package catalog

import (
	"encoding/binary"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

// Slotted table page layout:
//
//	offset 0  int64   next page id
//	offset 8  uint16  slot count
//	offset 10 uint16  free-space end (tuple area grows down from the page end)
//	offset 12 ...     slot array: per slot offset uint16, size uint16, flags uint16
//
// Bit 0 of a slot's flags is the deletion mark.
const (
	tablePageHeaderSize = 12
	tableSlotSize       = 6

	slotFlagDeleted = 1
)

type tablePage struct {
	data []byte
}

func tablePageView(data []byte) tablePage { return tablePage{data: data} }

func initTablePage(data []byte) {
	invalidID := page.InvalidPageID
	binary.LittleEndian.PutUint64(data[0:], uint64(invalidID))
	binary.LittleEndian.PutUint16(data[8:], 0)
	binary.LittleEndian.PutUint16(data[10:], uint16(len(data)))
}

func (p tablePage) next() page.PageID {
	return page.PageID(binary.LittleEndian.Uint64(p.data[0:]))
}

func (p tablePage) setNext(id page.PageID) {
	binary.LittleEndian.PutUint64(p.data[0:], uint64(id))
}

func (p tablePage) slotCount() int {
	return int(binary.LittleEndian.Uint16(p.data[8:]))
}

func (p tablePage) setSlotCount(n int) {
	binary.LittleEndian.PutUint16(p.data[8:], uint16(n))
}

func (p tablePage) freeSpaceEnd() int {
	return int(binary.LittleEndian.Uint16(p.data[10:]))
}

func (p tablePage) setFreeSpaceEnd(n int) {
	binary.LittleEndian.PutUint16(p.data[10:], uint16(n))
}

func (p tablePage) slotOffset(i int) int { return tablePageHeaderSize + i*tableSlotSize }

func (p tablePage) slot(i int) (offset, size int, deleted bool) {
	so := p.slotOffset(i)
	offset = int(binary.LittleEndian.Uint16(p.data[so:]))
	size = int(binary.LittleEndian.Uint16(p.data[so+2:]))
	deleted = binary.LittleEndian.Uint16(p.data[so+4:])&slotFlagDeleted != 0
	return
}

func (p tablePage) setSlot(i, offset, size int, deleted bool) {
	so := p.slotOffset(i)
	binary.LittleEndian.PutUint16(p.data[so:], uint16(offset))
	binary.LittleEndian.PutUint16(p.data[so+2:], uint16(size))
	var flags uint16
	if deleted {
		flags |= slotFlagDeleted
	}
	binary.LittleEndian.PutUint16(p.data[so+4:], flags)
}

func (p tablePage) setSlotDeleted(i int, deleted bool) {
	offset, size, _ := p.slot(i)
	p.setSlot(i, offset, size, deleted)
}

// freeSpace returns the bytes available between the slot array and the
// tuple area.
func (p tablePage) freeSpace() int {
	return p.freeSpaceEnd() - tablePageHeaderSize - p.slotCount()*tableSlotSize
}

// insertTuple places data in the page, returning the new slot number or
// false when the page cannot hold it.
func (p tablePage) insertTuple(data []byte, deleted bool) (uint32, bool) {
	if p.freeSpace() < len(data)+tableSlotSize {
		return 0, false
	}
	slot := p.slotCount()
	offset := p.freeSpaceEnd() - len(data)
	copy(p.data[offset:], data)
	p.setFreeSpaceEnd(offset)
	p.setSlot(slot, offset, len(data), deleted)
	p.setSlotCount(slot + 1)
	return uint32(slot), true
}

// tupleData returns the raw bytes of slot i.
func (p tablePage) tupleData(i int) []byte {
	offset, size, _ := p.slot(i)
	return p.data[offset : offset+size]
}
