// Package buffer implements the fixed-size buffer pool: an LRU-K frame
// replacer, the buffer pool manager itself and the scoped page guards
// that enforce pin and latch discipline.
package buffer

import (
	"sync"

	"github.com/sushant-115/sukunadb/core/storage/page"
)

// lruKNode tracks the access history of a single frame: the timestamps of
// its k most recent accesses plus its evictability flag.
type lruKNode struct {
	history     []uint64 // oldest first, at most k entries
	isEvictable bool
}

// LRUKReplacer chooses eviction victims by largest backward k-distance.
// A frame with fewer than k recorded accesses has a distance of +inf;
// ties among +inf frames fall back to classic LRU on the oldest recorded
// access. Timestamps come from a per-replacer monotonic counter.
type LRUKReplacer struct {
	mu             sync.Mutex
	k              int
	numFrames      int
	currentTS      uint64
	nodes          map[page.FrameID]*lruKNode
	evictableCount int
}

// NewLRUKReplacer creates a replacer for numFrames frames with history
// depth k.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	return &LRUKReplacer{
		k:         k,
		numFrames: numFrames,
		nodes:     make(map[page.FrameID]*lruKNode, numFrames),
	}
}

// RecordAccess appends a new access timestamp to the frame's history,
// creating the node on first access. The history keeps only the last k
// timestamps. A new node starts out non-evictable.
func (r *LRUKReplacer) RecordAccess(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[frameID]
	if !ok {
		node = &lruKNode{history: make([]uint64, 0, r.k)}
		r.nodes[frameID] = node
	}
	if len(node.history) == r.k {
		copy(node.history, node.history[1:])
		node.history = node.history[:r.k-1]
	}
	node.history = append(node.history, r.currentTS)
	r.currentTS++
}

// SetEvictable toggles a frame's evictability flag, adjusting the count
// of evictable frames. Unknown frames are ignored.
func (r *LRUKReplacer) SetEvictable(frameID page.FrameID, evictable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if node.isEvictable != evictable {
		node.isEvictable = evictable
		if evictable {
			r.evictableCount++
		} else {
			r.evictableCount--
		}
	}
}

// Evict removes and returns the evictable frame with the largest backward
// k-distance. Frames with fewer than k accesses compare as +inf and are
// preferred; among those, the one with the smallest (least recent) first
// access wins. Returns false when no frame is evictable.
func (r *LRUKReplacer) Evict() (page.FrameID, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.evictableCount == 0 {
		return 0, false
	}

	var (
		victim       page.FrameID
		found        bool
		victimInf    bool
		victimDist   uint64
		victimOldest uint64
	)
	for id, node := range r.nodes {
		if !node.isEvictable {
			continue
		}
		inf := len(node.history) < r.k
		oldest := node.history[0]
		var dist uint64
		if !inf {
			dist = r.currentTS - node.history[0]
		}
		if !found {
			victim, found = id, true
			victimInf, victimDist, victimOldest = inf, dist, oldest
			continue
		}
		switch {
		case inf && !victimInf:
			victim, victimInf, victimDist, victimOldest = id, true, dist, oldest
		case inf && victimInf:
			if oldest < victimOldest {
				victim, victimOldest = id, oldest
			}
		case !inf && !victimInf:
			if dist > victimDist {
				victim, victimDist, victimOldest = id, dist, oldest
			}
		}
	}
	if !found {
		return 0, false
	}
	delete(r.nodes, victim)
	r.evictableCount--
	return victim, true
}

// Remove drops a frame's access history entirely. Removing a frame that
// is not tracked is a no-op.
func (r *LRUKReplacer) Remove(frameID page.FrameID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if node.isEvictable {
		r.evictableCount--
	}
	delete(r.nodes, frameID)
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.evictableCount
}
