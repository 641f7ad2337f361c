package storage

import (
	"sync"
)

// lruKNode tracks the access history of one frame. history holds the
// timestamps of the last K accesses, oldest first; its length is
// min(accesses, K).
type lruKNode struct {
	history     []uint64
	isEvictable bool
}

// LRUKReplacer picks eviction victims by backward k-distance: the time
// between now and the K-th most recent access to a frame. A frame with
// fewer than K recorded accesses has infinite distance; ties among
// infinite-distance frames fall back to classic LRU on the oldest
// recorded access.
//
// Misuse of the replacer (unknown frames, removing a pinned frame) is a
// programmer bug and panics with a StorageError.
type LRUKReplacer struct {
	mutex            sync.Mutex
	nodes            map[FrameID]*lruKNode
	currSize         int
	currentTimestamp uint64
	replacerSize     int
	k                int
}

// NewLRUKReplacer creates a replacer for numFrames frames with history
// window k.
func NewLRUKReplacer(numFrames, k int) *LRUKReplacer {
	if k <= 0 {
		k = DefaultReplacerK
	}
	return &LRUKReplacer{
		nodes:        make(map[FrameID]*lruKNode),
		replacerSize: numFrames,
		k:            k,
	}
}

// RecordAccess records an access to frameID at the current timestamp and
// advances the timestamp. A first access inserts the frame, non-evictable.
// Once K timestamps are held the window slides: the oldest is dropped.
// The access type is advisory and currently unused.
func (r *LRUKReplacer) RecordAccess(frameID FrameID, accessType AccessType) {
	_ = accessType
	if frameID < 0 || int(frameID) >= r.replacerSize {
		panic(ErrInvalidFrame("RecordAccess", frameID))
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		node = &lruKNode{history: make([]uint64, 0, r.k)}
		r.nodes[frameID] = node
	} else if len(node.history) == r.k {
		node.history = node.history[1:]
	}
	node.history = append(node.history, r.currentTimestamp)
	r.currentTimestamp++
}

// SetEvictable flips a frame's evictability and keeps the evictable count
// in step. The frame must have been recorded before.
func (r *LRUKReplacer) SetEvictable(frameID FrameID, evictable bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		panic(ErrInvalidFrame("SetEvictable", frameID))
	}
	if node.isEvictable && !evictable {
		r.currSize--
	} else if !node.isEvictable && evictable {
		r.currSize++
	}
	node.isEvictable = evictable
}

// Evict removes and returns the evictable frame with the largest backward
// k-distance, or false if no frame is evictable. The caller owns flushing
// the victim's page before reusing the frame.
func (r *LRUKReplacer) Evict() (FrameID, bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.currSize == 0 {
		return InvalidFrameID, false
	}

	victim := InvalidFrameID
	victimInfinite := false
	var victimOldest uint64
	var victimDistance uint64

	for frameID, node := range r.nodes {
		if !node.isEvictable {
			continue
		}
		oldest := node.history[0]
		infinite := len(node.history) < r.k

		if victim == InvalidFrameID {
			victim = frameID
			victimInfinite = infinite
			victimOldest = oldest
			if !infinite {
				victimDistance = r.currentTimestamp - oldest
			}
			continue
		}

		switch {
		case infinite && victimInfinite:
			// Classic LRU among infinite-distance frames.
			if oldest < victimOldest {
				victim = frameID
				victimOldest = oldest
			}
		case infinite && !victimInfinite:
			victim = frameID
			victimInfinite = true
			victimOldest = oldest
		case !infinite && victimInfinite:
			// Infinite distance always wins.
		default:
			if d := r.currentTimestamp - oldest; d > victimDistance {
				victim = frameID
				victimOldest = oldest
				victimDistance = d
			}
		}
	}

	delete(r.nodes, victim)
	r.currSize--
	return victim, true
}

// Remove erases a frame's history entirely. A no-op for frames never
// recorded; removing a non-evictable frame panics.
func (r *LRUKReplacer) Remove(frameID FrameID) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	node, ok := r.nodes[frameID]
	if !ok {
		return
	}
	if !node.isEvictable {
		panic(ErrNonEvictable("Remove", frameID))
	}
	delete(r.nodes, frameID)
	r.currSize--
}

// Size returns the number of evictable frames.
func (r *LRUKReplacer) Size() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.currSize
}
