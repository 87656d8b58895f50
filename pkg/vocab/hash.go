package vocab

import "errors"

// ErrIndexFull is returned when every slot of the hash index is taken.
var ErrIndexFull = errors.New("vocab: hash index is full")

// empty marks a free slot in the hash index.
const empty int32 = -1

// HashIndex is an open-addressed token -> vocabulary slot table with linear
// probing. Its capacity is fixed; callers keep the load below MaxLoadFactor by
// pruning the vocabulary and calling Rebuild.
type HashIndex struct {
	slots []int32
}

// NewHashIndex allocates an index with the given number of slots.
func NewHashIndex(capacity int) *HashIndex {
	h := &HashIndex{slots: make([]int32, capacity)}
	h.Reset()
	return h
}

// Capacity returns the number of slots.
func (h *HashIndex) Capacity() int { return len(h.slots) }

// Reset marks every slot free.
func (h *HashIndex) Reset() {
	for i := range h.slots {
		h.slots[i] = empty
	}
}

// Hash is the deterministic polynomial string hash (base 257) reduced modulo
// capacity.
func Hash(token []byte, capacity int) int {
	var hv uint64
	for _, c := range token {
		hv = hv*257 + uint64(c)
	}
	return int(hv % uint64(capacity))
}

func hashString(token string, capacity int) int {
	var hv uint64
	for i := 0; i < len(token); i++ {
		hv = hv*257 + uint64(token[i])
	}
	return int(hv % uint64(capacity))
}

// Find returns the slot index stored for token, or -1. It probes at most
// Capacity slots.
func (h *HashIndex) Find(words []Word, token []byte) int {
	pos := Hash(token, len(h.slots))
	for range h.slots {
		idx := h.slots[pos]
		if idx == empty {
			return -1
		}
		if words[idx].Token == string(token) {
			return int(idx)
		}
		pos = (pos + 1) % len(h.slots)
	}
	return -1
}

// Insert stores idx for token in the first free slot of its probe sequence.
// The token must not already be present.
func (h *HashIndex) Insert(token string, idx int) error {
	pos := hashString(token, len(h.slots))
	for range h.slots {
		if h.slots[pos] == empty {
			h.slots[pos] = int32(idx)
			return nil
		}
		pos = (pos + 1) % len(h.slots)
	}
	return ErrIndexFull
}

// Rebuild clears the index and re-inserts every word at its current position.
// words must be no larger than a set the index already held.
func (h *HashIndex) Rebuild(words []Word) {
	h.Reset()
	for i := range words {
		_ = h.Insert(words[i].Token, i)
	}
}
