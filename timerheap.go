// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// timerHeap is a binary min-heap of *Event ordered by deadline, with each
// element's array index mirrored onto Event.heapIdx for O(log n) erase by
// reference. container/heap was deliberately not used here: it has no way
// to look up an element's current index given only a pointer to the
// element, which is exactly what erase-by-reference needs - see DESIGN.md.
type timerHeap struct {
	elems []*Event
}

func (h *timerHeap) Len() int { return len(h.elems) }

// Peek returns the minimum-deadline element without removing it, or nil if
// the heap is empty.
func (h *timerHeap) Peek() *Event {
	if len(h.elems) == 0 {
		return nil
	}
	return h.elems[0]
}

// reserve grows the backing array's capacity to at least n, doubling (floor
// 8) rather than growing exactly, so repeated pushes amortize allocation.
// Must be called before any heap mutation that depends on the insertion
// succeeding, so a failed growth never leaves partial state committed.
func (h *timerHeap) reserve(n int) {
	if cap(h.elems) >= n {
		return
	}
	newCap := cap(h.elems) * 2
	if newCap < 8 {
		newCap = 8
	}
	if newCap < n {
		newCap = n
	}
	grown := make([]*Event, len(h.elems), newCap)
	copy(grown, h.elems)
	h.elems = grown
}

func greater(a, b *Event) bool { return a.deadline.After(b.deadline) }

func (h *timerHeap) push(ev *Event) {
	h.reserve(len(h.elems) + 1)
	h.elems = append(h.elems, nil)
	h.shiftUp(len(h.elems)-1, ev)
}

// pop removes and returns the minimum element.
func (h *timerHeap) pop() *Event {
	if len(h.elems) == 0 {
		return nil
	}
	top := h.elems[0]
	last := h.elems[len(h.elems)-1]
	h.elems[len(h.elems)-1] = nil
	h.elems = h.elems[:len(h.elems)-1]
	if len(h.elems) > 0 {
		h.shiftDown(0, last)
	}
	top.heapIdx = noHeapIndex
	return top
}

// erase removes an arbitrary element, identified by its own heapIdx, from
// the heap in O(log n).
func (h *timerHeap) erase(ev *Event) {
	idx := ev.heapIdx
	if idx < 0 || idx >= len(h.elems) {
		return
	}
	last := h.elems[len(h.elems)-1]
	h.elems = h.elems[:len(h.elems)-1]
	ev.heapIdx = noHeapIndex
	if idx == len(h.elems) {
		// erasing the last element in array order; nothing to refill.
		return
	}
	if idx > 0 && greater(h.elems[parentOf(idx)], last) {
		h.shiftUp(idx, last)
	} else {
		h.shiftDown(idx, last)
	}
}

func parentOf(i int) int { return (i - 1) / 2 }

// shiftUp places e at holeIndex, then bubbles it toward the root while it
// is smaller than its current parent.
func (h *timerHeap) shiftUp(holeIndex int, e *Event) {
	for holeIndex > 0 {
		parent := parentOf(holeIndex)
		if !greater(h.elems[parent], e) {
			break
		}
		h.elems[holeIndex] = h.elems[parent]
		h.elems[holeIndex].heapIdx = holeIndex
		holeIndex = parent
	}
	h.elems[holeIndex] = e
	e.heapIdx = holeIndex
}

// shiftDown moves the hole at holeIndex toward the smaller child for as
// long as e is greater than that child, then finishes with a shiftUp - the
// combined pattern is correct because the hole only ever moved toward the
// smaller subtree, so a final bubble-up from wherever it stopped completes
// the placement.
func (h *timerHeap) shiftDown(holeIndex int, e *Event) {
	n := len(h.elems)
	minChild := 2 * (holeIndex + 1)
	for minChild <= n {
		if minChild == n || greater(h.elems[minChild], h.elems[minChild-1]) {
			minChild--
		}
		if !greater(e, h.elems[minChild]) {
			break
		}
		h.elems[holeIndex] = h.elems[minChild]
		h.elems[holeIndex].heapIdx = holeIndex
		holeIndex = minChild
		minChild = 2 * (holeIndex + 1)
	}
	h.shiftUp(holeIndex, e)
}
