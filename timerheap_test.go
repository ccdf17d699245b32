package reactor

import (
	"testing"
	"time"
)

func newTestEvent(d time.Duration) *Event {
	return &Event{heapIdx: noHeapIndex, deadline: time.Unix(0, 0).Add(d)}
}

func TestTimerHeap_PushPopOrdering(t *testing.T) {
	h := &timerHeap{}
	deadlines := []time.Duration{30 * time.Millisecond, 10 * time.Millisecond, 20 * time.Millisecond}
	var events []*Event
	for _, d := range deadlines {
		ev := newTestEvent(d)
		events = append(events, ev)
		h.push(ev)
	}

	var order []time.Duration
	for h.Len() > 0 {
		ev := h.pop()
		order = append(order, ev.deadline.Sub(time.Unix(0, 0)))
	}

	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}
	if len(order) != len(want) {
		t.Fatalf("got %d pops, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("pop[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}

func TestTimerHeap_PopSizeOne(t *testing.T) {
	h := &timerHeap{}
	ev := newTestEvent(5 * time.Millisecond)
	h.push(ev)

	got := h.pop()
	if got != ev {
		t.Fatalf("pop() = %v, want %v", got, ev)
	}
	if h.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", h.Len())
	}
	if ev.heapIdx != noHeapIndex {
		t.Fatalf("heapIdx = %d, want sentinel", ev.heapIdx)
	}
}

func TestTimerHeap_EraseLastElement(t *testing.T) {
	h := &timerHeap{}
	a := newTestEvent(10 * time.Millisecond)
	b := newTestEvent(20 * time.Millisecond)
	h.push(a)
	h.push(b)

	h.erase(b)
	if h.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", h.Len())
	}
	if b.heapIdx != noHeapIndex {
		t.Fatalf("erased event's heapIdx = %d, want sentinel", b.heapIdx)
	}
	if h.Peek() != a {
		t.Fatalf("Peek() = %v, want %v", h.Peek(), a)
	}
}

func TestTimerHeap_EraseMiddleElement(t *testing.T) {
	h := &timerHeap{}
	var events []*Event
	for _, d := range []time.Duration{10, 20, 30, 40, 50} {
		ev := newTestEvent(d * time.Millisecond)
		events = append(events, ev)
		h.push(ev)
	}

	h.erase(events[2]) // 30ms

	var order []time.Duration
	for h.Len() > 0 {
		order = append(order, h.pop().deadline.Sub(time.Unix(0, 0)))
	}
	want := []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 40 * time.Millisecond, 50 * time.Millisecond}
	if len(order) != len(want) {
		t.Fatalf("got %d elements, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order[%d] = %v, want %v", i, order[i], want[i])
		}
	}
}

func TestTimerHeap_HeapIndexInvariant(t *testing.T) {
	h := &timerHeap{}
	for _, d := range []time.Duration{5, 1, 9, 3, 7, 2, 8, 4, 6} {
		h.push(newTestEvent(d * time.Millisecond))
	}
	for i, ev := range h.elems {
		if ev.heapIdx != i {
			t.Errorf("elems[%d].heapIdx = %d, want %d", i, ev.heapIdx, i)
		}
		if i > 0 {
			parent := h.elems[parentOf(i)]
			if greater(parent, ev) {
				t.Errorf("heap property violated at index %d: parent %v > child %v", i, parent.deadline, ev.deadline)
			}
		}
	}
}

func TestTimerHeap_ReserveGrowsCapacity(t *testing.T) {
	h := &timerHeap{}
	h.reserve(1)
	if cap(h.elems) < 8 {
		t.Fatalf("reserve(1): cap = %d, want >= 8 (floor)", cap(h.elems))
	}
	h.reserve(20)
	if cap(h.elems) < 20 {
		t.Fatalf("reserve(20): cap = %d, want >= 20", cap(h.elems))
	}
}
