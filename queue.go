// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

// This file implements the three intrusive-style queue families the
// reactor maintains: the global inserted roster, the per-priority-band
// active queues, and (in signal.go) the per-signal subscriber lists. The
// original design uses BSD TAILQ pointer-to-pointer back-links; here each
// queue is a container/list.List owned by the reactor, with the *list.Element
// stored back on the Event for O(1) removal - the same pattern gaio uses
// for its per-fd reader/writer queues.

// insertQueueInsert adds ev to the inserted roster. Counts toward eventCount
// unless ev is an internal (self-pipe) event.
func (r *Reactor) insertQueueInsert(ev *Event) {
	ev.insertedElem = r.inserted.PushBack(ev)
	ev.flags |= flagInserted
	if ev.flags&flagInternal == 0 {
		r.eventCount++
	}
}

func (r *Reactor) insertQueueRemove(ev *Event) {
	if ev.insertedElem == nil {
		return
	}
	r.inserted.Remove(ev.insertedElem)
	ev.insertedElem = nil
	ev.flags &^= flagInserted
	if ev.flags&flagInternal == 0 {
		r.eventCount--
	}
}

// activeQueueInsert appends ev to its priority band's active queue, and
// counts this membership toward eventCount unless ev is internal - exactly
// like insertQueueInsert and timeoutQueueInsert, since an event can hold
// more than one of the three queue memberships at once (a PERSIST event is
// simultaneously INSERTED and ACTIVE, and both count). Re-insertion into the
// active queue while already active is a no-op at this layer; callers
// (Activate) are expected to have already coalesced the result mask before
// calling this.
func (r *Reactor) activeQueueInsert(ev *Event) {
	if ev.flags&flagActive != 0 {
		return
	}
	ev.activeElem = r.active[ev.priority].PushBack(ev)
	ev.flags |= flagActive
	r.activeCount++
	if ev.flags&flagInternal == 0 {
		r.eventCount++
	}
}

func (r *Reactor) activeQueueRemove(ev *Event) {
	if ev.activeElem == nil {
		return
	}
	r.active[ev.priority].Remove(ev.activeElem)
	ev.activeElem = nil
	ev.flags &^= flagActive
	r.activeCount--
	if ev.flags&flagInternal == 0 {
		r.eventCount--
	}
}

// timeoutQueueInsert places ev into the timer heap and marks it armed.
func (r *Reactor) timeoutQueueInsert(ev *Event) {
	r.heap.push(ev)
	ev.flags |= flagTimeout
	if ev.flags&flagInternal == 0 {
		r.eventCount++
	}
}

func (r *Reactor) timeoutQueueRemove(ev *Event) {
	if ev.flags&flagTimeout == 0 {
		return
	}
	r.heap.erase(ev)
	ev.flags &^= flagTimeout
	if ev.flags&flagInternal == 0 {
		r.eventCount--
	}
}

// firstNonEmptyBand returns the lowest-indexed active band with at least
// one queued event, or -1 if all bands are empty.
func (r *Reactor) firstNonEmptyBand() int {
	for i, band := range r.active {
		if band.Len() > 0 {
			return i
		}
	}
	return -1
}
