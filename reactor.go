// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import (
	"container/list"
	"time"

	"github.com/joeycumines/logiface"
	"github.com/joeycumines/stumpy"
)

// Reactor is the per-instance event loop state: a readiness backend, a
// timer heap, a signal relay, priority-banded active queues, and the
// roster of currently inserted events. It is not safe for concurrent use
// except as documented for the signal relay.
type Reactor struct {
	backend Backend

	inserted *list.List // all currently INSERTED events (not incl. timer-only)
	active   []*list.List
	nbands   int

	heap timerHeap

	sig *signalRelay // nil until the first Signal-kind event is added

	eventCount  int // live, excluding flagInternal
	activeCount int

	gotTerm  bool
	gotBreak bool

	eventTV      time.Time
	tvCache      time.Time
	tvCacheValid bool

	monotonic bool
	clock     func() time.Time

	logger *logiface.Logger[*stumpy.Event]

	closed bool
}

// newInternalEvent creates a caller-invisible event (flagInternal set) used
// by the signal relay's self-pipe. Internal events never count toward
// eventCount: a reactor with only signal subscribers registered has nothing
// of its own to report as "live", even though the self-pipe event backing
// those subscriptions is itself armed.
func (r *Reactor) newInternalEvent(fd int, kinds Kind, cb Callback) *Event {
	ev := r.newEventLocked(fd, kinds, cb, nil)
	ev.flags |= flagInternal
	return ev
}

// NewEvent initializes a new Event bound to this reactor, with the default
// priority band (nbands/2). The event is not yet registered; call Add.
func (r *Reactor) NewEvent(fd int, kinds Kind, cb Callback, arg any) *Event {
	return r.newEventLocked(fd, kinds, cb, arg)
}

func (r *Reactor) newEventLocked(fd int, kinds Kind, cb Callback, arg any) *Event {
	return &Event{
		reactor:  r,
		fd:       fd,
		kinds:    kinds,
		cb:       cb,
		arg:      arg,
		priority: r.nbands / 2,
		flags:    flagInit,
		heapIdx:  noHeapIndex,
	}
}

func (r *Reactor) clockNow() time.Time {
	if r.clock != nil {
		return r.clock()
	}
	return time.Now()
}

// Add registers ev with the reactor. If timeout is non-nil, ev is also
// armed in the timer heap for that duration from now. The backend add must
// succeed before ev is marked flagInserted, so a failed backend add leaves
// the event's bookkeeping untouched rather than half-registered.
func (r *Reactor) Add(ev *Event, timeout *time.Duration) error {
	if r.closed {
		return ErrClosed
	}

	if ev.kinds&Signal != 0 && ev.kinds&(Read|Write) != 0 {
		r.logContractViolation("event registered with both Signal and Read/Write kinds")
	}

	if ev.kinds&(Read|Write|Signal) != 0 && ev.flags&(flagInserted|flagActive) == 0 {
		if err := r.backendAdd(ev); err != nil {
			return err
		}
		r.insertQueueInsert(ev)
	}

	if timeout != nil {
		r.heap.reserve(r.heap.Len() + 1)

		if ev.flags&flagTimeout != 0 {
			r.timeoutQueueRemove(ev)
		}
		if ev.flags&flagActive != 0 && ev.res&Timeout != 0 {
			if ev.pncalls != nil {
				*ev.pncalls = 0
			}
			r.activeQueueRemove(ev)
		}

		ev.deadline = r.clockNow().Add(*timeout)
		r.timeoutQueueInsert(ev)
	}

	return nil
}

func (r *Reactor) backendAdd(ev *Event) error {
	if ev.kinds&Signal != 0 {
		return r.signalAdd(ev)
	}
	return r.backend.add(ev)
}

func (r *Reactor) backendDel(ev *Event) error {
	if ev.kinds&Signal != 0 {
		return r.signalDel(ev)
	}
	return r.backend.del(ev)
}

func (r *Reactor) signalAdd(ev *Event) error {
	if r.sig == nil {
		sr, err := newSignalRelay(r)
		if err != nil {
			return err
		}
		r.sig = sr
	}
	return r.sig.subscribe(ev.fd, ev)
}

func (r *Reactor) signalDel(ev *Event) error {
	if r.sig == nil {
		return nil
	}
	return r.sig.unsubscribe(ev.fd, ev)
}

// Del unregisters ev from every queue it currently belongs to. Idempotent:
// calling Del on an event already fully removed is a no-op returning nil.
func (r *Reactor) Del(ev *Event) error {
	if ev.pncalls != nil {
		*ev.pncalls = 0
		ev.pncalls = nil
	}

	r.timeoutQueueRemove(ev)
	r.activeQueueRemove(ev)

	if ev.flags&flagInserted != 0 {
		r.insertQueueRemove(ev)
		return r.backendDel(ev)
	}
	return nil
}

// Activate forcibly marks ev active with the given reason mask. If ev is
// already active, the reasons are folded into its existing result mask
// instead of duplicating the active-queue entry.
func (r *Reactor) Activate(ev *Event, kinds Kind, ncalls int) {
	if ev.flags&flagActive != 0 {
		ev.res |= kinds
		return
	}
	ev.res = kinds
	ev.ncalls = ncalls
	ev.pncalls = nil
	r.activeQueueInsert(ev)
}

// Once registers a self-deregistering one-shot event: cb is invoked at
// most once, after which the carrier is discarded. Signal events are not
// permitted (matching the original's restriction).
func (r *Reactor) Once(fd int, kinds Kind, cb Callback, arg any, timeout *time.Duration) error {
	if kinds&Signal != 0 {
		return ErrOnceSignal
	}

	var ev *Event
	ev = r.NewEvent(fd, kinds&^Persist, func(fd int, firedKinds Kind, _ any) {
		cb(fd, firedKinds, arg)
	}, nil)

	return r.Add(ev, timeout)
}

// PriorityInit sets the number of active-queue priority bands. Refused
// while any event is currently active.
func (r *Reactor) PriorityInit(n int) error {
	if n < 1 {
		return ErrInvalidPriority
	}
	if r.activeCount > 0 {
		return ErrPriorityActive
	}
	if n == r.nbands {
		return nil
	}
	bands := make([]*list.List, n)
	for i := range bands {
		bands[i] = list.New()
	}
	r.active = bands
	r.nbands = n
	return nil
}

// LoopExit schedules the reactor to stop after d: a hidden one-shot timer
// sets the termination flag, which the dispatch loop observes at the top
// of its next iteration.
func (r *Reactor) LoopExit(d time.Duration) error {
	return r.Once(-1, Timeout, func(int, Kind, any) {
		r.gotTerm = true
	}, nil, &d)
}

// LoopBreak requests that Run return as soon as the currently-draining
// event finishes, without waiting for the rest of its priority band.
func (r *Reactor) LoopBreak() {
	r.gotBreak = true
}

// Reinit recovers the reactor's kernel state after a fork(), if the
// backend reports it's required: the backend and signal self-pipe are torn
// down and rebuilt, and every currently INSERTED event is re-added to the
// fresh backend.
func (r *Reactor) Reinit() error {
	if !r.backend.needReinit() {
		return nil
	}
	r.logReinit()

	var toReinsert []*Event
	for e := r.inserted.Front(); e != nil; e = e.Next() {
		toReinsert = append(toReinsert, e.Value.(*Event))
	}

	if err := r.backend.dealloc(); err != nil {
		return err
	}
	r.sig = nil

	if err := r.backend.init(r); err != nil {
		return err
	}

	for _, ev := range toReinsert {
		if ev.kinds&(Read|Write|Signal) != 0 {
			if err := r.backendAdd(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close unregisters and frees every non-internal event, tears down the
// backend and signal relay, and marks the reactor unusable.
func (r *Reactor) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true

	for e := r.inserted.Front(); e != nil; {
		next := e.Next()
		ev := e.Value.(*Event)
		if ev.flags&flagInternal == 0 {
			_ = r.Del(ev)
		}
		e = next
	}
	for r.heap.Len() > 0 {
		ev := r.heap.Peek()
		if ev.flags&flagInternal == 0 {
			r.heap.pop()
		} else {
			break
		}
	}
	for _, band := range r.active {
		for e := band.Front(); e != nil; {
			next := e.Next()
			ev := e.Value.(*Event)
			if ev.flags&flagInternal == 0 {
				r.activeQueueRemove(ev)
			}
			e = next
		}
	}

	return r.backend.dealloc()
}
