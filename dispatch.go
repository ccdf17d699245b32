// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// LoopFlag controls Run's blocking behaviour.
type LoopFlag uint8

const (
	// LoopOnce causes Run to process at most one batch of active events
	// before returning.
	LoopOnce LoopFlag = 1 << iota
	// LoopNonblock causes the backend wait to use a zero timeout.
	LoopNonblock
)

// Dispatch is equivalent to Run(0): block until the reactor terminates.
func (r *Reactor) Dispatch() error { return r.Run(0) }

// Run is the main dispatch loop. Per iteration: honour termination flags;
// drain any caught signals; correct for backward clock jumps; compute the
// backend wait timeout from the timer heap; wait; process expired timers;
// drain the highest-priority non-empty active band; repeat.
//
// Run returns ErrNoEvents if the reactor has no live (non-internal)
// events registered - including the case where the only armed events are
// signal subscriptions, since the self-pipe event that backs them is
// internal and deliberately excluded from the live count.
func (r *Reactor) Run(flags LoopFlag) error {
	r.tvCacheValid = false

	for {
		if r.gotTerm || r.gotBreak {
			r.gotTerm = false
			r.gotBreak = false
			return nil
		}

		if r.sig != nil && r.sig.caught.Load() {
			r.sig.process()
		}

		r.timeoutCorrect()

		timeout, hasDeadline := r.computeTimeout(flags)

		if r.eventCount == 0 {
			return ErrNoEvents
		}

		r.eventTV = r.clockNow()
		r.tvCacheValid = false

		var waitTimeout time.Duration
		if !hasDeadline {
			waitTimeout = -1
		} else {
			waitTimeout = clampTimeout(timeout)
		}
		if err := r.backend.dispatch(r, waitTimeout); err != nil {
			return err
		}
		r.tvCache = r.clockNow()
		r.tvCacheValid = true

		r.timeoutProcess()

		if r.activeCount > 0 {
			r.processActive()
			if flags&LoopOnce != 0 && r.activeCount == 0 {
				return nil
			}
		} else if flags&LoopNonblock != 0 {
			return nil
		}
	}
}

// computeTimeout decides the backend wait duration: zero if any events are
// already active or LoopNonblock was requested; otherwise the time until
// the earliest timer deadline (hasDeadline=false means block indefinitely,
// because the timer heap is empty).
func (r *Reactor) computeTimeout(flags LoopFlag) (timeout time.Duration, hasDeadline bool) {
	if r.activeCount > 0 || flags&LoopNonblock != 0 {
		return 0, true
	}
	top := r.heap.Peek()
	if top == nil {
		return 0, false
	}
	now := r.clockNow()
	if !top.deadline.After(now) {
		return 0, true
	}
	return top.deadline.Sub(now), true
}

// timeoutCorrect rebases every pending timer's deadline when the monotonic
// clock is unavailable and the wall clock has jumped backward since the
// last sample - preserving each timer's remaining relative delay across
// the jump (S6).
func (r *Reactor) timeoutCorrect() {
	if r.monotonic {
		return
	}
	now := r.clockNow()
	if !now.Before(r.eventTV) {
		r.eventTV = now
		return
	}
	off := r.eventTV.Sub(now)
	for _, ev := range r.heap.elems {
		ev.deadline = ev.deadline.Add(-off)
	}
	r.eventTV = now
}

// timeoutProcess moves every timer whose deadline has passed into the
// active queue with result Timeout.
func (r *Reactor) timeoutProcess() {
	now := r.clockNow()
	for {
		top := r.heap.Peek()
		if top == nil || top.deadline.After(now) {
			return
		}
		ev := r.heap.pop()
		ev.flags &^= flagTimeout
		if ev.flags&flagInternal == 0 {
			r.eventCount--
		}
		r.Activate(ev, Timeout, 1)
	}
}

// processActive drains the lowest-indexed non-empty priority band: for
// each event, non-Persist events are fully deleted before their callback
// runs; Persist events are only removed from the active queue. Each
// callback is invoked ncalls times, decrementing between calls and
// watching the shared pncalls cell so a nested Del can cut the run short.
// Draining bails out early if a signal was caught or LoopBreak was called.
func (r *Reactor) processActive() {
	band := r.firstNonEmptyBand()
	if band < 0 {
		return
	}
	queue := r.active[band]

	for queue.Len() > 0 {
		ev := queue.Front().Value.(*Event)

		if ev.kinds&Persist != 0 {
			r.activeQueueRemove(ev)
		} else {
			_ = r.Del(ev)
		}

		ncalls := ev.ncalls
		ev.pncalls = &ncalls
		res := ev.res
		for ncalls > 0 {
			ncalls--
			ev.pncalls = &ncalls
			ev.cb(ev.fd, res, ev.arg)
			if (r.sig != nil && r.sig.caught.Load()) || r.gotBreak {
				return
			}
		}
	}
}
