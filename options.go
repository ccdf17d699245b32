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

// reactorOptions holds configuration resolved from the Option list passed
// to New, before the Reactor itself is constructed.
type reactorOptions struct {
	priorityBands int
	logger        *logiface.Logger[*stumpy.Event]
	clock         func() time.Time
	monotonic     bool
	backend       Backend
}

// Option configures a Reactor at construction time.
type Option interface {
	apply(*reactorOptions)
}

type optionFunc func(*reactorOptions)

func (f optionFunc) apply(o *reactorOptions) { f(o) }

// WithPriorityBands sets the initial number of priority bands (default 1,
// matching the original's event_base_priority_init(base, 1) default).
func WithPriorityBands(n int) Option {
	return optionFunc(func(o *reactorOptions) {
		o.priorityBands = n
	})
}

// WithLogger overrides the default stderr-writing structured logger.
func WithLogger(l *logiface.Logger[*stumpy.Event]) Option {
	return optionFunc(func(o *reactorOptions) {
		o.logger = l
	})
}

// WithClock injects a clock source. monotonic=false causes the reactor to
// run its backward-jump timer correction logic against now's readings,
// primarily useful for deterministically testing that behaviour without
// manipulating the real system clock.
func WithClock(now func() time.Time, monotonic bool) Option {
	return optionFunc(func(o *reactorOptions) {
		o.clock = now
		o.monotonic = monotonic
	})
}

// WithBackend overrides automatic OS-based backend selection, primarily so
// tests can exercise the reactor's dispatch logic against a fake backend
// satisfying the Backend interface.
func WithBackend(b Backend) Option {
	return optionFunc(func(o *reactorOptions) {
		o.backend = b
	})
}

func resolveOptions(opts []Option) *reactorOptions {
	o := &reactorOptions{
		priorityBands: 1,
		monotonic:     true,
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt.apply(o)
	}
	return o
}

// New constructs a Reactor: selects (or accepts, via WithBackend) a
// readiness backend, initializes the priority bands, and records whether
// the clock is monotonic (true unless WithClock says otherwise).
func New(opts ...Option) (*Reactor, error) {
	o := resolveOptions(opts)

	r := &Reactor{
		inserted:  list.New(),
		monotonic: o.monotonic,
		clock:     o.clock,
	}
	if o.logger != nil {
		r.logger = o.logger
	} else {
		r.logger = defaultLogger()
	}

	if err := r.PriorityInit(o.priorityBands); err != nil {
		return nil, err
	}

	r.heap = timerHeap{}

	backend := o.backend
	if backend == nil {
		backend = newDefaultBackend()
	}
	if err := backend.init(r); err != nil {
		return nil, err
	}
	r.backend = backend

	r.eventTV = r.clockNow()
	r.logConstruction()

	return r, nil
}
