// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "time"

// Backend is the pluggable readiness-polling v-table a Reactor drives.
// Two implementations ship: backend_epoll_linux.go (Linux) and
// backend_kqueue_darwin.go (Darwin/BSD family). A fake backend can be
// substituted via WithBackend for testing the reactor's own logic in
// isolation from any real kernel mechanism.
type Backend interface {
	// init binds the backend to a reactor, performing any kernel-handle
	// creation. Failure disqualifies this backend.
	init(r *Reactor) error

	// add registers ev's fd/signal interest with the backend. Must be
	// called before ev is marked flagInserted by the caller.
	add(ev *Event) error

	// del unregisters ev's fd/signal interest.
	del(ev *Event) error

	// dispatch waits for readiness, for at most timeout (a negative
	// duration means block indefinitely), and activates matching events
	// via Reactor.Activate. Returns nil on a normal return, including
	// EINTR (which the backend must recover from internally after
	// draining the signal relay).
	dispatch(r *Reactor, timeout time.Duration) error

	// dealloc releases the backend's own kernel resources (its polling
	// handle and tables). It does not tear down the signal relay; Close
	// releases the relay by deleting the signal events before calling
	// dealloc.
	dealloc() error

	// needReinit reports whether a fork() requires fresh kernel state
	// (true for epoll and kqueue, whose handles do not survive fork).
	needReinit() bool
}

// maxBackendTimeout clamps dispatch waits, matching the original's
// avoidance of historical kernel bugs with very long poll timeouts.
const maxBackendTimeout = 35 * time.Minute

func clampTimeout(d time.Duration) time.Duration {
	if d < 0 {
		return d
	}
	if d > maxBackendTimeout {
		return maxBackendTimeout
	}
	return d
}

const (
	initialResultBufferSize = 32
	maxResultBufferSize     = 4096
	initialFDTableSize      = 32
)
