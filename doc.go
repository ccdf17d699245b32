// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package reactor implements a single-threaded, cooperative event
// notification core: a dispatch loop that multiplexes file-descriptor
// readiness, timer expirations, and POSIX signals, invoking user callbacks
// when registered conditions fire.
//
// The core is deliberately narrow: it owns a readiness backend (epoll on
// Linux, kqueue on BSD/Darwin), a timer min-heap, a signal relay, and a set
// of priority-banded active queues. Everything above it - protocol framing,
// buffering, connection management - is a caller's concern.
//
// Callbacks run synchronously on the goroutine that calls Reactor.Run and
// must not block; an event that needs to do I/O should register itself as
// non-blocking and rely on further readiness notifications.
package reactor
