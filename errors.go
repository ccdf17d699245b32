// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

package reactor

import "errors"

var (
	// ErrNoEvents is returned by Run/Dispatch when the reactor has no
	// registered events (live count, excluding internal events, is zero).
	ErrNoEvents = errors.New("reactor: no events registered")

	// ErrSignalReactorBusy is returned when a second reactor attempts to
	// arm signal delivery while another reactor already owns it. POSIX
	// signal delivery is process-wide, so only one reactor may have
	// signal events active at a time.
	ErrSignalReactorBusy = errors.New("reactor: another reactor already owns signal delivery")

	// ErrInvalidPriority is returned by SetPriority/PriorityInit when the
	// requested band index or band count is out of range.
	ErrInvalidPriority = errors.New("reactor: invalid priority band")

	// ErrPriorityActive is returned by SetPriority when the event is
	// currently active, and by PriorityInit when any event is active.
	ErrPriorityActive = errors.New("reactor: cannot change priority while active")

	// ErrAlreadyInserted names the case of an event inserted into a
	// non-active queue it already belongs to. No operation of this package
	// returns it: the queue insert helpers do not check for it, and Add
	// skips the inserted-queue insert for an already inserted event and
	// removes a prior timer entry before re-arming.
	ErrAlreadyInserted = errors.New("reactor: event already inserted")

	// ErrSignalUnsupported names the case of a Signal-kind Add on a
	// platform without a signal relay. No operation of this package returns
	// it: the signal relay builds on the same platforms as the backends.
	ErrSignalUnsupported = errors.New("reactor: signal events unsupported on this platform")

	// ErrOnceSignal is returned by Once when the Signal kind is requested;
	// one-shot convenience registrations are not permitted for signals.
	ErrOnceSignal = errors.New("reactor: Once does not support the Signal kind")

	// ErrClosed is returned by Add on a closed Reactor. Other operations do
	// not check for a closed reactor.
	ErrClosed = errors.New("reactor: reactor is closed")
)
