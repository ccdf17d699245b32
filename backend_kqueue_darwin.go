// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// kqueueFD mirrors epollFD: the per-fd read/write registrants, expressed
// over EVFILT_READ/EVFILT_WRITE instead of EPOLLIN/EPOLLOUT.
type kqueueFD struct {
	read, write *Event
}

// kqueueBackend is the secondary readiness backend (Darwin/BSD family),
// sharing the Backend contract's growable fd table and result buffer
// strategy with epollBackend.
type kqueueBackend struct {
	reactor *Reactor
	kq      int
	fds     []kqueueFD
	events  []unix.Kevent_t
}

func newDefaultBackend() Backend {
	return &kqueueBackend{}
}

func (b *kqueueBackend) init(r *Reactor) error {
	kq, err := unix.Kqueue()
	if err != nil {
		return err
	}
	unix.CloseOnExec(kq)
	b.reactor = r
	b.kq = kq
	b.fds = make([]kqueueFD, initialFDTableSize)
	b.events = make([]unix.Kevent_t, initialResultBufferSize)
	return nil
}

func (b *kqueueBackend) recalc(fd int) {
	if fd < len(b.fds) {
		return
	}
	n := len(b.fds)
	if n == 0 {
		n = initialFDTableSize
	}
	for n <= fd {
		n *= 2
	}
	grown := make([]kqueueFD, n)
	copy(grown, b.fds)
	b.fds = grown
}

func (b *kqueueBackend) add(ev *Event) error {
	fd := ev.fd
	b.recalc(fd)
	slot := &b.fds[fd]

	var changes []unix.Kevent_t
	if ev.kinds&Read != 0 && slot.read == nil {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_READ,
			Flags:  unix.EV_ADD | unix.EV_ENABLE,
		})
	}
	if ev.kinds&Write != 0 && slot.write == nil {
		changes = append(changes, unix.Kevent_t{
			Ident:  uint64(fd),
			Filter: unix.EVFILT_WRITE,
			Flags:  unix.EV_ADD | unix.EV_ENABLE,
		})
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
			b.reactor.logBackendError("kevent add", err)
			return err
		}
	}

	if ev.kinds&Read != 0 {
		slot.read = ev
	}
	if ev.kinds&Write != 0 {
		slot.write = ev
	}
	return nil
}

func (b *kqueueBackend) del(ev *Event) error {
	fd := ev.fd
	if fd < 0 || fd >= len(b.fds) {
		return nil
	}
	slot := &b.fds[fd]

	var changes []unix.Kevent_t
	if ev.kinds&Read != 0 {
		slot.read = nil
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_READ, Flags: unix.EV_DELETE})
	}
	if ev.kinds&Write != 0 {
		slot.write = nil
		changes = append(changes, unix.Kevent_t{Ident: uint64(fd), Filter: unix.EVFILT_WRITE, Flags: unix.EV_DELETE})
	}
	if len(changes) > 0 {
		if _, err := unix.Kevent(b.kq, changes, nil, nil); err != nil {
			b.reactor.logBackendError("kevent del", err)
			return err
		}
	}
	return nil
}

func (b *kqueueBackend) dispatch(r *Reactor, timeout time.Duration) error {
	var ts *unix.Timespec
	if timeout >= 0 {
		t := unix.NsecToTimespec(timeout.Nanoseconds())
		ts = &t
	}

	n, err := unix.Kevent(b.kq, nil, b.events, ts)
	if err != nil {
		if err == unix.EINTR {
			if r.sig != nil {
				r.sig.process()
			}
			return nil
		}
		b.reactor.logBackendError("kevent wait", err)
		return err
	}

	if r.sig != nil && r.sig.caught.Load() {
		r.sig.process()
	}

	for i := 0; i < n; i++ {
		kev := b.events[i]
		fd := int(kev.Ident)
		if fd < 0 || fd >= len(b.fds) {
			continue
		}
		slot := b.fds[fd]

		if kev.Flags&unix.EV_EOF != 0 || kev.Flags&unix.EV_ERROR != 0 {
			if slot.read != nil {
				r.Activate(slot.read, Read, 1)
			}
			if slot.write != nil {
				r.Activate(slot.write, Write, 1)
			}
			continue
		}
		switch kev.Filter {
		case unix.EVFILT_READ:
			if slot.read != nil {
				r.Activate(slot.read, Read, 1)
			}
		case unix.EVFILT_WRITE:
			if slot.write != nil {
				r.Activate(slot.write, Write, 1)
			}
		}
	}

	if n == len(b.events) && len(b.events) < maxResultBufferSize {
		newSize := len(b.events) * 2
		if newSize > maxResultBufferSize {
			newSize = maxResultBufferSize
		}
		b.events = make([]unix.Kevent_t, newSize)
	}

	return nil
}

func (b *kqueueBackend) dealloc() error {
	b.fds = nil
	b.events = nil
	return unix.Close(b.kq)
}

func (b *kqueueBackend) needReinit() bool { return true }
