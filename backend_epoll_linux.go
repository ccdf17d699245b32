// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux

package reactor

import (
	"time"

	"golang.org/x/sys/unix"
)

// epollFD tracks the read/write registrants for one file descriptor, the
// direct analogue of the original's per-fd {ev_read, ev_write} slot.
type epollFD struct {
	read, write *Event
}

// epollBackend is the primary readiness backend (Linux): an epoll instance,
// a dense fd table grown by doubling, and a result buffer grown by doubling
// up to maxResultBufferSize - grounded on original_source/include/epoll.cpp.
type epollBackend struct {
	reactor *Reactor
	epfd    int
	fds     []epollFD
	events  []unix.EpollEvent
}

func newDefaultBackend() Backend {
	return &epollBackend{}
}

func (b *epollBackend) init(r *Reactor) error {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return err
	}
	b.reactor = r
	b.epfd = epfd
	b.fds = make([]epollFD, initialFDTableSize)
	b.events = make([]unix.EpollEvent, initialResultBufferSize)
	return nil
}

func (b *epollBackend) recalc(fd int) {
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
	grown := make([]epollFD, n)
	copy(grown, b.fds)
	b.fds = grown
}

func (b *epollBackend) add(ev *Event) error {
	fd := ev.fd
	b.recalc(fd)
	slot := &b.fds[fd]

	var old uint32
	if slot.read != nil {
		old |= unix.EPOLLIN
	}
	if slot.write != nil {
		old |= unix.EPOLLOUT
	}

	op := unix.EPOLL_CTL_ADD
	if old != 0 {
		op = unix.EPOLL_CTL_MOD
	}

	want := old
	if ev.kinds&Read != 0 {
		want |= unix.EPOLLIN
	}
	if ev.kinds&Write != 0 {
		want |= unix.EPOLLOUT
	}

	kev := unix.EpollEvent{Events: want, Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, op, fd, &kev); err != nil {
		b.reactor.logBackendError("epoll_ctl add", err)
		return err
	}

	if ev.kinds&Read != 0 {
		slot.read = ev
	}
	if ev.kinds&Write != 0 {
		slot.write = ev
	}
	return nil
}

func (b *epollBackend) del(ev *Event) error {
	fd := ev.fd
	if fd < 0 || fd >= len(b.fds) {
		return nil
	}
	slot := &b.fds[fd]

	if ev.kinds&Read != 0 {
		slot.read = nil
	}
	if ev.kinds&Write != 0 {
		slot.write = nil
	}

	var want uint32
	if slot.read != nil {
		want |= unix.EPOLLIN
	}
	if slot.write != nil {
		want |= unix.EPOLLOUT
	}

	if want == 0 {
		err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_DEL, fd, nil)
		if err != nil {
			b.reactor.logBackendError("epoll_ctl del", err)
		}
		return err
	}

	kev := unix.EpollEvent{Events: want, Fd: int32(fd)}
	if err := unix.EpollCtl(b.epfd, unix.EPOLL_CTL_MOD, fd, &kev); err != nil {
		b.reactor.logBackendError("epoll_ctl mod", err)
		return err
	}
	return nil
}

func (b *epollBackend) dispatch(r *Reactor, timeout time.Duration) error {
	ms := -1
	if timeout >= 0 {
		ms = int((timeout + 999*time.Microsecond) / time.Millisecond)
		if ms > int(maxBackendTimeout/time.Millisecond) {
			ms = int(maxBackendTimeout / time.Millisecond)
		}
	}

	n, err := unix.EpollWait(b.epfd, b.events, ms)
	if err != nil {
		if err == unix.EINTR {
			if r.sig != nil {
				r.sig.process()
			}
			return nil
		}
		b.reactor.logBackendError("epoll_wait", err)
		return err
	}

	if r.sig != nil && r.sig.caught.Load() {
		r.sig.process()
	}

	for i := 0; i < n; i++ {
		ev := b.events[i]
		fd := int(ev.Fd)
		if fd < 0 || fd >= len(b.fds) {
			continue
		}
		slot := b.fds[fd]

		if ev.Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			if slot.read != nil {
				r.Activate(slot.read, Read, 1)
			}
			if slot.write != nil {
				r.Activate(slot.write, Write, 1)
			}
			continue
		}
		if ev.Events&unix.EPOLLIN != 0 && slot.read != nil {
			r.Activate(slot.read, Read, 1)
		}
		if ev.Events&unix.EPOLLOUT != 0 && slot.write != nil {
			r.Activate(slot.write, Write, 1)
		}
	}

	if n == len(b.events) && len(b.events) < maxResultBufferSize {
		newSize := len(b.events) * 2
		if newSize > maxResultBufferSize {
			newSize = maxResultBufferSize
		}
		b.events = make([]unix.EpollEvent, newSize)
	}

	return nil
}

func (b *epollBackend) dealloc() error {
	b.fds = nil
	b.events = nil
	return unix.Close(b.epfd)
}

func (b *epollBackend) needReinit() bool { return true }
