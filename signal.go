// Copyright 2025 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package reactor

import (
	"container/list"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

// activeSignalReactor enforces the process-wide rule that only one reactor
// may have signal events armed at a time, since POSIX signal delivery is
// inherently process-global. This replaces the original's bare global
// pointer with a mutex-guarded holder that rejects a second claimant
// instead of silently stealing delivery.
var activeSignalReactor struct {
	sync.Mutex
	owner *Reactor
}

// signalRelay converts signal delivery into an ordinary readable self-pipe
// event on the owning reactor. The original design installs a raw,
// async-signal-safe sigaction handler; Go's runtime owns signal delivery
// and multiplexes all handlers internally, so installing a competing raw
// handler isn't safe here. Instead, os/signal.Notify asks the runtime's own
// (already async-signal-safe) machinery to deliver signals onto a channel,
// and a narrow relay goroutine turns channel receipt into the self-pipe
// write.
type signalRelay struct {
	reactor *Reactor

	mu          sync.Mutex
	subscribers map[int]*list.List // signum -> list of *Event
	pending     map[int]*atomic.Int64
	armed       map[int]bool

	notifyCh chan os.Signal
	stopCh   chan struct{}
	stopOnce sync.Once

	readFD, writeFD int
	selfEvent       *Event

	caught atomic.Bool
}

func newSignalRelay(r *Reactor) (*signalRelay, error) {
	activeSignalReactor.Lock()
	if activeSignalReactor.owner != nil && activeSignalReactor.owner != r {
		activeSignalReactor.Unlock()
		return nil, ErrSignalReactorBusy
	}
	activeSignalReactor.owner = r
	activeSignalReactor.Unlock()

	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_STREAM, 0)
	if err != nil {
		releaseSignalReactor(r)
		return nil, err
	}
	if err := unix.SetNonblock(fds[0], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		releaseSignalReactor(r)
		return nil, err
	}
	if err := unix.SetNonblock(fds[1], true); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		releaseSignalReactor(r)
		return nil, err
	}

	sr := &signalRelay{
		reactor:     r,
		subscribers: make(map[int]*list.List),
		pending:     make(map[int]*atomic.Int64),
		armed:       make(map[int]bool),
		notifyCh:    make(chan os.Signal, 64),
		stopCh:      make(chan struct{}),
		readFD:      fds[0],
		writeFD:     fds[1],
	}

	sr.selfEvent = r.newInternalEvent(sr.readFD, Read|Persist, sr.drainSelfPipe)
	if err := r.Add(sr.selfEvent, nil); err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		releaseSignalReactor(r)
		return nil, err
	}

	go sr.loop()

	return sr, nil
}

func releaseSignalReactor(r *Reactor) {
	activeSignalReactor.Lock()
	if activeSignalReactor.owner == r {
		activeSignalReactor.owner = nil
	}
	activeSignalReactor.Unlock()
}

func (sr *signalRelay) loop() {
	for {
		select {
		case sig := <-sr.notifyCh:
			signum := int(sig.(syscall.Signal))
			sr.mu.Lock()
			counter := sr.pending[signum]
			sr.mu.Unlock()
			if counter == nil {
				continue
			}
			counter.Add(1)
			sr.caught.Store(true)
			sr.wake()
		case <-sr.stopCh:
			return
		}
	}
}

// wake performs the best-effort, non-blocking self-pipe write. A full pipe
// (EAGAIN/EWOULDBLOCK) is tolerated exactly as the original tolerates EAGAIN
// on its raw send(); any other error is logged and otherwise ignored, since
// a dropped wakeup just delays signal processing until the next tick rather
// than losing the signal count itself.
func (sr *signalRelay) wake() {
	_, err := unix.Write(sr.writeFD, []byte{1})
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		sr.reactor.logSelfPipeWriteError(err)
	}
}

func (sr *signalRelay) drainSelfPipe(fd int, kinds Kind, arg any) {
	var buf [64]byte
	for {
		n, err := unix.Read(sr.readFD, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// subscribe arms signal s for delivery (if not already armed) and appends
// ev to s's subscriber list.
func (sr *signalRelay) subscribe(s int, ev *Event) error {
	sr.mu.Lock()
	defer sr.mu.Unlock()

	if _, ok := sr.subscribers[s]; !ok {
		sr.subscribers[s] = list.New()
		sr.pending[s] = &atomic.Int64{}
	}
	if !sr.armed[s] {
		signal.Notify(sr.notifyCh, syscall.Signal(s))
		sr.armed[s] = true
	}
	ev.signalElem = sr.subscribers[s].PushBack(ev)
	return nil
}

// unsubscribe removes ev from s's subscriber list, disarming s (and, if no
// signals remain armed, tearing the whole relay down) when it was the last
// subscriber.
func (sr *signalRelay) unsubscribe(s int, ev *Event) error {
	sr.mu.Lock()
	subs, ok := sr.subscribers[s]
	if !ok || ev.signalElem == nil {
		sr.mu.Unlock()
		return nil
	}
	subs.Remove(ev.signalElem)
	ev.signalElem = nil
	empty := subs.Len() == 0
	if empty {
		delete(sr.subscribers, s)
		delete(sr.pending, s)
	}
	anyLeft := len(sr.subscribers) > 0
	sr.mu.Unlock()

	if empty {
		sr.disarm(s)
	}
	if !anyLeft {
		return sr.teardown()
	}
	return nil
}

// disarm stops relaying s. signal.Stop only disables an entire channel, so
// disarming a single signal re-registers the channel against whatever
// signals remain armed - acceptable since this is not a hot path.
func (sr *signalRelay) disarm(s int) {
	sr.mu.Lock()
	delete(sr.armed, s)
	remaining := make([]os.Signal, 0, len(sr.armed))
	for sig := range sr.armed {
		remaining = append(remaining, syscall.Signal(sig))
	}
	sr.mu.Unlock()

	signal.Stop(sr.notifyCh)
	if len(remaining) > 0 {
		signal.Notify(sr.notifyCh, remaining...)
	}
}

// teardown deregisters the self-pipe event and stops the relay goroutine.
// Called once the last signal subscriber anywhere on the reactor detaches.
// Clears the reactor's reference to sr so a later signal registration
// builds a fresh relay instead of reusing this dead one.
func (sr *signalRelay) teardown() error {
	signal.Stop(sr.notifyCh)
	sr.stopOnce.Do(func() { close(sr.stopCh) })
	if err := sr.reactor.Del(sr.selfEvent); err != nil {
		return err
	}
	unix.Close(sr.readFD)
	unix.Close(sr.writeFD)
	releaseSignalReactor(sr.reactor)
	if sr.reactor.sig == sr {
		sr.reactor.sig = nil
	}
	return nil
}

// process drains every signal's pending count, activating each subscriber.
// Each counter is read and zeroed in one atomic swap, so a count that the
// relay goroutine adds concurrently with this scan is never lost: it lands
// either in this snapshot or in the counter for the next pass.
func (sr *signalRelay) process() {
	sr.caught.Store(false)

	sr.mu.Lock()
	type firing struct {
		signum int
		n      int64
		subs   []*Event
	}
	var fires []firing
	for signum, counter := range sr.pending {
		n := counter.Swap(0)
		if n == 0 {
			continue
		}
		subs, ok := sr.subscribers[signum]
		if !ok {
			continue
		}
		snapshot := make([]*Event, 0, subs.Len())
		for e := subs.Front(); e != nil; e = e.Next() {
			snapshot = append(snapshot, e.Value.(*Event))
		}
		fires = append(fires, firing{signum: signum, n: n, subs: snapshot})
	}
	sr.mu.Unlock()

	for _, f := range fires {
		for _, ev := range f.subs {
			if ev.kinds&Persist == 0 {
				_ = sr.reactor.Del(ev)
			}
			sr.reactor.Activate(ev, Signal, int(f.n))
		}
	}
}
