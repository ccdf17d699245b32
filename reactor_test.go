package reactor

import (
	"testing"
	"time"
)

// fakeBackend is a no-op Backend used to exercise the reactor's own
// dispatch logic (priority draining, timer processing, loopbreak) without
// depending on a real kernel readiness mechanism. Readiness is injected
// directly via Reactor.Activate in these tests, the same way the backend
// itself would on a real wakeup.
type fakeBackend struct {
	addCalls, delCalls int
	dispatchCalls      int
}

func (b *fakeBackend) init(*Reactor) error    { return nil }
func (b *fakeBackend) add(*Event) error       { b.addCalls++; return nil }
func (b *fakeBackend) del(*Event) error       { b.delCalls++; return nil }
func (b *fakeBackend) dealloc() error         { return nil }
func (b *fakeBackend) needReinit() bool       { return false }
func (b *fakeBackend) dispatch(*Reactor, time.Duration) error {
	b.dispatchCalls++
	return nil
}

func newTestReactor(t *testing.T, bands int) (*Reactor, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	r, err := New(WithBackend(fb), WithPriorityBands(bands))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return r, fb
}

// S1 - Timer ordering.
func TestReactor_TimerOrdering(t *testing.T) {
	r, _ := newTestReactor(t, 1)

	var order []string
	register := func(name string, d time.Duration) {
		ev := r.NewEvent(-1, Timeout, func(int, Kind, any) {
			order = append(order, name)
		}, nil)
		if err := r.Add(ev, &d); err != nil {
			t.Fatalf("Add(%s) error = %v", name, err)
		}
	}
	register("A", 30*time.Millisecond)
	register("B", 10*time.Millisecond)
	register("C", 20*time.Millisecond)

	deadline := time.Now().Add(200 * time.Millisecond)
	for len(order) < 3 && time.Now().Before(deadline) {
		if err := r.Run(LoopOnce); err != nil {
			t.Fatalf("Run() error = %v", err)
		}
	}

	want := []string{"B", "C", "A"}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

// S3 - Priority.
func TestReactor_PriorityDraining(t *testing.T) {
	r, _ := newTestReactor(t, 3)

	var order []string
	mk := func(name string, pri int) *Event {
		ev := r.NewEvent(-1, Read, func(int, Kind, any) {
			order = append(order, name)
		}, nil)
		ev.priority = pri
		return ev
	}

	band2a := mk("2a", 2)
	band2b := mk("2b", 2)
	band0 := mk("0", 0)
	for i, ev := range []*Event{band2a, band2b, band0} {
		if err := r.Add(ev, nil); err != nil {
			t.Fatalf("Add(%d) error = %v", i, err)
		}
	}

	r.Activate(band2a, Read, 1)
	r.Activate(band2b, Read, 1)
	r.Activate(band0, Read, 1)

	if err := r.Run(LoopOnce); err != nil {
		t.Fatalf("Run() error = %v", err)
	}

	if len(order) == 0 || order[0] != "0" {
		t.Fatalf("order = %v, want band 0 event first", order)
	}
}

// S5 - Loopbreak.
func TestReactor_LoopBreak(t *testing.T) {
	r, _ := newTestReactor(t, 1)

	var calls int
	first := r.NewEvent(-1, Read, func(int, Kind, any) {
		calls++
		r.LoopBreak()
	}, nil)
	second := r.NewEvent(-1, Read, func(int, Kind, any) {
		calls++
	}, nil)
	for i, ev := range []*Event{first, second} {
		if err := r.Add(ev, nil); err != nil {
			t.Fatalf("Add(%d) error = %v", i, err)
		}
	}

	r.Activate(first, Read, 1)
	r.Activate(second, Read, 1)

	if err := r.Run(0); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1 (second event should not fire this tick)", calls)
	}
}

// Boundary: dispatch with an empty registry returns ErrNoEvents.
func TestReactor_Run_EmptyRegistry(t *testing.T) {
	r, _ := newTestReactor(t, 1)
	if err := r.Run(0); err != ErrNoEvents {
		t.Fatalf("Run() = %v, want ErrNoEvents", err)
	}
}

// Round-trip: Add then Del leaves no observable registration.
func TestReactor_AddDel_RoundTrip(t *testing.T) {
	r, fb := newTestReactor(t, 1)
	ev := r.NewEvent(3, Read, func(int, Kind, any) {}, nil)

	if err := r.Add(ev, nil); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if fb.addCalls != 1 {
		t.Fatalf("addCalls = %d, want 1", fb.addCalls)
	}
	if err := r.Del(ev); err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if fb.delCalls != 1 {
		t.Fatalf("delCalls = %d, want 1", fb.delCalls)
	}
	if ev.flags&(flagInserted|flagActive|flagTimeout) != 0 {
		t.Fatalf("flags = %x, want no queue membership", ev.flags)
	}
}

// Del on an event not in any queue is a no-op.
func TestReactor_Del_NotRegistered(t *testing.T) {
	r, fb := newTestReactor(t, 1)
	ev := r.NewEvent(-1, Timeout, func(int, Kind, any) {}, nil)

	if err := r.Del(ev); err != nil {
		t.Fatalf("Del() error = %v", err)
	}
	if fb.delCalls != 0 {
		t.Fatalf("delCalls = %d, want 0", fb.delCalls)
	}
}

// Re-activating a already-active event folds the reason mask instead of
// duplicating the queue entry.
func TestReactor_Activate_Coalesces(t *testing.T) {
	r, _ := newTestReactor(t, 1)
	ev := r.NewEvent(1, Read|Write, func(int, Kind, any) {}, nil)

	r.Activate(ev, Read, 1)
	r.Activate(ev, Write, 1)

	if ev.res != Read|Write {
		t.Fatalf("res = %v, want Read|Write", ev.res)
	}
	if r.active[ev.priority].Len() != 1 {
		t.Fatalf("active queue length = %d, want 1", r.active[ev.priority].Len())
	}
}

func TestReactor_PriorityInit_RefusedWhileActive(t *testing.T) {
	r, _ := newTestReactor(t, 2)
	ev := r.NewEvent(-1, Read, func(int, Kind, any) {}, nil)
	r.Activate(ev, Read, 1)

	if err := r.PriorityInit(4); err != ErrPriorityActive {
		t.Fatalf("PriorityInit() = %v, want ErrPriorityActive", err)
	}
}

// S6 - Timer rebase under a simulated backward clock jump.
func TestReactor_TimeoutCorrect_BackwardJump(t *testing.T) {
	base := time.Unix(1000, 0)
	now := base
	clock := func() time.Time { return now }

	fb := &fakeBackend{}
	r, err := New(WithBackend(fb), WithClock(clock, false))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	d := 100 * time.Millisecond
	ev := r.NewEvent(-1, Timeout, func(int, Kind, any) {}, nil)
	if err := r.Add(ev, &d); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	wantDeadline := ev.deadline

	now = base.Add(-1 * time.Second) // backward jump
	r.timeoutCorrect()

	gotShift := wantDeadline.Sub(ev.deadline)
	if gotShift != time.Second {
		t.Fatalf("deadline shifted by %v, want %v", gotShift, time.Second)
	}
}

func TestReactor_Once_RejectsSignal(t *testing.T) {
	r, _ := newTestReactor(t, 1)
	err := r.Once(1, Signal, func(int, Kind, any) {}, nil, nil)
	if err != ErrOnceSignal {
		t.Fatalf("Once() = %v, want ErrOnceSignal", err)
	}
}
