package sequencer

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Loop runs tasks one at a time on a single goroutine.
type Loop interface {
	// Post queues f to run after the tasks already queued.
	Post(f func())
	// AfterFunc queues f once d has elapsed. Timers fire once and are never
	// cancelled; callbacks recheck state before acting.
	AfterFunc(d time.Duration, f func())
}

// EventLoop is a Loop backed by a goroutine running Run.
//
// Post is safe for concurrent use. The queue is unbounded so a task may post
// further tasks without blocking.
type EventLoop struct {
	mu     sync.Mutex
	tasks  []func()
	closed bool
	signal chan struct{}
}

// NewEventLoop creates an idle loop. Call Run to start processing.
func NewEventLoop() *EventLoop {
	return &EventLoop{
		tasks:  make([]func(), 0, 16),
		signal: make(chan struct{}, 1),
	}
}

// Post queues f. Tasks posted after Close are dropped.
func (l *EventLoop) Post(f func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.tasks = append(l.tasks, f)

	select {
	case l.signal <- struct{}{}:
	default:
	}
}

// AfterFunc posts f once d has elapsed.
func (l *EventLoop) AfterFunc(d time.Duration, f func()) {
	time.AfterFunc(d, func() { l.Post(f) })
}

func (l *EventLoop) next() (func(), bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.tasks) == 0 {
		return nil, false
	}
	f := l.tasks[0]
	l.tasks[0] = nil
	l.tasks = l.tasks[1:]
	return f, true
}

func (l *EventLoop) drained() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed && len(l.tasks) == 0
}

// Run executes tasks until ctx is cancelled or the loop is closed and empty.
func (l *EventLoop) Run(ctx context.Context) error {
	for {
		if f, ok := l.next(); ok {
			f()
			continue
		}

		select {
		case <-ctx.Done():
			slog.Debug("sequencer loop stopping: context cancelled")
			l.Close()
			return ctx.Err()
		case <-l.signal:
			if l.drained() {
				return nil
			}
		}
	}
}

// Close stops accepting tasks. Run returns once the queue is empty.
func (l *EventLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return
	}
	l.closed = true
	close(l.signal)
}

// VirtualLoop is a Loop on a simulated clock. Nothing runs until Drain or
// Advance is called. It is not safe for concurrent use.
type VirtualLoop struct {
	now    time.Duration
	seq    uint64
	tasks  []func()
	timers []virtualTimer
}

type virtualTimer struct {
	due time.Duration
	seq uint64
	f   func()
}

// NewVirtualLoop returns a loop with its clock at zero.
func NewVirtualLoop() *VirtualLoop {
	return &VirtualLoop{}
}

// Post queues f.
func (v *VirtualLoop) Post(f func()) {
	v.tasks = append(v.tasks, f)
}

// AfterFunc schedules f at Now()+d.
func (v *VirtualLoop) AfterFunc(d time.Duration, f func()) {
	if d < 0 {
		d = 0
	}
	v.seq++
	v.timers = append(v.timers, virtualTimer{due: v.now + d, seq: v.seq, f: f})
}

// Drain runs queued tasks, including ones they post, without moving the clock.
func (v *VirtualLoop) Drain() {
	for len(v.tasks) > 0 {
		f := v.tasks[0]
		v.tasks[0] = nil
		v.tasks = v.tasks[1:]
		f()
	}
}

// Advance moves the clock forward by d, firing due timers in order and
// draining the queue after each.
func (v *VirtualLoop) Advance(d time.Duration) {
	target := v.now + d
	v.Drain()
	for {
		i := v.earliest(target)
		if i < 0 {
			break
		}
		t := v.timers[i]
		v.timers = slices.Delete(v.timers, i, i+1)
		v.now = t.due
		t.f()
		v.Drain()
	}
	v.now = target
}

func (v *VirtualLoop) earliest(limit time.Duration) int {
	best := -1
	for i, t := range v.timers {
		if t.due > limit {
			continue
		}
		if best < 0 || t.due < v.timers[best].due || (t.due == v.timers[best].due && t.seq < v.timers[best].seq) {
			best = i
		}
	}
	return best
}

// Now is the simulated time since the loop was created.
func (v *VirtualLoop) Now() time.Duration { return v.now }

// Pending counts timers that have not fired.
func (v *VirtualLoop) Pending() int { return len(v.timers) }
