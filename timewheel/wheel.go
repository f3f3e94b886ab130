/*
Wheel is a hashed timing wheel advanced one bucket per tick.

Every bucket slot a Timer sits in counts as one reference. A Timer fires when the
tick that clears its last reference comes around, so refreshing extends its life
instead of rescheduling it.
*/
package timewheel

import (
	"github.com/moqsien/gkreactor/utils/errs"
)

type State int32

const (
	Scheduled State = iota
	Cancelled
	Fired
)

type TimerFunc func()

type Timer struct {
	id      uint64
	delay   int
	state   State
	refs    int
	task    TimerFunc
	release TimerFunc
}

func (that *Timer) ID() uint64 { return that.id }

func (that *Timer) Delay() int { return that.delay }

func (that *Timer) State() State { return that.state }

func (that *Timer) fire() {
	if that.state == Scheduled {
		that.state = Fired
		if that.task != nil {
			that.task()
		}
	}
	if that.release != nil {
		that.release()
	}
}

type Wheel struct {
	tick    int
	size    int
	buckets [][]*Timer
	timers  map[uint64]*Timer
}

func NewWheel(size int) *Wheel {
	if size < 2 {
		size = 2
	}
	return &Wheel{
		size:    size,
		buckets: make([][]*Timer, size),
		timers:  make(map[uint64]*Timer),
	}
}

func (that *Wheel) Size() int { return that.size }

// Len is the number of timers reachable by id.
func (that *Wheel) Len() int { return len(that.timers) }

// Add schedules task delay ticks from now. A delay below one tick becomes one tick,
// a delay that does not fit in the wheel is rejected. An existing timer with the same
// id is cancelled and replaced.
func (that *Wheel) Add(id uint64, delay int, task TimerFunc) error {
	if delay >= that.size {
		return errs.ErrTimerDelayRange
	}
	if delay < 1 {
		delay = 1
	}
	if old, found := that.timers[id]; found && old.state == Scheduled {
		old.state = Cancelled
	}
	t := &Timer{id: id, delay: delay, task: task}
	t.release = func() {
		if that.timers[id] == t {
			delete(that.timers, id)
		}
	}
	that.timers[id] = t
	that.schedule(t)
	return nil
}

func (that *Wheel) schedule(t *Timer) {
	pos := (that.tick + t.delay) % that.size
	that.buckets[pos] = append(that.buckets[pos], t)
	t.refs++
}

// Refresh adds one more reference delay ticks from now. It reports false for unknown ids.
func (that *Wheel) Refresh(id uint64) bool {
	t, found := that.timers[id]
	if !found {
		return false
	}
	that.schedule(t)
	return true
}

// Cancel skips the task; the timer still drains out of the wheel and releases.
func (that *Wheel) Cancel(id uint64) bool {
	t, found := that.timers[id]
	if !found {
		return false
	}
	if t.state == Scheduled {
		t.state = Cancelled
	}
	return true
}

// Live is Has minus timers that were cancelled or already fired.
func (that *Wheel) Live(id uint64) bool {
	t, found := that.timers[id]
	return found && t.state == Scheduled
}

func (that *Wheel) Has(id uint64) bool {
	_, found := that.timers[id]
	return found
}

// Tick advances one bucket and fires every timer whose last reference was there.
func (that *Wheel) Tick() {
	that.tick = (that.tick + 1) % that.size
	bucket := that.buckets[that.tick]
	that.buckets[that.tick] = nil
	for _, t := range bucket {
		if t.refs--; t.refs == 0 {
			t.fire()
		}
	}
}
