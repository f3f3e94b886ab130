//go:build linux

package eloop

import (
	"fmt"

	"github.com/moqsien/gkreactor/iface"
)

// LoopThread builds an EventLoop on the goroutine that will run it and hands the
// loop back once it is ready.
type LoopThread struct {
	Index   int
	options []iface.Option
	loop    *EventLoop
	err     error
	ready   chan struct{}
	done    chan struct{}
}

func NewLoopThread(opts ...iface.Option) *LoopThread {
	return &LoopThread{
		Index:   -1,
		options: opts,
		ready:   make(chan struct{}),
		done:    make(chan struct{}),
	}
}

func (that *LoopThread) run() {
	defer close(that.done)
	loop, err := New(that.options...)
	if err == nil {
		loop.Index = that.Index
	}
	that.loop, that.err = loop, err
	close(that.ready)
	if err != nil {
		return
	}
	loop.Start()
}

// Start runs the loop on a fresh goroutine.
func (that *LoopThread) Start() (*EventLoop, error) {
	go that.run()
	return that.Loop()
}

// StartWith runs the loop on whatever submit schedules it on, e.g. an ants pool.
func (that *LoopThread) StartWith(submit func(task func()) error) (*EventLoop, error) {
	if err := submit(that.run); err != nil {
		return nil, fmt.Errorf("submit loop thread: %w", err)
	}
	return that.Loop()
}

// Loop blocks until the loop has been constructed.
func (that *LoopThread) Loop() (*EventLoop, error) {
	<-that.ready
	return that.loop, that.err
}

// Done is closed once the loop has returned from Start.
func (that *LoopThread) Done() <-chan struct{} {
	return that.done
}
