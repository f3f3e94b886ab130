//go:build linux

/*
EventLoop owns one epoll instance, one wakeup eventfd and one timer wheel. The
goroutine that calls New is locked to its OS thread and becomes the owner: only it
may call Start, and everything registered on the loop runs there.
*/
package eloop

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/eapache/queue"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/iface"
	"github.com/moqsien/gkreactor/poll"
	"github.com/moqsien/gkreactor/sys"
	"github.com/moqsien/gkreactor/timewheel"
	"github.com/moqsien/gkreactor/utils/errs"
)

type Task func()

type EventLoop struct {
	Index     int                   // index in the loop pool, -1 for a standalone loop
	threadId  int64                 // OS thread owning the loop, 0 once released
	poller    *poll.Poller          // epoll and the fd registry
	wakeupFd  int                   // eventfd used to interrupt epoll_wait
	wakeupCh  *poll.Channel         // channel of wakeupFd
	wheel     *timewheel.TimerWheel // timerfd driven wheel
	mu        sync.Mutex            // guards pending and closed
	pending   *queue.Queue          // tasks queued from any goroutine
	running   *queue.Queue          // tasks of the current round, loop only
	closed    bool                  // resources released, no more wakeups
	quit      int32                 // set by Stop
	connCount int32                 // connections bound to this loop
	options   *iface.Options        // parsed options
	logger    logrus.FieldLogger    // injected logger
}

// New locks the calling goroutine to its OS thread and builds a loop owned by it.
func New(opts ...iface.Option) (*EventLoop, error) {
	runtime.LockOSThread()
	options := iface.ParseOptions(opts...)
	loop := &EventLoop{
		Index:    -1,
		threadId: int64(unix.Gettid()),
		pending:  queue.New(),
		running:  queue.New(),
		options:  options,
		logger:   options.Logger,
	}

	var err error
	if loop.poller, err = poll.NewPoller(); err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}
	if loop.wakeupFd, err = sys.CreateEventFd(); err != nil {
		_ = loop.poller.Close()
		runtime.UnlockOSThread()
		return nil, err
	}
	loop.wakeupCh = poll.NewChannel(loop, loop.wakeupFd)
	loop.wakeupCh.SetReadCallback(loop.handleWakeup)
	loop.wakeupCh.EnableRead()

	if loop.wheel, err = timewheel.New(loop, options.WheelSize, options.TickInterval, loop.logger); err != nil {
		_ = sys.CloseFd(loop.wakeupFd)
		_ = loop.poller.Close()
		runtime.UnlockOSThread()
		return nil, err
	}
	return loop, nil
}

func (that *EventLoop) Options() *iface.Options { return that.options }

func (that *EventLoop) Logger() logrus.FieldLogger { return that.logger }

func (that *EventLoop) IsInLoop() bool {
	return int64(unix.Gettid()) == atomic.LoadInt64(&that.threadId)
}

func (that *EventLoop) AssertInLoop() {
	if !that.IsInLoop() {
		panic(errs.ErrNotInLoop)
	}
}

// Start runs poll, dispatch and queued tasks until Stop. It releases the loop's
// descriptors and unlocks the OS thread on return.
func (that *EventLoop) Start() {
	that.AssertInLoop()
	defer runtime.UnlockOSThread()
	defer that.release()

	that.logger.WithField("loop", that.Index).Debug("event loop started")
	active := make([]*poll.Channel, 0, sys.InitPollSize)
	var err error
	for atomic.LoadInt32(&that.quit) == 0 {
		active, err = that.poller.Poll(active[:0])
		if err != nil {
			that.logger.WithField("loop", that.Index).Errorf("poll failed: %v", err)
			panic(err)
		}
		for _, ch := range active {
			ch.HandleEvent()
		}
		that.runTasks()
	}
	// tasks queued before Stop still run
	that.runTasks()
	that.logger.WithField("loop", that.Index).Debug("event loop stopped")
}

// Stop asks the loop to return from Start after the current round. Safe from any goroutine.
func (that *EventLoop) Stop() {
	atomic.StoreInt32(&that.quit, 1)
	that.wakeup()
}

func (that *EventLoop) Stopped() bool {
	return atomic.LoadInt32(&that.quit) == 1
}

// Close releases a loop that was never started.
func (that *EventLoop) Close() {
	that.AssertInLoop()
	atomic.StoreInt32(&that.quit, 1)
	that.release()
	runtime.UnlockOSThread()
}

func (that *EventLoop) release() {
	that.mu.Lock()
	that.closed = true
	that.mu.Unlock()

	if err := that.wheel.Close(); err != nil {
		that.logger.WithField("loop", that.Index).Warningf("close timer wheel: %v", err)
	}
	that.wakeupCh.DisableAll()
	that.wakeupCh.Remove()
	_ = sys.CloseFd(that.wakeupFd)
	_ = that.poller.Close()
	// the OS thread goes back to the scheduler
	atomic.StoreInt64(&that.threadId, 0)
}

// RunInLoop runs task now when called on the loop, otherwise queues it.
func (that *EventLoop) RunInLoop(task Task) {
	if that.IsInLoop() {
		task()
		return
	}
	that.QueueInLoop(task)
}

// QueueInLoop appends task for the next round and wakes the loop. Tasks run in
// the order they were queued.
func (that *EventLoop) QueueInLoop(task Task) {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.closed {
		that.logger.WithField("loop", that.Index).Warning(errs.ErrLoopStopped)
		return
	}
	that.pending.Add(task)
	if err := sys.Trigger(that.wakeupFd); err != nil {
		that.logger.WithField("loop", that.Index).Errorf("wakeup: %v", err)
	}
}

func (that *EventLoop) wakeup() {
	that.mu.Lock()
	defer that.mu.Unlock()
	if that.closed {
		return
	}
	if err := sys.Trigger(that.wakeupFd); err != nil {
		that.logger.WithField("loop", that.Index).Errorf("wakeup: %v", err)
	}
}

func (that *EventLoop) handleWakeup() {
	if _, err := sys.Drain(that.wakeupFd); err != nil {
		that.logger.WithField("loop", that.Index).Errorf("drain wakeup: %v", err)
	}
}

// runTasks swaps the pending queue out under the lock and runs it outside, so a
// task may queue more work for the next round.
func (that *EventLoop) runTasks() {
	that.mu.Lock()
	that.pending, that.running = that.running, that.pending
	that.mu.Unlock()

	for that.running.Length() > 0 {
		that.running.Remove().(Task)()
	}
}

// UpdateEvent implements poll.Updater.
func (that *EventLoop) UpdateEvent(ch *poll.Channel) {
	if err := that.poller.UpdateEvent(ch); err != nil {
		that.logger.WithFields(logrus.Fields{"loop": that.Index, "fd": ch.GetFd()}).Errorf("update event: %v", err)
	}
}

// RemoveEvent implements poll.Updater.
func (that *EventLoop) RemoveEvent(ch *poll.Channel) {
	if err := that.poller.RemoveEvent(ch); err != nil {
		that.logger.WithFields(logrus.Fields{"loop": that.Index, "fd": ch.GetFd()}).Errorf("remove event: %v", err)
	}
}

func (that *EventLoop) HasChannel(ch *poll.Channel) bool {
	that.AssertInLoop()
	return that.poller.HasChannel(ch)
}

// TimerAdd schedules task delay ticks from now under id.
func (that *EventLoop) TimerAdd(id uint64, delay int, task timewheel.TimerFunc) {
	that.RunInLoop(func() {
		if err := that.wheel.Add(id, delay, task); err != nil {
			that.logger.WithFields(logrus.Fields{"loop": that.Index, "timer_id": id, "delay": delay}).Warning(err)
		}
	})
}

func (that *EventLoop) TimerRefresh(id uint64) {
	that.RunInLoop(func() {
		that.wheel.Refresh(id)
	})
}

func (that *EventLoop) TimerCancel(id uint64) {
	that.RunInLoop(func() {
		that.wheel.Cancel(id)
	})
}

// HasTimer must be called on the loop.
func (that *EventLoop) HasTimer(id uint64) bool {
	that.AssertInLoop()
	return that.wheel.Has(id)
}

// TimerLive reports whether id has a timer whose task is still due. Loop only.
func (that *EventLoop) TimerLive(id uint64) bool {
	that.AssertInLoop()
	return that.wheel.Live(id)
}

func (that *EventLoop) AddConnCount(i int32) {
	atomic.AddInt32(&that.connCount, i)
}

func (that *EventLoop) ConnCount() int32 {
	return atomic.LoadInt32(&that.connCount)
}
