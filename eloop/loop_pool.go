//go:build linux

package eloop

import (
	"github.com/panjf2000/ants/v2"

	"github.com/moqsien/gkreactor/iface"
)

// LoopPool hosts the sub loops on an ants goroutine pool. With no sub loops every
// connection stays on the base loop.
type LoopPool struct {
	base     *EventLoop
	num      int
	balancer IBalancer
	options  []iface.Option
	pool     *ants.Pool
	threads  []*LoopThread
	onPanic  func(p interface{})
}

func NewLoopPool(base *EventLoop, num int, balancer IBalancer, opts ...iface.Option) *LoopPool {
	return &LoopPool{
		base:     base,
		num:      num,
		balancer: balancer,
		options:  opts,
		// a sub loop that died would still be handed connections by the balancer
		onPanic: func(p interface{}) {
			base.Logger().Fatalf("event loop panicked: %v", p)
		},
	}
}

func (that *LoopPool) SetThreadCount(num int) {
	if num < 0 {
		num = 0
	}
	that.num = num
}

func (that *LoopPool) ThreadCount() int { return that.num }

// Start creates every sub loop and registers it with the balancer. A sub loop that
// panics ends the process.
func (that *LoopPool) Start() (err error) {
	if that.num == 0 {
		return nil
	}
	that.pool, err = ants.NewPool(that.num, ants.WithPanicHandler(that.onPanic))
	if err != nil {
		return err
	}
	for i := 0; i < that.num; i++ {
		lt := NewLoopThread(that.options...)
		lt.Index = i
		loop, err := lt.StartWith(that.pool.Submit)
		if err != nil {
			that.Stop()
			return err
		}
		that.threads = append(that.threads, lt)
		that.balancer.Register(loop)
	}
	return nil
}

// NextLoop returns the base loop when there are no sub loops.
func (that *LoopPool) NextLoop() *EventLoop {
	if that.num == 0 || that.balancer.Len() == 0 {
		return that.base
	}
	return that.balancer.Next()
}

func (that *LoopPool) Loops() (loops []*EventLoop) {
	if that.balancer.Len() == 0 {
		return []*EventLoop{that.base}
	}
	that.balancer.Iterator(func(_ int, loop *EventLoop) bool {
		loops = append(loops, loop)
		return true
	})
	return
}

// Stop stops every sub loop, waits for them to return and releases the pool.
func (that *LoopPool) Stop() {
	for _, lt := range that.threads {
		if loop, err := lt.Loop(); err == nil {
			loop.Stop()
		}
	}
	for _, lt := range that.threads {
		<-lt.Done()
	}
	that.threads = nil
	if that.pool != nil {
		that.pool.Release()
		that.pool = nil
	}
}
