package balancer

import (
	"net"

	"github.com/moqsien/gkreactor/eloop"
)

type RoundRobin struct {
	eloopList []*eloop.EventLoop
	size      int
	nextIndex int
}

func NewRoundRobin() *RoundRobin { return &RoundRobin{} }

func (that *RoundRobin) Len() int { return that.size }

func (that *RoundRobin) Iterator(f eloop.IteratorFunc) {
	for key, val := range that.eloopList {
		if !f(key, val) {
			break
		}
	}
}

func (that *RoundRobin) Register(e *eloop.EventLoop) {
	that.eloopList = append(that.eloopList, e)
	that.size++
}

// Next is only called from the base loop, so the cursor needs no lock.
func (that *RoundRobin) Next(_ ...net.Addr) (e *eloop.EventLoop) {
	e = that.eloopList[that.nextIndex]
	if that.nextIndex++; that.nextIndex >= that.size {
		that.nextIndex = 0
	}
	return
}
