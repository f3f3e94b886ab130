package balancer

import (
	"net"

	"github.com/moqsien/gkreactor/eloop"
)

type LeastConn struct {
	eloopList []*eloop.EventLoop
	size      int
}

func NewLeastConn() *LeastConn { return &LeastConn{} }

func (that *LeastConn) Len() int { return that.size }

func (that *LeastConn) Iterator(f eloop.IteratorFunc) {
	for k, v := range that.eloopList {
		if !f(k, v) {
			break
		}
	}
}

func (that *LeastConn) Register(e *eloop.EventLoop) {
	that.eloopList = append(that.eloopList, e)
	that.size++
}

// Next picks the loop with the fewest live connections, the earliest one on ties.
func (that *LeastConn) Next(_ ...net.Addr) (e *eloop.EventLoop) {
	e = that.eloopList[0]
	for _, v := range that.eloopList[1:] {
		if v.ConnCount() < e.ConnCount() {
			e = v
		}
	}
	return
}
