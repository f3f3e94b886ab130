package eloop

import "net"

type IteratorFunc func(key int, val *EventLoop) bool

// IBalancer picks the loop a new connection is bound to.
type IBalancer interface {
	Register(*EventLoop)
	Next(addr ...net.Addr) *EventLoop
	Iterator(f IteratorFunc)
	Len() int
}
