package balancer

import (
	"github.com/moqsien/gkreactor/eloop"
	"github.com/moqsien/gkreactor/iface"
)

// New returns the balancer for kind, round robin when kind is unknown.
func New(kind iface.Balancer) eloop.IBalancer {
	switch kind {
	case iface.LeastConnLB:
		return NewLeastConn()
	default:
		return NewRoundRobin()
	}
}
