package iface

import "time"

type Balancer int

const (
	RoundRobinLB Balancer = 0
	LeastConnLB  Balancer = 1
)

const (
	DefaultTickInterval   = time.Second
	DefaultWheelSize      = 60
	DefaultReadBufferSize = 64 << 10
	DefaultBufferSize     = 1024
)
