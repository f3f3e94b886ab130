package iface

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moqsien/gkreactor/utils"
)

// Options is shared by loops, the loop pool and the server; zero values fall back to defaults.
type Options struct {
	NumOfLoops      int                // number of sub loops, 0 runs everything on the base loop
	LoadBalancer    Balancer           // how new connections are spread across loops
	TickInterval    time.Duration      // timer wheel tick, default 1s
	WheelSize       int                // timer wheel buckets, default 60
	ReadBufferSize  int                // scratch size for one recv, default 64KiB
	ConnKeepAlive   time.Duration      // TCP keep-alive on accepted sockets, 0 disables it
	ReuseAddr       bool               // SO_REUSEADDR on the listener
	ReusePort       bool               // SO_REUSEPORT on the listener
	InactiveTimeout int                // idle release in ticks for accepted connections, 0 disables it
	Logger          logrus.FieldLogger // injected structured logger
}

type Option = func(opts *Options)

// ParseOptions applies opts over the defaults.
func ParseOptions(opts ...Option) *Options {
	options := new(Options)
	for _, opt := range opts {
		opt(options)
	}
	options.normalize()
	return options
}

func (that *Options) normalize() {
	if that.NumOfLoops < 0 {
		that.NumOfLoops = 0
	}
	if that.TickInterval <= 0 {
		that.TickInterval = DefaultTickInterval
	}
	if that.WheelSize <= 1 {
		that.WheelSize = DefaultWheelSize
	}
	if that.ReadBufferSize <= 0 {
		that.ReadBufferSize = DefaultReadBufferSize
	}
	if that.InactiveTimeout < 0 {
		that.InactiveTimeout = 0
	}
	if that.Logger == nil {
		that.Logger = utils.NewLogger()
	}
}

// WithOptions replaces every field at once.
func WithOptions(options Options) Option {
	return func(opts *Options) {
		*opts = options
	}
}

func WithNumOfLoops(n int) Option {
	return func(opts *Options) {
		opts.NumOfLoops = n
	}
}

func WithLoadBalancer(lb Balancer) Option {
	return func(opts *Options) {
		opts.LoadBalancer = lb
	}
}

func WithTickInterval(d time.Duration) Option {
	return func(opts *Options) {
		opts.TickInterval = d
	}
}

func WithWheelSize(size int) Option {
	return func(opts *Options) {
		opts.WheelSize = size
	}
}

func WithReadBufferSize(size int) Option {
	return func(opts *Options) {
		opts.ReadBufferSize = size
	}
}

//WithConnKeepAlive TCP keep-alive for accepted connections
func WithConnKeepAlive(d time.Duration) Option {
	return func(opts *Options) {
		opts.ConnKeepAlive = d
	}
}

func WithReuseAddr(reuse bool) Option {
	return func(opts *Options) {
		opts.ReuseAddr = reuse
	}
}

func WithReusePort(reuse bool) Option {
	return func(opts *Options) {
		opts.ReusePort = reuse
	}
}

//WithInactiveTimeout release connections idle for the given number of ticks
func WithInactiveTimeout(ticks int) Option {
	return func(opts *Options) {
		opts.InactiveTimeout = ticks
	}
}

func WithLogger(logger logrus.FieldLogger) Option {
	return func(opts *Options) {
		opts.Logger = logger
	}
}
