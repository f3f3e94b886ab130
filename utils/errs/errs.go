package errs

import "errors"

var (
	ErrWouldBlock       = errors.New("operation would block")
	ErrLoopStopped      = errors.New("event loop has been stopped")
	ErrNotInLoop        = errors.New("called outside of the owning event loop")
	ErrTimerDelayRange  = errors.New("timer delay exceeds the wheel size")
	ErrConnClosed       = errors.New("connection is closed")
	ErrInvalidKeepAlive = errors.New("invalid keep-alive time")
)
