package poll

import "golang.org/x/sys/unix"

const (
	EventRead     uint32 = unix.EPOLLIN
	EventPri      uint32 = unix.EPOLLPRI
	EventWrite    uint32 = unix.EPOLLOUT
	EventError    uint32 = unix.EPOLLERR
	EventHangup   uint32 = unix.EPOLLHUP
	EventRdHangup uint32 = unix.EPOLLRDHUP
	EventNone     uint32 = 0
)

// Updater is whatever owns the poller a Channel is registered with, normally the event loop.
type Updater interface {
	UpdateEvent(ch *Channel)
	RemoveEvent(ch *Channel)
}

type EventCallback func()

// Channel records interest and readiness for one fd. It does no I/O itself.
type Channel struct {
	fd      int
	updater Updater
	events  uint32 // interested
	revents uint32 // ready, stamped by the poller
	onRead  EventCallback
	onWrite EventCallback
	onError EventCallback
	onClose EventCallback
	onEvent EventCallback
}

func NewChannel(updater Updater, fd int) *Channel {
	return &Channel{fd: fd, updater: updater}
}

func (that *Channel) GetFd() int { return that.fd }

func (that *Channel) Events() uint32 { return that.events }

func (that *Channel) REvents() uint32 { return that.revents }

//SetReEvents only the poller calls this
func (that *Channel) SetReEvents(events uint32) { that.revents = events }

func (that *Channel) SetReadCallback(cb EventCallback) { that.onRead = cb }

func (that *Channel) SetWriteCallback(cb EventCallback) { that.onWrite = cb }

func (that *Channel) SetErrorCallback(cb EventCallback) { that.onError = cb }

func (that *Channel) SetCloseCallback(cb EventCallback) { that.onClose = cb }

func (that *Channel) SetEventCallback(cb EventCallback) { that.onEvent = cb }

func (that *Channel) ReadAble() bool { return that.events&EventRead != 0 }

func (that *Channel) WriteAble() bool { return that.events&EventWrite != 0 }

func (that *Channel) EnableRead() {
	that.events |= EventRead | EventPri
	that.Update()
}

func (that *Channel) EnableWrite() {
	that.events |= EventWrite
	that.Update()
}

func (that *Channel) DisableRead() {
	that.events &^= EventRead | EventPri
	that.Update()
}

func (that *Channel) DisableWrite() {
	that.events &^= EventWrite
	that.Update()
}

func (that *Channel) DisableAll() {
	that.events = EventNone
	that.Update()
}

func (that *Channel) Update() { that.updater.UpdateEvent(that) }

func (that *Channel) Remove() { that.updater.RemoveEvent(that) }

// HandleEvent dispatches the ready mask. Read runs for in/rdhup/pri; at most one of
// write, error, close runs since each may release the owner; the event callback runs
// on every dispatch.
func (that *Channel) HandleEvent() {
	if that.revents&(EventRead|EventRdHangup|EventPri) != 0 {
		if that.onRead != nil {
			that.onRead()
		}
	}
	if that.revents&EventWrite != 0 {
		if that.onWrite != nil {
			that.onWrite()
		}
	} else if that.revents&EventError != 0 {
		if that.onError != nil {
			that.onError()
		}
	} else if that.revents&EventHangup != 0 {
		if that.onClose != nil {
			that.onClose()
		}
	}
	if that.onEvent != nil {
		that.onEvent()
	}
}
