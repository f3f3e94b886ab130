//go:build linux

/*
Poller wraps epoll and keeps the fd -> Channel registry for one event loop.
*/
package poll

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/moqsien/gkreactor/sys"
)

type Poller struct {
	pollFd    int
	channels  map[int]*Channel
	eventList []unix.EpollEvent
	size      int
}

func NewPoller() (*Poller, error) {
	pollFd, err := sys.CreatePoll()
	if err != nil {
		return nil, err
	}
	return &Poller{
		pollFd:    pollFd,
		channels:  make(map[int]*Channel),
		eventList: make([]unix.EpollEvent, sys.InitPollSize),
		size:      sys.InitPollSize,
	}, nil
}

func (that *Poller) GetFd() int {
	return that.pollFd
}

func (that *Poller) HasChannel(ch *Channel) bool {
	_, found := that.channels[ch.GetFd()]
	return found
}

func (that *Poller) Len() int {
	return len(that.channels)
}

// UpdateEvent adds the channel on first sight and re-applies its mask afterwards.
func (that *Poller) UpdateEvent(ch *Channel) error {
	fd := ch.GetFd()
	if _, found := that.channels[fd]; !found {
		if err := sys.Register(that.pollFd, fd, ch.Events()); err != nil {
			return err
		}
		that.channels[fd] = ch
		return nil
	}
	return sys.Modify(that.pollFd, fd, ch.Events())
}

// RemoveEvent must run before the fd is closed, otherwise the registry keeps a stale fd.
func (that *Poller) RemoveEvent(ch *Channel) error {
	fd := ch.GetFd()
	if _, found := that.channels[fd]; !found {
		return nil
	}
	delete(that.channels, fd)
	return sys.UnRegister(that.pollFd, fd)
}

// Poll blocks until something is ready and appends the ready channels to active.
// An interrupted wait returns active unchanged and a nil error.
func (that *Poller) Poll(active []*Channel) ([]*Channel, error) {
	n, err := sys.WaitPoll(that.pollFd, that.eventList)
	if err == unix.EINTR {
		return active, nil
	} else if err != nil {
		return active, err
	}
	for i := 0; i < n; i++ {
		ev := &that.eventList[i]
		ch, found := that.channels[int(ev.Fd)]
		if !found {
			return active, fmt.Errorf("poller: ready fd=%d has no channel", ev.Fd)
		}
		ch.SetReEvents(ev.Events)
		active = append(active, ch)
	}
	if n == that.size {
		that.expandEventList()
	} else if n < that.size>>1 {
		that.shrinkEventList()
	}
	return active, nil
}

func (that *Poller) expandEventList() {
	if newSize := that.size << 1; newSize <= sys.MaxPollSize {
		that.size = newSize
		that.eventList = make([]unix.EpollEvent, newSize)
	}
}

func (that *Poller) shrinkEventList() {
	if newSize := that.size >> 1; newSize >= sys.MinPollSize {
		that.size = newSize
		that.eventList = make([]unix.EpollEvent, newSize)
	}
}

func (that *Poller) Close() error {
	that.channels = nil
	return sys.CloseFd(that.pollFd)
}
