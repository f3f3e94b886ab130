//go:build linux

package timewheel

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/moqsien/gkreactor/poll"
	"github.com/moqsien/gkreactor/sys"
)

// TimerWheel drives a Wheel from a periodic timerfd registered on a loop.
// Everything except New must run on that loop.
type TimerWheel struct {
	*Wheel
	timerFd int
	channel *poll.Channel
	logger  logrus.FieldLogger
}

func New(updater poll.Updater, size int, interval time.Duration, logger logrus.FieldLogger) (*TimerWheel, error) {
	fd, err := sys.CreateTimerFd(interval)
	if err != nil {
		return nil, err
	}
	tw := &TimerWheel{
		Wheel:   NewWheel(size),
		timerFd: fd,
		logger:  logger,
	}
	tw.channel = poll.NewChannel(updater, fd)
	tw.channel.SetReadCallback(tw.onTime)
	tw.channel.EnableRead()
	return tw, nil
}

func (that *TimerWheel) GetFd() int { return that.timerFd }

// onTime advances once per expiration, a late read catches up on all of them.
func (that *TimerWheel) onTime() {
	n, err := sys.ReadTimerFd(that.timerFd)
	if err != nil {
		that.logger.WithField("fd", that.timerFd).Errorf("read timerfd: %v", err)
		return
	}
	for i := uint64(0); i < n; i++ {
		that.Tick()
	}
}

func (that *TimerWheel) Close() error {
	that.channel.DisableAll()
	that.channel.Remove()
	return sys.CloseFd(that.timerFd)
}
