package conn

import "github.com/moqsien/gkreactor/buffer"

type State int32

const (
	Connecting State = iota
	Connected
	Disconnecting
	Disconnected
)

func (s State) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Disconnecting:
		return "disconnecting"
	case Disconnected:
		return "disconnected"
	}
	return "unknown"
}

type ConnectedCallback func(c *Connection)

// MessageCallback consumes what it wants from buf; unread bytes stay for the next call.
type MessageCallback func(c *Connection, buf *buffer.Buffer)

type ClosedCallback func(c *Connection)

type AnyEventCallback func(c *Connection)
