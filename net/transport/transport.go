// Package transport is the contract between the connector and a
// message-boundary preserving byte channel such as a WebSocket.
package transport

import (
	"context"
	"errors"
	"net/url"
)

// ErrClosed marks a read or write failing because the peer closed the channel.
var ErrClosed = errors.New("transport: closed")

type Kind uint8

const (
	KindInvalid Kind = 0
	KindText    Kind = 1
	KindBinary  Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "Invalid"
	case KindText:
		return "Text"
	case KindBinary:
		return "Binary"
	default:
		return "Unknown"
	}
}

// Fragment is one delivery of a logical message. First and Final may both be
// set when the message arrives whole.
type Fragment struct {
	Data  []byte
	Kind  Kind
	First bool
	Final bool
}

type Dialer interface {
	// Dial blocks until the channel is established, ctx is done, or dialing fails.
	Dial(ctx context.Context, u *url.URL) (Conn, error)
}

// Conn is owned by two goroutines: one reader calling ReadFragment and the
// connection loop calling WriteMessage. Close may be called from any goroutine
// and unblocks a pending ReadFragment.
type Conn interface {
	ReadFragment() (Fragment, error)
	WriteMessage(kind Kind, data []byte) error
	Close() error
	RemoteAddr() string
}
