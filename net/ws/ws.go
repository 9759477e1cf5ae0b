// Package ws carries the transport contract over gorilla/websocket.
package ws

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Meander-Cloud/go-neuron/net/transport"
)

type Options struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	ReadChunkSize    int
	TLSClientConfig  *tls.Config
}

type Dialer struct {
	options *Options
	dialer  *websocket.Dialer
}

var _ transport.Dialer = (*Dialer)(nil)

func NewDialer(options *Options) *Dialer {
	o := *options
	if o.ReadChunkSize <= 0 {
		o.ReadChunkSize = 4096
	}

	return &Dialer{
		options: &o,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: o.HandshakeTimeout,
			ReadBufferSize:   o.ReadChunkSize,
			TLSClientConfig:  o.TLSClientConfig,
		},
	}
}

func (d *Dialer) Dial(ctx context.Context, u *url.URL) (transport.Conn, error) {
	conn, resp, err := d.dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("dial %s: %w, status=%s", u.String(), err, resp.Status)
		}
		return nil, fmt.Errorf("dial %s: %w", u.String(), err)
	}

	return &Conn{
		options: d.options,
		conn:    conn,
		chunk:   make([]byte, d.options.ReadChunkSize),
	}, nil
}

// Conn surfaces each gorilla message as one or more fragments read in chunks,
// so a large or fragmented message is delivered incrementally.
type Conn struct {
	options *Options
	conn    *websocket.Conn

	// reader goroutine only
	reader io.Reader
	kind   transport.Kind
	chunk  []byte

	closeOnce sync.Once
}

var _ transport.Conn = (*Conn)(nil)

func (c *Conn) ReadFragment() (transport.Fragment, error) {
	first := false
	if c.reader == nil {
		messageType, r, err := c.conn.NextReader()
		if err != nil {
			return transport.Fragment{}, classify(err)
		}

		c.reader = r
		c.kind = kindOf(messageType)
		first = true
	}

	n, err := c.reader.Read(c.chunk)
	if err != nil && !errors.Is(err, io.EOF) {
		c.reader = nil
		return transport.Fragment{}, classify(err)
	}

	final := errors.Is(err, io.EOF)
	if final {
		c.reader = nil
	}

	data := make([]byte, n)
	copy(data, c.chunk[:n])

	return transport.Fragment{
		Data:  data,
		Kind:  c.kind,
		First: first,
		Final: final,
	}, nil
}

func (c *Conn) WriteMessage(kind transport.Kind, data []byte) error {
	var messageType int
	switch kind {
	case transport.KindText:
		messageType = websocket.TextMessage
	case transport.KindBinary:
		messageType = websocket.BinaryMessage
	default:
		return fmt.Errorf("unsupported kind=%s", kind)
	}

	if c.options.WriteTimeout > 0 {
		c.conn.SetWriteDeadline(time.Now().UTC().Add(c.options.WriteTimeout))
	}

	err := c.conn.WriteMessage(messageType, data)
	if err != nil {
		return classify(err)
	}

	return nil
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		// best effort close handshake, the peer may already be gone
		deadline := time.Now().UTC().Add(time.Second)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadline,
		)
		err = c.conn.Close()
	})
	return err
}

func (c *Conn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func kindOf(messageType int) transport.Kind {
	switch messageType {
	case websocket.TextMessage:
		return transport.KindText
	case websocket.BinaryMessage:
		return transport.KindBinary
	default:
		return transport.KindInvalid
	}
}

func classify(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) || errors.Is(err, websocket.ErrCloseSent) {
		return fmt.Errorf("%w: %s", transport.ErrClosed, err.Error())
	}
	return err
}
