package connector

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-neuron/net/transport"
)

type written struct {
	kind transport.Kind
	data []byte
}

type readResult struct {
	f   transport.Fragment
	err error
}

// fakeConn is an in-memory transport.Conn driven by the test.
type fakeConn struct {
	incoming chan readResult
	writes   chan written

	writeErr atomic.Pointer[error]

	closeOnce sync.Once
	closed    chan struct{}
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		incoming: make(chan readResult, 64),
		writes:   make(chan written, 1024),
		closed:   make(chan struct{}),
	}
}

func (c *fakeConn) ReadFragment() (transport.Fragment, error) {
	select {
	case r := <-c.incoming:
		return r.f, r.err
	case <-c.closed:
		return transport.Fragment{}, transport.ErrClosed
	}
}

func (c *fakeConn) WriteMessage(kind transport.Kind, data []byte) error {
	select {
	case <-c.closed:
		return transport.ErrClosed
	default:
	}

	if errp := c.writeErr.Load(); errp != nil {
		return *errp
	}

	buf := make([]byte, len(data))
	copy(buf, data)
	c.writes <- written{kind: kind, data: buf}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return nil
}

func (c *fakeConn) RemoteAddr() string {
	return "127.0.0.1:6789"
}

func (c *fakeConn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func (c *fakeConn) deliver(data []byte, kind transport.Kind, first, final bool) {
	c.incoming <- readResult{
		f: transport.Fragment{
			Data:  data,
			Kind:  kind,
			First: first,
			Final: final,
		},
	}
}

func (c *fakeConn) fail(err error) {
	c.incoming <- readResult{err: err}
}

func (c *fakeConn) failWrites(err error) {
	c.writeErr.Store(&err)
}

// fakeDialer fails the first failCount dials, then hands out fresh fakeConns.
type fakeDialer struct {
	failCount atomic.Int32
	dials     atomic.Int32

	mutex     sync.Mutex
	dialTimes []time.Time
	urls      []string

	conns chan *fakeConn

	// set before Start, called with the 1-based index of each established connection
	prepare func(n int32, conn *fakeConn)
	established atomic.Int32
}

func newFakeDialer(failCount int32) *fakeDialer {
	d := &fakeDialer{
		conns: make(chan *fakeConn, 16),
	}
	d.failCount.Store(failCount)
	return d
}

func (d *fakeDialer) Dial(ctx context.Context, u *url.URL) (transport.Conn, error) {
	d.dials.Add(1)

	d.mutex.Lock()
	d.dialTimes = append(d.dialTimes, time.Now())
	d.urls = append(d.urls, u.String())
	d.mutex.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if d.failCount.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}

	conn := newFakeConn()
	if d.prepare != nil {
		d.prepare(d.established.Add(1), conn)
	}
	d.conns <- conn
	return conn, nil
}

func (d *fakeDialer) times() []time.Time {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return append([]time.Time(nil), d.dialTimes...)
}

// events records callback order across goroutines.
type events struct {
	mutex sync.Mutex
	list  []string
}

func (e *events) add(s string) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.list = append(e.list, s)
}

func (e *events) snapshot() []string {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return append([]string(nil), e.list...)
}
