package connector

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/Meander-Cloud/go-neuron/arbiter"
	"github.com/Meander-Cloud/go-neuron/frame"
	m "github.com/Meander-Cloud/go-neuron/message"
	"github.com/Meander-Cloud/go-neuron/metric"
	"github.com/Meander-Cloud/go-neuron/net/transport"
	"github.com/Meander-Cloud/go-neuron/tap"
)

// invoked on arbiter goroutine
func (c *Connector) connect() {
	if !c.running.Load() {
		return
	}

	if c.connState != nil || c.dialing {
		log.Printf("%s: %s: connect skipped, already active", c.c.LogPrefix, c.descriptor)
		return
	}

	connID := c.connIDGen.Add(1)
	c.dialing = true
	c.setPhase(PhaseConnecting)
	c.metrics.ConnectAttempt()

	if c.c.LogDebug {
		log.Printf("%s: [%d]%s: dialing %s", c.c.LogPrefix, connID, c.descriptor, c.url.String())
	}

	c.wg.Add(1)
	go c.dial(connID)
}

// dial goroutine
func (c *Connector) dial(connID uint32) {
	defer c.wg.Done()

	a := c.a.Load()

	ctx, cancel := context.WithTimeout(c.ctx, c.c.DialTimeout)
	conn, err := c.dialer.Dial(ctx, c.url)
	cancel()

	if err != nil {
		derr := a.DispatchWait(
			c.ctx,
			func() {
				// invoked on arbiter goroutine
				c.onDialError(connID, err)
			},
		)
		if derr != nil && c.c.LogDebug {
			log.Printf("%s: [%d]%s: dial error dropped at shutdown, err=%s", c.c.LogPrefix, connID, c.descriptor, err.Error())
		}
		return
	}

	c.track(connID, conn)

	derr := a.DispatchWait(
		c.ctx,
		func() {
			// invoked on arbiter goroutine
			c.onEstablished(connID, conn)
		},
	)
	if derr != nil {
		c.untrack(connID)
		conn.Close()
	}
}

// invoked on arbiter goroutine
func (c *Connector) onDialError(connID uint32, err error) {
	c.dialing = false
	c.metrics.ConnectError()

	log.Printf(
		"%s: [%d]%s: connection error, err=%s",
		c.c.LogPrefix,
		connID,
		c.descriptor,
		err.Error(),
	)

	c.notifyError(err)
	c.scheduleReconnect()
}

// invoked on arbiter goroutine
func (c *Connector) onEstablished(connID uint32, conn transport.Conn) {
	c.dialing = false

	if !c.running.Load() {
		c.untrack(connID)
		conn.Close()
		return
	}

	cs := &ConnState{
		ConnID:     connID,
		Conn:       conn,
		Descriptor: fmt.Sprintf("[%d]%s-><%s>", connID, c.name, conn.RemoteAddr()),
		Registered: false,
	}
	c.connState = cs
	c.rx.Reset()
	c.setPhase(PhaseRegistering)

	log.Printf("%s: %s: connection established", c.c.LogPrefix, cs.Descriptor)

	c.wg.Add(1)
	go c.readLoop(cs)

	// first write opportunity carries the registration
	c.a.Load().Wake()
}

// read goroutine, one per connection
func (c *Connector) readLoop(cs *ConnState) {
	defer c.wg.Done()

	a := c.a.Load()

	for {
		f, err := cs.Conn.ReadFragment()
		if err != nil {
			// at shutdown the loop tears the connection down itself
			_ = a.DispatchWait(
				c.ctx,
				func() {
					// invoked on arbiter goroutine
					c.onTransportError(cs.ConnID, err)
				},
			)
			return
		}

		derr := a.DispatchWait(
			c.ctx,
			func() {
				// invoked on arbiter goroutine
				c.onFragment(cs.ConnID, f)
			},
		)
		if derr != nil {
			return
		}
	}
}

// invoked on arbiter goroutine
func (c *Connector) onWritable() {
	cs := c.connState
	if cs == nil {
		return
	}

	switch c.Phase() {
	case PhaseRegistering:
		err := cs.Conn.WriteMessage(transport.KindText, c.registration)
		if err != nil {
			c.onTransportError(cs.ConnID, err)
			return
		}
		c.metrics.RegistrationSent()

		c.setPhase(PhaseRunning)
		cs.Registered = true
		c.connected.Store(true)
		c.metrics.Connected(true)

		log.Printf("%s: %s: registered", c.c.LogPrefix, cs.Descriptor)

		c.notifyConnect()

	case PhaseRunning:
		buf, ok := c.queue.Pop()
		if !ok {
			return
		}
		c.metrics.QueueDepth(c.queue.Len())

		err := cs.Conn.WriteMessage(transport.KindBinary, buf)
		if err != nil {
			// the frame is not retried
			c.metrics.FramesDropped(metric.DropReasonWrite, 1)
			c.onTransportError(cs.ConnID, err)
			return
		}
		c.metrics.FrameSent(transport.KindBinary.String())

		if c.recorder != nil {
			msg, derr := frame.Decode(buf)
			if derr == nil {
				c.record(tap.DirectionOutbound, msg)
			}
		}

	default:
		return
	}

	if c.connState == cs && !c.queue.IsEmpty() {
		c.a.Load().Wake()
	}
}

// invoked on arbiter goroutine
func (c *Connector) onPoll() {
	if c.connState == nil || c.Phase() != PhaseRunning {
		return
	}

	if !c.queue.IsEmpty() {
		c.a.Load().Wake()
	}
}

// invoked on arbiter goroutine
func (c *Connector) onFragment(connID uint32, f transport.Fragment) {
	cs := c.connState
	if cs == nil || cs.ConnID != connID {
		if c.c.LogDebug {
			log.Printf("%s: [%d]%s: stale fragment ignored", c.c.LogPrefix, connID, c.descriptor)
		}
		return
	}

	msg, ok, err := c.rx.OnFragment(f.Data, f.First, f.Kind == transport.KindBinary, f.Final)
	if err != nil {
		c.metrics.FramesDropped(metric.DropReasonDecode, 1)
		if c.c.LogDebug {
			log.Printf("%s: %s: inbound message dropped, err=%s", c.c.LogPrefix, cs.Descriptor, err.Error())
		}
		return
	}
	if !ok {
		return
	}

	kind := transport.KindText
	if c.rx.Binary() {
		kind = transport.KindBinary
	}
	c.metrics.FrameReceived(kind.String())

	if c.recorder != nil {
		c.record(tap.DirectionInbound, msg)
	}

	c.notifyMessage(msg)
}

// invoked on arbiter goroutine
func (c *Connector) onTransportError(connID uint32, err error) {
	cs := c.connState
	if cs == nil || cs.ConnID != connID {
		if c.c.LogDebug {
			log.Printf("%s: [%d]%s: stale transport error ignored, err=%s", c.c.LogPrefix, connID, c.descriptor, err.Error())
		}
		return
	}

	if errors.Is(err, transport.ErrClosed) {
		log.Printf("%s: %s: connection closed, err=%s", c.c.LogPrefix, cs.Descriptor, err.Error())
	} else {
		log.Printf("%s: %s: connection error, err=%s", c.c.LogPrefix, cs.Descriptor, err.Error())
		c.notifyError(err)
	}

	c.teardown()
	c.scheduleReconnect()
}

// invoked on arbiter goroutine
func (c *Connector) teardown() {
	cs := c.connState
	if cs == nil {
		return
	}

	c.connState = nil
	c.rx.Reset()
	c.setPhase(PhaseConnecting)

	cs.Conn.Close()
	c.untrack(cs.ConnID)

	log.Printf("%s: %s: connection torn down", c.c.LogPrefix, cs.Descriptor)

	if cs.Registered {
		c.connected.Store(false)
		c.metrics.Connected(false)
		c.notifyDisconnect()
	}
}

// invoked on arbiter goroutine
func (c *Connector) scheduleReconnect() {
	if !c.running.Load() {
		return
	}

	c.a.Load().ScheduleOnce(
		arbiter.GroupReconnectWait,
		c.c.ReconnectInterval,
		func() {
			// invoked on arbiter goroutine
			c.connect()
		},
	)
}

func (c *Connector) setPhase(p Phase) {
	prev := Phase(c.phase.Swap(uint32(p)))
	if prev != p && c.c.LogDebug {
		log.Printf("%s: %s: phase %s -> %s", c.c.LogPrefix, c.descriptor, prev, p)
	}
}

func (c *Connector) record(direction tap.Direction, msg m.Message) {
	err := c.recorder.Record(direction, msg)
	if err != nil {
		log.Printf("%s: %s: tap record failed, err=%s", c.c.LogPrefix, c.descriptor, err.Error())
	}
}
