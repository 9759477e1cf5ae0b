package connector

import (
	"fmt"

	"github.com/Meander-Cloud/go-neuron/net/transport"
)

// Phase is the registration progress of the current connection.
type Phase uint32

const (
	// no live connection, dialing or waiting to redial
	PhaseConnecting Phase = iota + 1
	// connected, registration not yet written
	PhaseRegistering
	// registration written, queued frames may flow
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseConnecting:
		return "Connecting"
	case PhaseRegistering:
		return "Registering"
	case PhaseRunning:
		return "Running"
	default:
		return fmt.Sprintf("Unknown:%d", uint32(p))
	}
}

// ConnState belongs to one established transport connection, owned by the
// arbiter goroutine. Events carrying a stale ConnID are ignored.
type ConnState struct {
	ConnID     uint32
	Conn       transport.Conn
	Descriptor string

	// connect callback has fired for this connection
	Registered bool
}
