// Package connector keeps one neuron attached to a Nallely bus: it dials,
// registers, streams queued values and redials after any failure until disposed.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/Meander-Cloud/go-neuron/arbiter"
	"github.com/Meander-Cloud/go-neuron/config"
	"github.com/Meander-Cloud/go-neuron/frame"
	m "github.com/Meander-Cloud/go-neuron/message"
	"github.com/Meander-Cloud/go-neuron/metric"
	"github.com/Meander-Cloud/go-neuron/net/transport"
	"github.com/Meander-Cloud/go-neuron/net/ws"
	"github.com/Meander-Cloud/go-neuron/queue"
	"github.com/Meander-Cloud/go-neuron/tap"
)

var (
	ErrEncodeFailed       = errors.New("connector: encode failed")
	ErrDisposed           = errors.New("connector: disposed")
	ErrAlreadyStarted     = errors.New("connector: already started")
	ErrThreadSpawnFailed  = errors.New("connector: failed to start connection loop")
	ErrInvalidConstructor = errors.New("connector: invalid argument")
)

type Options struct {
	// nil takes every default from the config package
	*config.Config

	// nil dials with gorilla websocket
	Dialer transport.Dialer

	Metrics  *metric.Metrics
	Recorder *tap.Recorder
}

type Connector struct {
	name         string
	host         string
	port         uint16
	url          *url.URL
	descriptor   string
	parameters   []m.Parameter
	registration []byte

	c        *config.Config
	dialer   transport.Dialer
	metrics  *metric.Metrics
	recorder *tap.Recorder

	queue     *queue.Queue
	callbacks callbacks

	lifecycleMutex sync.Mutex
	a              atomic.Pointer[arbiter.Arbiter]
	running        atomic.Bool
	disposed       atomic.Bool
	ctx            context.Context
	cancel         context.CancelFunc
	wg             sync.WaitGroup // dial and read goroutines

	// if increment overflow will wrap to zero
	connIDGen atomic.Uint32

	liveMutex sync.Mutex
	live      map[uint32]transport.Conn

	// snapshots of loop state for observers
	phase     atomic.Uint32
	connected atomic.Bool

	// owned by arbiter goroutine
	connState *ConnState
	dialing   bool
	rx        *Reassembler
}

// New validates its inputs and prepares a connector without any network
// activity. An empty address means localhost:6789.
func New(name string, address string, parameters []m.Parameter, options *Options) (*Connector, error) {
	if options == nil {
		options = &Options{}
	}

	err := config.ValidateName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstructor, err)
	}

	host, port, err := config.ParseAddress(address)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstructor, err)
	}

	err = m.ValidateParameters(parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstructor, err)
	}

	cfg := options.Config.WithDefaults()
	err = cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConstructor, err)
	}
	if cfg.LogPrefix == "" {
		cfg.LogPrefix = "connector<" + name + ">"
	}

	registration, err := m.BuildRegistration(parameters)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	dialer := options.Dialer
	if dialer == nil {
		dialer = ws.NewDialer(
			&ws.Options{
				HandshakeTimeout: cfg.DialTimeout,
				WriteTimeout:     cfg.WriteTimeout,
				ReadChunkSize:    cfg.ReadChunkSize,
			},
		)
	}

	ctx, cancel := context.WithCancel(context.Background())

	params := make([]m.Parameter, len(parameters))
	copy(params, parameters)

	c := &Connector{
		name:         name,
		host:         host,
		port:         port,
		url:          config.NeuronURL(cfg.Secure, host, port, name),
		descriptor:   fmt.Sprintf("%s-><%s:%d>", name, host, port),
		parameters:   params,
		registration: registration,

		c:        cfg,
		dialer:   dialer,
		metrics:  options.Metrics,
		recorder: options.Recorder,

		queue: queue.New(cfg.SendQueueLimit),

		ctx:    ctx,
		cancel: cancel,
		live:   make(map[uint32]transport.Conn),

		rx: NewReassembler(),
	}
	c.phase.Store(uint32(PhaseConnecting))

	log.Printf(
		"%s: %s: created, url=%s, parameters=%d",
		cfg.LogPrefix,
		c.descriptor,
		c.url.String(),
		len(params),
	)

	return c, nil
}

// Start launches the connection loop and returns without waiting for a connection.
func (c *Connector) Start() error {
	c.lifecycleMutex.Lock()
	defer c.lifecycleMutex.Unlock()

	if c.disposed.Load() {
		return ErrDisposed
	}

	if c.a.Load() != nil {
		return ErrAlreadyStarted
	}

	a := arbiter.NewArbiter(
		&arbiter.Options{
			EventChannelLength: c.c.EventChannelLength,
			OnWake: func() {
				// invoked on arbiter goroutine
				c.onWritable()
			},
			OnTick: func() {
				// invoked on arbiter goroutine
				c.onPoll()
			},
			TickInterval: c.c.PollInterval,
			LogPrefix:    c.c.LogPrefix,
			LogDebug:     c.c.LogDebug,
		},
	)

	c.a.Store(a)
	c.running.Store(true)
	err := a.Dispatch(
		func() {
			// invoked on arbiter goroutine
			c.connect()
		},
	)
	if err != nil {
		c.running.Store(false)
		a.Shutdown() // wait
		c.a.Store(nil)
		return fmt.Errorf("%w: %w", ErrThreadSpawnFailed, err)
	}

	log.Printf("%s: %s: started", c.c.LogPrefix, c.descriptor)
	return nil
}

// Send encodes one value and queues it for the connection loop. It may be
// called from any goroutine, before Start and while disconnected.
func (c *Connector) Send(parameter string, value float64) error {
	if c.disposed.Load() {
		return ErrDisposed
	}

	buf, err := frame.Encode(parameter, value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrEncodeFailed, err)
	}

	err = c.queue.Push(buf)
	if err != nil {
		c.metrics.FramesDropped(metric.DropReasonQueueFull, 1)
		return fmt.Errorf("%s: %w", c.descriptor, err)
	}
	c.metrics.QueueDepth(c.queue.Len())

	if a := c.a.Load(); a != nil {
		a.Wake()
	}

	return nil
}

// Dispose stops the loop, closes the connection and discards unsent frames.
// It is safe to call more than once but must not be called from a callback.
func (c *Connector) Dispose() {
	if !c.disposed.CompareAndSwap(false, true) {
		return
	}

	c.lifecycleMutex.Lock()
	defer c.lifecycleMutex.Unlock()

	c.running.Store(false)

	if a := c.a.Load(); a != nil {
		err := a.DispatchSync(
			context.Background(),
			func() {
				// invoked on arbiter goroutine
				a.Release(arbiter.GroupReconnectWait)
				c.teardown()
			},
		)
		if err != nil {
			log.Printf("%s: %s: final teardown not run, err=%s", c.c.LogPrefix, c.descriptor, err.Error())
		}

		c.cancel()
		a.Shutdown() // wait
		c.closeLive()
		c.wg.Wait()
	} else {
		c.cancel()
	}

	dropped := c.queue.Clear()
	if dropped > 0 {
		c.metrics.FramesDropped(metric.DropReasonDispose, dropped)
	}
	c.metrics.QueueDepth(0)

	log.Printf(
		"%s: %s: disposed, dropped=%d",
		c.c.LogPrefix,
		c.descriptor,
		dropped,
	)
}

func (c *Connector) Name() string {
	return c.name
}

func (c *Connector) URL() *url.URL {
	u := *c.url
	return &u
}

func (c *Connector) Parameters() []m.Parameter {
	params := make([]m.Parameter, len(c.parameters))
	copy(params, c.parameters)
	return params
}

// Phase is a snapshot, the loop may have moved on.
func (c *Connector) Phase() Phase {
	return Phase(c.phase.Load())
}

// Connected reports whether registration has been written on the live connection.
func (c *Connector) Connected() bool {
	return c.connected.Load()
}

func (c *Connector) QueueLen() int {
	return c.queue.Len()
}

func (c *Connector) track(connID uint32, conn transport.Conn) {
	c.liveMutex.Lock()
	defer c.liveMutex.Unlock()
	c.live[connID] = conn
}

func (c *Connector) untrack(connID uint32) {
	c.liveMutex.Lock()
	defer c.liveMutex.Unlock()
	delete(c.live, connID)
}

// closes connections whose hand-off to the loop was lost at shutdown
func (c *Connector) closeLive() {
	c.liveMutex.Lock()
	defer c.liveMutex.Unlock()

	for connID, conn := range c.live {
		conn.Close()
		delete(c.live, connID)
	}
}
