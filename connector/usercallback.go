package connector

import (
	"sync"

	m "github.com/Meander-Cloud/go-neuron/message"
)

// Handler receives every connector event on the connection loop goroutine.
// Implementations must not block indefinitely and must not call Dispose.
type Handler interface {
	Connected()
	Disconnected()
	Error(error)
	Message(m.Message)
}

// callbacks holds one slot per event; registration may race with the loop
// so every access goes through the mutex.
type callbacks struct {
	mutex        sync.RWMutex
	onConnect    func()
	onDisconnect func()
	onError      func(error)
	onMessage    func(m.Message)
}

func (cb *callbacks) loadConnect() func() {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.onConnect
}

func (cb *callbacks) loadDisconnect() func() {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.onDisconnect
}

func (cb *callbacks) loadError() func(error) {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.onError
}

func (cb *callbacks) loadMessage() func(m.Message) {
	cb.mutex.RLock()
	defer cb.mutex.RUnlock()
	return cb.onMessage
}

// OnConnect replaces the callback fired once registration has been written.
func (c *Connector) OnConnect(f func()) {
	c.callbacks.mutex.Lock()
	defer c.callbacks.mutex.Unlock()
	c.callbacks.onConnect = f
}

// OnDisconnect replaces the callback fired when a registered connection is torn down.
func (c *Connector) OnDisconnect(f func()) {
	c.callbacks.mutex.Lock()
	defer c.callbacks.mutex.Unlock()
	c.callbacks.onDisconnect = f
}

// OnError replaces the callback fired on dial, read and write failures.
func (c *Connector) OnError(f func(error)) {
	c.callbacks.mutex.Lock()
	defer c.callbacks.mutex.Unlock()
	c.callbacks.onError = f
}

// OnMessage replaces the callback fired for each decoded inbound value.
func (c *Connector) OnMessage(f func(m.Message)) {
	c.callbacks.mutex.Lock()
	defer c.callbacks.mutex.Unlock()
	c.callbacks.onMessage = f
}

// SetHandler fills all four slots from h.
func (c *Connector) SetHandler(h Handler) {
	c.callbacks.mutex.Lock()
	defer c.callbacks.mutex.Unlock()
	c.callbacks.onConnect = h.Connected
	c.callbacks.onDisconnect = h.Disconnected
	c.callbacks.onError = h.Error
	c.callbacks.onMessage = h.Message
}

// invoked on arbiter goroutine
func (c *Connector) notifyConnect() {
	if f := c.callbacks.loadConnect(); f != nil {
		f()
	}
}

// invoked on arbiter goroutine
func (c *Connector) notifyDisconnect() {
	if f := c.callbacks.loadDisconnect(); f != nil {
		f()
	}
}

// invoked on arbiter goroutine
func (c *Connector) notifyError(err error) {
	if f := c.callbacks.loadError(); f != nil {
		f(err)
	}
}

// invoked on arbiter goroutine
func (c *Connector) notifyMessage(msg m.Message) {
	if f := c.callbacks.loadMessage(); f != nil {
		f(msg)
	}
}
