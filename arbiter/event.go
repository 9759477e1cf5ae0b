package arbiter

import "time"

// event carries one functor through eventch; events are pooled.
type event struct {
	f  func()
	t0 time.Time // enqueue time, for queue wait logging

	// closed once f has run, nil unless the dispatcher waits for completion
	done chan struct{}
}

func newEvent() *event {
	return &event{}
}

// scheduler goroutine
func (e *event) complete() {
	if e.done != nil {
		close(e.done)
	}
}

func (e *event) reset() {
	e.f = nil
	e.t0 = time.Time{}
	e.done = nil
}
