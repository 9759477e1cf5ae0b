// Package arbiter runs every state transition of a connector on one goroutine.
package arbiter

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Meander-Cloud/go-schedule/scheduler"
)

var ErrShutdown = errors.New("arbiter: shut down")

type Options struct {
	EventChannelLength uint16

	// OnWake runs on the arbiter goroutine after one or more Wake calls,
	// coalesced into a single invocation.
	OnWake func()

	// OnTick runs on the arbiter goroutine every TickInterval, zero disables.
	OnTick       func()
	TickInterval time.Duration

	LogPrefix string
	LogDebug  bool
}

type Arbiter struct {
	options *Options
	s       *scheduler.Scheduler[Group]
	eventpl sync.Pool
	eventch chan *event
	wakech  chan struct{}
	tickch  chan struct{}

	inShutdown   atomic.Bool
	shutdownch   chan struct{}
	shutdownOnce sync.Once
	tickwg       sync.WaitGroup
}

func NewArbiter(options *Options) *Arbiter {
	if options.EventChannelLength == 0 {
		options.EventChannelLength = 1024
	}

	a := &Arbiter{
		options: options,
		s: scheduler.NewScheduler[Group](
			&scheduler.Options{
				LogPrefix: options.LogPrefix + ": Arbiter",
				LogDebug:  options.LogDebug,
			},
		),
		eventpl: sync.Pool{
			New: func() any {
				return newEvent()
			},
		},
		eventch:    make(chan *event, options.EventChannelLength),
		wakech:     make(chan struct{}, 1),
		tickch:     make(chan struct{}, 1),
		inShutdown: atomic.Bool{},
		shutdownch: make(chan struct{}),
	}

	// add eventch
	a.s.ProcessAsync(
		&scheduler.ScheduleAsyncEvent[Group]{
			AsyncVariant: scheduler.NewAsyncVariant(
				false,
				nil,
				a.eventch,
				func(_ *scheduler.Scheduler[Group], _ *scheduler.AsyncVariant[Group], recv interface{}) {
					a.handle(recv)
				},
				func(_ *scheduler.Scheduler[Group], v *scheduler.AsyncVariant[Group]) {
					log.Printf("%s: eventch released, select count: %d", options.LogPrefix, v.SelectCount)
				},
			),
		},
	)

	// add wakech
	a.s.ProcessAsync(
		&scheduler.ScheduleAsyncEvent[Group]{
			AsyncVariant: scheduler.NewAsyncVariant(
				false,
				nil,
				a.wakech,
				func(_ *scheduler.Scheduler[Group], _ *scheduler.AsyncVariant[Group], _ interface{}) {
					if options.OnWake != nil {
						a.invoke("wake", options.OnWake)
					}
				},
				func(_ *scheduler.Scheduler[Group], v *scheduler.AsyncVariant[Group]) {
					log.Printf("%s: wakech released, select count: %d", options.LogPrefix, v.SelectCount)
				},
			),
		},
	)

	if options.TickInterval > 0 && options.OnTick != nil {
		// add tickch
		a.s.ProcessAsync(
			&scheduler.ScheduleAsyncEvent[Group]{
				AsyncVariant: scheduler.NewAsyncVariant(
					false,
					nil,
					a.tickch,
					func(_ *scheduler.Scheduler[Group], _ *scheduler.AsyncVariant[Group], _ interface{}) {
						a.invoke("tick", options.OnTick)
					},
					func(_ *scheduler.Scheduler[Group], v *scheduler.AsyncVariant[Group]) {
						log.Printf("%s: tickch released, select count: %d", options.LogPrefix, v.SelectCount)
					},
				),
			},
		)

		a.tickwg.Add(1)
		go a.tickLoop(options.TickInterval)
	}

	// ownership of internal state is transferred to scheduler goroutine
	a.s.RunAsync()

	return a
}

// any goroutine, waits for the scheduler goroutine to exit
func (a *Arbiter) Shutdown() {
	a.shutdownOnce.Do(func() {
		a.inShutdown.Store(true)
		close(a.shutdownch)
		a.tickwg.Wait()
		a.s.Shutdown() // wait
	})
}

func (a *Arbiter) InShutdown() bool {
	return a.inShutdown.Load()
}

func (a *Arbiter) Scheduler() *scheduler.Scheduler[Group] {
	return a.s
}

func (a *Arbiter) getEvent() *event {
	evtAny := a.eventpl.Get()
	evt, ok := evtAny.(*event)
	if !ok {
		err := fmt.Errorf("%s: failed to cast event, evtAny=%#v", a.options.LogPrefix, evtAny)
		log.Printf("%s", err.Error())
		panic(err)
	}
	return evt
}

func (a *Arbiter) returnEvent(evt *event) {
	// recycle event
	evt.reset()
	a.eventpl.Put(evt)
}

// scheduler goroutine
func (a *Arbiter) handle(recv interface{}) {
	evt, ok := recv.(*event)
	if !ok {
		log.Printf("%s: failed to cast event, recv=%#v", a.options.LogPrefix, recv)
		return
	}
	defer a.returnEvent(evt)

	t1 := time.Now().UTC()
	a.invoke("functor", evt.f)
	t2 := time.Now().UTC()
	evt.complete()

	if a.options.LogDebug {
		log.Printf(
			"%s: event goQueueWait=%dus, evtFuncElapsed=%dus",
			a.options.LogPrefix,
			t1.Sub(evt.t0).Microseconds(),
			t2.Sub(t1).Microseconds(),
		)
	}
}

// scheduler goroutine
func (a *Arbiter) invoke(what string, f func()) {
	defer func() {
		rec := recover()
		if rec != nil {
			log.Printf(
				"%s: %s recovered from panic: %+v",
				a.options.LogPrefix,
				what,
				rec,
			)
		}
	}()
	f()
}

func (a *Arbiter) tickLoop(interval time.Duration) {
	defer a.tickwg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.shutdownch:
			return
		case <-ticker.C:
			select {
			case a.tickch <- struct{}{}:
			default:
				// previous tick not yet consumed
			}
		}
	}
}

// any goroutine, never blocks
func (a *Arbiter) Wake() {
	select {
	case a.wakech <- struct{}{}:
	default:
		// a wake is already pending
	}
}

// any goroutine, fails instead of blocking when eventch is full
func (a *Arbiter) Dispatch(f func()) error {
	if a.inShutdown.Load() {
		return ErrShutdown
	}

	evt := a.getEvent()
	evt.f = f
	evt.t0 = time.Now().UTC()

	select {
	case a.eventch <- evt:
	default:
		err := fmt.Errorf("%s: failed to push to eventch", a.options.LogPrefix)
		log.Printf("%s", err.Error())

		a.returnEvent(evt)
		return err
	}

	return nil
}

// any goroutine except the arbiter's own, blocks while eventch is full
func (a *Arbiter) DispatchWait(ctx context.Context, f func()) error {
	return a.enqueue(ctx, f, nil)
}

// any goroutine except the arbiter's own, blocks until f has run
func (a *Arbiter) DispatchSync(ctx context.Context, f func()) error {
	done := make(chan struct{})
	err := a.enqueue(ctx, f, done)
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-a.shutdownch:
		return ErrShutdown
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (a *Arbiter) enqueue(ctx context.Context, f func(), done chan struct{}) error {
	if a.inShutdown.Load() {
		return ErrShutdown
	}

	evt := a.getEvent()
	evt.f = f
	evt.t0 = time.Now().UTC()
	evt.done = done

	select {
	case a.eventch <- evt:
		return nil
	case <-a.shutdownch:
		a.returnEvent(evt)
		return ErrShutdown
	case <-ctx.Done():
		a.returnEvent(evt)
		return ctx.Err()
	}
}

// caller must be on arbiter goroutine
func (a *Arbiter) ScheduleOnce(group Group, wait time.Duration, f func()) {
	a.s.ProcessSync(
		&scheduler.ScheduleAsyncEvent[Group]{
			AsyncVariant: scheduler.TimerAsync(
				true,
				[]Group{group},
				wait,
				func() {
					// invoked on arbiter goroutine
					a.invoke(group.String(), f)
				},
				nil,
			),
		},
	)

	if a.options.LogDebug {
		log.Printf("%s: scheduled<%v>: %s", a.options.LogPrefix, wait, group)
	}
}

// caller must be on arbiter goroutine
func (a *Arbiter) Release(group Group) {
	a.s.ProcessSync(
		&scheduler.ReleaseGroupEvent[Group]{
			Group: group,
		},
	)

	if a.options.LogDebug {
		log.Printf("%s: released: %s", a.options.LogPrefix, group)
	}
}
