// Package queue holds pre-encoded outbound frames until the connection loop drains them.
package queue

import (
	"errors"
	"sync"
)

var ErrQueueFull = errors.New("queue: full")

type entry struct {
	frame []byte
	next  *entry
}

// Queue is a FIFO safe for any number of producers and one consumer.
// The mutex is held only for the list splice, never across I/O.
type Queue struct {
	limit int // 0 means unbounded

	mutex sync.Mutex
	head  *entry
	tail  *entry
	depth int
}

func New(limit int) *Queue {
	if limit < 0 {
		limit = 0
	}

	return &Queue{
		limit: limit,
	}
}

// invoked on any goroutine, takes ownership of frame
func (q *Queue) Push(frame []byte) error {
	e := &entry{
		frame: frame,
		next:  nil,
	}

	q.mutex.Lock()
	defer q.mutex.Unlock()

	if q.limit > 0 && q.depth >= q.limit {
		return ErrQueueFull
	}

	if q.tail == nil {
		q.head = e
	} else {
		q.tail.next = e
	}
	q.tail = e
	q.depth++

	return nil
}

// invoked on connection loop goroutine
func (q *Queue) Pop() ([]byte, bool) {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	e := q.head
	if e == nil {
		return nil, false
	}

	q.head = e.next
	if q.head == nil {
		q.tail = nil
	}
	q.depth--

	frame := e.frame
	e.frame = nil
	e.next = nil

	return frame, true
}

func (q *Queue) IsEmpty() bool {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.head == nil
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	return q.depth
}

// Clear discards every pending frame and returns how many were dropped.
func (q *Queue) Clear() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	dropped := q.depth
	q.head = nil
	q.tail = nil
	q.depth = 0

	return dropped
}
