// Package tap records exchanged values as a msgpack stream and reads them back.
package tap

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	m "github.com/Meander-Cloud/go-neuron/message"
)

type Direction uint8

const (
	DirectionInvalid  Direction = 0
	DirectionOutbound Direction = 1
	DirectionInbound  Direction = 2
)

func (d Direction) String() string {
	switch d {
	case DirectionInvalid:
		return "Invalid Direction"
	case DirectionOutbound:
		return "Outbound"
	case DirectionInbound:
		return "Inbound"
	default:
		return "Unknown Direction"
	}
}

type Record struct {
	Txseq     uint64    `json:"txseq" msgpack:"txseq"`
	Txtime    int64     `json:"txtime" msgpack:"txtime"` // epoch milliseconds
	Direction Direction `json:"direction" msgpack:"direction"`
	Name      string    `json:"name" msgpack:"name"`
	Value     float64   `json:"value" msgpack:"value"`
}

func (r *Record) Message() m.Message {
	return m.Message{
		Name:  r.Name,
		Value: r.Value,
	}
}

type Recorder struct {
	// if increment overflow will wrap to zero
	txseqGen atomic.Uint64

	mutex  sync.Mutex
	bw     *bufio.Writer
	enc    *msgpack.Encoder
	closer io.Closer
	closed bool
}

func NewRecorder(w io.Writer) *Recorder {
	bw := bufio.NewWriter(w)
	r := &Recorder{
		bw:  bw,
		enc: msgpack.NewEncoder(bw),
	}

	if c, ok := w.(io.Closer); ok {
		r.closer = c
	}

	return r
}

// CreateFile truncates path and records into it.
func CreateFile(path string) (*Recorder, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create tap file %s: %w", path, err)
	}

	return NewRecorder(f), nil
}

// invoked on any goroutine
func (r *Recorder) Record(direction Direction, msg m.Message) error {
	if r == nil {
		return nil
	}

	rec := &Record{
		Txseq:     r.txseqGen.Add(1),
		Txtime:    time.Now().UTC().UnixMilli(),
		Direction: direction,
		Name:      msg.Name,
		Value:     msg.Value,
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return errors.New("tap: recorder closed")
	}

	err := r.enc.Encode(rec)
	if err != nil {
		return fmt.Errorf("tap: msgpack failed to encode record=%+v: %w", *rec, err)
	}

	return r.bw.Flush()
}

func (r *Recorder) Close() error {
	if r == nil {
		return nil
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	err := r.bw.Flush()
	if r.closer != nil {
		cerr := r.closer.Close()
		if err == nil {
			err = cerr
		}
	}

	return err
}

type Reader struct {
	dec *msgpack.Decoder
}

func NewReader(rd io.Reader) *Reader {
	return &Reader{
		dec: msgpack.NewDecoder(bufio.NewReader(rd)),
	}
}

// Next returns io.EOF once the stream is exhausted.
func (r *Reader) Next() (*Record, error) {
	rec := new(Record)
	err := r.dec.Decode(rec)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("tap: msgpack failed to decode record: %w", err)
	}

	return rec, nil
}
