package connector

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Meander-Cloud/go-neuron/frame"
	m "github.com/Meander-Cloud/go-neuron/message"
)

const rxMinCapacity = 512

var ErrMalformedControl = errors.New("connector: malformed control message")

// Reassembler joins transport fragments into one logical message.
// It is owned by the connection loop and never shared.
type Reassembler struct {
	buf    []byte
	binary bool
}

func NewReassembler() *Reassembler {
	return &Reassembler{
		buf:    make([]byte, 0, rxMinCapacity),
		binary: false,
	}
}

// OnFragment buffers data and, on the final fragment, decodes the whole
// message as a binary frame or a JSON control message depending on the kind
// announced by the first fragment. ok is false while the message is incomplete.
func (r *Reassembler) OnFragment(data []byte, first, binary, final bool) (msg m.Message, ok bool, err error) {
	if first {
		// an unfinished message is abandoned by a new one
		r.buf = r.buf[:0]
		r.binary = binary
	}

	r.append(data)

	if !final {
		return m.Message{}, false, nil
	}
	defer r.Reset()

	if r.binary {
		msg, err = frame.Decode(r.buf)
	} else {
		msg, err = ExtractControl(r.buf)
	}
	if err != nil {
		return m.Message{}, false, err
	}

	return msg, true, nil
}

// Binary reports the kind of the message being (or last) reassembled.
func (r *Reassembler) Binary() bool {
	return r.binary
}

func (r *Reassembler) Len() int {
	return len(r.buf)
}

func (r *Reassembler) Cap() int {
	return cap(r.buf)
}

// Reset empties the buffer and keeps its capacity.
func (r *Reassembler) Reset() {
	r.buf = r.buf[:0]
}

func (r *Reassembler) append(data []byte) {
	need := len(r.buf) + len(data)
	if need > cap(r.buf) {
		newCap := need * 2
		if newCap < rxMinCapacity {
			newCap = rxMinCapacity
		}

		grown := make([]byte, len(r.buf), newCap)
		copy(grown, r.buf)
		r.buf = grown
	}

	r.buf = append(r.buf, data...)
}

type control struct {
	On    *string  `json:"on"`
	Value *float64 `json:"value"`
}

// ExtractControl reads {"on":"<name>","value":<number>}. Other keys and key
// order are ignored, both keys are required.
func ExtractControl(data []byte) (m.Message, error) {
	c := control{}
	err := json.Unmarshal(data, &c)
	if err != nil {
		return m.Message{}, fmt.Errorf("%w: %s", ErrMalformedControl, err.Error())
	}

	if c.On == nil {
		return m.Message{}, fmt.Errorf("%w: missing on", ErrMalformedControl)
	}

	if c.Value == nil {
		return m.Message{}, fmt.Errorf("%w: missing value", ErrMalformedControl)
	}

	if len(*c.On) > m.MaxNameLen {
		return m.Message{}, fmt.Errorf("%w: name length %d exceeds %d", ErrMalformedControl, len(*c.On), m.MaxNameLen)
	}

	return m.Message{
		Name:  *c.On,
		Value: *c.Value,
	}, nil
}
