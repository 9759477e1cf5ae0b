package message

import "fmt"

// MaxNameLen is bounded by the single length byte of the binary frame.
const MaxNameLen = 255

type Message struct {
	Name  string  `json:"name" msgpack:"name"`
	Value float64 `json:"value" msgpack:"value"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s=%g", m.Name, m.Value)
}
