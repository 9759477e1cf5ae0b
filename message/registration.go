package message

import "encoding/json"

// KindExternal identifies a neuron living outside the bus process.
const KindExternal = "external"

type RegistrationParameter struct {
	Name  string     `json:"name"`
	Range [2]float64 `json:"range"`
}

// Registration is the text frame announcing a neuron and its parameters.
// It is sent once per transport connection since the bus forgets it on disconnect.
type Registration struct {
	Kind       string                  `json:"kind"`
	Parameters []RegistrationParameter `json:"parameters"`
}

func NewRegistration(params []Parameter) *Registration {
	r := &Registration{
		Kind:       KindExternal,
		Parameters: make([]RegistrationParameter, 0, len(params)),
	}

	for _, p := range params {
		r.Parameters = append(
			r.Parameters,
			RegistrationParameter{
				Name:  p.Name,
				Range: [2]float64{p.Min, p.Max},
			},
		)
	}

	return r
}

// BuildRegistration renders
// {"kind":"external","parameters":[{"name":<n>,"range":[<min>,<max>]}, ...]}.
// Parameters must already be validated, non-finite bounds fail to marshal.
func BuildRegistration(params []Parameter) ([]byte, error) {
	return json.Marshal(NewRegistration(params))
}
