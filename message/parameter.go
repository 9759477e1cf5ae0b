package message

import (
	"fmt"
	"math"
)

type Parameter struct {
	Name string  `json:"name" yaml:"name"`
	Min  float64 `json:"min" yaml:"min"`
	Max  float64 `json:"max" yaml:"max"`
}

func (p *Parameter) Validate() error {
	if p.Name == "" {
		return fmt.Errorf("invalid Name=%q", p.Name)
	}

	if len(p.Name) > MaxNameLen {
		return fmt.Errorf("Name=%.16q... length %d exceeds %d", p.Name, len(p.Name), MaxNameLen)
	}

	if math.IsNaN(p.Min) || math.IsInf(p.Min, 0) {
		return fmt.Errorf("Name=%s, invalid Min=%g", p.Name, p.Min)
	}

	if math.IsNaN(p.Max) || math.IsInf(p.Max, 0) {
		return fmt.Errorf("Name=%s, invalid Max=%g", p.Name, p.Max)
	}

	if p.Min > p.Max {
		return fmt.Errorf("Name=%s, Min=%g greater than Max=%g", p.Name, p.Min, p.Max)
	}

	return nil
}

// ValidateParameters checks every entry and rejects duplicate names.
func ValidateParameters(params []Parameter) error {
	seen := make(map[string]struct{}, len(params))
	for i := range params {
		err := params[i].Validate()
		if err != nil {
			return fmt.Errorf("parameter[%d]: %w", i, err)
		}

		_, found := seen[params[i].Name]
		if found {
			return fmt.Errorf("parameter[%d]: duplicate Name=%s", i, params[i].Name)
		}
		seen[params[i].Name] = struct{}{}
	}

	return nil
}
