package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	m "github.com/Meander-Cloud/go-neuron/message"
)

// Route forwards every value received on From back to the bus as To.
type Route struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Neuron is the YAML descriptor consumed by the command line tool.
//
//	name: cecho
//	address: localhost:6789
//	parameters:
//	  - {name: input, min: 0, max: 127}
//	  - {name: output, min: 0, max: 127}
//	echo:
//	  - {from: input, to: output}
type Neuron struct {
	Name       string        `yaml:"name"`
	Address    string        `yaml:"address"`
	Secure     bool          `yaml:"secure"`
	Parameters []m.Parameter `yaml:"parameters"`
	Echo       []Route       `yaml:"echo"`

	ReconnectInterval time.Duration `yaml:"reconnect_interval"`
	SendQueueLimit    int           `yaml:"send_queue_limit"`
	LogDebug          bool          `yaml:"log_debug"`
}

func LoadNeuronFile(path string) (*Neuron, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read neuron file %s: %w", path, err)
	}

	return ParseNeuron(data)
}

func ParseNeuron(data []byte) (*Neuron, error) {
	n := &Neuron{}
	err := yaml.UnmarshalStrict(data, n)
	if err != nil {
		return nil, fmt.Errorf("failed to parse neuron: %w", err)
	}

	err = n.Validate()
	if err != nil {
		return nil, err
	}

	return n, nil
}

func (n *Neuron) Validate() error {
	err := ValidateName(n.Name)
	if err != nil {
		return err
	}

	_, _, err = ParseAddress(n.Address)
	if err != nil {
		return err
	}

	err = m.ValidateParameters(n.Parameters)
	if err != nil {
		return err
	}

	declared := make(map[string]struct{}, len(n.Parameters))
	for _, p := range n.Parameters {
		declared[p.Name] = struct{}{}
	}

	for i, r := range n.Echo {
		if _, found := declared[r.From]; !found {
			return fmt.Errorf("echo[%d]: undeclared parameter from=%s", i, r.From)
		}
		if _, found := declared[r.To]; !found {
			return fmt.Errorf("echo[%d]: undeclared parameter to=%s", i, r.To)
		}
	}

	return nil
}

// Config maps descriptor tunables onto a connector Config.
func (n *Neuron) Config(logPrefix string) *Config {
	return &Config{
		Secure:            n.Secure,
		ReconnectInterval: n.ReconnectInterval,
		SendQueueLimit:    n.SendQueueLimit,
		LogPrefix:         logPrefix,
		LogDebug:          n.LogDebug,
	}
}
