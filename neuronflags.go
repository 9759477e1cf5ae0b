package main

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Meander-Cloud/go-neuron/config"
	m "github.com/Meander-Cloud/go-neuron/message"
)

// neuronFlags describes a neuron either through a YAML file or inline flags.
type neuronFlags struct {
	file              string
	name              string
	address           string
	secure            bool
	params            []string
	echo              []string
	reconnectInterval time.Duration
	sendQueueLimit    int
	debug             bool
}

func (f *neuronFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVarP(&f.file, "file", "f", "", "Neuron YAML file, other neuron flags are ignored when set")
	flags.StringVarP(&f.name, "name", "n", "", "Neuron name")
	flags.StringVarP(&f.address, "address", "a", "", "Bus address host:port (default localhost:6789)")
	flags.BoolVar(&f.secure, "secure", false, "Dial wss instead of ws")
	flags.StringArrayVarP(&f.params, "param", "p", nil, "Parameter as name:min:max, repeatable")
	flags.StringArrayVar(&f.echo, "echo", nil, "Route as from=to, repeatable")
	flags.DurationVar(&f.reconnectInterval, "reconnect-interval", config.ReconnectInterval, "Wait between connection attempts")
	flags.IntVar(&f.sendQueueLimit, "send-queue-limit", 0, "Maximum queued frames, 0 is unbounded")
	flags.BoolVar(&f.debug, "debug", false, "Enable debug logging")
}

func (f *neuronFlags) resolve() (*config.Neuron, error) {
	if f.file != "" {
		return config.LoadNeuronFile(f.file)
	}

	n := &config.Neuron{
		Name:              f.name,
		Address:           f.address,
		Secure:            f.secure,
		ReconnectInterval: f.reconnectInterval,
		SendQueueLimit:    f.sendQueueLimit,
		LogDebug:          f.debug,
	}

	for _, s := range f.params {
		p, err := parseParameter(s)
		if err != nil {
			return nil, err
		}
		n.Parameters = append(n.Parameters, p)
	}

	for _, s := range f.echo {
		r, err := parseRoute(s)
		if err != nil {
			return nil, err
		}
		n.Echo = append(n.Echo, r)
	}

	err := n.Validate()
	if err != nil {
		return nil, err
	}

	return n, nil
}

// parseParameter reads name:min:max, the name may itself contain colons.
func parseParameter(s string) (m.Parameter, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 3 {
		return m.Parameter{}, fmt.Errorf("invalid parameter=%q, want name:min:max", s)
	}

	n := len(parts)
	lo, err := strconv.ParseFloat(parts[n-2], 64)
	if err != nil {
		return m.Parameter{}, fmt.Errorf("invalid min in parameter=%q: %w", s, err)
	}

	hi, err := strconv.ParseFloat(parts[n-1], 64)
	if err != nil {
		return m.Parameter{}, fmt.Errorf("invalid max in parameter=%q: %w", s, err)
	}

	p := m.Parameter{
		Name: strings.Join(parts[:n-2], ":"),
		Min:  lo,
		Max:  hi,
	}
	err = p.Validate()
	if err != nil {
		return m.Parameter{}, err
	}

	return p, nil
}

func parseRoute(s string) (config.Route, error) {
	from, to, found := strings.Cut(s, "=")
	if !found || from == "" || to == "" {
		return config.Route{}, fmt.Errorf("invalid route=%q, want from=to", s)
	}

	return config.Route{
		From: from,
		To:   to,
	}, nil
}
