package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Meander-Cloud/go-neuron/config"
	m "github.com/Meander-Cloud/go-neuron/message"
	"github.com/Meander-Cloud/go-neuron/tap"
)

func TestParseParameter(t *testing.T) {
	tests := []struct {
		input string
		want  m.Parameter
		ok    bool
	}{
		{"x:0:127", m.Parameter{Name: "x", Min: 0, Max: 127}, true},
		{"cv:gate:-1.5:1.5", m.Parameter{Name: "cv:gate", Min: -1.5, Max: 1.5}, true},
		{"x:1:1", m.Parameter{Name: "x", Min: 1, Max: 1}, true},
		{"x:0", m.Parameter{}, false},
		{"x:a:1", m.Parameter{}, false},
		{"x:0:b", m.Parameter{}, false},
		{"x:2:1", m.Parameter{}, false},
		{":0:1", m.Parameter{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			p, err := parseParameter(tt.input)
			if !tt.ok {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestParseRoute(t *testing.T) {
	r, err := parseRoute("input=output")
	require.NoError(t, err)
	assert.Equal(t, config.Route{From: "input", To: "output"}, r)

	for _, s := range []string{"input", "=output", "input=", ""} {
		_, err := parseRoute(s)
		assert.Error(t, err, s)
	}
}

func TestNeuronFlagsResolve(t *testing.T) {
	nf := neuronFlags{
		name:              "cecho",
		address:           "bus:7000",
		params:            []string{"input:0:127", "output:0:127"},
		echo:              []string{"input=output"},
		reconnectInterval: 2 * time.Second,
	}

	n, err := nf.resolve()
	require.NoError(t, err)
	assert.Equal(t, "cecho", n.Name)
	assert.Equal(t, "bus:7000", n.Address)
	assert.Len(t, n.Parameters, 2)
	assert.Equal(t, []config.Route{{From: "input", To: "output"}}, n.Echo)
	assert.Equal(t, 2*time.Second, n.ReconnectInterval)

	nf.echo = []string{"input=missing"}
	_, err = nf.resolve()
	require.Error(t, err)
}

func TestNeuronFlagsResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neuron.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: filed\nparameters:\n  - {name: x, min: 0, max: 1}\n"), 0o600))

	nf := neuronFlags{
		file: path,
		name: "ignored",
	}
	n, err := nf.resolve()
	require.NoError(t, err)
	assert.Equal(t, "filed", n.Name)
	assert.Equal(t, []m.Parameter{{Name: "x", Min: 0, Max: 1}}, n.Parameters)
}

func TestReplaySendsOutboundOnly(t *testing.T) {
	buf := &bytes.Buffer{}
	rec := tap.NewRecorder(buf)
	require.NoError(t, rec.Record(tap.DirectionOutbound, m.Message{Name: "x", Value: 1}))
	require.NoError(t, rec.Record(tap.DirectionInbound, m.Message{Name: "x", Value: 2}))
	require.NoError(t, rec.Record(tap.DirectionOutbound, m.Message{Name: "x", Value: 3}))
	require.NoError(t, rec.Close())

	n := &config.Neuron{
		Name:       "replayer",
		Parameters: []m.Parameter{{Name: "x", Max: 10}},
	}
	s, err := newSession(n, "", "")
	require.NoError(t, err)
	defer s.close()

	// never started, values stay queued
	sent, err := replay(s, tap.NewReader(buf), 0, make(chan os.Signal))
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Equal(t, 2, s.c.QueueLen())
}
