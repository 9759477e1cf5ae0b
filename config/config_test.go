package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		address string
		host    string
		port    uint16
		wantErr bool
	}{
		{"", "localhost", 6789, false},
		{"localhost:6789", "localhost", 6789, false},
		{"192.168.1.74:7000", "192.168.1.74", 7000, false},
		{"bus.local", "bus.local", 6789, false},
		{"bus.local:", "bus.local", 6789, false},
		{":7001", "localhost", 7001, false},
		{"[::1]:7002", "::1", 7002, false},
		{"::1", "::1", 6789, false},
		{"bus.local:notaport", "", 0, true},
		{"bus.local:0", "", 0, true},
		{"bus.local:70000", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.address, func(t *testing.T) {
			host, port, err := ParseAddress(tt.address)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.host, host)
			assert.Equal(t, tt.port, port)
		})
	}
}

func TestNeuronURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:6789/c_demo/autoconfig", NeuronURL(false, "localhost", 6789, "c_demo").String())
	assert.Equal(t, "wss://bus.local:443/x/autoconfig", NeuronURL(true, "bus.local", 443, "x").String())
	assert.Equal(t, "ws://[::1]:6789/x/autoconfig", NeuronURL(false, "::1", 6789, "x").String())
}

func TestValidateName(t *testing.T) {
	assert.NoError(t, ValidateName("cecho"))
	assert.Error(t, ValidateName(""))
	assert.Error(t, ValidateName("a/b"))
	assert.Error(t, ValidateName("a?b"))
}

func TestWithDefaults(t *testing.T) {
	c := (&Config{ReconnectInterval: 20 * time.Millisecond, LogPrefix: "t"}).WithDefaults()
	assert.Equal(t, 20*time.Millisecond, c.ReconnectInterval)
	assert.Equal(t, DialTimeout, c.DialTimeout)
	assert.Equal(t, WriteTimeout, c.WriteTimeout)
	assert.Equal(t, PollInterval, c.PollInterval)
	assert.Equal(t, ReadChunkSize, c.ReadChunkSize)
	assert.Equal(t, EventChannelLength, c.EventChannelLength)
	assert.Equal(t, 0, c.SendQueueLimit)
	assert.Equal(t, "t", c.LogPrefix)

	var nilConfig *Config
	assert.Equal(t, ReconnectInterval, nilConfig.WithDefaults().ReconnectInterval)
}

func TestValidate(t *testing.T) {
	var nilConfig *Config
	assert.Error(t, nilConfig.Validate())
	assert.NoError(t, (&Config{}).Validate())
	assert.Error(t, (&Config{ReconnectInterval: -time.Second}).Validate())
	assert.Error(t, (&Config{SendQueueLimit: -1}).Validate())
	assert.Error(t, (&Config{ReadChunkSize: -1}).Validate())
}

func TestParseNeuron(t *testing.T) {
	n, err := ParseNeuron([]byte(`
name: cecho
address: localhost:6790
parameters:
  - {name: input, min: 0, max: 127}
  - {name: output, min: 0, max: 127}
echo:
  - {from: input, to: output}
reconnect_interval: 2s
send_queue_limit: 64
`))
	require.NoError(t, err)
	assert.Equal(t, "cecho", n.Name)
	assert.Equal(t, "localhost:6790", n.Address)
	require.Len(t, n.Parameters, 2)
	assert.Equal(t, 127.0, n.Parameters[1].Max)
	assert.Equal(t, []Route{{From: "input", To: "output"}}, n.Echo)

	c := n.Config("cecho")
	assert.Equal(t, 2*time.Second, c.ReconnectInterval)
	assert.Equal(t, 64, c.SendQueueLimit)
}

func TestParseNeuronRejects(t *testing.T) {
	tests := map[string]string{
		"missing name":  "parameters: []",
		"unknown field": "name: x\nbogus: 1",
		"bad route":     "name: x\nparameters: [{name: a, min: 0, max: 1}]\necho: [{from: a, to: b}]",
		"bad range":     "name: x\nparameters: [{name: a, min: 2, max: 1}]",
		"bad address":   "name: x\naddress: host:port",
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseNeuron([]byte(doc))
			assert.Error(t, err)
		})
	}
}
