package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"strconv"
	"strings"
	"time"

	m "github.com/Meander-Cloud/go-neuron/message"
)

const (
	// defaults for when not provided in Config
	DefaultHost        string        = "localhost"
	DefaultPort        uint16        = 6789
	EventChannelLength uint16        = 1024
	DialTimeout        time.Duration = time.Second * 3
	WriteTimeout       time.Duration = time.Second * 3
	ReconnectInterval  time.Duration = time.Second
	PollInterval       time.Duration = time.Millisecond * 50
	ReadChunkSize      int           = 4096
)

// PathSuffix follows the neuron name in the bus URL path.
const PathSuffix = "/autoconfig"

type Config struct {
	EventChannelLength uint16

	Secure            bool // wss instead of ws
	DialTimeout       time.Duration
	WriteTimeout      time.Duration
	ReconnectInterval time.Duration
	PollInterval      time.Duration
	ReadChunkSize     int
	SendQueueLimit    int // 0 means unbounded

	LogPrefix string
	LogDebug  bool
}

func (c *Config) Validate() error {
	if c == nil {
		err := fmt.Errorf("nil config")
		log.Printf("%s", err.Error())
		return err
	}

	if c.DialTimeout < 0 {
		err := fmt.Errorf("invalid DialTimeout=%v", c.DialTimeout)
		log.Printf("%s", err.Error())
		return err
	}

	if c.WriteTimeout < 0 {
		err := fmt.Errorf("invalid WriteTimeout=%v", c.WriteTimeout)
		log.Printf("%s", err.Error())
		return err
	}

	if c.ReconnectInterval < 0 {
		err := fmt.Errorf("invalid ReconnectInterval=%v", c.ReconnectInterval)
		log.Printf("%s", err.Error())
		return err
	}

	if c.PollInterval < 0 {
		err := fmt.Errorf("invalid PollInterval=%v", c.PollInterval)
		log.Printf("%s", err.Error())
		return err
	}

	if c.ReadChunkSize < 0 {
		err := fmt.Errorf("invalid ReadChunkSize=%d", c.ReadChunkSize)
		log.Printf("%s", err.Error())
		return err
	}

	if c.SendQueueLimit < 0 {
		err := fmt.Errorf("invalid SendQueueLimit=%d", c.SendQueueLimit)
		log.Printf("%s", err.Error())
		return err
	}

	return nil
}

// WithDefaults returns a copy where every zero tunable takes its package default.
func (c *Config) WithDefaults() *Config {
	r := Config{}
	if c != nil {
		r = *c
	}

	if r.EventChannelLength == 0 {
		r.EventChannelLength = EventChannelLength
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = DialTimeout
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = WriteTimeout
	}
	if r.ReconnectInterval == 0 {
		r.ReconnectInterval = ReconnectInterval
	}
	if r.PollInterval == 0 {
		r.PollInterval = PollInterval
	}
	if r.ReadChunkSize == 0 {
		r.ReadChunkSize = ReadChunkSize
	}

	return &r
}

// ParseAddress splits "host:port". An empty address yields localhost and the
// default port, and a missing port yields the default port.
func ParseAddress(address string) (string, uint16, error) {
	if address == "" {
		return DefaultHost, DefaultPort, nil
	}

	colon := strings.LastIndexByte(address, ':')
	// bare IPv6 literal without brackets or port
	if colon < 0 || (strings.Count(address, ":") > 1 && !strings.HasPrefix(address, "[")) {
		return address, DefaultPort, nil
	}

	host, portStr, err := net.SplitHostPort(address)
	if err != nil {
		return "", 0, fmt.Errorf("invalid address=%s: %w", address, err)
	}

	if host == "" {
		host = DefaultHost
	}

	if portStr == "" {
		return host, DefaultPort, nil
	}

	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil || port == 0 {
		return "", 0, fmt.Errorf("invalid port=%s in address=%s", portStr, address)
	}

	return host, uint16(port), nil
}

// NeuronURL builds ws(s)://host:port/<name>/autoconfig.
func NeuronURL(secure bool, host string, port uint16, name string) *url.URL {
	scheme := "ws"
	if secure {
		scheme = "wss"
	}

	return &url.URL{
		Scheme: scheme,
		Host:   net.JoinHostPort(host, strconv.FormatUint(uint64(port), 10)),
		Path:   "/" + name + PathSuffix,
	}
}

// ValidateName checks the neuron name, which becomes one URL path segment.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("invalid neuron name=%q", name)
	}

	if strings.ContainsAny(name, "/?#") {
		return fmt.Errorf("neuron name=%q must not contain '/', '?' or '#'", name)
	}

	if len(name) > m.MaxNameLen {
		return fmt.Errorf("neuron name length %d exceeds %d", len(name), m.MaxNameLen)
	}

	return nil
}
