package main

import (
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/Meander-Cloud/go-neuron/config"
	"github.com/Meander-Cloud/go-neuron/connector"
	m "github.com/Meander-Cloud/go-neuron/message"
	"github.com/Meander-Cloud/go-neuron/metric"
	"github.com/Meander-Cloud/go-neuron/tap"
)

func runCmd() *cobra.Command {
	var (
		nf          neuronFlags
		record      string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Register a neuron and echo routed values until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := nf.resolve()
			if err != nil {
				return err
			}

			s, err := newSession(n, record, metricsAddr)
			if err != nil {
				return err
			}
			defer s.close()

			s.routeEcho(n.Echo)

			err = s.c.Start()
			if err != nil {
				return err
			}

			sig := waitSignal() // wait
			log.Printf("%s: received signal %s, exiting", s.logPrefix, sig.String())
			return nil
		},
	}

	nf.register(cmd)
	cmd.Flags().StringVar(&record, "record", "", "Record every sent and received value to this tap file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address, e.g. :9090")

	return cmd
}

// session owns a connector together with its optional recorder and metrics server.
type session struct {
	logPrefix string
	c         *connector.Connector
	recorder  *tap.Recorder
	metrics   *metric.Server
}

func newSession(n *config.Neuron, record string, metricsAddr string) (*session, error) {
	s := &session{
		logPrefix: "neuron<" + n.Name + ">",
	}

	var err error
	defer func() {
		if err != nil {
			s.close()
		}
	}()

	if record != "" {
		s.recorder, err = tap.CreateFile(record)
		if err != nil {
			return nil, err
		}
	}

	var metrics *metric.Metrics
	if metricsAddr != "" {
		registry := prometheus.NewRegistry()
		metrics = metric.New(registry, n.Name)
		s.metrics = metric.Serve(metricsAddr, registry, s.logPrefix)
	}

	s.c, err = connector.New(
		n.Name,
		n.Address,
		n.Parameters,
		&connector.Options{
			Config:   n.Config(s.logPrefix),
			Metrics:  metrics,
			Recorder: s.recorder,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create connector: %w", err)
	}

	s.c.OnConnect(func() {
		log.Printf("%s: connected to %s", s.logPrefix, s.c.URL().String())
	})
	s.c.OnDisconnect(func() {
		log.Printf("%s: disconnected", s.logPrefix)
	})
	s.c.OnError(func(err error) {
		log.Printf("%s: error, err=%s", s.logPrefix, err.Error())
	})

	return s, nil
}

// routeEcho sends every received value back under each route target.
func (s *session) routeEcho(routes []config.Route) {
	targets := make(map[string][]string)
	for _, r := range routes {
		targets[r.From] = append(targets[r.From], r.To)
	}

	s.c.OnMessage(func(msg m.Message) {
		log.Printf("%s: received %s", s.logPrefix, msg.String())

		for _, to := range targets[msg.Name] {
			err := s.c.Send(to, msg.Value)
			if err != nil {
				log.Printf("%s: failed to echo %s to %s, err=%s", s.logPrefix, msg.Name, to, err.Error())
			}
		}
	})
}

func (s *session) close() {
	if s.c != nil {
		s.c.Dispose() // wait
	}

	if s.recorder != nil {
		err := s.recorder.Close()
		if err != nil {
			log.Printf("%s: failed to close recorder, err=%s", s.logPrefix, err.Error())
		}
	}

	if s.metrics != nil {
		s.metrics.Shutdown() // wait
	}
}

func waitSignal() os.Signal {
	sigch := make(chan os.Signal, 1)
	signal.Notify(sigch, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigch)
	return <-sigch
}
