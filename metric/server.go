package metric

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	MetricsPath = "/metrics"
	HealthPath  = "/health"
)

// Handler exposes gatherer on MetricsPath and a liveness probe on HealthPath.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(
		MetricsPath,
		promhttp.HandlerFor(
			gatherer,
			promhttp.HandlerOpts{
				EnableOpenMetrics: true,
			},
		),
	)
	mux.HandleFunc(HealthPath, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	return mux
}

type Server struct {
	logPrefix string
	server    *http.Server
	done      chan struct{}
}

// Serve listens on addr in the background until Shutdown.
func Serve(addr string, gatherer prometheus.Gatherer, logPrefix string) *Server {
	s := &Server{
		logPrefix: logPrefix,
		server: &http.Server{
			Addr:              addr,
			Handler:           Handler(gatherer),
			ReadHeaderTimeout: 5 * time.Second,
		},
		done: make(chan struct{}),
	}

	go func() {
		defer close(s.done)

		log.Printf("%s: metrics listening on %s", s.logPrefix, addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("%s: metrics server exited, err=%s", s.logPrefix, err.Error())
		}
	}()

	return s
}

func (s *Server) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	err := s.server.Shutdown(ctx)
	if err != nil {
		log.Printf("%s: metrics server shutdown, err=%s", s.logPrefix, err.Error())
	}
	<-s.done
}
