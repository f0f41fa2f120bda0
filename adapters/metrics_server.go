package adapters

import (
	"context"
	"errors"
	"fmt"
	"mqtt-console/application"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const (
	MetricsPath                   = "/metrics"
	MetricsDefaultShutdownTimeout = 5 * time.Second
)

type MetricsServerParams struct {
	Addr     string
	Gatherer prometheus.Gatherer

	ShutdownTimeout time.Duration

	Log zerolog.Logger
}

func (p *MetricsServerParams) EnsureDefaults() {
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = MetricsDefaultShutdownTimeout
	}
}

type MetricsServer struct {
	params MetricsServerParams
	server *http.Server

	log zerolog.Logger
}

func NewMetricsServer(params MetricsServerParams) (*MetricsServer, error) {
	if params.Addr == "" {
		return nil, fmt.Errorf("Addr is empty")
	}
	if params.Gatherer == nil {
		return nil, fmt.Errorf("Gatherer is nil")
	}
	params.EnsureDefaults()

	mux := http.NewServeMux()
	mux.Handle(MetricsPath, promhttp.HandlerFor(params.Gatherer, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return &MetricsServer{
		params: params,
		server: &http.Server{
			Addr:              params.Addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: params.Log,
	}, nil
}

func (s *MetricsServer) handler() http.Handler {
	return s.server.Handler
}

// Run serves until ctx is cancelled, then shuts the server down.
func (s *MetricsServer) Run(ctx context.Context) error {
	l, err := net.Listen("tcp", s.params.Addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	s.log.Info().Str("addr", l.Addr().String()).Msg("metrics server started")

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.params.ShutdownTimeout)
		defer cancel()

		s.log.Info().Msg("metrics server stopping")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return <-errCh
	}
}

var _ application.Runner = &MetricsServer{}
