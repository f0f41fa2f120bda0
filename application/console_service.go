package application

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const DefaultStatusInterval = 30 * time.Second

type Runner interface {
	Run(ctx context.Context) error
}

type StatusSource interface {
	Status() SessionStatus
}

type ConsoleService interface {
	Run(ctx context.Context) error
}

type ConsoleServiceParams struct {
	Console Runner
	Session StatusSource

	// MetricsServer is optional.
	MetricsServer Runner

	// StatusInterval below zero disables the status report.
	StatusInterval time.Duration

	Log zerolog.Logger
}

func (p *ConsoleServiceParams) EnsureDefaults() {
	if p.StatusInterval == 0 {
		p.StatusInterval = DefaultStatusInterval
	}
}

type consoleService struct {
	params ConsoleServiceParams

	log zerolog.Logger
}

func NewConsoleService(params ConsoleServiceParams) (ConsoleService, error) {
	if params.Console == nil {
		return nil, fmt.Errorf("Console is nil")
	}
	if params.Session == nil {
		return nil, fmt.Errorf("Session is nil")
	}
	params.EnsureDefaults()

	return &consoleService{params: params, log: params.Log}, nil
}

// Run returns once the console finishes or ctx is cancelled, after every helper has stopped.
func (s consoleService) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g := errgroup.Group{}

	// console
	g.Go(func() error {
		defer cancel()

		s.log.Info().Msg("console started")
		defer s.log.Info().Msg("console stopped")

		return s.params.Console.Run(ctx)
	})

	if s.params.MetricsServer != nil {
		g.Go(func() error {
			return s.params.MetricsServer.Run(ctx)
		})
	}

	// session status reporter
	if s.params.StatusInterval > 0 {
		g.Go(func() error {
			s.report(ctx)
			return nil
		})
	}

	return g.Wait()
}

func (s consoleService) report(ctx context.Context) {
	ticker := time.NewTicker(s.params.StatusInterval)
	defer ticker.Stop()

	lastStatus := s.params.Session.Status()

ReporterLoop:
	for {
		select {
		case <-ctx.Done():
			break ReporterLoop
		case <-ticker.C:
			newStatus := s.params.Session.Status()
			msgCountDiff := newStatus.PublishedCount - lastStatus.PublishedCount

			s.log.Info().
				Str("state", newStatus.State.String()).
				Float64("msg_per_min", float64(msgCountDiff)/s.params.StatusInterval.Minutes()).
				Uint64("published", newStatus.PublishedCount).
				Uint64("arrived", newStatus.ArrivedCount).
				Time("last_time_published", newStatus.LastTimePublished).
				Msg("session report")

			lastStatus = newStatus
		}
	}
}
