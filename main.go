package main

import (
	"context"
	"io"
	"mqtt-console/adapters"
	"mqtt-console/application"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

var Flags = []cli.Flag{
	FlagLogLevel,
	FlagLogWriter,
	FlagProfile,
	FlagMQTTHost,
	FlagMQTTPort,
	FlagMQTTClientID,
	FlagMQTTRandomClientID,
	FlagMQTTKeepAlive,
	FlagMQTTCleanSession,
	FlagMQTTUsername,
	FlagMQTTPassword,
	FlagWillTopic,
	FlagWillMessage,
	FlagWillQoS,
	FlagWillRetain,
	FlagHexPayloads,
	FlagEventLog,
	FlagConnectTimeout,
	FlagMetricsAddr,
	FlagStatusInterval,
	FlagConnect,
}

func main() {
	var logger zerolog.Logger

	app := cli.App{
		Name:    "mqtt-console",
		Usage:   "interactive MQTT client",
		Version: "v0.0.1",
		Flags:   Flags,
		Before: func(ctx *cli.Context) error {
			var logWriter io.Writer
			if ctx.String(FlagLogWriter.Name) == "console" {
				logWriter = zerolog.ConsoleWriter{
					Out:        os.Stderr,
					TimeFormat: time.RFC3339Nano,
				}
			} else if ctx.String(FlagLogWriter.Name) == "json" {
				logWriter = os.Stderr
			}

			logger = zerolog.New(logWriter).With().Timestamp().
				Str("service", "mqtt-console").
				Str("module", "main").
				Logger()

			level, err := zerolog.ParseLevel(ctx.String(FlagLogLevel.Name))
			if err != nil {
				return err
			}

			zerolog.SetGlobalLevel(level)

			return nil
		},
		Action: func(ctx *cli.Context) error {
			logger.Info().Msg("service starting...")

			appCtx, cancel := context.WithCancel(logger.WithContext(context.Background()))
			defer cancel()
			go func() {
				c := make(chan os.Signal, 1)
				signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

				<-c

				logger.Warn().Msg("interrupt signal received")
				cancel()
			}()

			cfg, err := connectionConfig(ctx)
			if err != nil {
				return err
			}

			renderPayload := application.TextPayload
			if ctx.Bool(FlagHexPayloads.Name) {
				renderPayload = application.HexPayload
			}

			registry := prometheus.NewRegistry()
			metrics, err := adapters.NewPrometheusMetrics(registry)
			if err != nil {
				return err
			}

			var sink application.EventSink = adapters.NewWriterSink(os.Stdout, logger)
			if path := ctx.String(FlagEventLog.Name); path != "" {
				eventLog, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
				if err != nil {
					return err
				}
				defer eventLog.Close()

				sink = adapters.TeeSink{sink, adapters.NewWriterSink(eventLog, logger)}
			}

			controller, err := application.NewSessionController(application.SessionControllerParams{
				NewTransport: adapters.NewMQTTTransportFactory(adapters.MQTTClientParams{
					Log: logger.With().Str("module", "mqtt-client").Logger(),
				}),
				Sink:           sink,
				Metrics:        metrics,
				RenderPayload:  renderPayload,
				ConnectTimeout: ctx.Duration(FlagConnectTimeout.Name),
				Log:            logger.With().Str("module", "session-controller").Logger(),
			})
			if err != nil {
				return err
			}
			defer func() {
				if err := controller.Close(); err != nil {
					logger.Warn().Err(err).Msg("session controller close")
				}
			}()

			console, err := adapters.NewConsole(adapters.ConsoleParams{
				Session:        controller,
				Config:         cfg,
				In:             os.Stdin,
				Out:            os.Stdout,
				ConnectOnStart: ctx.Bool(FlagConnect.Name),
				Log:            logger.With().Str("module", "console").Logger(),
			})
			if err != nil {
				return err
			}

			var metricsServer application.Runner
			if addr := ctx.String(FlagMetricsAddr.Name); addr != "" {
				metricsServer, err = adapters.NewMetricsServer(adapters.MetricsServerParams{
					Addr:     addr,
					Gatherer: registry,
					Log:      logger.With().Str("module", "metrics-server").Logger(),
				})
				if err != nil {
					return err
				}
			}

			statusInterval := ctx.Duration(FlagStatusInterval.Name)
			if statusInterval <= 0 {
				statusInterval = -1
			}

			consoleService, err := application.NewConsoleService(application.ConsoleServiceParams{
				Console:        console,
				Session:        controller,
				MetricsServer:  metricsServer,
				StatusInterval: statusInterval,
				Log:            logger.With().Str("module", "console-service").Logger(),
			})
			if err != nil {
				return err
			}

			logger.Info().Msg("service started")
			err = consoleService.Run(appCtx)
			if err != nil {
				return err
			}

			logger.Info().Msg("service terminating...")
			return nil
		},
		Authors: []*cli.Author{
			{
				Name:  "Marcin Gorzynski",
				Email: "marcin@gorzynski.me",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Err(err).Msg("service terminated")
		os.Exit(1)
	}
}
