package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/spf13/cobra"

	"github.com/Ramsey-B/fern/config"
	"github.com/Ramsey-B/fern/pkg/database"
	"github.com/Ramsey-B/fern/pkg/events"
	"github.com/Ramsey-B/fern/pkg/graph"
	"github.com/Ramsey-B/fern/pkg/kafka"
	"github.com/Ramsey-B/fern/pkg/merging"
	"github.com/Ramsey-B/fern/pkg/models"
	"github.com/Ramsey-B/fern/pkg/pipeline"
	"github.com/Ramsey-B/fern/pkg/routes"
	"github.com/Ramsey-B/fern/pkg/routes/health"
	"github.com/Ramsey-B/fern/pkg/startup"
	"github.com/Ramsey-B/fern/pkg/tracing"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and, when enabled, the Kafka record consumer",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(*envFile)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger ectologger.Logger) error {
	shutdownTracing, err := tracing.Setup(ctx, cfg.TracingConfig(), logger)
	if err != nil {
		return err
	}

	var (
		db          database.DB
		graphClient *graph.Client
		producer    *kafka.Producer
	)

	deps := startup.NewStartup(logger, cfg.StartupMaxAttempts)
	deps.AddDependency(startup.Dependency{
		Name: "database",
		OnStart: func(ctx context.Context) (err error) {
			db, err = openStore(ctx, cfg, logger)
			return err
		},
		OnStop: func(context.Context) error { return db.Close() },
	})
	if cfg.GraphEnabled {
		deps.AddDependency(startup.Dependency{
			Name: "graph",
			OnStart: func(ctx context.Context) error {
				client, err := graph.NewClient(cfg.GraphConfig(), logger)
				if err != nil {
					return err
				}
				if err := client.VerifyConnectivity(ctx); err != nil {
					client.Close(ctx)
					return err
				}
				graphClient = client
				return nil
			},
			OnStop: func(ctx context.Context) error { return graphClient.Close(ctx) },
		})
	}
	if cfg.KafkaProducerEnabled {
		deps.AddDependency(startup.Dependency{
			Name: "kafka-producer",
			OnStart: func(context.Context) error {
				producer = kafka.NewProducer(cfg.ProducerConfig(), logger)
				return nil
			},
			OnStop: func(context.Context) error { return producer.Close() },
		})
	}

	if err := deps.Start(ctx); err != nil {
		return err
	}

	stopCtx := context.WithoutCancel(ctx)
	defer func() {
		if err := deps.Stop(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to stop dependencies")
		}
		if err := shutdownTracing(stopCtx); err != nil {
			logger.WithError(err).Error("Failed to flush traces")
		}
	}()

	a, err := newApp(ctx, cfg, logger, db)
	if err != nil {
		return err
	}

	sinks := []pipeline.Sink{pipeline.LinkStoreSink{Store: a.links}}
	if producer != nil {
		sinks = append(sinks, pipeline.EventSink{Emitter: events.NewEmitter(producer, logger)})
	}
	if graphClient != nil {
		sinks = append(sinks, pipeline.GraphSink{Graph: graph.NewOrganizationService(graphClient, logger)})
	}
	p := pipeline.New(a.resolver, a.registry, logger, sinks...)

	checker := health.NewChecker(version)
	checker.AddCheck("database", func(ctx context.Context) error { return db.PingContext(ctx) })
	if graphClient != nil {
		checker.AddCheck("graph", graphClient.VerifyConnectivity)
	}

	var consumer *kafka.Consumer
	if cfg.KafkaConsumerEnabled {
		consumer = kafka.NewConsumer(cfg.ConsumerConfig(), logger, consumeHandler(p, logger))
		if err := consumer.Start(ctx); err != nil {
			return err
		}
		defer consumer.Stop()
	}

	e := routes.NewServer(routes.Dependencies{
		ServiceName: cfg.AppName,
		Pipeline:    p,
		Reconciler:  merging.NewReconciler(a.engine, logger),
		Links:       a.links,
		Health:      checker,
		Logger:      logger,
	})
	e.Server.ReadTimeout = time.Duration(cfg.HttpServerReadTimeoutSeconds) * time.Second
	e.Server.WriteTimeout = time.Duration(cfg.HttpServerWriteTimeoutSeconds) * time.Second
	e.Server.IdleTimeout = time.Duration(cfg.HttpServerIdleTimeoutSeconds) * time.Second

	serverErr := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		logger.WithField("addr", addr).Info("HTTP server listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()
	checker.SetReady(true)

	select {
	case err := <-serverErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	checker.SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(stopCtx, time.Duration(cfg.ShutdownTimeoutSeconds)*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// consumeHandler resolves one consumed record. Sink-only failures are logged
// and the message is committed.
func consumeHandler(p *pipeline.Pipeline, logger ectologger.Logger) kafka.RecordHandler {
	return func(ctx context.Context, record models.IncomingRecord) error {
		err := p.Handle(ctx, record)
		if err != nil && pipeline.OnlySinkErrors(err) {
			logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"source":    record.Source,
				"record_id": record.RecordID,
			}).Warn("Record resolved but delivery failed")
			return nil
		}
		return err
	}
}
