package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"math/rand"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"fleet-eta/internal/api"
	"fleet-eta/internal/config"
	"fleet-eta/internal/db"
	"fleet-eta/internal/eta"
	"fleet-eta/internal/fleet"
	"fleet-eta/internal/geocode"
	"fleet-eta/internal/metrics"
	"fleet-eta/internal/publisher"
	"fleet-eta/internal/traffic"
)

func newServeCmd(load func() (*config.Config, error)) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the ETA engine until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			// Root context with cancellation on SIGINT/SIGTERM
			ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	sqlDB, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("db open error: %w", err)
	}
	defer sqlDB.Close()
	if err := db.Ping(ctx, sqlDB); err != nil {
		return fmt.Errorf("db ping error: %w", err)
	}

	mcol := metrics.NewCollector(cfg.TickInterval, cfg.TripsRefreshInterval)

	pub, err := publisher.NewNATSPublisher(cfg.NATSURL, cfg.NATSETASubjectPrefix, cfg.LogNATSSubjects, mcol)
	if err != nil {
		return fmt.Errorf("nats error: %w", err)
	}
	defer pub.Close()

	sinks := publisher.Multi{pub}
	if cfg.KafkaBrokers != "" {
		kp, err := publisher.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaETATopic, mcol)
		if err != nil {
			return fmt.Errorf("kafka error: %w", err)
		}
		defer kp.Close()
		sinks = append(sinks, kp)
	}

	seed := cfg.RandSeed()
	log.Printf("traffic simulation seed %d", seed)
	model := traffic.NewModel(traffic.DefaultZones(), rand.New(rand.NewSource(seed)))
	trips := eta.NewTripRegistry()
	engine := eta.NewEngine(newGeocoder(sqlDB, cfg.GeocodeTimeout), model, trips, eta.NewStore(), eta.Options{
		Interval: cfg.TickInterval,
		Rand:     rand.New(rand.NewSource(seed + 1)),
		Sink:     sinks,
		Observer: mcol,
		Resolve: func(ctx context.Context, tripID string) (fleet.Trip, error) {
			return db.FetchOpenTrip(ctx, sqlDB, tripID)
		},
	})

	mcol.CountRegistered(trips.Len)

	source := func(ctx context.Context, now time.Time) ([]fleet.Trip, error) {
		return db.FetchActiveTrips(ctx, sqlDB, now.In(cfg.Location), cfg.PreloadHorizon)
	}
	refresher := eta.NewRefresher(source, trips, cfg.TripsRefreshInterval, engine.Forget)

	engine.Start(ctx)
	refresher.Start(ctx)

	sub, err := pub.SubscribePositions(ctx, cfg.NATSPositionSubject, cfg.ComputeConcurrency, func(ctx context.Context, pos fleet.Position) error {
		_, err := engine.HandlePosition(ctx, pos)
		if err != nil {
			mcol.PositionsDropped.Inc()
		}
		return err
	})
	if err != nil {
		refresher.Stop()
		engine.Stop()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	if cfg.HTTPAddr != "" {
		srv := mcol.Serve(cfg.HTTPAddr, api.Routes(engine))
		g.Go(func() error {
			<-gctx.Done()
			// Shutdown with timeout
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		if err := sub.Close(); err != nil {
			log.Printf("unsubscribe error: %v", err)
		}
		refresher.Stop()
		engine.Stop()
		return nil
	})

	err = g.Wait()
	log.Println("shutdown complete")
	return err
}

func newGeocoder(sqlDB *sql.DB, timeout time.Duration) geocode.Gateway {
	return geocode.WithTimeout(geocode.NewCached(geocode.NewPostgres(sqlDB)), timeout)
}
