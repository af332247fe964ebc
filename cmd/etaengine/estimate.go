package main

import (
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/spf13/cobra"

	"fleet-eta/internal/config"
	"fleet-eta/internal/db"
	"fleet-eta/internal/eta"
	"fleet-eta/internal/fleet"
	"fleet-eta/internal/traffic"
)

func newEstimateCmd(load func() (*config.Config, error)) *cobra.Command {
	var (
		tripID      string
		lat, lon    float64
		speedFactor float64
	)
	cmd := &cobra.Command{
		Use:   "estimate",
		Short: "Compute a one-off ETA for a trip from a vehicle location",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := load()
			if err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			ctx := cmd.Context()

			sqlDB, err := db.Open(cfg.DatabaseURL)
			if err != nil {
				return fmt.Errorf("db open error: %w", err)
			}
			defer sqlDB.Close()
			trip, err := db.FetchTrip(ctx, sqlDB, tripID)
			if err != nil {
				return fmt.Errorf("fetch trip %s: %w", tripID, err)
			}

			model := traffic.NewModel(traffic.DefaultZones(), rand.New(rand.NewSource(cfg.RandSeed())))
			if speedFactor > 0 {
				model.SetSpeedFactor(speedFactor)
			} else {
				model.Tick()
			}
			engine := eta.NewEngine(newGeocoder(sqlDB, cfg.GeocodeTimeout), model, nil, nil, eta.Options{})
			rec, err := engine.ComputeETA(ctx, trip, fleet.Coordinate{Lat: lat, Lon: lon})
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				fleet.ETARecord
				SpeedFactor float64 `json:"speedFactor"`
				ETASeconds  float64 `json:"etaSeconds"`
			}{rec, model.SpeedFactor(), rec.ExpectedArrival.Sub(rec.LastUpdated).Seconds()})
		},
	}
	cmd.Flags().StringVar(&tripID, "trip", "", "trip id")
	cmd.Flags().Float64Var(&lat, "lat", 0, "vehicle latitude")
	cmd.Flags().Float64Var(&lon, "lon", 0, "vehicle longitude")
	cmd.Flags().Float64Var(&speedFactor, "speed-factor", 0, "pin the traffic speed factor instead of simulating one tick")
	_ = cmd.MarkFlagRequired("trip")
	_ = cmd.MarkFlagRequired("lat")
	_ = cmd.MarkFlagRequired("lon")
	return cmd
}
