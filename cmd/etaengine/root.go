package main

import (
	"github.com/spf13/cobra"

	"fleet-eta/internal/config"
)

func newRootCmd() *cobra.Command {
	var envFiles []string
	root := &cobra.Command{
		Use:   "etaengine",
		Short: "Live trip ETA and traffic estimation for the fleet",
		Long: `etaengine keeps an arrival estimate for every tracked trip. It recomputes
simulated traffic on a fixed interval, reacts to vehicle positions from NATS,
and publishes ETA updates to NATS and optionally Kafka.`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load before reading the environment (default .env)")

	load := func() (*config.Config, error) { return config.Load(envFiles...) }
	root.AddCommand(newServeCmd(load), newEstimateCmd(load))
	return root
}
