// Package cli implements the engram command line host: it feeds fragment
// streams into the engine, runs pulse checks, and surfaces alerts and health
// summaries to operators.
package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/normanking/engram/internal/config"
	"github.com/normanking/engram/internal/data"
	"github.com/normanking/engram/internal/logging"
	"github.com/normanking/engram/internal/memory"
)

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "engram",
	Short: "Memory consistency and temporal reasoning engine",
	Long: `engram turns a stream of memory fragments into thematically clustered,
temporally ordered, and health-monitored knowledge.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgPath != "" {
			cfg, err = config.LoadFromPath(cfgPath)
		} else {
			cfg, err = config.Load()
		}
		if err != nil {
			return err
		}
		return logging.Setup(cfg.Logging.Level, cfg.Logging.Format)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "path to config file (default ~/.engram/config.yaml)")
	rootCmd.AddCommand(ingestCmd, pulseCmd, alertsCmd, resolveCmd, statusCmd)
}

// engine bundles the three managers over one store, loaded from disk.
type engine struct {
	store    *data.Store
	clusters *memory.ClusterManager
	timeline *memory.Timeline
	pulse    *memory.PulseMonitor
}

func openEngine(ctx context.Context) (*engine, error) {
	store, err := data.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	e := &engine{
		store:    store,
		clusters: memory.NewClusterManager(store.DB(), memory.NewStopwordExtractor(), cfg.Engine),
		timeline: memory.NewTimeline(store.DB(), cfg.Engine),
		pulse:    memory.NewPulseMonitor(store.DB(), cfg.Engine),
	}
	if err := e.clusters.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := e.timeline.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := e.pulse.Load(ctx); err != nil {
		store.Close()
		return nil, err
	}
	return e, nil
}

func (e *engine) Close() {
	e.store.Close()
}
