package main

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/cuemby/atlas/pkg/config"
	"github.com/cuemby/atlas/pkg/events"
	"github.com/cuemby/atlas/pkg/executor"
	"github.com/cuemby/atlas/pkg/graphbuilder"
	"github.com/cuemby/atlas/pkg/log"
	"github.com/cuemby/atlas/pkg/metrics"
	"github.com/cuemby/atlas/pkg/provider"
	"github.com/cuemby/atlas/pkg/storage"
	"github.com/cuemby/atlas/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version = "dev"
	Commit  = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "atlas",
	Short:   "Atlas provisions cloud infrastructure topologies as a dependency-ordered task graph",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf("Atlas version %s\nCommit: %s\n", Version, Commit))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Directory for the embedded database")
	rootCmd.PersistentFlags().Int("pool-size", config.DefaultExecutor().PoolSize, "Maximum concurrent provider-bound tasks")
	rootCmd.PersistentFlags().Duration("poll-interval", config.DefaultExecutor().PollInterval, "Sleep between scheduling ticks")
	rootCmd.PersistentFlags().String("metrics-addr", "127.0.0.1:9090", "Address to serve /metrics on during provision/deprovision")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(provisionCmd)
	rootCmd.AddCommand(deprovisionCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var createCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new cluster and persist its canonical DAG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dataDir, _ := cmd.Flags().GetString("data-dir")
		nNodes, _ := cmd.Flags().GetInt("nodes")
		nDCs, _ := cmd.Flags().GetInt("data-centres")

		store, err := storage.NewBoltStore(dataDir)
		if err != nil {
			return err
		}
		defer store.Close()

		builder := graphbuilder.New(store)
		graph, err := builder.Create(cmd.Context(), args[0], nNodes, nDCs)
		if err != nil {
			return err
		}

		fmt.Printf("created cluster %q: %s\n", args[0], graph.Root().ID)
		return nil
	},
}

func init() {
	createCmd.Flags().Int("nodes", 3, "Instances per data centre")
	createCmd.Flags().Int("data-centres", 1, "Number of data centres")
}

var provisionCmd = &cobra.Command{
	Use:   "provision CLUSTER_ID",
	Short: "Run the PROVISION phase against a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, args[0], types.PhaseProvision)
	},
}

var deprovisionCmd = &cobra.Command{
	Use:   "deprovision CLUSTER_ID",
	Short: "Run the DELETE phase against a cluster",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPhase(cmd, args[0], types.PhaseDelete)
	},
}

func runPhase(cmd *cobra.Command, clusterID string, phase types.Phase) error {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	poolSize, _ := cmd.Flags().GetInt("pool-size")
	pollInterval, _ := cmd.Flags().GetDuration("poll-interval")
	metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

	store, err := storage.NewBoltStore(dataDir)
	if err != nil {
		return err
	}
	defer store.Close()

	awsProvider, err := provider.NewAWSProvider(context.Background())
	if err != nil {
		return fmt.Errorf("initialize aws provider: %w", err)
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			log.Logger.Warn().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
		}
	}()
	fmt.Printf("metrics endpoint: http://%s/metrics\n", metricsAddr)

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	exec := executor.New(store, awsProvider, broker, config.Executor{
		PoolSize:     poolSize,
		PollInterval: pollInterval,
	})

	return exec.Run(cmd.Context(), clusterID, phase)
}
