package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/quorumix/fxcoord/pkg/config"
	"github.com/quorumix/fxcoord/pkg/fxcoord"
	"github.com/quorumix/fxcoord/pkg/fxtelemetry"
	"github.com/quorumix/fxcoord/pkg/log"
	"github.com/quorumix/fxcoord/pkg/metrics"
	"github.com/quorumix/fxcoord/pkg/participant/testdriver"
	"github.com/quorumix/fxcoord/pkg/syncrep"
	"github.com/quorumix/fxcoord/pkg/types"
	"github.com/spf13/cobra"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fxcoordctl",
	Short: "fxcoordctl - foreign transaction coordinator",
	Long: `fxcoordctl runs and inspects a foreign-transaction coordinator: the
two-phase commit manager, resolver, and synchronous-replication wait
engine that keep a local transaction's foreign participants durably
resolved across a crash.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"fxcoordctl version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("data-dir", "./data", "Coordinator data directory")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(foreignXactsCmd)
	rootCmd.AddCommand(resolversCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

// dataDirFlag resolves the --data-dir flag from cmd or, if cmd doesn't
// declare its own copy, from the root command's persistent flag.
func dataDirFlag(cmd *cobra.Command) string {
	dataDir, _ := cmd.Flags().GetString("data-dir")
	if dataDir == "" {
		dataDir, _ = cmd.Root().PersistentFlags().GetString("data-dir")
	}
	return dataDir
}

// openCoordinator builds a Config from the --data-dir flag plus the
// reference defaults (with the entry pool raised to 256 and the resolver
// slot table to 16), opens a Coordinator against it, and recovers its
// FXM state from the WAL and state-file index. These observability and
// maintenance subcommands (foreign-xacts list, resolvers list/stop,
// apply) are standalone invocations against the data directory rather
// than an RPC to a running serve process, so each one reconstructs its
// view of the pool from durable state before acting; they are not meant
// to run concurrently with a live "serve" process against the same
// data-dir, since the WAL and state-file index are single-writer.
func openCoordinator(cmd *cobra.Command) (*fxcoord.Coordinator, error) {
	dataDir := dataDirFlag(cmd)

	cfg := config.Default()
	cfg.DataDir = dataDir
	cfg.MaxPreparedForeignXacts = 256
	cfg.MaxForeignXactResolvers = 16

	c, err := fxcoord.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := c.Recover(map[types.Xid]bool{}); err != nil {
		c.Shutdown()
		return nil, fmt.Errorf("recover: %w", err)
	}
	return c, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the coordinator process",
	Long: `serve opens the coordinator's WAL and state-file index, recovers any
in-doubt entries left by a prior crash, and runs the resolver launcher
until terminated.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Default()
		cfg.DataDir, _ = cmd.Flags().GetString("data-dir")
		cfg.MaxPreparedForeignXacts, _ = cmd.Flags().GetInt("max-prepared-foreign-xacts")
		cfg.MaxForeignXactResolvers, _ = cmd.Flags().GetInt("max-foreign-xact-resolvers")
		standbyNames, _ := cmd.Flags().GetString("synchronous-standby-names")
		metricsAddr, _ := cmd.Flags().GetString("metrics-addr")

		c, err := fxcoord.Open(cfg)
		if err != nil {
			return fmt.Errorf("failed to open coordinator: %v", err)
		}

		// No real foreign-data-source adapter ships in this tree; the
		// in-memory test driver stands in for whatever participant
		// driver an embedding process would register here.
		c.RegisterDriver("test", testdriver.New())

		if standbyNames == "" {
			// Nothing given on the command line; fall back to whatever a
			// prior `fxcoordctl apply -f standby-group.yaml` persisted
			// for this data directory.
			standbyNames, err = config.LoadStandbyGroupFile(cfg.DataDir)
			if err != nil {
				return fmt.Errorf("failed to load persisted standby group: %v", err)
			}
		}
		if standbyNames != "" {
			group, err := syncrep.ParseStandbyGroup(standbyNames)
			if err != nil {
				return fmt.Errorf("failed to parse synchronous-standby-names: %v", err)
			}
			c.SyncRep.UpdateSyncStandbysDefined(group)
		}

		if err := c.Recover(map[types.Xid]bool{}); err != nil {
			return fmt.Errorf("failed to recover: %v", err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		c.Start(ctx)
		fmt.Println("✓ Coordinator started")

		metrics.SetVersion(Version)
		fxtelemetry.RegisterHealthProbes(c.WAL, c.FXM, c.Resolver)

		collector := fxtelemetry.NewCollector(c.FXM, c.Resolver, c.SyncRep)
		collector.Start()
		defer collector.Stop()

		go func() {
			http.Handle("/metrics", metrics.Handler())
			http.Handle("/health", metrics.HealthHandler())
			http.Handle("/ready", metrics.ReadyHandler())
			http.Handle("/live", metrics.LivenessHandler())
			if err := http.ListenAndServe(metricsAddr, nil); err != nil {
				log.Errorf("metrics server error", err)
			}
		}()
		fmt.Printf("✓ Metrics endpoint: http://%s/metrics\n", metricsAddr)

		fmt.Println("Coordinator is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh

		fmt.Println("\nShutting down...")
		if err := c.Shutdown(); err != nil {
			return fmt.Errorf("failed to shutdown: %v", err)
		}
		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serveCmd.Flags().Int("max-prepared-foreign-xacts", 64, "max_prepared_foreign_xacts")
	serveCmd.Flags().Int("max-foreign-xact-resolvers", 8, "max_foreign_xact_resolvers")
	serveCmd.Flags().String("synchronous-standby-names", "", "synchronous_standby_names value")
	serveCmd.Flags().String("metrics-addr", "127.0.0.1:9090", "Metrics/health HTTP listen address")
}
