package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bimakw/wallet-indexer/internal/app"
	"github.com/bimakw/wallet-indexer/internal/application/services"
	"github.com/bimakw/wallet-indexer/internal/config"
	"github.com/bimakw/wallet-indexer/internal/domain/entities"
	"github.com/bimakw/wallet-indexer/internal/infrastructure/database"
)

func main() {
	root := &cobra.Command{
		Use:           "indexer",
		Short:         "Wallet transaction sync worker",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(runCmd(), syncCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// bootstrap loads config and builds the logger shared by every subcommand
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, app.NewLogger(cfg.Log), nil
}

func runCmd() *cobra.Command {
	var watchlist string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sync every watchlist wallet on a fixed interval",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()
			if watchlist != "" {
				cfg.Worker.WatchlistFile = watchlist
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			a, err := app.New(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			worker := services.NewSyncService(a.Ingestion, a.SyncRepo, cfg.Worker, logger)
			if err := worker.Start(ctx); err != nil {
				return fmt.Errorf("failed to start sync worker: %w", err)
			}

			go startMetricsServer(cfg.Worker.MetricsPort, worker, logger)

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh

			logger.Info("Received shutdown signal, stopping sync worker...")
			cancel()
			worker.Stop()

			logger.Info("Sync worker stopped")
			return nil
		},
	}
	cmd.Flags().StringVar(&watchlist, "watchlist", "", "watchlist file (overrides WORKER_WATCHLIST_FILE)")
	return cmd
}

func syncCmd() *cobra.Command {
	var (
		wallet string
		chain  string
		full   bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one wallet once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := entities.ParseChain(chain)
			if err != nil {
				return err
			}

			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			a, err := app.New(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			worker := services.NewSyncService(a.Ingestion, a.SyncRepo, cfg.Worker, logger)

			var result *services.IngestResult
			if full || limit > 0 {
				result, err = worker.Backfill(cmd.Context(), wallet, c, limit)
			} else {
				result, err = worker.SyncWallet(cmd.Context(), wallet, c)
			}
			if result != nil {
				result.Events = nil
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				_ = enc.Encode(result)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&wallet, "wallet", "", "wallet address")
	cmd.Flags().StringVar(&chain, "chain", string(entities.ChainEthereum), "chain to sync")
	cmd.Flags().BoolVar(&full, "full", false, "ignore the stored cursor and walk the full history")
	cmd.Flags().IntVar(&limit, "limit", 0, "stop after this many transactions (implies --full)")
	_ = cmd.MarkFlagRequired("wallet")
	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:       "migrate [up|down|version]",
		Short:     "Manage the database schema",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"up", "down", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := bootstrap()
			if err != nil {
				return err
			}
			defer logger.Sync()

			url, path := cfg.Database.URL(), cfg.Database.MigrationsPath
			action := "up"
			if len(args) == 1 {
				action = args[0]
			}

			switch action {
			case "down":
				if err := database.RollbackMigrations(url, path); err != nil {
					return err
				}
				logger.Info("Rolled back one migration")
			case "version":
				version, dirty, err := database.MigrationVersion(url, path)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %v)\n", version, dirty)
			default:
				if err := database.RunMigrations(url, path); err != nil {
					return err
				}
				logger.Info("Migrations applied")
			}
			return nil
		},
	}
	return cmd
}

func startMetricsServer(port int, worker *services.SyncService, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		m := worker.GetMetrics()
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":         "ok",
			"passes":         m.Passes,
			"wallets_synced": m.WalletsSynced,
			"events_stored":  m.EventsStored,
			"errors":         m.ErrorCount,
			"last_pass_at":   m.LastPassAt,
		})
	})

	addr := fmt.Sprintf(":%d", port)
	logger.Info("Starting metrics server", zap.String("addr", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Metrics server error", zap.Error(err))
	}
}
