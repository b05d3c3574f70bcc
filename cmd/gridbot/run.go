package main

import (
	"context"
	"log/slog"
	"net/http"
	_ "net/http/pprof" // For pprof profiling
	"os"
	"os/signal"
	"syscall"

	"grid_go/internal/app"

	"github.com/spf13/cobra"
)

var (
	runOnce   bool
	pprofAddr string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the grid loop",
	Long:  `Run rounds on the configured interval until interrupted. With --once a single round is executed.`,
	RunE:  runGrid,
}

func init() {
	runCmd.Flags().BoolVar(&runOnce, "once", false, "run a single round and exit")
	runCmd.Flags().StringVar(&pprofAddr, "pprof", "", "pprof listen address, e.g. localhost:6060")
	rootCmd.AddCommand(runCmd)
}

func runGrid(cmd *cobra.Command, _ []string) error {
	// 1. System Bootstrapping
	bootstrap := app.NewBootstrap()
	if err := bootstrap.Initialize(configPath); err != nil {
		slog.Error("Bootstrapping failed", slog.Any("error", err))
		return err
	}

	// 2. Pprof Server (for performance profiling)
	if pprofAddr != "" {
		go func() {
			slog.Info("Pprof server started", slog.String("addr", pprofAddr))
			if err := http.ListenAndServe(pprofAddr, nil); err != nil {
				slog.Error("Pprof server failed", slog.Any("error", err))
			}
		}()
	}

	// 3. Graceful Shutdown Context
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 4. Broker, feeds, journal, metrics
	sched, err := bootstrap.Start(ctx)
	if err != nil {
		slog.Error("Startup failed", slog.Any("error", err))
		return err
	}
	defer bootstrap.Close()

	if runOnce {
		// A failed round is already logged; it is not a startup error.
		_ = sched.RunOnce(ctx)
		return nil
	}

	slog.InfoContext(ctx, "Grid loop started. Press Ctrl+C to exit.",
		slog.Duration("interval", bootstrap.Config.LoopInterval()))
	sched.Run(ctx)

	slog.InfoContext(context.Background(), "Shutting down gracefully...",
		slog.Uint64("rounds", sched.Rounds()))
	return nil
}
