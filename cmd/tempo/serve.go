package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldi/tempo/internal/config"
	"github.com/ldi/tempo/internal/db"
	"github.com/ldi/tempo/internal/engine"
	"github.com/ldi/tempo/internal/server"
	tasksync "github.com/ldi/tempo/internal/sync"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the timer daemon with the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return err
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Init(ctx); err != nil {
		return err
	}

	st, err := database.LoadState(ctx)
	if err != nil {
		return err
	}

	eng := engine.New(loc)
	eng.Restore(st)

	var syncClient *tasksync.Client
	if cfg.Sync.Enabled {
		syncClient = tasksync.NewClient(cfg.Sync.BaseURL, cfg.Sync.DebounceWindow.Std())
		go syncClient.Run(ctx)
	}

	// Persist after every mutation. The hook runs outside the engine
	// lock, so reading State here is safe.
	eng.SetOnChange(func() {
		snapshot := eng.State()

		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := database.SaveState(saveCtx, snapshot); err != nil {
			log.Printf("Error saving state: %v", err)
		}
		if err := database.ExportSnapshot(saveCtx, cfg.SnapshotPath); err != nil {
			log.Printf("Error exporting snapshot: %v", err)
		}

		if syncClient != nil {
			for _, task := range snapshot.Tasks {
				syncClient.QueueTask(task)
			}
		}
	})

	// Startup rollover runs after the hook is registered so a day
	// boundary crossed while the daemon was down gets persisted.
	eng.CheckRollover(time.Now().In(loc))

	runner := engine.NewRunner(eng)
	runner.TickInterval = cfg.TickInterval.Std()
	runner.RolloverInterval = cfg.RolloverInterval.Std()
	go runner.Run(ctx)

	srv := server.NewServer(eng)
	go func() {
		if err := srv.Start(cfg.HTTPAddr); err != nil && err != http.ErrServerClosed {
			log.Printf("HTTP server error: %v", err)
			stop()
		}
	}()

	fmt.Printf("tempo serving on %s\n", cfg.HTTPAddr)
	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Error shutting down HTTP server: %v", err)
	}

	// Last write so nothing between the final tick and SIGTERM is lost.
	if err := database.SaveState(shutdownCtx, eng.State()); err != nil {
		log.Printf("Error saving state on shutdown: %v", err)
	}
	if err := database.ExportSnapshot(shutdownCtx, cfg.SnapshotPath); err != nil {
		log.Printf("Error exporting snapshot on shutdown: %v", err)
	}

	return nil
}
