package main

import (
	"context"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/ldi/tempo/internal/engine"
	"github.com/ldi/tempo/internal/mcp"
)

func newMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run the MCP server on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP()
		},
	}
}

func runMCP() error {
	ctx := context.Background()
	database, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	st, err := database.LoadState(ctx)
	if err != nil {
		return err
	}

	eng := engine.New(loc)
	eng.Restore(st)

	eng.SetOnChange(func() {
		saveCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := database.SaveState(saveCtx, eng.State()); err != nil {
			log.Printf("Error saving state: %v", err)
		}
		if err := database.ExportSnapshot(saveCtx, cfg.SnapshotPath); err != nil {
			log.Printf("Error exporting snapshot: %v", err)
		}
	})

	eng.CheckRollover(time.Now().In(loc))

	s := mcp.NewServer(eng)
	return mcp.Serve(s)
}
