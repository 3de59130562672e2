package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ldi/tempo/internal/config"
	"github.com/ldi/tempo/internal/db"
	"github.com/ldi/tempo/pkg/models"
)

func openDatabase(ctx context.Context) (*db.DB, *config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, err
	}

	database, err := db.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Init(ctx); err != nil {
		database.Close()
		return nil, nil, err
	}
	return database, cfg, nil
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show today's tasks, score, and completion rate",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func runStatus() error {
	ctx := context.Background()
	database, _, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := database.LoadState(ctx)
	if err != nil {
		return err
	}

	statusCounts := make(map[models.TaskStatus]int)
	active := 0
	for _, t := range st.Tasks {
		statusCounts[t.Status]++
		if t.Active {
			active++
		}
	}

	completed := statusCounts[models.TaskStatusCompleted]
	failed := statusCounts[models.TaskStatusFailed]
	rate := 0.0
	if completed+failed > 0 {
		rate = float64(completed) / float64(completed+failed) * 100
	}

	fmt.Println("Tempo Status")
	fmt.Println("============")
	fmt.Printf("Date:            %s\n", st.LastSeenDate)
	fmt.Printf("Score:           %d\n", st.Score)
	fmt.Printf("Completion Rate: %.1f%%\n", rate)
	fmt.Printf("Total Tasks:     %d\n", len(st.Tasks))
	fmt.Printf("Active Tasks:    %d\n", active)

	fmt.Println("\nTask Breakdown:")
	fmt.Printf("  Pending:   %d\n", statusCounts[models.TaskStatusPending])
	fmt.Printf("  Completed: %d\n", completed)
	fmt.Printf("  Failed:    %d\n", failed)

	return nil
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Show per-title completion history",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory()
		},
	}
}

func runHistory() error {
	ctx := context.Background()
	database, _, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	st, err := database.LoadState(ctx)
	if err != nil {
		return err
	}

	titles := make([]string, 0, len(st.TaskHistory))
	for title := range st.TaskHistory {
		titles = append(titles, title)
	}
	sort.Strings(titles)

	fmt.Printf("%-30s %-12s %-12s %-10s\n", "TITLE", "AVG (s)", "COMPLETED", "FAILED")
	fmt.Println("------------------------------------------------------------------")
	for _, title := range titles {
		entry := st.TaskHistory[title]
		fmt.Printf("%-30s %-12.1f %-12d %-10d\n", title, entry.AverageTime, entry.CompletionCount, entry.FailedAttempts)
	}
	return nil
}

func newResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Erase all tasks, history, stats, and score",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReset(cmd.InOrStdin())
		},
	}
}

func runReset(in io.Reader) error {
	fmt.Print("This erases all tasks, history, and stats. Type 'reset' to confirm: ")

	scanner := bufio.NewScanner(in)
	if !scanner.Scan() || !strings.EqualFold(strings.TrimSpace(scanner.Text()), "reset") {
		fmt.Println("Aborted.")
		return nil
	}

	ctx := context.Background()
	database, cfg, err := openDatabase(ctx)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SaveState(ctx, &models.State{}); err != nil {
		return err
	}
	if err := database.ExportSnapshot(ctx, cfg.SnapshotPath); err != nil {
		return err
	}

	fmt.Println("All data erased.")
	return nil
}

func newSnapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export or import a plain-text snapshot of the database",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "export [path]",
		Short: "Write the database to a JSONL snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			database, cfg, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			path := cfg.SnapshotPath
			if len(args) > 0 {
				path = args[0]
			}
			if err := database.ExportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Printf("Snapshot written to %s\n", path)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import [path]",
		Short: "Replace the database contents from a JSONL snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			database, cfg, err := openDatabase(ctx)
			if err != nil {
				return err
			}
			defer database.Close()

			path := cfg.SnapshotPath
			if len(args) > 0 {
				path = args[0]
			}
			if err := database.ImportSnapshot(ctx, path); err != nil {
				return err
			}
			fmt.Printf("Snapshot imported from %s\n", path)
			return nil
		},
	})

	return cmd
}
