package db

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ldi/tempo/pkg/models"
)

// snapshotLine is one record in the JSONL snapshot. The record type
// discriminates tasks, history entries, daily stats and the meta line.
type snapshotLine struct {
	Type    string                `json:"type"`
	Task    *models.Task          `json:"task,omitempty"`
	Title   string                `json:"title,omitempty"`
	History *models.HistoryEntry  `json:"history,omitempty"`
	Stat    *models.DailyStat     `json:"stat,omitempty"`
	Meta    *snapshotMeta         `json:"meta,omitempty"`
}

type snapshotMeta struct {
	Score        int    `json:"score"`
	LastSeenDate string `json:"last_seen_date"`
}

// ExportSnapshot writes the stored state to a human-diffable JSONL file
// atomically via a temporary file rename.
func (db *DB) ExportSnapshot(ctx context.Context, path string) error {
	st, err := db.LoadState(ctx)
	if err != nil {
		return fmt.Errorf("failed to load state for snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	tempFile, err := os.CreateTemp(dir, "snapshot-*.jsonl")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer func() {
		if tempFile != nil {
			tempFile.Close()
			os.Remove(tempFile.Name())
		}
	}()

	enc := json.NewEncoder(tempFile)
	write := func(line snapshotLine) error {
		if err := enc.Encode(line); err != nil {
			return fmt.Errorf("failed to write snapshot line: %w", err)
		}
		return nil
	}

	if err := write(snapshotLine{Type: "meta", Meta: &snapshotMeta{Score: st.Score, LastSeenDate: st.LastSeenDate}}); err != nil {
		return err
	}
	for _, t := range st.Tasks {
		if err := write(snapshotLine{Type: "task", Task: t}); err != nil {
			return err
		}
	}
	for title, entry := range st.TaskHistory {
		if err := write(snapshotLine{Type: "history", Title: title, History: entry}); err != nil {
			return err
		}
	}
	for i := range st.DailyStats {
		if err := write(snapshotLine{Type: "stat", Stat: &st.DailyStats[i]}); err != nil {
			return err
		}
	}

	if err := tempFile.Sync(); err != nil {
		return fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	filename := tempFile.Name()
	tempFile = nil // Prevent defer from removing it

	if err := os.Rename(filename, path); err != nil {
		os.Remove(filename)
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

// ImportSnapshot reads a JSONL snapshot and replaces the stored state
// with its contents.
func (db *DB) ImportSnapshot(ctx context.Context, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer file.Close()

	st := &models.State{
		TaskHistory: make(map[string]*models.HistoryEntry),
	}

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var line snapshotLine
		if err := json.Unmarshal(raw, &line); err != nil {
			return fmt.Errorf("failed to parse snapshot line: %w", err)
		}

		switch line.Type {
		case "meta":
			if line.Meta != nil {
				st.Score = line.Meta.Score
				st.LastSeenDate = line.Meta.LastSeenDate
			}
		case "task":
			if line.Task != nil {
				st.Tasks = append(st.Tasks, line.Task)
			}
		case "history":
			if line.Title != "" && line.History != nil {
				st.TaskHistory[line.Title] = line.History
			}
		case "stat":
			if line.Stat != nil {
				st.DailyStats = append(st.DailyStats, *line.Stat)
			}
		default:
			return fmt.Errorf("unknown snapshot record type %q", line.Type)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	return db.SaveState(ctx, st)
}
