package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ldi/tempo/pkg/models"
)

const (
	metaScore        = "score"
	metaLastSeenDate = "last_seen_date"
)

// SaveState overwrites the stored state with the given snapshot in one
// transaction. There are no partial or merge writes: what was saved
// last wins wholesale.
func (db *DB) SaveState(ctx context.Context, st *models.State) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"tasks", "task_history", "daily_stats"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("failed to clear %s: %w", table, err)
		}
	}

	for _, t := range st.Tasks {
		var startTime *string
		if t.StartTime != nil {
			s := t.StartTime.Format(time.RFC3339Nano)
			startTime = &s
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO tasks (id, title, time_limit, time_remaining, additional_time,
			                   status, active, start_time, date, has_been_rescheduled, completion_time)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, t.ID, t.Title, t.TimeLimit, t.TimeRemaining, t.AdditionalTime,
			t.Status, boolToInt(t.Active), startTime, t.Date, boolToInt(t.HasBeenRescheduled), t.CompletionTime)
		if err != nil {
			return fmt.Errorf("failed to save task %s: %w", t.ID, err)
		}
	}

	for title, entry := range st.TaskHistory {
		times, err := json.Marshal(entry.CompletionTimes)
		if err != nil {
			return fmt.Errorf("failed to encode completion times for %q: %w", title, err)
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO task_history (title, completion_times, average_time, completion_count, failed_attempts)
			VALUES (?, ?, ?, ?, ?)
		`, title, string(times), entry.AverageTime, entry.CompletionCount, entry.FailedAttempts)
		if err != nil {
			return fmt.Errorf("failed to save history for %q: %w", title, err)
		}
	}

	for _, stat := range st.DailyStats {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO daily_stats (date, score, completion_rate, total_attempts)
			VALUES (?, ?, ?, ?)
		`, stat.Date, stat.Score, stat.CompletionRate, stat.TotalAttempts)
		if err != nil {
			return fmt.Errorf("failed to save daily stat %s: %w", stat.Date, err)
		}
	}

	if err := setMeta(ctx, tx, metaScore, fmt.Sprintf("%d", st.Score)); err != nil {
		return err
	}
	if err := setMeta(ctx, tx, metaLastSeenDate, st.LastSeenDate); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// LoadState reads the full stored state. Missing keys come back as
// empty or zero values so a fresh database loads cleanly.
func (db *DB) LoadState(ctx context.Context) (*models.State, error) {
	st := &models.State{
		TaskHistory: make(map[string]*models.HistoryEntry),
	}

	rows, err := db.QueryContext(ctx, `
		SELECT id, title, time_limit, time_remaining, additional_time,
		       status, active, start_time, date, has_been_rescheduled, completion_time
		FROM tasks
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tasks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		t := &models.Task{}
		var active, rescheduled int
		var startTime sql.NullString
		err := rows.Scan(&t.ID, &t.Title, &t.TimeLimit, &t.TimeRemaining, &t.AdditionalTime,
			&t.Status, &active, &startTime, &t.Date, &rescheduled, &t.CompletionTime)
		if err != nil {
			return nil, fmt.Errorf("failed to scan task: %w", err)
		}
		t.Active = active == 1
		t.HasBeenRescheduled = rescheduled == 1
		if startTime.Valid {
			parsed, err := time.Parse(time.RFC3339Nano, startTime.String)
			if err != nil {
				return nil, fmt.Errorf("failed to parse start time for task %s: %w", t.ID, err)
			}
			t.StartTime = &parsed
		}
		st.Tasks = append(st.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	if err := db.loadHistory(ctx, st); err != nil {
		return nil, err
	}
	if err := db.loadDailyStats(ctx, st); err != nil {
		return nil, err
	}

	score, err := getMeta(ctx, db.DB, metaScore)
	if err != nil {
		return nil, err
	}
	if score != "" {
		if _, err := fmt.Sscanf(score, "%d", &st.Score); err != nil {
			return nil, fmt.Errorf("failed to parse stored score %q: %w", score, err)
		}
	}

	st.LastSeenDate, err = getMeta(ctx, db.DB, metaLastSeenDate)
	if err != nil {
		return nil, err
	}

	return st, nil
}

func (db *DB) loadHistory(ctx context.Context, st *models.State) error {
	rows, err := db.QueryContext(ctx, `
		SELECT title, completion_times, average_time, completion_count, failed_attempts
		FROM task_history
	`)
	if err != nil {
		return fmt.Errorf("failed to query task history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var title, times string
		entry := &models.HistoryEntry{}
		if err := rows.Scan(&title, &times, &entry.AverageTime, &entry.CompletionCount, &entry.FailedAttempts); err != nil {
			return fmt.Errorf("failed to scan history entry: %w", err)
		}
		if err := json.Unmarshal([]byte(times), &entry.CompletionTimes); err != nil {
			return fmt.Errorf("failed to decode completion times for %q: %w", title, err)
		}
		st.TaskHistory[title] = entry
	}
	return rows.Err()
}

func (db *DB) loadDailyStats(ctx context.Context, st *models.State) error {
	rows, err := db.QueryContext(ctx, `
		SELECT date, score, completion_rate, total_attempts
		FROM daily_stats
		ORDER BY date ASC
	`)
	if err != nil {
		return fmt.Errorf("failed to query daily stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var stat models.DailyStat
		if err := rows.Scan(&stat.Date, &stat.Score, &stat.CompletionRate, &stat.TotalAttempts); err != nil {
			return fmt.Errorf("failed to scan daily stat: %w", err)
		}
		st.DailyStats = append(st.DailyStats, stat)
	}
	return rows.Err()
}

type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func setMeta(ctx context.Context, exec executor, key, value string) error {
	_, err := exec.ExecContext(ctx, `
		INSERT INTO meta (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set meta %s: %w", key, err)
	}
	return nil
}

func getMeta(ctx context.Context, exec executor, key string) (string, error) {
	var value string
	err := exec.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get meta %s: %w", key, err)
	}
	return value, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
