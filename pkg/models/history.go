package models

// HistoryEntry aggregates past outcomes for one task title.
// CompletionTimes is append-only; AverageTime is the arithmetic mean
// over the full sequence and is recomputed on every new completion.
type HistoryEntry struct {
	CompletionTimes []int   `json:"completion_times"`
	AverageTime     float64 `json:"average_time"`
	CompletionCount int     `json:"completion_count"`
	FailedAttempts  int     `json:"failed_attempts"`
}

// Clone returns a deep copy of the entry.
func (h *HistoryEntry) Clone() *HistoryEntry {
	c := *h
	c.CompletionTimes = append([]int(nil), h.CompletionTimes...)
	return &c
}

// Suggestion is a history-derived hint offered while naming a new task.
type Suggestion struct {
	Title           string  `json:"title"`
	AverageTime     float64 `json:"average_time"`
	CompletionCount int     `json:"completion_count"`
}
