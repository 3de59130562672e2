package models

// DailyStat is one archived day, appended at rollover and immutable
// thereafter.
type DailyStat struct {
	Date           string  `json:"date"`
	Score          int     `json:"score"`
	CompletionRate float64 `json:"completion_rate"`
	TotalAttempts  int     `json:"total_attempts"`
}

// State is the full persisted working set exchanged with the storage
// layer: load once at startup, overwrite-whole-value on save.
type State struct {
	Tasks        []*Task                  `json:"tasks"`
	TaskHistory  map[string]*HistoryEntry `json:"task_history"`
	DailyStats   []DailyStat              `json:"daily_stats"`
	Score        int                      `json:"score"`
	LastSeenDate string                   `json:"last_seen_date"`
}
