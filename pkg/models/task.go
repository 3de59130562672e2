package models

import "time"

type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
)

// Task is one timed unit of work belonging to a single calendar day.
// Title doubles as the join key into the per-title history.
type Task struct {
	ID             string     `json:"id"`
	Title          string     `json:"title"`
	TimeLimit      int        `json:"time_limit"`
	TimeRemaining  int        `json:"time_remaining"`
	AdditionalTime int        `json:"additional_time"`
	Status         TaskStatus `json:"status"`
	Active         bool       `json:"active"`
	StartTime      *time.Time `json:"start_time"`
	Date           string     `json:"date"`

	// HasBeenRescheduled is set once a failed task has spawned a
	// rescheduled copy, so it can only be rescheduled once.
	HasBeenRescheduled bool `json:"has_been_rescheduled,omitempty"`

	// CompletionTime is the total seconds elapsed, recorded when the
	// task reaches a terminal outcome via a complete action.
	CompletionTime int `json:"completion_time,omitempty"`
}
