package engine

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ldi/tempo/pkg/models"
)

// Engine owns the working set for "today": tasks, score, per-title
// history and the archived daily stats. All mutation goes through one
// mutex so ticker-driven updates and user actions serialize into a
// single logical writer.
type Engine struct {
	mu           sync.RWMutex
	tasks        []*models.Task
	history      map[string]*models.HistoryEntry
	dailyStats   []models.DailyStat
	score        int
	rate         float64
	attempts     int
	lastSeenDate string

	loc   *time.Location
	now   func() time.Time
	newID func() string

	onChange   func()
	onChangeMu sync.RWMutex
}

func New(loc *time.Location) *Engine {
	if loc == nil {
		loc = time.Local
	}
	return &Engine{
		history: make(map[string]*models.HistoryEntry),
		loc:     loc,
		now:     time.Now,
		newID:   uuid.NewString,
	}
}

// SetOnChange registers a hook invoked after every successful mutation.
// The hook runs outside the engine lock; persistence is fire-and-forget
// from the engine's point of view.
func (e *Engine) SetOnChange(fn func()) {
	e.onChangeMu.Lock()
	defer e.onChangeMu.Unlock()
	e.onChange = fn
}

func (e *Engine) triggerChange() {
	e.onChangeMu.RLock()
	fn := e.onChange
	e.onChangeMu.RUnlock()

	if fn != nil {
		fn()
	}
}

// Today returns the current calendar date in the engine's configured zone.
func (e *Engine) Today() string {
	return e.dateOf(e.now())
}

func (e *Engine) dateOf(t time.Time) string {
	return t.In(e.loc).Format("2006-01-02")
}

// CreateTask adds a pending, inactive task budgeted at timeLimit
// seconds. Empty titles and non-positive budgets are rejected so a
// zero-budget task can never enter the working set.
func (e *Engine) CreateTask(title string, timeLimit int) (*models.Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("task title must not be empty")
	}
	if timeLimit <= 0 {
		return nil, fmt.Errorf("task time limit must be positive, got %d", timeLimit)
	}

	t := &models.Task{
		ID:            e.newID(),
		Title:         title,
		TimeLimit:     timeLimit,
		TimeRemaining: timeLimit,
		Status:        models.TaskStatusPending,
		Date:          e.Today(),
	}

	e.mu.Lock()
	e.tasks = append(e.tasks, t)
	out := cloneTask(t)
	e.mu.Unlock()

	e.triggerChange()
	return out, nil
}

// StartTask begins the countdown for a pending, inactive task.
// Unknown IDs and invalid states are silent no-ops.
func (e *Engine) StartTask(id string) {
	e.mu.Lock()
	t := e.findLocked(id)
	if t == nil || t.Active || t.Status != models.TaskStatusPending {
		e.mu.Unlock()
		return
	}
	start := e.now()
	t.Active = true
	t.StartTime = &start
	e.mu.Unlock()

	e.triggerChange()
}

// Tick advances every active task's countdown to the given instant.
// A pending task whose budget is exhausted flips to failed atomically
// with the tick; it stays active so overrun keeps accumulating.
// Completed tasks are never ticked.
func (e *Engine) Tick(now time.Time) {
	e.mu.Lock()
	changed := false
	for _, t := range e.tasks {
		if !t.Active || t.StartTime == nil {
			continue
		}
		elapsed := int(now.Sub(*t.StartTime) / time.Second)
		switch t.Status {
		case models.TaskStatusPending:
			remaining := t.TimeLimit - elapsed
			if remaining <= 0 {
				t.TimeRemaining = 0
				t.Status = models.TaskStatusFailed
			} else {
				t.TimeRemaining = remaining
			}
			changed = true
		case models.TaskStatusFailed:
			if extra := elapsed - t.TimeLimit; extra > t.AdditionalTime {
				t.AdditionalTime = extra
				changed = true
			}
		}
	}
	if changed {
		e.recomputeRateLocked()
	}
	e.mu.Unlock()

	if changed {
		e.triggerChange()
	}
}

// CompleteTask resolves an active task after the user has confirmed.
// Total elapsed seconds feed the history series and the score for both
// outcomes, but only a task still pending at this point counts as
// completed; once a tick has flipped it to failed, failed is final.
func (e *Engine) CompleteTask(id string) {
	e.mu.Lock()
	t := e.findLocked(id)
	if t == nil || !t.Active {
		e.mu.Unlock()
		return
	}

	completionTime := t.TimeLimit - t.TimeRemaining + t.AdditionalTime

	// Average prior to this completion is the scoring baseline.
	var priorAverage float64
	isFirst := true
	if entry, ok := e.history[t.Title]; ok {
		priorAverage = entry.AverageTime
		isFirst = entry.CompletionCount == 0
	}
	e.score += ComputePoints(completionTime, priorAverage, isFirst)
	e.recordCompletionLocked(t.Title, completionTime)

	if t.Status == models.TaskStatusPending {
		t.Status = models.TaskStatusCompleted
	} else {
		e.recordFailureLocked(t.Title)
	}
	t.Active = false
	t.CompletionTime = completionTime

	e.recomputeRateLocked()
	e.mu.Unlock()

	e.triggerChange()
}

// RescheduleTask spawns a fresh pending copy of a failed task with a
// doubled budget. Each failed task can be rescheduled at most once;
// its own terminal status is untouched. Returns the new task, or nil
// if the call was a no-op.
func (e *Engine) RescheduleTask(id string) *models.Task {
	e.mu.Lock()
	t := e.findLocked(id)
	if t == nil || t.Status != models.TaskStatusFailed || t.HasBeenRescheduled {
		e.mu.Unlock()
		return nil
	}
	t.HasBeenRescheduled = true

	nt := &models.Task{
		ID:            e.newID(),
		Title:         t.Title,
		TimeLimit:     t.TimeLimit * 2,
		TimeRemaining: t.TimeLimit * 2,
		Status:        models.TaskStatusPending,
		Date:          e.Today(),
	}
	e.tasks = append(e.tasks, nt)
	out := cloneTask(nt)
	e.mu.Unlock()

	e.triggerChange()
	return out
}

// DeleteTask removes a task that has not yet been started. Running and
// terminal tasks are left alone.
func (e *Engine) DeleteTask(id string) {
	e.mu.Lock()
	idx := -1
	for i, t := range e.tasks {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 || e.tasks[idx].Active || e.tasks[idx].Status != models.TaskStatusPending {
		e.mu.Unlock()
		return
	}
	e.tasks = append(e.tasks[:idx], e.tasks[idx+1:]...)
	e.recomputeRateLocked()
	e.mu.Unlock()

	e.triggerChange()
}

// ResetAll clears tasks, score, history and daily stats. This is the
// user-triggered irreversible wipe, distinct from the daily rollover;
// callers must gate it behind an explicit confirmation.
func (e *Engine) ResetAll() {
	e.mu.Lock()
	e.tasks = nil
	e.score = 0
	e.rate = 0
	e.attempts = 0
	e.history = make(map[string]*models.HistoryEntry)
	e.dailyStats = nil
	e.mu.Unlock()

	e.triggerChange()
}

// Restore replaces the engine's working state with a loaded snapshot.
// Tasks from a different calendar day are dropped; the day-scoped
// completion rate is recomputed from what survives.
func (e *Engine) Restore(st *models.State) {
	if st == nil {
		return
	}

	e.mu.Lock()
	today := e.dateOf(e.now())

	e.tasks = nil
	for _, t := range st.Tasks {
		if t.Date == today {
			e.tasks = append(e.tasks, cloneTask(t))
		}
	}

	e.history = make(map[string]*models.HistoryEntry, len(st.TaskHistory))
	for title, entry := range st.TaskHistory {
		e.history[title] = entry.Clone()
	}

	e.dailyStats = append([]models.DailyStat(nil), st.DailyStats...)
	e.score = st.Score
	e.lastSeenDate = st.LastSeenDate
	e.recomputeRateLocked()
	e.mu.Unlock()
}

// State returns a deep copy of the full working state for persistence
// or transport.
func (e *Engine) State() *models.State {
	e.mu.RLock()
	defer e.mu.RUnlock()

	st := &models.State{
		Tasks:        make([]*models.Task, 0, len(e.tasks)),
		TaskHistory:  make(map[string]*models.HistoryEntry, len(e.history)),
		DailyStats:   append([]models.DailyStat(nil), e.dailyStats...),
		Score:        e.score,
		LastSeenDate: e.lastSeenDate,
	}
	for _, t := range e.tasks {
		st.Tasks = append(st.Tasks, cloneTask(t))
	}
	for title, entry := range e.history {
		st.TaskHistory[title] = entry.Clone()
	}
	return st
}

// Tasks returns a copy of today's task list in creation order.
func (e *Engine) Tasks() []*models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]*models.Task, 0, len(e.tasks))
	for _, t := range e.tasks {
		out = append(out, cloneTask(t))
	}
	return out
}

// Task returns a copy of one task, or nil if the ID is unknown.
func (e *Engine) Task(id string) *models.Task {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if t := e.findLocked(id); t != nil {
		return cloneTask(t)
	}
	return nil
}

func (e *Engine) Score() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.score
}

// CompletionRate is the percentage of today's terminal tasks that
// completed in budget, and the number of terminal attempts behind it.
func (e *Engine) CompletionRate() (rate float64, totalAttempts int) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.rate, e.attempts
}

func (e *Engine) findLocked(id string) *models.Task {
	for _, t := range e.tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}

// recomputeRateLocked refreshes the day-scoped completion rate from the
// current task set. Zero terminal tasks means a zero rate, not NaN.
func (e *Engine) recomputeRateLocked() {
	completed, failed := 0, 0
	for _, t := range e.tasks {
		switch t.Status {
		case models.TaskStatusCompleted:
			completed++
		case models.TaskStatusFailed:
			failed++
		}
	}
	if completed+failed == 0 {
		e.rate = 0
		e.attempts = 0
		return
	}
	e.attempts = completed + failed
	e.rate = float64(completed) / float64(e.attempts) * 100
}

func cloneTask(t *models.Task) *models.Task {
	c := *t
	if t.StartTime != nil {
		st := *t.StartTime
		c.StartTime = &st
	}
	return &c
}
