package engine

import (
	"sort"
	"strings"

	"github.com/ldi/tempo/pkg/models"
)

// recordCompletionLocked appends a completion time to the title's
// series and recomputes the running average over the full sequence.
// Both completed and failed resolutions feed the same series.
func (e *Engine) recordCompletionLocked(title string, completionTime int) {
	entry, ok := e.history[title]
	if !ok {
		entry = &models.HistoryEntry{}
		e.history[title] = entry
	}

	entry.CompletionTimes = append(entry.CompletionTimes, completionTime)
	sum := 0
	for _, ct := range entry.CompletionTimes {
		sum += ct
	}
	entry.AverageTime = float64(sum) / float64(len(entry.CompletionTimes))
	entry.CompletionCount++
}

func (e *Engine) recordFailureLocked(title string) {
	if entry, ok := e.history[title]; ok {
		entry.FailedAttempts++
	}
}

// History returns a copy of the per-title aggregates.
func (e *Engine) History() map[string]*models.HistoryEntry {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string]*models.HistoryEntry, len(e.history))
	for title, entry := range e.history {
		out[title] = entry.Clone()
	}
	return out
}

// RenameHistory moves a title's aggregate record to a new key. A
// missing old title is a no-op; an existing record under the new title
// is overwritten, not merged.
func (e *Engine) RenameHistory(oldTitle, newTitle string) {
	if newTitle == "" || oldTitle == newTitle {
		return
	}

	e.mu.Lock()
	entry, ok := e.history[oldTitle]
	if !ok {
		e.mu.Unlock()
		return
	}
	e.history[newTitle] = entry
	delete(e.history, oldTitle)
	e.mu.Unlock()

	e.triggerChange()
}

// Suggestions returns history entries whose title contains the query,
// case-insensitively, for prefill while naming a new task. Queries
// shorter than two characters return nothing.
func (e *Engine) Suggestions(query string) []models.Suggestion {
	if len(query) < 2 {
		return nil
	}
	q := strings.ToLower(query)

	e.mu.RLock()
	var out []models.Suggestion
	for title, entry := range e.history {
		if strings.Contains(strings.ToLower(title), q) {
			out = append(out, models.Suggestion{
				Title:           title,
				AverageTime:     entry.AverageTime,
				CompletionCount: entry.CompletionCount,
			})
		}
	}
	e.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Title < out[j].Title })
	return out
}
