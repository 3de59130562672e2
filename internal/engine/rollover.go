package engine

import (
	"time"

	"github.com/ldi/tempo/pkg/models"
)

// CheckRollover archives the previous day and resets the working set
// once the calendar date changes in the configured zone. Calling it
// again within the same day is a no-op, so it is safe to run on
// startup and on every periodic check. It takes the same lock as the
// tick path, so a rollover can never interleave with an in-flight
// mutation.
func (e *Engine) CheckRollover(now time.Time) {
	e.mu.Lock()
	today := e.dateOf(now)
	if e.lastSeenDate == today {
		e.mu.Unlock()
		return
	}

	if e.lastSeenDate != "" {
		e.dailyStats = append(e.dailyStats, models.DailyStat{
			Date:           e.lastSeenDate,
			Score:          e.score,
			CompletionRate: e.rate,
			TotalAttempts:  e.attempts,
		})
	}

	e.tasks = nil
	e.score = 0
	e.rate = 0
	e.attempts = 0
	e.lastSeenDate = today
	e.mu.Unlock()

	e.triggerChange()
}

// DailyStats returns a copy of the archived days in rollover order.
func (e *Engine) DailyStats() []models.DailyStat {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]models.DailyStat(nil), e.dailyStats...)
}
