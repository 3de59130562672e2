package engine

import "math"

const basePoints = 10

// ComputePoints awards points for a resolved task. The first completion
// of a title earns the base award regardless of time. After that,
// beating the prior average earns a bonus proportional to the
// improvement, with no cap as completion time approaches zero. Slower
// than average still earns the base award; there is no penalty.
func ComputePoints(completionTime int, averageTime float64, isFirstCompletion bool) int {
	if isFirstCompletion {
		return basePoints
	}

	ct := float64(completionTime)
	if averageTime > 0 && ct < averageTime {
		improvement := (averageTime - ct) / averageTime
		return basePoints + int(math.Floor(basePoints*improvement))
	}
	return basePoints
}
