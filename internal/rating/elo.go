// Package rating computes head-to-head Elo updates.
package rating

import "math"

const (
	// K is the update factor applied per result.
	K = 32
	// Initial is the rating of a player with no recorded results.
	Initial = 1500
)

// Outcome is the first player's result against the second.
type Outcome float64

const (
	Loss Outcome = 0
	Draw Outcome = 0.5
	Win  Outcome = 1
)

// Expected returns the probability that a rated player beats b.
func Expected(a, b int) float64 {
	return 1 / (1 + math.Pow(10, float64(b-a)/400))
}

// Update returns the new ratings of a and b after a scored outcome
// against b. The sum of both ratings is preserved up to rounding.
func Update(a, b int, outcome Outcome) (int, int) {
	ea := Expected(a, b)
	delta := int(math.Round(K * (float64(outcome) - ea)))
	return a + delta, b - delta
}
