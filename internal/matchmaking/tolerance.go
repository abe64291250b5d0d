package matchmaking

import (
	"time"

	"github.com/elliotchance/pie/v2"
)

// FlexStep widens the tolerance once an entry has waited at least After.
type FlexStep struct {
	After     time.Duration `mapstructure:"after"`
	Tolerance int           `mapstructure:"tolerance"`
}

// TolerancePolicy decides how far apart two ratings may be for a pairing,
// as a function of how long the older entry has waited.
type TolerancePolicy struct {
	Base  int        `mapstructure:"base"`
	Max   int        `mapstructure:"max"`
	Steps []FlexStep `mapstructure:"steps"`
}

// DefaultTolerance is used when no policy is configured.
func DefaultTolerance() TolerancePolicy {
	return TolerancePolicy{
		Base: 100,
		Max:  400,
		Steps: []FlexStep{
			{After: 15 * time.Second, Tolerance: 150},
			{After: 30 * time.Second, Tolerance: 200},
			{After: 60 * time.Second, Tolerance: 300},
			{After: 120 * time.Second, Tolerance: 400},
		},
	}
}

// Allowed returns the rating gap permitted after waiting wait. Every active
// step contributes, so a misordered step list still widens monotonically.
func (p TolerancePolicy) Allowed(wait time.Duration) int {
	allowed := max(p.Base, 0)
	active := pie.Filter(p.Steps, func(s FlexStep) bool { return wait >= s.After })
	for _, s := range active {
		allowed = max(allowed, s.Tolerance)
	}
	if p.Max > 0 && allowed > p.Max {
		allowed = p.Max
	}
	return allowed
}

// Within reports whether a and b may be paired at now.
func (p TolerancePolicy) Within(a, b Entry, now time.Time) bool {
	wait := max(a.Wait(now), b.Wait(now))
	gap := a.SkillRating - b.SkillRating
	if gap < 0 {
		gap = -gap
	}
	return gap <= p.Allowed(wait)
}
