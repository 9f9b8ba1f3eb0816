// Package score computes the troll probability of a profile snapshot.
package score

import (
	"math"
	"time"

	"fc-troll-detector/internal/model"
	"fc-troll-detector/internal/parse"
)

const (
	ageReferenceDays    = 365 * 10
	activityReference   = 20.0
	threadWeight        = 5.0
	escalationFactor    = 1.2
	deescalationFactor  = 0.7
	veteranDays         = 365 * 3
	veteranMessagesHigh = 2.0
)

// Params holds the tunable part of the algorithm. Weights are fractions;
// they are not required to sum to 1.
type Params struct {
	WeightAge          float64
	WeightActivity     float64
	HighThreshold      int
	MediumThreshold    int
	NewAccountDays     int
	HighMessagesPerDay float64
}

// DefaultParams mirrors the default settings.
func DefaultParams() Params {
	return Params{
		WeightAge:          0.5,
		WeightActivity:     0.5,
		HighThreshold:      70,
		MediumThreshold:    40,
		NewAccountDays:     365,
		HighMessagesPerDay: 10,
	}
}

// Calculator is safe for concurrent use; it holds no mutable state.
type Calculator struct {
	p   Params
	now func() time.Time
}

// New returns a calculator for p using the wall clock.
func New(p Params) *Calculator {
	return &Calculator{p: p, now: time.Now}
}

// WithClock returns a copy of c that measures account age against now.
func (c *Calculator) WithClock(now func() time.Time) *Calculator {
	c2 := *c
	c2.now = now
	return &c2
}

// Params returns the parameters in use.
func (c *Calculator) Params() Params { return c.p }

// Score recomputes the account age from the registration date so a cached
// snapshot is always scored against today.
func (c *Calculator) Score(s model.Snapshot) model.ScoreResult {
	days := parse.DaysSince(s.RegistrationDate, c.now())
	p := c.Probability(days, s.ThreadCount, s.MessageCount)
	return model.ScoreResult{Probability: p, Tier: c.Tier(p)}
}

// AgeFactor decays linearly from 100 to 0 over ten years.
func AgeFactor(days int) float64 {
	return math.Max(0, 100-(float64(days)/ageReferenceDays)*100)
}

// ActivityFactor ramps linearly to 100 at 20 weighted actions per day.
// A thread counts as five messages.
func ActivityFactor(days, threads, messages int) float64 {
	daily := model.PerDay(messages, days) + model.PerDay(threads, days)*threadWeight
	return math.Min(100, (daily/activityReference)*100)
}

// Probability is total over non-negative inputs and returns a value in [0,100].
func (c *Calculator) Probability(days, threads, messages int) int {
	perDay := model.PerDay(messages, days)

	p := AgeFactor(days)*c.p.WeightAge + ActivityFactor(days, threads, messages)*c.p.WeightActivity

	if days < c.p.NewAccountDays && perDay > c.p.HighMessagesPerDay {
		p = math.Min(100, p*escalationFactor)
	}
	if days > veteranDays && perDay < veteranMessagesHigh {
		p = math.Max(0, p*deescalationFactor)
	}

	r := int(math.Round(p))
	switch {
	case r < 0:
		return 0
	case r > 100:
		return 100
	}
	return r
}

// Tier maps a probability onto the configured thresholds. The thresholds
// are not required to be ordered; high is checked first.
func (c *Calculator) Tier(probability int) model.Tier {
	switch {
	case probability >= c.p.HighThreshold:
		return model.TierHigh
	case probability >= c.p.MediumThreshold:
		return model.TierMedium
	}
	return model.TierLow
}
