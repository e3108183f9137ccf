package hotness

import "time"

// Policy picks the cache TTL of a cell answer from the cell's score. The
// zero Policy always returns Base.
type Policy struct {
	Threshold float64
	Base      time.Duration
	Warm      time.Duration
	Hot       time.Duration
}

// TTL returns Hot at four times the threshold, Warm at the threshold and
// Base below it. Unset tiers fall back to the next colder one.
func (p Policy) TTL(score float64) time.Duration {
	if p.Threshold <= 0 {
		return p.Base
	}
	warm := p.Warm
	if warm <= 0 {
		warm = p.Base
	}
	hot := p.Hot
	if hot <= 0 {
		hot = warm
	}
	switch {
	case score >= 4*p.Threshold:
		return hot
	case score >= p.Threshold:
		return warm
	default:
		return p.Base
	}
}
