package submission

import "github.com/Skufu/heartrisk/internal/domain"

// RiskDistribution counts submissions per risk bucket.
type RiskDistribution struct {
	Low    int `json:"low"`
	Medium int `json:"medium"`
	High   int `json:"high"`
}

// Total is the sum of all buckets.
func (d RiskDistribution) Total() int { return d.Low + d.Medium + d.High }

// Stats summarises a set of submissions.
type Stats struct {
	TotalCount       int              `json:"total_count"`
	AverageRisk      float64          `json:"average_risk"`
	RiskDistribution RiskDistribution `json:"risk_distribution"`
}

// Tally accumulates Stats one probability at a time.
type Tally struct {
	n    int
	sum  float64
	dist RiskDistribution
}

// Add counts one probability.
func (t *Tally) Add(p float64) {
	t.n++
	t.sum += p
	switch domain.RiskLevelOf(p) {
	case domain.RiskLow:
		t.dist.Low++
	case domain.RiskMedium:
		t.dist.Medium++
	default:
		t.dist.High++
	}
}

// Stats returns the accumulated summary. The average is 0 for an empty tally.
func (t *Tally) Stats() Stats {
	return NewStats(t.n, t.sum, t.dist)
}

// NewStats assembles Stats from a count, a probability sum and bucket counts.
func NewStats(count int, sum float64, dist RiskDistribution) Stats {
	avg := 0.0
	if count > 0 {
		avg = domain.Round4(sum / float64(count))
	}
	return Stats{TotalCount: count, AverageRisk: avg, RiskDistribution: dist}
}
