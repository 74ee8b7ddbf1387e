package domain

import "math"

// Threshold separates the two predicted classes.
const Threshold = 0.5

// Risk bucket boundaries. They must match the UI gauge legend:
// low < LowRiskBelow <= medium < HighRiskFrom <= high.
const (
	LowRiskBelow = 0.3
	HighRiskFrom = 0.6
)

// RiskLevel is one of the three probability buckets.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// RiskLevelOf buckets a probability. Exactly 0.3 is medium and exactly 0.6 is high.
func RiskLevelOf(p float64) RiskLevel {
	switch {
	case p < LowRiskBelow:
		return RiskLow
	case p < HighRiskFrom:
		return RiskMedium
	default:
		return RiskHigh
	}
}

// Prediction is the classifier output for one FeatureVector.
type Prediction struct {
	Label       int     `json:"predicted_label"`
	Probability float64 `json:"predicted_probability"`
}

// NewPrediction rounds p to four decimals and derives the label from the rounded value,
// so Label == 1 iff Probability >= Threshold always holds for the reported numbers.
func NewPrediction(p float64) Prediction {
	switch {
	case math.IsNaN(p) || p < 0:
		p = 0
	case p > 1:
		p = 1
	}
	p = Round4(p)

	label := 0
	if p >= Threshold {
		label = 1
	}
	return Prediction{Label: label, Probability: p}
}

// RiskLevel buckets the prediction probability.
func (p Prediction) RiskLevel() RiskLevel { return RiskLevelOf(p.Probability) }

// Round4 rounds to four decimal places.
func Round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
