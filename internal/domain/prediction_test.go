package domain

import (
	"math"
	"testing"
)

func TestRiskLevelOf_Boundaries(t *testing.T) {
	tests := []struct {
		p    float64
		want RiskLevel
	}{
		{0, RiskLow},
		{0.2999, RiskLow},
		{0.3, RiskMedium},
		{0.5999, RiskMedium},
		{0.6, RiskHigh},
		{1, RiskHigh},
	}
	for _, tc := range tests {
		if got := RiskLevelOf(tc.p); got != tc.want {
			t.Errorf("RiskLevelOf(%v) = %s, want %s", tc.p, got, tc.want)
		}
	}
}

func TestNewPrediction_ThresholdOnRoundedValue(t *testing.T) {
	tests := []struct {
		raw       float64
		wantProb  float64
		wantLabel int
	}{
		{0.49996, 0.5, 1},
		{0.49994, 0.4999, 0},
		{0.5, 0.5, 1},
		{0.12345678, 0.1235, 0},
		{-0.1, 0, 0},
		{1.2, 1, 1},
		{math.NaN(), 0, 0},
	}
	for _, tc := range tests {
		p := NewPrediction(tc.raw)
		if p.Probability != tc.wantProb || p.Label != tc.wantLabel {
			t.Errorf("NewPrediction(%v) = %+v, want prob %v label %d", tc.raw, p, tc.wantProb, tc.wantLabel)
		}
		if (p.Label == 1) != (p.Probability >= Threshold) {
			t.Errorf("label/threshold mismatch for %+v", p)
		}
	}
}
