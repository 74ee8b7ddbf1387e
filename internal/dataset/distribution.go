package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/Skufu/heartrisk/internal/domain"
)

// DefaultBins is the histogram resolution served to the UI.
const DefaultBins = 20

// Distribution summarises one numeric feature.
type Distribution struct {
	Histogram []int     `json:"histogram"`
	BinEdges  []float64 `json:"bin_edges"`
	Min       float64   `json:"min"`
	Max       float64   `json:"max"`
	Mean      float64   `json:"mean"`
	Std       float64   `json:"std"`
}

// Column returns the values of the named feature across rows.
func Column(rows []Row, name string) []float64 {
	out := make([]float64, 0, len(rows))
	for _, r := range rows {
		v, _ := r.Features.Get(name)
		out = append(out, float64(v))
	}
	return out
}

// Distributions summarises every numeric schema feature over the full dataset.
func (d *Dataset) Distributions(bins int) (map[string]Distribution, error) {
	out := make(map[string]Distribution)
	for _, name := range domain.FieldsOfKind(domain.Numeric) {
		dist, err := Summarize(Column(d.Rows, name), bins)
		if err != nil {
			return nil, fmt.Errorf("summarize %s: %w", name, err)
		}
		out[name] = dist
	}
	return out, nil
}

// Summarize computes equal-width histogram counts and moments for values.
// The last bin includes the maximum. The standard deviation is the population one.
func Summarize(values []float64, bins int) (Distribution, error) {
	if len(values) == 0 {
		return Distribution{}, fmt.Errorf("no values")
	}
	if bins <= 0 {
		return Distribution{}, fmt.Errorf("bins must be positive, got %d", bins)
	}

	lo, hi := floats.Min(values), floats.Max(values)
	edgeLo, edgeHi := lo, hi
	if lo == hi {
		edgeLo, edgeHi = lo-0.5, hi+0.5
	}
	edges := floats.Span(make([]float64, bins+1), edgeLo, edgeHi)

	counts := make([]int, bins)
	width := (edgeHi - edgeLo) / float64(bins)
	for _, v := range values {
		i := int((v - edgeLo) / width)
		if i >= bins {
			i = bins - 1
		}
		if i < 0 {
			i = 0
		}
		// Guard against the computed index landing one bin off an exact edge.
		for i > 0 && v < edges[i] {
			i--
		}
		for i < bins-1 && v >= edges[i+1] {
			i++
		}
		counts[i]++
	}

	mean, std := stat.PopMeanStdDev(values, nil)

	return Distribution{
		Histogram: counts,
		BinEdges:  edges,
		Min:       lo,
		Max:       hi,
		Mean:      mean,
		Std:       std,
	}, nil
}
