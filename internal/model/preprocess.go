// Package model turns validated clinical input into classifier features, scores it with a
// fitted logistic regression, and owns the read-only snapshot built at startup.
package model

import (
	"fmt"
	"slices"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/Skufu/heartrisk/internal/domain"
)

// Scaler standardizes one numeric feature.
type Scaler struct {
	Feature string  `json:"feature"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
}

// Encoder expands one categorical feature into indicator columns.
type Encoder struct {
	Feature    string `json:"feature"`
	Categories []int  `json:"categories"`
}

// Preprocessor maps a FeatureVector to the classifier's input columns:
// standardized numeric features, then one indicator per category, then binary pass-through.
type Preprocessor struct {
	Scalers  []Scaler  `json:"scalers"`
	Encoders []Encoder `json:"encoders"`
	Binary   []string  `json:"binary"`
}

// FitPreprocessor learns scaler moments and observed categories from the training rows.
func FitPreprocessor(rows []domain.FeatureVector) (*Preprocessor, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("no rows to fit preprocessor")
	}

	p := &Preprocessor{Binary: domain.FieldsOfKind(domain.Binary)}

	for _, name := range domain.FieldsOfKind(domain.Numeric) {
		mean, std := stat.PopMeanStdDev(column(rows, name), nil)
		p.Scalers = append(p.Scalers, Scaler{Feature: name, Mean: mean, Std: std})
	}

	for _, name := range domain.FieldsOfKind(domain.Categorical) {
		seen := map[int]bool{}
		for _, r := range rows {
			v, _ := r.Get(name)
			seen[v] = true
		}
		cats := make([]int, 0, len(seen))
		for c := range seen {
			cats = append(cats, c)
		}
		sort.Ints(cats)
		p.Encoders = append(p.Encoders, Encoder{Feature: name, Categories: cats})
	}

	return p, nil
}

func column(rows []domain.FeatureVector, name string) []float64 {
	out := make([]float64, len(rows))
	for i, r := range rows {
		v, _ := r.Get(name)
		out[i] = float64(v)
	}
	return out
}

// Columns names the output columns in order.
func (p *Preprocessor) Columns() []string {
	cols := make([]string, 0, p.Width())
	for _, s := range p.Scalers {
		cols = append(cols, s.Feature)
	}
	for _, e := range p.Encoders {
		for _, c := range e.Categories {
			cols = append(cols, fmt.Sprintf("%s_%d", e.Feature, c))
		}
	}
	cols = append(cols, p.Binary...)
	return cols
}

// Width is the number of output columns.
func (p *Preprocessor) Width() int {
	w := len(p.Scalers) + len(p.Binary)
	for _, e := range p.Encoders {
		w += len(e.Categories)
	}
	return w
}

// Transform produces the feature row for v. It is a pure function of p and v.
func (p *Preprocessor) Transform(v domain.FeatureVector) ([]float64, error) {
	out := make([]float64, 0, p.Width())

	for _, s := range p.Scalers {
		x, ok := v.Get(s.Feature)
		if !ok {
			return nil, fmt.Errorf("unknown numeric feature %q", s.Feature)
		}
		std := s.Std
		if std == 0 {
			std = 1
		}
		out = append(out, (float64(x)-s.Mean)/std)
	}

	for _, e := range p.Encoders {
		x, ok := v.Get(e.Feature)
		if !ok {
			return nil, fmt.Errorf("unknown categorical feature %q", e.Feature)
		}
		for _, c := range e.Categories {
			if x == c {
				out = append(out, 1)
			} else {
				out = append(out, 0)
			}
		}
	}

	for _, name := range p.Binary {
		x, ok := v.Get(name)
		if !ok {
			return nil, fmt.Errorf("unknown binary feature %q", name)
		}
		out = append(out, float64(x))
	}

	return out, nil
}

// checkSchema verifies that the preprocessor covers exactly the schema's features with
// the expected encoding. Encoders may hold categories the request form never sends; their
// indicator columns are always 0 when scoring.
func (p *Preprocessor) checkSchema() error {
	want := map[domain.FieldKind][]string{
		domain.Numeric:     domain.FieldsOfKind(domain.Numeric),
		domain.Categorical: domain.FieldsOfKind(domain.Categorical),
		domain.Binary:      domain.FieldsOfKind(domain.Binary),
	}

	got := map[domain.FieldKind][]string{domain.Binary: p.Binary}
	for _, s := range p.Scalers {
		got[domain.Numeric] = append(got[domain.Numeric], s.Feature)
	}
	for _, e := range p.Encoders {
		got[domain.Categorical] = append(got[domain.Categorical], e.Feature)
		if len(e.Categories) == 0 {
			return fmt.Errorf("no categories for %s", e.Feature)
		}
		for i := 1; i < len(e.Categories); i++ {
			if e.Categories[i] <= e.Categories[i-1] {
				return fmt.Errorf("categories of %s are not strictly increasing: %v", e.Feature, e.Categories)
			}
		}
	}

	for kind, names := range want {
		if !slices.Equal(got[kind], names) {
			return fmt.Errorf("%s features %v do not match schema %v", kind, got[kind], names)
		}
	}
	return nil
}
