package model

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/Skufu/heartrisk/internal/domain"
)

// Classifier is a fitted logistic regression bound to its preprocessor.
// It is immutable once constructed and safe for concurrent use.
type Classifier struct {
	pre       *Preprocessor
	coef      []float64
	intercept float64
}

// NewClassifier binds coefficients to a preprocessor. The coefficient count must match
// the preprocessor's column count.
func NewClassifier(pre *Preprocessor, coef []float64, intercept float64) (*Classifier, error) {
	if pre == nil {
		return nil, fmt.Errorf("nil preprocessor")
	}
	if len(coef) != pre.Width() {
		return nil, fmt.Errorf("have %d coefficients for %d columns", len(coef), pre.Width())
	}
	for _, c := range append([]float64{intercept}, coef...) {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("non-finite coefficient")
		}
	}
	return &Classifier{pre: pre, coef: append([]float64(nil), coef...), intercept: intercept}, nil
}

// Preprocessor returns the bound transform.
func (c *Classifier) Preprocessor() *Preprocessor { return c.pre }

// Coefficients returns a copy of the weights in column order.
func (c *Classifier) Coefficients() []float64 { return append([]float64(nil), c.coef...) }

// Intercept returns the bias term.
func (c *Classifier) Intercept() float64 { return c.intercept }

// Probability scores v without rounding.
func (c *Classifier) Probability(v domain.FeatureVector) (float64, error) {
	x, err := c.pre.Transform(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return sigmoid(floats.Dot(c.coef, x) + c.intercept), nil
}

// Score applies the decision threshold to the probability for v.
func (c *Classifier) Score(v domain.FeatureVector) (domain.Prediction, error) {
	p, err := c.Probability(v)
	if err != nil {
		return domain.Prediction{}, err
	}
	return domain.NewPrediction(p), nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}
