package model

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/Skufu/heartrisk/internal/dataset"
	"github.com/Skufu/heartrisk/internal/domain"
)

// FitOptions controls the L2-regularised logistic regression solver.
type FitOptions struct {
	// C is the inverse regularisation strength. The intercept is not penalised.
	C       float64
	MaxIter int
	Tol     float64
}

// DefaultFitOptions mirrors the usual liblinear/lbfgs defaults.
func DefaultFitOptions() FitOptions {
	return FitOptions{C: 1, MaxIter: 100, Tol: 1e-8}
}

// ErrNotConverged is returned when Newton steps are still large after MaxIter iterations.
var ErrNotConverged = errors.New("logistic regression did not converge")

// Fit learns the transform from rows and then the weights by iteratively reweighted
// least squares (Newton's method on the penalised log-likelihood).
func Fit(rows []dataset.Row, opts FitOptions) (*Classifier, error) {
	if len(rows) == 0 {
		return nil, errors.New("no training rows")
	}
	if opts.C <= 0 {
		return nil, fmt.Errorf("C must be positive, got %v", opts.C)
	}
	if opts.MaxIter <= 0 {
		opts.MaxIter = DefaultFitOptions().MaxIter
	}
	if opts.Tol <= 0 {
		opts.Tol = DefaultFitOptions().Tol
	}

	features := make([]domain.FeatureVector, len(rows))
	for i, r := range rows {
		features[i] = r.Features
	}
	pre, err := FitPreprocessor(features)
	if err != nil {
		return nil, err
	}

	n, d := len(rows), pre.Width()+1

	// Column 0 is the intercept.
	X := mat.NewDense(n, d, nil)
	y := mat.NewVecDense(n, nil)
	for i, r := range rows {
		x, err := pre.Transform(r.Features)
		if err != nil {
			return nil, err
		}
		X.Set(i, 0, 1)
		for j, v := range x {
			X.Set(i, j+1, v)
		}
		y.SetVec(i, float64(r.Target))
	}

	lambda := 1 / opts.C
	beta := mat.NewVecDense(d, nil)
	z := mat.NewVecDense(n, nil)
	resid := mat.NewVecDense(n, nil)
	weighted := mat.NewDense(n, d, nil)
	grad := mat.NewVecDense(d, nil)
	hess := mat.NewDense(d, d, nil)
	var step mat.VecDense

	converged := false
	for iter := 0; iter < opts.MaxIter; iter++ {
		z.MulVec(X, beta)
		for i := 0; i < n; i++ {
			p := sigmoid(z.AtVec(i))
			resid.SetVec(i, p-y.AtVec(i))
			w := math.Max(p*(1-p), 1e-10)
			for j := 0; j < d; j++ {
				weighted.Set(i, j, X.At(i, j)*w)
			}
		}

		grad.MulVec(X.T(), resid)
		hess.Mul(X.T(), weighted)
		for j := 1; j < d; j++ {
			grad.SetVec(j, grad.AtVec(j)+lambda*beta.AtVec(j))
			hess.Set(j, j, hess.At(j, j)+lambda)
		}

		if err := step.SolveVec(hess, grad); err != nil {
			return nil, fmt.Errorf("newton step %d: %w", iter, err)
		}
		beta.SubVec(beta, &step)

		if mat.Norm(&step, math.Inf(1)) < opts.Tol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, ErrNotConverged
	}

	coef := make([]float64, d-1)
	for j := range coef {
		coef[j] = beta.AtVec(j + 1)
	}
	return NewClassifier(pre, coef, beta.AtVec(0))
}

// TrainResult is the outcome of a split-fit-evaluate run.
type TrainResult struct {
	Classifier *Classifier
	Metrics    Metrics
}

// Train splits ds, fits on the training part and evaluates on the held-out part.
func Train(ds *dataset.Dataset, testFraction float64, seed int64, opts FitOptions) (*TrainResult, error) {
	train, test, err := ds.Split(testFraction, seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}
	c, err := Fit(train, opts)
	if err != nil {
		return nil, fmt.Errorf("fit classifier: %w", err)
	}
	m, err := Evaluate(c, test, len(train))
	if err != nil {
		return nil, err
	}
	return &TrainResult{Classifier: c, Metrics: m}, nil
}
