// Package service holds the use cases behind the HTTP API: scoring and recording a
// prediction, and querying the submission history.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/logger"
	"github.com/Skufu/heartrisk/internal/metrics"
	"github.com/Skufu/heartrisk/internal/submission"
)

// Scorer turns a validated feature vector into a prediction.
type Scorer interface {
	Score(v domain.FeatureVector) (domain.Prediction, error)
}

// Appender persists a submission.
type Appender interface {
	Append(ctx context.Context, s *submission.Submission) error
}

// RequestMeta is the client information recorded with each submission.
type RequestMeta struct {
	UserAgent string
	IP        string
}

// PredictResult is returned for a scored and recorded request.
type PredictResult struct {
	domain.Prediction
	RiskLevel    domain.RiskLevel     `json:"risk_level"`
	InputEcho    domain.FeatureVector `json:"input_echo"`
	SubmissionID int64                `json:"submission_id"`
}

// PredictionService validates, scores and records prediction requests.
type PredictionService struct {
	scorer Scorer
	store  Appender
	logger *zap.Logger
}

// NewPredictionService wires the pipeline.
func NewPredictionService(scorer Scorer, store Appender, logger *zap.Logger) *PredictionService {
	return &PredictionService{scorer: scorer, store: store, logger: logger}
}

// Predict rejects invalid input before it reaches the classifier, then scores and appends
// a submission. Errors carry a domain kind.
func (s *PredictionService) Predict(ctx context.Context, raw domain.RawInput, meta RequestMeta) (*PredictResult, error) {
	log := logger.FromContext(ctx)

	fv, note, err := raw.Parse()
	if err != nil {
		metrics.ValidationFailuresTotal.Inc()
		log.Debug("prediction input rejected", zap.Error(err))
		return nil, err
	}

	if s.scorer == nil {
		return nil, fmt.Errorf("%w: no classifier loaded", domain.ErrModelUnavailable)
	}
	pred, err := s.scorer.Score(fv)
	if err != nil {
		if !errors.Is(err, domain.ErrModelUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
		}
		s.logger.Error("scoring failed", zap.Error(err))
		return nil, err
	}

	if note != nil && strings.TrimSpace(*note) == "" {
		note = nil
	}
	sub := submission.New(fv, pred, note)
	sub.UserAgent = meta.UserAgent
	sub.IP = meta.IP

	if err := s.store.Append(ctx, sub); err != nil {
		metrics.StoreErrorsTotal.WithLabelValues("append").Inc()
		s.logger.Error("saving submission failed", zap.Error(err))
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrStoreUnavailable, err)
		}
		return nil, err
	}

	level := pred.RiskLevel()
	metrics.PredictionsTotal.WithLabelValues(string(level)).Inc()
	metrics.PredictionProbability.Observe(pred.Probability)

	log.Info("prediction recorded",
		zap.Int64("submission_id", sub.ID),
		zap.Float64("probability", pred.Probability),
		zap.String("risk_level", string(level)),
	)

	return &PredictResult{
		Prediction:   pred,
		RiskLevel:    level,
		InputEcho:    fv,
		SubmissionID: sub.ID,
	}, nil
}
