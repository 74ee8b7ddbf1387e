package model

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/dataset"
	"github.com/Skufu/heartrisk/internal/domain"
)

// SnapshotConfig locates the startup artifacts.
type SnapshotConfig struct {
	BundlePath     string
	DatasetPath    string
	TestFraction   float64
	Seed           int64
	Bins           int
	TrainIfMissing bool
}

// Snapshot is the process-wide read-only state: the classifier plus everything derived
// from the training dataset. It is built once and never mutated.
type Snapshot struct {
	Classifier    *Classifier
	Metrics       Metrics
	Distributions map[string]dataset.Distribution
	LoadedAt      time.Time
	// Trained is set when the bundle was fitted at startup rather than loaded.
	Trained bool
}

// BuildSnapshot loads the dataset and the model bundle, training and saving a bundle when
// none exists and cfg allows it, then evaluates on the held-out split.
func BuildSnapshot(cfg SnapshotConfig, log *zap.Logger) (*Snapshot, error) {
	ds, err := dataset.Load(cfg.DatasetPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	train, test, err := ds.Split(cfg.TestFraction, cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}

	snap := &Snapshot{LoadedAt: time.Now().UTC()}

	snap.Classifier, err = LoadBundle(cfg.BundlePath)
	switch {
	case err == nil:
		log.Info("model bundle loaded", zap.String("path", cfg.BundlePath))
	case isMissing(cfg.BundlePath):
		if !cfg.TrainIfMissing {
			return nil, err
		}
		log.Warn("model bundle missing, training", zap.String("path", cfg.BundlePath), zap.Int("train_rows", len(train)))
		snap.Classifier, err = Fit(train, DefaultFitOptions())
		if err != nil {
			return nil, fmt.Errorf("%w: train: %v", domain.ErrModelUnavailable, err)
		}
		if err := SaveBundle(cfg.BundlePath, snap.Classifier, snap.LoadedAt); err != nil {
			log.Warn("model bundle not saved", zap.Error(err))
		}
		snap.Trained = true
	default:
		return nil, err
	}

	snap.Metrics, err = Evaluate(snap.Classifier, test, len(train))
	if err != nil {
		return nil, fmt.Errorf("%w: evaluate: %v", domain.ErrModelUnavailable, err)
	}

	bins := cfg.Bins
	if bins <= 0 {
		bins = dataset.DefaultBins
	}
	snap.Distributions, err = ds.Distributions(bins)
	if err != nil {
		return nil, fmt.Errorf("distributions: %w", err)
	}

	log.Info("model ready",
		zap.Bool("trained_at_startup", snap.Trained),
		zap.Float64("accuracy", snap.Metrics.Accuracy),
		zap.Float64("f1", snap.Metrics.F1),
		zap.Int("test_size", snap.Metrics.TestSize),
		zap.Int("train_size", snap.Metrics.TrainSize),
	)
	return snap, nil
}

func isMissing(path string) bool {
	_, err := os.Stat(path)
	return errors.Is(err, fs.ErrNotExist)
}

// Ready reports whether a classifier is loaded.
func (s *Snapshot) Ready() bool {
	return s != nil && s.Classifier != nil
}
