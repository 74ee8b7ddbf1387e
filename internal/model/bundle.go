package model

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/Skufu/heartrisk/internal/domain"
)

// BundleFormat is bumped whenever the bundle layout changes.
const BundleFormat = 1

// Bundle is the serialized classifier: the fitted transform, its column table and the weights.
type Bundle struct {
	Format       int           `json:"format"`
	CreatedAt    time.Time     `json:"created_at"`
	Columns      []string      `json:"columns"`
	Preprocessor *Preprocessor `json:"preprocessor"`
	Coefficients []float64     `json:"coefficients"`
	Intercept    float64       `json:"intercept"`
}

// NewBundle captures c for serialization.
func NewBundle(c *Classifier, now time.Time) *Bundle {
	return &Bundle{
		Format:       BundleFormat,
		CreatedAt:    now.UTC(),
		Columns:      c.pre.Columns(),
		Preprocessor: c.pre,
		Coefficients: c.Coefficients(),
		Intercept:    c.intercept,
	}
}

// Classifier rebuilds the scorer, refusing bundles whose column table does not match
// the transform it carries.
func (b *Bundle) Classifier() (*Classifier, error) {
	if b.Format != BundleFormat {
		return nil, fmt.Errorf("%w: bundle format %d, want %d", domain.ErrModelUnavailable, b.Format, BundleFormat)
	}
	if b.Preprocessor == nil {
		return nil, fmt.Errorf("%w: bundle has no preprocessor", domain.ErrModelUnavailable)
	}
	if err := b.Preprocessor.checkSchema(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	if cols := b.Preprocessor.Columns(); !slices.Equal(cols, b.Columns) {
		return nil, fmt.Errorf("%w: column order %v does not match transform %v", domain.ErrModelUnavailable, b.Columns, cols)
	}
	c, err := NewClassifier(b.Preprocessor, b.Coefficients, b.Intercept)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrModelUnavailable, err)
	}
	return c, nil
}

// LoadBundle reads a bundle from path and rebuilds its classifier.
func LoadBundle(path string) (*Classifier, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read bundle: %v", domain.ErrModelUnavailable, err)
	}

	var b Bundle
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: decode bundle %s: %v", domain.ErrModelUnavailable, path, err)
	}
	return b.Classifier()
}

// SaveBundle writes c to path, replacing any existing file atomically.
func SaveBundle(path string, c *Classifier, now time.Time) error {
	raw, err := json.MarshalIndent(NewBundle(c, now), "", "  ")
	if err != nil {
		return fmt.Errorf("encode bundle: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create bundle dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".bundle-*.json")
	if err != nil {
		return fmt.Errorf("create temp bundle: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(raw, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close bundle: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("install bundle: %w", err)
	}
	return nil
}
