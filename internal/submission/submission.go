// Package submission defines the persisted prediction log: the record type, query filters,
// risk statistics, the CSV export codec and the Store contract backends implement.
package submission

import (
	"context"
	"time"

	"github.com/Skufu/heartrisk/internal/domain"
)

// Submission is one prediction request as persisted. It is never mutated after Append.
type Submission struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	domain.FeatureVector
	domain.Prediction
	Note      *string `json:"note"`
	UserAgent string  `json:"user_agent,omitempty"`
	IP        string  `json:"ip,omitempty"`
}

// New builds an unsaved submission. ID and CreatedAt are assigned by the store.
func New(fv domain.FeatureVector, p domain.Prediction, note *string) *Submission {
	return &Submission{FeatureVector: fv, Prediction: p, Note: note}
}

// Store is the append-only submission log.
type Store interface {
	// Append assigns s a strictly increasing ID and its creation time, then persists it.
	Append(ctx context.Context, s *Submission) error
	// List returns one page of matching submissions, newest first, and the total match count.
	List(ctx context.Context, f Filter, p Page) ([]Submission, int, error)
	// Each calls fn for every matching submission, newest first, stopping at the first error.
	Each(ctx context.Context, f Filter, fn func(Submission) error) error
	// Stats aggregates the matching submissions.
	Stats(ctx context.Context, f Filter) (Stats, error)
	Ping(ctx context.Context) error
	Close() error
}
