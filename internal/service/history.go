package service

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/metrics"
	"github.com/Skufu/heartrisk/internal/submission"
)

// ListResult is one page of the submission history.
type ListResult struct {
	Submissions []submission.Submission `json:"submissions"`
	Total       int                     `json:"total"`
	Page        int                     `json:"page"`
	PerPage     int                     `json:"per_page"`
	TotalPages  int                     `json:"total_pages"`
}

// HistoryService answers queries over recorded submissions.
type HistoryService struct {
	store  submission.Store
	logger *zap.Logger
}

// NewHistoryService wires the history queries to a store.
func NewHistoryService(store submission.Store, logger *zap.Logger) *HistoryService {
	return &HistoryService{store: store, logger: logger}
}

// List returns one page, newest first.
func (h *HistoryService) List(ctx context.Context, f submission.Filter, p submission.Page) (*ListResult, error) {
	subs, total, err := h.store.List(ctx, f, p)
	if err != nil {
		h.fail("list", err)
		return nil, err
	}
	if subs == nil {
		subs = []submission.Submission{}
	}
	return &ListResult{
		Submissions: subs,
		Total:       total,
		Page:        p.Number,
		PerPage:     p.Size,
		TotalPages:  submission.TotalPages(total, p.Size),
	}, nil
}

// Stats aggregates the matching submissions.
func (h *HistoryService) Stats(ctx context.Context, f submission.Filter) (submission.Stats, error) {
	st, err := h.store.Stats(ctx, f)
	if err != nil {
		h.fail("stats", err)
		return submission.Stats{}, err
	}
	return st, nil
}

// Export writes matching submissions to w as CSV and returns the number of rows written.
// Rows are read into memory first so the store connection is released before any
// write to a slow client.
func (h *HistoryService) Export(ctx context.Context, f submission.Filter, w io.Writer) (int, error) {
	var subs []submission.Submission
	err := h.store.Each(ctx, f, func(s submission.Submission) error {
		subs = append(subs, s)
		return nil
	})
	if err != nil {
		h.fail("export", err)
		return 0, err
	}

	cw, err := submission.NewCSVWriter(w)
	if err != nil {
		return 0, err
	}
	for _, s := range subs {
		if err := cw.Write(s); err != nil {
			return cw.Rows(), err
		}
	}
	if err := cw.Flush(); err != nil {
		return cw.Rows(), err
	}
	return cw.Rows(), nil
}

// Ping checks the store.
func (h *HistoryService) Ping(ctx context.Context) error {
	return h.store.Ping(ctx)
}

func (h *HistoryService) fail(op string, err error) {
	metrics.StoreErrorsTotal.WithLabelValues(op).Inc()
	h.logger.Error("submission store "+op+" failed", zap.Error(err))
}
