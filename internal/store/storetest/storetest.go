// Package storetest holds behaviour tests shared by every submission.Store backend.
package storetest

import (
	"bytes"
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Skufu/heartrisk/internal/domain"
	"github.com/Skufu/heartrisk/internal/submission"
)

// Opener returns an empty store. The test owns and closes it.
type Opener func(t *testing.T) submission.Store

func strp(s string) *string { return &s }

func newSubmission(i int, p float64) *submission.Submission {
	fv := domain.FeatureVector{
		Age: 30 + i%60, Sex: i % 2, CP: i % 4, Trtbps: 110 + i%50, Chol: 180 + i%200,
		FBS: i % 2, RestECG: i % 3, Thalachh: 120 + i%60, Exng: (i + 1) % 2, CA: i % 4,
	}
	return submission.New(fv, domain.NewPrediction(p), nil)
}

// Run exercises the full Store contract.
func Run(t *testing.T, open Opener) {
	t.Run("AppendAssignsIncreasingIDs", func(t *testing.T) { testAppend(t, open(t)) })
	t.Run("ListPaginatesEverything", func(t *testing.T) { testPagination(t, open(t)) })
	t.Run("DateFilter", func(t *testing.T) { testDateFilter(t, open(t)) })
	t.Run("StatsBuckets", func(t *testing.T) { testStats(t, open(t)) })
	t.Run("ExportMatchesStats", func(t *testing.T) { testExport(t, open(t)) })
	t.Run("ConcurrentAppends", func(t *testing.T) { testConcurrent(t, open(t)) })
}

func testAppend(t *testing.T, s submission.Store) {
	ctx := context.Background()
	require.NoError(t, s.Ping(ctx))

	var last int64
	for i := 0; i < 5; i++ {
		sub := newSubmission(i, 0.5)
		require.NoError(t, s.Append(ctx, sub))
		assert.Greater(t, sub.ID, last)
		assert.False(t, sub.CreatedAt.IsZero())
		last = sub.ID
	}

	withMeta := newSubmission(9, 0.7)
	withMeta.Note = strp("follow-up, \"urgent\"\nsecond line")
	withMeta.UserAgent = "curl/8.0"
	withMeta.IP = "10.0.0.1"
	require.NoError(t, s.Append(ctx, withMeta))

	got, total, err := s.List(ctx, submission.Filter{}, submission.NewPage(1, 1))
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	require.Len(t, got, 1)
	assert.Equal(t, withMeta.ID, got[0].ID)
	assert.Equal(t, withMeta.FeatureVector, got[0].FeatureVector)
	assert.Equal(t, withMeta.Prediction, got[0].Prediction)
	assert.Equal(t, withMeta.Note, got[0].Note)
	assert.Equal(t, "curl/8.0", got[0].UserAgent)
	assert.Equal(t, "10.0.0.1", got[0].IP)
	assert.True(t, withMeta.CreatedAt.Equal(got[0].CreatedAt))

	got, _, err = s.List(ctx, submission.Filter{}, submission.NewPage(2, 1))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Nil(t, got[0].Note)
}

func testPagination(t *testing.T, s submission.Store) {
	ctx := context.Background()
	const n = 25
	for i := 0; i < n; i++ {
		require.NoError(t, s.Append(ctx, newSubmission(i, float64(i)/n)))
	}

	seen := map[int64]bool{}
	var prev int64
	page := submission.NewPage(1, 10)
	for ; page.Number <= submission.TotalPages(n, page.Size); page.Number++ {
		got, total, err := s.List(ctx, submission.Filter{}, page)
		require.NoError(t, err)
		assert.Equal(t, n, total)
		for _, sub := range got {
			assert.False(t, seen[sub.ID], "id %d listed twice", sub.ID)
			if prev != 0 {
				assert.Less(t, sub.ID, prev, "not newest first")
			}
			seen[sub.ID] = true
			prev = sub.ID
		}
	}
	assert.Len(t, seen, n)

	got, total, err := s.List(ctx, submission.Filter{}, submission.NewPage(99, 10))
	require.NoError(t, err)
	assert.Equal(t, n, total)
	assert.Empty(t, got)
}

func testDateFilter(t *testing.T, s submission.Store) {
	ctx := context.Background()
	first := newSubmission(1, 0.2)
	require.NoError(t, s.Append(ctx, first))
	require.NoError(t, s.Append(ctx, newSubmission(2, 0.8)))

	day := first.CreatedAt.UTC().Format(submission.DateLayout)
	next := first.CreatedAt.UTC().AddDate(0, 0, 1).Format(submission.DateLayout)
	prev := first.CreatedAt.UTC().AddDate(0, 0, -1).Format(submission.DateLayout)

	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"open", "", "", 2},
		{"same day both bounds", day, day, 2},
		{"to covers whole day", "", day, 2},
		{"from tomorrow", next, "", 0},
		{"until yesterday", "", prev, 0},
	}
	for _, tc := range tests {
		f, err := submission.ParseFilter(tc.from, tc.to)
		require.NoError(t, err)

		_, total, err := s.List(ctx, f, submission.NewPage(1, 10))
		require.NoError(t, err)
		assert.Equal(t, tc.want, total, tc.name)

		stats, err := s.Stats(ctx, f)
		require.NoError(t, err)
		assert.Equal(t, tc.want, stats.TotalCount, tc.name)
	}
}

func testStats(t *testing.T, s submission.Store) {
	ctx := context.Background()

	empty, err := s.Stats(ctx, submission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, submission.Stats{}, empty)

	probs := []float64{0.1, 0.2999, 0.3, 0.45, 0.5999, 0.6, 0.95}
	for i, p := range probs {
		require.NoError(t, s.Append(ctx, newSubmission(i, p)))
	}

	stats, err := s.Stats(ctx, submission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, len(probs), stats.TotalCount)
	assert.Equal(t, submission.RiskDistribution{Low: 2, Medium: 3, High: 2}, stats.RiskDistribution)
	assert.Equal(t, stats.TotalCount, stats.RiskDistribution.Total())

	var tally submission.Tally
	for _, p := range probs {
		tally.Add(p)
	}
	assert.InDelta(t, tally.Stats().AverageRisk, stats.AverageRisk, 1e-9)
}

func testExport(t *testing.T, s submission.Store) {
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		sub := newSubmission(i, float64(i)/12)
		switch i % 3 {
		case 0:
			sub.Note = strp("note, with comma")
		case 1:
			sub.Note = strp(domain.NormalizeNote("from a form\r\nsecond line"))
		}
		require.NoError(t, s.Append(ctx, sub))
	}

	var buf bytes.Buffer
	w, err := submission.NewCSVWriter(&buf)
	require.NoError(t, err)
	require.NoError(t, s.Each(ctx, submission.Filter{}, w.Write))
	require.NoError(t, w.Flush())

	stats, err := s.Stats(ctx, submission.Filter{})
	require.NoError(t, err)
	assert.Equal(t, stats.TotalCount, w.Rows())

	parsed, err := submission.ReadCSV(&buf)
	require.NoError(t, err)
	listed, _, err := s.List(ctx, submission.Filter{}, submission.NewPage(1, submission.MaxPerPage))
	require.NoError(t, err)
	require.Len(t, parsed, len(listed))
	for i := range listed {
		assert.Equal(t, listed[i].ID, parsed[i].ID)
		assert.True(t, listed[i].CreatedAt.Equal(parsed[i].CreatedAt))
		assert.Equal(t, listed[i].FeatureVector, parsed[i].FeatureVector)
		assert.Equal(t, listed[i].Prediction, parsed[i].Prediction)
		assert.Equal(t, listed[i].Note, parsed[i].Note)
	}
}

func testConcurrent(t *testing.T, s submission.Store) {
	ctx := context.Background()
	const workers, each = 8, 5

	var wg sync.WaitGroup
	errs := make(chan error, workers*each)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < each; i++ {
				errs <- s.Append(ctx, newSubmission(w*each+i, 0.5))
			}
		}(w)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var ids []int64
	require.NoError(t, s.Each(ctx, submission.Filter{}, func(sub submission.Submission) error {
		ids = append(ids, sub.ID)
		return nil
	}))
	require.Len(t, ids, workers*each)
	for i := 1; i < len(ids); i++ {
		assert.Less(t, ids[i], ids[i-1])
	}
}
