package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Skufu/heartrisk/internal/store/storetest"
	"github.com/Skufu/heartrisk/internal/submission"
)

// Set HEARTRISK_TEST_POSTGRES_URL to a disposable database to run these tests.
func testURL(t *testing.T) string {
	url := os.Getenv("HEARTRISK_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("HEARTRISK_TEST_POSTGRES_URL not set")
	}
	return url
}

func TestStore(t *testing.T) {
	url := testURL(t)

	storetest.Run(t, func(t *testing.T) submission.Store {
		ctx := context.Background()
		s, err := Open(ctx, url, 5*time.Second, zap.NewNop())
		require.NoError(t, err)
		_, err = s.pool.Exec(ctx, "TRUNCATE submissions RESTART IDENTITY")
		require.NoError(t, err)
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestWhere(t *testing.T) {
	f, err := submission.ParseFilter("2025-01-01", "2025-01-31")
	require.NoError(t, err)

	cond, args := where(f, 3)
	require.Equal(t, " WHERE created_at >= $3 AND created_at < $4", cond)
	require.Len(t, args, 2)

	cond, args = where(submission.Filter{}, 1)
	require.Empty(t, cond)
	require.Empty(t, args)
}

func TestOpen_BadURL(t *testing.T) {
	_, err := Open(context.Background(), "postgres://%zz", time.Second, zap.NewNop())
	require.Error(t, err)
}
