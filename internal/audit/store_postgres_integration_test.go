//go:build integration

package audit

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "certo/pkg/domain"
	"certo/pkg/testutil/containers"
)

func TestPostgresOutboxRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	t.Cleanup(func() {
		pg.Pool.Close()
		_ = pg.Container.Terminate(context.Background())
	})

	ctx := context.Background()
	require.NoError(t, pg.Apply(ctx, Schema))

	db, err := OpenPostgres(pg.DSN)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := NewPostgres(db)

	for i := uint64(1); i <= 3; i++ {
		require.NoError(t, store.Append(ctx, Entry{
			Subject:     "alice",
			ID:          id.AuditID(i),
			Action:      ActionCertificateIssued,
			Actor:       "dr-bob",
			Clock:       1000 + i,
			ImpactLevel: 2,
		}))
	}

	t.Run("trail reads back in append order", func(t *testing.T) {
		entries, err := store.ListBySubject(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, entries, 3)
		assert.Equal(t, id.AuditID(1), entries[0].ID)
		assert.Equal(t, id.AuditID(3), entries[2].ID)
	})

	t.Run("marking published drains the outbox", func(t *testing.T) {
		rows, err := store.NextUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, rows, 3)

		// Mark the first two; only the third should come back.
		ids := []uuid.UUID{rows[0].EventID, rows[1].EventID}
		require.NoError(t, store.MarkPublished(ctx, ids))

		remaining, err := store.NextUnpublished(ctx, 10)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, rows[2].EventID, remaining[0].EventID)

		require.NoError(t, store.MarkPublished(ctx, []uuid.UUID{remaining[0].EventID}))
		drained, err := store.NextUnpublished(ctx, 10)
		require.NoError(t, err)
		assert.Empty(t, drained, "published rows must not be re-fetched")
	})

	t.Run("empty id set is a no-op", func(t *testing.T) {
		require.NoError(t, store.MarkPublished(ctx, nil))
	})
}
