package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"certo/internal/registry"
	id "certo/pkg/domain"
	dErrors "certo/pkg/domain-errors"
)

func TestEmitAssignsMonotonicIDs(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store, registry.New(3))
	ctx := context.Background()

	for clock := uint64(1); clock <= 3; clock++ {
		require.NoError(t, publisher.Emit(ctx, Entry{
			Subject:     "alice",
			Action:      ActionPatientRegistered,
			Actor:       "alice",
			Clock:       clock,
			ImpactLevel: 1,
		}))
	}

	entries, err := publisher.List(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, entry := range entries {
		assert.Equal(t, id.AuditID(i+1), entry.ID)
	}
}

func TestEmitRequiresSubjectAndAction(t *testing.T) {
	publisher := NewPublisher(NewInMemoryStore(), registry.New(3))
	ctx := context.Background()

	err := publisher.Emit(ctx, Entry{Action: ActionPatientRegistered, Actor: "alice"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))

	err = publisher.Emit(ctx, Entry{Subject: "alice", Actor: "alice"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal))
}

func TestEmitClampsImpactLevel(t *testing.T) {
	store := NewInMemoryStore()
	publisher := NewPublisher(store, registry.New(3))
	ctx := context.Background()

	require.NoError(t, publisher.Emit(ctx, Entry{
		Subject: "alice",
		Action:  ActionVerification,
		Actor:   "verifier",
	}))
	require.NoError(t, publisher.Emit(ctx, Entry{
		Subject:     "alice",
		Action:      ActionRecallInitiated,
		Actor:       "chief",
		ImpactLevel: 9,
	}))

	entries, err := store.ListBySubject(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].ImpactLevel)
	assert.Equal(t, 1, entries[1].ImpactLevel)
}

type failingStore struct{}

func (failingStore) Append(context.Context, Entry) error {
	return errors.New("disk full")
}

func (failingStore) ListBySubject(context.Context, id.Identity) ([]Entry, error) {
	return nil, nil
}

func TestEmitFailsClosed(t *testing.T) {
	publisher := NewPublisher(failingStore{}, registry.New(3))

	err := publisher.Emit(context.Background(), Entry{
		Subject:     "alice",
		Action:      ActionCertificateIssued,
		Actor:       "dr-bob",
		ImpactLevel: 2,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInternal),
		"an unauditable mutation must surface as an error")
}
