//go:build integration

package provider

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
	"certo/pkg/testutil/containers"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	t.Cleanup(func() {
		pg.Pool.Close()
		_ = pg.Container.Terminate(context.Background())
	})

	ctx := context.Background()
	require.NoError(t, pg.Apply(ctx, Schema))
	store := NewPostgresStore(pg.Pool)

	t.Run("provider upsert and lookup", func(t *testing.T) {
		p := &Provider{
			ID:               "dr-bob",
			LicenseHash:      bytes.Repeat([]byte{0xAB}, 32),
			Jurisdiction:     "EU",
			AuthorityLevel:   2,
			Status:           StatusPending,
			CredentialExpiry: 31_536_000,
			Specializations:  []string{"immunology"},
			Institution:      "city clinic",
		}
		require.NoError(t, store.SaveProvider(ctx, p))

		got, err := store.FindProvider(ctx, "dr-bob")
		require.NoError(t, err)
		assert.Equal(t, p, got)

		p.Status = StatusVerified
		p.VerifiedBy = "chief"
		p.VerifiedAt = 500
		require.NoError(t, store.SaveProvider(ctx, p))

		got, err = store.FindProvider(ctx, "dr-bob")
		require.NoError(t, err)
		assert.Equal(t, StatusVerified, got.Status)
		assert.Equal(t, id.Identity("chief"), got.VerifiedBy)
	})

	t.Run("missing provider yields sentinel", func(t *testing.T) {
		_, err := store.FindProvider(ctx, "nobody")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound))
	})

	t.Run("request votes survive the round trip", func(t *testing.T) {
		r := &VerificationRequest{
			Provider:       "dr-bob",
			ID:             1,
			RequestedLevel: 2,
			EvidenceHashes: [][]byte{bytes.Repeat([]byte{0x01}, 32)},
			Votes: []Vote{
				{Reviewer: "r1", Approve: true, Comments: "credentials check out"},
				{Reviewer: "r2", Approve: false},
			},
			Status: RequestPending,
		}
		require.NoError(t, store.SaveRequest(ctx, r))

		got, err := store.FindRequest(ctx, "dr-bob", 1)
		require.NoError(t, err)
		assert.Equal(t, r, got)

		r.Votes = append(r.Votes, Vote{Reviewer: "r3", Approve: true})
		r.Status = RequestApproved
		r.DecidedAt = 900
		require.NoError(t, store.SaveRequest(ctx, r))

		got, err = store.FindRequest(ctx, "dr-bob", 1)
		require.NoError(t, err)
		assert.Len(t, got.Votes, 3)
		assert.Equal(t, RequestApproved, got.Status)
		assert.Equal(t, uint64(900), got.DecidedAt)
	})

	t.Run("endorsement overwrite per ordered pair", func(t *testing.T) {
		e := &Endorsement{
			Endorser:   "chief",
			Endorsee:   "dr-bob",
			Type:       EndorseClinical,
			Score:      50,
			ValidFrom:  100,
			ValidUntil: 100 + 31_536_000,
		}
		require.NoError(t, store.SaveEndorsement(ctx, e))

		e.Score = 75
		e.Type = EndorseResearch
		require.NoError(t, store.SaveEndorsement(ctx, e))

		got, err := store.FindEndorsement(ctx, "chief", "dr-bob")
		require.NoError(t, err)
		assert.Equal(t, 75, got.Score)
		assert.Equal(t, EndorseResearch, got.Type)

		_, err = store.FindEndorsement(ctx, "dr-bob", "chief")
		assert.True(t, errors.Is(err, sentinel.ErrNotFound),
			"endorsements are directional")
	})
}
