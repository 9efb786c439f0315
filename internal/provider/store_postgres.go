package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "certo/pkg/domain"
	"certo/pkg/platform/sentinel"
)

// Schema is the DDL for the provider tables. Applied by the operator or a
// migration step, not at runtime.
const Schema = `
CREATE TABLE IF NOT EXISTS providers (
    id                  TEXT PRIMARY KEY,
    license_hash        BYTEA NOT NULL,
    jurisdiction        TEXT NOT NULL,
    authority_level     INT NOT NULL,
    certificates_issued BIGINT NOT NULL DEFAULT 0,
    status              TEXT NOT NULL,
    verified_by         TEXT NOT NULL DEFAULT '',
    verified_at         BIGINT NOT NULL DEFAULT 0,
    credential_expiry   BIGINT NOT NULL,
    reputation          INT NOT NULL DEFAULT 0,
    specializations     JSONB NOT NULL DEFAULT '[]',
    institution         TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS provider_requests (
    provider        TEXT NOT NULL,
    id              BIGINT NOT NULL,
    requested_level INT NOT NULL,
    evidence_hashes JSONB NOT NULL DEFAULT '[]',
    votes           JSONB NOT NULL DEFAULT '[]',
    status          TEXT NOT NULL,
    decided_at      BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (provider, id)
);

CREATE TABLE IF NOT EXISTS provider_endorsements (
    endorser      TEXT NOT NULL,
    endorsee      TEXT NOT NULL,
    type          TEXT NOT NULL,
    score         INT NOT NULL,
    evidence_hash BYTEA,
    valid_from    BIGINT NOT NULL,
    valid_until   BIGINT NOT NULL,
    PRIMARY KEY (endorser, endorsee)
);
`

// PostgresStore persists providers in PostgreSQL. Nested collections (votes,
// evidence, specializations) are stored as JSONB since they are only ever
// read back whole.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveProvider(ctx context.Context, p *Provider) error {
	specs, err := json.Marshal(p.Specializations)
	if err != nil {
		return fmt.Errorf("encode specializations: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO providers (id, license_hash, jurisdiction, authority_level, certificates_issued,
                       status, verified_by, verified_at, credential_expiry, reputation,
                       specializations, institution)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
ON CONFLICT (id) DO UPDATE SET
    license_hash = EXCLUDED.license_hash,
    jurisdiction = EXCLUDED.jurisdiction,
    authority_level = EXCLUDED.authority_level,
    certificates_issued = EXCLUDED.certificates_issued,
    status = EXCLUDED.status,
    verified_by = EXCLUDED.verified_by,
    verified_at = EXCLUDED.verified_at,
    credential_expiry = EXCLUDED.credential_expiry,
    reputation = EXCLUDED.reputation,
    specializations = EXCLUDED.specializations,
    institution = EXCLUDED.institution`,
		string(p.ID), p.LicenseHash, p.Jurisdiction, p.AuthorityLevel, p.CertificatesIssued,
		string(p.Status), string(p.VerifiedBy), p.VerifiedAt, p.CredentialExpiry, p.Reputation,
		specs, p.Institution,
	)
	if err != nil {
		return fmt.Errorf("save provider: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindProvider(ctx context.Context, provider id.Identity) (*Provider, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, license_hash, jurisdiction, authority_level, certificates_issued,
       status, verified_by, verified_at, credential_expiry, reputation,
       specializations, institution
FROM providers WHERE id = $1`, string(provider))

	var p Provider
	var providerID, status, verifiedBy string
	var specs []byte
	if err := row.Scan(
		&providerID, &p.LicenseHash, &p.Jurisdiction, &p.AuthorityLevel, &p.CertificatesIssued,
		&status, &verifiedBy, &p.VerifiedAt, &p.CredentialExpiry, &p.Reputation,
		&specs, &p.Institution,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find provider: %w", err)
	}
	p.ID = id.Identity(providerID)
	p.Status = Status(status)
	p.VerifiedBy = id.Identity(verifiedBy)
	if err := json.Unmarshal(specs, &p.Specializations); err != nil {
		return nil, fmt.Errorf("decode specializations: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) SaveRequest(ctx context.Context, r *VerificationRequest) error {
	evidence, err := json.Marshal(r.EvidenceHashes)
	if err != nil {
		return fmt.Errorf("encode evidence: %w", err)
	}
	votes, err := json.Marshal(r.Votes)
	if err != nil {
		return fmt.Errorf("encode votes: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO provider_requests (provider, id, requested_level, evidence_hashes, votes, status, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (provider, id) DO UPDATE SET
    votes = EXCLUDED.votes,
    status = EXCLUDED.status,
    decided_at = EXCLUDED.decided_at`,
		string(r.Provider), uint64(r.ID), r.RequestedLevel, evidence, votes, string(r.Status), r.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("save request: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRequest(ctx context.Context, provider id.Identity, request id.RequestID) (*VerificationRequest, error) {
	row := s.pool.QueryRow(ctx, `
SELECT provider, id, requested_level, evidence_hashes, votes, status, decided_at
FROM provider_requests WHERE provider = $1 AND id = $2`, string(provider), uint64(request))

	var r VerificationRequest
	var providerID, status string
	var requestID uint64
	var evidence, votes []byte
	if err := row.Scan(&providerID, &requestID, &r.RequestedLevel, &evidence, &votes, &status, &r.DecidedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find request: %w", err)
	}
	r.Provider = id.Identity(providerID)
	r.ID = id.RequestID(requestID)
	r.Status = RequestStatus(status)
	if err := json.Unmarshal(evidence, &r.EvidenceHashes); err != nil {
		return nil, fmt.Errorf("decode evidence: %w", err)
	}
	if err := json.Unmarshal(votes, &r.Votes); err != nil {
		return nil, fmt.Errorf("decode votes: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) SaveEndorsement(ctx context.Context, e *Endorsement) error {
	_, err := s.pool.Exec(ctx, `
INSERT INTO provider_endorsements (endorser, endorsee, type, score, evidence_hash, valid_from, valid_until)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (endorser, endorsee) DO UPDATE SET
    type = EXCLUDED.type,
    score = EXCLUDED.score,
    evidence_hash = EXCLUDED.evidence_hash,
    valid_from = EXCLUDED.valid_from,
    valid_until = EXCLUDED.valid_until`,
		string(e.Endorser), string(e.Endorsee), string(e.Type), e.Score, e.EvidenceHash, e.ValidFrom, e.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("save endorsement: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindEndorsement(ctx context.Context, endorser, endorsee id.Identity) (*Endorsement, error) {
	row := s.pool.QueryRow(ctx, `
SELECT endorser, endorsee, type, score, evidence_hash, valid_from, valid_until
FROM provider_endorsements WHERE endorser = $1 AND endorsee = $2`, string(endorser), string(endorsee))

	var e Endorsement
	var endorserID, endorseeID, kind string
	if err := row.Scan(&endorserID, &endorseeID, &kind, &e.Score, &e.EvidenceHash, &e.ValidFrom, &e.ValidUntil); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find endorsement: %w", err)
	}
	e.Endorser = id.Identity(endorserID)
	e.Endorsee = id.Identity(endorseeID)
	e.Type = EndorsementType(kind)
	return &e, nil
}
