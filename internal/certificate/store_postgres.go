package certificate

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

// Schema is the DDL for the certificate tables. The partial index on
// (patient, vaccine_hash) is the disclosure scan path.
const Schema = `
CREATE TABLE IF NOT EXISTS certificates (
    patient            TEXT NOT NULL,
    id                 BIGINT NOT NULL,
    vaccine_hash       BYTEA NOT NULL,
    issuer             TEXT NOT NULL,
    issued_at          BIGINT NOT NULL,
    valid_until        BIGINT NOT NULL,
    commitment         BYTEA NOT NULL,
    disclosure         JSONB NOT NULL,
    active             BOOLEAN NOT NULL,
    emergency_revoked  BOOLEAN NOT NULL DEFAULT FALSE,
    verification_count BIGINT NOT NULL DEFAULT 0,
    PRIMARY KEY (patient, id)
);

CREATE INDEX IF NOT EXISTS certificates_by_hash
    ON certificates (patient, vaccine_hash);

CREATE TABLE IF NOT EXISTS recalls (
    id            BIGINT PRIMARY KEY,
    vaccine_hash  BYTEA NOT NULL,
    reason        TEXT NOT NULL,
    initiator     TEXT NOT NULL,
    initiated_at  BIGINT NOT NULL,
    confirmations BIGINT NOT NULL DEFAULT 0,
    confirmed_by  JSONB NOT NULL DEFAULT '[]',
    active        BOOLEAN NOT NULL
);

CREATE INDEX IF NOT EXISTS recalls_active_by_hash
    ON recalls (vaccine_hash) WHERE active;
`

// PostgresStore persists certificates and recalls in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) SaveCertificate(ctx context.Context, c *Certificate) error {
	disclosure, err := json.Marshal(c.Disclosure)
	if err != nil {
		return fmt.Errorf("encode disclosure: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO certificates (patient, id, vaccine_hash, issuer, issued_at, valid_until,
                          commitment, disclosure, active, emergency_revoked, verification_count)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (patient, id) DO UPDATE SET
    active = EXCLUDED.active,
    emergency_revoked = EXCLUDED.emergency_revoked,
    verification_count = EXCLUDED.verification_count`,
		string(c.Patient), uint64(c.ID), c.VaccineHash, string(c.Issuer), c.IssuedAt, c.ValidUntil,
		c.Commitment, disclosure, c.Active, c.EmergencyRevoked, c.VerificationCount,
	)
	if err != nil {
		return fmt.Errorf("save certificate: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindCertificate(ctx context.Context, patient id.Identity, cert id.CertificateID) (*Certificate, error) {
	row := s.pool.QueryRow(ctx, `
SELECT patient, id, vaccine_hash, issuer, issued_at, valid_until, commitment,
       disclosure, active, emergency_revoked, verification_count
FROM certificates WHERE patient = $1 AND id = $2`, string(patient), uint64(cert))
	c, err := scanCertificate(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find certificate: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) FindByVaccineHash(ctx context.Context, patient id.Identity, vaccineHash []byte) ([]*Certificate, error) {
	rows, err := s.pool.Query(ctx, `
SELECT patient, id, vaccine_hash, issuer, issued_at, valid_until, commitment,
       disclosure, active, emergency_revoked, verification_count
FROM certificates WHERE patient = $1 AND vaccine_hash = $2
ORDER BY id`, string(patient), vaccineHash)
	if err != nil {
		return nil, fmt.Errorf("scan certificates: %w", err)
	}
	defer rows.Close()

	var out []*Certificate
	for rows.Next() {
		c, err := scanCertificate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certificates: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SaveRecall(ctx context.Context, r *Recall) error {
	confirmedBy, err := json.Marshal(r.ConfirmedBy)
	if err != nil {
		return fmt.Errorf("encode confirmations: %w", err)
	}
	_, err = s.pool.Exec(ctx, `
INSERT INTO recalls (id, vaccine_hash, reason, initiator, initiated_at, confirmations, confirmed_by, active)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (id) DO UPDATE SET
    confirmations = EXCLUDED.confirmations,
    confirmed_by = EXCLUDED.confirmed_by,
    active = EXCLUDED.active`,
		uint64(r.ID), r.VaccineHash, r.Reason, string(r.Initiator), r.InitiatedAt,
		r.Confirmations, confirmedBy, r.Active,
	)
	if err != nil {
		return fmt.Errorf("save recall: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindRecall(ctx context.Context, recall id.RecallID) (*Recall, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, vaccine_hash, reason, initiator, initiated_at, confirmations, confirmed_by, active
FROM recalls WHERE id = $1`, uint64(recall))
	r, err := scanRecall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find recall: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ActiveRecallForHash(ctx context.Context, vaccineHash []byte) (*Recall, error) {
	row := s.pool.QueryRow(ctx, `
SELECT id, vaccine_hash, reason, initiator, initiated_at, confirmations, confirmed_by, active
FROM recalls WHERE vaccine_hash = $1 AND active
ORDER BY id LIMIT 1`, vaccineHash)
	r, err := scanRecall(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find active recall: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListActiveRecalls(ctx context.Context) ([]*Recall, error) {
	rows, err := s.pool.Query(ctx, `
SELECT id, vaccine_hash, reason, initiator, initiated_at, confirmations, confirmed_by, active
FROM recalls WHERE active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list recalls: %w", err)
	}
	defer rows.Close()

	var out []*Recall
	for rows.Next() {
		r, err := scanRecall(rows)
		if err != nil {
			return nil, fmt.Errorf("list recalls: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func scanCertificate(row pgx.Row) (*Certificate, error) {
	var c Certificate
	var patient, issuer string
	var certID uint64
	var disclosure []byte
	if err := row.Scan(
		&patient, &certID, &c.VaccineHash, &issuer, &c.IssuedAt, &c.ValidUntil,
		&c.Commitment, &disclosure, &c.Active, &c.EmergencyRevoked, &c.VerificationCount,
	); err != nil {
		return nil, err
	}
	c.Patient = id.Identity(patient)
	c.ID = id.CertificateID(certID)
	c.Issuer = id.Identity(issuer)
	if err := json.Unmarshal(disclosure, &c.Disclosure); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanRecall(row pgx.Row) (*Recall, error) {
	var r Recall
	var initiator string
	var recallID uint64
	var confirmedBy []byte
	if err := row.Scan(
		&recallID, &r.VaccineHash, &r.Reason, &initiator, &r.InitiatedAt,
		&r.Confirmations, &confirmedBy, &r.Active,
	); err != nil {
		return nil, err
	}
	r.ID = id.RecallID(recallID)
	r.Initiator = id.Identity(initiator)
	if err := json.Unmarshal(confirmedBy, &r.ConfirmedBy); err != nil {
		return nil, err
	}
	return &r, nil
}
