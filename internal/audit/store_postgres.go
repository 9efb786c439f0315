package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	id "certo/pkg/domain"
)

// PostgresStore implements Store using the transactional outbox pattern.
// Entries are written to the outbox table and published to Kafka by the
// outbox worker; Kafka is the durable fan-out for downstream consumers.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgres creates a PostgreSQL audit store that writes to the outbox.
func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// OpenPostgres dials the database with the lib/pq driver.
func OpenPostgres(dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// outboxPayload is the JSON structure published to Kafka. Field names match
// Entry for proper deserialization by consumers.
type outboxPayload struct {
	EventID      string `json:"event_id"`
	Subject      string `json:"subject"`
	ID           uint64 `json:"id"`
	Action       string `json:"action"`
	Actor        string `json:"actor"`
	Clock        uint64 `json:"clock"`
	Details      string `json:"details,omitempty"`
	EvidenceHash []byte `json:"evidence_hash,omitempty"`
	ImpactLevel  int    `json:"impact_level"`
}

// Append writes an audit entry to the outbox table.
func (s *PostgresStore) Append(ctx context.Context, entry Entry) error {
	eventID := uuid.New()
	payload, err := json.Marshal(outboxPayload{
		EventID:      eventID.String(),
		Subject:      entry.Subject.String(),
		ID:           uint64(entry.ID),
		Action:       string(entry.Action),
		Actor:        entry.Actor.String(),
		Clock:        entry.Clock,
		Details:      entry.Details,
		EvidenceHash: entry.EvidenceHash,
		ImpactLevel:  entry.ImpactLevel,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	const insert = `
		INSERT INTO audit_outbox (event_id, subject, audit_id, action, actor, clock, impact_level, payload, published)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, FALSE)`
	if _, err := s.db.ExecContext(ctx, insert,
		eventID, entry.Subject.String(), int64(entry.ID), string(entry.Action),
		entry.Actor.String(), int64(entry.Clock), entry.ImpactLevel, payload,
	); err != nil {
		return fmt.Errorf("append audit entry: %w", err)
	}
	return nil
}

// ListBySubject returns the trail for one subject in append order.
func (s *PostgresStore) ListBySubject(ctx context.Context, subject id.Identity) ([]Entry, error) {
	const query = `
		SELECT audit_id, action, actor, clock, payload, impact_level
		FROM audit_outbox
		WHERE subject = $1
		ORDER BY audit_id`
	rows, err := s.db.QueryContext(ctx, query, subject.String())
	if err != nil {
		return nil, fmt.Errorf("list audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			auditID int64
			action  string
			actor   string
			clock   int64
			payload []byte
			impact  int
		)
		if err := rows.Scan(&auditID, &action, &actor, &clock, &payload, &impact); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		var p outboxPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			return nil, fmt.Errorf("unmarshal audit payload: %w", err)
		}
		entries = append(entries, Entry{
			Subject:      subject,
			ID:           id.AuditID(auditID),
			Action:       Action(action),
			Actor:        id.Identity(actor),
			Clock:        uint64(clock),
			Details:      p.Details,
			EvidenceHash: p.EvidenceHash,
			ImpactLevel:  impact,
		})
	}
	return entries, rows.Err()
}

// NextUnpublished returns up to limit outbox rows not yet shipped to Kafka.
func (s *PostgresStore) NextUnpublished(ctx context.Context, limit int) ([]OutboxRow, error) {
	const query = `
		SELECT event_id, payload
		FROM audit_outbox
		WHERE published = FALSE
		ORDER BY audit_id
		LIMIT $1`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("fetch outbox rows: %w", err)
	}
	defer rows.Close()

	var out []OutboxRow
	for rows.Next() {
		var row OutboxRow
		if err := rows.Scan(&row.EventID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox row: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// MarkPublished flags outbox rows as shipped.
func (s *PostgresStore) MarkPublished(ctx context.Context, eventIDs []uuid.UUID) error {
	if len(eventIDs) == 0 {
		return nil
	}
	const update = `UPDATE audit_outbox SET published = TRUE WHERE event_id = ANY($1)`
	ids := make([]string, len(eventIDs))
	for i, eid := range eventIDs {
		ids[i] = eid.String()
	}
	// database/sql cannot convert a bare string slice; pq.Array produces the
	// postgres array literal ANY expects.
	if _, err := s.db.ExecContext(ctx, update, pq.Array(ids)); err != nil {
		return fmt.Errorf("mark outbox published: %w", err)
	}
	return nil
}

// OutboxRow is one unpublished audit event.
type OutboxRow struct {
	EventID uuid.UUID
	Payload []byte
}

// Schema is the DDL for the outbox table, applied by migrations.
const Schema = `
CREATE TABLE IF NOT EXISTS audit_outbox (
	event_id     UUID PRIMARY KEY,
	subject      TEXT NOT NULL,
	audit_id     BIGINT NOT NULL,
	action       TEXT NOT NULL,
	actor        TEXT NOT NULL,
	clock        BIGINT NOT NULL,
	impact_level INT NOT NULL,
	payload      JSONB NOT NULL,
	published    BOOLEAN NOT NULL DEFAULT FALSE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS audit_outbox_subject_idx ON audit_outbox (subject, audit_id);
CREATE INDEX IF NOT EXISTS audit_outbox_unpublished_idx ON audit_outbox (audit_id) WHERE published = FALSE;
`
