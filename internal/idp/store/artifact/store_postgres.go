package artifact

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"oidcbridge/internal/idp/metrics"
	"oidcbridge/internal/idp/models"
	"oidcbridge/pkg/platform/sentinel"
	"oidcbridge/pkg/platform/tx"
)

// PostgresStore persists artifact records in PostgreSQL. The payload is
// stored as JSONB; secondary keys live in their own indexed columns.
type PostgresStore struct {
	db      *sql.DB
	metrics *metrics.Metrics
	now     func() time.Time
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock overrides the store's time source.
func WithPostgresClock(now func() time.Time) PostgresOption {
	return func(s *PostgresStore) {
		s.now = now
	}
}

// WithPostgresMetrics attaches latency instrumentation.
func WithPostgresMetrics(m *metrics.Metrics) PostgresOption {
	return func(s *PostgresStore) {
		s.metrics = m
	}
}

// NewPostgres constructs a PostgreSQL-backed artifact store.
func NewPostgres(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{
		db:  db,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// executor lets queries run inside a caller-managed transaction when one is
// carried in the context (grant + interaction writes share one).
type executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) exec(ctx context.Context) executor {
	if t, ok := tx.From(ctx); ok {
		return t
	}
	return s.db
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

func (s *PostgresStore) Put(ctx context.Context, rec *models.PayloadRecord, ttl time.Duration) error {
	if rec == nil || rec.ID == "" {
		return fmt.Errorf("artifact record with id is required: %w", sentinel.ErrInvalidState)
	}
	defer s.metrics.ObserveArtifactOp("put", s.now())

	payload, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode artifact payload: %w", err)
	}

	now := s.now()
	var expiresAt sql.NullTime
	if ttl > 0 {
		expiresAt = sql.NullTime{Time: now.Add(ttl), Valid: true}
	} else {
		expiresAt = nullTime(rec.ExpiresAt)
	}

	// Replace semantics: re-upserting an id resets its consumption stamp;
	// only created_at survives for the audit trail.
	_, err = s.exec(ctx).ExecContext(ctx, `
		INSERT INTO payload_records
			(id, kind, payload, grant_id, user_code, uid, expires_at, consumed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $8)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			payload = EXCLUDED.payload,
			grant_id = EXCLUDED.grant_id,
			user_code = EXCLUDED.user_code,
			uid = EXCLUDED.uid,
			expires_at = EXCLUDED.expires_at,
			consumed_at = NULL,
			updated_at = EXCLUDED.updated_at`,
		rec.ID, string(rec.Kind), payload,
		nullString(rec.GrantID), nullString(rec.UserCode), nullString(rec.UID),
		expiresAt, now)
	if err != nil {
		return fmt.Errorf("put artifact %s: %w", rec.ID, err)
	}
	return nil
}

const selectRecord = `
	SELECT id, kind, payload, grant_id, user_code, uid, expires_at, consumed_at, created_at, updated_at
	FROM payload_records`

func (s *PostgresStore) GetByID(ctx context.Context, id string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_id", s.now())
	row := s.exec(ctx).QueryRowContext(ctx,
		selectRecord+` WHERE id = $1 AND (expires_at IS NULL OR expires_at > $2)`,
		id, s.now())
	return s.scanRecord(row, "id "+id)
}

func (s *PostgresStore) GetByUserCode(ctx context.Context, userCode string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_user_code", s.now())
	if userCode == "" {
		return nil, fmt.Errorf("artifact by user code: %w", sentinel.ErrNotFound)
	}
	row := s.exec(ctx).QueryRowContext(ctx,
		selectRecord+` WHERE user_code = $1 AND (expires_at IS NULL OR expires_at > $2) LIMIT 1`,
		userCode, s.now())
	return s.scanRecord(row, "user code "+userCode)
}

func (s *PostgresStore) GetByUID(ctx context.Context, uid string) (*models.PayloadRecord, error) {
	defer s.metrics.ObserveArtifactOp("get_by_uid", s.now())
	if uid == "" {
		return nil, fmt.Errorf("artifact by uid: %w", sentinel.ErrNotFound)
	}
	row := s.exec(ctx).QueryRowContext(ctx,
		selectRecord+` WHERE uid = $1 AND (expires_at IS NULL OR expires_at > $2) LIMIT 1`,
		uid, s.now())
	return s.scanRecord(row, "uid "+uid)
}

func (s *PostgresStore) scanRecord(row *sql.Row, what string) (*models.PayloadRecord, error) {
	var (
		rec      models.PayloadRecord
		kind     string
		payload  []byte
		grantID  sql.NullString
		userCode sql.NullString
		uid      sql.NullString
		expires  sql.NullTime
		consumed sql.NullTime
	)
	err := row.Scan(&rec.ID, &kind, &payload, &grantID, &userCode, &uid,
		&expires, &consumed, &rec.CreatedAt, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("artifact by %s: %w", what, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact by %s: %w", what, err)
	}

	if err := json.Unmarshal(payload, &rec.Payload); err != nil {
		return nil, fmt.Errorf("decode artifact payload: %w", err)
	}
	rec.Kind = models.Kind(kind)
	rec.GrantID = grantID.String
	rec.UserCode = userCode.String
	rec.UID = uid.String
	if expires.Valid {
		t := expires.Time
		rec.ExpiresAt = &t
	}
	if consumed.Valid {
		t := consumed.Time
		rec.ConsumedAt = &t
	}
	return &rec, nil
}

func (s *PostgresStore) MarkConsumed(ctx context.Context, id string, now time.Time) error {
	defer s.metrics.ObserveArtifactOp("mark_consumed", s.now())
	res, err := s.exec(ctx).ExecContext(ctx, `
		UPDATE payload_records
		SET consumed_at = COALESCE(consumed_at, $2), updated_at = $2
		WHERE id = $1`,
		id, now)
	if err != nil {
		return fmt.Errorf("mark artifact %s consumed: %w", id, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark artifact %s consumed: %w", id, err)
	}
	if affected == 0 {
		return fmt.Errorf("artifact %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) DeleteByID(ctx context.Context, id string) error {
	defer s.metrics.ObserveArtifactOp("delete_by_id", s.now())
	if _, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM payload_records WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete artifact %s: %w", id, err)
	}
	return nil
}

func (s *PostgresStore) DeleteByGrantID(ctx context.Context, grantID string) (int, error) {
	defer s.metrics.ObserveArtifactOp("delete_by_grant_id", s.now())
	if grantID == "" {
		return 0, nil
	}
	res, err := s.exec(ctx).ExecContext(ctx,
		`DELETE FROM payload_records WHERE grant_id = $1`, grantID)
	if err != nil {
		return 0, fmt.Errorf("delete artifacts for grant %s: %w", grantID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete artifacts for grant %s: %w", grantID, err)
	}
	return int(affected), nil
}
