package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

// EmailLogRepo implements delivery.EmailLogRepository against PostgreSQL.
// The table is append-only; nothing here issues an UPDATE.
type EmailLogRepo struct{ db *sql.DB }

// NewEmailLogRepo creates a Postgres-backed email log repository.
func NewEmailLogRepo(db *sql.DB) *EmailLogRepo { return &EmailLogRepo{db: db} }

func (r *EmailLogRepo) Append(ctx context.Context, entry *domain.EmailLog) (string, error) {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO email_logs
			(id, event_id, participant_id, email_address, status,
			 message_id, sent_at, error_message, retry_count, last_retry_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, entry.ID, entry.EventID, entry.ParticipantID, entry.EmailAddress, entry.Status,
		nullStr(entry.MessageID), entry.SentAt, nullStr(entry.ErrorMessage),
		entry.RetryCount, entry.LastRetryAt, entry.CreatedAt)
	if err != nil {
		return "", fmt.Errorf("append email log: %w", err)
	}
	return entry.ID, nil
}

func (r *EmailLogRepo) ListByEvent(ctx context.Context, eventID string) ([]domain.EmailLog, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, event_id, participant_id, email_address, status,
		       COALESCE(message_id,''), sent_at, COALESCE(error_message,''),
		       retry_count, last_retry_at, created_at
		FROM email_logs
		WHERE event_id = $1
		ORDER BY created_at DESC
	`, eventID)
	if err != nil {
		return nil, fmt.Errorf("list email logs: %w", err)
	}
	defer rows.Close()

	var out []domain.EmailLog
	for rows.Next() {
		var e domain.EmailLog
		if err := rows.Scan(
			&e.ID, &e.EventID, &e.ParticipantID, &e.EmailAddress, &e.Status,
			&e.MessageID, &e.SentAt, &e.ErrorMessage,
			&e.RetryCount, &e.LastRetryAt, &e.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan email log: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (r *EmailLogRepo) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM email_logs WHERE created_at < $1
	`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge email logs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
