package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
)

func TestEmailLogRepo_Append(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewEmailLogRepo(db)

	mock.ExpectExec("INSERT INTO email_logs").
		WithArgs(sqlmock.AnyArg(), "evt-1", "CERT-A", "a@example.com", domain.EmailSent,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), 0, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	sent := time.Now().UTC()
	id, err := repo.Append(context.Background(), &domain.EmailLog{
		EventID:       "evt-1",
		ParticipantID: "CERT-A",
		EmailAddress:  "a@example.com",
		Status:        domain.EmailSent,
		MessageID:     "<m1@host>",
		SentAt:        &sent,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogRepo_ListByEventNewestFirst(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewEmailLogRepo(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{
		"id", "event_id", "participant_id", "email_address", "status",
		"message_id", "sent_at", "error_message", "retry_count", "last_retry_at", "created_at",
	}).
		AddRow("log-2", "evt-1", "CERT-A", "a@example.com", "failed",
			"", nil, "SMTP server unavailable", 1, now, now).
		AddRow("log-1", "evt-1", "CERT-A", "a@example.com", "sent",
			"<m1@host>", now.Add(-time.Hour), "", 0, nil, now.Add(-time.Hour))

	mock.ExpectQuery("SELECT(.|\n)+FROM email_logs(.|\n)+ORDER BY created_at DESC").
		WithArgs("evt-1").
		WillReturnRows(rows)

	entries, err := repo.ListByEvent(context.Background(), "evt-1")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "log-2", entries[0].ID)
	assert.Equal(t, domain.EmailFailed, entries[0].Status)
	assert.Equal(t, "<m1@host>", entries[1].MessageID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEmailLogRepo_PurgeOlderThan(t *testing.T) {
	db, mock := setupTestDB(t)
	repo := NewEmailLogRepo(db)

	cutoff := time.Now().Add(-90 * 24 * time.Hour)
	mock.ExpectExec("DELETE FROM email_logs WHERE created_at < \\$1").
		WithArgs(cutoff).
		WillReturnResult(sqlmock.NewResult(0, 12))

	n, err := repo.PurgeOlderThan(context.Background(), cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(12), n)
	require.NoError(t, mock.ExpectationsWereMet())
}
