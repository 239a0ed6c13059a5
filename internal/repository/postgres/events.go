package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/MG177/certificate-generator-v2-sub000/internal/domain"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/delivery"
	"github.com/MG177/certificate-generator-v2-sub000/internal/service/event"
)

// EventRepo implements event.Repository and delivery.EventRepository against
// PostgreSQL. Layout configs, email settings and the participant list are
// stored as JSONB document columns on the events row.
type EventRepo struct{ db *sql.DB }

// NewEventRepo creates a Postgres-backed event repository.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `
	id, title, COALESCE(description,''), event_date, status,
	COALESCE(template_path,''), name_config, id_config, participants,
	email_config, email_template, email_settings, created_at, updated_at`

func scanEvent(row interface{ Scan(...interface{}) error }) (*domain.Event, error) {
	e := &domain.Event{}
	var nameCfg, idCfg, participants, emailCfg, emailTpl, emailSettings []byte
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.EventDate, &e.Status,
		&e.TemplatePath, &nameCfg, &idCfg, &participants,
		&emailCfg, &emailTpl, &emailSettings, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	var cfgDoc domain.EmailConfigDocument
	for col, dst := range map[string]struct {
		raw []byte
		out interface{}
	}{
		"name_config":    {nameCfg, &e.NameConfig},
		"id_config":      {idCfg, &e.IDConfig},
		"participants":   {participants, &e.Participants},
		"email_config":   {emailCfg, &cfgDoc},
		"email_template": {emailTpl, &e.EmailTemplate},
		"email_settings": {emailSettings, &e.EmailSettings},
	} {
		if len(dst.raw) == 0 {
			continue
		}
		if err := json.Unmarshal(dst.raw, dst.out); err != nil {
			return nil, fmt.Errorf("decode %s: %w", col, err)
		}
	}
	e.EmailConfig = cfgDoc.Config()
	return e, nil
}

func (r *EventRepo) Get(ctx context.Context, id string) (*domain.Event, error) {
	e, err := scanEvent(r.db.QueryRowContext(ctx, `
		SELECT `+eventColumns+`
		FROM events
		WHERE id = $1 AND deleted = false
	`, id))
	if err == sql.ErrNoRows {
		return nil, event.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get event: %w", err)
	}
	return e, nil
}

func (r *EventRepo) List(ctx context.Context, f event.ListFilter) ([]domain.Event, int, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}

	countQ := `SELECT COUNT(*) FROM events WHERE deleted = false`
	args := []interface{}{}
	idx := 1
	if f.Status != "" {
		countQ += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if f.Search != "" {
		countQ += fmt.Sprintf(" AND title ILIKE $%d", idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}

	var total int
	if err := r.db.QueryRowContext(ctx, countQ, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count events: %w", err)
	}

	q := `SELECT ` + eventColumns + ` FROM events WHERE deleted = false`
	qArgs := []interface{}{}
	qIdx := 1
	if f.Status != "" {
		q += fmt.Sprintf(" AND status = $%d", qIdx)
		qArgs = append(qArgs, f.Status)
		qIdx++
	}
	if f.Search != "" {
		q += fmt.Sprintf(" AND title ILIKE $%d", qIdx)
		qArgs = append(qArgs, "%"+f.Search+"%")
		qIdx++
	}
	q += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", qIdx, qIdx+1)
	qArgs = append(qArgs, limit, f.Offset)

	rows, err := r.db.QueryContext(ctx, q, qArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, *e)
	}
	return out, total, rows.Err()
}

func (r *EventRepo) Create(ctx context.Context, e *domain.Event) (string, error) {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Participants == nil {
		e.Participants = []domain.Participant{}
	}
	docs := make(map[string][]byte, 6)
	for col, v := range map[string]interface{}{
		"name_config":    e.NameConfig,
		"id_config":      e.IDConfig,
		"participants":   e.Participants,
		"email_config":   e.EmailConfig.Document(),
		"email_template": e.EmailTemplate,
		"email_settings": e.EmailSettings,
	} {
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("encode %s: %w", col, err)
		}
		docs[col] = raw
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO events
			(id, title, description, event_date, status, template_path,
			 name_config, id_config, participants,
			 email_config, email_template, email_settings,
			 deleted, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, false, NOW(), NOW())
	`, e.ID, e.Title, e.Description, e.EventDate, e.Status, e.TemplatePath,
		docs["name_config"], docs["id_config"], docs["participants"],
		docs["email_config"], docs["email_template"], docs["email_settings"])
	if err != nil {
		return "", fmt.Errorf("create event: %w", err)
	}
	return e.ID, nil
}

func (r *EventRepo) Update(ctx context.Context, id string, u event.UpdateFields) error {
	sets := []string{}
	args := []interface{}{}
	idx := 1
	add := func(col string, val interface{}) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, idx))
		args = append(args, val)
		idx++
	}
	addJSON := func(col string, val interface{}) error {
		raw, err := json.Marshal(val)
		if err != nil {
			return fmt.Errorf("encode %s: %w", col, err)
		}
		add(col, raw)
		return nil
	}

	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.EventDate != nil {
		add("event_date", *u.EventDate)
	}
	if u.TemplatePath != nil {
		add("template_path", *u.TemplatePath)
	}
	if u.NameConfig != nil {
		if err := addJSON("name_config", *u.NameConfig); err != nil {
			return err
		}
	}
	if u.IDConfig != nil {
		if err := addJSON("id_config", *u.IDConfig); err != nil {
			return err
		}
	}
	if u.EmailConfig != nil {
		if err := addJSON("email_config", u.EmailConfig.Document()); err != nil {
			return err
		}
	}
	if u.EmailTemplate != nil {
		if err := addJSON("email_template", *u.EmailTemplate); err != nil {
			return err
		}
	}
	if u.EmailSettings != nil {
		if err := addJSON("email_settings", *u.EmailSettings); err != nil {
			return err
		}
	}

	if len(sets) == 0 {
		return nil
	}

	sets = append(sets, "updated_at = NOW()")
	q := fmt.Sprintf("UPDATE events SET %s WHERE id = $%d AND deleted = false",
		strings.Join(sets, ", "), idx)
	args = append(args, id)

	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("update event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (r *EventRepo) SoftDelete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET deleted = true, deleted_at = NOW(), updated_at = NOW()
		WHERE id = $1 AND deleted = false
	`, id)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (r *EventRepo) SetStatus(ctx context.Context, id string, status domain.EventStatus) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET status = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = false
	`, status, id)
	if err != nil {
		return fmt.Errorf("set event status: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return event.ErrNotFound
	}
	return nil
}

func (r *EventRepo) ReplaceParticipants(ctx context.Context, id string, ps []domain.Participant) error {
	if ps == nil {
		ps = []domain.Participant{}
	}
	raw, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}
	res, err := r.db.ExecContext(ctx, `
		UPDATE events SET participants = $1, updated_at = NOW()
		WHERE id = $2 AND deleted = false
	`, raw, id)
	if err != nil {
		return fmt.Errorf("replace participants: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return event.ErrNotFound
	}
	return nil
}

// UpdateParticipant rewrites one participant inside the JSONB list under a
// row lock, so concurrent bulk sends don't clobber each other's updates.
func (r *EventRepo) UpdateParticipant(ctx context.Context, eventID string, p domain.Participant) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `
		SELECT participants FROM events
		WHERE id = $1 AND deleted = false
		FOR UPDATE
	`, eventID).Scan(&raw)
	if err == sql.ErrNoRows {
		return delivery.ErrEventNotFound
	}
	if err != nil {
		return fmt.Errorf("lock participants: %w", err)
	}

	var ps []domain.Participant
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &ps); err != nil {
			return fmt.Errorf("decode participants: %w", err)
		}
	}
	found := false
	for i := range ps {
		if ps[i].CertificationID == p.CertificationID {
			ps[i] = p
			found = true
			break
		}
	}
	if !found {
		return delivery.ErrParticipantNotFound
	}

	updated, err := json.Marshal(ps)
	if err != nil {
		return fmt.Errorf("encode participants: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE events SET participants = $1, updated_at = NOW() WHERE id = $2
	`, updated, eventID); err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	return tx.Commit()
}
