package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

// SavePending upserts a pending attribution and its candidate snapshot.
func (s *SQLiteStore) SavePending(ctx context.Context, p *models.PendingAttribution) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	if p.Expiry.IsZero() {
		p.Expiry = p.CreatedAt.Add(models.PendingTTL)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO pending_attributions
			(id, kind, trip_id, payer_id, payer_name, amount, description, poll_id, chat_id, message_id, created_at, expiry)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			kind = excluded.kind,
			trip_id = excluded.trip_id,
			payer_id = excluded.payer_id,
			payer_name = excluded.payer_name,
			amount = excluded.amount,
			description = excluded.description,
			poll_id = excluded.poll_id,
			chat_id = excluded.chat_id,
			message_id = excluded.message_id,
			created_at = excluded.created_at,
			expiry = excluded.expiry`,
		p.ID, string(p.Kind), p.TripID, p.Payer.ID, p.Payer.Name,
		p.Amount, p.Description, p.PollID, p.ChatID, p.MessageID,
		p.CreatedAt.UnixMilli(), p.Expiry.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert pending attribution: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM pending_candidates WHERE pending_id = ?", p.ID); err != nil {
		return fmt.Errorf("failed to clear candidates: %w", err)
	}
	for i, c := range p.Candidates {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO pending_candidates (pending_id, position, user_id, user_name) VALUES (?, ?, ?, ?)",
			p.ID, i, c.ID, c.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert candidate: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// PendingByPoll retrieves a pending attribution by its vote correlation key.
func (s *SQLiteStore) PendingByPoll(ctx context.Context, pollID string) (*models.PendingAttribution, error) {
	p := &models.PendingAttribution{}
	var kind string
	var createdAt, expiry int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, kind, trip_id, payer_id, payer_name, amount, description, poll_id, chat_id, message_id, created_at, expiry
		FROM pending_attributions WHERE poll_id = ?`, pollID,
	).Scan(&p.ID, &kind, &p.TripID, &p.Payer.ID, &p.Payer.Name,
		&p.Amount, &p.Description, &p.PollID, &p.ChatID, &p.MessageID, &createdAt, &expiry)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("poll %s: %w", pollID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get pending attribution: %w", err)
	}
	p.Kind = models.WorkflowKind(kind)
	p.CreatedAt = time.UnixMilli(createdAt)
	p.Expiry = time.UnixMilli(expiry)

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, user_name FROM pending_candidates WHERE pending_id = ? ORDER BY position", p.ID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get candidates: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Person
		if err := rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		p.Candidates = append(p.Candidates, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate candidates: %w", err)
	}
	return p, nil
}

// DeletePending removes a pending attribution; candidates cascade.
func (s *SQLiteStore) DeletePending(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM pending_attributions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete pending attribution: %w", err)
	}
	return nil
}

// DeleteExpiredPending reclaims records whose expiry lies before now.
func (s *SQLiteStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM pending_attributions WHERE expiry < ?", now.UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired attributions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted rows: %w", err)
	}
	return n, nil
}
