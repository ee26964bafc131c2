// Package sqlite provides a SQLite-backed implementation of the storage.Store interface.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

// Ensure SQLiteStore implements storage.Store
var _ storage.Store = (*SQLiteStore)(nil)

// SQLiteStore implements storage.Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLiteStore with the given database path.
// It creates the parent directories and runs migrations automatically.
func New(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveTrip upserts the trip aggregate. Attendees, receipts and payees are
// rewritten wholesale so their stored positions always mirror the slices.
func (s *SQLiteStore) SaveTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		trip.ID = uuid.New().String()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO trips (id, chat_id, title, created_by_id, created_by_name, created_on, last_referenced)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			chat_id = excluded.chat_id,
			title = excluded.title,
			created_by_id = excluded.created_by_id,
			created_by_name = excluded.created_by_name,
			created_on = excluded.created_on,
			last_referenced = excluded.last_referenced`,
		trip.ID, trip.ChatID, trip.Title,
		trip.CreatedBy.ID, trip.CreatedBy.Name,
		trip.CreatedOn.UnixMilli(), trip.LastReferenced.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert trip: %w", err)
	}

	// receipt_payees cascades from receipts
	for _, stmt := range []string{
		"DELETE FROM trip_attendees WHERE trip_id = ?",
		"DELETE FROM receipts WHERE trip_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, stmt, trip.ID); err != nil {
			return fmt.Errorf("failed to clear trip children: %w", err)
		}
	}

	for i, p := range trip.Attendees {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO trip_attendees (trip_id, position, user_id, user_name) VALUES (?, ?, ?, ?)",
			trip.ID, i, p.ID, p.Name,
		)
		if err != nil {
			return fmt.Errorf("failed to insert attendee: %w", err)
		}
	}

	for i, r := range trip.Receipts {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO receipts (trip_id, position, payer_id, payer_name, amount, description) VALUES (?, ?, ?, ?, ?, ?)",
			trip.ID, i, r.PaidBy.ID, r.PaidBy.Name, r.Amount, r.Description,
		)
		if err != nil {
			return fmt.Errorf("failed to insert receipt: %w", err)
		}
		for j, p := range r.PaidFor {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO receipt_payees (trip_id, receipt_position, position, user_id, user_name) VALUES (?, ?, ?, ?, ?)",
				trip.ID, i, j, p.ID, p.Name,
			)
			if err != nil {
				return fmt.Errorf("failed to insert payee: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// GetTrip retrieves a trip by ID, including attendees and receipts.
func (s *SQLiteStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip := &models.Trip{}
	var createdOn, lastReferenced int64
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, title, created_by_id, created_by_name, created_on, last_referenced
		FROM trips WHERE id = ?`, tripID,
	).Scan(&trip.ID, &trip.ChatID, &trip.Title,
		&trip.CreatedBy.ID, &trip.CreatedBy.Name, &createdOn, &lastReferenced)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	trip.CreatedOn = time.UnixMilli(createdOn)
	trip.LastReferenced = time.UnixMilli(lastReferenced)

	if err := s.loadTripChildren(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// TripsByChat returns every trip owned by the chat, most recently
// referenced first.
func (s *SQLiteStore) TripsByChat(ctx context.Context, chatID int64) ([]*models.Trip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, chat_id, title, created_by_id, created_by_name, created_on, last_referenced
		FROM trips WHERE chat_id = ? ORDER BY last_referenced DESC`, chatID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer rows.Close()

	var trips []*models.Trip
	for rows.Next() {
		trip := &models.Trip{}
		var createdOn, lastReferenced int64
		if err := rows.Scan(&trip.ID, &trip.ChatID, &trip.Title,
			&trip.CreatedBy.ID, &trip.CreatedBy.Name, &createdOn, &lastReferenced); err != nil {
			return nil, fmt.Errorf("failed to scan trip: %w", err)
		}
		trip.CreatedOn = time.UnixMilli(createdOn)
		trip.LastReferenced = time.UnixMilli(lastReferenced)
		trips = append(trips, trip)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate trips: %w", err)
	}

	for _, trip := range trips {
		if err := s.loadTripChildren(ctx, trip); err != nil {
			return nil, err
		}
	}
	return trips, nil
}

func (s *SQLiteStore) loadTripChildren(ctx context.Context, trip *models.Trip) error {
	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, user_name FROM trip_attendees WHERE trip_id = ? ORDER BY position", trip.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get attendees: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Person
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return fmt.Errorf("failed to scan attendee: %w", err)
		}
		trip.Attendees = append(trip.Attendees, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate attendees: %w", err)
	}

	receiptRows, err := s.db.QueryContext(ctx,
		"SELECT position, payer_id, payer_name, amount, description FROM receipts WHERE trip_id = ? ORDER BY position", trip.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to get receipts: %w", err)
	}
	defer receiptRows.Close()

	var positions []int
	for receiptRows.Next() {
		var r models.Receipt
		var pos int
		if err := receiptRows.Scan(&pos, &r.PaidBy.ID, &r.PaidBy.Name, &r.Amount, &r.Description); err != nil {
			return fmt.Errorf("failed to scan receipt: %w", err)
		}
		trip.Receipts = append(trip.Receipts, r)
		positions = append(positions, pos)
	}
	if err := receiptRows.Err(); err != nil {
		return fmt.Errorf("failed to iterate receipts: %w", err)
	}

	for i, pos := range positions {
		payeeRows, err := s.db.QueryContext(ctx,
			"SELECT user_id, user_name FROM receipt_payees WHERE trip_id = ? AND receipt_position = ? ORDER BY position",
			trip.ID, pos,
		)
		if err != nil {
			return fmt.Errorf("failed to get payees: %w", err)
		}
		for payeeRows.Next() {
			var p models.Person
			if err := payeeRows.Scan(&p.ID, &p.Name); err != nil {
				payeeRows.Close()
				return fmt.Errorf("failed to scan payee: %w", err)
			}
			trip.Receipts[i].PaidFor = append(trip.Receipts[i].PaidFor, p)
		}
		payeeRows.Close()
		if err := payeeRows.Err(); err != nil {
			return fmt.Errorf("failed to iterate payees: %w", err)
		}
	}
	return nil
}
