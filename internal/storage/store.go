// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/tallyhq/tally/internal/models"
)

// ErrNotFound is returned when a lookup matches nothing.
var ErrNotFound = errors.New("not found")

// Store is the persistence gateway for trips and in-flight attribution
// votes. This abstraction allows swapping storage backends without
// changing the service layer. Implementations serialize writes at the
// aggregate level; callers accept last-writer-wins semantics when two
// events race on the same trip.
type Store interface {
	// SaveTrip upserts a trip and its attendees and receipts. A missing
	// trip ID is assigned by the store.
	SaveTrip(ctx context.Context, trip *models.Trip) error

	// GetTrip retrieves a trip by ID.
	// Returns ErrNotFound if no such trip exists.
	GetTrip(ctx context.Context, tripID string) (*models.Trip, error)

	// TripsByChat returns every trip owned by a chat, most recently
	// referenced first.
	TripsByChat(ctx context.Context, chatID int64) ([]*models.Trip, error)

	// SavePending upserts a pending attribution. A missing ID is
	// assigned by the store.
	SavePending(ctx context.Context, p *models.PendingAttribution) error

	// PendingByPoll retrieves a pending attribution by its vote
	// correlation key. Returns ErrNotFound if no such record exists.
	PendingByPoll(ctx context.Context, pollID string) (*models.PendingAttribution, error)

	// DeletePending removes a pending attribution by ID. Deleting a
	// record that is already gone is not an error.
	DeletePending(ctx context.Context, id string) error

	// DeleteExpiredPending removes every pending attribution whose
	// expiry lies before now, returning how many were removed.
	DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error)

	// Close releases any resources held by the store.
	Close() error
}
