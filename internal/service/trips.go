package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

// browsePageSize is the fixed page size for trip browsing.
const browsePageSize = 9

// TripService owns trip lifecycle and the current-trip selection policy.
type TripService struct {
	store storage.Store
}

// NewTripService creates a TripService with the given storage backend.
func NewTripService(store storage.Store) *TripService {
	return &TripService{store: store}
}

// NewTrip creates a trip for the chat with the creator as first attendee.
func (s *TripService) NewTrip(ctx context.Context, chatID int64, title string, creator models.Person) (*models.Trip, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, ErrEmptyTitle
	}
	now := time.Now()
	trip := &models.Trip{
		ChatID:         chatID,
		Title:          title,
		CreatedBy:      creator,
		CreatedOn:      now,
		LastReferenced: now,
		Attendees:      []models.Person{creator},
	}
	if err := s.store.SaveTrip(ctx, trip); err != nil {
		return nil, err
	}
	slog.Info("trip created", "trip_id", trip.ID, "chat_id", chatID, "title", title)
	return trip, nil
}

// CurrentTrip resolves the most recently referenced trip for the chat and
// marks it referenced again, so every read keeps it current.
func (s *TripService) CurrentTrip(ctx context.Context, chatID int64) (*models.Trip, error) {
	trips, err := s.store.TripsByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if len(trips) == 0 {
		return nil, ErrNoTrip
	}
	trip := trips[0]
	trip.Touch()
	if err := s.store.SaveTrip(ctx, trip); err != nil {
		return nil, err
	}
	return trip, nil
}

// SelectTrip makes the given trip the chat's current one.
func (s *TripService) SelectTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, err
	}
	trip.Touch()
	if err := s.store.SaveTrip(ctx, trip); err != nil {
		return nil, err
	}
	slog.Info("trip selected", "trip_id", trip.ID, "chat_id", trip.ChatID)
	return trip, nil
}

// JoinTrip adds the person to the trip's attendees. The second return
// value reports whether an addition occurred; joining twice is a no-op.
// Two racing joins may lose one addition (last writer wins), never corrupt
// the list.
func (s *TripService) JoinTrip(ctx context.Context, tripID string, person models.Person) (*models.Trip, bool, error) {
	trip, err := s.store.GetTrip(ctx, tripID)
	if err != nil {
		return nil, false, err
	}
	if !trip.AddAttendee(person) {
		return trip, false, nil
	}
	if err := s.store.SaveTrip(ctx, trip); err != nil {
		return nil, false, err
	}
	slog.Info("attendee joined", "trip_id", trip.ID, "user_id", person.ID)
	return trip, true, nil
}

// BrowseTrips returns one page of the chat's trips ordered by recency of
// reference, and whether more pages remain.
func (s *TripService) BrowseTrips(ctx context.Context, chatID int64, page int) ([]*models.Trip, bool, error) {
	trips, err := s.store.TripsByChat(ctx, chatID)
	if err != nil {
		return nil, false, err
	}
	start := page * browsePageSize
	if start >= len(trips) {
		return nil, false, nil
	}
	end := start + browsePageSize
	hasMore := end < len(trips)
	if end > len(trips) {
		end = len(trips)
	}
	return trips[start:end], hasMore, nil
}
