package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tallyhq/tally/internal/metrics"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/settle"
	"github.com/tallyhq/tally/internal/storage"
)

// ReceiptService runs the receipt-attribution workflow and the settlement
// read paths.
type ReceiptService struct {
	store storage.Store
	votes VoteService
	trips *TripService
}

// NewReceiptService creates a ReceiptService with the given collaborators.
func NewReceiptService(store storage.Store, votes VoteService, trips *TripService) *ReceiptService {
	return &ReceiptService{store: store, votes: votes, trips: trips}
}

// LogReceipt accepts a receipt-logging intent: it opens an attribution
// vote asking who the payer covered, and persists the pending record. The
// receipt itself is only created once the vote resolves. The candidate
// list is a snapshot of the current attendees; later joins do not widen an
// open vote.
func (s *ReceiptService) LogReceipt(ctx context.Context, chatID int64, payer models.Person, amount float64, description string) (*models.PendingAttribution, error) {
	if amount <= 0 {
		return nil, ErrBadAmount
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, ErrEmptyDescription
	}

	trip, err := s.trips.CurrentTrip(ctx, chatID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	pending := &models.PendingAttribution{
		Kind:        models.KindReceiptAttribution,
		TripID:      trip.ID,
		Payer:       payer,
		Amount:      amount,
		Description: description,
		Candidates:  append([]models.Person(nil), trip.Attendees...),
		CreatedAt:   now,
		Expiry:      now.Add(models.PendingTTL),
	}

	prompt := fmt.Sprintf("Trip: %s\n%s [ $%.2f ]\n%s is paying for...",
		trip.Title, description, amount, payer.Name)
	ref, err := s.votes.OpenVote(ctx, chatID, prompt, pending.VoteOptions())
	if err != nil {
		return nil, fmt.Errorf("open attribution vote: %w", err)
	}
	pending.PollID = ref.PollID
	pending.ChatID = ref.ChatID
	pending.MessageID = ref.MessageID

	if err := s.store.SavePending(ctx, pending); err != nil {
		return nil, err
	}
	metrics.VotesOpened.Inc()
	slog.Info("attribution vote opened",
		"trip_id", trip.ID, "poll_id", pending.PollID,
		"amount", amount, "payer_id", payer.ID)
	return pending, nil
}

// ResolveAttribution finalizes a pending attribution from a vote callback.
// Resolution deletes the pending record, which also makes duplicate
// callbacks for the same vote resolve to ErrUnknownVote instead of
// appending a second receipt.
func (s *ReceiptService) ResolveAttribution(ctx context.Context, pollID string, selected []int) (*models.Trip, *models.Receipt, error) {
	pending, err := s.store.PendingByPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil, ErrUnknownVote
		}
		return nil, nil, err
	}
	if pending.Kind != models.KindReceiptAttribution {
		return nil, nil, ErrUnknownVote
	}
	if pending.Expired(time.Now()) {
		return nil, nil, ErrVoteExpired
	}

	payees := pending.Payees(selected)
	if len(payees) == 0 {
		return nil, nil, ErrNoPayees
	}

	trip, err := s.store.GetTrip(ctx, pending.TripID)
	if err != nil {
		return nil, nil, err
	}

	receipt := models.Receipt{
		PaidBy:      pending.Payer,
		PaidFor:     payees,
		Amount:      pending.Amount,
		Description: pending.Description,
	}
	trip.Receipts = append(trip.Receipts, receipt)
	if err := s.store.SaveTrip(ctx, trip); err != nil {
		return nil, nil, err
	}

	if err := s.votes.CloseVote(ctx, pending.ChatID, pending.MessageID); err != nil {
		// The receipt is already recorded; a dangling open poll is
		// the lesser problem.
		slog.Warn("failed to close vote", "poll_id", pollID, "error", err)
	}
	if err := s.store.DeletePending(ctx, pending.ID); err != nil {
		slog.Warn("failed to delete pending attribution", "pending_id", pending.ID, "error", err)
	}

	metrics.VotesResolved.Inc()
	slog.Info("attribution vote resolved",
		"trip_id", trip.ID, "poll_id", pollID,
		"payees", len(payees), "amount", receipt.Amount)
	return trip, &receipt, nil
}

// Settle computes the settle report for the chat's current trip.
func (s *ReceiptService) Settle(ctx context.Context, chatID int64) (string, error) {
	trip, err := s.trips.CurrentTrip(ctx, chatID)
	if err != nil {
		return "", err
	}
	report, err := settle.Report(trip)
	if err != nil {
		return "", err
	}
	metrics.SettlementsComputed.Inc()
	return report, nil
}

// ShowReceipts renders the current trip's receipt breakdown.
func (s *ReceiptService) ShowReceipts(ctx context.Context, chatID int64) (string, error) {
	trip, err := s.trips.CurrentTrip(ctx, chatID)
	if err != nil {
		return "", err
	}
	return trip.DescribeReceipts(), nil
}

// SweepExpired reclaims pending attributions whose expiry has passed.
func (s *ReceiptService) SweepExpired(ctx context.Context) {
	n, err := s.store.DeleteExpiredPending(ctx, time.Now())
	if err != nil {
		slog.Error("expired attribution sweep failed", "error", err)
		return
	}
	if n > 0 {
		metrics.ExpiredSwept.Add(float64(n))
		slog.Info("expired attributions reclaimed", "count", n)
	}
}
