package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/storage"
)

var (
	alice = models.Person{ID: 1, Name: "Alice"}
	bob   = models.Person{ID: 2, Name: "Bob"}
	carol = models.Person{ID: 3, Name: "Carol"}
)

// memStore is an in-memory Store for service tests. It copies aggregates
// on the way in and out so tests observe persistence boundaries, not
// shared pointers.
type memStore struct {
	trips   map[string]*models.Trip
	pending map[string]*models.PendingAttribution
	seq     int
}

var _ storage.Store = (*memStore)(nil)

func newMemStore() *memStore {
	return &memStore{
		trips:   make(map[string]*models.Trip),
		pending: make(map[string]*models.PendingAttribution),
	}
}

func copyTrip(t *models.Trip) *models.Trip {
	c := *t
	c.Attendees = append([]models.Person(nil), t.Attendees...)
	c.Receipts = append([]models.Receipt(nil), t.Receipts...)
	return &c
}

func (s *memStore) SaveTrip(ctx context.Context, trip *models.Trip) error {
	if trip.ID == "" {
		s.seq++
		trip.ID = fmt.Sprintf("trip-%d", s.seq)
	}
	s.trips[trip.ID] = copyTrip(trip)
	return nil
}

func (s *memStore) GetTrip(ctx context.Context, tripID string) (*models.Trip, error) {
	trip, ok := s.trips[tripID]
	if !ok {
		return nil, fmt.Errorf("trip %s: %w", tripID, storage.ErrNotFound)
	}
	return copyTrip(trip), nil
}

func (s *memStore) TripsByChat(ctx context.Context, chatID int64) ([]*models.Trip, error) {
	var trips []*models.Trip
	for _, t := range s.trips {
		if t.ChatID == chatID {
			trips = append(trips, copyTrip(t))
		}
	}
	sort.Slice(trips, func(i, j int) bool {
		return trips[i].LastReferenced.After(trips[j].LastReferenced)
	})
	return trips, nil
}

func (s *memStore) SavePending(ctx context.Context, p *models.PendingAttribution) error {
	if p.ID == "" {
		s.seq++
		p.ID = fmt.Sprintf("pending-%d", s.seq)
	}
	c := *p
	c.Candidates = append([]models.Person(nil), p.Candidates...)
	s.pending[p.ID] = &c
	return nil
}

func (s *memStore) PendingByPoll(ctx context.Context, pollID string) (*models.PendingAttribution, error) {
	for _, p := range s.pending {
		if p.PollID == pollID {
			c := *p
			c.Candidates = append([]models.Person(nil), p.Candidates...)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("poll %s: %w", pollID, storage.ErrNotFound)
}

func (s *memStore) DeletePending(ctx context.Context, id string) error {
	delete(s.pending, id)
	return nil
}

func (s *memStore) DeleteExpiredPending(ctx context.Context, now time.Time) (int64, error) {
	var n int64
	for id, p := range s.pending {
		if p.Expired(now) {
			delete(s.pending, id)
			n++
		}
	}
	return n, nil
}

func (s *memStore) Close() error { return nil }

// fakeVotes records opened and closed votes without talking to any chat
// platform.
type fakeVotes struct {
	opened []openedVote
	closed []int
}

type openedVote struct {
	chatID  int64
	prompt  string
	options []string
}

var _ VoteService = (*fakeVotes)(nil)

func (f *fakeVotes) OpenVote(ctx context.Context, chatID int64, prompt string, options []string) (VoteRef, error) {
	f.opened = append(f.opened, openedVote{chatID: chatID, prompt: prompt, options: options})
	n := len(f.opened)
	return VoteRef{
		PollID:    fmt.Sprintf("poll-%d", n),
		ChatID:    chatID,
		MessageID: 100 + n,
	}, nil
}

func (f *fakeVotes) CloseVote(ctx context.Context, chatID int64, messageID int) error {
	f.closed = append(f.closed, messageID)
	return nil
}

func newTestServices() (*TripService, *ReceiptService, *memStore, *fakeVotes) {
	store := newMemStore()
	votes := &fakeVotes{}
	trips := NewTripService(store)
	receipts := NewReceiptService(store, votes, trips)
	return trips, receipts, store, votes
}

func TestNewTrip(t *testing.T) {
	trips, _, _, _ := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "  Bhutan Trip  ", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	if trip.ID == "" {
		t.Error("trip should be assigned an ID on save")
	}
	if trip.Title != "Bhutan Trip" {
		t.Errorf("title = %q, want trimmed %q", trip.Title, "Bhutan Trip")
	}
	if len(trip.Attendees) != 1 || !trip.Attendees[0].Same(alice) {
		t.Errorf("creator should be the first attendee, got %+v", trip.Attendees)
	}

	if _, err := trips.NewTrip(ctx, 10, "   ", alice); !errors.Is(err, ErrEmptyTitle) {
		t.Errorf("blank title error = %v, want ErrEmptyTitle", err)
	}
}

func TestCurrentTripSelectsMostRecentlyReferenced(t *testing.T) {
	trips, _, _, _ := newTestServices()
	ctx := context.Background()

	first, err := trips.NewTrip(ctx, 10, "First", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	time.Sleep(time.Millisecond)
	if _, err := trips.NewTrip(ctx, 10, "Second", alice); err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	time.Sleep(time.Millisecond)

	current, err := trips.CurrentTrip(ctx, 10)
	if err != nil {
		t.Fatalf("CurrentTrip() failed: %v", err)
	}
	if current.Title != "Second" {
		t.Errorf("current trip = %q, want the newest one", current.Title)
	}

	time.Sleep(time.Millisecond)
	if _, err := trips.SelectTrip(ctx, first.ID); err != nil {
		t.Fatalf("SelectTrip() failed: %v", err)
	}
	current, err = trips.CurrentTrip(ctx, 10)
	if err != nil {
		t.Fatalf("CurrentTrip() failed: %v", err)
	}
	if current.ID != first.ID {
		t.Errorf("current trip = %q, want the reselected %q", current.ID, first.ID)
	}
}

func TestCurrentTripWithoutTrips(t *testing.T) {
	trips, _, _, _ := newTestServices()
	if _, err := trips.CurrentTrip(context.Background(), 10); !errors.Is(err, ErrNoTrip) {
		t.Errorf("error = %v, want ErrNoTrip", err)
	}
}

func TestJoinTrip(t *testing.T) {
	trips, _, _, _ := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}

	joined, added, err := trips.JoinTrip(ctx, trip.ID, bob)
	if err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}
	if !added || len(joined.Attendees) != 2 {
		t.Errorf("added = %v, attendees = %d; want addition to 2", added, len(joined.Attendees))
	}

	joined, added, err = trips.JoinTrip(ctx, trip.ID, bob)
	if err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}
	if added || len(joined.Attendees) != 2 {
		t.Errorf("rejoining should be a no-op, added = %v, attendees = %d", added, len(joined.Attendees))
	}
}

func TestBrowseTrips(t *testing.T) {
	trips, _, _, _ := newTestServices()
	ctx := context.Background()

	for i := 0; i < 12; i++ {
		if _, err := trips.NewTrip(ctx, 10, fmt.Sprintf("Trip %d", i), alice); err != nil {
			t.Fatalf("NewTrip() failed: %v", err)
		}
	}

	page, hasMore, err := trips.BrowseTrips(ctx, 10, 0)
	if err != nil {
		t.Fatalf("BrowseTrips() failed: %v", err)
	}
	if len(page) != 9 || !hasMore {
		t.Errorf("page 0: got %d trips, hasMore %v; want 9, true", len(page), hasMore)
	}

	page, hasMore, err = trips.BrowseTrips(ctx, 10, 1)
	if err != nil {
		t.Fatalf("BrowseTrips() failed: %v", err)
	}
	if len(page) != 3 || hasMore {
		t.Errorf("page 1: got %d trips, hasMore %v; want 3, false", len(page), hasMore)
	}

	page, hasMore, err = trips.BrowseTrips(ctx, 10, 2)
	if err != nil {
		t.Fatalf("BrowseTrips() failed: %v", err)
	}
	if len(page) != 0 || hasMore {
		t.Errorf("page 2: got %d trips, hasMore %v; want empty, false", len(page), hasMore)
	}
}

func TestLogReceiptValidation(t *testing.T) {
	trips, receipts, _, _ := newTestServices()
	ctx := context.Background()

	if _, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner"); !errors.Is(err, ErrNoTrip) {
		t.Errorf("no trip error = %v, want ErrNoTrip", err)
	}

	if _, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice); err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	if _, err := receipts.LogReceipt(ctx, 10, alice, 0, "Dinner"); !errors.Is(err, ErrBadAmount) {
		t.Errorf("zero amount error = %v, want ErrBadAmount", err)
	}
	if _, err := receipts.LogReceipt(ctx, 10, alice, -5, "Dinner"); !errors.Is(err, ErrBadAmount) {
		t.Errorf("negative amount error = %v, want ErrBadAmount", err)
	}
	if _, err := receipts.LogReceipt(ctx, 10, alice, 30, "  "); !errors.Is(err, ErrEmptyDescription) {
		t.Errorf("blank description error = %v, want ErrEmptyDescription", err)
	}
}

func TestLogReceiptOpensVote(t *testing.T) {
	trips, receipts, store, votes := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	if _, _, err := trips.JoinTrip(ctx, trip.ID, bob); err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}

	pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
	if err != nil {
		t.Fatalf("LogReceipt() failed: %v", err)
	}

	if len(votes.opened) != 1 {
		t.Fatalf("got %d opened votes, want 1", len(votes.opened))
	}
	opened := votes.opened[0]
	if !strings.Contains(opened.prompt, "Alice is paying for...") {
		t.Errorf("prompt = %q, want the payer lead-in", opened.prompt)
	}
	wantOptions := []string{"Everyone", "Everyone except...", "Alice", "Bob"}
	if len(opened.options) != len(wantOptions) {
		t.Fatalf("got %d options %v, want %v", len(opened.options), opened.options, wantOptions)
	}
	for i, opt := range wantOptions {
		if opened.options[i] != opt {
			t.Errorf("option %d = %q, want %q", i, opened.options[i], opt)
		}
	}

	if pending.PollID == "" {
		t.Error("pending attribution should carry the vote correlation key")
	}
	if _, ok := store.pending[pending.ID]; !ok {
		t.Error("pending attribution was not persisted")
	}
	if !pending.Expiry.After(pending.CreatedAt) {
		t.Error("pending attribution should expire after creation")
	}
}

func TestResolveAttribution(t *testing.T) {
	tests := []struct {
		name       string
		selected   []int
		wantErr    error
		wantPayees []string
	}{
		{
			name:       "everyone",
			selected:   []int{models.OptionEveryone},
			wantPayees: []string{"Alice", "Bob", "Carol"},
		},
		{
			name:       "everyone except one",
			selected:   []int{models.OptionEveryoneExcept, 3},
			wantPayees: []string{"Alice", "Carol"},
		},
		{
			name:       "explicit candidates",
			selected:   []int{2, 4},
			wantPayees: []string{"Alice", "Carol"},
		},
		{
			name:     "nobody selected",
			selected: nil,
			wantErr:  ErrNoPayees,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trips, receipts, _, _ := newTestServices()
			ctx := context.Background()

			trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
			if err != nil {
				t.Fatalf("NewTrip() failed: %v", err)
			}
			for _, p := range []models.Person{bob, carol} {
				if _, _, err := trips.JoinTrip(ctx, trip.ID, p); err != nil {
					t.Fatalf("JoinTrip() failed: %v", err)
				}
			}
			pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
			if err != nil {
				t.Fatalf("LogReceipt() failed: %v", err)
			}

			resolved, receipt, err := receipts.ResolveAttribution(ctx, pending.PollID, tt.selected)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ResolveAttribution() failed: %v", err)
			}

			if len(resolved.Receipts) != 1 {
				t.Fatalf("trip carries %d receipts, want 1", len(resolved.Receipts))
			}
			if len(receipt.PaidFor) != len(tt.wantPayees) {
				t.Fatalf("got %d payees %v, want %v", len(receipt.PaidFor), receipt.PaidFor, tt.wantPayees)
			}
			for i, name := range tt.wantPayees {
				if receipt.PaidFor[i].Name != name {
					t.Errorf("payee %d = %q, want %q", i, receipt.PaidFor[i].Name, name)
				}
			}
		})
	}
}

func TestResolveAttributionDuplicateCallback(t *testing.T) {
	trips, receipts, _, votes := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
	if err != nil {
		t.Fatalf("LogReceipt() failed: %v", err)
	}

	if _, _, err := receipts.ResolveAttribution(ctx, pending.PollID, []int{models.OptionEveryone}); err != nil {
		t.Fatalf("first resolution failed: %v", err)
	}
	if _, _, err := receipts.ResolveAttribution(ctx, pending.PollID, []int{models.OptionEveryone}); !errors.Is(err, ErrUnknownVote) {
		t.Fatalf("second resolution error = %v, want ErrUnknownVote", err)
	}

	stored, err := trips.SelectTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("SelectTrip() failed: %v", err)
	}
	if len(stored.Receipts) != 1 {
		t.Errorf("trip carries %d receipts after duplicate callback, want 1", len(stored.Receipts))
	}
	if len(votes.closed) != 1 {
		t.Errorf("vote closed %d times, want 1", len(votes.closed))
	}
}

func TestResolveAttributionExpired(t *testing.T) {
	trips, receipts, store, _ := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
	if err != nil {
		t.Fatalf("LogReceipt() failed: %v", err)
	}
	store.pending[pending.ID].Expiry = time.Now().Add(-time.Hour)

	if _, _, err := receipts.ResolveAttribution(ctx, pending.PollID, []int{models.OptionEveryone}); !errors.Is(err, ErrVoteExpired) {
		t.Fatalf("error = %v, want ErrVoteExpired", err)
	}

	stored, err := trips.SelectTrip(ctx, trip.ID)
	if err != nil {
		t.Fatalf("SelectTrip() failed: %v", err)
	}
	if len(stored.Receipts) != 0 {
		t.Errorf("expired vote must not append a receipt, got %d", len(stored.Receipts))
	}
}

func TestResolveAttributionUnknownPoll(t *testing.T) {
	_, receipts, _, _ := newTestServices()
	if _, _, err := receipts.ResolveAttribution(context.Background(), "never-seen", []int{0}); !errors.Is(err, ErrUnknownVote) {
		t.Errorf("error = %v, want ErrUnknownVote", err)
	}
}

// A join after the vote opened must not widen the candidate snapshot.
func TestResolveAttributionUsesCandidateSnapshot(t *testing.T) {
	trips, receipts, _, _ := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	if _, _, err := trips.JoinTrip(ctx, trip.ID, bob); err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}
	pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
	if err != nil {
		t.Fatalf("LogReceipt() failed: %v", err)
	}
	if _, _, err := trips.JoinTrip(ctx, trip.ID, carol); err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}

	_, receipt, err := receipts.ResolveAttribution(ctx, pending.PollID, []int{models.OptionEveryone})
	if err != nil {
		t.Fatalf("ResolveAttribution() failed: %v", err)
	}
	if len(receipt.PaidFor) != 2 {
		t.Errorf("got %d payees, want the 2 snapshotted at vote open", len(receipt.PaidFor))
	}
}

func TestSettle(t *testing.T) {
	trips, receipts, _, _ := newTestServices()
	ctx := context.Background()

	trip, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice)
	if err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	if _, _, err := trips.JoinTrip(ctx, trip.ID, bob); err != nil {
		t.Fatalf("JoinTrip() failed: %v", err)
	}
	pending, err := receipts.LogReceipt(ctx, 10, alice, 30, "Dinner")
	if err != nil {
		t.Fatalf("LogReceipt() failed: %v", err)
	}
	if _, _, err := receipts.ResolveAttribution(ctx, pending.PollID, []int{models.OptionEveryone}); err != nil {
		t.Fatalf("ResolveAttribution() failed: %v", err)
	}

	report, err := receipts.Settle(ctx, 10)
	if err != nil {
		t.Fatalf("Settle() failed: %v", err)
	}
	if !strings.Contains(report, "Bob owes Alice $15.00") {
		t.Errorf("report = %q, want Bob's half of the dinner", report)
	}
}

func TestShowReceiptsEmpty(t *testing.T) {
	trips, receipts, _, _ := newTestServices()
	ctx := context.Background()

	if _, err := trips.NewTrip(ctx, 10, "Bhutan Trip", alice); err != nil {
		t.Fatalf("NewTrip() failed: %v", err)
	}
	out, err := receipts.ShowReceipts(ctx, 10)
	if err != nil {
		t.Fatalf("ShowReceipts() failed: %v", err)
	}
	if !strings.Contains(out, "No receipts recorded") {
		t.Errorf("output = %q, want the empty notice", out)
	}
}

func TestSweepExpired(t *testing.T) {
	_, receipts, store, _ := newTestServices()
	ctx := context.Background()

	now := time.Now()
	store.pending["stale"] = &models.PendingAttribution{
		ID: "stale", Kind: models.KindReceiptAttribution,
		PollID: "poll-stale", Expiry: now.Add(-time.Hour),
	}
	store.pending["fresh"] = &models.PendingAttribution{
		ID: "fresh", Kind: models.KindReceiptAttribution,
		PollID: "poll-fresh", Expiry: now.Add(time.Hour),
	}

	receipts.SweepExpired(ctx)

	if _, ok := store.pending["stale"]; ok {
		t.Error("expired attribution should have been reclaimed")
	}
	if _, ok := store.pending["fresh"]; !ok {
		t.Error("live attribution should have survived the sweep")
	}
}
