package models

import (
	"fmt"
	"strings"
	"time"
)

// Trip is the aggregate root for one bounded expense-tracking session.
// A chat can own many trips; the one referenced most recently is treated
// as current.
type Trip struct {
	ID             string
	ChatID         int64
	Title          string
	CreatedBy      Person
	CreatedOn      time.Time
	LastReferenced time.Time
	Attendees      []Person  // insertion order, unique by ID
	Receipts       []Receipt // chronological, append-only
}

// AddAttendee appends p unless someone with the same ID is already on the
// trip. Returns whether an addition occurred.
func (t *Trip) AddAttendee(p Person) bool {
	for _, a := range t.Attendees {
		if a.Same(p) {
			return false
		}
	}
	t.Attendees = append(t.Attendees, p)
	return true
}

// Touch marks the trip as the most recently referenced one for its chat.
// This is the only mutation path for LastReferenced.
func (t *Trip) Touch() {
	t.LastReferenced = time.Now()
}

// Describe renders the trip header shown on creation, join and show.
func (t *Trip) Describe() string {
	names := make([]string, len(t.Attendees))
	for i, p := range t.Attendees {
		names[i] = p.Name
	}
	lines := []string{
		fmt.Sprintf("🎉 %s 🎉", t.Title),
		fmt.Sprintf("< %s >", t.CreatedOn.Format("02 Jan 2006")),
		"",
		fmt.Sprintf("Receipts: %d", len(t.Receipts)),
		fmt.Sprintf("Attendees:\n%s", strings.Join(names, "\n")),
	}
	return strings.Join(lines, "\n")
}

// OneLiner is the compact rendering used in trip browse lists.
func (t *Trip) OneLiner() string {
	return fmt.Sprintf("%s\n%d people, %d receipts",
		t.Title, len(t.Attendees), len(t.Receipts))
}

// DescribeReceipts renders every receipt in logging order.
func (t *Trip) DescribeReceipts() string {
	if len(t.Receipts) == 0 {
		return "No receipts recorded for this trip yet!"
	}
	parts := make([]string, len(t.Receipts))
	for i, r := range t.Receipts {
		parts[i] = r.Describe()
	}
	return strings.Join(parts, "\n\n")
}
