package models

import (
	"testing"
	"time"
)

func attributionFixture() *PendingAttribution {
	return &PendingAttribution{
		ID:     "p1",
		Kind:   KindReceiptAttribution,
		Payer:  Person{ID: 1, Name: "Alice"},
		Amount: 30,
		Candidates: []Person{
			{ID: 1, Name: "Alice"},
			{ID: 2, Name: "Bob"},
			{ID: 3, Name: "Carol"},
		},
	}
}

func TestVoteOptions(t *testing.T) {
	p := attributionFixture()
	got := p.VoteOptions()
	want := []string{"Everyone", "Everyone except...", "Alice", "Bob", "Carol"}
	if len(got) != len(want) {
		t.Fatalf("got %d options, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("option %d = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPayees(t *testing.T) {
	tests := []struct {
		name     string
		selected []int
		want     []string
	}{
		{
			name:     "everyone selects all candidates",
			selected: []int{OptionEveryone},
			want:     []string{"Alice", "Bob", "Carol"},
		},
		{
			name:     "everyone wins over other selections",
			selected: []int{OptionEveryone, OptionEveryoneExcept, 3},
			want:     []string{"Alice", "Bob", "Carol"},
		},
		{
			name:     "everyone except excludes the marked candidates",
			selected: []int{OptionEveryoneExcept, 3},
			want:     []string{"Alice", "Carol"},
		},
		{
			name:     "everyone except with no exclusions keeps all",
			selected: []int{OptionEveryoneExcept},
			want:     []string{"Alice", "Bob", "Carol"},
		},
		{
			name:     "everyone except everyone leaves nobody",
			selected: []int{OptionEveryoneExcept, 2, 3, 4},
			want:     nil,
		},
		{
			name:     "explicit candidate indices map by offset",
			selected: []int{2, 4},
			want:     []string{"Alice", "Carol"},
		},
		{
			name:     "out of range indices are ignored",
			selected: []int{3, 9},
			want:     []string{"Bob"},
		},
		{
			name:     "empty selection yields no payees",
			selected: nil,
			want:     nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := attributionFixture()
			got := p.Payees(tt.selected)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d payees %v, want %d", len(got), got, len(tt.want))
			}
			for i, name := range tt.want {
				if got[i].Name != name {
					t.Errorf("payee %d = %q, want %q", i, got[i].Name, name)
				}
			}
		})
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	p := &PendingAttribution{Expiry: now.Add(PendingTTL)}

	if p.Expired(now) {
		t.Error("fresh vote should not be expired")
	}
	if p.Expired(now.Add(PendingTTL - time.Minute)) {
		t.Error("vote inside the TTL should not be expired")
	}
	if !p.Expired(now.Add(PendingTTL + time.Minute)) {
		t.Error("vote past the TTL should be expired")
	}
}
