package models

import "time"

// WorkflowKind tags a pending chat workflow. Only receipt attribution
// exists today; future workflow kinds get their own tag instead of
// widening this one.
type WorkflowKind string

// KindReceiptAttribution marks a pending receipt-attribution vote.
const KindReceiptAttribution WorkflowKind = "receipt_attribution"

// PendingTTL is how long an open attribution vote stays resolvable.
const PendingTTL = 30 * 24 * time.Hour

// Option index layout for attribution votes: two synthetic options precede
// the candidate list, so candidate i sits at index i+OptionCandidateBase.
const (
	OptionEveryone       = 0
	OptionEveryoneExcept = 1
	OptionCandidateBase  = 2
)

// PendingAttribution is a transient, vote-backed draft of a receipt. It
// holds only its trip's ID because the vote may close long after the trip
// has changed; the trip is re-resolved at finalization time. Candidates
// are a snapshot of the attendee list when the vote was opened.
type PendingAttribution struct {
	ID          string
	Kind        WorkflowKind
	TripID      string
	Payer       Person
	Amount      float64
	Description string
	Candidates  []Person
	PollID      string // correlation key for the outstanding vote
	ChatID      int64
	MessageID   int
	CreatedAt   time.Time
	Expiry      time.Time
}

// Expired reports whether the vote can no longer be resolved.
func (p *PendingAttribution) Expired(now time.Time) bool {
	return now.After(p.Expiry)
}

// VoteOptions returns the ordered option list for the attribution poll.
func (p *PendingAttribution) VoteOptions() []string {
	opts := make([]string, 0, len(p.Candidates)+OptionCandidateBase)
	opts = append(opts, "Everyone", "Everyone except...")
	for _, c := range p.Candidates {
		opts = append(opts, c.Name)
	}
	return opts
}

// Payees maps selected option indices back to the receipt beneficiaries.
// "Everyone" wins over any other selection; "Everyone except..." treats the
// remaining selected candidates as exclusions. Out-of-range indices are
// ignored. The result may be empty; callers must reject that.
func (p *PendingAttribution) Payees(selected []int) []Person {
	chosen := make(map[int]bool, len(selected))
	for _, idx := range selected {
		chosen[idx] = true
	}

	if chosen[OptionEveryone] {
		return append([]Person(nil), p.Candidates...)
	}

	if chosen[OptionEveryoneExcept] {
		var payees []Person
		for i, c := range p.Candidates {
			if !chosen[i+OptionCandidateBase] {
				payees = append(payees, c)
			}
		}
		return payees
	}

	var payees []Person
	for _, idx := range selected {
		i := idx - OptionCandidateBase
		if i >= 0 && i < len(p.Candidates) {
			payees = append(payees, p.Candidates[i])
		}
	}
	return payees
}
