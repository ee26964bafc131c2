// Package settle turns a trip's receipt list into the minimal set of
// pairwise net obligations and a human-readable settle report.
package settle

import (
	"fmt"
	"sort"
	"strings"

	"github.com/tallyhq/tally/internal/models"
)

// negligible is the floor below which a net obligation counts as rounding
// noise and is dropped. A debt of exactly one cent survives.
const negligible = 0.01

// Expand breaks every receipt into one raw obligation per payee, preserving
// receipt order and payee order. The raw order is part of the settlement
// contract: it decides which settled entry each obligation folds into.
// A receipt with zero payees is an invariant violation and fails fast.
func Expand(receipts []models.Receipt) ([]models.Obligation, error) {
	var raw []models.Obligation
	for _, r := range receipts {
		if len(r.PaidFor) == 0 {
			return nil, fmt.Errorf("receipt %q has no payees", r.Description)
		}
		share := r.Share()
		for _, p := range r.PaidFor {
			raw = append(raw, models.Obligation{
				OwedBy:      p,
				OwedTo:      r.PaidBy,
				Amount:      share,
				Description: r.Description,
			})
		}
	}
	return raw, nil
}

// pairKey identifies an unordered pair of people.
type pairKey struct {
	lo, hi int64
}

func keyFor(o models.Obligation) pairKey {
	a, b := o.OwedBy.ID, o.OwedTo.ID
	if a > b {
		a, b = b, a
	}
	return pairKey{lo: a, hi: b}
}

// Settle folds the expanded obligations into at most one settled entry per
// unordered pair of people, in expansion order. Directly opposing debts
// cancel; debts routed through a third person do not (no cross-cancellation
// through the wider debt graph). Self-debts and negligible residues are
// dropped at the end.
func Settle(receipts []models.Receipt) ([]models.Obligation, error) {
	raw, err := Expand(receipts)
	if err != nil {
		return nil, err
	}

	var settled []models.Obligation
	index := make(map[pairKey]int, len(raw))
	for _, o := range raw {
		k := keyFor(o)
		i, ok := index[k]
		if !ok {
			index[k] = len(settled)
			settled = append(settled, o)
			continue
		}
		s := settled[i]
		if s.OwedBy.Same(o.OwedBy) {
			s.Amount += o.Amount
		} else {
			s.Amount -= o.Amount
		}
		s.Description += ", " + o.Description
		if s.Amount < 0 {
			s.OwedBy, s.OwedTo = s.OwedTo, s.OwedBy
			s.Amount = -s.Amount
		}
		settled[i] = s
	}

	var final []models.Obligation
	for _, o := range settled {
		if o.Amount < negligible || o.OwedBy.Same(o.OwedTo) {
			continue
		}
		final = append(final, o)
	}
	return final, nil
}

// Report renders the settle summary for a trip: header, then one line per
// obligation, stable-sorted by debtor name with consecutive entries for the
// same debtor grouped into one block.
func Report(t *models.Trip) (string, error) {
	obligations, err := Settle(t.Receipts)
	if err != nil {
		return "", err
	}

	lines := []string{
		fmt.Sprintf("🎉 %s 🎉\n", t.Title),
		fmt.Sprintf("Receipts: %d\n", len(t.Receipts)),
	}
	if len(obligations) == 0 {
		lines = append(lines, "All settled up, nobody owes anything!")
		return strings.Join(lines, "\n"), nil
	}

	sort.SliceStable(obligations, func(i, j int) bool {
		return obligations[i].OwedBy.Name < obligations[j].OwedBy.Name
	})

	debtor := obligations[0].OwedBy
	for _, o := range obligations {
		if !o.OwedBy.Same(debtor) {
			lines = append(lines, "")
			debtor = o.OwedBy
		}
		lines = append(lines, o.Describe())
	}
	return strings.Join(lines, "\n"), nil
}
