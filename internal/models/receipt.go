package models

import (
	"fmt"
	"strings"
)

// Receipt is one paid transaction: PaidBy covered Amount on behalf of
// everyone in PaidFor. Receipts are append-only once attached to a trip.
type Receipt struct {
	PaidBy      Person
	PaidFor     []Person
	Amount      float64
	Description string
}

// Share is the per-person portion of the receipt amount. Receipts with an
// empty payee list never reach a trip; callers validate before appending.
func (r Receipt) Share() float64 {
	return r.Amount / float64(len(r.PaidFor))
}

// Describe renders the receipt as a two-line summary. Payee lists longer
// than 7 names collapse to a head count.
func (r Receipt) Describe() string {
	names := make([]string, len(r.PaidFor))
	for i, p := range r.PaidFor {
		names[i] = p.Name
	}
	paidFor := strings.Join(names, ", ")
	if len(r.PaidFor) > 7 {
		paidFor = fmt.Sprintf("%d people", len(r.PaidFor))
	}
	return fmt.Sprintf("-- %s [ $%.2f | $%.2f each ]\n%s paid for %s",
		r.Description, r.Amount, r.Share(), r.PaidBy.Name, paidFor)
}
