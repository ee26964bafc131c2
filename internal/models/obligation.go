package models

import "fmt"

// Obligation is a directed net debt between two people, accumulated from
// one or more receipts during a settlement pass. The description carries a
// comma-joined trace of the contributing receipts.
type Obligation struct {
	OwedBy      Person
	OwedTo      Person
	Amount      float64
	Description string
}

// SamePair reports whether both obligations involve the same two people,
// regardless of direction.
func (o Obligation) SamePair(other Obligation) bool {
	if o.OwedBy.Same(other.OwedBy) && o.OwedTo.Same(other.OwedTo) {
		return true
	}
	return o.OwedBy.Same(other.OwedTo) && o.OwedTo.Same(other.OwedBy)
}

// Describe renders the obligation as a single settle-report line.
func (o Obligation) Describe() string {
	return fmt.Sprintf("%s owes %s $%.2f", o.OwedBy.Name, o.OwedTo.Name, o.Amount)
}
