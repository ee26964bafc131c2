// Package models defines the core domain models for Tally.
//
// # Models
//
//   - Person: a chat member, identified by platform user ID
//   - Receipt: one logged payment with a payer and a list of beneficiaries
//   - Obligation: a directed net debt accumulated during settlement
//   - Trip: the aggregate root owning attendees and receipts for one chat
//   - PendingAttribution: an attribution vote in flight
//
// # Design Principles
//
// 1. **Value semantics**: Person, Receipt and Obligation are plain values;
// only Trip and PendingAttribution are mutated, and only through their
// methods.
//
// 2. **Identity by ID**: people compare by platform user ID via
// Person.Same; display names are cosmetic and may drift.
//
// 3. **Weak trip references**: PendingAttribution stores a trip ID, never
// a pointer, because votes can close days after the trip last changed.
//
// 4. **Single currency**: amounts are dollars in the chat's implicit
// currency, rendered fixed-point with two decimals.
package models
