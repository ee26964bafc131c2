// Package service orchestrates trips, receipts and attribution votes on
// top of the persistence gateway and the vote service. All dependencies
// are injected; there is no ambient state.
package service

import (
	"context"
	"errors"
)

var (
	// ErrNoTrip means the chat has no trip to act on.
	ErrNoTrip = errors.New("no trip found for this chat")
	// ErrEmptyTitle rejects trips created without a title.
	ErrEmptyTitle = errors.New("trip title must not be empty")
	// ErrBadAmount rejects receipts with a non-positive amount.
	ErrBadAmount = errors.New("receipt amount must be greater than zero")
	// ErrEmptyDescription rejects receipts without a description.
	ErrEmptyDescription = errors.New("receipt description must not be empty")
	// ErrUnknownVote means the vote correlation key matched nothing,
	// either because it was never ours or because it was already
	// resolved. Callers treat it as a no-op.
	ErrUnknownVote = errors.New("unknown or already resolved vote")
	// ErrVoteExpired rejects resolution attempts against a vote past
	// its expiry.
	ErrVoteExpired = errors.New("vote has expired")
	// ErrNoPayees rejects vote outcomes that select nobody.
	ErrNoPayees = errors.New("vote selected no payees")
)

// VoteRef identifies an open vote and the chat message carrying it.
type VoteRef struct {
	PollID    string
	ChatID    int64
	MessageID int
}

// VoteService opens and closes multi-choice, multi-select votes in a chat.
type VoteService interface {
	// OpenVote posts a vote with the given prompt and ordered options
	// and returns its correlation reference.
	OpenVote(ctx context.Context, chatID int64, prompt string, options []string) (VoteRef, error)
	// CloseVote stops the vote carried by the given chat message; no
	// further answers are accepted afterwards.
	CloseVote(ctx context.Context, chatID int64, messageID int) error
}
