// Package metrics registers the bot's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpdatesHandled counts processed chat updates by kind
	// (message, callback, poll_answer).
	UpdatesHandled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tally_updates_handled_total",
		Help: "Chat updates processed, by update kind.",
	}, []string{"kind"})

	// VotesOpened counts attribution polls sent to chats.
	VotesOpened = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_attribution_votes_opened_total",
		Help: "Attribution votes opened.",
	})

	// VotesResolved counts attribution polls converted into receipts.
	VotesResolved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_attribution_votes_resolved_total",
		Help: "Attribution votes resolved into receipts.",
	})

	// SettlementsComputed counts settle reports produced.
	SettlementsComputed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_settlements_computed_total",
		Help: "Settle reports computed.",
	})

	// ExpiredSwept counts pending attributions reclaimed past expiry.
	ExpiredSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tally_pending_expired_swept_total",
		Help: "Expired pending attributions reclaimed.",
	})
)
