package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tallyhq/tally/internal/service"
)

// Ensure Votes implements service.VoteService
var _ service.VoteService = (*Votes)(nil)

// Votes opens and closes Telegram polls on behalf of the services. Polls
// are non-anonymous and multi-answer so the bot can attribute receipts.
type Votes struct {
	bot *tgbotapi.BotAPI
}

// NewVotes creates a Votes adapter over the bot API.
func NewVotes(bot *tgbotapi.BotAPI) *Votes {
	return &Votes{bot: bot}
}

// OpenVote posts a multi-select poll and returns its correlation reference.
func (v *Votes) OpenVote(ctx context.Context, chatID int64, prompt string, options []string) (service.VoteRef, error) {
	poll := tgbotapi.NewPoll(chatID, prompt, options...)
	poll.IsAnonymous = false
	poll.AllowsMultipleAnswers = true

	msg, err := v.bot.Send(poll)
	if err != nil {
		return service.VoteRef{}, fmt.Errorf("send poll: %w", err)
	}
	if msg.Poll == nil {
		return service.VoteRef{}, fmt.Errorf("poll message carried no poll")
	}
	return service.VoteRef{
		PollID:    msg.Poll.ID,
		ChatID:    chatID,
		MessageID: msg.MessageID,
	}, nil
}

// CloseVote stops the poll carried by the given message.
func (v *Votes) CloseVote(ctx context.Context, chatID int64, messageID int) error {
	if _, err := v.bot.StopPoll(tgbotapi.NewStopPoll(chatID, messageID)); err != nil {
		return fmt.Errorf("stop poll: %w", err)
	}
	return nil
}
