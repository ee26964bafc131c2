// Package telegram is the chat shell: it turns Telegram updates into
// service calls and renders the results back as messages, inline keyboards
// and polls.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/tallyhq/tally/internal/metrics"
	"github.com/tallyhq/tally/internal/models"
	"github.com/tallyhq/tally/internal/service"
)

// Callback data prefixes. The trailing payload is a trip ID or page number.
const (
	cbJoin   = "trip_join"
	cbBrowse = "trip_browse_show"
	cbSelect = "trip_browse_select"
)

const msgNoTrip = "There is no recent trip found in the database"

// Handler routes Telegram updates into the trip and receipt services.
type Handler struct {
	bot      *tgbotapi.BotAPI
	trips    *service.TripService
	receipts *service.ReceiptService
}

// NewHandler creates a Handler over the given bot and services.
func NewHandler(bot *tgbotapi.BotAPI, trips *service.TripService, receipts *service.ReceiptService) *Handler {
	return &Handler{bot: bot, trips: trips, receipts: receipts}
}

// HandleUpdate dispatches one inbound update. Each update is one logical
// flow; updates for different chats are independent.
func (h *Handler) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil:
		metrics.UpdatesHandled.WithLabelValues("message").Inc()
		h.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		metrics.UpdatesHandled.WithLabelValues("callback").Inc()
		h.handleCallback(ctx, update.CallbackQuery)
	case update.PollAnswer != nil:
		metrics.UpdatesHandled.WithLabelValues("poll_answer").Inc()
		h.handlePollAnswer(ctx, update.PollAnswer)
	}
}

func personFrom(u *tgbotapi.User) models.Person {
	name := u.UserName
	if name == "" {
		name = u.FirstName
	}
	return models.Person{ID: u.ID, Name: name}
}

func (h *Handler) handleMessage(ctx context.Context, m *tgbotapi.Message) {
	if m.IsCommand() {
		switch m.Command() {
		case "start":
			h.reply(m.Chat.ID, startText)
		case "help":
			h.reply(m.Chat.ID, helpText)
		case "intro":
			h.reply(m.Chat.ID, introText)
		case "trip":
			title := strings.TrimSpace(m.CommandArguments())
			if title == "" {
				h.reply(m.Chat.ID, "Did you miss out the name of your trip?\n/trip TRIP_NAME")
				return
			}
			h.newTrip(ctx, m.Chat.ID, title, personFrom(m.From))
		case "bill":
			fields := strings.Fields(m.CommandArguments())
			if len(fields) < 2 {
				h.reply(m.Chat.ID, "You gotta put it in this format:\n/bill AMOUNT DESC")
				return
			}
			amount, err := strconv.ParseFloat(fields[0], 64)
			if err != nil {
				h.reply(m.Chat.ID, fmt.Sprintf("I cant translate %s to a number!", fields[0]))
				return
			}
			h.logReceipt(ctx, m.Chat.ID, personFrom(m.From), amount, strings.Join(fields[1:], " "))
		case "settle":
			h.settle(ctx, m.Chat.ID)
		case "receipts":
			h.showReceipts(ctx, m.Chat.ID)
		case "show":
			h.showTrip(ctx, m.Chat.ID)
		}
		return
	}
	h.handleFreeText(ctx, m)
}

func (h *Handler) handleFreeText(ctx context.Context, m *tgbotapi.Message) {
	if !isCallingBot(m.Text) {
		return
	}
	command, ok := determineCommand(m.Text)
	if !ok {
		h.reply(m.Chat.ID, "Sorry, I uhh... dont quite understand you ٭(•﹏•)٭")
		return
	}
	switch command {
	case "trip":
		title, err := parseTripName(m.Text)
		if err != nil {
			h.reply(m.Chat.ID, err.Error())
			return
		}
		h.newTrip(ctx, m.Chat.ID, title, personFrom(m.From))
	case "bill":
		amount, description, err := parseBill(m.Text)
		if err != nil {
			h.reply(m.Chat.ID, err.Error())
			return
		}
		h.logReceipt(ctx, m.Chat.ID, personFrom(m.From), amount, description)
	case "settle":
		h.settle(ctx, m.Chat.ID)
	case "receipts":
		h.showReceipts(ctx, m.Chat.ID)
	case "show":
		h.showTrip(ctx, m.Chat.ID)
	case "help":
		h.reply(m.Chat.ID, helpText)
	case "intro":
		h.reply(m.Chat.ID, introText)
	}
}

func (h *Handler) newTrip(ctx context.Context, chatID int64, title string, creator models.Person) {
	trip, err := h.trips.NewTrip(ctx, chatID, title, creator)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, trip.Describe())
	msg.ReplyMarkup = joinKeyboard(trip)
	h.send(msg)
}

func (h *Handler) logReceipt(ctx context.Context, chatID int64, payer models.Person, amount float64, description string) {
	// The poll itself is posted by the vote service; nothing to render
	// here on success.
	if _, err := h.receipts.LogReceipt(ctx, chatID, payer, amount, description); err != nil {
		h.replyError(chatID, err)
	}
}

func (h *Handler) settle(ctx context.Context, chatID int64) {
	report, err := h.receipts.Settle(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, report)
}

func (h *Handler) showReceipts(ctx context.Context, chatID int64) {
	text, err := h.receipts.ShowReceipts(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	h.reply(chatID, text)
}

func (h *Handler) showTrip(ctx context.Context, chatID int64) {
	trip, err := h.trips.CurrentTrip(ctx, chatID)
	if err != nil {
		h.replyError(chatID, err)
		return
	}
	msg := tgbotapi.NewMessage(chatID, trip.Describe())
	msg.ReplyMarkup = showKeyboard(trip)
	h.send(msg)
}

func (h *Handler) handleCallback(ctx context.Context, q *tgbotapi.CallbackQuery) {
	defer h.answerCallback(q)
	if q.Message == nil {
		return
	}
	chatID := q.Message.Chat.ID

	switch {
	case strings.HasPrefix(q.Data, cbSelect):
		trip, err := h.trips.SelectTrip(ctx, strings.TrimPrefix(q.Data, cbSelect))
		if err != nil {
			h.replyError(chatID, err)
			return
		}
		h.send(tgbotapi.NewEditMessageTextAndMarkup(
			chatID, q.Message.MessageID, trip.Describe(), showKeyboard(trip)))

	case strings.HasPrefix(q.Data, cbBrowse):
		page, err := strconv.Atoi(strings.TrimPrefix(q.Data, cbBrowse))
		if err != nil {
			return
		}
		trips, hasMore, err := h.trips.BrowseTrips(ctx, chatID, page)
		if err != nil {
			h.replyError(chatID, err)
			return
		}
		h.send(tgbotapi.NewEditMessageReplyMarkup(
			chatID, q.Message.MessageID, browseKeyboard(trips, page, hasMore)))

	case strings.HasPrefix(q.Data, cbJoin):
		trip, added, err := h.trips.JoinTrip(ctx, strings.TrimPrefix(q.Data, cbJoin), personFrom(q.From))
		if err != nil {
			h.replyError(chatID, err)
			return
		}
		if !added {
			return
		}
		markup := joinKeyboard(trip)
		if q.Message.ReplyMarkup != nil {
			markup = *q.Message.ReplyMarkup
		}
		h.send(tgbotapi.NewEditMessageTextAndMarkup(
			chatID, q.Message.MessageID, trip.Describe(), markup))
	}
}

func (h *Handler) handlePollAnswer(ctx context.Context, pa *tgbotapi.PollAnswer) {
	trip, _, err := h.receipts.ResolveAttribution(ctx, pa.PollID, pa.OptionIDs)
	switch {
	case err == nil:
		slog.Debug("receipt attributed", "trip_id", trip.ID, "poll_id", pa.PollID)
	case errors.Is(err, service.ErrUnknownVote):
		// Duplicate callback or somebody else's poll.
		slog.Debug("ignoring poll answer", "poll_id", pa.PollID)
	case errors.Is(err, service.ErrVoteExpired), errors.Is(err, service.ErrNoPayees):
		slog.Info("attribution vote not resolvable", "poll_id", pa.PollID, "reason", err)
	default:
		slog.Error("failed to resolve attribution", "poll_id", pa.PollID, "error", err)
	}
}

func joinKeyboard(trip *models.Trip) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Join Trip!", cbJoin+trip.ID),
		),
	)
}

func showKeyboard(trip *models.Trip) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Join Trip!", cbJoin+trip.ID),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Not your trip?", cbBrowse+"0"),
		),
	)
}

func browseKeyboard(trips []*models.Trip, page int, hasMore bool) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, trip := range trips {
		label := fmt.Sprintf("%s (%s)", trip.Title, trip.CreatedOn.Format("Jan 06"))
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, cbSelect+trip.ID),
		))
	}
	if hasMore {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Next Page", cbBrowse+strconv.Itoa(page+1)),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func (h *Handler) reply(chatID int64, text string) {
	h.send(tgbotapi.NewMessage(chatID, text))
}

// replyError maps service errors onto user-facing messages.
func (h *Handler) replyError(chatID int64, err error) {
	switch {
	case errors.Is(err, service.ErrNoTrip):
		h.reply(chatID, msgNoTrip)
	case errors.Is(err, service.ErrEmptyTitle):
		h.reply(chatID, "Your trip needs a name!")
	case errors.Is(err, service.ErrBadAmount):
		h.reply(chatID, "The amount has to be more than zero!")
	case errors.Is(err, service.ErrEmptyDescription):
		h.reply(chatID, "What was the receipt for? Add a description!")
	default:
		slog.Error("command failed", "chat_id", chatID, "error", err)
		h.reply(chatID, "Something went wrong on my end, sorry!")
	}
}

func (h *Handler) send(c tgbotapi.Chattable) {
	if _, err := h.bot.Send(c); err != nil {
		slog.Error("failed to send message", "error", err)
	}
}

func (h *Handler) answerCallback(q *tgbotapi.CallbackQuery) {
	if _, err := h.bot.Request(tgbotapi.NewCallback(q.ID, "")); err != nil {
		slog.Warn("failed to answer callback", "error", err)
	}
}

const startText = `Hello! My name is Tally~
Im a bill split bot who can help you to log all your expenses for a trip and make it easy to settle at the end of the trip

You can type /help to see my commands!

You can also try a 'Hey Tally' with a simple sentence, kinda like 'Hey Siri'. Do be patient with me if I dont understand you, you can always fall back on my commands~

I gotta be an admin to hear non-command messages though, so remember to promote me!`

const helpText = `For commands, you will need to follow the syntax strictly for it to work
/trip TRIP_NAME - Start a new trip!
/bill AMOUNT DESC - Record a receipt that you paid for, I will later ask who you paid for
/settle - Get the final amount everyone owes each other
/receipts - Shows all receipts and breakdown
/show - Shows the current trip you are on, you can reselect older trips
/intro - Tell you more about myself!`

const introText = `Hi there! I'm Tally, your friendly helper bot, always eager to lend a hand! I'm pretty good at math and keeping track of receipts, especially for end-of-vacation tabulations. If you've got expenses to split, I've got you covered! Feel free to reach out whenever you need some help~`
