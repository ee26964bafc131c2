package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/tallyhq/tally/internal/middleware"
	"github.com/tallyhq/tally/internal/service"
	"github.com/tallyhq/tally/internal/storage/sqlite"
	"github.com/tallyhq/tally/internal/telegram"
	"github.com/tallyhq/tally/pkg/logging"
)

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func main() {
	// .env is optional; system environment wins either way
	_ = godotenv.Load()
	logging.Setup()

	token := os.Getenv("TELEGRAM_TOKEN")
	if token == "" {
		slog.Error("TELEGRAM_TOKEN not set")
		os.Exit(1)
	}
	dbPath := getEnv("DB_PATH", "./data/tally.db")

	store, err := sqlite.New(dbPath)
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}
	defer store.Close()
	slog.Info("Storage initialized", "database", dbPath)

	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		slog.Error("Failed to initialize bot", "error", err)
		os.Exit(1)
	}
	slog.Info("Bot authorized", "username", bot.Self.UserName)

	trips := service.NewTripService(store)
	receipts := service.NewReceiptService(store, telegram.NewVotes(bot), trips)
	handler := telegram.NewHandler(bot, trips, receipts)

	ctx := context.Background()

	// Reclaim abandoned attribution votes once a day.
	go func() {
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			receipts.SweepExpired(ctx)
		}
	}()

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	webhookURL := os.Getenv("WEBHOOK_URL")
	if webhookURL != "" {
		wh, err := tgbotapi.NewWebhook(webhookURL)
		if err != nil {
			slog.Error("Invalid webhook URL", "error", err)
			os.Exit(1)
		}
		if _, err := bot.Request(wh); err != nil {
			slog.Error("Failed to register webhook", "error", err)
			os.Exit(1)
		}
		webhookPath := getEnv("WEBHOOK_PATH", "/webhook/tally")
		mux.HandleFunc(webhookPath, func(w http.ResponseWriter, r *http.Request) {
			update, err := bot.HandleUpdate(r)
			if err != nil {
				slog.Warn("Rejected webhook update", "error", err)
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			handler.HandleUpdate(r.Context(), *update)
			w.WriteHeader(http.StatusOK)
		})
		slog.Info("Webhook registered", "url", webhookURL, "path", webhookPath)
	} else {
		// No public URL: fall back to long polling and serve only
		// health and metrics over HTTP.
		slog.Info("No WEBHOOK_URL set, long polling for updates")
		go pollUpdates(ctx, bot, handler)
	}

	addr := getEnv("LISTEN_ADDR", ":8080")
	h2cHandler := h2c.NewHandler(middleware.Logging(mux), &http2.Server{})
	slog.Info("Server starting", "address", addr)
	if err := http.ListenAndServe(addr, h2cHandler); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

func pollUpdates(ctx context.Context, bot *tgbotapi.BotAPI, handler *telegram.Handler) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	u.AllowedUpdates = []string{"message", "callback_query", "poll_answer"}

	for update := range bot.GetUpdatesChan(u) {
		handler.HandleUpdate(ctx, update)
	}
}
