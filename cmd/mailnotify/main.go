// Command mailnotify polls an IMAP mailbox and forwards new messages
// to a Telegram chat, tracking delivery in a local SQLite file.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/nhle/mailnotify/internal/model"
	"github.com/nhle/mailnotify/internal/notify"
	"github.com/nhle/mailnotify/internal/source/mail"
	"github.com/nhle/mailnotify/internal/store"
	"github.com/nhle/mailnotify/internal/sync"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// A .env file is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := model.LoadConfig()
	if err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("opening store %s: %w", cfg.DBPath, err)
	}
	defer st.Close()

	notifier, err := notify.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID, log)
	if err != nil {
		return err
	}

	decoder := mail.NewDecoder(cfg.FeedbackSubject, cfg.TimeOffsetHours)
	fetcher := mail.NewFetcher(mail.Config{
		Host:      cfg.IMAPServer,
		Port:      cfg.IMAPPort,
		Username:  cfg.Login,
		Password:  cfg.Password,
		Mailbox:   cfg.Mailbox,
		Criterion: cfg.SearchCriterion,
	}, decoder, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sync.NewLoop(st, fetcher, notifier, cfg.PollInterval, log).Run(ctx)

	log.Info("shutting down")
	return nil
}
