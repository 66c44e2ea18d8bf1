// Command remind runs one reminder sweep and exits. Intended to be
// scheduled by cron once per day.
package main

import (
	"context"
	"log"
	"time"

	"synopsis/api/internal/config"
	"synopsis/api/internal/email"
	"synopsis/api/internal/reminder"
	"synopsis/api/internal/store"
)

func main() {
	cfg := config.Load()
	ctx := context.Background()

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	defer db.Close()

	dataStore := store.NewPostgresStore(db)

	mailer := email.NewService(email.Config{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
		FromName: cfg.SMTPFromName,
	})
	if !mailer.IsConfigured() {
		log.Fatal("SMTP is not configured; set SMTP_HOST, SMTP_PORT and SMTP_FROM")
	}

	sweeper := reminder.NewSweeper(dataStore, mailer, cfg.Brand, cfg.SMTPFrom, cfg.ReminderLeadDays)
	counts, err := sweeper.Sweep(ctx, time.Now())
	if err != nil {
		log.Fatalf("sweep failed after %d invite, %d protocol, %d action list reminders: %v",
			counts.Invites, counts.Protocol, counts.ActionLists, err)
	}
	log.Printf("reminder sweep done: %d invite, %d protocol, %d action list", counts.Invites, counts.Protocol, counts.ActionLists)
}
