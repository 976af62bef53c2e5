package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"github.com/kan140979/Proleum-Pro-Bot/internal/ai"
	"github.com/kan140979/Proleum-Pro-Bot/internal/config"
	"github.com/kan140979/Proleum-Pro-Bot/internal/db"
	"github.com/kan140979/Proleum-Pro-Bot/internal/logger"
	"github.com/kan140979/Proleum-Pro-Bot/internal/repository"
	"github.com/kan140979/Proleum-Pro-Bot/internal/session"
	"github.com/kan140979/Proleum-Pro-Bot/internal/telegram"
	"github.com/kan140979/Proleum-Pro-Bot/migration"
)

// restartDelay is how long the bot sleeps after a polling failure
// before resuming. Retry is unconditional and unbounded: the process
// stays up, logs the failure as critical, and tries again.
const restartDelay = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	var mailer logger.MailSender
	if cfg.Mail.Enabled() {
		mailer = &logger.SMTPMailer{
			Host:     cfg.Mail.Host,
			Port:     cfg.Mail.Port,
			User:     cfg.Mail.User,
			Password: cfg.Mail.Password,
			From:     cfg.Mail.From,
			To:       cfg.Mail.To,
		}
	}

	logg, err := logger.New(logger.Options{Dir: cfg.Log.Dir, Mailer: mailer})
	if err != nil {
		log.Fatalf("logger: %v", err)
	}

	ctx := context.Background()

	var users telegram.Registry
	if cfg.Database.Enabled() {
		pool, err := db.NewPool(ctx, cfg.Database)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer pool.Close()

		if err := migration.Run(ctx, pool); err != nil {
			log.Fatalf("migrations: %v", err)
		}
		users = repository.NewUserRepository(pool)
	}

	client := ai.NewClient(cfg.OpenAI.APIKey, cfg.OpenAI.BaseURL)

	bot, err := telegram.NewBot(cfg.Telegram.Token, client, session.NewStore(), users, logg)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	logg.Info("ChatGPT bot started")

	for {
		if err := bot.Run(); err != nil {
			logger.Critical(logg, "bot polling failed", "error", err)
		}
		time.Sleep(restartDelay)
	}
}
