// Package telegram runs the bot: it polls for updates, classifies each
// inbound text message, and relays conversation turns to the completion
// API.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/kan140979/Proleum-Pro-Bot/internal/ai"
	"github.com/kan140979/Proleum-Pro-Bot/internal/session"
)

// maxMessageLength is Telegram's limit for a single text message.
// Longer replies are sent as consecutive segments.
const maxMessageLength = 4096

// Completer is the completion-service boundary.
type Completer interface {
	Complete(ctx context.Context, model string, history []ai.Message) (string, error)
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

// Registry records first-seen users. A nil Registry disables
// registration and the /generate_image command.
type Registry interface {
	Exists(ctx context.Context, telegramID int64) (bool, error)
	Register(ctx context.Context, telegramID int64, login *string, startDate string) error
}

// sender is the slice of tgbotapi.BotAPI the handlers need.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// updateFetcher is the polling slice of tgbotapi.BotAPI. Unlike the
// SDK's update channel, which retries transport errors internally,
// calling GetUpdates directly surfaces them to the run loop.
type updateFetcher interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

type Bot struct {
	sender   sender
	fetcher  updateFetcher
	username string
	offset   int
	store    *session.Store
	ai       Completer
	users    Registry
	log      *slog.Logger
}

func NewBot(token string, completer Completer, store *session.Store, users Registry, log *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = false

	return &Bot{
		sender:   api,
		fetcher:  api,
		username: api.Self.UserName,
		store:    store,
		ai:       completer,
		users:    users,
		log:      log,
	}, nil
}

// Run long-polls for updates and handles them one at a time, strictly
// sequentially. It returns on the first transport error, and a panic in
// a handler is converted to an error, so the caller's retry loop sees
// every failure. The confirmed offset survives across calls; re-entering
// Run resumes where polling stopped.
func (b *Bot) Run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic in update loop: %v", r)
		}
	}()

	b.log.Info("bot polling started", "username", b.username)

	for {
		u := tgbotapi.NewUpdate(b.offset)
		u.Timeout = 30

		updates, err := b.fetcher.GetUpdates(u)
		if err != nil {
			return fmt.Errorf("failed to get updates: %w", err)
		}

		for _, update := range updates {
			if update.UpdateID >= b.offset {
				b.offset = update.UpdateID + 1
			}
			b.handleUpdate(update)
		}
	}
}

func (b *Bot) handleUpdate(update tgbotapi.Update) {
	if update.Message == nil || update.Message.From == nil || update.Message.Text == "" {
		return
	}
	b.handleMessage(update.Message)
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	b.log.Info("message received", "user_id", userID, "text", msg.Text)

	cmd, arg := classify(msg.Text, b.users != nil)
	switch cmd {
	case cmdStart:
		b.handleStart(msg)
	case cmdSelectModel:
		b.handleModelSelection(chatID, userID, arg)
	case cmdGenerateImage:
		b.handleGenerateImage(chatID, userID, arg)
	case cmdExit:
		b.handleExit(chatID, userID)
	case cmdChangeModel:
		b.sendWithKeyboard(chatID, "Please choose a new model:")
	case cmdChat:
		b.handleChat(chatID, userID, arg)
	}
}

func (b *Bot) handleStart(msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	if b.users != nil {
		b.registerIfNew(userID, msg.From.UserName)
	}

	b.sendWithKeyboard(chatID, "Hi! Choose the ChatGPT model you want to use:")
}

// registerIfNew inserts a first-seen record, guarded by an existence
// check. Registration failures are logged and never block the welcome.
func (b *Bot) registerIfNew(userID int64, username string) {
	ctx := context.Background()

	exists, err := b.users.Exists(ctx, userID)
	if err != nil {
		b.log.Error("user lookup failed", "user_id", userID, "error", err)
		return
	}
	if exists {
		return
	}

	var login *string
	if username != "" {
		login = &username
	}
	startDate := time.Now().Format("2006-01-02 15:04:05")

	if err := b.users.Register(ctx, userID, login, startDate); err != nil {
		b.log.Error("user registration failed", "user_id", userID, "error", err)
		return
	}
	b.log.Info("new user registered", "user_id", userID, "login", username)
}

func (b *Bot) handleModelSelection(chatID, userID int64, model string) {
	b.store.Select(userID, model)
	b.send(chatID, fmt.Sprintf("You selected model %s. You can now start asking questions.", model))
}

func (b *Bot) handleGenerateImage(chatID, userID int64, prompt string) {
	b.log.Info("image prompt received", "user_id", userID, "prompt", prompt)
	b.send(chatID, "Generating an image with DALL·E 3. Please wait...")

	url, err := b.ai.GenerateImage(context.Background(), prompt)
	if err != nil {
		b.log.Error("image generation failed", "user_id", userID, "error", err)
		b.send(chatID, "An error occurred while generating the image. Please try again.")
		return
	}

	b.log.Info("image generated", "user_id", userID, "url", url)
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileURL(url))
	if _, err := b.sender.Send(photo); err != nil {
		b.log.Error("failed to send photo", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) handleExit(chatID, userID int64) {
	b.send(chatID, "Chat ended. Goodbye!")
	b.store.Clear(userID)
	b.log.Info("chat ended", "user_id", userID)
}

// handleChat relays one conversation turn. The user's input is recorded
// under the "system" role and the assistant's reply is not recorded at
// all, so a multi-turn request carries only the user's prior inputs.
func (b *Bot) handleChat(chatID, userID int64, text string) {
	b.store.Append(userID, "system", text)

	model := b.store.Current(userID)
	history := b.store.History(userID)

	reply, err := b.ai.Complete(context.Background(), model, history)
	if err != nil {
		b.log.Error("completion failed", "user_id", userID, "model", model, "error", err)
		reply = fmt.Sprintf("An error occurred while contacting model %s. Please try again later.", model)
	} else {
		b.log.Info("completion reply", "user_id", userID, "model", model, "reply", reply)
	}

	for _, part := range splitMessage(reply, maxMessageLength) {
		b.send(chatID, part)
	}
}

func (b *Bot) send(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

func (b *Bot) sendWithKeyboard(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = modelKeyboard()
	if _, err := b.sender.Send(msg); err != nil {
		b.log.Error("failed to send message", "chat_id", chatID, "error", err)
	}
}

// modelKeyboard is the persistent three-button reply keyboard listing
// the selectable models.
func modelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	row := make([]tgbotapi.KeyboardButton, 0, len(session.Models))
	for _, m := range session.Models {
		row = append(row, tgbotapi.NewKeyboardButton(m))
	}
	keyboard := tgbotapi.NewReplyKeyboard(row)
	keyboard.OneTimeKeyboard = false
	return keyboard
}
