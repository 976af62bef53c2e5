package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/require"

	"github.com/kan140979/Proleum-Pro-Bot/internal/ai"
	"github.com/kan140979/Proleum-Pro-Bot/internal/session"
)

type fakeSender struct {
	sent []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) texts() []string {
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

type fakeCompleter struct {
	reply string
	err   error

	gotModel   string
	gotHistory []ai.Message

	imageURL    string
	imageErr    error
	imagePrompt string
}

func (f *fakeCompleter) Complete(_ context.Context, model string, history []ai.Message) (string, error) {
	f.gotModel = model
	f.gotHistory = history
	return f.reply, f.err
}

func (f *fakeCompleter) GenerateImage(_ context.Context, prompt string) (string, error) {
	f.imagePrompt = prompt
	return f.imageURL, f.imageErr
}

type fakeRegistry struct {
	existing  map[int64]bool
	registers int
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{existing: make(map[int64]bool)}
}

func (f *fakeRegistry) Exists(_ context.Context, telegramID int64) (bool, error) {
	return f.existing[telegramID], nil
}

func (f *fakeRegistry) Register(_ context.Context, telegramID int64, _ *string, _ string) error {
	f.existing[telegramID] = true
	f.registers++
	return nil
}

func newTestBot(completer Completer, users Registry) (*Bot, *fakeSender) {
	f := &fakeSender{}
	b := &Bot{
		sender: f,
		store:  session.NewStore(),
		ai:     completer,
		users:  users,
		log:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	return b, f
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: userID, UserName: "tester"},
		Chat:      &tgbotapi.Chat{ID: userID},
		Text:      text,
	}
}

func TestStartSendsWelcomeWithModelKeyboard(t *testing.T) {
	b, f := newTestBot(&fakeCompleter{}, nil)

	b.handleMessage(textMessage(1, "/start"))

	require.Len(t, f.sent, 1)
	msg, ok := f.sent[0].(tgbotapi.MessageConfig)
	require.True(t, ok)
	require.Contains(t, msg.Text, "Choose the ChatGPT model")

	keyboard, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	require.Len(t, keyboard.Keyboard, 1)
	require.Len(t, keyboard.Keyboard[0], 3)
	for i, btn := range keyboard.Keyboard[0] {
		require.Equal(t, session.Models[i], btn.Text)
	}
}

func TestStartRegistersUserOnlyOnce(t *testing.T) {
	users := newFakeRegistry()
	b, _ := newTestBot(&fakeCompleter{}, users)

	b.handleMessage(textMessage(1, "/start"))
	b.handleMessage(textMessage(1, "/start"))

	require.Equal(t, 1, users.registers)
	require.True(t, users.existing[1])
}

func TestModelSelectionConfirms(t *testing.T) {
	b, f := newTestBot(&fakeCompleter{}, nil)

	b.handleMessage(textMessage(1, "gpt-4o"))

	require.Equal(t, "gpt-4o", b.store.Current(1))
	require.Equal(t, []string{"You selected model gpt-4o. You can now start asking questions."}, f.texts())
}

func TestChatUsesHistoryAndSelectedModel(t *testing.T) {
	completer := &fakeCompleter{reply: "hi there"}
	b, f := newTestBot(completer, nil)

	b.handleMessage(textMessage(1, "gpt-4o"))
	b.handleMessage(textMessage(1, "hello"))

	require.Equal(t, "gpt-4o", completer.gotModel)
	require.Equal(t, []ai.Message{{Role: "system", Content: "hello"}}, completer.gotHistory)
	require.Equal(t, "hi there", f.texts()[len(f.texts())-1])
}

func TestChatKeepsOnlyUserTurns(t *testing.T) {
	completer := &fakeCompleter{reply: "first reply"}
	b, _ := newTestBot(completer, nil)

	b.handleMessage(textMessage(1, "one"))
	b.handleMessage(textMessage(1, "two"))

	// the assistant reply is never appended; every turn is tagged "system"
	require.Equal(t, []ai.Message{
		{Role: "system", Content: "one"},
		{Role: "system", Content: "two"},
	}, completer.gotHistory)
}

func TestChatFailureSendsApology(t *testing.T) {
	completer := &fakeCompleter{err: fmt.Errorf("upstream down")}
	b, f := newTestBot(completer, nil)

	b.handleMessage(textMessage(1, "hello"))

	require.Equal(t,
		[]string{"An error occurred while contacting model gpt-3.5-turbo-1106. Please try again later."},
		f.texts())

	// the failed turn still consumes context
	require.Len(t, b.store.History(1), 1)
}

func TestLongReplyIsChunked(t *testing.T) {
	reply := strings.Repeat("z", 2*maxMessageLength+10)
	b, f := newTestBot(&fakeCompleter{reply: reply}, nil)

	b.handleMessage(textMessage(1, "hello"))

	texts := f.texts()
	require.Len(t, texts, 3)
	require.Equal(t, reply, strings.Join(texts, ""))
	for _, part := range texts {
		require.LessOrEqual(t, len(part), maxMessageLength)
	}
}

func TestExitClearsSession(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	b, f := newTestBot(completer, nil)

	b.handleMessage(textMessage(1, "hello"))
	b.handleMessage(textMessage(1, "ExIt"))

	require.Contains(t, f.texts(), "Chat ended. Goodbye!")
	require.Nil(t, b.store.History(1))

	// the next message starts a fresh history
	b.handleMessage(textMessage(1, "hello again"))
	require.Equal(t, []ai.Message{{Role: "system", Content: "hello again"}}, completer.gotHistory)
}

func TestExitWithoutSessionIsHarmless(t *testing.T) {
	b, f := newTestBot(&fakeCompleter{}, nil)

	require.NotPanics(t, func() {
		b.handleMessage(textMessage(1, "exit"))
	})
	require.Equal(t, []string{"Chat ended. Goodbye!"}, f.texts())
}

func TestChangeModelResendsKeyboard(t *testing.T) {
	b, f := newTestBot(&fakeCompleter{}, nil)

	b.handleMessage(textMessage(1, "сменить модель"))

	require.Len(t, f.sent, 1)
	msg := f.sent[0].(tgbotapi.MessageConfig)
	require.Equal(t, "Please choose a new model:", msg.Text)
	_, ok := msg.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
}

func TestGenerateImageSendsPhoto(t *testing.T) {
	completer := &fakeCompleter{imageURL: "https://example.com/img.png"}
	b, f := newTestBot(completer, newFakeRegistry())

	b.handleMessage(textMessage(1, "/generate_image a red fox"))

	require.Equal(t, "a red fox", completer.imagePrompt)
	require.Len(t, f.sent, 2)

	wait := f.sent[0].(tgbotapi.MessageConfig)
	require.Contains(t, wait.Text, "Please wait")

	photo, ok := f.sent[1].(tgbotapi.PhotoConfig)
	require.True(t, ok)
	require.Equal(t, tgbotapi.FileURL("https://example.com/img.png"), photo.File)
}

func TestGenerateImageFailure(t *testing.T) {
	completer := &fakeCompleter{imageErr: fmt.Errorf("quota exceeded")}
	b, f := newTestBot(completer, newFakeRegistry())

	b.handleMessage(textMessage(1, "/generate_image a red fox"))

	texts := f.texts()
	require.Len(t, texts, 2)
	require.Equal(t, "An error occurred while generating the image. Please try again.", texts[1])
}

func TestGenerateImageDisabledWithoutRegistry(t *testing.T) {
	completer := &fakeCompleter{reply: "just chat"}
	b, _ := newTestBot(completer, nil)

	b.handleMessage(textMessage(1, "/generate_image a red fox"))

	// without a database the command is an ordinary conversation turn
	require.Equal(t, []ai.Message{{Role: "system", Content: "/generate_image a red fox"}}, completer.gotHistory)
}

func TestNonTextUpdatesIgnored(t *testing.T) {
	b, f := newTestBot(&fakeCompleter{}, nil)

	b.handleUpdate(tgbotapi.Update{})
	b.handleUpdate(tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: 1},
		Chat: &tgbotapi.Chat{ID: 1},
	}})

	require.Empty(t, f.sent)
}

// scriptedFetcher serves one batch of updates, then fails every
// subsequent poll.
type scriptedFetcher struct {
	calls   int
	updates []tgbotapi.Update
	err     error
	offsets []int
}

func (f *scriptedFetcher) GetUpdates(cfg tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
	f.offsets = append(f.offsets, cfg.Offset)
	f.calls++
	if f.calls == 1 {
		return f.updates, nil
	}
	return nil, f.err
}

func TestRunSurfacesTransportError(t *testing.T) {
	completer := &fakeCompleter{reply: "ok"}
	b, f := newTestBot(completer, nil)
	fetcher := &scriptedFetcher{
		updates: []tgbotapi.Update{{UpdateID: 7, Message: textMessage(1, "hello")}},
		err:     fmt.Errorf("telegram unreachable"),
	}
	b.fetcher = fetcher

	err := b.Run()
	require.ErrorContains(t, err, "telegram unreachable")

	// the batch preceding the failure was fully handled
	require.Equal(t, []ai.Message{{Role: "system", Content: "hello"}}, completer.gotHistory)
	require.Equal(t, []string{"ok"}, f.texts())

	// the handled update was confirmed before the failing poll
	require.Equal(t, []int{0, 8}, fetcher.offsets)

	// re-entering Run resumes from the stored offset
	_ = b.Run()
	require.Equal(t, []int{0, 8, 8}, fetcher.offsets)
}

type panickyCompleter struct {
	fakeCompleter
}

func (p *panickyCompleter) Complete(context.Context, string, []ai.Message) (string, error) {
	panic("handler exploded")
}

func TestRunRecoversHandlerPanic(t *testing.T) {
	b, _ := newTestBot(&panickyCompleter{}, nil)
	b.fetcher = &scriptedFetcher{
		updates: []tgbotapi.Update{{UpdateID: 1, Message: textMessage(1, "hello")}},
	}

	err := b.Run()
	require.ErrorContains(t, err, "panic in update loop")
}

// Full walkthrough of the relay: start, pick a model, chat, exit, chat
// again with a fresh session.
func TestEndToEndScenario(t *testing.T) {
	completer := &fakeCompleter{reply: "nice to meet you"}
	users := newFakeRegistry()
	b, f := newTestBot(completer, users)

	b.handleMessage(textMessage(9, "/start"))
	require.Equal(t, 1, users.registers)
	welcome := f.sent[0].(tgbotapi.MessageConfig)
	require.Contains(t, welcome.Text, "Choose the ChatGPT model")

	b.handleMessage(textMessage(9, "gpt-4o"))
	require.Contains(t, f.texts(), "You selected model gpt-4o. You can now start asking questions.")

	b.handleMessage(textMessage(9, "hello"))
	require.Equal(t, "gpt-4o", completer.gotModel)
	require.Equal(t, []ai.Message{{Role: "system", Content: "hello"}}, completer.gotHistory)
	require.Equal(t, "nice to meet you", f.texts()[len(f.texts())-1])

	b.handleMessage(textMessage(9, "exit"))
	require.Nil(t, b.store.History(9))

	b.handleMessage(textMessage(9, "hello"))
	require.Equal(t, []ai.Message{{Role: "system", Content: "hello"}}, completer.gotHistory)
	require.Equal(t, "gpt-4o", completer.gotModel, "model selection survives exit")
}
