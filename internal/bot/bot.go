// Package bot is the chat front-end: it receives voice messages over the
// Telegram long-poll API, asks the sender which language was spoken, and
// replies with the transcribed digit groups.
package bot

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/ovozlabs/ovozd/internal/recognizer"
	"github.com/ovozlabs/ovozd/internal/transcriptstore"
)

const (
	greeting = "Salom! Menga Uzbek, Rus tillarida ovozli xabar yuboring. Men uni matn qilib beraman.\n" +
		"Здравствуйте! Отправьте мне голосовое сообщение на узбекском или русском языке. Я преобразую его в текст."
	msgFileTooLarge = "Fayl hajmi juda katta."
	msgChooseLang   = "Tilni tanlang:"
	msgUnrecognized = "Matnni tanib bo'lmadi."
	callbackUzbek   = "uzbek"
	callbackRussian = "russian"
)

// platform is the narrow slice of the Telegram API the bot needs. The real
// *tgbotapi.BotAPI satisfies it.
type platform interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetFileDirectURL(fileID string) (string, error)
}

// Transcriber runs one recording through the pipeline.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, ext string, lang recognizer.Language) recognizer.Result
}

// Recorder persists successful transcriptions.
type Recorder interface {
	Save(ctx context.Context, rec transcriptstore.Record) error
}

// Bot translates Telegram updates into pipeline invocations. Voice audio is
// held per chat between the upload and the language choice.
type Bot struct {
	api         platform
	transcriber Transcriber
	recorder    Recorder
	log         *slog.Logger
	maxBytes    int64
	download    func(ctx context.Context, url string) ([]byte, error)

	mu      sync.Mutex
	pending map[int64]pendingVoice
	now     func() time.Time
}

// pendingTTL bounds how long a downloaded voice message waits for a
// language choice before it is discarded.
const pendingTTL = 10 * time.Minute

type pendingVoice struct {
	audio []byte
	at    time.Time
}

// New wires the chat front-end. recorder may be nil.
func New(api platform, t Transcriber, recorder Recorder, maxBytes int64, log *slog.Logger) *Bot {
	return &Bot{
		api:         api,
		transcriber: t,
		recorder:    recorder,
		log:         log,
		maxBytes:    maxBytes,
		download:    downloadFile,
		pending:     make(map[int64]pendingVoice),
		now:         time.Now,
	}
}

// RegisterCommands publishes the bot's command list to the platform.
func (b *Bot) RegisterCommands() error {
	cmd := tgbotapi.NewSetMyCommands(tgbotapi.BotCommand{
		Command:     "start",
		Description: "Botni ishga tushirish",
	})
	if _, err := b.api.Request(cmd); err != nil {
		return fmt.Errorf("set bot commands: %w", err)
	}
	return nil
}

// Run consumes updates until ctx is cancelled. Each update is handled on its
// own goroutine so one slow recognition does not stall other chats.
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	var wg sync.WaitGroup
	for {
		select {
		case <-ctx.Done():
			wg.Wait()
			return
		case update, ok := <-updates:
			if !ok {
				wg.Wait()
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}

// HandleUpdate routes one Telegram update.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.IsCommand() && update.Message.Command() == "start":
		b.reply(update.Message.Chat.ID, greeting)
	case update.Message != nil && update.Message.Voice != nil:
		b.handleVoice(ctx, update.Message)
	case update.CallbackQuery != nil:
		b.handleLanguageChoice(ctx, update.CallbackQuery)
	}
}

func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	voice := msg.Voice
	if int64(voice.FileSize) >= b.maxBytes {
		b.reply(msg.Chat.ID, msgFileTooLarge)
		return
	}

	url, err := b.api.GetFileDirectURL(voice.FileID)
	if err != nil {
		b.log.Error("resolve voice file", slog.String("error", err.Error()))
		b.reply(msg.Chat.ID, msgUnrecognized)
		return
	}
	audio, err := b.download(ctx, url)
	if err != nil {
		b.log.Error("download voice file", slog.String("error", err.Error()))
		b.reply(msg.Chat.ID, msgUnrecognized)
		return
	}

	now := b.now()
	b.mu.Lock()
	for id, p := range b.pending {
		if now.Sub(p.at) > pendingTTL {
			delete(b.pending, id)
		}
	}
	b.pending[msg.Chat.ID] = pendingVoice{audio: audio, at: now}
	b.mu.Unlock()

	keyboard := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇺🇿 Oʻzbekcha", callbackUzbek),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🇷🇺 Русский", callbackRussian),
		),
	)
	prompt := tgbotapi.NewMessage(msg.Chat.ID, msgChooseLang)
	prompt.ReplyMarkup = keyboard
	if _, err := b.api.Send(prompt); err != nil {
		b.log.Error("send language prompt", slog.String("error", err.Error()))
	}
}

func (b *Bot) handleLanguageChoice(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
			b.log.Warn("answer callback", slog.String("error", err.Error()))
		}
	}()

	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID

	lang, err := recognizer.ParseName(cb.Data)
	if err != nil {
		b.log.Warn("unexpected callback payload", slog.String("data", cb.Data))
		return
	}

	b.mu.Lock()
	p, ok := b.pending[chatID]
	delete(b.pending, chatID)
	b.mu.Unlock()
	if !ok || b.now().Sub(p.at) > pendingTTL {
		b.reply(chatID, msgUnrecognized)
		return
	}
	audio := p.audio

	// Telegram voice notes are OGG/Opus.
	res := b.transcriber.Transcribe(ctx, audio, ".ogg", lang)
	if res.Status != recognizer.StatusOK {
		b.reply(chatID, msgUnrecognized)
		return
	}

	b.reply(chatID, res.Text)
	if b.recorder != nil {
		err := b.recorder.Save(ctx, transcriptstore.Record{
			UserID:   cb.From.ID,
			Username: cb.From.UserName,
			Language: lang.Locale(),
			Text:     res.Text,
		})
		if err != nil {
			b.log.Error("failed to persist transcription", slog.String("error", err.Error()))
		}
	}
}

func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.log.Error("send message", slog.Int64("chat_id", chatID), slog.String("error", err.Error()))
	}
}

func downloadFile(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("voice download returned %s", resp.Status)
	}
	return io.ReadAll(resp.Body)
}
