package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	"agendabot/internal/agenda"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// MaxMessageLength is Telegram's limit for a single text message.
const MaxMessageLength = 4096

// Sender delivers agenda messages to one fixed chat.
type Sender struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// channel is set instead of chatID for @channel destinations.
	channel string
	logger  *slog.Logger
}

// NewSender authenticates against the Bot API. chat is a numeric chat id or
// an @channel name.
func NewSender(logger *slog.Logger, token, chat string) (*Sender, error) {
	return NewSenderWithClient(logger, token, chat, tgbotapi.APIEndpoint, &http.Client{})
}

// NewSenderWithClient is NewSender with an explicit endpoint format and HTTP client.
func NewSenderWithClient(logger *slog.Logger, token, chat, endpoint string, client tgbotapi.HTTPClient) (*Sender, error) {
	s := &Sender{logger: logger}
	if strings.HasPrefix(chat, "@") {
		s.channel = chat
	} else {
		id, err := strconv.ParseInt(chat, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chat id %q: %w", chat, err)
		}
		s.chatID = id
	}

	bot, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	s.bot = bot
	logger.Info("Authorized on Telegram.", "account", bot.Self.UserName)
	return s, nil
}

// Send delivers msg, splitting it on line boundaries when it exceeds the
// message length limit. The first failed part aborts the rest.
func (s *Sender) Send(ctx context.Context, msg agenda.Message) error {
	parts := Split(msg.Text, MaxMessageLength)
	for i, part := range parts {
		if err := ctx.Err(); err != nil {
			return err
		}
		cfg := s.newMessage(part)
		cfg.ParseMode = msg.ParseMode
		cfg.DisableWebPagePreview = true

		sent, err := s.bot.Send(cfg)
		if err != nil {
			return fmt.Errorf("failed to send message part %d/%d: %w", i+1, len(parts), err)
		}
		s.logger.Debug("Message delivered.", "messageID", sent.MessageID, "part", i+1, "parts", len(parts))
	}
	return nil
}

func (s *Sender) newMessage(text string) tgbotapi.MessageConfig {
	if s.channel != "" {
		return tgbotapi.NewMessageToChannel(s.channel, text)
	}
	return tgbotapi.NewMessage(s.chatID, text)
}

// Split breaks text into chunks of at most limit bytes, cutting only at line
// breaks. A single line longer than limit is cut at the limit.
func Split(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var (
		parts []string
		cur   strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			parts = append(parts, cur.String())
			cur.Reset()
		}
	}
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			flush()
			cut := limit
			// Do not cut inside a multi-byte rune.
			for cut > 0 && !isRuneStart(line[cut]) {
				cut--
			}
			// Keep a MarkdownV2 escape pair in one part.
			if cut > 1 && trailingBackslashes(line[:cut])%2 == 1 {
				cut--
			}
			if cut == 0 {
				_, cut = utf8.DecodeRuneInString(line)
			}
			parts = append(parts, line[:cut])
			line = line[cut:]
		}
		extra := len(line)
		if cur.Len() > 0 {
			extra++
		}
		if cur.Len()+extra > limit {
			flush()
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	flush()
	return parts
}

func trailingBackslashes(s string) int {
	n := 0
	for i := len(s) - 1; i >= 0 && s[i] == '\\'; i-- {
		n++
	}
	return n
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}
