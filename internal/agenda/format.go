package agenda

import (
	"fmt"
	"strings"
	"time"

	"agendabot/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const (
	// NoEventsText is sent verbatim when the day has no events.
	NoEventsText = "You have no events today."

	headerText   = "Your schedule for today:"
	headerPrefix = "🗓️ "
	untitled     = "(No title)"
	clockLayout  = "03:04 PM"
)

// startLayouts are tried in order when rendering an event's start timestamp.
var startLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

// Message is a rendered agenda ready for delivery.
// ParseMode is empty for plain text.
type Message struct {
	Text      string
	ParseMode string
}

// Formatter renders a day's events into a chat message.
type Formatter struct {
	// ParseMode selects the markup: "" for plain text,
	// tgbotapi.ModeMarkdownV2 or tgbotapi.ModeHTML.
	ParseMode string
}

// ValidParseMode reports whether the formatter supports mode.
func ValidParseMode(mode string) bool {
	switch mode {
	case "", tgbotapi.ModeMarkdownV2, tgbotapi.ModeHTML:
		return true
	}
	return false
}

// Format renders events in the order given. It never fails: a start value
// that cannot be parsed is emitted as it was received.
func (f Formatter) Format(events []models.Event) Message {
	if len(events) == 0 {
		return Message{Text: NoEventsText}
	}

	var b strings.Builder
	b.WriteString(headerPrefix)
	b.WriteString(f.bold(headerText))
	for _, ev := range events {
		summary := strings.TrimSpace(ev.Summary)
		if summary == "" {
			summary = untitled
		}
		fmt.Fprintf(&b, "\n• %s at %s", f.escape(summary), f.code(StartLabel(ev.Start)))
	}
	return Message{Text: b.String(), ParseMode: f.ParseMode}
}

// StartLabel renders a start boundary: a 12-hour clock time for timed events
// (in the timestamp's own offset), the raw date for all-day events, and the
// raw value when the timestamp is malformed.
func StartLabel(start models.EventStart) string {
	if start.DateTime == "" {
		return start.Date
	}
	for _, layout := range startLayouts {
		if t, err := time.Parse(layout, start.DateTime); err == nil {
			return t.Format(clockLayout)
		}
	}
	return start.DateTime
}

func (f Formatter) escape(s string) string {
	switch f.ParseMode {
	case "":
		return s
	case tgbotapi.ModeMarkdownV2:
		// EscapeText leaves backslashes alone, which lets a title like
		// `C:\*tmp*` open an entity that never closes.
		return markdownV2Escaper.Replace(s)
	default:
		return tgbotapi.EscapeText(f.ParseMode, s)
	}
}

func (f Formatter) bold(s string) string {
	switch f.ParseMode {
	case tgbotapi.ModeMarkdownV2:
		return "*" + f.escape(s) + "*"
	case tgbotapi.ModeHTML:
		return "<b>" + f.escape(s) + "</b>"
	default:
		return s
	}
}

// code wraps s in a monospace span. Inside MarkdownV2 code spans only
// backquote and backslash need escaping.
func (f Formatter) code(s string) string {
	switch f.ParseMode {
	case tgbotapi.ModeMarkdownV2:
		return "`" + codeEscaper.Replace(s) + "`"
	case tgbotapi.ModeHTML:
		return "<code>" + f.escape(s) + "</code>"
	default:
		return s
	}
}

var codeEscaper = strings.NewReplacer("\\", "\\\\", "`", "\\`")

// markdownV2Escaper escapes the backslash first, then every character
// MarkdownV2 reserves outside entities.
var markdownV2Escaper = strings.NewReplacer(
	"\\", "\\\\",
	"_", "\\_", "*", "\\*", "[", "\\[", "]", "\\]", "(", "\\(", ")", "\\)",
	"~", "\\~", "`", "\\`", ">", "\\>", "#", "\\#", "+", "\\+", "-", "\\-",
	"=", "\\=", "|", "\\|", "{", "\\{", "}", "\\}", ".", "\\.", "!", "\\!",
)
