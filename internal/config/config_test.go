package config

import (
	"errors"
	"testing"
	"time"

	"agendabot/internal/models"
)

func setRequired(t *testing.T) {
	t.Helper()
	// Empty values count as unset, so ambient settings cannot leak in.
	for _, key := range []string{
		"TELEGRAM_PARSE_MODE", "CALENDAR_PROVIDER", "CALENDAR_ID", "TOKEN_FILE",
		"OAUTH_CALLBACK_PORT", "OAUTH_INTERACTIVE", "NOTIFY_AT", "TIMEZONE", "PORT",
		"LOG_LEVEL",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("TELEGRAM_TOKEN", "123:abc")
	t.Setenv("CHAT_ID", "42")
	t.Setenv("SCOPES", "https://www.googleapis.com/auth/calendar.readonly")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load(All)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Provider != ProviderGoogle {
		t.Fatalf("provider mismatch: %s", cfg.Provider)
	}
	if cfg.CalendarID != "primary" {
		t.Fatalf("calendar id mismatch: %s", cfg.CalendarID)
	}
	if cfg.NotifyHour != 6 || cfg.NotifyMinute != 0 {
		t.Fatalf("notify time mismatch: %02d:%02d", cfg.NotifyHour, cfg.NotifyMinute)
	}
	if cfg.Location != time.UTC {
		t.Fatalf("location mismatch: %v", cfg.Location)
	}
	if cfg.Port != 8000 || cfg.CallbackPort != 8080 {
		t.Fatalf("ports mismatch: %d %d", cfg.Port, cfg.CallbackPort)
	}
	if cfg.ParseMode != "MarkdownV2" {
		t.Fatalf("parse mode mismatch: %q", cfg.ParseMode)
	}
	if !cfg.InteractiveAuth {
		t.Fatalf("expected interactive auth by default")
	}
	if len(cfg.Scopes) != 1 {
		t.Fatalf("scopes mismatch: %v", cfg.Scopes)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SCOPES", "scope.a, scope.b")
	t.Setenv("NOTIFY_AT", "11:40")
	t.Setenv("TIMEZONE", "Asia/Bangkok")
	t.Setenv("PORT", "9090")
	t.Setenv("OAUTH_INTERACTIVE", "false")
	t.Setenv("TELEGRAM_PARSE_MODE", "plain")
	t.Setenv("CHAT_ID", "@my_channel")

	cfg, err := Load(All)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.NotifyHour != 11 || cfg.NotifyMinute != 40 {
		t.Fatalf("notify time mismatch: %02d:%02d", cfg.NotifyHour, cfg.NotifyMinute)
	}
	if cfg.Location.String() != "Asia/Bangkok" {
		t.Fatalf("location mismatch: %v", cfg.Location)
	}
	if cfg.Port != 9090 {
		t.Fatalf("port mismatch: %d", cfg.Port)
	}
	if cfg.InteractiveAuth {
		t.Fatalf("expected interactive auth disabled")
	}
	if cfg.ParseMode != "" {
		t.Fatalf("expected plain parse mode, got %q", cfg.ParseMode)
	}
	if len(cfg.Scopes) != 2 || cfg.Scopes[1] != "scope.b" {
		t.Fatalf("scopes mismatch: %v", cfg.Scopes)
	}
	if cfg.ChatID != "@my_channel" {
		t.Fatalf("chat id mismatch: %s", cfg.ChatID)
	}
}

func TestLoad_MissingRequired(t *testing.T) {
	tests := []struct {
		name  string
		unset string
	}{
		{"token", "TELEGRAM_TOKEN"},
		{"chat", "CHAT_ID"},
		{"scopes", "SCOPES"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.unset, "")

			_, err := Load(All)
			if !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"timezone", "TIMEZONE", "Mars/Olympus"},
		{"notify at", "NOTIFY_AT", "6am"},
		{"chat id", "CHAT_ID", "not-a-chat"},
		{"log level", "LOG_LEVEL", "verbose"},
		{"parse mode", "TELEGRAM_PARSE_MODE", "Markdown"},
		{"provider", "CALENDAR_PROVIDER", "outlook"},
		{"caldav without url", "CALENDAR_PROVIDER", "caldav"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.value)

			_, err := Load(All)
			if !errors.Is(err, models.ErrConfiguration) {
				t.Fatalf("expected configuration error, got %v", err)
			}
		})
	}
}

func TestLoad_CalDAVDoesNotNeedScopes(t *testing.T) {
	setRequired(t)
	t.Setenv("SCOPES", "")
	t.Setenv("CALENDAR_PROVIDER", "caldav")
	t.Setenv("CALDAV_URL", "https://caldav.example.com/")
	t.Setenv("CALDAV_USERNAME", "me")
	t.Setenv("CALDAV_CALENDAR", "Home")

	cfg, err := Load(All)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Provider != ProviderCalDAV || cfg.CalDAVCalendar != "Home" {
		t.Fatalf("caldav config mismatch: %+v", cfg)
	}
}

func TestLoad_LogLevelIsNormalized(t *testing.T) {
	setRequired(t)
	t.Setenv("LOG_LEVEL", " WARN ")

	cfg, err := Load(All)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level mismatch: %q", cfg.LogLevel)
	}
}

func TestLoad_CalendarOnlySkipsTelegram(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHAT_ID", "")

	cfg, err := Load(Calendar)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Scopes) != 1 {
		t.Fatalf("scopes mismatch: %v", cfg.Scopes)
	}

	if _, err := Load(All); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error with Telegram required, got %v", err)
	}
}

func TestLoad_ScheduleOnly(t *testing.T) {
	setRequired(t)
	t.Setenv("TELEGRAM_TOKEN", "")
	t.Setenv("CHAT_ID", "")
	t.Setenv("SCOPES", "")
	t.Setenv("NOTIFY_AT", "07:15")
	t.Setenv("TIMEZONE", "Asia/Bangkok")

	cfg, err := Load(0)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.NotifyHour != 7 || cfg.NotifyMinute != 15 || cfg.Location.String() != "Asia/Bangkok" {
		t.Fatalf("schedule mismatch: %02d:%02d %v", cfg.NotifyHour, cfg.NotifyMinute, cfg.Location)
	}

	t.Setenv("NOTIFY_AT", "25:00")
	if _, err := Load(0); !errors.Is(err, models.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestParseScopes_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", " ", "a,,b", "a b"} {
		if _, err := ParseScopes(raw); !errors.Is(err, models.ErrConfiguration) {
			t.Fatalf("expected error for %q, got %v", raw, err)
		}
	}
}

func TestParseTimeOfDay(t *testing.T) {
	t.Parallel()

	h, m, err := ParseTimeOfDay(" 23:05 ")
	if err != nil || h != 23 || m != 5 {
		t.Fatalf("unexpected result: %d %d %v", h, m, err)
	}
	if _, _, err := ParseTimeOfDay("24:00"); err == nil {
		t.Fatalf("expected error for 24:00")
	}
}
