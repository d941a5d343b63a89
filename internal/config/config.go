package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"agendabot/internal/agenda"
	"agendabot/internal/models"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Calendar providers.
const (
	ProviderGoogle = "google"
	ProviderCalDAV = "caldav"
)

// Config is the runtime configuration, sourced from the environment.
type Config struct {
	TelegramToken string
	ChatID        string
	ParseMode     string

	Provider        string
	Scopes          []string
	CalendarID      string
	CredentialsFile string
	TokenFile       string
	ClientID        string
	ClientSecret    string
	CallbackPort    int
	InteractiveAuth bool
	CalDAVURL       string
	CalDAVUsername  string
	CalDAVPassword  string
	CalDAVCalendar  string

	NotifyHour   int
	NotifyMinute int
	Location     *time.Location

	Port      int
	HistoryDB string
	LogLevel  string
}

// Section selects a group of settings that Load requires and validates.
// Schedule, listen port and log level are validated regardless.
type Section int

const (
	// Telegram covers TELEGRAM_TOKEN, CHAT_ID and TELEGRAM_PARSE_MODE.
	Telegram Section = 1 << iota
	// Calendar covers the provider and its credentials.
	Calendar

	All = Telegram | Calendar
)

// Load reads the optional .env file, binds the environment and validates the
// result. Settings outside sections are read as given but not required.
// Every failure wraps models.ErrConfiguration.
func Load(sections Section) (*Config, error) {
	// A missing .env is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	for _, key := range []string{
		"telegram_token", "chat_id", "telegram_parse_mode",
		"calendar_provider", "scopes", "calendar_id", "credentials_file", "token_file",
		"google_client_id", "google_client_secret", "oauth_callback_port", "oauth_interactive",
		"caldav_url", "caldav_username", "caldav_password", "caldav_calendar",
		"notify_at", "timezone", "port", "history_db", "log_level",
	} {
		_ = v.BindEnv(key, strings.ToUpper(key))
	}

	v.SetDefault("telegram_parse_mode", "MarkdownV2")
	v.SetDefault("calendar_provider", ProviderGoogle)
	v.SetDefault("calendar_id", "primary")
	v.SetDefault("credentials_file", "credentials.json")
	v.SetDefault("token_file", "token.json")
	v.SetDefault("oauth_callback_port", 8080)
	v.SetDefault("oauth_interactive", true)
	v.SetDefault("notify_at", "06:00")
	v.SetDefault("timezone", "UTC")
	v.SetDefault("port", 8000)
	v.SetDefault("history_db", "agenda.db")
	v.SetDefault("log_level", "info")

	cfg := &Config{
		TelegramToken:   strings.TrimSpace(v.GetString("telegram_token")),
		ChatID:          strings.TrimSpace(v.GetString("chat_id")),
		ParseMode:       strings.TrimSpace(v.GetString("telegram_parse_mode")),
		Provider:        strings.ToLower(strings.TrimSpace(v.GetString("calendar_provider"))),
		CalendarID:      strings.TrimSpace(v.GetString("calendar_id")),
		CredentialsFile: strings.TrimSpace(v.GetString("credentials_file")),
		TokenFile:       strings.TrimSpace(v.GetString("token_file")),
		ClientID:        strings.TrimSpace(v.GetString("google_client_id")),
		ClientSecret:    strings.TrimSpace(v.GetString("google_client_secret")),
		CallbackPort:    v.GetInt("oauth_callback_port"),
		InteractiveAuth: v.GetBool("oauth_interactive"),
		CalDAVURL:       strings.TrimSpace(v.GetString("caldav_url")),
		CalDAVUsername:  strings.TrimSpace(v.GetString("caldav_username")),
		CalDAVPassword:  v.GetString("caldav_password"),
		CalDAVCalendar:  strings.TrimSpace(v.GetString("caldav_calendar")),
		Port:            v.GetInt("port"),
		HistoryDB:       strings.TrimSpace(v.GetString("history_db")),
		LogLevel:        strings.ToLower(strings.TrimSpace(v.GetString("log_level"))),
	}

	if sections&Telegram != 0 {
		if err := cfg.validateTelegram(); err != nil {
			return nil, err
		}
	}
	if sections&Calendar != 0 {
		if err := cfg.validateCalendar(v.GetString("scopes")); err != nil {
			return nil, err
		}
	}

	hour, minute, err := ParseTimeOfDay(v.GetString("notify_at"))
	if err != nil {
		return nil, err
	}
	cfg.NotifyHour, cfg.NotifyMinute = hour, minute

	tzName := strings.TrimSpace(v.GetString("timezone"))
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid timezone '%s': %w", models.ErrConfiguration, tzName, err)
	}
	cfg.Location = loc

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("%w: invalid PORT %d", models.ErrConfiguration, cfg.Port)
	}
	if cfg.CallbackPort <= 0 || cfg.CallbackPort > 65535 {
		return nil, fmt.Errorf("%w: invalid OAUTH_CALLBACK_PORT %d", models.ErrConfiguration, cfg.CallbackPort)
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("%w: unsupported LOG_LEVEL %q, want debug, info, warn or error", models.ErrConfiguration, cfg.LogLevel)
	}

	return cfg, nil
}

func (cfg *Config) validateTelegram() error {
	if cfg.TelegramToken == "" {
		return fmt.Errorf("%w: TELEGRAM_TOKEN environment variable not set", models.ErrConfiguration)
	}
	if cfg.ChatID == "" {
		return fmt.Errorf("%w: CHAT_ID environment variable not set", models.ErrConfiguration)
	}
	if !validChatID(cfg.ChatID) {
		return fmt.Errorf("%w: CHAT_ID %q is neither a numeric id nor an @channel name", models.ErrConfiguration, cfg.ChatID)
	}
	if strings.EqualFold(cfg.ParseMode, "plain") {
		cfg.ParseMode = ""
	}
	if !agenda.ValidParseMode(cfg.ParseMode) {
		return fmt.Errorf("%w: unsupported TELEGRAM_PARSE_MODE %q", models.ErrConfiguration, cfg.ParseMode)
	}
	return nil
}

func (cfg *Config) validateCalendar(rawScopes string) error {
	switch cfg.Provider {
	case ProviderGoogle:
		scopes, err := ParseScopes(rawScopes)
		if err != nil {
			return err
		}
		cfg.Scopes = scopes
		if cfg.CalendarID == "" {
			cfg.CalendarID = "primary"
		}
		if cfg.TokenFile == "" {
			return fmt.Errorf("%w: TOKEN_FILE is empty", models.ErrConfiguration)
		}
	case ProviderCalDAV:
		if cfg.CalDAVURL == "" || cfg.CalDAVUsername == "" || cfg.CalDAVCalendar == "" {
			return fmt.Errorf("%w: CALDAV_URL, CALDAV_USERNAME and CALDAV_CALENDAR are required for the caldav provider", models.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown CALENDAR_PROVIDER %q", models.ErrConfiguration, cfg.Provider)
	}
	return nil
}

// ParseScopes splits a comma-separated scope list. An empty list, or one with
// empty or whitespace-containing entries, is a configuration error.
func ParseScopes(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, fmt.Errorf("%w: SCOPES environment variable not set", models.ErrConfiguration)
	}
	var scopes []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" || strings.ContainsAny(s, " \t") {
			return nil, fmt.Errorf("%w: malformed SCOPES value %q", models.ErrConfiguration, raw)
		}
		scopes = append(scopes, s)
	}
	return scopes, nil
}

// ParseTimeOfDay parses an "HH:MM" 24-hour time.
func ParseTimeOfDay(raw string) (hour, minute int, err error) {
	t, perr := time.Parse("15:04", strings.TrimSpace(raw))
	if perr != nil {
		return 0, 0, fmt.Errorf("%w: NOTIFY_AT %q is not an HH:MM time", models.ErrConfiguration, raw)
	}
	return t.Hour(), t.Minute(), nil
}

func validChatID(id string) bool {
	if strings.HasPrefix(id, "@") {
		return len(id) > 1
	}
	_, err := strconv.ParseInt(id, 10, 64)
	return err == nil
}
