package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"agendabot/internal/agenda"
	"agendabot/internal/caldav"
	"agendabot/internal/config"
	"agendabot/internal/google"
	"agendabot/internal/journal"
	"agendabot/internal/models"
	"agendabot/internal/notifier"
	"agendabot/internal/telegram"
	"agendabot/internal/web"

	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:   "agendabot",
		Usage:  "Send today's calendar agenda to Telegram every day.",
		Action: runLoop,
		Commands: []*cli.Command{
			runCommand(),
			onceCommand(),
			authCommand(),
			calendarsCommand(),
			nextCommand(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.RunContext(ctx, os.Args)
	stop()
	if err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func runCommand() *cli.Command {
	return &cli.Command{
		Name:   "run",
		Usage:  "Run the daily notification loop (default).",
		Action: runLoop,
	}
}

func onceCommand() *cli.Command {
	return &cli.Command{
		Name:  "once",
		Usage: "Send today's agenda now and exit.",
		Action: func(c *cli.Context) error {
			app, err := setup(c.Context)
			if err != nil {
				return err
			}
			defer app.close()

			app.logger.Info("Running a single notification cycle.")
			if err := app.notifier.RunOnce(c.Context, time.Now()); err != nil {
				return fmt.Errorf("notification cycle failed: %w", err)
			}
			return nil
		},
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authorize Google Calendar access and save the token.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(config.Calendar)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			if cfg.Provider != config.ProviderGoogle {
				return fmt.Errorf("%w: auth requires CALENDAR_PROVIDER=%s", models.ErrConfiguration, config.ProviderGoogle)
			}

			oauthConfig, err := google.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.CredentialsFile, cfg.Scopes)
			if err != nil {
				return err
			}
			store := google.NewFileTokenStore(cfg.TokenFile)
			authorizer := &google.LocalServerAuthorizer{Port: cfg.CallbackPort, Logger: logger, Out: os.Stdout}
			session := google.NewSession(logger, oauthConfig, store, authorizer)

			logger.Info("Starting Google authentication flow.")
			if _, err := session.Authorize(c.Context); err != nil {
				return err
			}
			logger.Info("Successfully authenticated and saved token.", "file", store.Path())
			return nil
		},
	}
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the Google calendars the account can read.",
		Action: func(c *cli.Context) error {
			cfg, err := config.Load(config.Calendar)
			if err != nil {
				return err
			}
			logger := setupLogger(cfg.LogLevel)
			if cfg.Provider != config.ProviderGoogle {
				return fmt.Errorf("%w: calendars requires CALENDAR_PROVIDER=%s", models.ErrConfiguration, config.ProviderGoogle)
			}

			client, err := newGoogleClient(c.Context, logger, cfg)
			if err != nil {
				return err
			}
			calendars, err := client.ListCalendars(c.Context)
			if err != nil {
				return err
			}
			for _, cal := range calendars {
				marker := ""
				if cal.Primary {
					marker = " (primary)"
				}
				fmt.Printf("%s\t%s%s\n", cal.ID, cal.Name, marker)
			}
			return nil
		},
	}
}

func nextCommand() *cli.Command {
	return &cli.Command{
		Name:  "next",
		Usage: "Print when the next notification will be sent.",
		Action: func(c *cli.Context) error {
			// Only the schedule settings matter here.
			cfg, err := config.Load(0)
			if err != nil {
				return err
			}
			schedule, err := notifier.NewSchedule(cfg.NotifyHour, cfg.NotifyMinute, cfg.Location)
			if err != nil {
				return err
			}
			now := time.Now()
			next := schedule.Next(now)
			fmt.Printf("%s (in %s)\n", next.Format(time.RFC3339), next.Sub(now).Round(time.Second))
			return nil
		},
	}
}

// runLoop starts the keep-alive server and blocks in the notifier loop until
// a signal arrives or authorization is lost.
func runLoop(c *cli.Context) error {
	app, err := setup(c.Context)
	if err != nil {
		return err
	}
	defer app.close()

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	server := web.NewServer(app.logger, app.history)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- server.Serve(ctx, fmt.Sprintf(":%d", app.cfg.Port))
	}()

	loopErr := app.notifier.Run(ctx)
	cancel()
	if err := <-serverDone; err != nil {
		app.logger.Error("HTTP server failed", "error", err)
		if loopErr == nil {
			loopErr = fmt.Errorf("http server: %w", err)
		}
	}
	return loopErr
}

type application struct {
	cfg      *config.Config
	logger   *slog.Logger
	notifier *notifier.Notifier
	history  web.History
	closers  []func() error
}

func (a *application) close() {
	for _, fn := range a.closers {
		if err := fn(); err != nil {
			a.logger.Error("Failed to close resource", "error", err)
		}
	}
}

// setup wires configuration, the event source, Telegram and the journal into
// a notifier.
func setup(ctx context.Context) (*application, error) {
	cfg, err := config.Load(config.All)
	if err != nil {
		return nil, err
	}
	logger := setupLogger(cfg.LogLevel)
	app := &application{cfg: cfg, logger: logger}

	source, err := newEventSource(ctx, logger, cfg)
	if err != nil {
		return nil, err
	}

	sender, err := telegram.NewSender(logger, cfg.TelegramToken, cfg.ChatID)
	if err != nil {
		return nil, err
	}

	schedule, err := notifier.NewSchedule(cfg.NotifyHour, cfg.NotifyMinute, cfg.Location)
	if err != nil {
		return nil, err
	}

	var opts []notifier.Option
	if cfg.HistoryDB != "" {
		store, err := journal.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		app.history = store
		app.closers = append(app.closers, store.Close)
		opts = append(opts, notifier.WithRecorder(store))
		logger.Info("Recording notification history.", "db", cfg.HistoryDB)
	}

	formatter := agenda.Formatter{ParseMode: cfg.ParseMode}
	app.notifier = notifier.New(logger, source, sender, formatter, schedule, opts...)
	return app, nil
}

func newEventSource(ctx context.Context, logger *slog.Logger, cfg *config.Config) (notifier.EventSource, error) {
	switch cfg.Provider {
	case config.ProviderCalDAV:
		return caldav.NewClient(ctx, logger, cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar, cfg.Location)
	case config.ProviderGoogle:
		return newGoogleClient(ctx, logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown calendar provider %q", models.ErrConfiguration, cfg.Provider)
	}
}

func newGoogleClient(ctx context.Context, logger *slog.Logger, cfg *config.Config) (*google.CalendarClient, error) {
	oauthConfig, err := google.OAuthConfig(cfg.ClientID, cfg.ClientSecret, cfg.CredentialsFile, cfg.Scopes)
	if err != nil {
		return nil, err
	}

	var authorizer google.Authorizer = google.HeadlessAuthorizer{}
	if cfg.InteractiveAuth {
		authorizer = &google.LocalServerAuthorizer{Port: cfg.CallbackPort, Logger: logger, Out: os.Stdout}
	}
	session := google.NewSession(logger, oauthConfig, google.NewFileTokenStore(cfg.TokenFile), authorizer)

	httpClient, err := session.Client(ctx)
	if err != nil {
		if errors.Is(err, models.ErrAuth) && !cfg.InteractiveAuth {
			logger.Error("No usable Google token; run the auth command on a machine with a browser", "file", cfg.TokenFile)
		}
		return nil, err
	}
	return google.NewClient(ctx, logger, httpClient, cfg.CalendarID, cfg.Location)
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	slog.SetDefault(logger)
	return logger
}
