package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"calmirror/internal/app"
	"calmirror/internal/config"
	"calmirror/internal/google"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cliApp := &cli.App{
		Name:  "calmirror",
		Usage: "Mirror your own attendance onto target attendees of your Google Calendar events.",
		Commands: []*cli.Command{
			authCommand(),
			syncCommand(),
			calendarsCommand(),
			cursorCommand(),
		},
	}

	if err := cliApp.RunContext(ctx, os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with the primary Google account to get an API token.",
		Action: func(c *cli.Context) error {
			settings, err := config.LoadSettings()
			if err != nil {
				return err
			}
			logger := app.SetupLogger(settings.LogLevel)
			logger.Info("Starting Google authentication flow.")

			oauthConfig, err := google.GetOAuthConfigForAuthFlow(settings.GoogleClientID, settings.GoogleClientSecret)
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := oauthConfig.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(c.Context, oauthConfig, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			tokenFile := settings.TokenFile()
			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Run the attendee synchronization.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "dry-run", Usage: "Log what would be updated without making changes."},
			&cli.StringFlag{Name: "schedule", EnvVars: []string{"SYNC_SCHEDULE"}, Usage: "Run on a cron schedule (e.g. \"@every 5m\") instead of once."},
			&cli.StringFlag{Name: "config", Usage: "YAML file with TARGET_EMAILS, overriding the environment."},
		},
		Action: func(c *cli.Context) error {
			a, err := build(c)
			if err != nil {
				return err
			}
			defer a.Close()

			if c.Bool("dry-run") {
				a.Logger.Info("Performing a dry run. No changes will be made.")
			}

			schedule := c.String("schedule")
			if schedule == "" {
				a.Logger.Info("Running a single sync cycle.")
				if _, err := a.Syncer.Sync(c.Context); err != nil {
					return fmt.Errorf("single sync cycle failed: %w", err)
				}
				return nil
			}

			return runScheduled(c.Context, a, schedule)
		},
	}
}

// runScheduled runs sync cycles on the cron schedule until ctx is done.
// A run that comes due while the previous one is still going is skipped.
func runScheduled(ctx context.Context, a *app.App, schedule string) error {
	logger := cronLogger{a.Logger}
	scheduler := cron.New(cron.WithLogger(logger), cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))

	_, err := scheduler.AddFunc(schedule, func() {
		if _, err := a.Syncer.Sync(ctx); err != nil {
			a.Logger.Error("Sync cycle failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	a.Logger.Info("Starting scheduler.", "schedule", schedule)
	scheduler.Start()
	<-ctx.Done()

	<-scheduler.Stop().Done()
	a.Logger.Info("Scheduler stopped.")
	return nil
}

func calendarsCommand() *cli.Command {
	return &cli.Command{
		Name:  "calendars",
		Usage: "List the calendars of the authenticated account.",
		Action: func(c *cli.Context) error {
			a, err := build(c)
			if err != nil {
				return err
			}
			defer a.Close()

			ids, err := a.Calendar.Calendars(c.Context)
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Println(id)
			}
			return nil
		},
	}
}

func cursorCommand() *cli.Command {
	return &cli.Command{
		Name:  "cursor",
		Usage: "Inspect or reset the stored sync token.",
		Subcommands: []*cli.Command{
			{
				Name:  "show",
				Usage: "Print the stored sync token.",
				Action: func(c *cli.Context) error {
					a, err := build(c)
					if err != nil {
						return err
					}
					defer a.Close()

					token, ok, err := a.Syncer.Cursor(c.Context)
					if err != nil {
						return err
					}
					if !ok {
						fmt.Println("no sync token stored; the next sync only establishes one")
						return nil
					}
					fmt.Println(token)
					return nil
				},
			},
			{
				Name:  "reset",
				Usage: "Forget the stored sync token.",
				Action: func(c *cli.Context) error {
					a, err := build(c)
					if err != nil {
						return err
					}
					defer a.Close()

					if err := a.Syncer.Reset(c.Context); err != nil {
						return err
					}
					a.Logger.Info("Sync token cleared.")
					return nil
				},
			},
		},
	}
}

func build(c *cli.Context) (*app.App, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, err
	}
	logger := app.SetupLogger(settings.LogLevel)

	return app.New(c.Context, logger, settings, app.Options{
		ConfigFile: c.String("config"),
		DryRun:     c.Bool("dry-run"),
	})
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct {
	*slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.Logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.Logger.Error(msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
