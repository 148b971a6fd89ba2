package main

import (
	"context"
	"crush-chat/attachment"
	"crush-chat/auth"
	"crush-chat/crush"
	"crush-chat/internal"
	"crush-chat/observability"
	"crush-chat/recording"
	"crush-chat/repositories"
	"crush-chat/services"
	"crush-chat/store"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "crush-chat",
		Usage: "Keep a private list of crushes and chat with them from the terminal",
		Commands: []*cli.Command{
			chatCommand,
			inboxCommand,
			crushesCommand,
		},
		DefaultCommand: chatCommand.Name,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

var chatCommand = &cli.Command{
	Name:  "chat",
	Usage: "Open the interactive client",
	Action: func(c *cli.Context) error {
		return withApplication(c.Context, func(ctx context.Context, app *application) error {
			return newREPL(app, os.Stdin, os.Stdout).Run(ctx)
		})
	},
}

var inboxCommand = &cli.Command{
	Name:  "inbox",
	Usage: "List stored conversations",
	Action: func(c *cli.Context) error {
		return withApplication(c.Context, func(ctx context.Context, app *application) error {
			return newREPL(app, os.Stdin, os.Stdout).Exec(ctx, "/inbox")
		})
	},
}

var crushesCommand = &cli.Command{
	Name:  "crushes",
	Usage: "Manage the crush list",
	Subcommands: []*cli.Command{
		{
			Name:  "list",
			Usage: "Print every crush",
			Action: func(c *cli.Context) error {
				return withApplication(c.Context, func(ctx context.Context, app *application) error {
					return newREPL(app, os.Stdin, os.Stdout).Exec(ctx, "/crushes")
				})
			},
		},
		{
			Name:      "add",
			Usage:     "Add a crush by handle or profile URL",
			ArgsUsage: "HANDLE|URL",
			Action: func(c *cli.Context) error {
				if c.NArg() == 0 {
					return fmt.Errorf("you must specify a handle or a profile URL")
				}
				return withApplication(c.Context, func(ctx context.Context, app *application) error {
					return newREPL(app, os.Stdin, os.Stdout).Exec(ctx, "/crush add "+c.Args().First())
				})
			},
		},
		{
			Name:      "remove",
			Usage:     "Remove a crush by id",
			ArgsUsage: "ID",
			Action: func(c *cli.Context) error {
				if c.NArg() == 0 {
					return fmt.Errorf("you must specify a crush id")
				}
				return withApplication(c.Context, func(ctx context.Context, app *application) error {
					return newREPL(app, os.Stdin, os.Stdout).Exec(ctx, "/crush rm "+c.Args().First())
				})
			},
		},
	},
}

type application struct {
	config   internal.Config
	log      *slog.Logger
	userID   string
	monitor  *observability.MonitoringManager
	identity *auth.TokenIdentityProvider
	crushes  *crush.Registry
	chat     *services.ChatService
}

// withApplication wires every component, runs fn and releases the database.
func withApplication(parent context.Context, fn func(ctx context.Context, app *application) error) error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config internal.Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Database (BadgerDB)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Debug("Closing BadgerDB...")
		_ = db.Close()
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 3. Identity
	issuer := auth.NewTokenIssuer(config.JWTSecret, config.AuthTokenDuration)
	token, err := issuer.GenerateToken(config.UserID)
	if err != nil {
		return fmt.Errorf("session token: %w", err)
	}
	profiles := repositories.NewProfileRepository(db)
	identity := auth.NewTokenIdentityProvider(log, issuer, profiles, token)
	if config.DisplayName != "" {
		if err := identity.UpdateProfile(ctx, config.DisplayName, ""); err != nil {
			return fmt.Errorf("profile update failed: %w", err)
		}
	}

	// 4. Chat core
	registry := prometheus.NewRegistry()
	monitor := observability.NewMonitoringManager(log, registry)
	messageStore := store.NewMessageStore(log,
		repositories.NewMessageRepository(db, log, config.LimitMessages),
		repositories.NewConversationRepository(db))
	if err := messageStore.Restore(); err != nil {
		return fmt.Errorf("conversations loading failed: %w", err)
	}
	newBackend := func() recording.Backend {
		return recording.NewFileBackend(log, config.RecordingsDir, config.MicrophoneAllowed)
	}
	chat := services.NewChatService(log, messageStore, attachment.NewIngestor(log), newBackend, monitor, config.PreviewLength)

	crushes := crush.NewRegistry(log, identity, monitor, config.ProfileHost)
	if err := crushes.Load(ctx); err != nil {
		return fmt.Errorf("crushes loading failed: %w", err)
	}

	// 5. Debug server
	if config.DebugPort > 0 {
		handler := internal.NewDebugHandler(log, db, registry, func() map[string]any {
			stats := monitor.GetLatest()
			return map[string]any{
				"Sent":     stats.MessagesSent,
				"Received": stats.MessagesReceived,
				"Crushes":  stats.Crushes,
			}
		})
		internal.StartDebugServer(ctx, log, config.DebugPort, handler)
	}

	return fn(ctx, &application{
		config:   config,
		log:      log,
		userID:   config.UserID,
		monitor:  monitor,
		identity: identity,
		crushes:  crushes,
		chat:     chat,
	})
}
