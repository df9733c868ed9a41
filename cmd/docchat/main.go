package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"docchat/api"
	"docchat/internal/log"
	"docchat/state"
	"docchat/stream"
)

func main() {
	app := &cli.Command{
		Name:   "docchat",
		Usage:  "Chat with your documents through a docchat backend",
		Flags:  defineFlags(),
		Action: runCommand,
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func defineFlags() []cli.Flag {
	return []cli.Flag{
		// Backend configuration
		&cli.StringFlag{
			Name:  "server",
			Usage: "Backend base URL",
			Value: defaultServer,
		},
		&cli.DurationFlag{
			Name:  "timeout",
			Usage: "Request timeout for non-streaming calls",
			Value: defaultTimeout,
		},

		// Session management
		&cli.StringFlag{
			Name:    "session",
			Aliases: []string{"c"},
			Usage:   "Session ID to chat in",
		},
		&cli.BoolFlag{
			Name:    "last",
			Aliases: []string{"L"},
			Usage:   "Reuse the last active session",
		},
		&cli.BoolFlag{
			Name:  "new",
			Usage: "Create a new session (optionally bound to --document)",
		},
		&cli.StringFlag{
			Name:  "document",
			Usage: "Document ID to bind a new session to",
		},
		&cli.BoolFlag{
			Name:  "list",
			Usage: "List sessions and exit",
		},
		&cli.StringFlag{
			Name:  "delete",
			Usage: "Delete the given session and exit",
		},
		&cli.BoolFlag{
			Name:  "stats",
			Usage: "Show usage stats for the session and exit",
		},
		&cli.IntFlag{
			Name:  "history",
			Usage: "Show the last N messages before chatting",
		},

		// Document management
		&cli.StringSliceFlag{
			Name:    "upload",
			Aliases: []string{"f"},
			Usage:   "File to upload for processing (repeatable)",
		},
		&cli.StringFlag{
			Name:  "ingest-url",
			Usage: "URL to fetch and process as a document",
		},
		&cli.BoolFlag{
			Name:  "documents",
			Usage: "List documents and exit",
		},
		&cli.BoolFlag{
			Name:  "no-wait",
			Usage: "Queue uploads without waiting for processing",
		},

		// Input
		&cli.StringFlag{
			Name:    "prompt",
			Aliases: []string{"p"},
			Usage:   "Message to send (interactive mode if omitted)",
		},
		&cli.IntFlag{
			Name:  "focus-start",
			Usage: "Focus window start offset in the document",
			Value: -1,
		},
		&cli.IntFlag{
			Name:  "focus-end",
			Usage: "Focus window end offset in the document",
			Value: -1,
		},
		&cli.StringFlag{
			Name:  "focus-text",
			Usage: "Document text surrounding the focus window",
		},

		// Output configuration
		&cli.BoolFlag{
			Name:  "quiet",
			Usage: "Suppress confirmation messages and source footers",
		},
		&cli.BoolFlag{
			Name:    "debug",
			Aliases: []string{"d"},
			Usage:   "Enable debug logging",
		},
	}
}

func runCommand(ctx context.Context, cmd *cli.Command) error {
	config, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	log.InitLogger(config.Debug)
	initColors()

	client := api.NewClient(config.Server, config.Timeout)

	store, err := state.NewStore(config.StateDir)
	if err != nil {
		return fmt.Errorf("failed to open state store: %w", err)
	}

	// Management commands exit before any chat turn starts
	switch {
	case config.ListSessions:
		return listSessions(ctx, client)
	case config.DeleteSession != "":
		return deleteSession(ctx, client, store, config)
	case config.ListDocuments:
		return listDocuments(ctx, client)
	}

	if len(config.Uploads) > 0 || config.IngestURL != "" {
		if err := processDocuments(ctx, client, store, config); err != nil {
			return err
		}
		// Upload-only invocation: nothing to chat about yet
		if config.Prompt == "" && !config.NewSession && config.SessionID == "" && !config.UseLastSession {
			return nil
		}
	}

	sessionID, err := resolveSession(ctx, client, store, config)
	if err != nil {
		return err
	}

	if config.ShowStats {
		return showStats(ctx, client, sessionID)
	}

	accumulator := stream.NewAccumulator(config.Server, client.HTTPClient())
	defer accumulator.Close()

	if config.Prompt != "" {
		return runOneShot(ctx, accumulator, client, store, config, sessionID)
	}
	return runInteractive(ctx, accumulator, client, store, config, sessionID)
}
