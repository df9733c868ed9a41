package main

import (
	"context"
	"fmt"

	"docchat/api"
	"docchat/messages"
	"docchat/state"
)

// resolveSession determines which session this invocation chats in,
// creating one when asked, and records it as the last active session.
func resolveSession(ctx context.Context, client *api.Client, store *state.Store, config *Config) (string, error) {
	sessionID := config.SessionID

	if config.UseLastSession {
		persisted, err := store.Load()
		if err != nil {
			return "", err
		}
		if persisted.LastSessionID == "" {
			return "", fmt.Errorf("no last session found")
		}
		sessionID = persisted.LastSessionID
	}

	if config.NewSession || sessionID == "" {
		documentID := config.DocumentID
		if documentID == "" {
			persisted, err := store.Load()
			if err == nil && persisted.LastDocumentID != "" {
				documentID = persisted.LastDocumentID
			}
		}
		session, err := client.CreateSession(ctx, documentID)
		if err != nil {
			return "", fmt.Errorf("failed to create session: %w", err)
		}
		sessionID = session.ID
		printInfo(config.Quiet, "Created session %s", sessionID)
	}

	if _, err := store.Update(&state.State{LastSessionID: sessionID}); err != nil {
		// Losing session continuity is annoying, not fatal
		printInfo(config.Quiet, "Warning: could not persist session state: %v", err)
	}
	return sessionID, nil
}

func listSessions(ctx context.Context, client *api.Client) error {
	sessions, err := client.ListSessions(ctx, 0, 0)
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions")
		return nil
	}
	for _, session := range sessions {
		doc := "-"
		if session.DocumentID != nil {
			doc = *session.DocumentID
		}
		fmt.Printf("%s  messages=%d  document=%s  updated=%s\n",
			session.ID, session.MessageCount, doc, session.UpdatedAt)
	}
	return nil
}

func deleteSession(ctx context.Context, client *api.Client, store *state.Store, config *Config) error {
	if err := client.DeleteSession(ctx, config.DeleteSession); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	// Don't leave --last pointing at a dead session
	persisted, err := store.Load()
	if err == nil && persisted.LastSessionID == config.DeleteSession {
		persisted.LastSessionID = ""
		if err := store.Save(persisted); err != nil {
			printInfo(config.Quiet, "Warning: could not update session state: %v", err)
		}
	}

	printInfo(config.Quiet, "Deleted session %s", config.DeleteSession)
	return nil
}

func showStats(ctx context.Context, client *api.Client, sessionID string) error {
	stats, err := client.SessionStats(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("failed to fetch stats: %w", err)
	}
	fmt.Printf("Session %s\n", stats.SessionID)
	fmt.Printf("  messages:      %d\n", stats.TotalMessages)
	fmt.Printf("  tokens:        %d (%d cached)\n", stats.TotalTokens, stats.CachedTokens)
	fmt.Printf("  cost:          $%.4f\n", stats.TotalCostUSD)
	fmt.Printf("  created:       %s\n", stats.CreatedAt)
	fmt.Printf("  last activity: %s\n", stats.UpdatedAt)
	return nil
}

// showHistory prints the tail of the session's message history
func showHistory(ctx context.Context, client *api.Client, sessionID string, count int) error {
	msgs, err := client.SessionMessages(ctx, sessionID, count, 0)
	if err != nil {
		return fmt.Errorf("failed to fetch history: %w", err)
	}
	for _, msg := range msgs {
		prefix := "> "
		if msg.Role == messages.MessageRoleAssistant {
			prefix = "  "
		}
		fmt.Println(dimStyle.Styled(prefix + msg.Content))
	}
	return nil
}
