package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"time"

	"docchat/api"
	"docchat/messages"
	"docchat/state"
	"docchat/stream"
)

// renderInterval is how often the render loop samples the accumulator.
// The accumulator owns the stream; the CLI just mirrors its state, the
// same way the web UI re-renders from it.
const renderInterval = 40 * time.Millisecond

// focusFromConfig builds the focus window from flags, if one was given
func focusFromConfig(config *Config) *messages.FocusContext {
	if config.FocusStart < 0 || config.FocusEnd < 0 {
		return nil
	}
	return &messages.FocusContext{
		StartChar:   config.FocusStart,
		EndChar:     config.FocusEnd,
		ContextText: config.FocusText,
	}
}

// renderTurn prints answer text as it accumulates and returns the
// final snapshot once the turn reaches a terminal state.
func renderTurn(ctx context.Context, accumulator *stream.Accumulator) stream.Snapshot {
	ticker := time.NewTicker(renderInterval)
	defer ticker.Stop()

	printed := 0
	for {
		snap := accumulator.Snapshot()
		if len(snap.Message) > printed {
			fmt.Print(snap.Message[printed:])
			printed = len(snap.Message)
		}
		if !snap.State.Active() {
			if printed > 0 && snap.State == stream.StateCompleted {
				fmt.Println()
			}
			return snap
		}

		select {
		case <-ctx.Done():
			accumulator.Stop()
		case <-ticker.C:
		}
	}
}

// sendTurn runs one full turn: send, stream, render, footer. The final
// snapshot lets callers distinguish a failed turn from a completed one.
func sendTurn(ctx context.Context, accumulator *stream.Accumulator, config *Config, sessionID, text string, focus *messages.FocusContext) (stream.Snapshot, error) {
	if err := accumulator.Send(ctx, sessionID, text, focus); err != nil {
		printError(accumulator.Err())
		return accumulator.Snapshot(), err
	}
	snap := renderTurn(ctx, accumulator)
	printTurnFooter(snap, config.Quiet)
	return snap, nil
}

// watchInterrupts turns SIGINT into stream cancellation for as long as
// the returned stop function has not been called.
func watchInterrupts(accumulator *stream.Accumulator) func() {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt)
	go func() {
		for range sigChan {
			accumulator.Stop()
		}
	}()
	return func() {
		signal.Stop(sigChan)
		close(sigChan)
	}
}

// persistCaret remembers the focus window for the next invocation
func persistCaret(store *state.Store, config *Config, focus *messages.FocusContext) {
	if focus == nil {
		return
	}
	if _, err := store.Update(&state.State{CaretStart: focus.StartChar, CaretEnd: focus.EndChar}); err != nil {
		printInfo(config.Quiet, "Warning: could not persist caret state: %v", err)
	}
}

func runOneShot(ctx context.Context, accumulator *stream.Accumulator, client *api.Client, store *state.Store, config *Config, sessionID string) error {
	stopWatching := watchInterrupts(accumulator)
	defer stopWatching()

	focus := focusFromConfig(config)
	persistCaret(store, config, focus)

	snap, err := sendTurn(ctx, accumulator, config, sessionID, config.Prompt, focus)
	if err != nil {
		return fmt.Errorf("send failed: %s", accumulator.Err())
	}
	// Scripts rely on the exit code to detect failed answers
	if snap.State == stream.StateFailed {
		return fmt.Errorf("stream failed: %s", snap.Error)
	}
	return nil
}

func runInteractive(ctx context.Context, accumulator *stream.Accumulator, client *api.Client, store *state.Store, config *Config, sessionID string) error {
	stopWatching := watchInterrupts(accumulator)
	defer stopWatching()

	if config.HistoryCount > 0 {
		if err := showHistory(ctx, client, sessionID, config.HistoryCount); err != nil {
			printInfo(config.Quiet, "Warning: %v", err)
		}
	}
	printInfo(config.Quiet, "Session %s (/quit to exit)", sessionID)

	focus := focusFromConfig(config)
	persistCaret(store, config, focus)

	// No prompt noise when output is piped somewhere
	showPrompt := isTerminal()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		if showPrompt {
			fmt.Print("> ")
		}
		if !scanner.Scan() {
			fmt.Println()
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		switch {
		case line == "":
			continue
		case line == "/quit" || line == "/exit":
			return nil
		case line == "/clear":
			accumulator.Clear()
			accumulator.ClearError()
			printInfo(config.Quiet, "Cleared")
			continue
		case line == "/stats":
			if err := showStats(ctx, client, sessionID); err != nil {
				printError(err.Error())
			}
			continue
		}

		// Failures were already printed; keep the loop alive either way
		_, _ = sendTurn(ctx, accumulator, config, sessionID, line, focus)

		// Focus only biases the first turn; later questions stand alone
		focus = nil
	}
}
