package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"golang.org/x/term"

	"docchat/messages"
	"docchat/stream"
)

var (
	// termenv output for consistent terminal styling
	output = termenv.NewOutput(os.Stdout)

	// Style helpers - initialized in initColors()
	errorStyle   termenv.Style
	successStyle termenv.Style
	dimStyle     termenv.Style
	boldStyle    termenv.Style
	sourceStyle  termenv.Style
)

// initColors initializes color styles based on terminal background
func initColors() {
	if termenv.HasDarkBackground() {
		errorStyle = output.String().Foreground(output.Color("124"))  // Muted red
		successStyle = output.String().Foreground(output.Color("65")) // Muted green
		dimStyle = output.String().Faint()
		boldStyle = output.String().Bold()
		sourceStyle = output.String().Foreground(output.Color("110")) // Muted blue
	} else {
		errorStyle = output.String().Foreground(output.Color("160"))  // Dark red
		successStyle = output.String().Foreground(output.Color("28")) // Dark green
		dimStyle = output.String().Foreground(output.Color("240"))
		boldStyle = output.String().Bold()
		sourceStyle = output.String().Foreground(output.Color("25")) // Dark blue
	}
}

// isTerminal checks if output is going to a terminal
func isTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func printError(message string) {
	fmt.Fprintln(os.Stderr, errorStyle.Styled("Error: "+message))
}

func printInfo(quiet bool, format string, args ...any) {
	if quiet {
		return
	}
	fmt.Fprintln(os.Stderr, dimStyle.Styled(fmt.Sprintf(format, args...)))
}

// printSources renders the citation footer after a completed answer
func printSources(sources []messages.SourceChunk) {
	if len(sources) == 0 {
		return
	}
	fmt.Println()
	fmt.Println(boldStyle.Styled("Sources:"))
	for i, src := range sources {
		line := fmt.Sprintf("  [%d] %s (doc %s)", i+1, src.ChunkID, src.DocumentID)
		if src.Similarity != nil {
			line += fmt.Sprintf(" similarity=%.2f", *src.Similarity)
		}
		fmt.Println(sourceStyle.Styled(line))
		if src.Text != "" {
			excerpt := src.Text
			if len(excerpt) > 160 {
				excerpt = excerpt[:160] + "..."
			}
			fmt.Println(dimStyle.Styled("      " + excerpt))
		}
	}
}

// printTurnFooter reports metadata or failure after a turn ends
func printTurnFooter(snap stream.Snapshot, quiet bool) {
	switch snap.State {
	case stream.StateCompleted:
		if !quiet {
			printSources(snap.Sources)
			if snap.Metadata != nil {
				fmt.Fprintln(os.Stderr, dimStyle.Styled(fmt.Sprintf(
					"%d tokens · $%.4f", snap.Metadata.TokenCount, snap.Metadata.CostUSD)))
			}
		}
	case stream.StateFailed:
		if snap.IsPartial {
			fmt.Println()
			fmt.Fprintln(os.Stderr, dimStyle.Styled("(answer interrupted)"))
		}
		printError(snap.Error)
	case stream.StateCancelled:
		fmt.Println()
		fmt.Fprintln(os.Stderr, dimStyle.Styled("(cancelled)"))
	}
}
