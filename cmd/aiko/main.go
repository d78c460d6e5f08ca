// Package main provides the aiko CLI entrypoint.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/aiko/internal/avatar"
	"github.com/joss/aiko/internal/media"
	"github.com/joss/aiko/internal/parser"
	"github.com/joss/aiko/internal/prompt"
	"github.com/joss/aiko/internal/relation"
	"github.com/joss/aiko/internal/render"
	"github.com/joss/aiko/internal/tui"
	"github.com/joss/aiko/internal/turn"
)

var version = "0.1.0"

func main() {
	var offline bool
	var plain bool

	rootCmd := &cobra.Command{
		Use:   "aiko",
		Short: "Aiko - AI companion chat",
		Long: `Aiko: a companion chat with long-term memory and an expressive avatar.

Usage modes:
  aiko             Start an interactive chat session
  aiko <command>   Run a specific command (see below)`,
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			if !plain && term.IsTerminal(int(os.Stdout.Fd())) {
				runChatTUI(app)
				return
			}
			runChatPlain(app)
		},
	}

	rootCmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use the scripted offline gateway instead of the API")
	rootCmd.Flags().BoolVar(&plain, "plain", false, "Line-based chat without the TUI")
	rootCmd.Version = version

	rootCmd.AddCommand(sessionsCmd(&offline))
	rootCmd.AddCommand(memoryCmd(&offline))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newOrchestrator(app *app, listener turn.Listener) *turn.Orchestrator {
	return turn.New(turn.Options{
		Gateway:       app.gateway,
		Sessions:      app.sessions,
		Memory:        app.coord,
		Builder:       prompt.NewBuilder(app.pers, app.cfg.VisionDetail),
		Signals:       relation.NewProcessor(nil),
		Avatar:        avatar.Noop{},
		Notifier:      app.notifier,
		Extractor:     &media.FFmpeg{},
		Anniversaries: app.store,
		Config:        app.cfg,
		Logger:        app.logger,
		Listener:      listener,
	})
}

func runChatTUI(app *app) {
	// The model and orchestrator reference each other through the
	// listener, so wire them in two steps.
	model, listener := tui.New(app.pers.Greeting)
	tui.Attach(model, newOrchestrator(app, listener))

	p := tea.NewProgram(model, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fatalError(err)
	}
}

func runChatPlain(app *app) {
	r := render.New(term.IsTerminal(int(os.Stdout.Fd())))
	done := make(chan struct{}, 1)

	listener := turn.Listener{
		OnWarning: func(msg string) {
			fmt.Println(r.Warning(msg))
		},
		OnResult: func(res parser.Result) {
			fmt.Println(r.Reply(app.pers.Name, res.CleanText, res.Emotion))
			if res.ImageCommand != nil {
				fmt.Println(r.Warning("想要生成图片：" + res.ImageCommand.Prompt))
			}
		},
		OnError: func(err error) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		},
		OnPhase: func(p turn.Phase) {
			if p == turn.PhaseDone || p == turn.PhaseAborted {
				select {
				case done <- struct{}{}:
				default:
				}
			}
		},
	}
	orch := newOrchestrator(app, listener)

	fmt.Println(r.Reply(app.pers.Name, app.pers.Greeting, ""))

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		if text == "/quit" || text == "/exit" {
			return
		}

		t := orch.Submit(context.Background(), text)
		select {
		case <-t.Done():
		case <-done:
		}
	}
}
