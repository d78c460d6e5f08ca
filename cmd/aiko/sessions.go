package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/aiko/internal/render"
)

func sessionsCmd(offline *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "Manage chat sessions",
	}

	var limit int
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List sessions, newest first",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			ctx := context.Background()
			sessions, err := app.store.ListSessions(ctx, limit)
			if err != nil {
				fatalError(err)
			}
			activeID := ""
			if active, err := app.store.ActiveSession(ctx); err == nil && active != nil {
				activeID = active.ID
			}
			r := render.New(term.IsTerminal(int(os.Stdout.Fd())))
			fmt.Print(r.Sessions(sessions, activeID))
		},
	}
	listCmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum sessions to show")

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Archive the current session and start a new one",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			sess, err := app.sessions.StartNew(context.Background())
			if err != nil {
				fatalError(err)
			}
			fmt.Printf("Started session %s\n", sess.ID)
		},
	}

	archiveCmd := &cobra.Command{
		Use:   "archive <id>",
		Short: "Archive a session (sessions are never deleted)",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			if err := app.store.ArchiveSession(context.Background(), args[0]); err != nil {
				fatalError(err)
			}
			fmt.Printf("Archived %s\n", args[0])
		},
	}

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the current session transcript",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			msgs, err := app.sessions.Recent(context.Background(), app.cfg.Memory.HistoryLimit)
			if err != nil {
				fatalError(err)
			}
			r := render.New(term.IsTerminal(int(os.Stdout.Fd())))
			fmt.Print(r.Transcript(msgs, app.pers.Name))
		},
	}

	cmd.AddCommand(listCmd, newCmd, archiveCmd, showCmd)
	return cmd
}
