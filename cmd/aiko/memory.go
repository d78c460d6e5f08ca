package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/joss/aiko/internal/domain"
	"github.com/joss/aiko/internal/memory"
	"github.com/joss/aiko/internal/render"
)

func memoryCmd(offline *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Operate the long-term memory store",
	}

	var topK int
	searchCmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search memories by similarity",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			ctx := context.Background()
			vector, err := app.embed.Embed(ctx, args[0])
			if err != nil {
				fatalError(fmt.Errorf("embed query: %w", err))
			}
			results, err := app.memStore.Search(ctx, vector, memory.SearchQuery{TopK: topK})
			if err != nil {
				fatalError(err)
			}
			items := memory.Rank(results, memory.RankOptions{
				MinSimilarity: app.cfg.Memory.MinSimilarity,
				HalfLifeDays:  app.cfg.Memory.HalfLifeDays,
				MaxItems:      topK,
			})
			r := render.New(term.IsTerminal(int(os.Stdout.Fd())))
			fmt.Print(r.Memories(items))
		},
	}
	searchCmd.Flags().IntVarP(&topK, "top", "k", 10, "Maximum results")

	var tag string
	var emotion string
	addCmd := &cobra.Command{
		Use:   "add <text>",
		Short: "Store a memory fragment by hand",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			ctx := context.Background()
			sess, err := app.sessions.GetOrCreateActive(ctx)
			if err != nil {
				fatalError(err)
			}
			app.coord.Save(ctx, args[0], tag, sess.ID, emotion)
			fmt.Println("Remembered.")
		},
	}
	addCmd.Flags().StringVarP(&tag, "tag", "t", domain.TagUserInput, "Memory tag")
	addCmd.Flags().StringVarP(&emotion, "emotion", "e", "", "Emotion annotation")

	statsCmd := &cobra.Command{
		Use:   "stats",
		Short: "Show memory store counters",
		Run: func(cmd *cobra.Command, args []string) {
			app, err := buildApp(*offline)
			if err != nil {
				fatalError(err)
			}
			defer app.Close()

			count, err := app.memStore.Count(context.Background())
			if err != nil {
				fatalError(err)
			}
			r := render.New(term.IsTerminal(int(os.Stdout.Fd())))
			fmt.Print(r.MemoryStats(count, app.cfg.Memory.FastPath, app.coord.LastFailure()))
		},
	}

	cmd.AddCommand(searchCmd, addCmd, statsCmd)
	return cmd
}
