package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"iamamir.ir/mystery-bot/internal/features/history"
	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
)

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Сводный отчёт по базе",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			userCount, err := users.NewRepository(pool).Count(ctx)
			if err != nil {
				return err
			}
			stories, sections, scenarios, err := story.NewRepository(pool).Counts(ctx)
			if err != nil {
				return err
			}
			llmCalls, err := history.NewRepository(pool).Count(ctx)
			if err != nil {
				return err
			}

			writeReport(cmd.OutOrStdout(), int64(userCount), stories, sections, scenarios, llmCalls)
			return nil
		},
	}
}

// writeReport печатает сводку. Секции хранятся парами
// «ход игрока + ответ модели», в отчёте показываем число пар.
func writeReport(w io.Writer, userCount int64, stories, sections, scenarios int, llmCalls int64) {
	fmt.Fprintln(w, "📊 System Report")
	fmt.Fprintln(w, "---------------------------")
	fmt.Fprintf(w, "👤 Users:           %d\n", userCount)
	fmt.Fprintf(w, "📖 Stories:         %d\n", stories)
	fmt.Fprintf(w, "🎭 Story Scenarios: %d\n", scenarios)
	fmt.Fprintf(w, "📑 Sections:        %d\n", sections/2)
	fmt.Fprintf(w, "🧠 LLM History:     %d\n", llmCalls)
	fmt.Fprintln(w, "---------------------------")
}
