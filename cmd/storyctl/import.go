package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
)

func newImportCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Восстановление базы из JSON-выгрузки",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			raw, err := os.ReadFile(path)
			if err != nil {
				return err
			}
			var dump dumpFile
			if err := json.Unmarshal(raw, &dump); err != nil {
				return fmt.Errorf("разбор %s: %w", path, err)
			}

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			userRepo := users.NewRepository(pool)
			storyRepo := story.NewRepository(pool)

			for _, du := range dump.Users {
				err := userRepo.Import(ctx, &users.User{
					UserID:    du.UserID,
					Username:  du.Username,
					FirstName: du.FirstName,
					LastName:  du.LastName,
					Active:    du.Active,
					Charge:    du.Charge,
					CreatedAt: du.CreatedAt,
				})
				if err != nil {
					return err
				}

				for _, ds := range du.Stories {
					err := storyRepo.ImportStory(ctx, &story.Story{
						ID:        ds.ID,
						UserID:    ds.UserID,
						IsEnd:     ds.IsEnd,
						Rate:      ds.Rate,
						CreatedAt: ds.CreatedAt,
					})
					if err != nil {
						return err
					}
					for _, sec := range ds.Sections {
						err := storyRepo.ImportSection(ctx, &story.Section{
							ID:        sec.ID,
							StoryID:   sec.StoryID,
							Text:      sec.Text,
							IsSystem:  sec.IsSystem,
							Used:      sec.Used,
							CreatedAt: sec.CreatedAt,
						})
						if err != nil {
							return err
						}
					}
				}
			}

			for _, sc := range dump.StoryScenarios {
				err := storyRepo.ImportScenario(ctx, &story.Scenario{
					ID:        sc.ID,
					StoryID:   sc.StoryID,
					Text:      sc.Text,
					IsSystem:  sc.IsSystem,
					CreatedAt: sc.CreatedAt,
				})
				if err != nil {
					return err
				}
			}

			// Последовательности надо сдвинуть за импортированные id,
			// иначе следующая вставка упрётся в конфликт ключей
			if err := storyRepo.ResetSequences(ctx); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "Данные импортированы")
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "dump.json", "путь к файлу выгрузки")
	return cmd
}
