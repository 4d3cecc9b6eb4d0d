package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"iamamir.ir/mystery-bot/internal/features/story"
	"iamamir.ir/mystery-bot/internal/features/users"
)

// Формат выгрузки: пользователи с вложенными историями и секциями,
// сценарии отдельным списком.
type dumpFile struct {
	Users          []dumpUser     `json:"users"`
	StoryScenarios []dumpScenario `json:"story_scenarios"`
}

type dumpUser struct {
	UserID    int64       `json:"user_id"`
	Username  string      `json:"username"`
	FirstName string      `json:"first_name"`
	LastName  string      `json:"last_name"`
	Active    bool        `json:"active"`
	Charge    float64     `json:"charge"`
	CreatedAt time.Time   `json:"created_at"`
	Stories   []dumpStory `json:"stories"`
}

type dumpStory struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"user_id"`
	IsEnd     bool          `json:"is_end"`
	Rate      *int          `json:"rate"`
	CreatedAt time.Time     `json:"created_at"`
	Sections  []dumpSection `json:"sections"`
}

type dumpSection struct {
	ID        int64     `json:"id"`
	StoryID   int64     `json:"story"`
	Text      string    `json:"text"`
	IsSystem  bool      `json:"is_system"`
	Used      bool      `json:"used"`
	CreatedAt time.Time `json:"created_at"`
}

type dumpScenario struct {
	ID        int64     `json:"id"`
	StoryID   *int64    `json:"story_id"`
	Text      string    `json:"text"`
	IsSystem  bool      `json:"is_system"`
	CreatedAt time.Time `json:"created_at"`
}

func newDumpCmd() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Выгрузка базы в JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			pool, err := connect(ctx)
			if err != nil {
				return err
			}
			defer pool.Close()

			userRepo := users.NewRepository(pool)
			storyRepo := story.NewRepository(pool)

			allUsers, err := userRepo.ListAll(ctx)
			if err != nil {
				return err
			}

			out := dumpFile{}
			for _, u := range allUsers {
				du := dumpUser{
					UserID:    u.UserID,
					Username:  u.Username,
					FirstName: u.FirstName,
					LastName:  u.LastName,
					Active:    u.Active,
					Charge:    u.Charge,
					CreatedAt: u.CreatedAt,
				}

				stories, err := storyRepo.ListByUser(ctx, u.UserID)
				if err != nil {
					return err
				}
				for _, st := range stories {
					ds := dumpStory{
						ID:        st.ID,
						UserID:    st.UserID,
						IsEnd:     st.IsEnd,
						Rate:      st.Rate,
						CreatedAt: st.CreatedAt,
					}
					sections, err := storyRepo.SectionsHistory(ctx, st.ID)
					if err != nil {
						return err
					}
					for _, sec := range sections {
						ds.Sections = append(ds.Sections, dumpSection{
							ID:        sec.ID,
							StoryID:   sec.StoryID,
							Text:      sec.Text,
							IsSystem:  sec.IsSystem,
							Used:      sec.Used,
							CreatedAt: sec.CreatedAt,
						})
					}
					du.Stories = append(du.Stories, ds)
				}
				out.Users = append(out.Users, du)
			}

			scenarios, err := storyRepo.ListScenarios(ctx)
			if err != nil {
				return err
			}
			for _, sc := range scenarios {
				out.StoryScenarios = append(out.StoryScenarios, dumpScenario{
					ID:        sc.ID,
					StoryID:   sc.StoryID,
					Text:      sc.Text,
					IsSystem:  sc.IsSystem,
					CreatedAt: sc.CreatedAt,
				})
			}

			data, err := json.MarshalIndent(out, "", "    ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, data, 0o644); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Данные выгружены в %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&path, "path", "dump.json", "путь к файлу выгрузки")
	return cmd
}
