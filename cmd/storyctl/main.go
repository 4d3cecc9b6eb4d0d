// storyctl — служебная утилита оператора: отчёт по базе,
// выгрузка в JSON и восстановление из выгрузки.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"iamamir.ir/mystery-bot/internal/config"
	"iamamir.ir/mystery-bot/internal/db/postgres"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "storyctl",
		Short:         "Утилита обслуживания бота историй",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.AddCommand(newReportCmd())
	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newImportCmd())
	return cmd
}

// connect читает конфигурацию из окружения и открывает пул к БД.
func connect(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("конфигурация: %w", err)
	}
	pool, err := postgres.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("подключение к БД: %w", err)
	}
	return pool, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Ошибка:", err)
		os.Exit(1)
	}
}
