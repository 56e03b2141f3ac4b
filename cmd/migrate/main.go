package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stockmaster/stockmaster/internal/app"
	"github.com/stockmaster/stockmaster/internal/platform/db"
	"github.com/stockmaster/stockmaster/migrations"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	command := "up"
	var args []string
	if len(os.Args) > 1 {
		command = os.Args[1]
		args = os.Args[2:]
	}

	if err := db.MigrateCommand(ctx, cfg.PGDSN, migrations.FS, command, args...); err != nil {
		logger.Error("migrate", slog.String("command", command), slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("migrate done", slog.String("command", command))
}
