package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/ivanoskov/sheets_bot/internal/auth"
	"github.com/ivanoskov/sheets_bot/internal/bot"
	"github.com/ivanoskov/sheets_bot/internal/category"
	"github.com/ivanoskov/sheets_bot/internal/charts"
	"github.com/ivanoskov/sheets_bot/internal/config"
	"github.com/ivanoskov/sheets_bot/internal/crypto"
	"github.com/ivanoskov/sheets_bot/internal/repository"
	"github.com/ivanoskov/sheets_bot/internal/server"
	"github.com/ivanoskov/sheets_bot/internal/service"
	"github.com/ivanoskov/sheets_bot/internal/sheets"
)

func main() {
	_ = godotenv.Load()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, log); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal().Err(err).Msg("bot exited")
	}
	log.Info().Msg("shutdown complete")
}

func run(ctx context.Context, log zerolog.Logger) error {
	cfg, err := config.Load(ctx)
	if err != nil {
		return err
	}
	secrets, err := config.LoadClientSecrets(cfg.OAuthClientFile)
	if err != nil {
		return err
	}
	cipherKey, err := cfg.CipherKey()
	if err != nil {
		return err
	}
	cipher, err := crypto.NewCipher(cipherKey)
	if err != nil {
		return err
	}

	catalog, err := category.Load(cfg.CategoriesPath)
	if err != nil {
		return err
	}

	repo, err := repository.Connect(ctx, cfg.DatabaseDSN)
	if err != nil {
		return err
	}
	defer repo.Close()

	manager := auth.NewManager(secrets, cfg.RedirectURI(), repo, cipher, log)
	cache := sheets.NewClientCache(manager, log)
	ops := sheets.NewOperations(cache, repo, log)
	reports := service.NewReportService(ops, log)
	generator := charts.NewChartGenerator()

	b, err := bot.New(cfg.TelegramToken, manager, ops, reports, generator, repo, catalog, log)
	if err != nil {
		return fmt.Errorf("creating bot: %w", err)
	}

	callbackAddr := fmt.Sprintf("%s:%d", cfg.CallbackHost, cfg.CallbackPort)
	srv := server.New(callbackAddr, manager, b, log)

	errCh := make(chan error, 2)
	go func() { errCh <- srv.Start(ctx) }()
	go func() { errCh <- b.Start(ctx) }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		log.Info().Msg("shutting down")
		return <-errCh
	}
}
