// Command predictlive follows a live stream's prediction challenges and places
// predictions on-chain. It loads configuration, validates it, wires
// dependencies, sets up signal handling, and starts the configured mode.
//
// With -seal-key it instead encrypts the configured private key into a key
// file and exits.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/predictlive/internal/app"
	"github.com/alanyoungcy/predictlive/internal/config"
	"github.com/alanyoungcy/predictlive/internal/wallet"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	sealKeyOut := flag.String("seal-key", "", "encrypt wallet.private_key with wallet.key_password into this file and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *sealKeyOut != "" {
		if err := sealKey(cfg, *sealKeyOut); err != nil {
			logger.Error("seal key failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("key file written", slog.String("path", *sealKeyOut))
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("predictlive starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("predictlive stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func sealKey(cfg *config.Config, out string) error {
	if cfg.Wallet.PrivateKey == "" {
		return errors.New("wallet.private_key (or PREDICTLIVE_WALLET_PRIVATE_KEY) must be set")
	}
	if cfg.Wallet.KeyPassword == "" {
		return errors.New("wallet.key_password (or PREDICTLIVE_WALLET_KEY_PASSWORD) must be set")
	}
	key, err := wallet.LoadKey(wallet.KeySource{PrivateKey: cfg.Wallet.PrivateKey})
	if err != nil {
		return err
	}
	data, err := wallet.SealKey(key, cfg.Wallet.KeyPassword)
	if err != nil {
		return err
	}
	return os.WriteFile(out, data, 0o600)
}
