package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/alanyoungcy/predictlive/internal/bridge"
	"github.com/alanyoungcy/predictlive/internal/cache/redis"
	"github.com/alanyoungcy/predictlive/internal/config"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/notify"
	"github.com/alanyoungcy/predictlive/internal/platform/predictapi"
	"github.com/alanyoungcy/predictlive/internal/platform/supabase"
	"github.com/alanyoungcy/predictlive/internal/popup"
	"github.com/alanyoungcy/predictlive/internal/wallet"
)

// Dependencies bundles the process-wide components shared by every card. It
// is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Remote backend
	API      *predictapi.Client
	Push     *predictapi.Transport
	Fallback domain.Subscriber

	// Background context
	Bus        *bridge.Bus
	Background *bridge.Coordinator
	Popup      *popup.Popup

	// Page world
	PageWorld *wallet.PageWorld
	Detector  *wallet.Detector
	Provider  *wallet.RPCProvider

	// Notifications
	Notifier *notify.Notifier

	UserID string
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		UserID: strings.TrimSpace(cfg.Stream.UserID),
	}
	if deps.UserID == "" {
		deps.UserID = uuid.NewString()
		logger.Info("generated anonymous user id", slog.String("user_id", deps.UserID))
	}

	// --- Prediction backend ---
	deps.API = predictapi.NewClient(cfg.API.BaseURL, cfg.API.Timeout.Duration)
	deps.Push = predictapi.NewTransport(cfg.Stream.PushTransport, cfg.API.BroadcastURL, logger)

	// --- Fallback channel ---
	switch strings.ToLower(cfg.Fallback.Backend) {
	case "postgres":
		pg, err := supabase.New(ctx, supabase.ClientConfig{
			DSN:      cfg.Fallback.Postgres.DSN,
			Host:     cfg.Fallback.Postgres.Host,
			Port:     cfg.Fallback.Postgres.Port,
			Database: cfg.Fallback.Postgres.Database,
			User:     cfg.Fallback.Postgres.User,
			Password: cfg.Fallback.Postgres.Password,
			SSLMode:  cfg.Fallback.Postgres.SSLMode,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		deps.Fallback = supabase.NewListener(pg, cfg.Fallback.ChannelPrefix, logger)

	case "redis":
		rc, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Fallback.Redis.Addr,
			Password:   cfg.Fallback.Redis.Password,
			DB:         cfg.Fallback.Redis.DB,
			PoolSize:   cfg.Fallback.Redis.PoolSize,
			MaxRetries: cfg.Fallback.Redis.MaxRetries,
			TLSEnabled: cfg.Fallback.Redis.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })
		deps.Fallback = redis.NewChallengeFeed(rc, cfg.Fallback.ChannelPrefix)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	toasts := notify.NewToasts(cfg.Widget.ToastLifetime.Duration, nil)
	deps.Notifier = notify.NewNotifier(toasts, senders, cfg.Notify.Events, logger)

	// --- Wallet / page world ---
	step := wallet.NewChainStep(chainParams(cfg), common.HexToAddress(cfg.Chain.Contract),
		cfg.Chain.MethodSignature, cfg.Chain.AmountDecimals, logger)
	deps.PageWorld = wallet.NewPageWorld(step, cfg.Wallet.TxTimeout.Duration, logger)
	deps.Detector = wallet.NewDetector(deps.PageWorld, cfg.Wallet.DetectAttempts, cfg.Wallet.DetectInterval.Duration, logger)

	if cfg.Wallet.HasKey() {
		key, err := wallet.LoadKey(wallet.KeySource{
			PrivateKey:       cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: wallet key: %w", err)
		}
		known := map[int64]string{}
		if cfg.Wallet.RPCURL != "" {
			known[cfg.Chain.ChainID] = cfg.Wallet.RPCURL
		}
		deps.Provider = wallet.NewRPCProvider(key, known, logger)
		closers = append(closers, deps.Provider.Close)
		logger.Info("wallet loaded", slog.String("address", deps.Provider.Address().Hex()))
	} else {
		logger.Warn("no wallet key configured; predictions will report wallet unavailable")
	}

	// --- Background + popup ---
	deps.Bus = bridge.NewBus(cfg.Wallet.TxTimeout.Duration+cfg.API.Timeout.Duration, logger)
	launcher := newPopupLauncher(logger)
	deps.Background = bridge.NewCoordinator(deps.Bus, launcher, deps.PageWorld, logger)
	closers = append(closers, deps.Background.Stop)

	popupPort, err := deps.Bus.Connect(bridge.KindPopup, "")
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: popup: %w", err)
	}
	var accounts popup.AccountSource
	if deps.Provider != nil {
		accounts = deps.Provider
	}
	deps.Popup = popup.New(bridge.NewClient(popupPort), accounts, logger)
	launcher.attach(deps.Popup)
	closers = append(closers, deps.Popup.Close)

	return deps, cleanup, nil
}

func chainParams(cfg *config.Config) wallet.ChainParams {
	return wallet.ChainParams{
		ChainID:   cfg.Chain.ChainID,
		ChainName: cfg.Chain.ChainName,
		NativeCurrency: wallet.Currency{
			Name:     cfg.Chain.CurrencyName,
			Symbol:   cfg.Chain.CurrencySymbol,
			Decimals: cfg.Chain.CurrencyDecimals,
		},
		RPCURLs:           cfg.Chain.RPCURLs,
		BlockExplorerURLs: cfg.Chain.BlockExplorerURLs,
	}
}
