package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies PREDICTLIVE_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus the
// environment are often enough for a single channel. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known PREDICTLIVE_* environment variables and
// overwrites the corresponding Config fields when a variable is set.
func applyEnvOverrides(cfg *Config) {
	// ── API ──
	setStr(&cfg.API.BaseURL, "PREDICTLIVE_API_BASE_URL")
	setStr(&cfg.API.BroadcastURL, "PREDICTLIVE_API_BROADCAST_URL")
	setDuration(&cfg.API.Timeout, "PREDICTLIVE_API_TIMEOUT")

	// ── Stream ──
	setStr(&cfg.Stream.Channel, "PREDICTLIVE_STREAM_CHANNEL")
	setStr(&cfg.Stream.UserID, "PREDICTLIVE_STREAM_USER_ID")
	setStr(&cfg.Stream.PushTransport, "PREDICTLIVE_STREAM_PUSH_TRANSPORT")
	setDuration(&cfg.Stream.DefaultWindow, "PREDICTLIVE_STREAM_DEFAULT_WINDOW")

	// ── Fallback ──
	setStr(&cfg.Fallback.Backend, "PREDICTLIVE_FALLBACK_BACKEND")
	setStr(&cfg.Fallback.ChannelPrefix, "PREDICTLIVE_FALLBACK_CHANNEL_PREFIX")
	setStr(&cfg.Fallback.Postgres.DSN, "PREDICTLIVE_FALLBACK_POSTGRES_DSN")
	setStr(&cfg.Fallback.Postgres.DSN, "PREDICTLIVE_SUPABASE_DSN") // compatibility alias
	setStr(&cfg.Fallback.Postgres.Host, "PREDICTLIVE_FALLBACK_POSTGRES_HOST")
	setInt(&cfg.Fallback.Postgres.Port, "PREDICTLIVE_FALLBACK_POSTGRES_PORT")
	setStr(&cfg.Fallback.Postgres.Database, "PREDICTLIVE_FALLBACK_POSTGRES_DATABASE")
	setStr(&cfg.Fallback.Postgres.User, "PREDICTLIVE_FALLBACK_POSTGRES_USER")
	setStr(&cfg.Fallback.Postgres.Password, "PREDICTLIVE_FALLBACK_POSTGRES_PASSWORD")
	setStr(&cfg.Fallback.Postgres.SSLMode, "PREDICTLIVE_FALLBACK_POSTGRES_SSL_MODE")
	setStr(&cfg.Fallback.Redis.Addr, "PREDICTLIVE_FALLBACK_REDIS_ADDR")
	setStr(&cfg.Fallback.Redis.Password, "PREDICTLIVE_FALLBACK_REDIS_PASSWORD")
	setInt(&cfg.Fallback.Redis.DB, "PREDICTLIVE_FALLBACK_REDIS_DB")
	setInt(&cfg.Fallback.Redis.PoolSize, "PREDICTLIVE_FALLBACK_REDIS_POOL_SIZE")
	setBool(&cfg.Fallback.Redis.TLSEnabled, "PREDICTLIVE_FALLBACK_REDIS_TLS_ENABLED")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "PREDICTLIVE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "PREDICTLIVE_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "PREDICTLIVE_WALLET_KEY_PASSWORD")
	setStr(&cfg.Wallet.RPCURL, "PREDICTLIVE_WALLET_RPC_URL")
	setInt(&cfg.Wallet.DetectAttempts, "PREDICTLIVE_WALLET_DETECT_ATTEMPTS")
	setDuration(&cfg.Wallet.DetectInterval, "PREDICTLIVE_WALLET_DETECT_INTERVAL")
	setDuration(&cfg.Wallet.TxTimeout, "PREDICTLIVE_WALLET_TX_TIMEOUT")

	// ── Chain ──
	setInt64(&cfg.Chain.ChainID, "PREDICTLIVE_CHAIN_ID")
	setStr(&cfg.Chain.ChainName, "PREDICTLIVE_CHAIN_NAME")
	setStringSlice(&cfg.Chain.RPCURLs, "PREDICTLIVE_CHAIN_RPC_URLS")
	setStr(&cfg.Chain.Contract, "PREDICTLIVE_CHAIN_CONTRACT")
	setStr(&cfg.Chain.MethodSignature, "PREDICTLIVE_CHAIN_METHOD_SIGNATURE")

	// ── Widget ──
	setDuration(&cfg.Widget.TickInterval, "PREDICTLIVE_WIDGET_TICK_INTERVAL")
	setDuration(&cfg.Widget.WalletPollInterval, "PREDICTLIVE_WIDGET_WALLET_POLL_INTERVAL")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "PREDICTLIVE_SERVER_ENABLED")
	setStr(&cfg.Server.Host, "PREDICTLIVE_SERVER_HOST")
	setInt(&cfg.Server.Port, "PREDICTLIVE_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "PREDICTLIVE_SERVER_API_KEY")
	setStringSlice(&cfg.Server.CORSOrigins, "PREDICTLIVE_SERVER_CORS_ORIGINS")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "PREDICTLIVE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "PREDICTLIVE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "PREDICTLIVE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "PREDICTLIVE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "PREDICTLIVE_MODE")
	setStr(&cfg.LogLevel, "PREDICTLIVE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
