// Package config defines the top-level configuration for predictlive and
// provides validation helpers.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by PREDICTLIVE_* environment variables.
type Config struct {
	API      APIConfig      `toml:"api"`
	Stream   StreamConfig   `toml:"stream"`
	Fallback FallbackConfig `toml:"fallback"`
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Widget   WidgetConfig   `toml:"widget"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// APIConfig holds the prediction backend endpoints.
type APIConfig struct {
	BaseURL      string   `toml:"base_url"`
	BroadcastURL string   `toml:"broadcast_url"`
	Timeout      duration `toml:"timeout"`
}

// StreamConfig selects the stream to follow and how to receive its events.
type StreamConfig struct {
	Channel       string   `toml:"channel"`
	UserID        string   `toml:"user_id"`
	PushTransport string   `toml:"push_transport"` // "sse" or "ws"
	DefaultWindow duration `toml:"default_window"`
}

// FallbackConfig selects the secondary subscription channel.
type FallbackConfig struct {
	Backend       string         `toml:"backend"` // "none", "postgres" or "redis"
	ChannelPrefix string         `toml:"channel_prefix"`
	Postgres      PostgresConfig `toml:"postgres"`
	Redis         RedisConfig    `toml:"redis"`
}

// PostgresConfig holds the connection used for LISTEN/NOTIFY.
type PostgresConfig struct {
	DSN      string `toml:"dsn"`
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Database string `toml:"database"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	SSLMode  string `toml:"ssl_mode"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// WalletConfig holds the signing key and provider detection settings.
type WalletConfig struct {
	PrivateKey       string   `toml:"private_key"`
	EncryptedKeyPath string   `toml:"encrypted_key_path"`
	KeyPassword      string   `toml:"key_password"`
	RPCURL           string   `toml:"rpc_url"`
	DetectAttempts   int      `toml:"detect_attempts"`
	DetectInterval   duration `toml:"detect_interval"`
	TxTimeout        duration `toml:"tx_timeout"`
}

// HasKey reports whether a signing key is configured.
func (w WalletConfig) HasKey() bool {
	return strings.TrimSpace(w.PrivateKey) != "" || w.EncryptedKeyPath != ""
}

// ChainConfig describes the network and contract predictions are placed on.
type ChainConfig struct {
	ChainID           int64    `toml:"chain_id"`
	ChainName         string   `toml:"chain_name"`
	CurrencyName      string   `toml:"currency_name"`
	CurrencySymbol    string   `toml:"currency_symbol"`
	CurrencyDecimals  int      `toml:"currency_decimals"`
	RPCURLs           []string `toml:"rpc_urls"`
	BlockExplorerURLs []string `toml:"block_explorer_urls"`
	Contract          string   `toml:"contract"`
	MethodSignature   string   `toml:"method_signature"`
	AmountDecimals    int      `toml:"amount_decimals"`
}

// WidgetConfig tunes the content-side card.
type WidgetConfig struct {
	TickInterval       duration `toml:"tick_interval"`
	WalletPollInterval duration `toml:"wallet_poll_interval"`
	DuplicateWindow    duration `toml:"duplicate_window"`
	ToastLifetime      duration `toml:"toast_lifetime"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds the local gateway parameters.
type ServerConfig struct {
	Enabled     bool     `toml:"enabled"`
	Host        string   `toml:"host"`
	Port        int      `toml:"port"`
	APIKey      string   `toml:"api_key"`
	CORSOrigins []string `toml:"cors_origins"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		API: APIConfig{
			BaseURL:      "https://prediction-live.vercel.app/api",
			BroadcastURL: "https://prediction-live.vercel.app/api",
			Timeout:      duration{15 * time.Second},
		},
		Stream: StreamConfig{
			PushTransport: "sse",
			DefaultWindow: duration{2 * time.Minute},
		},
		Fallback: FallbackConfig{
			Backend:       "none",
			ChannelPrefix: "challenges_",
			Postgres: PostgresConfig{
				Host:     "localhost",
				Port:     5432,
				Database: "postgres",
				User:     "postgres",
				SSLMode:  "disable",
			},
			Redis: RedisConfig{
				Addr:       "localhost:6379",
				PoolSize:   4,
				MaxRetries: 3,
			},
		},
		Wallet: WalletConfig{
			DetectAttempts: 10,
			DetectInterval: duration{500 * time.Millisecond},
			TxTimeout:      duration{30 * time.Second},
		},
		Chain: ChainConfig{
			ChainID:           88888,
			ChainName:         "Chiliz Testnet",
			CurrencyName:      "CHZ",
			CurrencySymbol:    "CHZ",
			CurrencyDecimals:  18,
			RPCURLs:           []string{"https://testnet-rpc.chiliz.com"},
			BlockExplorerURLs: []string{"https://testnet-explorer.chiliz.com"},
			Contract:          "0xbCE7457679913BD81Da8ba3106dF11191141E12D",
			MethodSignature:   "placePrediction(uint256,uint256)",
			AmountDecimals:    18,
		},
		Widget: WidgetConfig{
			TickInterval:       duration{time.Second},
			WalletPollInterval: duration{5 * time.Second},
			DuplicateWindow:    duration{3 * time.Second},
			ToastLifetime:      duration{3 * time.Second},
		},
		Server: ServerConfig{
			Enabled:     false,
			Host:        "127.0.0.1",
			Port:        8787,
			CORSOrigins: []string{"http://localhost:5173"},
		},
		Notify: NotifyConfig{
			Events: []string{"prediction_placed", "wallet_unavailable", "chain_failed", "submission_failed", "connection_lost"},
		},
		Mode:     "watch",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"watch": true,
	"serve": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: watch, serve)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// API
	if !isHTTPURL(c.API.BaseURL) {
		errs = append(errs, fmt.Sprintf("api: base_url must be an http(s) URL, got %q", c.API.BaseURL))
	}
	if c.API.BroadcastURL == "" {
		errs = append(errs, "api: broadcast_url must not be empty")
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, "api: timeout must be > 0")
	}

	// Stream
	if strings.TrimSpace(c.Stream.Channel) == "" {
		errs = append(errs, "stream: channel must not be empty")
	}
	switch strings.ToLower(c.Stream.PushTransport) {
	case "sse", "ws":
	default:
		errs = append(errs, fmt.Sprintf("stream: push_transport must be sse or ws, got %q", c.Stream.PushTransport))
	}
	if c.Stream.DefaultWindow.Duration <= 0 {
		errs = append(errs, "stream: default_window must be > 0")
	}

	// Fallback
	switch strings.ToLower(c.Fallback.Backend) {
	case "", "none":
	case "postgres":
		if strings.TrimSpace(c.Fallback.Postgres.DSN) == "" && c.Fallback.Postgres.Host == "" {
			errs = append(errs, "fallback.postgres: host must not be empty (or set dsn)")
		}
	case "redis":
		if c.Fallback.Redis.Addr == "" {
			errs = append(errs, "fallback.redis: addr must not be empty")
		}
		if c.Fallback.Redis.PoolSize < 1 {
			errs = append(errs, "fallback.redis: pool_size must be >= 1")
		}
	default:
		errs = append(errs, fmt.Sprintf("fallback: unknown backend %q (valid: none, postgres, redis)", c.Fallback.Backend))
	}

	// Wallet
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}
	if c.Wallet.DetectAttempts < 1 {
		errs = append(errs, "wallet: detect_attempts must be >= 1")
	}
	if c.Wallet.DetectInterval.Duration <= 0 {
		errs = append(errs, "wallet: detect_interval must be > 0")
	}
	if c.Wallet.TxTimeout.Duration <= 0 {
		errs = append(errs, "wallet: tx_timeout must be > 0")
	}

	// Chain
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	if !common.IsHexAddress(c.Chain.Contract) {
		errs = append(errs, fmt.Sprintf("chain: contract %q is not a 20-byte hex address", c.Chain.Contract))
	}
	if !strings.Contains(c.Chain.MethodSignature, "(") {
		errs = append(errs, fmt.Sprintf("chain: method_signature %q is not a function signature", c.Chain.MethodSignature))
	}
	if c.Chain.AmountDecimals < 0 || c.Chain.AmountDecimals > 36 {
		errs = append(errs, "chain: amount_decimals must be within 0-36")
	}

	// Widget
	if c.Widget.TickInterval.Duration <= 0 {
		errs = append(errs, "widget: tick_interval must be > 0")
	}
	if c.Widget.WalletPollInterval.Duration <= 0 {
		errs = append(errs, "widget: wallet_poll_interval must be > 0")
	}

	// Server
	if c.Server.Enabled || strings.EqualFold(c.Mode, "serve") {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		// The card routes sign transactions with the local key.
		if c.Wallet.HasKey() && strings.TrimSpace(c.Server.APIKey) == "" {
			errs = append(errs, "server: api_key is required when a wallet key is configured")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func isHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
