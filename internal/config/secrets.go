package config

// RedactedConfig returns a copy of cfg with credentials replaced by "***" so
// the active configuration can be logged safely.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Wallet.PrivateKey)
	redact(&out.Wallet.KeyPassword)
	redact(&out.Fallback.Postgres.DSN)
	redact(&out.Fallback.Postgres.Password)
	redact(&out.Fallback.Redis.Password)
	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)
	redact(&out.Server.APIKey)

	// Slices are shared by the shallow copy; clone the ones callers may edit.
	out.Notify.Events = cloneStrings(cfg.Notify.Events)
	out.Server.CORSOrigins = cloneStrings(cfg.Server.CORSOrigins)
	out.Chain.RPCURLs = cloneStrings(cfg.Chain.RPCURLs)
	out.Chain.BlockExplorerURLs = cloneStrings(cfg.Chain.BlockExplorerURLs)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}
