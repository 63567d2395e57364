package config

import "maps"

// RedactedConfig returns a copy of cfg with sensitive fields replaced by the
// redaction placeholder "***". Use this when logging or printing the active
// configuration so secrets are never accidentally exposed.
func RedactedConfig(cfg *Config) Config {
	out := *cfg

	redact(&out.Kalshi.ApiKey)
	redact(&out.Kalshi.KeyPassword)

	redact(&out.Postgres.DSN)
	redact(&out.Redis.Password)

	redact(&out.S3.AccessKey)
	redact(&out.S3.SecretKey)

	redact(&out.Notify.TelegramToken)
	redact(&out.Notify.DiscordWebhookURL)

	// Copy slices and maps so callers cannot mutate the original through the
	// redacted copy.
	out.Series = append([]SeriesConfig(nil), cfg.Series...)
	out.Reference.Sources = append([]string(nil), cfg.Reference.Sources...)
	out.Notify.Events = append([]string(nil), cfg.Notify.Events...)
	out.Pricing.Volatility = maps.Clone(cfg.Pricing.Volatility)
	out.Reference.Coinbase.SymbolMap = maps.Clone(cfg.Reference.Coinbase.SymbolMap)
	out.Reference.Kraken.SymbolMap = maps.Clone(cfg.Reference.Kraken.SymbolMap)
	out.Reference.Binance.SymbolMap = maps.Clone(cfg.Reference.Binance.SymbolMap)

	return out
}

const redacted = "***"

// redact replaces a non-empty string with the redacted placeholder.
func redact(s *string) {
	if *s != "" {
		*s = redacted
	}
}
