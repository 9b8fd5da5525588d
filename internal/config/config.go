package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	SMSWebhookURL   string `env:"SMS_WEBHOOK_URL"`
	EmailWebhookURL string `env:"EMAIL_WEBHOOK_URL"`

	BoberdooURL            string `env:"BOBERDOO_URL"`
	BoberdooVendorID       string `env:"BOBERDOO_VENDOR_ID"`
	BoberdooVendorPassword string `env:"BOBERDOO_VENDOR_PASSWORD"`
	DealerWebhookURL       string `env:"DEALER_WEBHOOK_URL"`

	ReturnBaseURL string `env:"RETURN_BASE_URL,default=https://apply.dealerlink.io/resume"`

	Environment         string `env:"ENVIRONMENT,default=production"`
	DetectIntervalSec   int    `env:"DETECT_INTERVAL_SEC"`
	OutreachIntervalSec int    `env:"OUTREACH_INTERVAL_SEC,default=120"`
	AbandonThresholdMin int    `env:"ABANDON_THRESHOLD_MIN,default=30"`
	ReturnTokenTTLHours int    `env:"RETURN_TOKEN_TTL_HOURS,default=72"`
	DispatchRatePerSec  int    `env:"DISPATCH_RATE_PER_SEC,default=10"`
	SubmitMaxAttempts   int    `env:"SUBMIT_MAX_ATTEMPTS,default=3"`
	ScanLimit           int    `env:"SCAN_LIMIT,default=500"`
	APIPort             int    `env:"API_PORT,default=8080"`
	LogLevel            string `env:"LOG_LEVEL,default=info"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	// go-env treats a present-but-empty variable as satisfying required=true,
	// so blank secrets have to be rejected here.
	if strings.TrimSpace(cfg.DatabaseDSN) == "" {
		return nil, fmt.Errorf("DATABASE_DSN must not be empty")
	}
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, fmt.Errorf("REDIS_URL must not be empty")
	}
	return &cfg, nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// DetectInterval returns the detector scan interval. Non-production
// environments scan far more often so abandonment shows up quickly during
// manual testing.
func (c *Config) DetectInterval() time.Duration {
	if c.DetectIntervalSec > 0 {
		return time.Duration(c.DetectIntervalSec) * time.Second
	}
	if c.IsProduction() {
		return 15 * time.Minute
	}
	return time.Minute
}

func (c *Config) OutreachInterval() time.Duration {
	return time.Duration(c.OutreachIntervalSec) * time.Second
}

func (c *Config) AbandonThreshold() time.Duration {
	return time.Duration(c.AbandonThresholdMin) * time.Minute
}

func (c *Config) ReturnTokenTTL() time.Duration {
	return time.Duration(c.ReturnTokenTTLHours) * time.Hour
}

// BoberdooConfigured reports whether the marketplace integration has all the
// credentials it needs. When false the pipeline goes straight to the dealer
// fallback.
func (c *Config) BoberdooConfigured() bool {
	return strings.TrimSpace(c.BoberdooURL) != "" &&
		strings.TrimSpace(c.BoberdooVendorID) != "" &&
		strings.TrimSpace(c.BoberdooVendorPassword) != ""
}
