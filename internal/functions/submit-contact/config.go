package submitcontact

import (
	"fmt"
	"net/netip"
	"time"

	"contact-functions/internal/common/config"
)

type Config struct {
	Path           string
	MaxBodyBytes   int64
	DateLayout     string
	Location       *time.Location
	Timeout        time.Duration
	NotifyTimeout  time.Duration
	AllowedOrigins []string
	TrustedProxies []netip.Prefix
}

func DefaultConfig() *Config {
	return &Config{
		Path:           "/api/submit-contact",
		MaxBodyBytes:   64 << 10,
		DateLayout:     "01-02-2006",
		Location:       time.Local,
		Timeout:        30 * time.Second,
		NotifyTimeout:  10 * time.Second,
		AllowedOrigins: config.DefaultAllowedOrigins,
	}
}

func (c *Config) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("path is required")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("max_body_bytes must be positive")
	}
	if c.DateLayout == "" {
		return fmt.Errorf("date_layout is required")
	}
	if c.Location == nil {
		return fmt.Errorf("location is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}

// createConfigFromAppConfig starts from the defaults, applies the
// application config and then any explicit override.
func createConfigFromAppConfig(appConfig *config.Config, custom *Config) (*Config, error) {
	if custom != nil {
		return custom, nil
	}

	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg, nil
	}

	if appConfig.Server.SubmitPath != "" {
		cfg.Path = appConfig.Server.SubmitPath
	}
	if appConfig.Server.MaxBodyBytes > 0 {
		cfg.MaxBodyBytes = appConfig.Server.MaxBodyBytes
	}
	if appConfig.Ledger.DateLayout != "" {
		cfg.DateLayout = appConfig.Ledger.DateLayout
	}
	if appConfig.Ledger.TimeZone != "" {
		loc, err := time.LoadLocation(appConfig.Ledger.TimeZone)
		if err != nil {
			return nil, fmt.Errorf("load time zone %q: %w", appConfig.Ledger.TimeZone, err)
		}
		cfg.Location = loc
	}
	if appConfig.Ledger.RequestTimeout > 0 {
		cfg.Timeout = config.GetDuration(appConfig.Ledger.RequestTimeout)
	}
	if appConfig.Notifications.Timeout > 0 {
		cfg.NotifyTimeout = config.GetDuration(appConfig.Notifications.Timeout)
	}
	if len(appConfig.CORS.AllowedOrigins) > 0 {
		cfg.AllowedOrigins = appConfig.CORS.AllowedOrigins
	}
	for _, proxy := range appConfig.Server.TrustedProxies {
		prefix, err := config.ParseTrustedProxy(proxy)
		if err != nil {
			return nil, err
		}
		cfg.TrustedProxies = append(cfg.TrustedProxies, prefix)
	}

	return cfg, nil
}
