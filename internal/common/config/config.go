// internal/common/config/config.go
package config

import "strings"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	CORS          CORSConfig         `mapstructure:"cors"`
	Ledger        LedgerConfig       `mapstructure:"ledger"`
	Google        GoogleConfig       `mapstructure:"google"`
	RateLimit     RateLimitConfig    `mapstructure:"rate_limit"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	SubmitPath      string `mapstructure:"submit_path"`
	ReadTimeout     int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout    int    `mapstructure:"write_timeout"`    // milliseconds
	IdleTimeout     int    `mapstructure:"idle_timeout"`     // milliseconds
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"` // milliseconds
	MaxBodyBytes    int64  `mapstructure:"max_body_bytes"`

	// TrustedProxies are addresses or CIDRs whose X-Forwarded-For and
	// X-Real-IP headers are believed. Empty means the peer address is used.
	TrustedProxies []string `mapstructure:"trusted_proxies"`
}

// CORSConfig lists the front-end origins allowed to read responses.
type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// LedgerConfig controls how inquiries are laid out in the spreadsheet.
type LedgerConfig struct {
	DateLayout     string `mapstructure:"date_layout"`
	TimeZone       string `mapstructure:"time_zone"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

// GoogleConfig holds the service-account credential and the target spreadsheet.
type GoogleConfig struct {
	SheetID      string `mapstructure:"sheet_id"`
	ProjectID    string `mapstructure:"project_id"`
	PrivateKeyID string `mapstructure:"private_key_id"`
	PrivateKey   string `mapstructure:"private_key"`
	ClientEmail  string `mapstructure:"client_email"`
	ClientID     string `mapstructure:"client_id"`
	TokenURI     string `mapstructure:"token_uri"`
	Endpoint     string `mapstructure:"endpoint"` // override for tests and emulators
}

// NormalizedPrivateKey restores newlines in keys that were stored with
// literal "\n" sequences (the usual shape in hosted env vars).
func (g GoogleConfig) NormalizedPrivateKey() string {
	return strings.ReplaceAll(g.PrivateKey, `\n`, "\n")
}

type RateLimitConfig struct {
	Enabled     bool `mapstructure:"enabled"`
	MaxRequests int  `mapstructure:"max_requests"`
	Window      int  `mapstructure:"window"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NotificationConfig holds settings for the owner notifier.
type NotificationConfig struct {
	Timeout int `mapstructure:"timeout"` // milliseconds
	Email   struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
		ToEmail   string `mapstructure:"to_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled     bool   `mapstructure:"enabled"`
		PhoneNumber string `mapstructure:"phone_number"`
	} `mapstructure:"sms"`
	AWS struct {
		Region string `mapstructure:"region"`
	} `mapstructure:"aws"`
}

// Enabled reports whether any notification channel is switched on.
func (n NotificationConfig) Enabled() bool {
	return n.Email.Enabled || n.SMS.Enabled
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
