package notifyowner

import (
	"fmt"
	"time"

	"contact-functions/internal/common/config"
)

type Config struct {
	EmailEnabled bool
	SMSEnabled   bool
	FromEmail    string
	ToEmail      string
	PhoneNumber  string
	AWSRegion    string
	Timeout      time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		AWSRegion: "us-east-1",
		Timeout:   10 * time.Second,
	}
}

// ConfigFromAppConfig maps the notifications section onto a Config.
func ConfigFromAppConfig(appConfig *config.Config) *Config {
	cfg := DefaultConfig()
	if appConfig == nil {
		return cfg
	}

	n := appConfig.Notifications
	cfg.EmailEnabled = n.Email.Enabled
	cfg.FromEmail = n.Email.FromEmail
	cfg.ToEmail = n.Email.ToEmail
	cfg.SMSEnabled = n.SMS.Enabled
	cfg.PhoneNumber = n.SMS.PhoneNumber
	if n.AWS.Region != "" {
		cfg.AWSRegion = n.AWS.Region
	}
	if n.Timeout > 0 {
		cfg.Timeout = config.GetDuration(n.Timeout)
	}
	return cfg
}

func (c *Config) Enabled() bool {
	return c.EmailEnabled || c.SMSEnabled
}

func (c *Config) Validate() error {
	if c.EmailEnabled && (c.FromEmail == "" || c.ToEmail == "") {
		return fmt.Errorf("email notifications require from_email and to_email")
	}
	if c.SMSEnabled && c.PhoneNumber == "" {
		return fmt.Errorf("sms notifications require phone_number")
	}
	if c.Enabled() && c.AWSRegion == "" {
		return fmt.Errorf("aws region is required")
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
