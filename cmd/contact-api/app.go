package main

import (
	"context"
	"fmt"
	"time"

	"contact-functions/internal/common/config"
	"contact-functions/internal/common/database"
	commonhttp "contact-functions/internal/common/http"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/ratelimit"
	"contact-functions/internal/common/sheets"
	notifyowner "contact-functions/internal/functions/notify-owner"
	submitcontact "contact-functions/internal/functions/submit-contact"
	"contact-functions/internal/server"

	"go.uber.org/zap"
)

// app holds the clients shared by every command.
type app struct {
	cfg      *config.Config
	zapLog   *zap.Logger
	log      logger.Logger
	location *time.Location
	ledger   *submitcontact.LedgerWriter
	redis    *database.RedisClient
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	log := logger.NewZapAdapter(zapLog).WithFields(map[string]interface{}{
		"service": cfg.App.Name,
	})

	location, err := time.LoadLocation(cfg.Ledger.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("load ledger time zone: %w", err)
	}

	httpClient := commonhttp.NewClient(config.GetDuration(cfg.Ledger.RequestTimeout))
	store, err := sheets.NewClient(ctx, cfg.Google.SheetID, sheets.Credentials{
		ProjectID:    cfg.Google.ProjectID,
		PrivateKeyID: cfg.Google.PrivateKeyID,
		PrivateKey:   cfg.Google.NormalizedPrivateKey(),
		ClientEmail:  cfg.Google.ClientEmail,
		ClientID:     cfg.Google.ClientID,
		TokenURI:     cfg.Google.TokenURI,
	}, httpClient, cfg.Google.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("google sheets client: %w", err)
	}

	return &app{
		cfg:      cfg,
		zapLog:   zapLog,
		log:      log,
		location: location,
		ledger:   submitcontact.NewLedgerWriter(store, log),
	}, nil
}

// submitHandler wires the optional limiter and notifier around the ledger.
func (a *app) submitHandler(ctx context.Context) (*submitcontact.Handler, error) {
	opts := submitcontact.HandlerOptions{
		AppConfig: a.cfg,
		Recorder:  a.ledger,
		Logger:    a.log,
	}

	if a.cfg.RateLimit.Enabled {
		var redis *database.RedisClient
		err := retryWithBackoff(ctx, func() error {
			var err error
			redis, err = database.NewRedis(a.cfg.Database.Redis)
			if err != nil {
				return err
			}
			return redis.Ping(ctx)
		}, 5, time.Second, a.log, "Redis connection")
		if err != nil {
			return nil, err
		}
		a.redis = redis

		limiter, err := ratelimit.NewLimiter(redis, a.cfg.RateLimit.MaxRequests, config.GetDuration(a.cfg.RateLimit.Window))
		if err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
		opts.Limiter = limiter
		a.log.Info("Rate limiting enabled", map[string]interface{}{
			"maxRequests": a.cfg.RateLimit.MaxRequests,
			"windowMs":    a.cfg.RateLimit.Window,
		})
	}

	if a.cfg.Notifications.Enabled() {
		notifier, err := notifyowner.NewService(ctx, notifyowner.ConfigFromAppConfig(a.cfg), a.log)
		if err != nil {
			return nil, fmt.Errorf("owner notifier: %w", err)
		}
		opts.Notifier = notifier
		a.log.Info("Owner notifications enabled", map[string]interface{}{
			"email": a.cfg.Notifications.Email.Enabled,
			"sms":   a.cfg.Notifications.SMS.Enabled,
		})
	}

	return submitcontact.NewHandler(opts)
}

func (a *app) readyChecks() map[string]server.ReadinessCheck {
	checks := map[string]server.ReadinessCheck{}
	if a.redis != nil {
		checks["redis"] = a.redis.Ping
	}
	return checks
}

func (a *app) Close() {
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.Warn("Error closing Redis client", map[string]interface{}{"error": err.Error()})
		}
	}
	_ = a.zapLog.Sync()
}
