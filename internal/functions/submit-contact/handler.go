package submitcontact

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"sync"
	"time"

	"contact-functions/internal/common/config"
	"contact-functions/internal/common/cors"
	"contact-functions/internal/common/errors"
	"contact-functions/internal/common/logger"
	"contact-functions/internal/common/metrics"
	"contact-functions/internal/models"
)

const FunctionName = "submit-contact"

// Handler serves the contact form endpoint. Every request gets exactly one
// response; the owner notification runs after the response is written.
type Handler struct {
	config       *Config
	logger       logger.Logger
	origins      *cors.AllowList
	recorder     Recorder
	limiter      RateLimiter
	notifier     Notifier
	errorHandler *errors.ErrorHandler
	now          func() time.Time
	pending      sync.WaitGroup
}

type HandlerOptions struct {
	AppConfig    *config.Config
	CustomConfig *Config
	Recorder     Recorder
	Limiter      RateLimiter
	Notifier     Notifier
	Logger       logger.Logger
	Now          func() time.Time
}

func NewHandler(opts HandlerOptions) (*Handler, error) {
	handlerConfig, err := createConfigFromAppConfig(opts.AppConfig, opts.CustomConfig)
	if err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", FunctionName, err)
	}
	if err := handlerConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration for %s: %w", FunctionName, err)
	}
	if opts.Recorder == nil {
		return nil, fmt.Errorf("%s requires a ledger recorder", FunctionName)
	}

	var loggerInstance logger.Logger
	if opts.Logger != nil {
		loggerInstance = opts.Logger
	} else {
		loggerInstance = logger.NewStructured("info", "json")
	}
	loggerInstance = loggerInstance.WithFields(map[string]interface{}{"function": FunctionName})

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &Handler{
		config:       handlerConfig,
		logger:       loggerInstance,
		origins:      cors.NewAllowList(handlerConfig.AllowedOrigins),
		recorder:     opts.Recorder,
		limiter:      opts.Limiter,
		notifier:     opts.Notifier,
		errorHandler: errors.NewErrorHandler(loggerInstance),
		now:          now,
	}, nil
}

// Path is the route the handler expects to be mounted on.
func (h *Handler) Path() string {
	return h.config.Path
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.origins.Apply(w.Header(), r.Header.Get("Origin"))

	switch r.Method {
	case http.MethodOptions:
		w.WriteHeader(http.StatusOK)
		return
	case http.MethodPost:
	default:
		metrics.SubmissionsTotal.WithLabelValues("method_not_allowed").Inc()
		h.errorHandler.HandleHTTPError(w, r, errors.NewMethodNotAllowedError(r.Method))
		return
	}

	if err := h.checkRateLimit(r); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("rate_limited").Inc()
		h.errorHandler.HandleHTTPError(w, r, err)
		return
	}

	input, err := h.parseInput(w, r)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues("invalid").Inc()
		h.errorHandler.HandleHTTPError(w, r, err)
		return
	}

	at := h.now().In(h.config.Location)
	record := h.buildRecord(input, at)
	year := at.Format("2006")

	ctx, cancel := context.WithTimeout(r.Context(), h.config.Timeout)
	defer cancel()

	if err := h.recorder.Append(ctx, record, year); err != nil {
		metrics.SubmissionsTotal.WithLabelValues("failed").Inc()
		h.errorHandler.HandleHTTPError(w, r, asLedgerError(err))
		return
	}

	metrics.SubmissionsTotal.WithLabelValues("accepted").Inc()
	h.logger.Info("Inquiry recorded", map[string]interface{}{
		"partition": year,
	})

	errors.WriteJSON(w, http.StatusOK, &Output{Success: true, Message: SuccessMessage})

	h.dispatchNotification(record)
}

// Wait blocks until in-flight owner notifications finish.
func (h *Handler) Wait() {
	h.pending.Wait()
}

func (h *Handler) checkRateLimit(r *http.Request) error {
	if h.limiter == nil {
		return nil
	}

	key := clientIP(r, h.config.TrustedProxies)
	result, err := h.limiter.Allow(r.Context(), key)
	if err != nil {
		h.logger.Warn("Rate limiter unavailable, allowing request", map[string]interface{}{
			"error": err.Error(),
		})
		return nil
	}
	if !result.Allowed {
		return errors.NewRateLimitedError(result.RetryAfter)
	}
	return nil
}

func (h *Handler) parseInput(w http.ResponseWriter, r *http.Request) (*Input, error) {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return nil, errors.NewBodyTooLargeError(tooLarge.Limit)
		}
		return nil, errors.NewInvalidJSONError(err)
	}

	body, err := DecodeBody(raw)
	if err != nil {
		return nil, err
	}
	return ValidateInput(body)
}

func (h *Handler) buildRecord(input *Input, at time.Time) models.InquiryRecord {
	return models.InquiryRecord{
		SubmittedAt: at.Format(h.config.DateLayout),
		Status:      models.StatusNewInquiry,
		Name:        input.Name,
		Phone:       input.Phone,
		Email:       input.Email,
		Message:     input.Message,
	}
}

func (h *Handler) dispatchNotification(record models.InquiryRecord) {
	if h.notifier == nil {
		return
	}

	h.pending.Add(1)
	go func() {
		defer h.pending.Done()

		ctx, cancel := context.WithTimeout(context.Background(), h.config.NotifyTimeout)
		defer cancel()

		notification, err := h.notifier.Notify(ctx, record)
		if err != nil {
			h.logger.Warn("Owner notification failed", map[string]interface{}{
				"error": err.Error(),
			})
			return
		}
		if notification != nil {
			h.logger.Debug("Owner notified", map[string]interface{}{
				"notificationId": notification.ID,
				"status":         notification.Status,
			})
		}
	}()
}

// asLedgerError keeps ledger failures as they are and wraps anything else
// so the client still sees the store message.
func asLedgerError(err error) error {
	if stderrors.Is(err, errors.ErrLedgerWriteFailed) {
		return err
	}
	return errors.NewLedgerWriteFailedError("append", err.Error(), err)
}

// clientIP keys the rate limiter. Forwarding headers are only read when the
// peer is a trusted proxy; the X-Forwarded-For chain is walked from the
// right and the first untrusted hop is the client.
func clientIP(r *http.Request, trusted []netip.Prefix) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !isTrustedProxy(peer, trusted) {
		return peer
	}

	if values := r.Header.Values("X-Forwarded-For"); len(values) > 0 {
		var hops []string
		for _, hop := range strings.Split(strings.Join(values, ","), ",") {
			if hop = strings.TrimSpace(hop); hop != "" {
				hops = append(hops, hop)
			}
		}
		for i := len(hops) - 1; i >= 0; i-- {
			if !isTrustedProxy(hops[i], trusted) {
				return hops[i]
			}
		}
		if len(hops) > 0 {
			return hops[0]
		}
	}
	if xrip := strings.TrimSpace(r.Header.Get("X-Real-IP")); xrip != "" {
		return xrip
	}
	return peer
}

func isTrustedProxy(host string, trusted []netip.Prefix) bool {
	if len(trusted) == 0 {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range trusted {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
