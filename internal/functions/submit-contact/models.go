package submitcontact

import (
	"context"

	"contact-functions/internal/common/ratelimit"
	"contact-functions/internal/models"
)

// SuccessMessage is returned once the inquiry is in the ledger.
const SuccessMessage = "Inquiry submitted successfully!"

// Input is a validated submission. Values keep the submitter's whitespace.
type Input struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Message string `json:"message"`
}

type Output struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Recorder persists an inquiry into the partition for year.
type Recorder interface {
	Append(ctx context.Context, record models.InquiryRecord, year string) error
}

// RateLimiter decides whether a client may submit now.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (ratelimit.Result, error)
}

// Notifier tells the site owner about a recorded inquiry.
type Notifier interface {
	Notify(ctx context.Context, record models.InquiryRecord) (*models.OwnerNotification, error)
}
