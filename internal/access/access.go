// Package access gates inbound calls on the (API key, referer) pair and
// its monthly quota.
package access

import (
	"context"

	"apigateway/internal/models"

	"go.uber.org/zap"
)

// RefererStore looks up active referer records.
type RefererStore interface {
	GetActiveReferer(ctx context.Context, apiKey, referer string) (*models.Referer, error)
}

// QuotaCounter atomically checks and advances a referer's monthly count.
type QuotaCounter interface {
	Allow(ctx context.Context, refererID int, limit int64) (bool, int64, error)
}

type Verifier struct {
	referers RefererStore
	quota    QuotaCounter
	logger   *zap.Logger
}

func NewVerifier(referers RefererStore, quota QuotaCounter, logger *zap.Logger) *Verifier {
	return &Verifier{
		referers: referers,
		quota:    quota,
		logger:   logger,
	}
}

// Verify reports whether the caller identified by apiKey and referer may
// proceed. It fails closed: unknown pairs, non-active pairs, exhausted
// quotas and store errors all deny, with no distinction surfaced to the
// caller.
func (v *Verifier) Verify(ctx context.Context, apiKey, referer string) bool {
	if apiKey == "" || referer == "" {
		return false
	}

	rec, err := v.referers.GetActiveReferer(ctx, apiKey, referer)
	if err != nil {
		v.logger.Debug("referer lookup failed",
			zap.String("referer", referer),
			zap.Error(err),
		)
		return false
	}

	allowed, count, err := v.quota.Allow(ctx, rec.ID, rec.MonthlyLimit)
	if err != nil {
		v.logger.Error("quota check failed",
			zap.Int("referer_id", rec.ID),
			zap.Error(err),
		)
		return false
	}

	if !allowed {
		v.logger.Info("monthly limit exceeded",
			zap.Int("referer_id", rec.ID),
			zap.Int64("limit", rec.MonthlyLimit),
			zap.Int64("count", count),
		)
	}

	return allowed
}
