// Package admission gates costly operations on the caller's quota.
package admission

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/abhisek-1221/korai-sub001/internal/quota"
)

var (
	// ErrUnauthenticated is returned when no user identity accompanies a call.
	ErrUnauthenticated = errors.New("admission: caller is not authenticated")
	// ErrUnavailable is returned when the quota ledger cannot be consulted.
	// Calls are rejected rather than admitted unmetered.
	ErrUnavailable = errors.New("admission: quota ledger unavailable")
)

// QuotaExceededError carries the decision of a rejected call.
type QuotaExceededError struct {
	Class    quota.Class
	Decision quota.Decision
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("quota exceeded for %s: limit %d, resets at %s",
		e.Class, e.Decision.Limit, e.Decision.ResetAt.UTC().Format("2006-01-02T15:04:05Z07:00"))
}

// Ledger is the quota operation the controller needs.
type Ledger interface {
	Admit(ctx context.Context, userID string, class quota.Class) (quota.Decision, error)
}

// Controller admits or rejects calls per user and class.
type Controller struct {
	ledger Ledger
	log    logrus.FieldLogger
}

// NewController creates a controller over ledger.
func NewController(ledger Ledger, log logrus.FieldLogger) *Controller {
	return &Controller{ledger: ledger, log: log}
}

// Admit consumes one unit of class for userID. The returned error is
// ErrUnauthenticated, a *QuotaExceededError, ErrUnavailable, or
// quota.ErrUnknownClass; on error nothing downstream should run.
func (c *Controller) Admit(ctx context.Context, userID string, class quota.Class) (quota.Decision, error) {
	if strings.TrimSpace(userID) == "" {
		return quota.Decision{}, ErrUnauthenticated
	}

	d, err := c.ledger.Admit(ctx, userID, class)
	if err != nil {
		if errors.Is(err, quota.ErrUnknownClass) {
			return quota.Decision{}, err
		}
		c.log.WithFields(logrus.Fields{"user_id": userID, "class": class}).
			WithError(err).Error("Quota ledger unavailable, rejecting call")
		return quota.Decision{}, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}

	if !d.Allowed {
		c.log.WithFields(logrus.Fields{
			"user_id":  userID,
			"class":    class,
			"limit":    d.Limit,
			"reset_at": d.ResetAt,
		}).Info("Quota exceeded")
		return d, &QuotaExceededError{Class: class, Decision: d}
	}
	return d, nil
}
