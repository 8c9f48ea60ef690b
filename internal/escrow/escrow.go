// Package escrow holds the pending fee state machine:
// pending -> cleared | cancelled | in dispute.
package escrow

import (
	"strings"
	"time"
	"unicode/utf8"

	apperrors "gigbook/internal/errors"
	"gigbook/internal/models"
	"gigbook/internal/payout"
)

const (
	MaxReasonLength  = 2000
	MaxDetailsLength = 5000
)

// Allocation is one user's part of a fee.
type Allocation struct {
	UserID string
	Amount int64
}

// Allocations splits fee by its payout snapshot, or gives it whole to the
// recipient when the performer has no split configured.
func Allocations(fee *models.PendingFee) []Allocation {
	cfg := fee.PayoutConfig
	if cfg == nil || len(cfg.Shares) == 0 {
		return []Allocation{{UserID: fee.RecipientUserID, Amount: fee.Amount}}
	}

	out := make([]Allocation, 0, len(cfg.Shares))
	for _, s := range cfg.Shares {
		out = append(out, Allocation{UserID: s.UserID, Amount: payout.ShareAmount(cfg.TotalFee, s.Percent)})
	}
	return out
}

// Cancel marks a pending fee cancelled. It reports false, changing nothing,
// for a fee in any other state.
func Cancel(fee *models.PendingFee, reason string, now time.Time) bool {
	if fee.Status != models.FeePending {
		return false
	}
	fee.Status = models.FeeCancelled
	fee.CancelledAt = &now
	fee.CancellationReason = reason
	fee.DisputeClearingTime = nil
	return true
}

// LogDispute freezes a pending fee. alreadyInDispute is true, with no
// change, when the fee was disputed before.
func LogDispute(fee *models.PendingFee, reason, details string) (alreadyInDispute bool, err error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return false, apperrors.InvalidArgument("a dispute reason is required")
	}

	switch fee.Status {
	case models.FeeInDispute:
		return true, nil
	case models.FeePending:
	default:
		return false, apperrors.FailedPrecondition("fee %s is %s and can no longer be disputed", fee.ID, fee.Status)
	}

	fee.Status = models.FeeInDispute
	fee.DisputeLogged = true
	fee.DisputeReason = truncate(reason, MaxReasonLength)
	fee.DisputeDetails = truncate(strings.TrimSpace(details), MaxDetailsLength)
	fee.DisputeClearingTime = nil
	return false, nil
}

// Due reports whether a pending, undisputed fee has passed its clearing time.
func Due(fee *models.PendingFee, now time.Time) bool {
	return fee.Status == models.FeePending &&
		!fee.DisputeLogged &&
		fee.DisputeClearingTime != nil &&
		!now.Before(*fee.DisputeClearingTime)
}

// Clear releases a due fee.
func Clear(fee *models.PendingFee, now time.Time) error {
	if fee.Status != models.FeePending {
		return apperrors.FailedPrecondition("fee %s is %s, not pending", fee.ID, fee.Status)
	}
	if fee.DisputeLogged {
		return apperrors.FailedPrecondition("fee %s is under dispute", fee.ID)
	}
	if !Due(fee, now) {
		return apperrors.FailedPrecondition("fee %s is still inside its clearing window", fee.ID)
	}
	fee.Status = models.FeeCleared
	fee.ClearedAt = &now
	return nil
}

func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}
