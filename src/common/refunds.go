package common

import (
	"context"
	"fmt"
	"log"
	"tcs/src/lib"
	"tcs/src/lib/mailer"
	"tcs/src/models"
	"tcs/src/types"
	"time"
)

const (
	// A material change to an already-purchased event re-opens a
	// cancellation grace period of this length.
	refundOverrideWindow = 5 * 24 * time.Hour
	// Refunds may be requested up to this long after purchase.
	refundPurchaseWindow = 10 * 24 * time.Hour
	// No refunds once the event is this close.
	refundImminenceWindow = 48 * time.Hour
)

// EvaluateRefund decides whether a refund may be requested. It is a pure
// function of the purchase time, the event start, the event's last mutation
// and now. eventLastUpdatedAt may be nil when the event was never changed.
// Rule order matters: the override window is checked first and allows a
// refund regardless of the other rules.
func EvaluateRefund(purchasedAt, eventStartAt time.Time, eventLastUpdatedAt *time.Time, now time.Time) (types.RefundDecision, string) {
	if eventLastUpdatedAt != nil &&
		eventLastUpdatedAt.After(purchasedAt) &&
		now.Sub(*eventLastUpdatedAt) <= refundOverrideWindow {
		return types.REFUND_OVERRIDE_WINDOW, "the event changed after your purchase; cancellation is open for 5 days after the change"
	}
	if now.Sub(purchasedAt) > refundPurchaseWindow {
		return types.REFUND_BLOCKED_TOO_LATE, "refunds are only available within 10 days of purchase"
	}
	if eventStartAt.Sub(now) < refundImminenceWindow {
		return types.REFUND_BLOCKED_IMMINENT, "refunds close 48 hours before the event starts"
	}
	return types.REFUND_ELIGIBLE, ""
}

// RefundableEntries drops entries that are out of refund consideration
// entirely: already cancelled or already checked in, independent of timing.
func RefundableEntries(entries []models.TicketEntry) []models.TicketEntry {
	out := make([]models.TicketEntry, 0, len(entries))
	for _, entry := range entries {
		if entry.Status == types.ENTRY_CANCELED || entry.Status == types.ENTRY_CHECKEDIN {
			continue
		}
		out = append(out, entry)
	}
	return out
}

// RefundAmount is the sum of entry prices for the purchase.
func RefundAmount(entries []models.TicketEntry) float64 {
	total := 0.0
	for _, entry := range entries {
		total += entry.Price
	}
	return total
}

// RefundService evaluates eligibility and drives the refund flow against
// the ledger.
type RefundService struct {
	Ledger *lib.LedgerClient
	now    func() time.Time
}

func NewRefundService(ledger *lib.LedgerClient) *RefundService {
	return &RefundService{Ledger: ledger, now: time.Now}
}

// NewRefundServiceWithClock is for tests that need to steer time.
func NewRefundServiceWithClock(ledger *lib.LedgerClient, now func() time.Time) *RefundService {
	return &RefundService{Ledger: ledger, now: now}
}

// Eligibility evaluates a purchase fresh: entries and event times are read
// from the ledger each call, nothing is persisted here.
func (s *RefundService) Eligibility(ctx context.Context, purchaseID string) (types.RefundDecision, string, float64, error) {
	entries, err := s.Ledger.FetchEntries(ctx, purchaseID)
	if err != nil {
		return "", "", 0, err
	}
	refundable := RefundableEntries(entries)
	if len(refundable) == 0 {
		return "", "", 0, fmt.Errorf("no refundable entries for purchase %s", purchaseID)
	}
	eventTimes, err := s.Ledger.FetchEventTimes(ctx, purchaseID)
	if err != nil {
		return "", "", 0, err
	}
	decision, reason := EvaluateRefund(refundable[0].PurchasedAt, eventTimes.StartAt, eventTimes.LastUpdatedAt, s.now())
	return decision, reason, RefundAmount(refundable), nil
}

// Request runs the full flow: evaluate, file the refund with the ledger and
// send the confirmation mail. Blocked decisions come back as a decision
// value, not an error. The mail is best effort; a delivery failure never
// reverts the refund.
func (s *RefundService) Request(ctx context.Context, purchaseID, email string) (types.RefundDecision, string, *models.RefundResult, error) {
	decision, reason, amount, err := s.Eligibility(ctx, purchaseID)
	if err != nil {
		return "", "", nil, err
	}
	if decision != types.REFUND_ELIGIBLE && decision != types.REFUND_OVERRIDE_WINDOW {
		return decision, reason, nil, nil
	}
	result, err := s.Ledger.RequestRefund(ctx, purchaseID)
	if err != nil {
		return decision, reason, nil, err
	}
	if result.Amount == 0 {
		result.Amount = amount
	}
	if email != "" {
		go func() {
			input := &mailer.SendMailInput{
				To:      email,
				Subject: "Your refund request was received",
				Body:    fmt.Sprintf("We received your refund request for purchase %s. Amount: %.2f.", purchaseID, result.Amount),
			}
			if err := mailer.SendTransactional(input); err != nil {
				log.Printf("[refunds] notification mail failed for purchase %s: %s\n", purchaseID, err.Error())
			}
		}()
	}
	return decision, reason, result, nil
}
