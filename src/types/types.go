package types

import (
	"time"
)

type JSONB map[string]any

type HoldStatus string

const (
	HOLD_ACTIVE   HoldStatus = "active"
	HOLD_SETTLED  HoldStatus = "settled"
	HOLD_EXPIRED  HoldStatus = "expired"
	HOLD_CANCELED HoldStatus = "canceled"
)

type AttemptStatus string

const (
	ATTEMPT_RUNNING       AttemptStatus = "running"
	ATTEMPT_SETTLED       AttemptStatus = "settled"
	ATTEMPT_EXPIRED       AttemptStatus = "expired"
	ATTEMPT_USER_CANCELED AttemptStatus = "user_canceled"
)

type EntryStatus string

const (
	ENTRY_PENDING   EntryStatus = "pending"
	ENTRY_SETTLED   EntryStatus = "settled"
	ENTRY_CANCELED  EntryStatus = "canceled"
	ENTRY_CHECKEDIN EntryStatus = "checked_in"
)

type RefundDecision string

const (
	REFUND_ELIGIBLE         RefundDecision = "eligible"
	REFUND_BLOCKED_TOO_LATE RefundDecision = "blocked_too_late"
	REFUND_BLOCKED_IMMINENT RefundDecision = "blocked_event_imminent"
	REFUND_OVERRIDE_WINDOW  RefundDecision = "override_window"
)

type CartSelection struct {
	Key string `json:"key" binding:"required"`
	Qty int    `json:"qty"`
}

type CreateHoldsRequestBody struct {
	UserID uint            `json:"user_id" binding:"required"`
	Items  []CartSelection `json:"items" binding:"required,min=1,positivecart"`
}

type SimpleRequestParams struct {
	ID string `uri:"id" binding:"required"`
}

type CreatePaymentResponseBody struct {
	AttemptID   string  `json:"attempt_id"`
	CheckoutURL string  `json:"checkout_url"`
	Subtotal    float64 `json:"subtotal"`
	ServiceFee  float64 `json:"service_fee"`
}

type AttemptStatusResponseBody struct {
	AttemptID        string        `json:"attempt_id"`
	Status           AttemptStatus `json:"status"`
	RemainingSeconds int           `json:"remaining_seconds"`
	ExpiresAt        time.Time     `json:"expires_at"`
	Notice           string        `json:"notice,omitempty"`
}

type RefundEligibilityResponseBody struct {
	PurchaseID string         `json:"purchase_id"`
	Decision   RefundDecision `json:"decision"`
	Reason     string         `json:"reason,omitempty"`
	Amount     float64        `json:"amount"`
}
