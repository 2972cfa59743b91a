package models

import (
	"tcs/src/types"
	"time"
)

// TicketEntry is the read-side record of a settled ticket. It is owned by
// the external ledger; this service only reads and classifies it.
type TicketEntry struct {
	ID             string            `json:"id"`
	DateID         string            `json:"date_id"`
	TicketTypeCode int               `json:"ticket_type_code"`
	Price          float64           `json:"price"`
	PurchaseID     string            `json:"purchase_id"`
	PurchasedAt    time.Time         `json:"purchased_at"`
	Status         types.EntryStatus `json:"status"`
}

// EventTimes carries the event-side timestamps the refund evaluator needs.
type EventTimes struct {
	StartAt       time.Time  `json:"start_at"`
	LastUpdatedAt *time.Time `json:"last_updated_at,omitempty"`
}

type RefundResult struct {
	OK     bool    `json:"ok"`
	Amount float64 `json:"amount,omitempty"`
	Reason string  `json:"reason,omitempty"`
}
