package models

import (
	"tcs/src/types"
	"time"
)

type HoldItem struct {
	TicketTypeCode int `json:"ticket_type_code"`
	Quantity       int `json:"quantity"`
}

type Hold struct {
	ID        string           `json:"id"`
	UserID    uint             `json:"user_id,omitempty"`
	DateID    string           `json:"date_id"`
	Items     []HoldItem       `json:"items"`
	CreatedAt time.Time        `json:"created_at,omitempty"`
	ExpiresAt time.Time        `json:"expires_at,omitempty"`
	Status    types.HoldStatus `json:"status,omitempty"`
}

// HoldRequest is the per-date slice of a grouped cart, ready to be sent to
// the ticketing backend.
type HoldRequest struct {
	DateID string
	Items  []HoldItem
}
