package models

// Selection resolves a cart selection key to the date, ticket type and unit
// price it stands for. The index is owned by the catalog repository.
type Selection struct {
	DateID         string  `json:"date_id"`
	TicketTypeCode int     `json:"ticket_type_code"`
	UnitPrice      float64 `json:"unit_price"`
}
