package models

// PaymentIntent is created once per purchase attempt. HoldSetID is the
// settlement key: the id of the last hold created for the attempt. The
// struct is immutable once the external checkout has been opened.
type PaymentIntent struct {
	HoldSetID   string  `json:"hold_set_id"`
	Subtotal    float64 `json:"subtotal"`
	ServiceFee  float64 `json:"service_fee"`
	ReturnURL   string  `json:"return_url"`
	CheckoutURL string  `json:"checkout_url"`
}
