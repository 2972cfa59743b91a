package utils

import (
	"fmt"
	"math"
	"os"
	"tcs/src/config"
)

func IsProd() bool {
	return os.Getenv("API_ENV") == "production"
}

// ComputeServiceFee applies the configured fee rate to a subtotal, rounded
// to cents.
func ComputeServiceFee(subtotal float64) float64 {
	fee := subtotal * config.GetServiceFeeRate()
	return math.Round(fee*100) / 100
}

// BuildReturnURL is the deep link the gateway redirects back to after
// checkout, carrying the purchase id for correlation.
func BuildReturnURL(purchaseID string) string {
	return fmt.Sprintf("%s?purchaseId=%s", config.GetReturnBaseURL(), purchaseID)
}
