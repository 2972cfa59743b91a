package config

import (
	"os"
	"strconv"
	"time"
)

// HOLD_TTL is the fixed window a hold stays valid before automatic expiry.
const HOLD_TTL = 10 * time.Minute

const TIME_PARSE_FORMAT = "2006-01-02 15:04:05 -07:00"

func GetBackendBaseURL() string {
	return os.Getenv("TICKETING_BACKEND_URL")
}

func GetGatewayBaseURL() string {
	return os.Getenv("PAYMENT_GATEWAY_URL")
}

func GetReturnBaseURL() string {
	return os.Getenv("PAYMENT_RETURN_URL")
}

func GetServiceFeeRate() float64 {
	rateEnv := os.Getenv("SERVICE_FEE_RATE")
	rate, err := strconv.ParseFloat(rateEnv, 64)
	if err != nil || rate < 0 {
		return 0.1
	}
	return rate
}
