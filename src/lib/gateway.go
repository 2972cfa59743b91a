package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"tcs/src/config"
	"tcs/src/models"
	"tcs/src/types"
	"time"

	"github.com/tidwall/gjson"
)

// GatewayError carries enough of the failed exchange for the caller to show
// a diagnosable message instead of a generic failure.
type GatewayError struct {
	Op       string
	Status   int
	Body     string
	Attempts int
}

func (e *GatewayError) Error() string {
	if e.Attempts > 0 {
		return fmt.Sprintf("gateway %s failed after %d attempts: status=%d body=%s", e.Op, e.Attempts, e.Status, e.Body)
	}
	return fmt.Sprintf("gateway %s failed: status=%d body=%s", e.Op, e.Status, e.Body)
}

// GatewayClient talks to the payment gateway. The gateway's request and
// response shapes have drifted across environments, so both directions are
// handled defensively: responses go through an ordered extractor chain and
// confirm requests are probed over a candidate matrix.
type GatewayClient struct {
	BaseURL string
	HTTP    *http.Client
}

var gatewayClient *GatewayClient

func GetGatewayClient() *GatewayClient {
	if gatewayClient != nil {
		return gatewayClient
	}
	c := &GatewayClient{
		BaseURL: config.GetGatewayBaseURL(),
		HTTP:    &http.Client{Timeout: 20 * time.Second},
	}
	gatewayClient = c
	return c
}

// NewGatewayClient Replace gateway instance with custom client implementation
func NewGatewayClient(c *GatewayClient) *GatewayClient {
	gatewayClient = c
	return gatewayClient
}

// checkoutURLExtractors are tried in order against a create-payment response.
// Known shapes: a top-level url field, a "body" field that may itself be a
// JSON object or a double-encoded JSON string, and a nested "preference"
// object.
var checkoutURLExtractors = []func(raw []byte) string{
	func(raw []byte) string {
		for _, path := range []string{"checkoutUrl", "checkout_url", "init_point"} {
			if v := gjson.GetBytes(raw, path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	},
	func(raw []byte) string {
		body := gjson.GetBytes(raw, "body")
		if !body.Exists() {
			return ""
		}
		inner := body.Raw
		if body.Type == gjson.String {
			// Double-encoded: the body field holds a JSON document as a string.
			inner = body.String()
		}
		for _, path := range []string{"checkoutUrl", "checkout_url", "init_point"} {
			if v := gjson.Get(inner, path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	},
	func(raw []byte) string {
		pref := gjson.GetBytes(raw, "preference")
		if !pref.Exists() {
			return ""
		}
		for _, path := range []string{"init_point", "checkoutUrl", "checkout_url", "sandbox_init_point"} {
			if v := pref.Get(path); v.Exists() && v.String() != "" {
				return v.String()
			}
		}
		return ""
	},
}

// CreatePayment opens a payment intent for a hold set and returns the
// external checkout URL the user is redirected to.
func (c *GatewayClient) CreatePayment(ctx context.Context, intent models.PaymentIntent) (string, error) {
	payload := types.JSONB{
		"hold_id":     intent.HoldSetID,
		"subtotal":    intent.Subtotal,
		"service_fee": intent.ServiceFee,
		"return_url":  intent.ReturnURL,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	endpoint := fmt.Sprintf("%s/api/payments", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return "", &GatewayError{Op: "create", Status: res.StatusCode, Body: string(raw)}
	}
	for _, extract := range checkoutURLExtractors {
		if u := extract(raw); u != "" {
			return u, nil
		}
	}
	return "", &GatewayError{Op: "create", Status: res.StatusCode, Body: string(raw)}
}

type confirmProbe struct {
	Method string
	Path   string
	Key    string
}

var confirmPaths = []string{"/api/payments/confirm", "/api/payment/confirm"}
var confirmKeys = []string{"IdPagoMP", "idPagoMP", "payment_id"}

// confirmProbes builds the ordered candidate list. POST body variants go
// first, then GET query variants, each walking path aliases and key casings.
func confirmProbes() []confirmProbe {
	probes := make([]confirmProbe, 0, 2*len(confirmPaths)*len(confirmKeys))
	for _, method := range []string{http.MethodPost, http.MethodGet} {
		for _, path := range confirmPaths {
			for _, key := range confirmKeys {
				probes = append(probes, confirmProbe{Method: method, Path: path, Key: key})
			}
		}
	}
	return probes
}

// ConfirmPayment settles a gateway payment. Which (method, path, key casing)
// combination the gateway accepts is not known up front, so the candidates
// are tried in order and the first 2xx wins. Confirm is idempotent on the
// gateway side, so repeating a variant that already landed is safe.
func (c *GatewayClient) ConfirmPayment(ctx context.Context, paymentID string) error {
	probes := confirmProbes()
	lastStatus := 0
	lastBody := ""
	attempts := 0
	for _, p := range probes {
		attempts++
		status, body, err := c.tryConfirm(ctx, p, paymentID)
		if err != nil {
			log.Printf("[gateway] confirm attempt %d (%s %s %s) error: %s\n", attempts, p.Method, p.Path, p.Key, err.Error())
			lastStatus = 0
			lastBody = err.Error()
			continue
		}
		if status >= 200 && status < 300 {
			log.Printf("[gateway] payment %s confirmed after %d attempt(s)\n", paymentID, attempts)
			return nil
		}
		lastStatus = status
		lastBody = body
	}
	return &GatewayError{Op: "confirm", Status: lastStatus, Body: lastBody, Attempts: attempts}
}

func (c *GatewayClient) tryConfirm(ctx context.Context, p confirmProbe, paymentID string) (int, string, error) {
	var req *http.Request
	var err error
	switch p.Method {
	case http.MethodPost:
		payload := types.JSONB{p.Key: paymentID}
		body, merr := json.Marshal(payload)
		if merr != nil {
			return 0, "", merr
		}
		req, err = http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+p.Path, bytes.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	default:
		q := url.Values{}
		q.Set(p.Key, paymentID)
		req, err = http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s%s?%s", c.BaseURL, p.Path, q.Encode()), nil)
	}
	if err != nil {
		return 0, "", err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return 0, "", err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	return res.StatusCode, string(raw), nil
}

var returnPurchaseKeys = []string{"purchaseId", "purchase_id", "external_reference", "holdId"}
var returnPaymentKeys = []string{"IdPagoMP", "idPagoMP", "payment_id", "collection_id"}

// ExtractReturnParams pulls the purchase id and gateway payment id out of a
// deep-link callback query. Either may be absent; missing values come back
// as empty strings for the caller to decide on.
func ExtractReturnParams(query url.Values) (purchaseID string, paymentID string) {
	for _, key := range returnPurchaseKeys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			purchaseID = v
			break
		}
	}
	for _, key := range returnPaymentKeys {
		if v := strings.TrimSpace(query.Get(key)); v != "" {
			paymentID = v
			break
		}
	}
	return purchaseID, paymentID
}
