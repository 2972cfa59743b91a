package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"tcs/src/config"
	"tcs/src/models"
	"tcs/src/types"
	"time"
)

// LedgerClient reads settled ticket entries and files refund requests with
// the external ledger.
type LedgerClient struct {
	BaseURL string
	HTTP    *http.Client
}

var ledgerClient *LedgerClient

func GetLedgerClient() *LedgerClient {
	if ledgerClient != nil {
		return ledgerClient
	}
	c := &LedgerClient{
		BaseURL: config.GetBackendBaseURL(),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
	ledgerClient = c
	return c
}

// NewLedgerClient Replace ledger instance with custom client implementation
func NewLedgerClient(c *LedgerClient) *LedgerClient {
	ledgerClient = c
	return ledgerClient
}

func (c *LedgerClient) FetchEntries(ctx context.Context, purchaseID string) ([]models.TicketEntry, error) {
	url := fmt.Sprintf("%s/api/purchases/%s/entries", c.BaseURL, purchaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch entries for purchase %s failed: status=%d body=%s", purchaseID, res.StatusCode, string(raw))
	}
	var entries []models.TicketEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}

func (c *LedgerClient) FetchEventTimes(ctx context.Context, purchaseID string) (*models.EventTimes, error) {
	url := fmt.Sprintf("%s/api/purchases/%s/event", c.BaseURL, purchaseID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch event times for purchase %s failed: status=%d body=%s", purchaseID, res.StatusCode, string(raw))
	}
	var times models.EventTimes
	if err := json.Unmarshal(raw, &times); err != nil {
		return nil, err
	}
	return &times, nil
}

func (c *LedgerClient) RequestRefund(ctx context.Context, purchaseID string) (*models.RefundResult, error) {
	payload := types.JSONB{"purchase_id": purchaseID}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	url := fmt.Sprintf("%s/api/refunds", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("refund request for purchase %s failed: status=%d body=%s", purchaseID, res.StatusCode, string(raw))
	}
	var result models.RefundResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
