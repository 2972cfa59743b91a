package lib

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"tcs/src/config"
	"tcs/src/models"
	"tcs/src/types"
	"time"

	"github.com/tidwall/gjson"
)

// InventoryClient is a thin typed wrapper over the ticketing backend. The
// backend owns all inventory counts; nothing is cached or decremented here.
type InventoryClient struct {
	BaseURL string
	HTTP    *http.Client
}

var inventoryClient *InventoryClient

func GetInventoryClient() *InventoryClient {
	if inventoryClient != nil {
		return inventoryClient
	}
	c := &InventoryClient{
		BaseURL: config.GetBackendBaseURL(),
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
	inventoryClient = c
	return c
}

// NewInventoryClient Replace inventory instance with custom client implementation
func NewInventoryClient(c *InventoryClient) *InventoryClient {
	inventoryClient = c
	return inventoryClient
}

// CreateHold claims quantities for one event date. Quantities are validated
// by the caller; items must all be > 0 by the time this runs.
func (c *InventoryClient) CreateHold(ctx context.Context, userID uint, dateID string, items []models.HoldItem) (string, error) {
	payload := types.JSONB{
		"user_id": userID,
		"date_id": dateID,
		"items":   items,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/api/holds", c.BaseURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
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
		return "", fmt.Errorf("create hold failed for date %s: status=%d body=%s", dateID, res.StatusCode, string(raw))
	}
	// Id field naming is not consistent across backend environments.
	for _, path := range []string{"id", "holdId", "hold_id", "data.id"} {
		if v := gjson.GetBytes(raw, path); v.Exists() && v.String() != "" {
			return v.String(), nil
		}
	}
	return "", fmt.Errorf("create hold succeeded but no hold id found in response: %s", string(raw))
}

// CancelHold releases a hold. Cancelling a hold that is already gone,
// cancelled or settled is a no-op; the backend signals those as 404/409/410.
func (c *InventoryClient) CancelHold(ctx context.Context, holdID string) error {
	url := fmt.Sprintf("%s/api/holds/%s", c.BaseURL, holdID)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return err
	}
	res, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(res.Body)
	switch {
	case res.StatusCode >= 200 && res.StatusCode < 300:
		return nil
	case res.StatusCode == http.StatusNotFound,
		res.StatusCode == http.StatusConflict,
		res.StatusCode == http.StatusGone:
		log.Printf("[inventory] cancel hold %s: already finalized (status=%d)\n", holdID, res.StatusCode)
		return nil
	default:
		return fmt.Errorf("cancel hold %s failed: status=%d body=%s", holdID, res.StatusCode, string(raw))
	}
}

// FetchActiveHold returns the user's current active hold, or nil when the
// backend has none for them.
func (c *InventoryClient) FetchActiveHold(ctx context.Context, userID uint) (*models.Hold, error) {
	url := fmt.Sprintf("%s/api/holds/active?user_id=%d", c.BaseURL, userID)
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
	if res.StatusCode == http.StatusNotFound || res.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch active hold failed: status=%d body=%s", res.StatusCode, string(raw))
	}
	var hold models.Hold
	if err := json.Unmarshal(raw, &hold); err != nil {
		return nil, err
	}
	if hold.ID == "" {
		return nil, nil
	}
	return &hold, nil
}

// FetchSelectionIndex resolves the selection keys a client cart refers to.
func (c *InventoryClient) FetchSelectionIndex(ctx context.Context) (map[string]models.Selection, error) {
	url := fmt.Sprintf("%s/api/catalog/selections", c.BaseURL)
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
		return nil, fmt.Errorf("fetch selection index failed: status=%d body=%s", res.StatusCode, string(raw))
	}
	index := map[string]models.Selection{}
	if err := json.Unmarshal(raw, &index); err != nil {
		return nil, err
	}
	return index, nil
}

// FetchTicketTypeNames returns the display name table keyed by ticket-type code.
func (c *InventoryClient) FetchTicketTypeNames(ctx context.Context) (map[int]string, error) {
	url := fmt.Sprintf("%s/api/catalog/ticket-types", c.BaseURL)
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
		return nil, fmt.Errorf("fetch ticket types failed: status=%d body=%s", res.StatusCode, string(raw))
	}
	names := map[int]string{}
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil, err
	}
	return names, nil
}
