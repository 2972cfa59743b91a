package common

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"tcs/src/lib"
	"tcs/src/models"
	"tcs/src/types"
)

// ErrEmptyCart means every quantity in the cart was zero or negative. It is
// raised before any network call and is never retried.
var ErrEmptyCart = errors.New("cart has no positive-quantity items")

// PartialHoldFailure reports a hold creation that failed after sibling holds
// for earlier dates had already been created. The siblings are rolled back
// before this propagates; the cause is the original backend error.
type PartialHoldFailure struct {
	FailedDateID string
	Cause        error
}

func (e *PartialHoldFailure) Error() string {
	return fmt.Sprintf("hold creation failed for date %s: %s", e.FailedDateID, e.Cause.Error())
}

func (e *PartialHoldFailure) Unwrap() error {
	return e.Cause
}

// HoldManager turns a user's cart into one hold per event date and owns the
// rollback of partially created hold sets.
type HoldManager struct {
	Inventory *lib.InventoryClient
}

func NewHoldManager(inv *lib.InventoryClient) *HoldManager {
	return &HoldManager{Inventory: inv}
}

// GroupCart folds a cart into one request per distinct date, summing
// quantities per ticket type within each date. Zero and negative quantities
// are dropped here, before anything touches the network. Output order is
// deterministic: dates ascending, ticket type codes ascending. The second
// return value is the cart subtotal at the index's unit prices.
func GroupCart(cart []types.CartSelection, index map[string]models.Selection) ([]models.HoldRequest, float64, error) {
	byDate := map[string]map[int]int{}
	subtotal := 0.0
	for _, sel := range cart {
		if sel.Qty <= 0 {
			continue
		}
		info, ok := index[sel.Key]
		if !ok {
			return nil, 0, fmt.Errorf("unknown selection key: %s", sel.Key)
		}
		if byDate[info.DateID] == nil {
			byDate[info.DateID] = map[int]int{}
		}
		byDate[info.DateID][info.TicketTypeCode] += sel.Qty
		subtotal += info.UnitPrice * float64(sel.Qty)
	}
	if len(byDate) == 0 {
		return nil, 0, ErrEmptyCart
	}
	dateIDs := make([]string, 0, len(byDate))
	for dateID := range byDate {
		dateIDs = append(dateIDs, dateID)
	}
	sort.Strings(dateIDs)
	reqs := make([]models.HoldRequest, 0, len(dateIDs))
	for _, dateID := range dateIDs {
		codes := make([]int, 0, len(byDate[dateID]))
		for code := range byDate[dateID] {
			codes = append(codes, code)
		}
		sort.Ints(codes)
		items := make([]models.HoldItem, 0, len(codes))
		for _, code := range codes {
			items = append(items, models.HoldItem{
				TicketTypeCode: code,
				Quantity:       byDate[dateID][code],
			})
		}
		reqs = append(reqs, models.HoldRequest{DateID: dateID, Items: items})
	}
	return reqs, subtotal, nil
}

// CreateHolds creates one hold per grouped date, in order. If any creation
// fails, every hold created earlier in this same call is cancelled before
// the failure propagates; no orphaned holds are left behind. The returned
// settlement key is the id of the last hold created.
func (m *HoldManager) CreateHolds(ctx context.Context, userID uint, reqs []models.HoldRequest) ([]models.Hold, string, error) {
	if len(reqs) == 0 {
		return nil, "", ErrEmptyCart
	}
	created := make([]models.Hold, 0, len(reqs))
	for _, req := range reqs {
		holdID, err := m.Inventory.CreateHold(ctx, userID, req.DateID, req.Items)
		if err != nil {
			m.rollback(ctx, created)
			return nil, "", &PartialHoldFailure{FailedDateID: req.DateID, Cause: err}
		}
		created = append(created, models.Hold{
			ID:     holdID,
			UserID: userID,
			DateID: req.DateID,
			Items:  req.Items,
			Status: types.HOLD_ACTIVE,
		})
	}
	settlementKey := created[len(created)-1].ID
	return created, settlementKey, nil
}

// rollback releases holds created earlier in a failed CreateHolds call, in
// reverse creation order. Best effort only: a cancel failure here is logged
// and swallowed because the user cannot act on it, and the creation error is
// what must surface.
func (m *HoldManager) rollback(ctx context.Context, created []models.Hold) {
	for i := len(created) - 1; i >= 0; i-- {
		if err := m.Inventory.CancelHold(ctx, created[i].ID); err != nil {
			log.Printf("[holds] rollback cancel failed for hold %s (date %s): %s\n", created[i].ID, created[i].DateID, err.Error())
		}
	}
}

// CancelAll releases every hold of an attempt. Cancelling a hold that is
// already cancelled or settled is a no-op on the backend, so both the expiry
// and the user-exit path can call this without checking state first. Errors
// are logged and swallowed.
func (m *HoldManager) CancelAll(ctx context.Context, holds []models.Hold) {
	for _, hold := range holds {
		if err := m.Inventory.CancelHold(ctx, hold.ID); err != nil {
			log.Printf("[holds] cancel failed for hold %s: %s\n", hold.ID, err.Error())
		}
	}
}
