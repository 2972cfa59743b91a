package common

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"tcs/src/lib"
	"tcs/src/models"
	"tcs/src/types"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	catalogSelectionsKey  = "catalog:selections"
	catalogTicketTypesKey = "catalog:ticket_types"
	catalogCacheTTL       = 12 * time.Hour
)

// CatalogRepository holds the backend lookup tables: the selection index the
// hold manager resolves carts against and the ticket-type display names used
// to classify entries. Load once, serve from memory, invalidate on demand.
// The redis layer lets replicas share one backend fetch.
type CatalogRepository struct {
	Inventory *lib.InventoryClient
	Redis     *redis.Client

	mu          sync.RWMutex
	selections  map[string]models.Selection
	ticketTypes map[int]string
	loaded      bool
}

func NewCatalogRepository(inv *lib.InventoryClient, rdb *redis.Client) *CatalogRepository {
	return &CatalogRepository{Inventory: inv, Redis: rdb}
}

// Load populates the tables, preferring the redis cache over a backend
// round-trip. Safe to call more than once; subsequent calls are no-ops
// until Invalidate.
func (r *CatalogRepository) Load(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}
	selections, err := r.loadSelections(ctx)
	if err != nil {
		return err
	}
	ticketTypes, err := r.loadTicketTypes(ctx)
	if err != nil {
		return err
	}
	r.selections = selections
	r.ticketTypes = ticketTypes
	r.loaded = true
	return nil
}

func (r *CatalogRepository) loadSelections(ctx context.Context) (map[string]models.Selection, error) {
	if r.Redis != nil {
		cached, err := r.Redis.Get(ctx, catalogSelectionsKey).Result()
		if err == nil {
			index := map[string]models.Selection{}
			if err := json.Unmarshal([]byte(cached), &index); err == nil {
				return index, nil
			}
		} else if err != redis.Nil {
			log.Printf("[catalog] redis read failed for %s: %s\n", catalogSelectionsKey, err.Error())
		}
	}
	index, err := r.Inventory.FetchSelectionIndex(ctx)
	if err != nil {
		return nil, err
	}
	r.cache(ctx, catalogSelectionsKey, index)
	return index, nil
}

func (r *CatalogRepository) loadTicketTypes(ctx context.Context) (map[int]string, error) {
	if r.Redis != nil {
		cached, err := r.Redis.Get(ctx, catalogTicketTypesKey).Result()
		if err == nil {
			names := map[int]string{}
			if err := json.Unmarshal([]byte(cached), &names); err == nil {
				return names, nil
			}
		} else if err != redis.Nil {
			log.Printf("[catalog] redis read failed for %s: %s\n", catalogTicketTypesKey, err.Error())
		}
	}
	names, err := r.Inventory.FetchTicketTypeNames(ctx)
	if err != nil {
		return nil, err
	}
	r.cache(ctx, catalogTicketTypesKey, names)
	return names, nil
}

func (r *CatalogRepository) cache(ctx context.Context, key string, value any) {
	if r.Redis == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return
	}
	if err := r.Redis.Set(ctx, key, string(raw), catalogCacheTTL).Err(); err != nil {
		log.Printf("[catalog] redis write failed for %s: %s\n", key, err.Error())
	}
}

// Invalidate clears both the in-memory tables and the redis cache. The next
// Load fetches fresh from the backend.
func (r *CatalogRepository) Invalidate(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selections = nil
	r.ticketTypes = nil
	r.loaded = false
	if r.Redis != nil {
		if err := r.Redis.Del(ctx, catalogSelectionsKey, catalogTicketTypesKey).Err(); err != nil {
			log.Printf("[catalog] redis invalidate failed: %s\n", err.Error())
		}
	}
}

// SelectionIndex returns the resolved selection table, loading it first if
// needed.
func (r *CatalogRepository) SelectionIndex(ctx context.Context) (map[string]models.Selection, error) {
	if err := r.Load(ctx); err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.selections, nil
}

// TicketTypeName resolves a ticket-type code to its display name, falling
// back to the bare code when unknown.
func (r *CatalogRepository) TicketTypeName(ctx context.Context, code int) string {
	if err := r.Load(ctx); err != nil {
		return strconv.Itoa(code)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if name, ok := r.ticketTypes[code]; ok {
		return name
	}
	return strconv.Itoa(code)
}

// StatusLabel maps an entry status to its display label.
func (r *CatalogRepository) StatusLabel(status types.EntryStatus) string {
	switch status {
	case types.ENTRY_PENDING:
		return "Pending"
	case types.ENTRY_SETTLED:
		return "Settled"
	case types.ENTRY_CANCELED:
		return "Cancelled"
	case types.ENTRY_CHECKEDIN:
		return "Checked in"
	default:
		return string(status)
	}
}

// ClassifiedEntry is the read-side projection handed to clients.
type ClassifiedEntry struct {
	models.TicketEntry
	TicketTypeName string `json:"ticket_type_name"`
	StatusLabel    string `json:"status_label"`
}

func (r *CatalogRepository) ClassifyEntries(ctx context.Context, entries []models.TicketEntry) []ClassifiedEntry {
	out := make([]ClassifiedEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, ClassifiedEntry{
			TicketEntry:    entry,
			TicketTypeName: r.TicketTypeName(ctx, entry.TicketTypeCode),
			StatusLabel:    r.StatusLabel(entry.Status),
		})
	}
	return out
}
