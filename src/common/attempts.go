package common

import (
	"context"
	"errors"
	"log"
	"sync"
	"tcs/src/config"
	"tcs/src/models"
	"tcs/src/types"
	"time"

	"github.com/google/uuid"
)

// ErrCancelNotConfirmed vetoes a user-initiated release that was not
// explicitly confirmed. The countdown keeps running.
var ErrCancelNotConfirmed = errors.New("hold release requires confirmation")

// ExpiredNotice is the terminal notice surfaced once the countdown reaches
// zero.
const ExpiredNotice = "time expired: your held tickets were released"

// PurchaseAttempt tracks one in-flight checkout: the hold set, the absolute
// deadline and the terminal state. The deadline is computed exactly once at
// creation; every tick derives the remaining time by subtracting now from
// it, never by recomputing a fresh deadline.
type PurchaseAttempt struct {
	ID            string
	UserID        uint
	SettlementKey string
	Subtotal      float64
	ServiceFee    float64
	CreatedAt     time.Time
	Deadline      time.Time

	mu          sync.Mutex
	holds       []models.Hold
	status      types.AttemptStatus
	finalized   bool
	notice      string
	checkoutURL string
	onTick      func(remaining int)
	stop        chan struct{}
	stopOnce    sync.Once
	now         func() time.Time

	// paymentMu serializes checkout creation separately from mu so the
	// gateway round trip never blocks status reads.
	paymentMu sync.Mutex
}

func (a *PurchaseAttempt) Status() types.AttemptStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

func (a *PurchaseAttempt) Notice() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.notice
}

// Holds returns a snapshot of the attempt's hold set.
func (a *PurchaseAttempt) Holds() []models.Hold {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Hold, len(a.holds))
	copy(out, a.holds)
	return out
}

func (a *PurchaseAttempt) CheckoutURL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.checkoutURL
}

// OpenCheckout returns the attempt's checkout URL, calling create the first
// time only. Concurrent callers serialize here, so the payment intent is
// opened at most once per attempt; the bool reports whether this call
// created it.
func (a *PurchaseAttempt) OpenCheckout(create func() (string, error)) (string, bool, error) {
	a.paymentMu.Lock()
	defer a.paymentMu.Unlock()
	if url := a.CheckoutURL(); url != "" {
		return url, false, nil
	}
	url, err := create()
	if err != nil {
		return "", false, err
	}
	a.mu.Lock()
	a.checkoutURL = url
	a.mu.Unlock()
	return url, true, nil
}

// Remaining is the time left on the countdown, clamped at zero. It is
// advisory; expiry itself is decided against the same fixed deadline.
func (a *PurchaseAttempt) Remaining() time.Duration {
	left := a.Deadline.Sub(a.now())
	if left < 0 {
		return 0
	}
	return left
}

// RegisterTickFunc installs a per-second remaining-time callback for display
// purposes. It is torn down automatically when the attempt finalizes.
func (a *PurchaseAttempt) RegisterTickFunc(fn func(remaining int)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onTick = fn
}

// finalize flips the attempt into a terminal state and stamps the holds
// with their terminal status. Only the first caller wins; later callers get
// false and must treat it as a silent no-op. This is the one-shot guard
// that resolves the settlement/expiry race.
func (a *PurchaseAttempt) finalize(status types.AttemptStatus, notice string, holdStatus types.HoldStatus) bool {
	a.mu.Lock()
	if a.finalized {
		a.mu.Unlock()
		return false
	}
	a.finalized = true
	a.status = status
	a.notice = notice
	for i := range a.holds {
		a.holds[i].Status = holdStatus
	}
	a.onTick = nil
	a.mu.Unlock()
	a.stopOnce.Do(func() { close(a.stop) })
	return true
}

// Settle short-circuits the countdown after a confirmed payment. Expiry can
// never fire afterwards.
func (a *PurchaseAttempt) Settle() bool {
	return a.finalize(types.ATTEMPT_SETTLED, "", types.HOLD_SETTLED)
}

func (a *PurchaseAttempt) tick() {
	remaining := int(a.Remaining().Seconds())
	a.mu.Lock()
	fn := a.onTick
	a.mu.Unlock()
	if fn != nil {
		fn(remaining)
	}
}

// AttemptRegistry owns the in-flight purchase attempts and their expiry
// controllers. All state here is ephemeral; the backend remains the source
// of truth for the holds themselves.
type AttemptRegistry struct {
	mu       sync.Mutex
	attempts map[string]*PurchaseAttempt
	holds    *HoldManager
	now      func() time.Time
}

func NewAttemptRegistry(mgr *HoldManager) *AttemptRegistry {
	return &AttemptRegistry{
		attempts: map[string]*PurchaseAttempt{},
		holds:    mgr,
		now:      time.Now,
	}
}

// NewAttemptRegistryWithClock is for tests that need to steer time.
func NewAttemptRegistryWithClock(mgr *HoldManager, now func() time.Time) *AttemptRegistry {
	r := NewAttemptRegistry(mgr)
	r.now = now
	return r
}

// Begin registers a new attempt, computes its one absolute deadline and
// starts the countdown goroutine.
func (r *AttemptRegistry) Begin(userID uint, holds []models.Hold, settlementKey string, subtotal, serviceFee float64) *PurchaseAttempt {
	createdAt := r.now()
	attempt := &PurchaseAttempt{
		ID:            uuid.New().String(),
		UserID:        userID,
		holds:         holds,
		SettlementKey: settlementKey,
		Subtotal:      subtotal,
		ServiceFee:    serviceFee,
		CreatedAt:     createdAt,
		Deadline:      createdAt.Add(config.HOLD_TTL),
		status:        types.ATTEMPT_RUNNING,
		stop:          make(chan struct{}),
		now:           r.now,
	}
	r.mu.Lock()
	r.attempts[attempt.ID] = attempt
	r.mu.Unlock()
	go r.runCountdown(attempt)
	return attempt
}

// Adopt rebuilds an attempt around a hold the backend still reports active,
// so a checkout resumed after a restart reuses it verbatim instead of
// creating a duplicate. The backend's expiry stays the deadline.
func (r *AttemptRegistry) Adopt(hold *models.Hold) *PurchaseAttempt {
	createdAt := r.now()
	deadline := hold.ExpiresAt
	if deadline.IsZero() {
		deadline = createdAt.Add(config.HOLD_TTL)
	}
	attempt := &PurchaseAttempt{
		ID:            uuid.New().String(),
		UserID:        hold.UserID,
		holds:         []models.Hold{*hold},
		SettlementKey: hold.ID,
		CreatedAt:     createdAt,
		Deadline:      deadline,
		status:        types.ATTEMPT_RUNNING,
		stop:          make(chan struct{}),
		now:           r.now,
	}
	r.mu.Lock()
	r.attempts[attempt.ID] = attempt
	r.mu.Unlock()
	go r.runCountdown(attempt)
	return attempt
}

func (r *AttemptRegistry) runCountdown(a *PurchaseAttempt) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.tick()
			if a.Remaining() <= 0 {
				r.Expire(context.Background(), a)
				return
			}
		}
	}
}

// Expire finalizes an attempt whose countdown ran out and releases its
// holds. Ticks arriving after zero are harmless: the one-shot guard makes
// every call but the first a silent no-op.
func (r *AttemptRegistry) Expire(ctx context.Context, a *PurchaseAttempt) {
	if !a.finalize(types.ATTEMPT_EXPIRED, ExpiredNotice, types.HOLD_EXPIRED) {
		return
	}
	held := a.Holds()
	log.Printf("[attempts] attempt %s expired, releasing %d hold(s)\n", a.ID, len(held))
	r.holds.CancelAll(ctx, held)
}

// UserCancel releases an attempt on explicit user exit. Without confirm the
// release is vetoed and the countdown continues. Cancelling an attempt that
// already finalized is a no-op, not an error.
func (r *AttemptRegistry) UserCancel(ctx context.Context, a *PurchaseAttempt, confirm bool) error {
	if !confirm {
		return ErrCancelNotConfirmed
	}
	if !a.finalize(types.ATTEMPT_USER_CANCELED, "", types.HOLD_CANCELED) {
		return nil
	}
	held := a.Holds()
	log.Printf("[attempts] attempt %s canceled by user, releasing %d hold(s)\n", a.ID, len(held))
	r.holds.CancelAll(ctx, held)
	return nil
}

func (r *AttemptRegistry) Get(id string) *PurchaseAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attempts[id]
}

// FindBySettlementKey matches an inbound gateway callback to the in-flight
// attempt by its purchase id.
func (r *AttemptRegistry) FindBySettlementKey(key string) *PurchaseAttempt {
	if key == "" {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.SettlementKey == key {
			return a
		}
	}
	return nil
}

// FindRunningByUser returns the user's in-flight attempt, if any, so a
// resumed checkout reuses its holds instead of creating new ones.
func (r *AttemptRegistry) FindRunningByUser(userID uint) *PurchaseAttempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.attempts {
		if a.UserID == userID && a.Status() == types.ATTEMPT_RUNNING {
			return a
		}
	}
	return nil
}

// Sweep expires attempts whose deadline passed more than grace ago without
// the controller finalizing them, and drops terminal attempts older than the
// retention window. Runs from the shared gocron scheduler.
func (r *AttemptRegistry) Sweep(grace, retention time.Duration) {
	now := r.now()
	r.mu.Lock()
	stale := make([]*PurchaseAttempt, 0)
	for id, a := range r.attempts {
		a.mu.Lock()
		finalized := a.finalized
		a.mu.Unlock()
		if !finalized && now.Sub(a.Deadline) > grace {
			stale = append(stale, a)
		}
		if finalized && now.Sub(a.Deadline) > retention {
			delete(r.attempts, id)
		}
	}
	r.mu.Unlock()
	for _, a := range stale {
		log.Printf("[attempts] sweeping stale attempt %s (deadline %s)\n", a.ID, a.Deadline)
		r.Expire(context.Background(), a)
	}
}
