package common

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"tcs/src/config"
	"tcs/src/lib"
	"tcs/src/models"
	"tcs/src/types"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type cancelCounter struct {
	mu      sync.Mutex
	cancels []string
}

func (c *cancelCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.cancels)
}

func newCountingRegistry(t *testing.T, clk *fakeClock) (*AttemptRegistry, *cancelCounter) {
	t.Helper()
	counter := &cancelCounter{}
	mux := http.NewServeMux()
	mux.HandleFunc("DELETE /api/holds/{id}", func(w http.ResponseWriter, r *http.Request) {
		counter.mu.Lock()
		counter.cancels = append(counter.cancels, r.PathValue("id"))
		counter.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	mgr := NewHoldManager(&lib.InventoryClient{BaseURL: srv.URL, HTTP: srv.Client()})
	return NewAttemptRegistryWithClock(mgr, clk.Now), counter
}

func sampleHolds() []models.Hold {
	return []models.Hold{
		{ID: "hold-1", DateID: "date-1", Status: types.HOLD_ACTIVE},
		{ID: "hold-2", DateID: "date-2", Status: types.HOLD_ACTIVE},
	}
}

func TestDeadlineComputedOnceAndRemainingMonotonic(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	assert.Equal(t, clk.Now().Add(config.HOLD_TTL), attempt.Deadline)

	deadline := attempt.Deadline
	last := attempt.Remaining()
	for i := 0; i < 12; i++ {
		clk.Advance(time.Minute)
		remaining := attempt.Remaining()
		assert.LessOrEqual(t, remaining, last)
		assert.Equal(t, deadline, attempt.Deadline)
		last = remaining
	}
	// Clamped at zero, never negative.
	assert.Equal(t, time.Duration(0), attempt.Remaining())
}

func TestExpireFiresExactlyOnce(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	clk.Advance(config.HOLD_TTL + time.Second)
	registry.Expire(context.Background(), attempt)
	registry.Expire(context.Background(), attempt)
	registry.Expire(context.Background(), attempt)

	assert.Equal(t, types.ATTEMPT_EXPIRED, attempt.Status())
	assert.Equal(t, ExpiredNotice, attempt.Notice())
	assert.Equal(t, 2, counter.count(), "both holds cancelled exactly once")
	for _, h := range attempt.Holds() {
		assert.Equal(t, types.HOLD_EXPIRED, h.Status)
	}
}

func TestSettlementPreemptsExpiry(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	require.True(t, attempt.Settle())

	// The countdown may still tick past zero afterwards; expiry must lose.
	clk.Advance(config.HOLD_TTL + time.Minute)
	registry.Expire(context.Background(), attempt)

	assert.Equal(t, types.ATTEMPT_SETTLED, attempt.Status())
	assert.Equal(t, 0, counter.count(), "no expiry cancellation after settlement")
	for _, h := range attempt.Holds() {
		assert.Equal(t, types.HOLD_SETTLED, h.Status)
	}
}

func TestSettleAfterExpiryIsSilentNoOp(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	clk.Advance(config.HOLD_TTL + time.Second)
	registry.Expire(context.Background(), attempt)
	assert.False(t, attempt.Settle())
	assert.Equal(t, types.ATTEMPT_EXPIRED, attempt.Status())
}

func TestUserCancelRequiresConfirmation(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	err := registry.UserCancel(context.Background(), attempt, false)
	assert.ErrorIs(t, err, ErrCancelNotConfirmed)
	assert.Equal(t, types.ATTEMPT_RUNNING, attempt.Status())
	assert.Equal(t, 0, counter.count())

	require.NoError(t, registry.UserCancel(context.Background(), attempt, true))
	assert.Equal(t, types.ATTEMPT_USER_CANCELED, attempt.Status())
	assert.Equal(t, 2, counter.count())

	// Cancelling an already-finalized attempt is a no-op, not an error.
	require.NoError(t, registry.UserCancel(context.Background(), attempt, true))
	assert.Equal(t, 2, counter.count())
}

func TestCountdownTicksAndExpiresViaTicker(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	var ticks []int
	var mu sync.Mutex
	attempt.RegisterTickFunc(func(remaining int) {
		mu.Lock()
		ticks = append(ticks, remaining)
		mu.Unlock()
	})

	clk.Advance(config.HOLD_TTL + time.Second)
	// The terminal status flips before the hold releases go out, so wait
	// for the cancellations too, not just the status.
	require.Eventually(t, func() bool {
		return attempt.Status() == types.ATTEMPT_EXPIRED && counter.count() == 2
	}, 5*time.Second, 50*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	for _, remaining := range ticks {
		assert.GreaterOrEqual(t, remaining, 0)
	}
}

func TestOpenCheckoutCreatesIntentOnce(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	var creates int32
	var wg sync.WaitGroup
	urls := make([]string, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			url, _, err := attempt.OpenCheckout(func() (string, error) {
				atomic.AddInt32(&creates, 1)
				return "https://pay.example/c/1", nil
			})
			assert.NoError(t, err)
			urls[i] = url
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&creates), "intent opened exactly once")
	for _, u := range urls {
		assert.Equal(t, "https://pay.example/c/1", u)
	}
	assert.Equal(t, "https://pay.example/c/1", attempt.CheckoutURL())
}

func TestOpenCheckoutFailureLeavesAttemptRetryable(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	_, _, err := attempt.OpenCheckout(func() (string, error) {
		return "", fmt.Errorf("gateway down")
	})
	assert.Error(t, err)
	assert.Empty(t, attempt.CheckoutURL())

	url, created, err := attempt.OpenCheckout(func() (string, error) {
		return "https://pay.example/c/2", nil
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "https://pay.example/c/2", url)
}

func TestHoldsSnapshotDuringExpiry(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	attempt := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)

	clk.Advance(config.HOLD_TTL + time.Second)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			for _, h := range attempt.Holds() {
				assert.NotEmpty(t, h.ID)
			}
		}
	}()
	registry.Expire(context.Background(), attempt)
	wg.Wait()

	assert.Equal(t, 2, counter.count())
	for _, h := range attempt.Holds() {
		assert.Equal(t, types.HOLD_EXPIRED, h.Status)
	}
}

func TestFindBySettlementKeyAndRunningByUser(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	attempt := registry.Begin(42, sampleHolds(), "hold-2", 100, 10)

	assert.Equal(t, attempt, registry.FindBySettlementKey("hold-2"))
	assert.Nil(t, registry.FindBySettlementKey(""))
	assert.Nil(t, registry.FindBySettlementKey("hold-9"))

	assert.Equal(t, attempt, registry.FindRunningByUser(42))
	assert.Nil(t, registry.FindRunningByUser(7))

	require.True(t, attempt.Settle())
	assert.Nil(t, registry.FindRunningByUser(42))
}

func TestAdoptUsesBackendExpiryAsDeadline(t *testing.T) {
	clk := newFakeClock()
	registry, _ := newCountingRegistry(t, clk)
	expiresAt := clk.Now().Add(4 * time.Minute)
	attempt := registry.Adopt(&models.Hold{
		ID:        "hold-77",
		UserID:    5,
		ExpiresAt: expiresAt,
		Status:    types.HOLD_ACTIVE,
	})
	assert.Equal(t, expiresAt, attempt.Deadline)
	assert.Equal(t, "hold-77", attempt.SettlementKey)
	assert.Equal(t, types.ATTEMPT_RUNNING, attempt.Status())
}

func TestSweepExpiresStaleAndDropsOldTerminalAttempts(t *testing.T) {
	clk := newFakeClock()
	registry, counter := newCountingRegistry(t, clk)
	stale := registry.Begin(1, sampleHolds(), "hold-2", 100, 10)
	settled := registry.Begin(2, []models.Hold{{ID: "hold-9"}}, "hold-9", 50, 5)
	require.True(t, settled.Settle())

	clk.Advance(config.HOLD_TTL + time.Minute)
	registry.Sweep(30*time.Second, 2*time.Hour)

	assert.Equal(t, types.ATTEMPT_EXPIRED, stale.Status())
	assert.Equal(t, 2, counter.count())
	assert.NotNil(t, registry.Get(settled.ID), "terminal attempt kept within retention")

	clk.Advance(3 * time.Hour)
	registry.Sweep(30*time.Second, 2*time.Hour)
	assert.Nil(t, registry.Get(settled.ID), "terminal attempt dropped past retention")
}
