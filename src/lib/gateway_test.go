package lib

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"tcs/src/models"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.Handler) *GatewayClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &GatewayClient{BaseURL: srv.URL, HTTP: srv.Client()}
}

func testIntent() models.PaymentIntent {
	return models.PaymentIntent{
		HoldSetID:  "hold-9",
		Subtotal:   100,
		ServiceFee: 10,
		ReturnURL:  "https://app/return",
	}
}

func TestCreatePaymentExtractsTopLevelCheckoutURL(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ := io.ReadAll(r.Body)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))
		assert.Equal(t, "hold-9", payload["hold_id"])
		fmt.Fprint(w, `{"checkoutUrl":"https://pay.example/c/123"}`)
	}))
	u, err := gw.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/c/123", u)
}

func TestCreatePaymentExtractsNestedBodyObject(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"statusCode":200,"body":{"init_point":"https://pay.example/c/456"}}`)
	}))
	u, err := gw.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/c/456", u)
}

func TestCreatePaymentExtractsDoubleEncodedBody(t *testing.T) {
	// Some environments return the body as a JSON string instead of an object.
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"body":"{\"checkout_url\":\"https://pay.example/c/789\"}"}`)
	}))
	u, err := gw.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/c/789", u)
}

func TestCreatePaymentExtractsPreferenceObject(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"preference":{"id":"p1","init_point":"https://pay.example/c/p1"}}`)
	}))
	u, err := gw.CreatePayment(context.Background(), testIntent())
	require.NoError(t, err)
	assert.Equal(t, "https://pay.example/c/p1", u)
}

func TestCreatePaymentFailsWithStatusAndBodyWhenNoURLFound(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"something":"else"}`)
	}))
	_, err := gw.CreatePayment(context.Background(), testIntent())
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusOK, gerr.Status)
	assert.Contains(t, gerr.Body, "something")
}

func TestCreatePaymentFailsOnGatewayError(t *testing.T) {
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"missing hold"}`)
	}))
	_, err := gw.CreatePayment(context.Background(), testIntent())
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, http.StatusBadRequest, gerr.Status)
}

// probeLog records every confirm request shape the gateway saw.
type probeLog struct {
	mu   sync.Mutex
	seen []string
}

func (p *probeLog) record(r *http.Request) string {
	raw, _ := io.ReadAll(r.Body)
	key := ""
	for _, k := range []string{"IdPagoMP", "idPagoMP", "payment_id"} {
		if r.URL.Query().Get(k) != "" || strings.Contains(string(raw), `"`+k+`"`) {
			key = k
			break
		}
	}
	sig := fmt.Sprintf("%s %s %s", r.Method, r.URL.Path, key)
	p.mu.Lock()
	p.seen = append(p.seen, sig)
	p.mu.Unlock()
	return sig
}

func TestConfirmPaymentStopsAtFirstAcceptedVariant(t *testing.T) {
	logp := &probeLog{}
	accepted := "POST /api/payments/confirm payment_id" // the 3rd candidate
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sig := logp.record(r)
		if sig == accepted {
			fmt.Fprint(w, `{"ok":true}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	err := gw.ConfirmPayment(context.Background(), "pay-1")
	require.NoError(t, err)
	assert.Len(t, logp.seen, 3, "short-circuits on the first accepted variant")
	assert.Equal(t, accepted, logp.seen[2])
}

func TestConfirmPaymentExhaustsAllVariants(t *testing.T) {
	logp := &probeLog{}
	gw := newTestGateway(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logp.record(r)
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":"unknown shape"}`)
	}))

	err := gw.ConfirmPayment(context.Background(), "pay-1")
	var gerr *GatewayError
	require.ErrorAs(t, err, &gerr)
	total := len(confirmProbes())
	assert.Equal(t, total, gerr.Attempts)
	assert.Len(t, logp.seen, total)
	assert.Equal(t, http.StatusBadRequest, gerr.Status)
	assert.Contains(t, gerr.Body, "unknown shape")
}

func TestConfirmProbeOrderIsStable(t *testing.T) {
	probes := confirmProbes()
	require.Len(t, probes, 12)
	assert.Equal(t, confirmProbe{Method: http.MethodPost, Path: "/api/payments/confirm", Key: "IdPagoMP"}, probes[0])
	assert.Equal(t, confirmProbe{Method: http.MethodPost, Path: "/api/payments/confirm", Key: "idPagoMP"}, probes[1])
	assert.Equal(t, confirmProbe{Method: http.MethodPost, Path: "/api/payments/confirm", Key: "payment_id"}, probes[2])
	assert.Equal(t, http.MethodGet, probes[6].Method, "GET variants follow all POST variants")
}

func TestExtractReturnParams(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		wantPurchase string
		wantPayment  string
	}{
		{"canonical", "purchaseId=h1&IdPagoMP=p1", "h1", "p1"},
		{"snake case", "purchase_id=h1&payment_id=p1", "h1", "p1"},
		{"gateway reference keys", "external_reference=h1&collection_id=p1", "h1", "p1"},
		{"payment id missing", "purchaseId=h1", "h1", ""},
		{"purchase id missing", "idPagoMP=p1", "", "p1"},
		{"both missing", "foo=bar", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			q, err := url.ParseQuery(tc.query)
			require.NoError(t, err)
			purchaseID, paymentID := ExtractReturnParams(q)
			assert.Equal(t, tc.wantPurchase, purchaseID)
			assert.Equal(t, tc.wantPayment, paymentID)
		})
	}
}
