package pesapal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(Options{BaseURL: srv.URL, Timeout: 2 * time.Second}, StaticTokenSource("tok"))
	return client, srv
}

func TestGetTransactionStatusCompleted(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/Transactions/GetTransactionStatus", r.URL.Path)
		require.Equal(t, "trk-1", r.URL.Query().Get("orderTrackingId"))
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_status_description": "Completed",
			"confirmation_code":          "CONF-1",
			"payment_method":             "MPESA",
			"merchant_reference":         "ORD-2025-000123",
			"amount":                     1250.00,
			"currency":                   "KES",
			"created_date":               "2025-08-14T10:30:00Z",
		})
	})

	status, err := client.GetTransactionStatus(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, status.Paid())
	require.Equal(t, "CONF-1", status.ConfirmationCode)
	require.Equal(t, "ORD-2025-000123", status.MerchantReference)
	require.True(t, status.Amount.Equal(decimal.RequireFromString("1250")))
	require.NotNil(t, status.PaidAt)
}

func TestGetTransactionStatusNonCompletedIsNotPaid(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_status_description": "Failed",
		})
	})

	status, err := client.GetTransactionStatus(context.Background(), "trk-1")
	require.NoError(t, err)
	require.False(t, status.Paid())
}

func TestGetTransactionStatusRetriesTransientFailures(t *testing.T) {
	calls := 0
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"payment_status_description": "Completed",
		})
	})

	status, err := client.GetTransactionStatus(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, status.Paid())
	require.Equal(t, 3, calls)
}

func TestGetTransactionStatusExhaustsRetries(t *testing.T) {
	calls := 0
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := client.GetTransactionStatus(context.Background(), "trk-1")
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, statusQueryAttempts, calls)
}

func TestSubmitOrderNeverRetries(t *testing.T) {
	calls := 0
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.SubmitOrder(context.Background(), SubmitOrderRequest{
		Reference: "ORD-2025-000123",
		Amount:    decimal.RequireFromString("10.00"),
		Currency:  "KES",
	})
	require.ErrorIs(t, err, ErrUnavailable)
	require.Equal(t, 1, calls, "submission is not idempotent and must not auto-retry")
}

func TestSubmitOrderParsesSubmission(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/Transactions/SubmitOrderRequest", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ORD-2025-000123", body["id"])
		require.Equal(t, "ipn-1", body["notification_id"])
		_ = json.NewEncoder(w).Encode(map[string]any{
			"order_tracking_id": "trk-1",
			"redirect_url":      "https://pay.pesapal.com/iframe/abc",
		})
	})

	sub, err := client.SubmitOrder(context.Background(), SubmitOrderRequest{
		Reference:      "ORD-2025-000123",
		Amount:         decimal.RequireFromString("10.00"),
		Currency:       "KES",
		NotificationID: "ipn-1",
	})
	require.NoError(t, err)
	require.Equal(t, "trk-1", sub.TrackingID)
	require.Equal(t, "https://pay.pesapal.com/iframe/abc", sub.RedirectURL)
}

func TestSubmitOrderGatewayErrorBody(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "invalid currency"},
		})
	})

	_, err := client.SubmitOrder(context.Background(), SubmitOrderRequest{Reference: "x"})
	require.ErrorIs(t, err, ErrResponseInvalid)
}

func TestRegisterIPNReturnsID(t *testing.T) {
	client, _ := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/URLSetup/RegisterIPN", r.URL.Path)
		_ = json.NewEncoder(w).Encode(map[string]any{"ipn_id": "ipn-42"})
	})

	id, err := client.RegisterIPN(context.Background(), "https://shop.example/api/v1/payments/ipn")
	require.NoError(t, err)
	require.Equal(t, "ipn-42", id)
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": exp.Unix(),
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return token
}

func TestCachedTokenSourceReusesToken(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/Auth/RequestToken", r.URL.Path)
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": signedToken(t, time.Now().Add(5*time.Minute)),
		})
	}))
	t.Cleanup(srv.Close)

	src := NewCachedTokenSource(Options{BaseURL: srv.URL}, "key", "secret")
	first, err := src.Token(context.Background())
	require.NoError(t, err)
	second, err := src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, first, second)
	require.Equal(t, 1, calls)
}

func TestCachedTokenSourceRefreshesNearExpiry(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		_ = json.NewEncoder(w).Encode(map[string]any{
			"token": signedToken(t, time.Now().Add(10*time.Second)),
		})
	}))
	t.Cleanup(srv.Close)

	src := NewCachedTokenSource(Options{BaseURL: srv.URL}, "key", "secret")
	_, err := src.Token(context.Background())
	require.NoError(t, err)
	// Expiry sits inside the refresh margin, so the next call re-requests.
	_, err = src.Token(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}

func TestCachedTokenSourceAuthFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	src := NewCachedTokenSource(Options{BaseURL: srv.URL}, "key", "bad")
	_, err := src.Token(context.Background())
	require.ErrorIs(t, err, ErrAuthFailed)
}
