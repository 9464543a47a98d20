package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/reconcile"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/pkg/types"
)

type stubReconciler struct {
	outcome *reconcile.Outcome
	err     error

	orderCalls     []string
	donationCalls  []string
	recurringCalls [][2]string
}

func (s *stubReconciler) ReconcileOrder(_ context.Context, trackingID string) (*reconcile.Outcome, error) {
	s.orderCalls = append(s.orderCalls, trackingID)
	return s.outcome, s.err
}

func (s *stubReconciler) ReconcileDonation(_ context.Context, trackingID string) (*reconcile.Outcome, error) {
	s.donationCalls = append(s.donationCalls, trackingID)
	return s.outcome, s.err
}

func (s *stubReconciler) ReconcileRecurring(_ context.Context, trackingID, merchantReference string) (*reconcile.Outcome, error) {
	s.recurringCalls = append(s.recurringCalls, [2]string{trackingID, merchantReference})
	return s.outcome, s.err
}

type stubAuditLog struct {
	mu      sync.Mutex
	entries []*models.IPNLog
}

func (s *stubAuditLog) Save(_ context.Context, entry *models.IPNLog) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func (s *stubAuditLog) SaveAsync(ctx context.Context, entry *models.IPNLog) {
	s.Save(ctx, entry)
}

func (s *stubAuditLog) statuses() []models.IPNLogStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.IPNLogStatus, 0, len(s.entries))
	for _, e := range s.entries {
		out = append(out, e.Status)
	}
	return out
}

func ipnRouter(rec *stubReconciler, audit *stubAuditLog) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewIPNHandler(rec, audit, zap.NewNop().Sugar())
	r.GET("/api/v1/payments/ipn", h.Handle)
	r.POST("/api/v1/payments/ipn", h.Handle)
	return r
}

func orderOutcome() *reconcile.Outcome {
	return &reconcile.Outcome{
		Kind: types.PayableKindOrder, Reference: "ORD-2025-000123",
		Status: types.PaymentStatusPaid, Changed: true,
	}
}

func postIPN(r *gin.Engine, body map[string]any) *httptest.ResponseRecorder {
	raw, _ := json.Marshal(body)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/ipn", bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIPNPostEchoesAcknowledgement(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	audit := &stubAuditLog{}
	r := ipnRouter(rec, audit)

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-1",
		"OrderMerchantReference": "ORD-2025-000123",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, http.StatusOK, w.Code)
	var ack map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ack))
	require.Equal(t, "IPNCHANGE", ack["orderNotificationType"])
	require.Equal(t, "trk-1", ack["orderTrackingId"])
	require.Equal(t, "ORD-2025-000123", ack["orderMerchantReference"])
	require.EqualValues(t, 200, ack["status"])
	require.Equal(t, []string{"trk-1"}, rec.orderCalls)
}

func TestIPNGetQueryBinding(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	r := ipnRouter(rec, &stubAuditLog{})

	req := httptest.NewRequest(http.MethodGet,
		"/api/v1/payments/ipn?OrderTrackingId=trk-9&OrderMerchantReference=ORD-2025-000009&OrderNotificationType=IPNCHANGE", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"trk-9"}, rec.orderCalls)
}

func TestIPNPostRejectsNonJSONContentType(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	r := ipnRouter(rec, &stubAuditLog{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/ipn",
		bytes.NewReader([]byte("OrderTrackingId=trk-1")))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, rec.orderCalls)
}

func TestIPNRejectsMissingFields(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{"OrderNotificationType": "IPNCHANGE"})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, rec.orderCalls)
}

func TestIPNRejectsMissingNotificationType(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-1",
		"OrderMerchantReference": "ORD-2025-000123",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Empty(t, rec.orderCalls)
}

func TestIPNRoutesDonationReference(t *testing.T) {
	rec := &stubReconciler{outcome: &reconcile.Outcome{
		Kind: types.PayableKindDonation, Reference: "DON-2025-000042", Status: types.PaymentStatusPaid,
	}}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-d",
		"OrderMerchantReference": "DON-2025-000042",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, []string{"trk-d"}, rec.donationCalls)
	require.Empty(t, rec.orderCalls)
}

func TestIPNRoutesRecurringNotification(t *testing.T) {
	rec := &stubReconciler{outcome: &reconcile.Outcome{
		Kind: types.PayableKindDonation, Reference: "DON-2025-000042", Status: types.PaymentStatusPaid, Changed: true,
	}}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-cycle",
		"OrderMerchantReference": "DON-2025-000042",
		"OrderNotificationType":  "RECURRING",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, [][2]string{{"trk-cycle", "DON-2025-000042"}}, rec.recurringCalls)
	require.Empty(t, rec.donationCalls)
}

func TestIPNUnknownPayableIsAcked(t *testing.T) {
	rec := &stubReconciler{err: payable.ErrNotFound}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-stale",
		"OrderMerchantReference": "ORD-2025-000001",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"status":200`)
}

func TestIPNGatewayUnavailableIsNotAcked(t *testing.T) {
	rec := &stubReconciler{err: pesapal.ErrUnavailable}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-1",
		"OrderMerchantReference": "ORD-2025-000123",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIPNInvariantViolationIsNotAcked(t *testing.T) {
	rec := &stubReconciler{err: reconcile.ErrInvariantViolation}
	r := ipnRouter(rec, &stubAuditLog{})

	w := postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-1",
		"OrderMerchantReference": "ORD-2025-000123",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestIPNWritesAuditTrail(t *testing.T) {
	rec := &stubReconciler{outcome: orderOutcome()}
	audit := &stubAuditLog{}
	r := ipnRouter(rec, audit)

	postIPN(r, map[string]any{
		"OrderTrackingId":        "trk-1",
		"OrderMerchantReference": "ORD-2025-000123",
		"OrderNotificationType":  "IPNCHANGE",
	})

	require.Equal(t, []models.IPNLogStatus{models.IPNLogStatusReceived, models.IPNLogStatusHandled}, audit.statuses())
}
