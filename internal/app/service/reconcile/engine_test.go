package reconcile

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/pkg/config"
	"github.com/sokoyetu/paydesk/pkg/types"
)

type fakeGateway struct {
	status      *pesapal.TransactionStatus
	statusErr   error
	statusCalls int

	submission  *pesapal.OrderSubmission
	submitErr   error
	submitCalls int
	lastSubmit  pesapal.SubmitOrderRequest

	refunded  []string
	refundErr error
	cancelled []string
	cancelErr error
}

func (g *fakeGateway) GetTransactionStatus(_ context.Context, _ string) (*pesapal.TransactionStatus, error) {
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	return g.status, nil
}

func (g *fakeGateway) SubmitOrder(_ context.Context, req pesapal.SubmitOrderRequest) (*pesapal.OrderSubmission, error) {
	g.submitCalls++
	g.lastSubmit = req
	if g.submitErr != nil {
		return nil, g.submitErr
	}
	return g.submission, nil
}

func (g *fakeGateway) Refund(_ context.Context, confirmationCode string, _ decimal.Decimal, _ string) error {
	if g.refundErr != nil {
		return g.refundErr
	}
	g.refunded = append(g.refunded, confirmationCode)
	return nil
}

func (g *fakeGateway) Cancel(_ context.Context, trackingID string) error {
	if g.cancelErr != nil {
		return g.cancelErr
	}
	g.cancelled = append(g.cancelled, trackingID)
	return nil
}

// fakeStore mimics the repository's version-guarded updates over in-memory
// maps. conflictUpdates injects version conflicts for the first N writes.
type fakeStore struct {
	orders    map[string]*models.Order
	donations map[string]*models.Donation
	ledger    []*models.DonationPayment

	conflictUpdates  int
	updateCalls      int
	deletedOrders    []string
	deletedDonations []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		orders:    map[string]*models.Order{},
		donations: map[string]*models.Donation{},
	}
}

func (s *fakeStore) putOrder(o *models.Order)       { s.orders[o.ID] = o }
func (s *fakeStore) putDonation(d *models.Donation) { s.donations[d.ID] = d }

func (s *fakeStore) GetOrderByRef(_ context.Context, reference string) (*models.Order, error) {
	for _, o := range s.orders {
		if o.Reference == reference {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order %s: %w", reference, payable.ErrNotFound)
}

func (s *fakeStore) GetOrderByTrackingID(_ context.Context, trackingID string) (*models.Order, error) {
	for _, o := range s.orders {
		if o.TrackingID() == trackingID {
			cp := *o
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("order tracking %s: %w", trackingID, payable.ErrNotFound)
}

func (s *fakeStore) GetDonationByRef(_ context.Context, reference string) (*models.Donation, error) {
	for _, d := range s.donations {
		if d.Reference == reference {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("donation %s: %w", reference, payable.ErrNotFound)
}

func (s *fakeStore) GetDonationByTrackingID(_ context.Context, trackingID string) (*models.Donation, error) {
	for _, d := range s.donations {
		if d.TrackingID() == trackingID {
			cp := *d
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("donation tracking %s: %w", trackingID, payable.ErrNotFound)
}

func (s *fakeStore) UpdateOrder(_ context.Context, order *models.Order) error {
	s.updateCalls++
	if s.conflictUpdates > 0 {
		s.conflictUpdates--
		return fmt.Errorf("order %s: %w", order.Reference, payable.ErrConflict)
	}
	current, ok := s.orders[order.ID]
	if !ok || current.Version != order.Version {
		return fmt.Errorf("order %s: %w", order.Reference, payable.ErrConflict)
	}
	cp := *order
	cp.Version++
	s.orders[order.ID] = &cp
	order.Version++
	return nil
}

func (s *fakeStore) UpdateDonation(_ context.Context, donation *models.Donation) error {
	s.updateCalls++
	if s.conflictUpdates > 0 {
		s.conflictUpdates--
		return fmt.Errorf("donation %s: %w", donation.Reference, payable.ErrConflict)
	}
	current, ok := s.donations[donation.ID]
	if !ok || current.Version != donation.Version {
		return fmt.Errorf("donation %s: %w", donation.Reference, payable.ErrConflict)
	}
	cp := *donation
	cp.Version++
	s.donations[donation.ID] = &cp
	donation.Version++
	return nil
}

func (s *fakeStore) AppendLedgerEntry(_ context.Context, donation *models.Donation, entry *models.DonationPayment) error {
	s.updateCalls++
	if s.conflictUpdates > 0 {
		s.conflictUpdates--
		return fmt.Errorf("donation %s: %w", donation.Reference, payable.ErrConflict)
	}
	current, ok := s.donations[donation.ID]
	if !ok || current.Version != donation.Version {
		return fmt.Errorf("donation %s: %w", donation.Reference, payable.ErrConflict)
	}
	entry.DonationID = donation.ID
	s.ledger = append(s.ledger, entry)

	count := 0
	total := decimal.Zero
	for _, e := range s.ledger {
		if e.DonationID == donation.ID && e.Status == types.PaymentStatusPaid {
			count++
			total = total.Add(e.Amount)
		}
	}
	cp := *donation
	cp.Version++
	cp.TotalDonations = count
	cp.TotalAmount = total
	s.donations[donation.ID] = &cp

	donation.Version++
	donation.TotalDonations = count
	donation.TotalAmount = total
	return nil
}

func (s *fakeStore) DeleteOrder(_ context.Context, id string) error {
	delete(s.orders, id)
	s.deletedOrders = append(s.deletedOrders, id)
	return nil
}

func (s *fakeStore) DeleteDonation(_ context.Context, id string) error {
	delete(s.donations, id)
	s.deletedDonations = append(s.deletedDonations, id)
	return nil
}

type fakeNotifier struct {
	ordersPaid      []string
	ordersCancelled []string
	donationsPaid   []string
}

func (n *fakeNotifier) OrderPaid(_ context.Context, order *models.Order) {
	n.ordersPaid = append(n.ordersPaid, order.Reference)
}

func (n *fakeNotifier) OrderCancelled(_ context.Context, order *models.Order) {
	n.ordersCancelled = append(n.ordersCancelled, order.Reference)
}

func (n *fakeNotifier) DonationPaid(_ context.Context, donation *models.Donation) {
	n.donationsPaid = append(n.donationsPaid, donation.Reference)
}

type fakeStock struct {
	released []string
	err      error
}

func (s *fakeStock) Release(_ context.Context, order *models.Order, _ string) error {
	if s.err != nil {
		return s.err
	}
	s.released = append(s.released, order.Reference)
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		Pesapal: config.PesapalConfig{
			BaseURL:         "https://pay.pesapal.com/v3",
			CallbackBaseURL: "https://shop.example",
		},
	}
}

func newTestEngine(gw *fakeGateway, store *fakeStore) (*Engine, *fakeNotifier, *fakeStock) {
	notifier := &fakeNotifier{}
	releaser := &fakeStock{}
	engine := NewEngine(testConfig(), gw, store, notifier, releaser, zap.NewNop().Sugar())
	return engine, notifier, releaser
}

func pendingOrder(trackingID string) *models.Order {
	tid := trackingID
	return &models.Order{
		ID:              "ord-1",
		Reference:       "ORD-2025-000123",
		UserID:          "user-1",
		OrderTrackingID: &tid,
		Amount:          decimal.RequireFromString("1250.00"),
		Currency:        "KES",
		PaymentMethod:   types.PaymentMethodGateway,
		PaymentStatus:   types.PaymentStatusPending,
		OrderStatus:     types.OrderStatusPendingPayment,
	}
}

func monthlyDonation(trackingID string) *models.Donation {
	tid := trackingID
	return &models.Donation{
		ID:              "don-1",
		Reference:       "DON-2025-000042",
		DonorID:         "donor-1",
		OrderTrackingID: &tid,
		Amount:          decimal.RequireFromString("500.00"),
		Currency:        "KES",
		Type:            types.DonationTypeMonthly,
		PaymentMethod:   types.PaymentMethodGateway,
		PaymentStatus:   types.PaymentStatusPending,
	}
}

func completedStatus(confirmation string) *pesapal.TransactionStatus {
	paidAt := time.Date(2025, 8, 14, 10, 30, 0, 0, time.UTC)
	return &pesapal.TransactionStatus{
		StatusDescription: pesapal.StatusCompleted,
		ConfirmationCode:  confirmation,
		PaymentMethod:     "MPESA",
		Amount:            decimal.RequireFromString("1250.00"),
		Currency:          "KES",
		PaidAt:            &paidAt,
	}
}

func failedStatus() *pesapal.TransactionStatus {
	return &pesapal.TransactionStatus{StatusDescription: "Failed"}
}

func TestReconcileOrderPaidOnCompleted(t *testing.T) {
	store := newFakeStore()
	store.putOrder(pendingOrder("trk-1"))
	gw := &fakeGateway{status: completedStatus("CONF-99")}
	engine, notifier, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, types.PaymentStatusPaid, outcome.Status)

	stored := store.orders["ord-1"]
	require.Equal(t, types.PaymentStatusPaid, stored.PaymentStatus)
	require.Equal(t, "CONF-99", stored.ConfirmationCode)
	// The fulfillment workflow owns orderStatus; the paid transition must
	// leave it exactly where it was.
	require.Equal(t, types.OrderStatusPendingPayment, stored.OrderStatus)
	require.NotNil(t, stored.PaidAt)
	require.Equal(t, []string{"ORD-2025-000123"}, notifier.ordersPaid)
}

func TestReconcileOrderFailedOnNonCompleted(t *testing.T) {
	store := newFakeStore()
	store.putOrder(pendingOrder("trk-1"))
	gw := &fakeGateway{status: failedStatus()}
	engine, notifier, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, types.PaymentStatusFailed, outcome.Status)

	stored := store.orders["ord-1"]
	require.Equal(t, types.PaymentStatusFailed, stored.PaymentStatus)
	// Failure never confirms the order and never notifies.
	require.Equal(t, types.OrderStatusPendingPayment, stored.OrderStatus)
	require.Empty(t, notifier.ordersPaid)
}

func TestReconcileOrderShortCircuitsTerminalSuccess(t *testing.T) {
	store := newFakeStore()
	order := pendingOrder("trk-1")
	order.PaymentStatus = types.PaymentStatusPaid
	store.putOrder(order)
	gw := &fakeGateway{status: failedStatus()}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.False(t, outcome.Changed)
	require.Equal(t, types.PaymentStatusPaid, outcome.Status)
	require.Zero(t, gw.statusCalls, "terminal payable must not hit the gateway")
	require.Zero(t, store.updateCalls)
}

func TestReconcileOrderGatewayUnavailableLeavesStateUntouched(t *testing.T) {
	store := newFakeStore()
	store.putOrder(pendingOrder("trk-1"))
	gw := &fakeGateway{statusErr: pesapal.ErrUnavailable}
	engine, _, _ := newTestEngine(gw, store)

	_, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.ErrorIs(t, err, pesapal.ErrUnavailable)
	require.Equal(t, types.PaymentStatusPending, store.orders["ord-1"].PaymentStatus)
	require.Zero(t, store.updateCalls)
}

func TestReconcileOrderLatePaidAfterFailedVerdict(t *testing.T) {
	store := newFakeStore()
	order := pendingOrder("trk-1")
	order.PaymentStatus = types.PaymentStatusFailed
	store.putOrder(order)
	gw := &fakeGateway{status: completedStatus("CONF-7")}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, types.PaymentStatusPaid, store.orders["ord-1"].PaymentStatus)
}

func TestReconcileOrderIdempotentOnRepeatedFailure(t *testing.T) {
	store := newFakeStore()
	order := pendingOrder("trk-1")
	order.PaymentStatus = types.PaymentStatusFailed
	store.putOrder(order)
	gw := &fakeGateway{status: failedStatus()}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.False(t, outcome.Changed)
	require.Zero(t, store.updateCalls)
}

func TestReconcileOrderRetriesOnVersionConflict(t *testing.T) {
	store := newFakeStore()
	store.putOrder(pendingOrder("trk-1"))
	store.conflictUpdates = 1
	gw := &fakeGateway{status: completedStatus("CONF-1")}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.NoError(t, err)
	require.True(t, outcome.Changed)
	require.Equal(t, 2, store.updateCalls)
	require.Equal(t, 1, gw.statusCalls, "gateway verdict is reused across conflict retries")
}

func TestReconcileOrderConflictExhaustionSurfaces(t *testing.T) {
	store := newFakeStore()
	store.putOrder(pendingOrder("trk-1"))
	store.conflictUpdates = 10
	gw := &fakeGateway{status: completedStatus("CONF-1")}
	engine, _, _ := newTestEngine(gw, store)

	_, err := engine.ReconcileOrder(context.Background(), "trk-1")
	require.ErrorIs(t, err, payable.ErrConflict)
	require.Equal(t, conflictRetries+1, store.updateCalls)
}

func TestReconcileOrderUnknownTrackingID(t *testing.T) {
	store := newFakeStore()
	gw := &fakeGateway{status: completedStatus("CONF-1")}
	engine, _, _ := newTestEngine(gw, store)

	_, err := engine.ReconcileOrder(context.Background(), "trk-unknown")
	require.ErrorIs(t, err, payable.ErrNotFound)
	require.Zero(t, gw.statusCalls)
}

func TestReconcileDonationOneTimeFailedIsRemoved(t *testing.T) {
	store := newFakeStore()
	donation := monthlyDonation("trk-d1")
	donation.Type = types.DonationTypeOneTime
	store.putDonation(donation)
	gw := &fakeGateway{status: failedStatus()}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileDonation(context.Background(), "trk-d1")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, outcome.Status)
	require.Equal(t, []string{"don-1"}, store.deletedDonations)
	require.NotContains(t, store.donations, "don-1")
}

func TestReconcileDonationMonthlyFailedStaysForRetry(t *testing.T) {
	store := newFakeStore()
	store.putDonation(monthlyDonation("trk-d1"))
	gw := &fakeGateway{status: failedStatus()}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileDonation(context.Background(), "trk-d1")
	require.NoError(t, err)
	require.Equal(t, types.PaymentStatusFailed, outcome.Status)
	require.Empty(t, store.deletedDonations)
	require.Equal(t, types.PaymentStatusFailed, store.donations["don-1"].PaymentStatus)
}

func TestReconcileDonationMonthlyInitialPaymentOpensLedger(t *testing.T) {
	store := newFakeStore()
	store.putDonation(monthlyDonation("trk-d1"))
	gw := &fakeGateway{status: completedStatus("CONF-D1")}
	engine, notifier, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileDonation(context.Background(), "trk-d1")
	require.NoError(t, err)
	require.True(t, outcome.Changed)

	require.Len(t, store.ledger, 1)
	entry := store.ledger[0]
	require.True(t, entry.IsInitialPayment)
	require.Equal(t, "trk-d1", entry.GatewayTrackingID)
	require.Equal(t, "CONF-D1", entry.ConfirmationCode)

	stored := store.donations["don-1"]
	require.Equal(t, types.PaymentStatusPaid, stored.PaymentStatus)
	require.Equal(t, 1, stored.TotalDonations)
	require.Equal(t, []string{"DON-2025-000042"}, notifier.donationsPaid)
}

func TestReconcileRecurringAppendsCycleToPaidDonation(t *testing.T) {
	store := newFakeStore()
	donation := monthlyDonation("trk-d1")
	donation.PaymentStatus = types.PaymentStatusPaid
	donation.TotalDonations = 1
	donation.TotalAmount = decimal.RequireFromString("500.00")
	store.putDonation(donation)
	store.ledger = append(store.ledger, &models.DonationPayment{
		DonationID: "don-1", Amount: decimal.RequireFromString("500.00"),
		Status: types.PaymentStatusPaid, IsInitialPayment: true,
	})

	cycle := completedStatus("CONF-D2")
	cycle.Amount = decimal.RequireFromString("500.00")
	gw := &fakeGateway{status: cycle}
	engine, notifier, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileRecurring(context.Background(), "trk-d2", "DON-2025-000042")
	require.NoError(t, err)
	require.True(t, outcome.Changed, "paid donation must not short-circuit recurring cycles")

	require.Len(t, store.ledger, 2)
	require.False(t, store.ledger[1].IsInitialPayment)

	stored := store.donations["don-1"]
	require.Equal(t, 2, stored.TotalDonations)
	require.True(t, stored.TotalAmount.Equal(decimal.RequireFromString("1000.00")))
	require.Equal(t, []string{"DON-2025-000042"}, notifier.donationsPaid)
}

func TestReconcileRecurringFailedCycleIsAuditOnly(t *testing.T) {
	store := newFakeStore()
	donation := monthlyDonation("trk-d1")
	donation.PaymentStatus = types.PaymentStatusPaid
	donation.TotalDonations = 1
	store.putDonation(donation)
	gw := &fakeGateway{status: failedStatus()}
	engine, _, _ := newTestEngine(gw, store)

	outcome, err := engine.ReconcileRecurring(context.Background(), "trk-d2", "DON-2025-000042")
	require.NoError(t, err)
	require.False(t, outcome.Changed)
	require.Equal(t, types.PaymentStatusPaid, outcome.Status)
	require.Empty(t, store.ledger)
	require.Equal(t, types.PaymentStatusPaid, store.donations["don-1"].PaymentStatus)
}

func TestReconcileRecurringRejectsOneTimeDonation(t *testing.T) {
	store := newFakeStore()
	donation := monthlyDonation("trk-d1")
	donation.Type = types.DonationTypeOneTime
	store.putDonation(donation)
	gw := &fakeGateway{status: completedStatus("CONF-X")}
	engine, _, _ := newTestEngine(gw, store)

	_, err := engine.ReconcileRecurring(context.Background(), "trk-d2", "DON-2025-000042")
	require.ErrorIs(t, err, ErrInvariantViolation)
	require.Zero(t, gw.statusCalls)
}
