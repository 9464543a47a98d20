package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/pkg/config"
	"github.com/sokoyetu/paydesk/pkg/types"
)

// conflictRetries bounds how often a version conflict triggers a reload
// before the error is surfaced for redelivery.
const conflictRetries = 2

// Gateway is the slice of the payment gateway the engine needs.
type Gateway interface {
	SubmitOrder(ctx context.Context, req pesapal.SubmitOrderRequest) (*pesapal.OrderSubmission, error)
	GetTransactionStatus(ctx context.Context, trackingID string) (*pesapal.TransactionStatus, error)
	Refund(ctx context.Context, confirmationCode string, amount decimal.Decimal, remarks string) error
	Cancel(ctx context.Context, trackingID string) error
}

// Store is the payable persistence surface. *payable.Repository satisfies it.
type Store interface {
	GetOrderByRef(ctx context.Context, reference string) (*models.Order, error)
	GetOrderByTrackingID(ctx context.Context, trackingID string) (*models.Order, error)
	GetDonationByRef(ctx context.Context, reference string) (*models.Donation, error)
	GetDonationByTrackingID(ctx context.Context, trackingID string) (*models.Donation, error)
	UpdateOrder(ctx context.Context, order *models.Order) error
	UpdateDonation(ctx context.Context, donation *models.Donation) error
	AppendLedgerEntry(ctx context.Context, donation *models.Donation, entry *models.DonationPayment) error
	DeleteOrder(ctx context.Context, id string) error
	DeleteDonation(ctx context.Context, id string) error
}

// Notifier records customer notification events. Failures are logged and
// never fail a reconciliation.
type Notifier interface {
	OrderPaid(ctx context.Context, order *models.Order)
	OrderCancelled(ctx context.Context, order *models.Order)
	DonationPaid(ctx context.Context, donation *models.Donation)
}

// StockReleaser returns reserved inventory when a pending order dies.
type StockReleaser interface {
	Release(ctx context.Context, order *models.Order, reason string) error
}

// Outcome summarizes one reconciliation for the caller.
type Outcome struct {
	Kind      types.PayableKind   `json:"kind"`
	Reference string              `json:"reference"`
	Status    types.PaymentStatus `json:"status"`
	Changed   bool                `json:"changed"`
}

// Reconciler is the engine surface the webhook handlers depend on.
type Reconciler interface {
	ReconcileOrder(ctx context.Context, trackingID string) (*Outcome, error)
	ReconcileDonation(ctx context.Context, trackingID string) (*Outcome, error)
	ReconcileRecurring(ctx context.Context, trackingID, merchantReference string) (*Outcome, error)
}

// Engine drives payable state from the gateway's authoritative transaction
// status. Webhook payloads are treated as signals only: every verdict comes
// from GetTransactionStatus.
type Engine struct {
	cfg      *config.Config
	gw       Gateway
	store    Store
	notifier Notifier
	stock    StockReleaser
	log      *zap.SugaredLogger
}

func NewEngine(cfg *config.Config, gw Gateway, store Store, notifier Notifier, stock StockReleaser, log *zap.SugaredLogger) *Engine {
	return &Engine{cfg: cfg, gw: gw, store: store, notifier: notifier, stock: stock, log: log}
}

// ReconcileOrder settles one order payment attempt identified by the
// gateway tracking id. Idempotent: a terminal-success order acks without
// touching the gateway.
func (e *Engine) ReconcileOrder(ctx context.Context, trackingID string) (*Outcome, error) {
	var status *pesapal.TransactionStatus

	for attempt := 0; ; attempt++ {
		order, err := e.store.GetOrderByTrackingID(ctx, trackingID)
		if err != nil {
			return nil, err
		}

		if order.PaymentStatus.TerminalSuccess() {
			e.log.Infow("payment_reconcile_short_circuit",
				"kind", types.PayableKindOrder, "reference", order.Reference, "status", order.PaymentStatus)
			return &Outcome{Kind: types.PayableKindOrder, Reference: order.Reference, Status: order.PaymentStatus}, nil
		}

		// The gateway query happens once; conflict retries reuse the verdict.
		if status == nil {
			status, err = e.gw.GetTransactionStatus(ctx, trackingID)
			if err != nil {
				return nil, err
			}
		}

		target := verdict(status)
		if order.PaymentStatus == target {
			return &Outcome{Kind: types.PayableKindOrder, Reference: order.Reference, Status: target}, nil
		}
		if !types.CanTransitionPayment(order.PaymentStatus, target) {
			return nil, fmt.Errorf("order %s: %s -> %s: %w",
				order.Reference, order.PaymentStatus, target, ErrInvariantViolation)
		}

		// Only payment fields move here. The fulfillment workflow owns
		// orderStatus and reacts to the paid signal on its own.
		order.PaymentStatus = target
		if target == types.PaymentStatusPaid {
			order.ConfirmationCode = status.ConfirmationCode
			order.PaidAt = paidAt(status)
		}

		err = e.store.UpdateOrder(ctx, order)
		if errors.Is(err, payable.ErrConflict) && attempt < conflictRetries {
			e.log.Warnw("payment_reconcile_conflict_retry",
				"kind", types.PayableKindOrder, "reference", order.Reference, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.log.Infow("payment_reconciled",
			"kind", types.PayableKindOrder, "reference", order.Reference,
			"status", target, "tracking_id", trackingID, "confirmation_code", order.ConfirmationCode)

		if target == types.PaymentStatusPaid {
			e.notifier.OrderPaid(ctx, order)
		}
		return &Outcome{Kind: types.PayableKindOrder, Reference: order.Reference, Status: target, Changed: true}, nil
	}
}

// ReconcileDonation settles the initial payment of a donation. A failed
// one-time donation is persisted failed, then deleted best-effort; a failed
// monthly donation stays for retry.
func (e *Engine) ReconcileDonation(ctx context.Context, trackingID string) (*Outcome, error) {
	var status *pesapal.TransactionStatus

	for attempt := 0; ; attempt++ {
		donation, err := e.store.GetDonationByTrackingID(ctx, trackingID)
		if err != nil {
			return nil, err
		}

		if donation.PaymentStatus.TerminalSuccess() {
			e.log.Infow("payment_reconcile_short_circuit",
				"kind", types.PayableKindDonation, "reference", donation.Reference, "status", donation.PaymentStatus)
			return &Outcome{Kind: types.PayableKindDonation, Reference: donation.Reference, Status: donation.PaymentStatus}, nil
		}

		if status == nil {
			status, err = e.gw.GetTransactionStatus(ctx, trackingID)
			if err != nil {
				return nil, err
			}
		}

		target := verdict(status)
		if donation.PaymentStatus == target {
			return &Outcome{Kind: types.PayableKindDonation, Reference: donation.Reference, Status: target}, nil
		}
		if !types.CanTransitionPayment(donation.PaymentStatus, target) {
			return nil, fmt.Errorf("donation %s: %s -> %s: %w",
				donation.Reference, donation.PaymentStatus, target, ErrInvariantViolation)
		}

		donation.PaymentStatus = target
		if target == types.PaymentStatusPaid {
			donation.ConfirmationCode = status.ConfirmationCode
			donation.PaidAt = paidAt(status)
		}

		if target == types.PaymentStatusPaid && donation.Monthly() {
			entry := ledgerEntry(donation, status, trackingID, donation.TotalDonations == 0)
			err = e.store.AppendLedgerEntry(ctx, donation, entry)
		} else {
			err = e.store.UpdateDonation(ctx, donation)
		}
		if errors.Is(err, payable.ErrConflict) && attempt < conflictRetries {
			e.log.Warnw("payment_reconcile_conflict_retry",
				"kind", types.PayableKindDonation, "reference", donation.Reference, "attempt", attempt+1)
			continue
		}
		if err != nil {
			return nil, err
		}

		e.log.Infow("payment_reconciled",
			"kind", types.PayableKindDonation, "reference", donation.Reference,
			"status", target, "tracking_id", trackingID, "confirmation_code", donation.ConfirmationCode)

		switch {
		case target == types.PaymentStatusPaid:
			e.notifier.DonationPaid(ctx, donation)
		case target == types.PaymentStatusFailed && !donation.Monthly():
			// Failed one-time donations carry no fulfillment and are removed.
			// Best effort: the persisted failed status is already correct.
			if delErr := e.store.DeleteDonation(ctx, donation.ID); delErr != nil {
				e.log.Warnw("donation_cleanup_failed", "reference", donation.Reference, "err", delErr)
			}
		}
		return &Outcome{Kind: types.PayableKindDonation, Reference: donation.Reference, Status: target, Changed: true}, nil
	}
}

func verdict(status *pesapal.TransactionStatus) types.PaymentStatus {
	if status.Paid() {
		return types.PaymentStatusPaid
	}
	return types.PaymentStatusFailed
}

func paidAt(status *pesapal.TransactionStatus) *time.Time {
	if status.PaidAt != nil {
		return status.PaidAt
	}
	now := time.Now()
	return &now
}

func ledgerEntry(donation *models.Donation, status *pesapal.TransactionStatus, trackingID string, initial bool) *models.DonationPayment {
	amount := status.Amount
	if amount.IsZero() {
		amount = donation.Amount
	}
	paymentDate := time.Now()
	if status.PaidAt != nil {
		paymentDate = *status.PaidAt
	}
	return &models.DonationPayment{
		PaymentDate:       paymentDate,
		Amount:            amount,
		GatewayTrackingID: trackingID,
		ConfirmationCode:  status.ConfirmationCode,
		Status:            types.PaymentStatusPaid,
		IsInitialPayment:  initial,
	}
}
