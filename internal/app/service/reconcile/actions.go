package reconcile

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/pkg/types"
)

// IPNRegistrar yields the gateway notification id to attach to submissions.
type IPNRegistrar interface {
	NotificationID(ctx context.Context) (string, error)
}

// BillingContact is the customer detail forwarded to the gateway's hosted
// payment page.
type BillingContact struct {
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// PaymentSession is a live gateway payment attempt the customer is sent to.
type PaymentSession struct {
	Reference   string `json:"reference"`
	TrackingID  string `json:"tracking_id"`
	RedirectURL string `json:"redirect_url"`
}

// Actions drives payable lifecycle operations that talk to the gateway.
type Actions struct {
	engine *Engine
	ipn    IPNRegistrar
}

func NewActions(engine *Engine, ipn IPNRegistrar) *Actions {
	return &Actions{engine: engine, ipn: ipn}
}

// InitiatePayment submits a fresh payable to the gateway and moves it to
// pending. Only legal from not_initiated with a gateway payment method, so
// a double click cannot create two gateway orders.
func (a *Actions) InitiatePayment(ctx context.Context, kind types.PayableKind, reference string, contact BillingContact) (*PaymentSession, error) {
	e := a.engine
	switch kind {
	case types.PayableKindOrder:
		order, err := e.store.GetOrderByRef(ctx, reference)
		if err != nil {
			return nil, err
		}
		if order.PaymentStatus != types.PaymentStatusNotInitiated || !order.PaymentMethod.ViaGateway() {
			return nil, fmt.Errorf("order %s in %s via %s: %w",
				reference, order.PaymentStatus, order.PaymentMethod, ErrActionNotAllowed)
		}
		submission, err := a.submit(ctx, reference, order.Amount, order.Currency, "order payment", contact)
		if err != nil {
			return nil, err
		}
		order.OrderTrackingID = &submission.TrackingID
		order.PaymentStatus = types.PaymentStatusPending
		if err := e.store.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
		e.log.Infow("payment_initiated", "kind", kind, "reference", reference, "tracking_id", submission.TrackingID)
		return &PaymentSession{Reference: reference, TrackingID: submission.TrackingID, RedirectURL: submission.RedirectURL}, nil

	case types.PayableKindDonation:
		donation, err := e.store.GetDonationByRef(ctx, reference)
		if err != nil {
			return nil, err
		}
		if donation.PaymentStatus != types.PaymentStatusNotInitiated || !donation.PaymentMethod.ViaGateway() {
			return nil, fmt.Errorf("donation %s in %s via %s: %w",
				reference, donation.PaymentStatus, donation.PaymentMethod, ErrActionNotAllowed)
		}
		submission, err := a.submit(ctx, reference, donation.Amount, donation.Currency, donationDescription(donation), contact)
		if err != nil {
			return nil, err
		}
		donation.OrderTrackingID = &submission.TrackingID
		donation.PaymentStatus = types.PaymentStatusPending
		if err := e.store.UpdateDonation(ctx, donation); err != nil {
			return nil, err
		}
		e.log.Infow("payment_initiated", "kind", kind, "reference", reference, "tracking_id", submission.TrackingID)
		return &PaymentSession{Reference: reference, TrackingID: submission.TrackingID, RedirectURL: submission.RedirectURL}, nil

	default:
		return nil, fmt.Errorf("unknown payable kind %q: %w", kind, ErrActionNotAllowed)
	}
}

// RetryPayment opens a fresh gateway attempt for a pending or failed
// payable. The new tracking id overwrites the old one, so late deliveries
// for the superseded attempt no longer resolve and get acked as unknown.
func (a *Actions) RetryPayment(ctx context.Context, kind types.PayableKind, reference string, contact BillingContact) (*PaymentSession, error) {
	e := a.engine
	switch kind {
	case types.PayableKindOrder:
		order, err := e.store.GetOrderByRef(ctx, reference)
		if err != nil {
			return nil, err
		}
		if !retryable(order.PaymentStatus) || !order.PaymentMethod.ViaGateway() {
			return nil, fmt.Errorf("order %s in %s via %s: %w",
				reference, order.PaymentStatus, order.PaymentMethod, ErrActionNotAllowed)
		}
		submission, err := a.submit(ctx, reference, order.Amount, order.Currency, "order payment retry", contact)
		if err != nil {
			return nil, err
		}
		order.OrderTrackingID = &submission.TrackingID
		order.PaymentStatus = types.PaymentStatusPending
		if err := e.store.UpdateOrder(ctx, order); err != nil {
			return nil, err
		}
		e.log.Infow("payment_retry_initiated", "kind", kind, "reference", reference, "tracking_id", submission.TrackingID)
		return &PaymentSession{Reference: reference, TrackingID: submission.TrackingID, RedirectURL: submission.RedirectURL}, nil

	case types.PayableKindDonation:
		donation, err := e.store.GetDonationByRef(ctx, reference)
		if err != nil {
			return nil, err
		}
		if !retryable(donation.PaymentStatus) || !donation.PaymentMethod.ViaGateway() {
			return nil, fmt.Errorf("donation %s in %s via %s: %w",
				reference, donation.PaymentStatus, donation.PaymentMethod, ErrActionNotAllowed)
		}
		submission, err := a.submit(ctx, reference, donation.Amount, donation.Currency, donationDescription(donation), contact)
		if err != nil {
			return nil, err
		}
		donation.OrderTrackingID = &submission.TrackingID
		donation.PaymentStatus = types.PaymentStatusPending
		if err := e.store.UpdateDonation(ctx, donation); err != nil {
			return nil, err
		}
		e.log.Infow("payment_retry_initiated", "kind", kind, "reference", reference, "tracking_id", submission.TrackingID)
		return &PaymentSession{Reference: reference, TrackingID: submission.TrackingID, RedirectURL: submission.RedirectURL}, nil

	default:
		return nil, fmt.Errorf("unknown payable kind %q: %w", kind, ErrActionNotAllowed)
	}
}

// CancelOrder cancels an order. An unpaid order awaiting payment is removed
// outright with its stock reservation released; a confirmed order still
// before dispatch is soft-cancelled and, when already paid, refunded through
// the gateway. Anything shipped or further along cannot be cancelled.
func (a *Actions) CancelOrder(ctx context.Context, reference string, byAdmin bool) error {
	e := a.engine
	order, err := e.store.GetOrderByRef(ctx, reference)
	if err != nil {
		return err
	}
	if order.OrderStatus.Cancelled() {
		return nil
	}

	switch order.OrderStatus {
	case types.OrderStatusPendingPayment:
		if order.PaymentStatus != types.PaymentStatusPending {
			return fmt.Errorf("order %s awaiting payment in %s: %w",
				reference, order.PaymentStatus, ErrActionNotAllowed)
		}
		return a.cancelPending(ctx, order, byAdmin)
	case types.OrderStatusProcessing, types.OrderStatusReadyForDelivery:
		return a.cancelConfirmed(ctx, order, byAdmin)
	default:
		return fmt.Errorf("order %s in %s: %w", reference, order.OrderStatus, ErrActionNotAllowed)
	}
}

// cancelPending removes an order that never reached fulfillment. The
// gateway-side cancel is best effort: a pending gateway order expires on
// its own and our tracking id is gone either way.
func (a *Actions) cancelPending(ctx context.Context, order *models.Order, byAdmin bool) error {
	e := a.engine

	if err := e.stock.Release(ctx, order, cancelReason(byAdmin)); err != nil {
		return fmt.Errorf("release stock for order %s: %w", order.Reference, err)
	}
	if tid := order.TrackingID(); tid != "" {
		if err := e.gw.Cancel(ctx, tid); err != nil {
			e.log.Warnw("gateway_cancel_failed", "reference", order.Reference, "tracking_id", tid, "err", err)
		}
	}
	if err := e.store.DeleteOrder(ctx, order.ID); err != nil {
		return err
	}

	e.log.Infow("order_cancelled", "reference", order.Reference, "by_admin", byAdmin, "deleted", true)
	e.notifier.OrderCancelled(ctx, order)
	return nil
}

// cancelConfirmed keeps the order row for the customer's history. A paid
// order must refund successfully before the cancel lands.
func (a *Actions) cancelConfirmed(ctx context.Context, order *models.Order, byAdmin bool) error {
	e := a.engine

	if order.PaymentStatus == types.PaymentStatusPaid {
		err := e.gw.Refund(ctx, order.ConfirmationCode, order.Amount, "order cancelled: "+cancelReason(byAdmin))
		if err != nil {
			return fmt.Errorf("refund order %s: %w", order.Reference, err)
		}
		order.PaymentStatus = types.PaymentStatusRefunded
	}

	if byAdmin {
		order.OrderStatus = types.OrderStatusCancelledByAdmin
	} else {
		order.OrderStatus = types.OrderStatusCancelledByUser
	}
	if err := e.store.UpdateOrder(ctx, order); err != nil {
		return err
	}

	e.log.Infow("order_cancelled", "reference", order.Reference, "by_admin", byAdmin, "deleted", false,
		"payment_status", order.PaymentStatus)
	e.notifier.OrderCancelled(ctx, order)
	return nil
}

func (a *Actions) submit(ctx context.Context, reference string, amount decimal.Decimal, currency, description string, contact BillingContact) (*pesapal.OrderSubmission, error) {
	e := a.engine

	notificationID, err := a.ipn.NotificationID(ctx)
	if err != nil {
		return nil, err
	}

	return e.gw.SubmitOrder(ctx, pesapal.SubmitOrderRequest{
		Reference:      reference,
		Amount:         amount,
		Currency:       currency,
		Description:    description,
		CallbackURL:    strings.TrimRight(e.cfg.Pesapal.CallbackBaseURL, "/") + "/api/v1/payments/callback",
		NotificationID: notificationID,
		BillingEmail:   contact.Email,
		BillingPhone:   contact.Phone,
		FirstName:      contact.FirstName,
		LastName:       contact.LastName,
	})
}

func retryable(status types.PaymentStatus) bool {
	return status == types.PaymentStatusPending || status == types.PaymentStatusFailed
}

func cancelReason(byAdmin bool) string {
	if byAdmin {
		return "cancelled_by_admin"
	}
	return "cancelled_by_user"
}

func donationDescription(donation *models.Donation) string {
	if donation.Monthly() {
		return "monthly donation"
	}
	return "one-time donation"
}
