package types

// PayableKind distinguishes the two payable entity kinds.
type PayableKind string

const (
	PayableKindOrder    PayableKind = "order"
	PayableKindDonation PayableKind = "donation"
)

type PaymentMethod string

const (
	PaymentMethodGateway        PaymentMethod = "gateway"
	PaymentMethodCashOnDelivery PaymentMethod = "cash_on_delivery"
	PaymentMethodBankTransfer   PaymentMethod = "bank_transfer"
)

// ViaGateway reports whether the method settles through the payment gateway.
func (m PaymentMethod) ViaGateway() bool {
	return m == PaymentMethodGateway
}

type PaymentStatus string

const (
	PaymentStatusNotInitiated PaymentStatus = "not_initiated"
	PaymentStatusPending      PaymentStatus = "pending"
	PaymentStatusPaid         PaymentStatus = "paid"
	PaymentStatusFailed       PaymentStatus = "failed"
	PaymentStatusRefunded     PaymentStatus = "refunded"
)

// TerminalSuccess reports whether the status is a terminal success state.
// Webhook-driven reconciliation short-circuits on these.
func (s PaymentStatus) TerminalSuccess() bool {
	return s == PaymentStatusPaid || s == PaymentStatusRefunded
}

// paymentTransitions is the allowed automated transition set. The lifecycle
// is monotonic except for the explicit failed -> pending retry and
// paid -> refunded.
var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusNotInitiated: {PaymentStatusPending},
	PaymentStatusPending:      {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusFailed:       {PaymentStatusPending, PaymentStatusPaid},
	PaymentStatusPaid:         {PaymentStatusRefunded},
	PaymentStatusRefunded:     {},
}

// CanTransitionPayment reports whether from -> to is a legal payment status
// move. Same-state is not a transition and returns false; callers treat it
// as an idempotent no-op before consulting this table.
func CanTransitionPayment(from, to PaymentStatus) bool {
	for _, next := range paymentTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

type OrderStatus string

const (
	OrderStatusPendingPayment    OrderStatus = "pending_payment"
	OrderStatusConfirmed         OrderStatus = "confirmed"
	OrderStatusProcessing        OrderStatus = "processing"
	OrderStatusReadyForDelivery  OrderStatus = "ready_for_delivery"
	OrderStatusShipped           OrderStatus = "shipped"
	OrderStatusOutForDelivery    OrderStatus = "out_for_delivery"
	OrderStatusDelivered         OrderStatus = "delivered"
	OrderStatusCancelledByUser   OrderStatus = "cancelled_by_user"
	OrderStatusCancelledByAdmin  OrderStatus = "cancelled_by_admin"
)

// Cancelled reports whether the order sits in an absorbing cancel state.
func (s OrderStatus) Cancelled() bool {
	return s == OrderStatusCancelledByUser || s == OrderStatusCancelledByAdmin
}

type DonationType string

const (
	DonationTypeOneTime DonationType = "one_time"
	DonationTypeMonthly DonationType = "monthly"
)

// NotificationTypeRecurring routes a gateway IPN to the recurring-payment
// handler regardless of merchant reference shape.
const NotificationTypeRecurring = "RECURRING"

// DonationReferencePrefix marks merchant references that belong to donations.
const DonationReferencePrefix = "DON-"
