package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/sokoyetu/paydesk/pkg/types"
)

// Order is the marketplace payable. PaymentStatus and OrderStatus are
// deliberately independent lifecycles: a cash-on-delivery order is
// confirmed and fulfilled while its payment stays pending until delivery.
type Order struct {
	ID        string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Reference string `gorm:"column:reference;type:varchar(32);not null;uniqueIndex" json:"reference"`
	UserID    string `gorm:"column:user_id;type:varchar(64);not null;index" json:"user_id"`
	// OrderTrackingID is assigned by the gateway at submission. Exactly one
	// live row per tracking id; a payment retry supersedes the old value.
	OrderTrackingID *string `gorm:"column:order_tracking_id;type:varchar(64);index" json:"order_tracking_id"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`

	PaymentMethod types.PaymentMethod `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	PaymentStatus types.PaymentStatus `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`
	OrderStatus   types.OrderStatus   `gorm:"column:order_status;type:varchar(32);not null" json:"order_status"`

	// ConfirmationCode is the gateway settlement reference, set on paid.
	ConfirmationCode string `gorm:"column:confirmation_code;type:varchar(64)" json:"confirmation_code"`

	// Version guards optimistic concurrency on updates.
	Version int `gorm:"column:version;not null;default:0" json:"version"`

	PaidAt    *time.Time     `gorm:"column:paid_at;default:null" json:"paid_at"`
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Order) TableName() string {
	return "orders"
}

func (o *Order) TrackingID() string {
	if o == nil || o.OrderTrackingID == nil {
		return ""
	}
	return *o.OrderTrackingID
}
