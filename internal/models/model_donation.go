package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/sokoyetu/paydesk/pkg/types"
)

// Donation is a payable without a fulfillment lifecycle. Monthly donations
// carry an append-only ledger of billing-cycle payments (DonationPayment)
// with aggregates recomputed on each append.
type Donation struct {
	ID        string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	Reference string `gorm:"column:reference;type:varchar(32);not null;uniqueIndex" json:"reference"`
	DonorID   string `gorm:"column:donor_id;type:varchar(64);index" json:"donor_id"`

	OrderTrackingID *string `gorm:"column:order_tracking_id;type:varchar(64);index" json:"order_tracking_id"`

	Amount   decimal.Decimal `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency string          `gorm:"column:currency;type:varchar(8);not null" json:"currency"`

	Type          types.DonationType  `gorm:"column:type;type:varchar(16);not null" json:"type"`
	PaymentMethod types.PaymentMethod `gorm:"column:payment_method;type:varchar(32);not null" json:"payment_method"`
	PaymentStatus types.PaymentStatus `gorm:"column:payment_status;type:varchar(32);not null" json:"payment_status"`

	ConfirmationCode string `gorm:"column:confirmation_code;type:varchar(64)" json:"confirmation_code"`

	// Ledger aggregates, derived from donation_payment rows. Invariant:
	// TotalDonations == row count, TotalAmount == sum of row amounts.
	TotalDonations int             `gorm:"column:total_donations;not null;default:0" json:"total_donations"`
	TotalAmount    decimal.Decimal `gorm:"column:total_amount;type:numeric(12,2);not null;default:0" json:"total_amount"`

	Version int `gorm:"column:version;not null;default:0" json:"version"`

	PaidAt    *time.Time     `gorm:"column:paid_at;default:null" json:"paid_at"`
	Extra     datatypes.JSON `gorm:"column:extra;type:jsonb;default:'{}'" json:"extra"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

func (Donation) TableName() string {
	return "donations"
}

func (d *Donation) TrackingID() string {
	if d == nil || d.OrderTrackingID == nil {
		return ""
	}
	return *d.OrderTrackingID
}

func (d *Donation) Monthly() bool {
	return d != nil && d.Type == types.DonationTypeMonthly
}
