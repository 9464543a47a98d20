package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/sokoyetu/paydesk/pkg/types"
)

// DonationPayment is one ledger entry under a recurring donation. Rows are
// append-only; corrections happen by appending, never by mutation.
type DonationPayment struct {
	ID         string `gorm:"column:id;primary_key;type:uuid" json:"id"`
	DonationID string `gorm:"column:donation_id;type:uuid;not null;index" json:"donation_id"`

	PaymentDate       time.Time           `gorm:"column:payment_date;not null" json:"payment_date"`
	Amount            decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	GatewayTrackingID string              `gorm:"column:gateway_tracking_id;type:varchar(64);not null" json:"gateway_tracking_id"`
	ConfirmationCode  string              `gorm:"column:confirmation_code;type:varchar(64)" json:"confirmation_code"`
	Status            types.PaymentStatus `gorm:"column:status;type:varchar(32);not null" json:"status"`
	IsInitialPayment  bool                `gorm:"column:is_initial_payment;not null;default:false" json:"is_initial_payment"`

	CreatedAt time.Time `json:"created_at"`
}

func (DonationPayment) TableName() string {
	return "donation_payment"
}
