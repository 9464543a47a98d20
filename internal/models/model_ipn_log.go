package models

import (
	"time"

	"gorm.io/datatypes"
)

type IPNLogStatus string

const (
	IPNLogStatusReceived     IPNLogStatus = "received"
	IPNLogStatusHandled      IPNLogStatus = "handled"
	IPNLogStatusHandleFailed IPNLogStatus = "handle_failed"
)

// IPNLog is the audit trail of gateway webhook deliveries. Every delivery
// writes a received row and a handled/handle_failed row with the outcome.
type IPNLog struct {
	ID                string          `gorm:"column:id;type:uuid;primary_key" json:"id"`
	TraceID           string          `gorm:"column:trace_id;type:varchar(128)" json:"trace_id"`
	TrackingID        string          `gorm:"column:tracking_id;type:varchar(64);index" json:"tracking_id"`
	MerchantReference string          `gorm:"column:merchant_reference;type:varchar(64);index" json:"merchant_reference"`
	NotificationType  string          `gorm:"column:notification_type;type:varchar(32)" json:"notification_type"`
	SourceIP          string          `gorm:"column:source_ip;type:varchar(64)" json:"source_ip"`
	Data              datatypes.JSON  `gorm:"column:data;type:jsonb" json:"data"`
	Result            *datatypes.JSON `gorm:"column:result;type:jsonb" json:"result"`
	Status            IPNLogStatus    `gorm:"column:status;type:varchar(32);not null" json:"status"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

func (IPNLog) TableName() string { return "ipn_log" }
