package models

import (
	"time"

	"gorm.io/datatypes"
)

type NotificationEventStatus string

const (
	NotificationEventStatusPending NotificationEventStatus = "pending"
	NotificationEventStatusSent    NotificationEventStatus = "sent"
)

// NotificationEvent is a customer/admin email event persisted for the
// external mailer to drain. The reconciliation engine writes these
// fire-and-forget; a failed write never rolls back a payment transition.
type NotificationEvent struct {
	ID        string                  `gorm:"column:id;type:uuid;primary_key" json:"id"`
	EventType string                  `gorm:"column:event_type;type:varchar(64);not null;index" json:"event_type"`
	BizKind   string                  `gorm:"column:biz_kind;type:varchar(16);not null" json:"biz_kind"`
	BizRef    string                  `gorm:"column:biz_ref;type:varchar(32);not null;index" json:"biz_ref"`
	Data      datatypes.JSON          `gorm:"column:data;type:jsonb" json:"data"`
	Status    NotificationEventStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func (NotificationEvent) TableName() string { return "notification_event" }
