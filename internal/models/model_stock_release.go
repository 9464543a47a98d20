package models

import (
	"time"

	"gorm.io/datatypes"
)

// StockRelease records a reservation release handed to the inventory
// collaborator when a pending order is cancelled.
type StockRelease struct {
	ID             string         `gorm:"column:id;type:uuid;primary_key" json:"id"`
	OrderReference string         `gorm:"column:order_reference;type:varchar(32);not null;index" json:"order_reference"`
	Reason         string         `gorm:"column:reason;type:varchar(64)" json:"reason"`
	Items          datatypes.JSON `gorm:"column:items;type:jsonb" json:"items"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (StockRelease) TableName() string { return "stock_release" }
