package payable

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/tool"
	"github.com/sokoyetu/paydesk/pkg/types"
)

var (
	ErrNotFound = errors.New("payable not found")
	// ErrConflict means the row moved under us: the version guard matched
	// zero rows. Callers reload and retry.
	ErrConflict = errors.New("payable version conflict")
)

type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, log *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: log}
}

func (r *Repository) GetOrderByRef(ctx context.Context, reference string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) GetOrderByTrackingID(ctx context.Context, trackingID string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).Where("order_tracking_id = ?", trackingID).First(&order).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order tracking %s: %w", trackingID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *Repository) GetDonationByRef(ctx context.Context, reference string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).Where("reference = ?", reference).First(&donation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("donation %s: %w", reference, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

func (r *Repository) GetDonationByTrackingID(ctx context.Context, trackingID string) (*models.Donation, error) {
	var donation models.Donation
	err := r.db.WithContext(ctx).Where("order_tracking_id = ?", trackingID).First(&donation).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("donation tracking %s: %w", trackingID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &donation, nil
}

func (r *Repository) CreateOrder(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = tool.GenerateUUIDV7()
	}
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *Repository) CreateDonation(ctx context.Context, donation *models.Donation) error {
	if donation.ID == "" {
		donation.ID = tool.GenerateUUIDV7()
	}
	return r.db.WithContext(ctx).Create(donation).Error
}

// UpdateOrder persists the order's mutable columns guarded by the version
// it was loaded at. On success the in-memory version is bumped to match.
func (r *Repository) UpdateOrder(ctx context.Context, order *models.Order) error {
	res := r.db.WithContext(ctx).Model(&models.Order{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"order_tracking_id": order.OrderTrackingID,
			"payment_status":    order.PaymentStatus,
			"order_status":      order.OrderStatus,
			"confirmation_code": order.ConfirmationCode,
			"paid_at":           order.PaidAt,
			"extra":             order.Extra,
			"version":           order.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("order %s at version %d: %w", order.Reference, order.Version, ErrConflict)
	}
	order.Version++
	return nil
}

func (r *Repository) UpdateDonation(ctx context.Context, donation *models.Donation) error {
	res := r.db.WithContext(ctx).Model(&models.Donation{}).
		Where("id = ? AND version = ?", donation.ID, donation.Version).
		Updates(map[string]any{
			"order_tracking_id": donation.OrderTrackingID,
			"payment_status":    donation.PaymentStatus,
			"confirmation_code": donation.ConfirmationCode,
			"paid_at":           donation.PaidAt,
			"extra":             donation.Extra,
			"version":           donation.Version + 1,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("donation %s at version %d: %w", donation.Reference, donation.Version, ErrConflict)
	}
	donation.Version++
	return nil
}

// AppendLedgerEntry inserts one donation_payment row and recomputes the
// donation's ledger aggregates in the same transaction. The donation update
// is version-guarded so a concurrent append forces a reload.
func (r *Repository) AppendLedgerEntry(ctx context.Context, donation *models.Donation, entry *models.DonationPayment) error {
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	entry.DonationID = donation.ID

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(entry).Error; err != nil {
			return err
		}

		var agg struct {
			Count int
			Total string
		}
		err := tx.Model(&models.DonationPayment{}).
			Select("COUNT(*) AS count, COALESCE(SUM(amount), 0) AS total").
			Where("donation_id = ? AND status = ?", donation.ID, types.PaymentStatusPaid).
			Scan(&agg).Error
		if err != nil {
			return err
		}

		res := tx.Model(&models.Donation{}).
			Where("id = ? AND version = ?", donation.ID, donation.Version).
			Updates(map[string]any{
				"payment_status":    donation.PaymentStatus,
				"confirmation_code": donation.ConfirmationCode,
				"paid_at":           donation.PaidAt,
				"total_donations":   agg.Count,
				"total_amount":      agg.Total,
				"version":           donation.Version + 1,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("donation %s at version %d: %w", donation.Reference, donation.Version, ErrConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}

	donation.Version++
	donation.TotalDonations++
	donation.TotalAmount = donation.TotalAmount.Add(entry.Amount)
	return nil
}

// DeleteOrder hard-deletes an order row.
func (r *Repository) DeleteOrder(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Delete(&models.Order{}, "id = ?", id).Error
}

// DeleteDonation hard-deletes a donation and its ledger rows.
func (r *Repository) DeleteDonation(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&models.DonationPayment{}, "donation_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Donation{}, "id = ?", id).Error
	})
}

// ListLedgerEntries returns the ledger for one donation, newest first.
func (r *Repository) ListLedgerEntries(ctx context.Context, donationID string) ([]*models.DonationPayment, error) {
	var entries []*models.DonationPayment
	err := r.db.WithContext(ctx).
		Where("donation_id = ?", donationID).
		Order("payment_date DESC").
		Find(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Repository) ListOrders(ctx context.Context, filters []*types.CommonFilter, limit, offset int) ([]*models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	for _, f := range filters {
		q = q.Where(f)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var orders []*models.Order
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&orders).Error
	if err != nil {
		return nil, 0, err
	}
	return orders, total, nil
}

func (r *Repository) ListDonations(ctx context.Context, filters []*types.CommonFilter, limit, offset int) ([]*models.Donation, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Donation{})
	for _, f := range filters {
		q = q.Where(f)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var donations []*models.Donation
	err := q.Order("created_at DESC").Limit(limit).Offset(offset).Find(&donations).Error
	if err != nil {
		return nil, 0, err
	}
	return donations, total, nil
}
