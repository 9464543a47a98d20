package notify

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/logctx"
	"github.com/sokoyetu/paydesk/pkg/tool"
)

// Service persists customer notification events for the external mailer to
// drain. Every method is fire-and-forget: a lost notification is an
// annoyance, a blocked reconciliation is an outage.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

func (s *Service) OrderPaid(ctx context.Context, order *models.Order) {
	s.save(ctx, "order_paid", models.NotificationEvent{
		BizKind: "order",
		BizRef:  order.Reference,
	}, map[string]any{
		"reference":         order.Reference,
		"user_id":           order.UserID,
		"amount":            order.Amount,
		"currency":          order.Currency,
		"confirmation_code": order.ConfirmationCode,
	})
}

func (s *Service) OrderCancelled(ctx context.Context, order *models.Order) {
	s.save(ctx, "order_cancelled", models.NotificationEvent{
		BizKind: "order",
		BizRef:  order.Reference,
	}, map[string]any{
		"reference":      order.Reference,
		"user_id":        order.UserID,
		"order_status":   order.OrderStatus,
		"payment_status": order.PaymentStatus,
	})
}

func (s *Service) DonationPaid(ctx context.Context, donation *models.Donation) {
	s.save(ctx, "donation_paid", models.NotificationEvent{
		BizKind: "donation",
		BizRef:  donation.Reference,
	}, map[string]any{
		"reference":         donation.Reference,
		"donor_id":          donation.DonorID,
		"amount":            donation.Amount,
		"currency":          donation.Currency,
		"type":              donation.Type,
		"total_donations":   donation.TotalDonations,
		"confirmation_code": donation.ConfirmationCode,
	})
}

func (s *Service) save(ctx context.Context, eventType string, event models.NotificationEvent, data map[string]any) {
	go func() {
		event.ID = tool.GenerateUUIDV7()
		event.EventType = eventType
		event.Status = models.NotificationEventStatusPending
		if raw, err := json.Marshal(data); err == nil {
			event.Data = datatypes.JSON(raw)
		}
		if err := s.db.Create(&event).Error; err != nil {
			logctx.FromCtx(ctx, s.log).Errorf("failed to save notification event %s for %s: %v",
				eventType, event.BizRef, err)
			return
		}
		s.log.Infow("notification_event_queued", "event_type", eventType, "biz_ref", event.BizRef)
	}()
}
