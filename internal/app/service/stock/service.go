package stock

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/tool"
)

// Service records stock reservation releases for the inventory system to
// apply. The release row is written before the order is removed so a crash
// between the two never strands a reservation.
type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

func (s *Service) Release(ctx context.Context, order *models.Order, reason string) error {
	release := &models.StockRelease{
		ID:             tool.GenerateUUIDV7(),
		OrderReference: order.Reference,
		Reason:         reason,
		Items:          itemsOf(order),
	}
	if err := s.db.WithContext(ctx).Create(release).Error; err != nil {
		return err
	}
	s.log.Infow("stock_release_recorded", "order_reference", order.Reference, "reason", reason)
	return nil
}

// itemsOf pulls the reserved line items out of the order's extra payload.
// Orders created before item snapshots ship an empty release, which the
// inventory side resolves from its own reservation table.
func itemsOf(order *models.Order) datatypes.JSON {
	if len(order.Extra) == 0 {
		return datatypes.JSON([]byte("[]"))
	}
	return order.Extra
}
