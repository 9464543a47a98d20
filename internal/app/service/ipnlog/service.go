package ipnlog

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/logctx"
	"github.com/sokoyetu/paydesk/pkg/tool"
)

type Service struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func New(db *gorm.DB, log *zap.SugaredLogger) *Service { return &Service{db: db, log: log} }

// Save persists an IPN delivery log before returning. The received row for
// a delivery goes through here so a later result row for the same ID can
// never be overwritten by it.
func (s *Service) Save(ctx context.Context, entry *models.IPNLog) {
	s.persist(ctx, entry)
}

// SaveAsync persists off the request path. Used for result rows once the
// received row is already down.
func (s *Service) SaveAsync(ctx context.Context, entry *models.IPNLog) {
	go s.persist(ctx, entry)
}

func (s *Service) persist(ctx context.Context, entry *models.IPNLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	if err := s.db.Save(entry).Error; err != nil {
		logctx.FromCtx(ctx, s.log).Errorf("failed to save ipn log: %v", err)
	}
}
