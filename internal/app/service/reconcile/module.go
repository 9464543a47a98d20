package reconcile

import (
	"go.uber.org/fx"

	"github.com/sokoyetu/paydesk/internal/app/service/notify"
	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/stock"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
)

// Module exposes the reconciliation engine and lifecycle actions via Fx,
// binding the engine's collaborator interfaces to their implementations.
var Module = fx.Options(
	fx.Provide(func(c *pesapal.Client) Gateway { return c }),
	fx.Provide(func(r *payable.Repository) Store { return r }),
	fx.Provide(func(s *notify.Service) Notifier { return s }),
	fx.Provide(func(s *stock.Service) StockReleaser { return s }),
	fx.Provide(func(r *pesapal.Registrar) IPNRegistrar { return r }),
	fx.Provide(NewEngine),
	fx.Provide(func(e *Engine) Reconciler { return e }),
	fx.Provide(NewActions),
)
