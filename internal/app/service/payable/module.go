package payable

import "go.uber.org/fx"

// Module exposes the payable repository via Fx.
var Module = fx.Options(
	fx.Provide(NewRepository),
)
