package stock

import "go.uber.org/fx"

// Module exposes the stock release service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
