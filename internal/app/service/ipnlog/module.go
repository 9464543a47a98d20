package ipnlog

import "go.uber.org/fx"

// Module exposes the IPN log service via Fx.
var Module = fx.Options(
	fx.Provide(New),
)
