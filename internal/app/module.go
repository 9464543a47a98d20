package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/sokoyetu/paydesk/internal/app/api/server"
	"github.com/sokoyetu/paydesk/internal/app/service/ipnlog"
	"github.com/sokoyetu/paydesk/internal/app/service/notify"
	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/reconcile"
	"github.com/sokoyetu/paydesk/internal/app/service/statistics"
	"github.com/sokoyetu/paydesk/internal/app/service/stock"
	"github.com/sokoyetu/paydesk/internal/platform/db"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/internal/platform/ratelimit"
	"github.com/sokoyetu/paydesk/pkg/config"
	"github.com/sokoyetu/paydesk/pkg/logger"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

var Module = fx.Options(
	logger.Module,
	config.Module,
	db.Module,
	pesapal.Module,
	ratelimit.Module,
	payable.Module,
	ipnlog.Module,
	notify.Module,
	stock.Module,
	statistics.Module,
	reconcile.Module,
	server.Module,
)
