package pesapal

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/pkg/config"
)

// Module exposes the Pesapal client via Fx.
var Module = fx.Options(
	fx.Provide(newTokenSource),
	fx.Provide(newClient),
	fx.Provide(NewRegistrar),
)

func newTokenSource(cfg *config.Config) TokenSource {
	return NewCachedTokenSource(Options{
		BaseURL: cfg.Pesapal.BaseURL,
		Timeout: cfg.Pesapal.Timeout(),
	}, cfg.Pesapal.ConsumerKey, cfg.Pesapal.ConsumerSecret)
}

func newClient(cfg *config.Config, tokens TokenSource) *Client {
	return NewClient(Options{
		BaseURL: cfg.Pesapal.BaseURL,
		Timeout: cfg.Pesapal.Timeout(),
	}, tokens)
}

// Registrar lazily registers the IPN endpoint with the gateway and caches
// the notification id attached to every submitted order. Registration is
// deferred to first use so the process can boot while the gateway is down.
type Registrar struct {
	client *Client
	ipnURL string
	log    *zap.SugaredLogger

	mu             sync.Mutex
	notificationID string
}

func NewRegistrar(cfg *config.Config, client *Client, log *zap.SugaredLogger) *Registrar {
	base := strings.TrimRight(cfg.Pesapal.CallbackBaseURL, "/")
	return &Registrar{
		client: client,
		ipnURL: base + "/api/v1/payments/ipn",
		log:    log,
	}
}

func (r *Registrar) NotificationID(ctx context.Context) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.notificationID != "" {
		return r.notificationID, nil
	}
	id, err := r.client.RegisterIPN(ctx, r.ipnURL)
	if err != nil {
		return "", err
	}
	r.log.Infow("payment_ipn_registered", "ipn_url", r.ipnURL, "notification_id", id)
	r.notificationID = id
	return id, nil
}
