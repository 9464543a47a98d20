package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/reconcile"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/logctx"
	"github.com/sokoyetu/paydesk/pkg/response"
	"github.com/sokoyetu/paydesk/pkg/tool"
	"github.com/sokoyetu/paydesk/pkg/types"
)

// ipnNotification carries the gateway's delivery fields. The gateway sends
// the same shape as a GET query string or a POST JSON body.
type ipnNotification struct {
	OrderTrackingID        string `form:"OrderTrackingId" json:"OrderTrackingId"`
	OrderMerchantReference string `form:"OrderMerchantReference" json:"OrderMerchantReference"`
	OrderNotificationType  string `form:"OrderNotificationType" json:"OrderNotificationType"`
}

// ipnAck is the acknowledgement echo the gateway expects. Status 200 marks
// the delivery consumed; anything else triggers redelivery.
type ipnAck struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

// IPNAuditLog records webhook deliveries. *ipnlog.Service satisfies it.
// Save blocks until the row is down; SaveAsync writes off the request path.
type IPNAuditLog interface {
	Save(ctx context.Context, entry *models.IPNLog)
	SaveAsync(ctx context.Context, entry *models.IPNLog)
}

// IPNHandler reconciles gateway webhook deliveries.
type IPNHandler struct {
	reconciler reconcile.Reconciler
	ipnLog     IPNAuditLog
	log        *zap.SugaredLogger
}

func NewIPNHandler(reconciler reconcile.Reconciler, ipnLog IPNAuditLog, log *zap.SugaredLogger) *IPNHandler {
	return &IPNHandler{reconciler: reconciler, ipnLog: ipnLog, log: log}
}

// @Summary      Pesapal IPN
// @Description  Consumes a Pesapal payment notification and reconciles the referenced payable against the gateway's authoritative transaction status.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Param        OrderTrackingId query string false "Gateway order tracking id"
// @Param        OrderMerchantReference query string false "Merchant reference"
// @Param        OrderNotificationType query string false "Notification type"
// @Success      200  {object}  handlers.IPNAckResp
// @Router       /api/v1/payments/ipn [post]
func (h *IPNHandler) Handle(c *gin.Context) {
	log := logctx.FromGin(c, h.log)

	notif, ok := h.bind(c)
	if !ok {
		return
	}
	log.Infow("payment_webhook_received",
		"tracking_id", notif.OrderTrackingID,
		"merchant_reference", notif.OrderMerchantReference,
		"notification_type", notif.OrderNotificationType)

	entry := h.logReceived(c, notif)

	outcome, err := h.dispatch(c, notif)
	switch {
	case err == nil:
		h.logResult(c, entry, models.IPNLogStatusHandled, outcome, nil)
		log.Infow("payment_webhook_processed",
			"tracking_id", notif.OrderTrackingID, "reference", outcome.Reference,
			"status", outcome.Status, "changed", outcome.Changed)
		c.JSON(http.StatusOK, ack(notif))

	case errors.Is(err, payable.ErrNotFound):
		// Unknown payable: superseded attempt or foreign delivery. Ack so
		// the gateway stops redelivering something we will never resolve.
		h.logResult(c, entry, models.IPNLogStatusHandled, nil, err)
		log.Infow("payment_webhook_unknown_payable",
			"tracking_id", notif.OrderTrackingID, "merchant_reference", notif.OrderMerchantReference)
		c.JSON(http.StatusOK, ack(notif))

	default:
		h.logResult(c, entry, models.IPNLogStatusHandleFailed, nil, err)
		log.Errorw("payment_webhook_handle_error",
			"tracking_id", notif.OrderTrackingID, "error", err.Error())
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
	}
}

func (h *IPNHandler) bind(c *gin.Context) (*ipnNotification, bool) {
	var notif ipnNotification
	if c.Request.Method == http.MethodPost {
		if !strings.Contains(c.ContentType(), "application/json") {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "expected application/json"))
			return nil, false
		}
		if err := c.ShouldBindJSON(&notif); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return nil, false
		}
	} else {
		if err := c.ShouldBindQuery(&notif); err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return nil, false
		}
	}
	if notif.OrderTrackingID == "" || notif.OrderMerchantReference == "" || notif.OrderNotificationType == "" {
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing tracking id, merchant reference or notification type"))
		return nil, false
	}
	return &notif, true
}

// dispatch routes a delivery by its notification type and reference shape:
// recurring cycles go to the ledger path, donation references to the
// donation path, everything else is an order payment.
func (h *IPNHandler) dispatch(c *gin.Context, notif *ipnNotification) (*reconcile.Outcome, error) {
	ctx := c.Request.Context()
	switch {
	case strings.EqualFold(notif.OrderNotificationType, types.NotificationTypeRecurring):
		return h.reconciler.ReconcileRecurring(ctx, notif.OrderTrackingID, notif.OrderMerchantReference)
	case strings.HasPrefix(notif.OrderMerchantReference, types.DonationReferencePrefix):
		return h.reconciler.ReconcileDonation(ctx, notif.OrderTrackingID)
	default:
		return h.reconciler.ReconcileOrder(ctx, notif.OrderTrackingID)
	}
}

func (h *IPNHandler) logReceived(c *gin.Context, notif *ipnNotification) *models.IPNLog {
	traceID, _ := c.Value("traceID").(string)
	raw, _ := json.Marshal(notif)
	entry := &models.IPNLog{
		ID:                tool.GenerateUUIDV7(),
		TraceID:           traceID,
		TrackingID:        notif.OrderTrackingID,
		MerchantReference: notif.OrderMerchantReference,
		NotificationType:  notif.OrderNotificationType,
		SourceIP:          c.ClientIP(),
		Data:              datatypes.JSON(raw),
		Status:            models.IPNLogStatusReceived,
	}
	h.ipnLog.Save(c.Request.Context(), entry)
	return entry
}

func (h *IPNHandler) logResult(c *gin.Context, entry *models.IPNLog, status models.IPNLogStatus, outcome *reconcile.Outcome, err error) {
	result := map[string]any{}
	if outcome != nil {
		result["outcome"] = outcome
	}
	if err != nil {
		result["error"] = err.Error()
	}
	raw, _ := json.Marshal(result)
	data := datatypes.JSON(raw)

	final := &models.IPNLog{
		ID:                entry.ID,
		TraceID:           entry.TraceID,
		TrackingID:        entry.TrackingID,
		MerchantReference: entry.MerchantReference,
		NotificationType:  entry.NotificationType,
		SourceIP:          entry.SourceIP,
		Data:              entry.Data,
		Result:            &data,
		Status:            status,
	}
	h.ipnLog.SaveAsync(c.Request.Context(), final)
}

// RegisterIPNRoutes mounts the webhook endpoint behind the source/rate
// guard. The gateway delivers via GET or POST depending on the registered
// notification type, so both are accepted.
func RegisterIPNRoutes(r gin.IRouter, h *IPNHandler, guard gin.HandlerFunc) {
	r.GET("/ipn", guard, h.Handle)
	r.POST("/ipn", guard, h.Handle)
}

func ack(notif *ipnNotification) *ipnAck {
	return &ipnAck{
		OrderNotificationType:  notif.OrderNotificationType,
		OrderTrackingID:        notif.OrderTrackingID,
		OrderMerchantReference: notif.OrderMerchantReference,
		Status:                 http.StatusOK,
	}
}
