package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/reconcile"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/internal/platform/pesapal"
	"github.com/sokoyetu/paydesk/pkg/logctx"
	"github.com/sokoyetu/paydesk/pkg/response"
	"github.com/sokoyetu/paydesk/pkg/types"
)

// PayableHandler exposes payment lifecycle actions and status lookups.
type PayableHandler struct {
	actions    *reconcile.Actions
	reconciler reconcile.Reconciler
	repo       *payable.Repository
	log        *zap.SugaredLogger
}

func NewPayableHandler(actions *reconcile.Actions, reconciler reconcile.Reconciler, repo *payable.Repository, log *zap.SugaredLogger) *PayableHandler {
	return &PayableHandler{actions: actions, reconciler: reconciler, repo: repo, log: log}
}

type payableStatusResp struct {
	Kind             types.PayableKind   `json:"kind"`
	Reference        string              `json:"reference"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	PaymentMethod    types.PaymentMethod `json:"payment_method"`
	PaymentStatus    types.PaymentStatus `json:"payment_status"`
	OrderStatus      types.OrderStatus   `json:"order_status,omitempty"`
	ConfirmationCode string              `json:"confirmation_code,omitempty"`
	TotalDonations   int                 `json:"total_donations,omitempty"`
	TotalAmount      *decimal.Decimal    `json:"total_amount,omitempty"`
	PaidAt           *time.Time          `json:"paid_at,omitempty"`
}

// @Summary      Initiate Payment
// @Description  Submits a payable to the gateway and returns the hosted payment page redirect.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        kind path string true "Payable kind (order or donation)"
// @Param        reference path string true "Payable reference"
// @Param        contact body reconcile.BillingContact true "Billing contact"
// @Success      200  {object}  handlers.PaymentSessionResp
// @Router       /api/v1/payments/{kind}/{reference}/initiate [post]
func (h *PayableHandler) Initiate(c *gin.Context) {
	h.startSession(c, h.actions.InitiatePayment)
}

// @Summary      Retry Payment
// @Description  Opens a fresh gateway attempt for a pending or failed payable, superseding the previous tracking id.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        kind path string true "Payable kind (order or donation)"
// @Param        reference path string true "Payable reference"
// @Param        contact body reconcile.BillingContact true "Billing contact"
// @Success      200  {object}  handlers.PaymentSessionResp
// @Router       /api/v1/payments/{kind}/{reference}/retry [post]
func (h *PayableHandler) Retry(c *gin.Context) {
	h.startSession(c, h.actions.RetryPayment)
}

func (h *PayableHandler) startSession(c *gin.Context, start func(ctx context.Context, kind types.PayableKind, reference string, contact reconcile.BillingContact) (*reconcile.PaymentSession, error)) {
	kind := types.PayableKind(c.Param("kind"))
	reference := c.Param("reference")

	var contact reconcile.BillingContact
	if err := c.ShouldBindJSON(&contact); err != nil {
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
		return
	}

	session, err := start(c.Request.Context(), kind, reference, contact)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT(session))
}

type cancelOrderReq struct {
	ByAdmin bool `json:"by_admin"`
}

// @Summary      Cancel Order
// @Description  Cancels an order: unpaid pending orders are removed with stock released; orders in processing or ready for delivery are soft-cancelled and refunded when paid. Dispatched orders cannot be cancelled.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        reference path string true "Order reference"
// @Param        request body handlers.CancelOrderReq false "Cancellation detail"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/orders/{reference}/cancel [post]
func (h *PayableHandler) CancelOrder(c *gin.Context) {
	var req cancelOrderReq
	_ = c.ShouldBindJSON(&req)

	if err := h.actions.CancelOrder(c.Request.Context(), c.Param("reference"), req.ByAdmin); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.OKT[any](nil))
}

// @Summary      Payable Status
// @Description  Returns the current payment state of one payable.
// @Tags         Payment
// @Produce      json
// @Param        kind path string true "Payable kind (order or donation)"
// @Param        reference path string true "Payable reference"
// @Success      200  {object}  handlers.PayableStatusResp
// @Router       /api/v1/payments/{kind}/{reference} [get]
func (h *PayableHandler) Status(c *gin.Context) {
	reference := c.Param("reference")

	switch types.PayableKind(c.Param("kind")) {
	case types.PayableKindOrder:
		order, err := h.repo.GetOrderByRef(c.Request.Context(), reference)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(orderStatusResp(order)))

	case types.PayableKindDonation:
		donation, err := h.repo.GetDonationByRef(c.Request.Context(), reference)
		if err != nil {
			h.writeError(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(donationStatusResp(donation)))

	default:
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unknown payable kind"))
	}
}

// @Summary      Payment Callback
// @Description  Customer browser return from the hosted payment page. Reconciles the attempt so the rendered page shows the settled state even when the IPN has not landed yet.
// @Tags         Payment
// @Produce      json
// @Param        OrderTrackingId query string true "Gateway order tracking id"
// @Param        OrderMerchantReference query string false "Merchant reference"
// @Success      200  {object}  handlers.ReconcileOutcomeResp
// @Router       /api/v1/payments/callback [get]
func (h *PayableHandler) Callback(c *gin.Context) {
	trackingID := c.Query("OrderTrackingId")
	if trackingID == "" {
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing OrderTrackingId"))
		return
	}

	var (
		outcome *reconcile.Outcome
		err     error
	)
	if strings.HasPrefix(c.Query("OrderMerchantReference"), types.DonationReferencePrefix) {
		outcome, err = h.reconciler.ReconcileDonation(c.Request.Context(), trackingID)
	} else {
		outcome, err = h.reconciler.ReconcileOrder(c.Request.Context(), trackingID)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}

	logctx.FromGin(c, h.log).Infow("payment_callback_reconciled",
		"tracking_id", trackingID, "reference", outcome.Reference, "status", outcome.Status)
	c.JSON(http.StatusOK, response.OKT(outcome))
}

// RegisterPaymentRoutes mounts payment lifecycle endpoints under the
// payments group and the order cancel endpoint under the orders group.
func RegisterPaymentRoutes(payments gin.IRouter, orders gin.IRouter, h *PayableHandler) {
	payments.GET("/callback", h.Callback)
	payments.GET("/:kind/:reference", h.Status)
	payments.POST("/:kind/:reference/initiate", h.Initiate)
	payments.POST("/:kind/:reference/retry", h.Retry)
	orders.POST("/:reference/cancel", h.CancelOrder)
}

func (h *PayableHandler) writeError(c *gin.Context, err error) {
	log := logctx.FromGin(c, h.log)
	switch {
	case errors.Is(err, payable.ErrNotFound):
		c.JSON(http.StatusNotFound, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
	case errors.Is(err, reconcile.ErrActionNotAllowed):
		c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
	case errors.Is(err, pesapal.ErrUnavailable):
		log.Warnw("payment_gateway_unavailable", "error", err.Error())
		c.JSON(http.StatusServiceUnavailable, response.ErrorT[any](response.APIResponseCodeError, "payment gateway unavailable"))
	default:
		log.Errorw("payment_action_error", "error", err.Error())
		c.JSON(http.StatusInternalServerError, response.ErrorT[any](response.APIResponseCodeError, nil))
	}
}

func orderStatusResp(order *models.Order) *payableStatusResp {
	return &payableStatusResp{
		Kind:             types.PayableKindOrder,
		Reference:        order.Reference,
		Amount:           order.Amount,
		Currency:         order.Currency,
		PaymentMethod:    order.PaymentMethod,
		PaymentStatus:    order.PaymentStatus,
		OrderStatus:      order.OrderStatus,
		ConfirmationCode: order.ConfirmationCode,
		PaidAt:           order.PaidAt,
	}
}

func donationStatusResp(donation *models.Donation) *payableStatusResp {
	resp := &payableStatusResp{
		Kind:             types.PayableKindDonation,
		Reference:        donation.Reference,
		Amount:           donation.Amount,
		Currency:         donation.Currency,
		PaymentMethod:    donation.PaymentMethod,
		PaymentStatus:    donation.PaymentStatus,
		ConfirmationCode: donation.ConfirmationCode,
		PaidAt:           donation.PaidAt,
	}
	if donation.Monthly() {
		resp.TotalDonations = donation.TotalDonations
		total := donation.TotalAmount
		resp.TotalAmount = &total
	}
	return resp
}
