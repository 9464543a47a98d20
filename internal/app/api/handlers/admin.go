package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/sokoyetu/paydesk/internal/app/service/payable"
	"github.com/sokoyetu/paydesk/internal/app/service/statistics"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/response"
	"github.com/sokoyetu/paydesk/pkg/types"
)

type ListPayablesRequest struct {
	Filters []*types.CommonFilter `json:"filters"`
	From    int                   `json:"from"`
	Size    int                   `json:"size"`
}

func (r *ListPayablesRequest) normalize() {
	if r.Size <= 0 || r.Size > 200 {
		r.Size = 50
	}
	if r.From < 0 {
		r.From = 0
	}
}

type OrderItem struct {
	ID               string              `json:"id"`
	Reference        string              `json:"reference"`
	UserID           string              `json:"user_id"`
	TrackingID       string              `json:"tracking_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	PaymentMethod    types.PaymentMethod `json:"payment_method"`
	PaymentStatus    types.PaymentStatus `json:"payment_status"`
	OrderStatus      types.OrderStatus   `json:"order_status"`
	ConfirmationCode string              `json:"confirmation_code,omitempty"`
	PaidAt           *time.Time          `json:"paid_at"`
	CreatedAt        time.Time           `json:"created_at"`
}

type DonationItem struct {
	ID               string              `json:"id"`
	Reference        string              `json:"reference"`
	DonorID          string              `json:"donor_id"`
	TrackingID       string              `json:"tracking_id,omitempty"`
	Amount           decimal.Decimal     `json:"amount"`
	Currency         string              `json:"currency"`
	Type             types.DonationType  `json:"type"`
	PaymentStatus    types.PaymentStatus `json:"payment_status"`
	ConfirmationCode string              `json:"confirmation_code,omitempty"`
	TotalDonations   int                 `json:"total_donations"`
	TotalAmount      decimal.Decimal     `json:"total_amount"`
	PaidAt           *time.Time          `json:"paid_at"`
	CreatedAt        time.Time           `json:"created_at"`
}

type ListOrdersResponse struct {
	Items []*OrderItem `json:"items"`
	Total int64        `json:"total"`
}

type ListDonationsResponse struct {
	Items []*DonationItem `json:"items"`
	Total int64           `json:"total"`
}

func toOrderItem(m *models.Order) *OrderItem {
	return &OrderItem{
		ID:               m.ID,
		Reference:        m.Reference,
		UserID:           m.UserID,
		TrackingID:       m.TrackingID(),
		Amount:           m.Amount,
		Currency:         m.Currency,
		PaymentMethod:    m.PaymentMethod,
		PaymentStatus:    m.PaymentStatus,
		OrderStatus:      m.OrderStatus,
		ConfirmationCode: m.ConfirmationCode,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
	}
}

func toDonationItem(m *models.Donation) *DonationItem {
	return &DonationItem{
		ID:               m.ID,
		Reference:        m.Reference,
		DonorID:          m.DonorID,
		TrackingID:       m.TrackingID(),
		Amount:           m.Amount,
		Currency:         m.Currency,
		Type:             m.Type,
		PaymentStatus:    m.PaymentStatus,
		ConfirmationCode: m.ConfirmationCode,
		TotalDonations:   m.TotalDonations,
		TotalAmount:      m.TotalAmount,
		PaidAt:           m.PaidAt,
		CreatedAt:        m.CreatedAt,
	}
}

// @Summary      List Orders (Admin)
// @Description  Retrieves a paginated and filterable list of orders.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPayablesRequest true "List request with filters and pagination"
// @Success      200  {object}  handlers.RespListOrders
// @Router       /api/v1/admin/list_orders [post]
func ApiListOrders(repo *payable.Repository, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPayablesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		req.normalize()
		orders, total, err := repo.ListOrders(c.Request.Context(), req.Filters, req.Size, req.From)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(orders, func(m *models.Order, _ int) *OrderItem { return toOrderItem(m) })
		c.JSON(http.StatusOK, response.OKT(&ListOrdersResponse{Items: items, Total: total}))
	}
}

// @Summary      List Donations (Admin)
// @Description  Retrieves a paginated and filterable list of donations.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body ListPayablesRequest true "List request with filters and pagination"
// @Success      200  {object}  handlers.RespListDonations
// @Router       /api/v1/admin/list_donations [post]
func ApiListDonations(repo *payable.Repository, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ListPayablesRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		req.normalize()
		donations, total, err := repo.ListDonations(c.Request.Context(), req.Filters, req.Size, req.From)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		items := lo.Map(donations, func(m *models.Donation, _ int) *DonationItem { return toDonationItem(m) })
		c.JSON(http.StatusOK, response.OKT(&ListDonationsResponse{Items: items, Total: total}))
	}
}

// @Summary      Donation Ledger (Admin)
// @Description  Returns the append-only billing-cycle ledger of one donation.
// @Tags         Admin
// @Produce      json
// @Param        reference path string true "Donation reference"
// @Success      200  {object}  handlers.RespDonationLedger
// @Router       /api/v1/admin/donations/{reference}/ledger [get]
func ApiDonationLedger(repo *payable.Repository, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		donation, err := repo.GetDonationByRef(c.Request.Context(), c.Param("reference"))
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeNotFound, err.Error()))
			return
		}
		entries, err := repo.ListLedgerEntries(c.Request.Context(), donation.ID)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(entries))
	}
}

// @Summary      Payment Statistics (Admin)
// @Description  Computes daily payment and donation metrics for the requested data items.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.PaymentStatisticRequest true "Statistic request with filters and data items"
// @Success      200  {object}  handlers.RespPaymentStatistic
// @Router       /api/v1/admin/payment_statistic [post]
func ApiGetPaymentStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.PaymentStatisticRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := svc.GetPaymentStatistic(c.Request.Context(), &req)
		if err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeError, err.Error()))
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminPaymentRoutes(r gin.IRouter, repo *payable.Repository, stats *statistics.Service, log *zap.SugaredLogger) {
	r.POST("/list_orders", ApiListOrders(repo, log))
	r.POST("/list_donations", ApiListDonations(repo, log))
	r.GET("/donations/:reference/ledger", ApiDonationLedger(repo, log))
	r.POST("/payment_statistic", ApiGetPaymentStatistic(stats))
}
