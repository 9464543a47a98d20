package handlers

import (
	"github.com/sokoyetu/paydesk/internal/app/service/reconcile"
	"github.com/sokoyetu/paydesk/internal/app/service/statistics"
	"github.com/sokoyetu/paydesk/internal/models"
	"github.com/sokoyetu/paydesk/pkg/response"
)

// RespOK is a generic OK envelope for endpoints returning no specific data.
type RespOK struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    interface{}              `json:"data"`
}

// IPNAckResp documents the acknowledgement echo returned to the gateway.
type IPNAckResp struct {
	OrderNotificationType  string `json:"orderNotificationType"`
	OrderTrackingID        string `json:"orderTrackingId"`
	OrderMerchantReference string `json:"orderMerchantReference"`
	Status                 int    `json:"status"`
}

// PaymentSessionResp wraps a PaymentSession in the standard envelope.
type PaymentSessionResp struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.PaymentSession `json:"data"`
}

// PayableStatusResp wraps a payable status view in the standard envelope.
type PayableStatusResp struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    payableStatusResp        `json:"data"`
}

// ReconcileOutcomeResp wraps a reconciliation outcome in the standard envelope.
type ReconcileOutcomeResp struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    reconcile.Outcome        `json:"data"`
}

// CancelOrderReq documents the cancel request body.
type CancelOrderReq struct {
	ByAdmin bool `json:"by_admin"`
}

// RespListOrders wraps ListOrdersResponse in the standard envelope.
type RespListOrders struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListOrdersResponse       `json:"data"`
}

// RespListDonations wraps ListDonationsResponse in the standard envelope.
type RespListDonations struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    ListDonationsResponse    `json:"data"`
}

// RespDonationLedger wraps the donation ledger in the standard envelope.
type RespDonationLedger struct {
	Code    response.APIResponseCode `json:"code"`
	Message string                   `json:"message"`
	Data    []models.DonationPayment `json:"data"`
}

// RespPaymentStatistic wraps PaymentStatisticResponse in the standard envelope.
type RespPaymentStatistic struct {
	Code    response.APIResponseCode            `json:"code"`
	Message string                              `json:"message"`
	Data    statistics.PaymentStatisticResponse `json:"data"`
}
