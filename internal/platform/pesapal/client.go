package pesapal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable covers transport failures and non-2xx gateway replies.
	// It means "status unknown, retry later" and must never be read as a
	// payment failure.
	ErrUnavailable     = errors.New("pesapal gateway unavailable")
	ErrResponseInvalid = errors.New("pesapal response invalid")
	ErrAuthFailed      = errors.New("pesapal authentication failed")
)

// StatusCompleted is the only gateway status description that maps to a
// paid outcome.
const StatusCompleted = "Completed"

const (
	statusQueryAttempts = 3
	statusQueryBackoff  = 200 * time.Millisecond
)

type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client is a typed wrapper around the Pesapal v3 API. It is stateless
// apart from the injected TokenSource; the idempotent status query retries
// transient failures with bounded backoff, submission never does.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  TokenSource
}

func NewClient(opts Options, tokens TokenSource) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 20 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/"),
		http:    httpClient,
		tokens:  tokens,
	}
}

type SubmitOrderRequest struct {
	Reference      string
	Amount         decimal.Decimal
	Currency       string
	Description    string
	CallbackURL    string
	NotificationID string
	BillingEmail   string
	BillingPhone   string
	FirstName      string
	LastName       string
}

type OrderSubmission struct {
	TrackingID  string
	RedirectURL string
}

type TransactionStatus struct {
	StatusDescription string
	ConfirmationCode  string
	PaymentMethod     string
	MerchantReference string
	Amount            decimal.Decimal
	Currency          string
	PaidAt            *time.Time
}

// Paid reports whether the authoritative status describes a settled payment.
func (s *TransactionStatus) Paid() bool {
	return s != nil && s.StatusDescription == StatusCompleted
}

// RegisterIPN registers the webhook endpoint with the gateway and returns
// the notification id to attach to submitted orders.
func (c *Client) RegisterIPN(ctx context.Context, ipnURL string) (string, error) {
	body := map[string]any{
		"url":                   ipnURL,
		"ipn_notification_type": "POST",
	}
	var resp struct {
		IPNID string `json:"ipn_id"`
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/URLSetup/RegisterIPN", body, &resp); err != nil {
		return "", err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return "", fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Error.Message)
	}
	if resp.IPNID == "" {
		return "", fmt.Errorf("%w: missing ipn_id", ErrResponseInvalid)
	}
	return resp.IPNID, nil
}

// SubmitOrder creates one payment attempt at the gateway. Not idempotent
// gateway-side; callers guard it by payable state and never auto-retry.
func (c *Client) SubmitOrder(ctx context.Context, req SubmitOrderRequest) (*OrderSubmission, error) {
	body := map[string]any{
		"id":              req.Reference,
		"currency":        req.Currency,
		"amount":          req.Amount,
		"description":     req.Description,
		"callback_url":    req.CallbackURL,
		"notification_id": req.NotificationID,
		"billing_address": map[string]any{
			"email_address": req.BillingEmail,
			"phone_number":  req.BillingPhone,
			"first_name":    req.FirstName,
			"last_name":     req.LastName,
		},
	}
	var resp struct {
		OrderTrackingID string `json:"order_tracking_id"`
		RedirectURL     string `json:"redirect_url"`
		Error           *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/Transactions/SubmitOrderRequest", body, &resp); err != nil {
		return nil, err
	}
	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Error.Message)
	}
	if resp.OrderTrackingID == "" || resp.RedirectURL == "" {
		return nil, fmt.Errorf("%w: missing tracking id or redirect url", ErrResponseInvalid)
	}
	return &OrderSubmission{TrackingID: resp.OrderTrackingID, RedirectURL: resp.RedirectURL}, nil
}

// GetTransactionStatus queries the authoritative payment outcome for one
// tracking id. Retried with bounded backoff: the query is idempotent.
func (c *Client) GetTransactionStatus(ctx context.Context, trackingID string) (*TransactionStatus, error) {
	path := "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(trackingID)

	var resp struct {
		PaymentStatusDescription string          `json:"payment_status_description"`
		ConfirmationCode         string          `json:"confirmation_code"`
		PaymentMethod            string          `json:"payment_method"`
		MerchantReference        string          `json:"merchant_reference"`
		Amount                   decimal.Decimal `json:"amount"`
		Currency                 string          `json:"currency"`
		CreatedDate              string          `json:"created_date"`
		Error                    *struct {
			Message string `json:"message"`
		} `json:"error"`
	}

	var lastErr error
	for attempt := 0; attempt < statusQueryAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(statusQueryBackoff << (attempt - 1)):
			}
		}
		lastErr = c.doJSON(ctx, http.MethodGet, path, nil, &resp)
		if lastErr == nil {
			break
		}
		if !errors.Is(lastErr, ErrUnavailable) {
			return nil, lastErr
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}

	if resp.Error != nil && resp.Error.Message != "" {
		return nil, fmt.Errorf("%w: %s", ErrResponseInvalid, resp.Error.Message)
	}
	if resp.PaymentStatusDescription == "" {
		return nil, fmt.Errorf("%w: missing payment status description", ErrResponseInvalid)
	}

	status := &TransactionStatus{
		StatusDescription: resp.PaymentStatusDescription,
		ConfirmationCode:  resp.ConfirmationCode,
		PaymentMethod:     resp.PaymentMethod,
		MerchantReference: resp.MerchantReference,
		Amount:            resp.Amount,
		Currency:          resp.Currency,
	}
	if resp.CreatedDate != "" {
		if t, err := time.Parse(time.RFC3339, resp.CreatedDate); err == nil {
			status.PaidAt = &t
		}
	}
	return status, nil
}

// Refund requests a refund against a settled confirmation code.
func (c *Client) Refund(ctx context.Context, confirmationCode string, amount decimal.Decimal, remarks string) error {
	body := map[string]any{
		"confirmation_code": confirmationCode,
		"amount":            amount.StringFixed(2),
		"username":          "system",
		"remarks":           remarks,
	}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/Transactions/RefundRequest", body, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status, "200") {
		return fmt.Errorf("%w: refund rejected: %s", ErrResponseInvalid, resp.Message)
	}
	return nil
}

// Cancel voids a pending gateway order.
func (c *Client) Cancel(ctx context.Context, trackingID string) error {
	body := map[string]any{"order_tracking_id": trackingID}
	var resp struct {
		Status  string `json:"status"`
		Message string `json:"message"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/api/Transactions/CancelOrder", body, &resp); err != nil {
		return err
	}
	if !strings.EqualFold(resp.Status, "200") {
		return fmt.Errorf("%w: cancel rejected: %s", ErrResponseInvalid, resp.Message)
	}
	return nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, out any) error {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: http status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", ErrResponseInvalid, err)
	}
	return nil
}
