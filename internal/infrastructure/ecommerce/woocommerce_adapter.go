package ecommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// maxWooCommerceResponseSize limits the response body size
const maxWooCommerceResponseSize = 10 * 1024 * 1024 // 10MB

// WooCommerceAdapter implements integration.OrderSource over the WooCommerce REST API
type WooCommerceAdapter struct {
	config     *WooCommerceConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// NewWooCommerceAdapter creates a new WooCommerce adapter with the given configuration
func NewWooCommerceAdapter(config *WooCommerceConfig, logger *zap.Logger) (*WooCommerceAdapter, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WooCommerceAdapter{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		logger: logger,
	}, nil
}

// GetOrder fetches one order by id
func (a *WooCommerceAdapter) GetOrder(ctx context.Context, orderID int64) (*integration.Order, error) {
	if orderID <= 0 {
		return nil, integration.ErrInvalidOrderID
	}

	body, err := a.doRequest(ctx, a.config.OrderURL(strconv.FormatInt(orderID, 10)))
	if err != nil {
		return nil, err
	}

	var wcOrder WooCommerceOrder
	if err := json.Unmarshal(body, &wcOrder); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrStoreInvalidResponse, err)
	}
	if wcOrder.ID == 0 {
		return nil, fmt.Errorf("%w: order %d", integration.ErrOrderNotFound, orderID)
	}
	return convertWooCommerceOrder(&wcOrder), nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

// doRequest performs an authenticated GET against the store
func (a *WooCommerceAdapter) doRequest(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to create request: %w", err)
	}
	req.SetBasicAuth(a.config.ConsumerKey, a.config.ConsumerSecret)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxWooCommerceResponseSize))
	if err != nil {
		return nil, fmt.Errorf("woocommerce: failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, integration.ErrOrderNotFound
	case resp.StatusCode >= 400:
		a.logger.Warn("WooCommerce API error",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: HTTP %d", integration.ErrStoreUnavailable, resp.StatusCode)
	}
	return body, nil
}

// ParseOrderPayload decodes an order body, as carried by order webhooks
func ParseOrderPayload(body []byte) (*integration.Order, error) {
	var wcOrder WooCommerceOrder
	if err := json.Unmarshal(body, &wcOrder); err != nil {
		return nil, fmt.Errorf("%w: %v", integration.ErrStoreInvalidResponse, err)
	}
	if wcOrder.ID <= 0 {
		return nil, integration.ErrInvalidOrderID
	}
	return convertWooCommerceOrder(&wcOrder), nil
}

// convertWooCommerceOrder converts a WooCommerce order to the domain order
func convertWooCommerceOrder(o *WooCommerceOrder) *integration.Order {
	order := &integration.Order{
		ID:            o.ID,
		Number:        string(o.Number),
		Status:        o.Status,
		Paid:          o.DatePaidGMT.Valid || wooCommercePaidStatuses[o.Status],
		Currency:      o.Currency,
		TotalTax:      o.TotalTax.Decimal(),
		Total:         o.Total.Decimal(),
		Billing:       convertWooCommerceAddress(o.Billing),
		Shipping:      convertWooCommerceAddress(o.Shipping),
		PaymentMethod: o.PaymentMethod,
		TransactionID: o.TransactionID,
	}
	if order.Number == "" {
		order.Number = strconv.FormatInt(o.ID, 10)
	}
	if o.DateCreatedGMT.Valid {
		order.DateCreated = o.DateCreatedGMT.Time
	}
	if o.DatePaidGMT.Valid {
		paid := o.DatePaidGMT.Time
		order.DatePaid = &paid
	}

	subtotal := decimal.Zero
	order.LineItems = make([]integration.OrderLineItem, 0, len(o.LineItems))
	for _, li := range o.LineItems {
		subtotal = subtotal.Add(li.Subtotal.Decimal())
		order.LineItems = append(order.LineItems, integration.OrderLineItem{
			Name:     li.Name,
			SKU:      li.SKU,
			Quantity: li.Quantity,
			Total:    li.Total.Decimal(),
		})
	}
	order.Subtotal = subtotal

	order.Fees = make([]integration.OrderFee, 0, len(o.FeeLines))
	for _, fee := range o.FeeLines {
		order.Fees = append(order.Fees, integration.OrderFee{Name: fee.Name, Total: fee.Total.Decimal()})
	}
	return order
}

func convertWooCommerceAddress(a WooCommerceAddress) integration.Contact {
	return integration.Contact{
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Company:   a.Company,
		Email:     a.Email,
		Phone:     a.Phone,
		Address1:  a.Address1,
		Address2:  a.Address2,
		City:      a.City,
		State:     a.State,
		Postcode:  a.Postcode,
		Country:   a.Country,
	}
}

var _ integration.OrderSource = (*WooCommerceAdapter)(nil)
