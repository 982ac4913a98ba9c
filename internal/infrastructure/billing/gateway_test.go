package billing

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicesync/internal/domain/integration"
)

type recordedRequest struct {
	Method string
	Path   string
	Query  string
	Body   map[string]any
}

// fakeRepairShopr routes "METHOD /path" to canned JSON answers
type fakeRepairShopr struct {
	server   *httptest.Server
	routes   map[string]string
	requests []recordedRequest
}

func newFakeRepairShopr(t *testing.T) *fakeRepairShopr {
	t.Helper()
	f := &fakeRepairShopr{routes: map[string]string{}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.RawQuery}
		if b, _ := io.ReadAll(r.Body); len(b) > 0 {
			assert.NoError(t, json.Unmarshal(b, &rec.Body))
		}
		f.requests = append(f.requests, rec)

		body, ok := f.routes[r.Method+" "+r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			body = `{"error":"Not found"}`
		}
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeRepairShopr) settings(t *testing.T) integration.SyncSettings {
	t.Helper()
	s, err := integration.NewSyncSettings(integration.SyncSettingsParams{
		BaseURL: f.server.URL + "/api/v1",
		APIKey:  "test-key",
	})
	require.NoError(t, err)
	return s
}

func (f *fakeRepairShopr) last() recordedRequest {
	return f.requests[len(f.requests)-1]
}

func newTestGateway(t *testing.T) *RepairShoprGateway {
	return NewRepairShoprGateway(newTestClient(t), nil)
}

// ---------------------------------------------------------------------------
// Customer Tests
// ---------------------------------------------------------------------------

func TestGateway_FindCustomerByEmail(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/customers"] = `{"customers":[{"id":77,"firstname":"Ann","lastname":"Lee","email":"ann@example.com"},{"id":78}]}`
	g := newTestGateway(t)

	c, err := g.FindCustomerByEmail(context.Background(), fake.settings(t), "Ann@Example.COM")
	require.NoError(t, err)
	assert.Equal(t, int64(77), c.ID)
	assert.Equal(t, "Ann", c.FirstName)
	assert.Equal(t, "email=ann%40example.com", fake.last().Query)
}

func TestGateway_FindCustomerByEmail_NoMatch(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/customers"] = `{"customers":[]}`
	g := newTestGateway(t)

	_, err := g.FindCustomerByEmail(context.Background(), fake.settings(t), "nobody@example.com")
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestGateway_CreateCustomer(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/customers"] = `{"customer":{"id":501,"firstname":"Ann"}}`
	g := newTestGateway(t)

	c, err := g.CreateCustomer(context.Background(), fake.settings(t), integration.NewCustomer{
		FirstName: "Ann",
		LastName:  "Lee",
		FullName:  "Ann Lee",
		Email:     "ANN@example.com",
		Phone:     "555-0100",
		Address:   "1 Main St",
		City:      "Springfield",
		TaxRateID: "40",
		Preferences: integration.CustomerPreferences{
			GetBilling: true,
			NoEmail:    false,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(501), c.ID)

	body := fake.last().Body
	assert.Equal(t, "ann@example.com", body["email"])
	assert.Equal(t, "Ann Lee", body["business_name"])
	assert.Equal(t, "Ann Lee", body["business_then_name"])
	assert.Equal(t, "555-0100", body["phone"])
	assert.Equal(t, "555-0100", body["mobile"])
	assert.Equal(t, "1 Main St", body["address"])
	assert.Nil(t, body["address_2"])
	assert.Contains(t, body, "address_2")
	assert.Nil(t, body["zip"])
	assert.Equal(t, true, body["get_billing"])
	assert.Equal(t, "40", body["tax_rate_id"])
	assert.Equal(t, map[string]any{}, body["properties"])
	assert.Equal(t, map[string]any{}, body["consent"])
}

func TestGateway_CreateCustomer_MissingID(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/customers"] = `{"customer":{}}`
	g := newTestGateway(t)

	_, err := g.CreateCustomer(context.Background(), fake.settings(t), integration.NewCustomer{Email: "a@b.c"})
	var apiErr *integration.RemoteAPIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "response has no id", apiErr.Message)
}

// ---------------------------------------------------------------------------
// Invoice Tests
// ---------------------------------------------------------------------------

func TestGateway_GetInvoice(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/invoices/WC-1002"] = `{"invoice":{
		"id":9001,"number":"WC-1002","customer_id":501,
		"subtotal":"50.0","tax":0,"total":"53.95","balance_due":"0.0","is_paid":true,
		"line_items":[{"id":1,"product_id":12,"item":"Widget","quantity":"2.0","price":"25.0"}],
		"payments":[{"id":31,"payment_amount":53.95,"ref_num":"ch_1"}]}}`
	g := newTestGateway(t)

	inv, err := g.GetInvoice(context.Background(), fake.settings(t), "WC-1002")
	require.NoError(t, err)
	assert.Equal(t, int64(9001), inv.ID)
	assert.Equal(t, "WC-1002", inv.Number)
	require.NotNil(t, inv.Total)
	assert.True(t, inv.Total.Equal(decimal.RequireFromString("53.95")))
	assert.True(t, inv.HasZeroBalance())
	assert.True(t, inv.IsPaid)
	require.Len(t, inv.LineItems, 1)
	assert.Equal(t, "12", inv.LineItems[0].ProductID)
	assert.Equal(t, "Widget", inv.LineItems[0].Name)
	assert.True(t, inv.LineItems[0].Quantity.Equal(decimal.NewFromInt(2)))
	require.Len(t, inv.Payments, 1)
	assert.Equal(t, "ch_1", inv.Payments[0].RefNum)
	assert.True(t, inv.PaymentsTotal().Equal(decimal.RequireFromString("53.95")))
}

func TestGateway_GetInvoice_NotFound(t *testing.T) {
	fake := newFakeRepairShopr(t)
	g := newTestGateway(t)

	_, err := g.GetInvoice(context.Background(), fake.settings(t), "WC-404")
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestGateway_GetInvoice_NullBalance(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/invoices/7"] = `{"invoice":{"id":7,"number":"WC-7","total":null,"balance_due":null}}`
	g := newTestGateway(t)

	inv, err := g.GetInvoice(context.Background(), fake.settings(t), "7")
	require.NoError(t, err)
	assert.Nil(t, inv.Total)
	assert.False(t, inv.HasZeroBalance())
}

func TestGateway_CreateInvoice(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/invoices"] = `{"invoice":{"id":9001,"number":"WC-1002","total":"53.95","line_items":[{"id":1,"item":"Widget","price":"25.0","quantity":"2.0"}]}}`
	g := newTestGateway(t)

	loc := time.FixedZone("EST", -5*3600)
	inv, err := g.CreateInvoice(context.Background(), fake.settings(t), integration.NewInvoice{
		CustomerID:       501,
		Number:           "WC-1002",
		Date:             time.Date(2024, 3, 9, 14, 5, 6, 0, loc),
		BusinessThenName: "Ann Lee",
		Subtotal:         decimal.RequireFromString("50"),
		Tax:              decimal.RequireFromString("3.95"),
		Total:            decimal.RequireFromString("53.95"),
		VerifiedPaid:     true,
		IsPaid:           true,
		Note:             "From the web store",
		FirstLine: integration.InvoiceLine{
			ProductID: "",
			Name:      "Widget",
			Quantity:  2,
			Price:     decimal.RequireFromString("25"),
			Taxable:   true,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(9001), inv.ID)

	body := fake.last().Body
	assert.Equal(t, "0.00", body["balance_due"])
	assert.Equal(t, float64(501), body["customer_id"])
	assert.Equal(t, "2024-03-09T14:05:06.000-05:00", body["date"])
	assert.Equal(t, "2024-03-09", body["due_date"])
	assert.Equal(t, "50.00", body["subtotal"])
	assert.Equal(t, "3.95", body["tax"])
	assert.Equal(t, "53.95", body["total"])
	assert.Equal(t, true, body["verified_paid"])
	assert.Equal(t, false, body["tech_marked_paid"])
	assert.Equal(t, "Ann Lee", body["customer_business_then_name"])

	lines := body["line_items"].([]any)
	require.Len(t, lines, 1)
	first := lines[0].(map[string]any)
	assert.Equal(t, "Widget", first["item"])
	assert.Equal(t, float64(0), first["product_id"])
	assert.Equal(t, float64(2), first["quantity"])
	assert.Equal(t, "25.00", first["price"])
	assert.Equal(t, true, first["taxable"])
}

func TestGateway_AddLineItem(t *testing.T) {
	tests := []struct {
		name      string
		line      integration.InvoiceLine
		wantKeys  []string
		forbidden []string
	}{
		{
			name:      "catalog product",
			line:      integration.InvoiceLine{ProductID: "12", Name: "Widget", Quantity: 3, Price: decimal.RequireFromString("8.333")},
			wantKeys:  []string{"product_id"},
			forbidden: []string{"item", "name"},
		},
		{
			name:      "free text",
			line:      integration.InvoiceLine{Name: "Gift wrap", Quantity: 1, Price: decimal.RequireFromString("2.5")},
			wantKeys:  []string{"item", "name"},
			forbidden: []string{"product_id"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := newFakeRepairShopr(t)
			fake.routes["POST /api/v1/invoices/9001/line_items"] = `{"line_item":{"id":44,"name":"x","price":"8.33","quantity":3}}`
			g := newTestGateway(t)

			item, err := g.AddLineItem(context.Background(), fake.settings(t), 9001, tt.line)
			require.NoError(t, err)
			assert.Equal(t, int64(44), item.ID)

			body := fake.last().Body
			for _, k := range tt.wantKeys {
				assert.Contains(t, body, k)
			}
			for _, k := range tt.forbidden {
				assert.NotContains(t, body, k)
			}
			assert.Equal(t, float64(0), body["id"])
			assert.Equal(t, "0", body["discount_dollars"])
			assert.Equal(t, float64(tt.line.Quantity), body["quantity"])
			assert.Equal(t, tt.line.Price.Round(2).InexactFloat64(), body["price"])
		})
	}
}

func TestGateway_UpdateLineItemPrice(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["PUT /api/v1/invoices/9001/line_items/44"] = `{"line_item":{"id":44,"price":"0.05"}}`
	g := newTestGateway(t)

	item, err := g.UpdateLineItemPrice(context.Background(), fake.settings(t), 9001, 44, "0.05")
	require.NoError(t, err)
	assert.True(t, item.Price.Equal(decimal.RequireFromString("0.05")))
	assert.Equal(t, map[string]any{"price": 0.05}, fake.last().Body)
}

func TestGateway_AddLineItem_MissingLineItem(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/invoices/1/line_items"] = `{"errors":["bad"]}`
	g := newTestGateway(t)

	_, err := g.AddLineItem(context.Background(), fake.settings(t), 1, integration.InvoiceLine{Name: "x", Quantity: 1})
	assert.ErrorIs(t, err, integration.ErrRemoteAPI)
}

// ---------------------------------------------------------------------------
// Payment Tests
// ---------------------------------------------------------------------------

func TestGateway_ListPaymentMethods(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/payment_methods"] = `{"payment_methods":[{"id":3,"name":"Credit Card"},{"id":4,"name":"PayPal"}]}`
	g := newTestGateway(t)

	methods, err := g.ListPaymentMethods(context.Background(), fake.settings(t))
	require.NoError(t, err)
	assert.Equal(t, []integration.RemotePaymentMethod{{ID: 3, Name: "Credit Card"}, {ID: 4, Name: "PayPal"}}, methods)
}

func TestGateway_CreatePayment(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/payments"] = `{"payment":{"id":301,"success":true}}`
	g := newTestGateway(t)

	paid := time.Date(2024, 3, 9, 14, 5, 6, 0, time.FixedZone("EST", -5*3600))
	result, err := g.CreatePayment(context.Background(), fake.settings(t), integration.NewPayment{
		CustomerID:        501,
		InvoiceID:         9001,
		InvoiceNumber:     "WC-1002",
		Amount:            decimal.RequireFromString("53.955"),
		PaymentMethodName: "Credit Card",
		RefNum:            "ch_1",
		AppliedAt:         paid,
		SignatureDate:     paid,
		FirstName:         "Ann",
		LastName:          "Lee",
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, int64(301), result.ID)

	body := fake.last().Body
	assert.Equal(t, float64(5396), body["amount_cents"])
	assert.Equal(t, "Credit Card", body["payment_method"])
	assert.Equal(t, "2024-03-09T19:05:06.000Z", body["applied_at"])
	assert.Equal(t, "2024-03-09T14:05:06-05:00", body["signature_date"])
	assert.Equal(t, float64(0), body["register_id"])
	assert.Equal(t, map[string]any{"9001": "53.96"}, body["apply_payments"])
}

func TestGateway_CreatePayment_NoSuccessFlag(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["POST /api/v1/payments"] = `{"payment":{"id":301}}`
	g := newTestGateway(t)

	result, err := g.CreatePayment(context.Background(), fake.settings(t), integration.NewPayment{InvoiceID: 1, Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.JSONEq(t, `{"payment":{"id":301}}`, string(result.Raw))
}

func TestGateway_GetPayment(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/payments/301"] = `{"payment":{"id":301,"payment_amount":"53.95","invoice_ids":[9001]}}`
	g := newTestGateway(t)

	p, err := g.GetPayment(context.Background(), fake.settings(t), 301)
	require.NoError(t, err)
	assert.Equal(t, []int64{9001}, p.InvoiceIDs)
	assert.True(t, p.Amount.Equal(decimal.RequireFromString("53.95")))

	_, err = g.GetPayment(context.Background(), fake.settings(t), 302)
	assert.ErrorIs(t, err, integration.ErrNotFound)
}

func TestGateway_InvalidJSON(t *testing.T) {
	fake := newFakeRepairShopr(t)
	fake.routes["GET /api/v1/payment_methods"] = `not json`
	g := newTestGateway(t)

	_, err := g.ListPaymentMethods(context.Background(), fake.settings(t))
	assert.ErrorIs(t, err, integration.ErrRemoteAPI)
}
