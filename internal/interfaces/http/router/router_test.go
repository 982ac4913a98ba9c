package router

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicesync/internal/interfaces/http/handler"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewRouter(t *testing.T) {
	r := NewRouter(gin.New())
	assert.Equal(t, "v1", r.apiVersion)
	assert.Empty(t, r.registrars)

	r = NewRouter(gin.New(), WithAPIVersion("v2"))
	assert.Equal(t, "v2", r.apiVersion)
}

func TestDomainGroup_RegisterRoutes(t *testing.T) {
	engine := gin.New()
	var order []string

	group := NewDomainGroup("test", "/test").
		Use(func(c *gin.Context) { order = append(order, "mw"); c.Next() }).
		GET("/ping", func(c *gin.Context) {
			order = append(order, "handler")
			c.String(http.StatusOK, "pong")
		}).
		DELETE("/items/:id", func(c *gin.Context) { c.String(http.StatusOK, c.Param("id")) })

	assert.Equal(t, "test", group.Name())
	assert.Equal(t, "/test", group.Prefix())

	NewRouter(engine).Register(group).Setup()

	w := httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "pong", w.Body.String())
	assert.Equal(t, []string{"mw", "handler"}, order)

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/v1/test/items/7", nil))
	assert.Equal(t, "7", w.Body.String())

	w = httptest.NewRecorder()
	engine.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/v1/test/ping", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// denyWith aborts every request with status so tests can tell which
// guard chain a route went through without reaching a handler.
func denyWith(status int) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.AbortWithStatus(status)
	}
}

func TestMount(t *testing.T) {
	engine := gin.New()
	Mount(engine, Handlers{
		Sync:           handler.NewSyncHandler(nil),
		PaymentMapping: handler.NewPaymentMappingHandler(nil),
		Webhook:        handler.NewWebhookHandler(nil, nil, nil),
		System:         handler.NewSystemHandler("invoicesync", "test"),
	}, Guards{
		Operator: []gin.HandlerFunc{denyWith(http.StatusUnauthorized)},
		Webhook:  []gin.HandlerFunc{denyWith(http.StatusTooManyRequests)},
	})

	tests := []struct {
		method     string
		path       string
		wantStatus int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/ready", http.StatusOK},
		{http.MethodGet, "/system/info", http.StatusOK},
		{http.MethodPost, "/api/v1/webhooks/woocommerce/order-paid", http.StatusTooManyRequests},
		{http.MethodPost, "/api/v1/orders/1002/invoice-sync", http.StatusUnauthorized},
		{http.MethodPost, "/api/v1/orders/1002/payment-sync", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/orders/1002/invoice-verification", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/orders/1002/payment-verification", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/orders/1002/sync-records", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/sync-records", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/payment-mappings", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/payment-mappings/stripe", http.StatusUnauthorized},
		{http.MethodPut, "/api/v1/payment-mappings/stripe", http.StatusUnauthorized},
		{http.MethodDelete, "/api/v1/payment-mappings/stripe", http.StatusUnauthorized},
		{http.MethodGet, "/api/v1/orders/1002/invoice-sync", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			engine.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
			require.Equal(t, tt.wantStatus, w.Code)
		})
	}
}
