package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/infrastructure/auth"
	"github.com/erp/invoicesync/internal/infrastructure/config"
	"github.com/erp/invoicesync/internal/interfaces/http/dto"
)

func newTestJWTService(ttl time.Duration) *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                "test-secret-key-at-least-32-chars",
		Issuer:                "invoicesync",
		AccessTokenExpiration: ttl,
	})
}

func tokenFor(t *testing.T, svc *auth.JWTService, perms ...string) string {
	t.Helper()
	token, _, err := svc.GenerateAccessToken(auth.GenerateTokenInput{
		UserID:      "7",
		Username:    "operator",
		Permissions: perms,
	})
	require.NoError(t, err)
	return token
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) dto.ErrorInfo {
	t.Helper()
	var resp dto.Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	assert.False(t, resp.Success)
	return *resp.Error
}

func TestJWTAuth(t *testing.T) {
	svc := newTestJWTService(15 * time.Minute)
	valid := tokenFor(t, svc, auth.PermissionEditOrders)
	expired := tokenFor(t, newTestJWTService(-time.Minute))

	tests := []struct {
		name       string
		header     string
		wantStatus int
		wantCode   string
	}{
		{"valid token", "Bearer " + valid, http.StatusOK, ""},
		{"missing header", "", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"wrong scheme", "Basic " + valid, http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"empty bearer", "Bearer ", http.StatusUnauthorized, dto.ErrCodeUnauthorized},
		{"garbage token", "Bearer abc.def.ghi", http.StatusUnauthorized, dto.ErrCodeTokenInvalid},
		{"expired token", "Bearer " + expired, http.StatusUnauthorized, dto.ErrCodeTokenExpired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID(), JWTAuth(svc, zap.NewNop()))
			r.GET("/orders", func(c *gin.Context) {
				claims := GetJWTClaims(c)
				require.NotNil(t, claims)
				assert.Equal(t, "7", GetJWTUserID(c))
				assert.True(t, claims.HasPermission(auth.PermissionEditOrders))
				c.Status(http.StatusOK)
			})

			req := httptest.NewRequest(http.MethodGet, "/orders", nil)
			if tt.header != "" {
				req.Header.Set(AuthHeaderKey, tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				info := decodeError(t, w)
				assert.Equal(t, tt.wantCode, info.Code)
				assert.NotEmpty(t, info.RequestID)
			}
		})
	}
}

func TestGetJWTClaims_Absent(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	assert.Nil(t, GetJWTClaims(c))
	assert.Empty(t, GetJWTUserID(c))
}
