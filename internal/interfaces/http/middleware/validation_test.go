package middleware

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicesync/internal/interfaces/http/dto"
)

type mappingBody struct {
	MethodID int64  `json:"repairshopr_method_id" binding:"required,gt=0"`
	Sort     string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

func TestHandleValidationError(t *testing.T) {
	SetupValidator()

	tests := []struct {
		name        string
		body        string
		wantCode    string
		wantField   string
		wantMessage string
	}{
		{"missing field", `{}`, dto.ErrCodeValidation, "repairshopr_method_id", "This field is required"},
		{"out of range", `{"repairshopr_method_id": -1}`, dto.ErrCodeValidation, "repairshopr_method_id", "Must be greater than 0"},
		{"malformed json", `{"repairshopr_method_id":`, dto.ErrCodeInvalidJSON, "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.Use(RequestID())
			r.PUT("/", func(c *gin.Context) {
				var body mappingBody
				if err := c.ShouldBindJSON(&body); err != nil {
					HandleValidationError(c, err)
					return
				}
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/", bytes.NewBufferString(tt.body)))

			assert.Equal(t, http.StatusBadRequest, w.Code)
			info := decodeError(t, w)
			assert.Equal(t, tt.wantCode, info.Code)
			if tt.wantField != "" {
				require.Len(t, info.Details, 1)
				assert.Equal(t, tt.wantField, info.Details[0].Field)
				assert.Equal(t, tt.wantMessage, info.Details[0].Message)
			}
		})
	}
}

func TestValidationDetails_OtherError(t *testing.T) {
	assert.Nil(t, ValidationDetails(errors.New("boom")))
}
