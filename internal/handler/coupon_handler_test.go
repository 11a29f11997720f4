package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCouponHandlerValidateInvalidBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCouponHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader([]byte(`not json`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Validate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCouponHandlerValidateRejectsZeroAmount(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler := NewCouponHandler(nil)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	body, err := json.Marshal(ValidateCouponRequest{Code: "eid2025", BatchID: "b1"})
	require.NoError(t, err)
	req, _ := http.NewRequest(http.MethodPost, "/coupons/validate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	handler.Validate(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
