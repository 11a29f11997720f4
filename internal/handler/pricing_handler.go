package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshiurrahman101/ccit-sub003/internal/service"
	"github.com/moshiurrahman101/ccit-sub003/pkg/response"
)

// PricingHandler exposes the price quote endpoint.
type PricingHandler struct {
	service *service.PricingService
}

// NewPricingHandler creates a new handler.
func NewPricingHandler(svc *service.PricingService) *PricingHandler {
	return &PricingHandler{service: svc}
}

// Quote godoc
// @Summary Quote batch price
// @Description Preview the price breakdown for a batch, optionally with a coupon
// @Tags Billing
// @Produce json
// @Param id path string true "Batch ID"
// @Param coupon query string false "Coupon code"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /batches/{id}/quote [get]
func (h *PricingHandler) Quote(c *gin.Context) {
	quote, err := h.service.Quote(c.Request.Context(), c.Param("id"), c.Query("coupon"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, quote, nil)
}
