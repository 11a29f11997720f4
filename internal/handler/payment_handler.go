package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	"github.com/moshiurrahman101/ccit-sub003/internal/service"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
	"github.com/moshiurrahman101/ccit-sub003/pkg/response"
)

// PaymentHandler exposes the manual payment claim workflow.
type PaymentHandler struct {
	service *service.PaymentService
}

// NewPaymentHandler creates a new handler.
func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{service: svc}
}

// SubmitClaim godoc
// @Summary Submit payment claim
// @Description Report a manual payment against an invoice; pending until staff decides
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.SubmitClaimRequest true "Claim payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /payments [post]
func (h *PaymentHandler) SubmitClaim(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid claim payload"))
		return
	}

	payment, err := h.service.SubmitClaim(c.Request.Context(), claims.Role, claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// Decide godoc
// @Summary Decide payment claim
// @Description Verify or reject a pending claim; verification applies the amount to the invoice
// @Tags Billing
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.DecideClaimRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /payments/{id}/decision [post]
func (h *PaymentHandler) Decide(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecideClaimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	payment, err := h.service.DecideClaim(c.Request.Context(), claims.Role, claims.UserID, c.Param("id"), req.Approve)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// List godoc
// @Summary List payment claims
// @Description Admin verification queue with invoice context
// @Tags Billing
// @Produce json
// @Param status query string false "Claim status filter"
// @Param batch_id query string false "Batch filter"
// @Success 200 {object} response.Envelope
// @Router /payments [get]
func (h *PaymentHandler) List(c *gin.Context) {
	filter := models.PaymentFilter{
		InvoiceID: c.Query("invoice_id"),
		BatchID:   c.Query("batch_id"),
		Status:    models.PaymentStatus(c.Query("status")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	payments, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, pagination)
}
