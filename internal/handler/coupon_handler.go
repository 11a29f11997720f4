package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/moshiurrahman101/ccit-sub003/internal/models"
	"github.com/moshiurrahman101/ccit-sub003/internal/service"
	appErrors "github.com/moshiurrahman101/ccit-sub003/pkg/errors"
	"github.com/moshiurrahman101/ccit-sub003/pkg/response"
)

// CouponHandler exposes coupon validation and administration endpoints.
type CouponHandler struct {
	service *service.CouponService
}

// NewCouponHandler creates a new handler.
func NewCouponHandler(svc *service.CouponService) *CouponHandler {
	return &CouponHandler{service: svc}
}

// Validate godoc
// @Summary Validate coupon
// @Description Check a coupon against a batch order without consuming it
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body handler.ValidateCouponRequest true "Validation payload"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /coupons/validate [post]
func (h *CouponHandler) Validate(c *gin.Context) {
	var req ValidateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validation payload"))
		return
	}

	result, err := h.service.Validate(c.Request.Context(), req.Code, req.BatchID, req.CourseID, req.OrderAmount)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ValidateCouponRequest is the payload for coupon validation.
type ValidateCouponRequest struct {
	Code        string `json:"code" binding:"required"`
	BatchID     string `json:"batch_id" binding:"required"`
	CourseID    string `json:"course_id"`
	OrderAmount int64  `json:"order_amount" binding:"required,gt=0"`
}

// List godoc
// @Summary List coupons
// @Tags Billing
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /coupons [get]
func (h *CouponHandler) List(c *gin.Context) {
	filter := models.CouponFilter{
		Search:    c.Query("search"),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if raw := c.Query("active"); raw != "" {
		active := raw == "true"
		filter.Active = &active
	}

	coupons, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coupons, pagination)
}

// Create godoc
// @Summary Create coupon
// @Tags Billing
// @Accept json
// @Produce json
// @Param payload body service.CreateCouponRequest true "Coupon payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /coupons [post]
func (h *CouponHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.CreateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid coupon payload"))
		return
	}

	coupon, err := h.service.Create(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, coupon)
}

// Update godoc
// @Summary Update coupon
// @Tags Billing
// @Accept json
// @Produce json
// @Param code path string true "Coupon code"
// @Param payload body service.UpdateCouponRequest true "Coupon payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /coupons/{code} [put]
func (h *CouponHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.UpdateCouponRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid coupon payload"))
		return
	}

	coupon, err := h.service.Update(c.Request.Context(), claims.UserID, c.Param("code"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, coupon, nil)
}

// Deactivate godoc
// @Summary Deactivate coupon
// @Tags Billing
// @Produce json
// @Param code path string true "Coupon code"
// @Success 204 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /coupons/{code} [delete]
func (h *CouponHandler) Deactivate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Deactivate(c.Request.Context(), claims.UserID, c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
