package delivery

import (
	"commerce_service/internal/domain"
	"commerce_service/internal/usecase"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PromoHandler struct {
	useCase usecase.PromoUseCase
	log     *logrus.Logger
}

func NewPromoHandler(uc usecase.PromoUseCase, logger *logrus.Logger) *PromoHandler {
	return &PromoHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *PromoHandler) RegisterRoutes(router gin.IRouter) {
	promos := router.Group("/promo-codes")
	{
		promos.POST("/validate", h.Validate)
		promos.GET("", h.ListPromoCodes)
		promos.POST("", h.CreatePromoCode)
		promos.GET("/:id", h.GetPromoCodeByID)
		promos.PATCH("/:id", h.UpdatePromoCode)
		promos.DELETE("/:id", h.DeletePromoCode)
	}
}

type validatePromoRequest struct {
	Code      string   `json:"code" binding:"required"`
	CartTotal *float64 `json:"cartTotal" binding:"required,gte=0"`
}

type validatedPromo struct {
	ID            int                 `json:"id"`
	Code          string              `json:"code"`
	DiscountType  domain.DiscountType `json:"discountType"`
	DiscountValue float64             `json:"discountValue"`
}

type validatePromoResponse struct {
	Valid          bool           `json:"valid"`
	PromoCode      validatedPromo `json:"promoCode"`
	DiscountAmount float64        `json:"discountAmount"`
}

func (h *PromoHandler) Validate(c *gin.Context) {
	var req validatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for promo validation: %v", err)
		respondBindingError(c, err)
		return
	}

	result, err := h.useCase.Validate(c.Request.Context(), req.Code, *req.CartTotal, optionalUserID(c))
	if err != nil {
		h.log.Errorf("Promo validation failed for code '%s': %v", req.Code, err)
		respondError(c, http.StatusInternalServerError, "Failed to validate promo code")
		return
	}

	if !result.Valid {
		respondError(c, http.StatusBadRequest, result.Reason)
		return
	}

	c.JSON(http.StatusOK, validatePromoResponse{
		Valid: true,
		PromoCode: validatedPromo{
			ID:            result.PromoCode.ID,
			Code:          result.PromoCode.Code,
			DiscountType:  result.PromoCode.DiscountType,
			DiscountValue: result.PromoCode.DiscountValue,
		},
		DiscountAmount: result.DiscountAmount,
	})
}

type createPromoRequest struct {
	Code              string    `json:"code" binding:"required"`
	DiscountType      string    `json:"discountType" binding:"required"`
	DiscountValue     float64   `json:"discountValue" binding:"required,gt=0"`
	MinOrderAmount    *float64  `json:"minOrderAmount" binding:"omitempty,gte=0"`
	MaxDiscountAmount *float64  `json:"maxDiscountAmount" binding:"omitempty,gt=0"`
	UsageLimit        *int      `json:"usageLimit" binding:"omitempty,gt=0"`
	PerUserLimit      *int      `json:"perUserLimit" binding:"omitempty,gt=0"`
	ValidFrom         time.Time `json:"validFrom" binding:"required"`
	ValidUntil        time.Time `json:"validUntil" binding:"required"`
	IsActive          *bool     `json:"isActive"`
}

func (h *PromoHandler) CreatePromoCode(c *gin.Context) {
	var req createPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for create promo code: %v", err)
		respondBindingError(c, err)
		return
	}

	promo := &domain.PromoCode{
		Code:              req.Code,
		DiscountType:      domain.DiscountType(req.DiscountType),
		DiscountValue:     req.DiscountValue,
		MinOrderAmount:    req.MinOrderAmount,
		MaxDiscountAmount: req.MaxDiscountAmount,
		UsageLimit:        req.UsageLimit,
		PerUserLimit:      req.PerUserLimit,
		ValidFrom:         req.ValidFrom,
		ValidUntil:        req.ValidUntil,
		IsActive:          true,
	}
	if req.IsActive != nil {
		promo.IsActive = *req.IsActive
	}

	created, err := h.useCase.CreatePromoCode(c.Request.Context(), promo)
	if err != nil {
		if errors.Is(err, domain.ErrDuplicatePromoCode) {
			respondError(c, http.StatusConflict, "A promo code with this code already exists")
			return
		}
		h.log.Warnf("Failed to create promo code '%s': %v", req.Code, err)
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *PromoHandler) ListPromoCodes(c *gin.Context) {
	promos, err := h.useCase.ListPromoCodes(c.Request.Context())
	if err != nil {
		h.log.Errorf("Failed to list promo codes: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve promo codes")
		return
	}
	c.JSON(http.StatusOK, promos)
}

func (h *PromoHandler) GetPromoCodeByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid promo code ID format")
		return
	}

	promo, err := h.useCase.GetPromoCodeByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrPromoNotFound) {
			respondError(c, http.StatusNotFound, "Promo code not found")
			return
		}
		h.log.Errorf("Failed to get promo code %d: %v", id, err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve promo code")
		return
	}

	c.JSON(http.StatusOK, promo)
}

type updatePromoRequest struct {
	Code              *string    `json:"code"`
	DiscountType      *string    `json:"discountType"`
	DiscountValue     *float64   `json:"discountValue"`
	MinOrderAmount    *float64   `json:"minOrderAmount"`
	MaxDiscountAmount *float64   `json:"maxDiscountAmount"`
	UsageLimit        *int       `json:"usageLimit"`
	PerUserLimit      *int       `json:"perUserLimit"`
	ValidFrom         *time.Time `json:"validFrom"`
	ValidUntil        *time.Time `json:"validUntil"`
	IsActive          *bool      `json:"isActive"`
}

func (h *PromoHandler) UpdatePromoCode(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid promo code ID format")
		return
	}

	var req updatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for update promo code %d: %v", id, err)
		respondBindingError(c, err)
		return
	}

	updates := map[string]interface{}{}
	if req.Code != nil {
		updates["code"] = *req.Code
	}
	if req.DiscountType != nil {
		updates["discount_type"] = *req.DiscountType
	}
	if req.DiscountValue != nil {
		updates["discount_value"] = *req.DiscountValue
	}
	if req.MinOrderAmount != nil {
		updates["min_order_amount"] = *req.MinOrderAmount
	}
	if req.MaxDiscountAmount != nil {
		updates["max_discount_amount"] = *req.MaxDiscountAmount
	}
	if req.UsageLimit != nil {
		updates["usage_limit"] = *req.UsageLimit
	}
	if req.PerUserLimit != nil {
		updates["per_user_limit"] = *req.PerUserLimit
	}
	if req.ValidFrom != nil {
		updates["valid_from"] = *req.ValidFrom
	}
	if req.ValidUntil != nil {
		updates["valid_until"] = *req.ValidUntil
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}

	updated, err := h.useCase.UpdatePromoCode(c.Request.Context(), id, updates)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrPromoNotFound):
			respondError(c, http.StatusNotFound, "Promo code not found")
		case errors.Is(err, domain.ErrDuplicatePromoCode):
			respondError(c, http.StatusConflict, "A promo code with this code already exists")
		default:
			h.log.Warnf("Failed to update promo code %d: %v", id, err)
			respondError(c, http.StatusBadRequest, err.Error())
		}
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *PromoHandler) DeletePromoCode(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, http.StatusBadRequest, "Invalid promo code ID format")
		return
	}

	if err := h.useCase.DeletePromoCode(c.Request.Context(), id); err != nil {
		if errors.Is(err, domain.ErrPromoNotFound) {
			respondError(c, http.StatusNotFound, "Promo code not found")
			return
		}
		h.log.Errorf("Failed to delete promo code %d: %v", id, err)
		respondError(c, http.StatusInternalServerError, "Failed to delete promo code")
		return
	}

	c.Status(http.StatusNoContent)
}
