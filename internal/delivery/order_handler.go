package delivery

import (
	"commerce_service/internal/domain"
	"commerce_service/internal/usecase"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type OrderHandler struct {
	useCase usecase.OrderUseCase
	log     *logrus.Logger
}

func NewOrderHandler(uc usecase.OrderUseCase, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		useCase: uc,
		log:     logger,
	}
}

func (h *OrderHandler) RegisterRoutes(router gin.IRouter) {
	orders := router.Group("/orders")
	{
		orders.POST("", h.CreateOrder)
		orders.GET("", h.ListOrders)
		orders.GET("/:id", h.GetOrderByID)
		orders.PATCH("/:id", h.UpdateOrderStatus)
	}
}

type customerPayload struct {
	Name    string `json:"name" binding:"required"`
	Email   string `json:"email" binding:"required,email"`
	Address string `json:"address" binding:"required"`
	Phone   string `json:"phone"`
	Notes   string `json:"notes"`
}

type orderLinePayload struct {
	ProductID int `json:"productId" binding:"required,min=1"`
	Quantity  int `json:"quantity" binding:"required,min=1"`
}

type createOrderRequest struct {
	Customer  customerPayload    `json:"customer" binding:"required"`
	Items     []orderLinePayload `json:"items" binding:"required,min=1,dive"`
	Total     *float64           `json:"total" binding:"required,gte=0"`
	PromoCode string             `json:"promoCode"`
}

func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req createOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for create order: %v", err)
		respondBindingError(c, err)
		return
	}

	lines := make([]domain.OrderLine, 0, len(req.Items))
	for _, item := range req.Items {
		lines = append(lines, domain.OrderLine{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	input := &usecase.PlaceOrderInput{
		Customer: domain.Customer{
			Name:    req.Customer.Name,
			Email:   req.Customer.Email,
			Phone:   req.Customer.Phone,
			Address: req.Customer.Address,
			Notes:   req.Customer.Notes,
		},
		Lines:     lines,
		Total:     *req.Total,
		PromoCode: req.PromoCode,
		UserID:    optionalUserID(c),
	}

	createdOrder, err := h.useCase.PlaceOrder(c.Request.Context(), input)
	if err != nil {
		var ineligible *domain.IneligiblePromoError
		switch {
		case errors.As(err, &ineligible):
			h.log.Warnf("Order rejected, promo ineligible: %s", ineligible.Reason)
			respondError(c, http.StatusBadRequest, ineligible.Reason)
		case errors.Is(err, domain.ErrPromoNotFound):
			h.log.Warnf("Order rejected, unknown promo code: %v", err)
			respondError(c, http.StatusBadRequest, "Invalid promo code")
		default:
			// Stock shortfalls, missing products and infrastructure failures
			// all surface as the same generic message; the log keeps the
			// distinction.
			h.log.Errorf("Failed to create order for %s: %v", req.Customer.Email, err)
			respondError(c, http.StatusBadRequest, "Unable to create order")
		}
		return
	}

	h.log.Infof("Order %d created successfully for %s", createdOrder.ID, createdOrder.Customer.Email)
	c.JSON(http.StatusCreated, createdOrder)
}

func (h *OrderHandler) ListOrders(c *gin.Context) {
	customerEmail := c.GetHeader("X-User-Email")

	orders, err := h.useCase.ListOrders(c.Request.Context(), customerEmail)
	if err != nil {
		h.log.Errorf("Failed to list orders: %v", err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve orders")
		return
	}

	c.JSON(http.StatusOK, orders)
}

func (h *OrderHandler) GetOrderByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.log.Warnf("Invalid order ID parameter: %s", c.Param("id"))
		respondError(c, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	order, err := h.useCase.GetOrderByID(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrOrderNotFound) {
			respondError(c, http.StatusNotFound, "Order not found")
			return
		}
		h.log.Errorf("Failed to get order %d: %v", id, err)
		respondError(c, http.StatusInternalServerError, "Failed to retrieve order")
		return
	}

	c.JSON(http.StatusOK, order)
}

type updateOrderRequest struct {
	Status *domain.OrderStatus `json:"status" binding:"required"`
}

func (h *OrderHandler) UpdateOrderStatus(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		h.log.Warnf("Invalid order ID parameter for update: %s", c.Param("id"))
		respondError(c, http.StatusBadRequest, "Invalid order ID format")
		return
	}

	var req updateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.log.Warnf("Failed to bind JSON for update order %d: %v", id, err)
		respondBindingError(c, err)
		return
	}
	if !domain.IsValidStatus(*req.Status) {
		respondError(c, http.StatusBadRequest, "Invalid status value '"+string(*req.Status)+"'")
		return
	}

	updatedOrder, err := h.useCase.UpdateOrderStatus(c.Request.Context(), id, *req.Status)
	if err != nil {
		var transition *domain.InvalidTransitionError
		switch {
		case errors.Is(err, domain.ErrOrderNotFound):
			respondError(c, http.StatusNotFound, "Order not found")
		case errors.As(err, &transition):
			respondError(c, http.StatusBadRequest, transition.Error())
		default:
			h.log.Errorf("Failed to update status for order %d: %v", id, err)
			respondError(c, http.StatusInternalServerError, "Failed to update order status")
		}
		return
	}

	c.JSON(http.StatusOK, updatedOrder)
}

// optionalUserID reads the gateway-injected X-User-ID header; absence or a
// malformed value means an anonymous caller.
func optionalUserID(c *gin.Context) *int {
	raw := c.GetHeader("X-User-ID")
	if raw == "" {
		return nil
	}
	id, err := strconv.Atoi(raw)
	if err != nil || id <= 0 {
		return nil
	}
	return &id
}
