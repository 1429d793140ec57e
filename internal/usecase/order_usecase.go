package usecase

import (
	"commerce_service/internal/domain"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, input *PlaceOrderInput) (*domain.Order, error)
	GetOrderByID(ctx context.Context, id int) (*domain.Order, error)
	ListOrders(ctx context.Context, customerEmail string) ([]domain.Order, error)
	UpdateOrderStatus(ctx context.Context, id int, status domain.OrderStatus) (*domain.Order, error)
}

// PlaceOrderInput is a validated cart: customer snapshot, requested lines, the
// caller-computed total, and an optional promo code to redeem atomically.
type PlaceOrderInput struct {
	Customer  domain.Customer
	Lines     []domain.OrderLine
	Total     float64
	PromoCode string
	UserID    *int
}

var _ OrderUseCase = (*orderUseCase)(nil)

type orderUseCase struct {
	orderRepo domain.OrderRepository
	log       *logrus.Logger
}

func NewOrderUseCase(repo domain.OrderRepository, logger *logrus.Logger) OrderUseCase {
	return &orderUseCase{
		orderRepo: repo,
		log:       logger,
	}
}

func (uc *orderUseCase) PlaceOrder(ctx context.Context, input *PlaceOrderInput) (*domain.Order, error) {
	if strings.TrimSpace(input.Customer.Name) == "" {
		return nil, errors.New("customer name cannot be empty")
	}
	if strings.TrimSpace(input.Customer.Email) == "" {
		return nil, errors.New("customer email cannot be empty")
	}
	if strings.TrimSpace(input.Customer.Address) == "" {
		return nil, errors.New("customer address cannot be empty")
	}
	if len(input.Lines) == 0 {
		return nil, errors.New("order must contain at least one item")
	}
	for i, line := range input.Lines {
		if line.ProductID <= 0 {
			return nil, fmt.Errorf("item %d: invalid product ID", i)
		}
		if line.Quantity <= 0 {
			return nil, fmt.Errorf("item %d (product %d): quantity must be positive", i, line.ProductID)
		}
	}
	if input.Total < 0 {
		return nil, errors.New("order total cannot be negative")
	}
	uc.log.Infof("Use Case: Validated order data for customer %s (%d lines, total %.2f)", input.Customer.Email, len(input.Lines), input.Total)

	order := &domain.Order{
		Customer: input.Customer,
		Total:    input.Total,
		Status:   domain.StatusPending,
	}

	var claim *domain.PromoClaim
	if code := strings.TrimSpace(input.PromoCode); code != "" {
		claim = &domain.PromoClaim{Code: code, UserID: input.UserID}
		uc.log.Infof("Use Case: Order for %s carries promo code '%s'", input.Customer.Email, code)
	}

	createdOrder, err := uc.orderRepo.PlaceOrder(ctx, order, input.Lines, claim)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to place order for %s: %v", input.Customer.Email, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Order created successfully with ID %d for customer %s", createdOrder.ID, createdOrder.Customer.Email)
	return createdOrder, nil
}

func (uc *orderUseCase) GetOrderByID(ctx context.Context, id int) (*domain.Order, error) {
	if id <= 0 {
		return nil, errors.New("invalid order ID")
	}
	order, err := uc.orderRepo.GetOrderByID(ctx, id)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to get order ID %d: %v", id, err)
		return nil, err
	}
	return order, nil
}

func (uc *orderUseCase) ListOrders(ctx context.Context, customerEmail string) ([]domain.Order, error) {
	orders, err := uc.orderRepo.ListOrders(ctx, customerEmail)
	if err != nil {
		uc.log.Errorf("Use Case: Repository failed to list orders (customer: %q): %v", customerEmail, err)
		return nil, fmt.Errorf("could not retrieve orders: %w", err)
	}
	uc.log.Debugf("Use Case: Retrieved %d orders (customer: %q)", len(orders), customerEmail)
	return orders, nil
}

func (uc *orderUseCase) UpdateOrderStatus(ctx context.Context, id int, status domain.OrderStatus) (*domain.Order, error) {
	if id <= 0 {
		return nil, errors.New("invalid order ID for status update")
	}
	if !domain.IsValidStatus(status) {
		return nil, fmt.Errorf("invalid target order status: %s", status)
	}

	uc.log.Infof("Use Case: Attempting to update status for order ID %d to '%s'", id, status)
	updatedOrder, err := uc.orderRepo.UpdateOrderStatus(ctx, id, status)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to update status for order ID %d: %v", id, err)
		return nil, err
	}

	uc.log.Infof("Use Case: Order status updated successfully for ID %d to %s", updatedOrder.ID, updatedOrder.Status)
	return updatedOrder, nil
}
