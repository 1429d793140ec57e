package usecase

import (
	"commerce_service/internal/domain"
	"context"
	"io"

	"github.com/sirupsen/logrus"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockOrderRepository implements domain.OrderRepository for testing.
type MockOrderRepository struct {
	PlacedOrder *domain.Order
	PlacedLines []domain.OrderLine
	PlacedPromo *domain.PromoClaim
	PlaceErr    error

	Order   *domain.Order
	Orders  []domain.Order
	GetErr  error
	ListErr error

	UpdatedStatus domain.OrderStatus
	UpdateErr     error
}

func (m *MockOrderRepository) PlaceOrder(_ context.Context, order *domain.Order, lines []domain.OrderLine, promo *domain.PromoClaim) (*domain.Order, error) {
	m.PlacedOrder = order
	m.PlacedLines = lines
	m.PlacedPromo = promo
	if m.PlaceErr != nil {
		return nil, m.PlaceErr
	}
	order.ID = 42
	return order, nil
}

func (m *MockOrderRepository) GetOrderByID(_ context.Context, _ int) (*domain.Order, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Order, nil
}

func (m *MockOrderRepository) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Orders, nil
}

func (m *MockOrderRepository) UpdateOrderStatus(_ context.Context, _ int, status domain.OrderStatus) (*domain.Order, error) {
	m.UpdatedStatus = status
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	if m.Order != nil {
		m.Order.Status = status
	}
	return m.Order, nil
}

// MockPromoRepository implements domain.PromoRepository for testing.
type MockPromoRepository struct {
	Promo  *domain.PromoCode
	Promos []domain.PromoCode
	GetErr error

	RedemptionCount        int
	CountErr               error
	CountedPromoID         int
	CountedUserID          int
	CountRedemptionsCalled bool

	RecordedUsage *domain.PromoUsage
	RecordErr     error

	Created   *domain.PromoCode
	CreateErr error

	UpdatedID     int
	UpdatedFields map[string]interface{}
	UpdateErr     error
	DeletedID     int
	DeleteErr     error
	ListErr       error
}

func (m *MockPromoRepository) CreatePromoCode(_ context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	m.Created = promo
	if m.CreateErr != nil {
		return nil, m.CreateErr
	}
	promo.ID = 7
	return promo, nil
}

func (m *MockPromoRepository) GetPromoCodeByID(_ context.Context, _ int) (*domain.PromoCode, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Promo, nil
}

func (m *MockPromoRepository) GetPromoCodeByCode(_ context.Context, _ string) (*domain.PromoCode, error) {
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return m.Promo, nil
}

func (m *MockPromoRepository) ListPromoCodes(_ context.Context) ([]domain.PromoCode, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	return m.Promos, nil
}

func (m *MockPromoRepository) UpdatePromoCode(_ context.Context, id int, updates map[string]interface{}) (*domain.PromoCode, error) {
	m.UpdatedID = id
	m.UpdatedFields = updates
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}
	return m.Promo, nil
}

func (m *MockPromoRepository) DeletePromoCode(_ context.Context, id int) error {
	m.DeletedID = id
	return m.DeleteErr
}

func (m *MockPromoRepository) CountUserRedemptions(_ context.Context, promoID, userID int) (int, error) {
	m.CountRedemptionsCalled = true
	m.CountedPromoID = promoID
	m.CountedUserID = userID
	if m.CountErr != nil {
		return 0, m.CountErr
	}
	return m.RedemptionCount, nil
}

func (m *MockPromoRepository) RecordUsage(_ context.Context, usage *domain.PromoUsage) error {
	m.RecordedUsage = usage
	return m.RecordErr
}
