package delivery

import (
	"bytes"
	"commerce_service/internal/domain"
	"commerce_service/internal/usecase"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// MockOrderUseCase implements usecase.OrderUseCase for handler tests.
type MockOrderUseCase struct {
	PlacedInput *usecase.PlaceOrderInput
	Order       *domain.Order
	Orders      []domain.Order
	Err         error

	UpdatedID     int
	UpdatedStatus domain.OrderStatus
}

func (m *MockOrderUseCase) PlaceOrder(_ context.Context, input *usecase.PlaceOrderInput) (*domain.Order, error) {
	m.PlacedInput = input
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrderUseCase) GetOrderByID(_ context.Context, _ int) (*domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

func (m *MockOrderUseCase) ListOrders(_ context.Context, _ string) ([]domain.Order, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Orders, nil
}

func (m *MockOrderUseCase) UpdateOrderStatus(_ context.Context, id int, status domain.OrderStatus) (*domain.Order, error) {
	m.UpdatedID = id
	m.UpdatedStatus = status
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Order, nil
}

// MockPromoUseCase implements usecase.PromoUseCase for handler tests.
type MockPromoUseCase struct {
	Validation *usecase.PromoValidation
	Promo      *domain.PromoCode
	Promos     []domain.PromoCode
	Err        error

	ValidatedCode  string
	ValidatedTotal float64
	ValidatedUser  *int
	UpdatedFields  map[string]interface{}
	DeletedID      int
}

func (m *MockPromoUseCase) Validate(_ context.Context, code string, cartTotal float64, userID *int) (*usecase.PromoValidation, error) {
	m.ValidatedCode = code
	m.ValidatedTotal = cartTotal
	m.ValidatedUser = userID
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Validation, nil
}

func (m *MockPromoUseCase) RecordUsage(_ context.Context, _ *domain.PromoUsage) error {
	return m.Err
}

func (m *MockPromoUseCase) CreatePromoCode(_ context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	promo.ID = 7
	return promo, nil
}

func (m *MockPromoUseCase) GetPromoCodeByID(_ context.Context, _ int) (*domain.PromoCode, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Promo, nil
}

func (m *MockPromoUseCase) ListPromoCodes(_ context.Context) ([]domain.PromoCode, error) {
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Promos, nil
}

func (m *MockPromoUseCase) UpdatePromoCode(_ context.Context, _ int, updates map[string]interface{}) (*domain.PromoCode, error) {
	m.UpdatedFields = updates
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Promo, nil
}

func (m *MockPromoUseCase) DeletePromoCode(_ context.Context, id int) error {
	m.DeletedID = id
	return m.Err
}

func newOrderRouter(uc usecase.OrderUseCase) *gin.Engine {
	router := gin.New()
	NewOrderHandler(uc, testLogger()).RegisterRoutes(router.Group("/api"))
	return router
}

func newPromoRouter(uc usecase.PromoUseCase) *gin.Engine {
	router := gin.New()
	NewPromoHandler(uc, testLogger()).RegisterRoutes(router.Group("/api"))
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}
