package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusFulfilled OrderStatus = "fulfilled"
	StatusCancelled OrderStatus = "cancelled"
)

var (
	ErrOrderNotFound         = errors.New("order not found")
	ErrProductNotFound       = errors.New("product not found")
	ErrInsufficientInventory = errors.New("insufficient inventory")
)

// allowedTransitions is the closed transition table for order statuses.
// Fulfilled and cancelled are terminal.
var allowedTransitions = map[OrderStatus][]OrderStatus{
	StatusPending: {StatusFulfilled, StatusCancelled},
}

func IsValidStatus(status OrderStatus) bool {
	switch status {
	case StatusPending, StatusFulfilled, StatusCancelled:
		return true
	default:
		return false
	}
}

func CanTransition(from, to OrderStatus) bool {
	for _, allowed := range allowedTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

type InvalidTransitionError struct {
	From OrderStatus
	To   OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot transition order from '%s' to '%s'", e.From, e.To)
}

// Customer is the contact snapshot copied onto the order at placement time.
// It does not reference a live customer record.
type Customer struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Address string `json:"address"`
	Notes   string `json:"notes,omitempty"`
}

type Order struct {
	ID        int         `json:"id"`
	Customer  Customer    `json:"customer"`
	Total     float64     `json:"total"`
	Status    OrderStatus `json:"status"`
	Items     []OrderItem `json:"items"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

// OrderItem snapshots the product's name and price as of purchase time, so
// later product edits do not alter order history.
type OrderItem struct {
	ProductID   int     `json:"productId"`
	ProductName string  `json:"productName"`
	Price       float64 `json:"price"`
	Quantity    int     `json:"quantity"`
}

// OrderLine is a requested cart line before the product snapshot is taken.
type OrderLine struct {
	ProductID int
	Quantity  int
}

// SortLines orders cart lines by product id ascending so that row locks are
// always acquired in the same order across concurrent transactions.
func SortLines(lines []OrderLine) {
	sort.SliceStable(lines, func(i, j int) bool {
		return lines[i].ProductID < lines[j].ProductID
	})
}

// PromoClaim attaches a promo redemption to an order placement. The claim is
// verified and recorded inside the same transaction that reserves inventory.
type PromoClaim struct {
	Code   string
	UserID *int
}

type OrderRepository interface {
	PlaceOrder(ctx context.Context, order *Order, lines []OrderLine, promo *PromoClaim) (*Order, error)
	GetOrderByID(ctx context.Context, id int) (*Order, error)
	ListOrders(ctx context.Context, customerEmail string) ([]Order, error)
	UpdateOrderStatus(ctx context.Context, id int, status OrderStatus) (*Order, error)
}
