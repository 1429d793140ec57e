package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage   DiscountType = "PERCENTAGE"
	DiscountFixedAmount  DiscountType = "FIXED_AMOUNT"
	DiscountFreeShipping DiscountType = "FREE_SHIPPING"
)

var (
	ErrPromoNotFound      = errors.New("promo code not found")
	ErrDuplicatePromoCode = errors.New("promo code already exists")
)

func IsValidDiscountType(t DiscountType) bool {
	switch t {
	case DiscountPercentage, DiscountFixedAmount, DiscountFreeShipping:
		return true
	default:
		return false
	}
}

type PromoCode struct {
	ID                int          `json:"id"`
	Code              string       `json:"code"`
	DiscountType      DiscountType `json:"discountType"`
	DiscountValue     float64      `json:"discountValue"`
	MinOrderAmount    *float64     `json:"minOrderAmount,omitempty"`
	MaxDiscountAmount *float64     `json:"maxDiscountAmount,omitempty"`
	UsageLimit        *int         `json:"usageLimit,omitempty"`
	PerUserLimit      *int         `json:"perUserLimit,omitempty"`
	ValidFrom         time.Time    `json:"validFrom"`
	ValidUntil        time.Time    `json:"validUntil"`
	IsActive          bool         `json:"isActive"`
	UsageCount        int          `json:"usageCount"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// PromoUsage records that an order (or user) consumed one use of a promo code.
type PromoUsage struct {
	ID              int       `json:"id"`
	PromoCodeID     int       `json:"promoCodeId"`
	OrderID         *int      `json:"orderId,omitempty"`
	UserID          *int      `json:"userId,omitempty"`
	DiscountApplied float64   `json:"discountApplied"`
	UsedAt          time.Time `json:"usedAt"`
}

// IneligiblePromoError is a business-rule rejection, not a storage failure.
// The reason is safe to show to the customer.
type IneligiblePromoError struct {
	Reason string
}

func (e *IneligiblePromoError) Error() string { return e.Reason }

// Eligible checks the promo against a cart, short-circuiting on the first
// failed rule: active flag, validity window, global usage limit, per-user
// limit, minimum order amount.
func (p *PromoCode) Eligible(cartTotal float64, userRedemptions int, now time.Time) error {
	if !p.IsActive {
		return &IneligiblePromoError{Reason: "This promo code is no longer active"}
	}
	if now.Before(p.ValidFrom) {
		return &IneligiblePromoError{Reason: "This promo code is not yet valid"}
	}
	if now.After(p.ValidUntil) {
		return &IneligiblePromoError{Reason: "This promo code has expired"}
	}
	if p.UsageLimit != nil && p.UsageCount >= *p.UsageLimit {
		return &IneligiblePromoError{Reason: "This promo code has reached its usage limit"}
	}
	if p.PerUserLimit != nil && userRedemptions >= *p.PerUserLimit {
		return &IneligiblePromoError{Reason: "You have reached the usage limit for this promo code"}
	}
	if p.MinOrderAmount != nil && cartTotal < *p.MinOrderAmount {
		return &IneligiblePromoError{Reason: fmt.Sprintf("Minimum order amount of $%.2f required", *p.MinOrderAmount)}
	}
	return nil
}

// Discount computes the discount amount for a cart total, rounded half-up to
// the cent. FREE_SHIPPING only gates eligibility, so its amount is zero.
func (p *PromoCode) Discount(cartTotal float64) float64 {
	total := decimal.NewFromFloat(cartTotal)
	var amount decimal.Decimal

	switch p.DiscountType {
	case DiscountPercentage:
		amount = total.Mul(decimal.NewFromFloat(p.DiscountValue)).Div(decimal.NewFromInt(100))
		if p.MaxDiscountAmount != nil {
			limit := decimal.NewFromFloat(*p.MaxDiscountAmount)
			if amount.GreaterThan(limit) {
				amount = limit
			}
		}
	case DiscountFixedAmount:
		amount = decimal.NewFromFloat(p.DiscountValue)
		if amount.GreaterThan(total) {
			amount = total
		}
	default:
		return 0
	}

	result, _ := amount.Round(2).Float64()
	return result
}

type PromoRepository interface {
	CreatePromoCode(ctx context.Context, promo *PromoCode) (*PromoCode, error)
	GetPromoCodeByID(ctx context.Context, id int) (*PromoCode, error)
	GetPromoCodeByCode(ctx context.Context, code string) (*PromoCode, error)
	ListPromoCodes(ctx context.Context) ([]PromoCode, error)
	UpdatePromoCode(ctx context.Context, id int, updates map[string]interface{}) (*PromoCode, error)
	DeletePromoCode(ctx context.Context, id int) error
	CountUserRedemptions(ctx context.Context, promoID, userID int) (int, error)
	RecordUsage(ctx context.Context, usage *PromoUsage) error
}
