package usecase

import (
	"commerce_service/internal/domain"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

type PromoUseCase interface {
	Validate(ctx context.Context, code string, cartTotal float64, userID *int) (*PromoValidation, error)
	RecordUsage(ctx context.Context, usage *domain.PromoUsage) error
	CreatePromoCode(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error)
	GetPromoCodeByID(ctx context.Context, id int) (*domain.PromoCode, error)
	ListPromoCodes(ctx context.Context) ([]domain.PromoCode, error)
	UpdatePromoCode(ctx context.Context, id int, updates map[string]interface{}) (*domain.PromoCode, error)
	DeletePromoCode(ctx context.Context, id int) error
}

// PromoValidation is the outcome of a validation call. Business-rule failures
// land here as Valid=false with a human-readable reason; only storage errors
// propagate as errors.
type PromoValidation struct {
	Valid          bool
	PromoCode      *domain.PromoCode
	DiscountAmount float64
	Reason         string
}

var _ PromoUseCase = (*promoUseCase)(nil)

type promoUseCase struct {
	promoRepo domain.PromoRepository
	log       *logrus.Logger
}

func NewPromoUseCase(repo domain.PromoRepository, logger *logrus.Logger) PromoUseCase {
	return &promoUseCase{
		promoRepo: repo,
		log:       logger,
	}
}

// Validate is read-only: it never records usage. Redemption is either folded
// into the order transaction or done explicitly via RecordUsage.
func (uc *promoUseCase) Validate(ctx context.Context, code string, cartTotal float64, userID *int) (*PromoValidation, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return &PromoValidation{Valid: false, Reason: "Promo code is required"}, nil
	}
	if cartTotal < 0 {
		return nil, errors.New("cart total cannot be negative")
	}

	promo, err := uc.promoRepo.GetPromoCodeByCode(ctx, code)
	if err != nil {
		if errors.Is(err, domain.ErrPromoNotFound) {
			uc.log.Debugf("Use Case: Promo code '%s' not found during validation", code)
			return &PromoValidation{Valid: false, Reason: "Invalid promo code"}, nil
		}
		uc.log.Errorf("Use Case: Failed to look up promo code '%s': %v", code, err)
		return nil, err
	}

	userRedemptions := 0
	if userID != nil && promo.PerUserLimit != nil {
		userRedemptions, err = uc.promoRepo.CountUserRedemptions(ctx, promo.ID, *userID)
		if err != nil {
			uc.log.Errorf("Use Case: Failed to count redemptions of promo '%s' by user %d: %v", promo.Code, *userID, err)
			return nil, err
		}
	}

	if err := promo.Eligible(cartTotal, userRedemptions, time.Now()); err != nil {
		var ineligible *domain.IneligiblePromoError
		if errors.As(err, &ineligible) {
			uc.log.Infof("Use Case: Promo code '%s' ineligible for cart total %.2f: %s", promo.Code, cartTotal, ineligible.Reason)
			return &PromoValidation{Valid: false, Reason: ineligible.Reason}, nil
		}
		return nil, err
	}

	discount := promo.Discount(cartTotal)
	uc.log.Infof("Use Case: Promo code '%s' valid for cart total %.2f (discount: %.2f)", promo.Code, cartTotal, discount)
	return &PromoValidation{
		Valid:          true,
		PromoCode:      promo,
		DiscountAmount: discount,
	}, nil
}

func (uc *promoUseCase) RecordUsage(ctx context.Context, usage *domain.PromoUsage) error {
	if usage.PromoCodeID <= 0 {
		return errors.New("invalid promo code ID")
	}
	if usage.DiscountApplied < 0 {
		return errors.New("discount applied cannot be negative")
	}
	if err := uc.promoRepo.RecordUsage(ctx, usage); err != nil {
		uc.log.Warnf("Use Case: Failed to record usage for promo %d: %v", usage.PromoCodeID, err)
		return err
	}
	return nil
}

func (uc *promoUseCase) CreatePromoCode(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	if err := validatePromoCode(promo); err != nil {
		return nil, err
	}

	created, err := uc.promoRepo.CreatePromoCode(ctx, promo)
	if err != nil {
		uc.log.Warnf("Use Case: Repository failed to create promo code '%s': %v", promo.Code, err)
		return nil, err
	}
	uc.log.Infof("Use Case: Promo code '%s' created with ID %d", created.Code, created.ID)
	return created, nil
}

func (uc *promoUseCase) GetPromoCodeByID(ctx context.Context, id int) (*domain.PromoCode, error) {
	if id <= 0 {
		return nil, errors.New("invalid promo code ID")
	}
	return uc.promoRepo.GetPromoCodeByID(ctx, id)
}

func (uc *promoUseCase) ListPromoCodes(ctx context.Context) ([]domain.PromoCode, error) {
	return uc.promoRepo.ListPromoCodes(ctx)
}

func (uc *promoUseCase) UpdatePromoCode(ctx context.Context, id int, updates map[string]interface{}) (*domain.PromoCode, error) {
	if id <= 0 {
		return nil, errors.New("invalid promo code ID for update")
	}
	if t, ok := updates["discount_type"]; ok {
		if dt, ok := t.(string); !ok || !domain.IsValidDiscountType(domain.DiscountType(dt)) {
			return nil, fmt.Errorf("invalid discount type: %v", t)
		}
	}
	if v, ok := updates["discount_value"]; ok {
		if value, ok := v.(float64); !ok || value <= 0 {
			return nil, fmt.Errorf("discount value must be positive")
		}
	}
	return uc.promoRepo.UpdatePromoCode(ctx, id, updates)
}

func (uc *promoUseCase) DeletePromoCode(ctx context.Context, id int) error {
	if id <= 0 {
		return errors.New("invalid promo code ID for deletion")
	}
	return uc.promoRepo.DeletePromoCode(ctx, id)
}

func validatePromoCode(promo *domain.PromoCode) error {
	if strings.TrimSpace(promo.Code) == "" {
		return errors.New("promo code cannot be empty")
	}
	if !domain.IsValidDiscountType(promo.DiscountType) {
		return fmt.Errorf("invalid discount type: %s", promo.DiscountType)
	}
	if promo.DiscountValue <= 0 {
		return errors.New("discount value must be positive")
	}
	if promo.DiscountType == domain.DiscountPercentage && promo.DiscountValue > 100 {
		return errors.New("percentage discount cannot exceed 100")
	}
	if promo.MinOrderAmount != nil && *promo.MinOrderAmount < 0 {
		return errors.New("minimum order amount cannot be negative")
	}
	if promo.MaxDiscountAmount != nil && *promo.MaxDiscountAmount <= 0 {
		return errors.New("maximum discount amount must be positive")
	}
	if promo.UsageLimit != nil && *promo.UsageLimit <= 0 {
		return errors.New("usage limit must be positive")
	}
	if promo.PerUserLimit != nil && *promo.PerUserLimit <= 0 {
		return errors.New("per-user limit must be positive")
	}
	if promo.ValidFrom.IsZero() || promo.ValidUntil.IsZero() {
		return errors.New("validity window is required")
	}
	if !promo.ValidUntil.After(promo.ValidFrom) {
		return errors.New("validity window must end after it starts")
	}
	return nil
}
