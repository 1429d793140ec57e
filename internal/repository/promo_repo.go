package repository

import (
	"commerce_service/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const promoColumns = `id, code, discount_type, discount_value, min_order_amount, max_discount_amount,
       usage_limit, per_user_limit, valid_from, valid_until, is_active, usage_count, created_at, updated_at`

type postgresPromoRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresPromoRepository(db *sql.DB, logger *logrus.Logger) domain.PromoRepository {
	return &postgresPromoRepository{
		db:  db,
		log: logger,
	}
}

type promoScanner interface {
	Scan(dest ...interface{}) error
}

func scanPromoCode(row promoScanner) (*domain.PromoCode, error) {
	promo := &domain.PromoCode{}
	var (
		minOrder     sql.NullFloat64
		maxDiscount  sql.NullFloat64
		usageLimit   sql.NullInt64
		perUserLimit sql.NullInt64
	)
	err := row.Scan(
		&promo.ID,
		&promo.Code,
		&promo.DiscountType,
		&promo.DiscountValue,
		&minOrder,
		&maxDiscount,
		&usageLimit,
		&perUserLimit,
		&promo.ValidFrom,
		&promo.ValidUntil,
		&promo.IsActive,
		&promo.UsageCount,
		&promo.CreatedAt,
		&promo.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	promo.MinOrderAmount = nullFloatPtr(minOrder)
	promo.MaxDiscountAmount = nullFloatPtr(maxDiscount)
	promo.UsageLimit = nullIntPtr(usageLimit)
	promo.PerUserLimit = nullIntPtr(perUserLimit)
	return promo, nil
}

func (r *postgresPromoRepository) CreatePromoCode(ctx context.Context, promo *domain.PromoCode) (*domain.PromoCode, error) {
	query := `
        INSERT INTO promo_codes (code, discount_type, discount_value, min_order_amount, max_discount_amount,
                                 usage_limit, per_user_limit, valid_from, valid_until, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
        RETURNING id, usage_count, created_at, updated_at
    `
	err := r.db.QueryRowContext(ctx, query,
		promo.Code,
		promo.DiscountType,
		promo.DiscountValue,
		nullFloat(promo.MinOrderAmount),
		nullFloat(promo.MaxDiscountAmount),
		nullInt(promo.UsageLimit),
		nullInt(promo.PerUserLimit),
		promo.ValidFrom,
		promo.ValidUntil,
		promo.IsActive,
	).Scan(&promo.ID, &promo.UsageCount, &promo.CreatedAt, &promo.UpdatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			r.log.Warnf("Attempted to create duplicate promo code '%s'", promo.Code)
			return nil, fmt.Errorf("promo code '%s': %w", promo.Code, domain.ErrDuplicatePromoCode)
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23514" {
			r.log.Warnf("Check constraint violation for promo code '%s': %s", promo.Code, pqErr.Message)
			return nil, fmt.Errorf("promo code data constraint violation: %s", pqErr.Message)
		}
		r.log.Errorf("Failed to create promo code '%s': %v", promo.Code, err)
		return nil, fmt.Errorf("could not create promo code: %w", err)
	}
	r.log.Infof("Promo code created successfully with ID: %d, Code: %s", promo.ID, promo.Code)
	return promo, nil
}

func (r *postgresPromoRepository) GetPromoCodeByID(ctx context.Context, id int) (*domain.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE id = $1`, promoColumns)
	promo, err := scanPromoCode(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Promo code with ID %d not found", id)
			return nil, fmt.Errorf("promo code with id %d: %w", id, domain.ErrPromoNotFound)
		}
		r.log.Errorf("Failed to get promo code by ID %d: %v", id, err)
		return nil, fmt.Errorf("could not get promo code by id: %w", err)
	}
	return promo, nil
}

// GetPromoCodeByCode looks the code up case-insensitively.
func (r *postgresPromoRepository) GetPromoCodeByCode(ctx context.Context, code string) (*domain.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes WHERE LOWER(code) = LOWER($1)`, promoColumns)
	promo, err := scanPromoCode(r.db.QueryRowContext(ctx, query, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Debugf("Promo code '%s' not found", code)
			return nil, fmt.Errorf("promo code '%s': %w", code, domain.ErrPromoNotFound)
		}
		r.log.Errorf("Failed to get promo code '%s': %v", code, err)
		return nil, fmt.Errorf("could not get promo code: %w", err)
	}
	return promo, nil
}

func (r *postgresPromoRepository) ListPromoCodes(ctx context.Context) ([]domain.PromoCode, error) {
	query := fmt.Sprintf(`SELECT %s FROM promo_codes ORDER BY created_at DESC, id DESC`, promoColumns)
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		r.log.Errorf("Failed to list promo codes: %v", err)
		return nil, fmt.Errorf("could not retrieve promo codes: %w", err)
	}
	defer rows.Close()

	promos := []domain.PromoCode{}
	for rows.Next() {
		promo, err := scanPromoCode(rows)
		if err != nil {
			r.log.Errorf("Failed to scan promo code row: %v", err)
			return nil, fmt.Errorf("error scanning promo code: %w", err)
		}
		promos = append(promos, *promo)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during promo codes iteration: %v", err)
		return nil, fmt.Errorf("error iterating promo codes: %w", err)
	}

	return promos, nil
}

// UpdatePromoCode applies a partial update. Keys follow the column names; an
// unknown key is skipped with a warning.
func (r *postgresPromoRepository) UpdatePromoCode(ctx context.Context, id int, updates map[string]interface{}) (*domain.PromoCode, error) {
	if len(updates) == 0 {
		r.log.Infof("Repository: no fields provided for promo code update ID %d, returning current promo code", id)
		return r.GetPromoCodeByID(ctx, id)
	}

	setClauses := []string{}
	args := []interface{}{}
	argCounter := 1

	for key, value := range updates {
		switch key {
		case "code", "discount_type", "discount_value", "min_order_amount", "max_discount_amount",
			"usage_limit", "per_user_limit", "valid_from", "valid_until", "is_active":
		default:
			r.log.Warnf("Repository: skipping unknown field '%s' provided for promo code update ID %d", key, id)
			continue
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", key, argCounter))
		args = append(args, value)
		argCounter++
	}

	if len(setClauses) == 0 {
		r.log.Warnf("Repository: no valid known fields provided for promo code update ID %d, returning current promo code", id)
		return r.GetPromoCodeByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	query := fmt.Sprintf(
		`UPDATE promo_codes SET %s WHERE id = $%d RETURNING %s`,
		strings.Join(setClauses, ", "), argCounter, promoColumns,
	)
	args = append(args, id)

	promo, err := scanPromoCode(r.db.QueryRowContext(ctx, query, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Promo code with ID %d not found for update", id)
			return nil, fmt.Errorf("promo code with id %d: %w", id, domain.ErrPromoNotFound)
		}
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			r.log.Warnf("Promo code update for ID %d collides with an existing code", id)
			return nil, fmt.Errorf("promo code update: %w", domain.ErrDuplicatePromoCode)
		}
		r.log.Errorf("Failed to update promo code ID %d: %v", id, err)
		return nil, fmt.Errorf("could not update promo code: %w", err)
	}

	r.log.Infof("Promo code %d updated successfully.", promo.ID)
	return promo, nil
}

func (r *postgresPromoRepository) DeletePromoCode(ctx context.Context, id int) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM promo_codes WHERE id = $1`, id)
	if err != nil {
		r.log.Errorf("Failed to delete promo code ID %d: %v", id, err)
		return fmt.Errorf("could not delete promo code: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		r.log.Errorf("Failed to read rows affected deleting promo code ID %d: %v", id, err)
		return fmt.Errorf("could not confirm promo code deletion: %w", err)
	}
	if affected == 0 {
		r.log.Warnf("Promo code with ID %d not found for deletion", id)
		return fmt.Errorf("promo code with id %d: %w", id, domain.ErrPromoNotFound)
	}

	r.log.Infof("Promo code %d deleted successfully.", id)
	return nil
}

func (r *postgresPromoRepository) CountUserRedemptions(ctx context.Context, promoID, userID int) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2`
	if err := r.db.QueryRowContext(ctx, query, promoID, userID).Scan(&count); err != nil {
		r.log.Errorf("Failed to count redemptions of promo %d by user %d: %v", promoID, userID, err)
		return 0, fmt.Errorf("could not count promo redemptions: %w", err)
	}
	return count, nil
}

// RecordUsage inserts the usage row and increments the promo's usage counter
// in one short transaction; both writes commit or roll back together.
func (r *postgresPromoRepository) RecordUsage(ctx context.Context, usage *domain.PromoUsage) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Errorf("Failed to begin promo usage transaction: %v", err)
		return fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Errorf("Failed to rollback promo usage transaction: %v (original error: %v)", rbErr, err)
			}
		}
	}()

	var orderID, userID sql.NullInt64
	if usage.OrderID != nil {
		orderID = sql.NullInt64{Int64: int64(*usage.OrderID), Valid: true}
	}
	if usage.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*usage.UserID), Valid: true}
	}

	insertQuery := `
        INSERT INTO promo_code_usages (promo_code_id, order_id, user_id, discount_applied)
        VALUES ($1, $2, $3, $4)
        RETURNING id, used_at
    `
	err = tx.QueryRowContext(ctx, insertQuery, usage.PromoCodeID, orderID, userID, usage.DiscountApplied).
		Scan(&usage.ID, &usage.UsedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23503" {
			r.log.Warnf("Attempted to record usage for non-existent promo %d", usage.PromoCodeID)
			err = fmt.Errorf("promo code with id %d: %w", usage.PromoCodeID, domain.ErrPromoNotFound)
			return err
		}
		r.log.Errorf("Failed to insert usage row for promo %d: %v", usage.PromoCodeID, err)
		err = fmt.Errorf("could not record promo usage: %w", err)
		return err
	}

	incrementQuery := `UPDATE promo_codes SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`
	if _, err = tx.ExecContext(ctx, incrementQuery, usage.PromoCodeID); err != nil {
		r.log.Errorf("Failed to increment usage counter for promo %d: %v", usage.PromoCodeID, err)
		err = fmt.Errorf("could not increment promo usage counter: %w", err)
		return err
	}

	if err = tx.Commit(); err != nil {
		r.log.Errorf("Failed to commit promo usage transaction for promo %d: %v", usage.PromoCodeID, err)
		return fmt.Errorf("failed to commit promo usage transaction: %w", err)
	}

	r.log.Infof("Usage recorded for promo %d (discount: %.2f)", usage.PromoCodeID, usage.DiscountApplied)
	return nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
