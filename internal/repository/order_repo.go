package repository

import (
	"commerce_service/internal/domain"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type postgresOrderRepository struct {
	db  *sql.DB
	log *logrus.Logger
}

func NewPostgresOrderRepository(db *sql.DB, logger *logrus.Logger) domain.OrderRepository {
	return &postgresOrderRepository{
		db:  db,
		log: logger,
	}
}

// PlaceOrder runs the whole placement as one transaction: insert the order
// header, lock each product row, snapshot name and price into order_items,
// decrement inventory, optionally redeem a promo code, commit. Any failure at
// any step rolls the entire transaction back.
func (r *postgresOrderRepository) PlaceOrder(ctx context.Context, order *domain.Order, lines []domain.OrderLine, promo *domain.PromoClaim) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Errorf("Failed to begin order transaction: %v", err)
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			r.log.Error("Recovered from panic, rolling back order transaction")
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			r.log.Warnf("Rolling back order transaction due to error: %v", err)
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Errorf("Failed to rollback order transaction: %v", rbErr)
			}
		}
	}()

	order.Status = domain.StatusPending

	headerQuery := `
        INSERT INTO orders (customer_name, customer_email, customer_phone, customer_address, notes, total, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
        RETURNING id, status, created_at, updated_at
    `
	err = tx.QueryRowContext(ctx, headerQuery,
		order.Customer.Name,
		order.Customer.Email,
		nullString(order.Customer.Phone),
		order.Customer.Address,
		nullString(order.Customer.Notes),
		order.Total,
		order.Status,
	).Scan(
		&order.ID,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		r.log.Errorf("Failed to insert order header for %s: %v", order.Customer.Email, err)
		return nil, fmt.Errorf("could not create order entry: %w", err)
	}
	r.log.Infof("Order entry created with ID: %d for customer: %s", order.ID, order.Customer.Email)

	// Locks are taken in ascending product id order so that two concurrent
	// orders touching the same pair of products cannot deadlock.
	domain.SortLines(lines)

	lockQuery := `
        SELECT name, price, inventory
        FROM products
        WHERE id = $1
        FOR UPDATE
    `
	itemQuery := `
        INSERT INTO order_items (order_id, product_id, product_name, price, quantity)
        VALUES ($1, $2, $3, $4, $5)
    `
	decrementQuery := `
        UPDATE products
        SET inventory = inventory - $1, updated_at = NOW()
        WHERE id = $2
    `

	order.Items = make([]domain.OrderItem, 0, len(lines))
	for _, line := range lines {
		var (
			name      string
			price     float64
			inventory int
		)
		err = tx.QueryRowContext(ctx, lockQuery, line.ProductID).Scan(&name, &price, &inventory)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				r.log.Warnf("Product %d not found while placing order %d", line.ProductID, order.ID)
				err = fmt.Errorf("product %d: %w", line.ProductID, domain.ErrProductNotFound)
				return nil, err
			}
			r.log.Errorf("Failed to lock product %d for order %d: %v", line.ProductID, order.ID, err)
			err = fmt.Errorf("could not lock product %d: %w", line.ProductID, err)
			return nil, err
		}

		if inventory < line.Quantity {
			r.log.Warnf("Insufficient inventory for product %d (requested: %d, available: %d)", line.ProductID, line.Quantity, inventory)
			err = fmt.Errorf("product %d (requested: %d, available: %d): %w", line.ProductID, line.Quantity, inventory, domain.ErrInsufficientInventory)
			return nil, err
		}

		if _, err = tx.ExecContext(ctx, itemQuery, order.ID, line.ProductID, name, price, line.Quantity); err != nil {
			r.log.Errorf("Failed to insert order item (product %d) for order %d: %v", line.ProductID, order.ID, err)
			err = fmt.Errorf("could not create order item (product %d): %w", line.ProductID, err)
			return nil, err
		}

		if _, err = tx.ExecContext(ctx, decrementQuery, line.Quantity, line.ProductID); err != nil {
			r.log.Errorf("Failed to decrement inventory for product %d (order %d): %v", line.ProductID, order.ID, err)
			err = fmt.Errorf("could not decrement inventory for product %d: %w", line.ProductID, err)
			return nil, err
		}

		order.Items = append(order.Items, domain.OrderItem{
			ProductID:   line.ProductID,
			ProductName: name,
			Price:       price,
			Quantity:    line.Quantity,
		})
		r.log.Debugf("Reserved %d x product %d for order %d", line.Quantity, line.ProductID, order.ID)
	}

	if promo != nil {
		if err = r.redeemPromoTx(ctx, tx, promo, order); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		r.log.Errorf("Failed to commit order transaction for order %d: %v", order.ID, err)
		return nil, fmt.Errorf("failed to commit order transaction: %w", err)
	}

	r.log.Infof("Order %d created successfully with %d items.", order.ID, len(order.Items))
	return order, nil
}

// redeemPromoTx locks the promo row, re-checks eligibility against the order
// total, inserts the usage row and bumps the counter, all on the caller's
// transaction. Eligibility, inventory decrement and the usage counter then
// commit or roll back as one unit.
func (r *postgresOrderRepository) redeemPromoTx(ctx context.Context, tx *sql.Tx, claim *domain.PromoClaim, order *domain.Order) error {
	promoQuery := `
        SELECT id, code, discount_type, discount_value, min_order_amount, max_discount_amount,
               usage_limit, per_user_limit, valid_from, valid_until, is_active, usage_count
        FROM promo_codes
        WHERE LOWER(code) = LOWER($1)
        FOR UPDATE
    `
	promo := &domain.PromoCode{}
	var (
		minOrder     sql.NullFloat64
		maxDiscount  sql.NullFloat64
		usageLimit   sql.NullInt64
		perUserLimit sql.NullInt64
	)
	err := tx.QueryRowContext(ctx, promoQuery, claim.Code).Scan(
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
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Promo code '%s' not found while placing order %d", claim.Code, order.ID)
			return fmt.Errorf("promo code '%s': %w", claim.Code, domain.ErrPromoNotFound)
		}
		r.log.Errorf("Failed to lock promo code '%s' for order %d: %v", claim.Code, order.ID, err)
		return fmt.Errorf("could not lock promo code: %w", err)
	}
	promo.MinOrderAmount = nullFloatPtr(minOrder)
	promo.MaxDiscountAmount = nullFloatPtr(maxDiscount)
	promo.UsageLimit = nullIntPtr(usageLimit)
	promo.PerUserLimit = nullIntPtr(perUserLimit)

	userRedemptions := 0
	if claim.UserID != nil && promo.PerUserLimit != nil {
		countQuery := `SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = $1 AND user_id = $2`
		if err := tx.QueryRowContext(ctx, countQuery, promo.ID, *claim.UserID).Scan(&userRedemptions); err != nil {
			r.log.Errorf("Failed to count redemptions of promo %d by user %d: %v", promo.ID, *claim.UserID, err)
			return fmt.Errorf("could not count promo redemptions: %w", err)
		}
	}

	if err := promo.Eligible(order.Total, userRedemptions, time.Now()); err != nil {
		r.log.Warnf("Promo code '%s' rejected for order %d: %v", promo.Code, order.ID, err)
		return err
	}

	discount := promo.Discount(order.Total)

	var userID sql.NullInt64
	if claim.UserID != nil {
		userID = sql.NullInt64{Int64: int64(*claim.UserID), Valid: true}
	}

	usageQuery := `
        INSERT INTO promo_code_usages (promo_code_id, order_id, user_id, discount_applied)
        VALUES ($1, $2, $3, $4)
    `
	if _, err := tx.ExecContext(ctx, usageQuery, promo.ID, order.ID, userID, discount); err != nil {
		r.log.Errorf("Failed to record usage of promo %d for order %d: %v", promo.ID, order.ID, err)
		return fmt.Errorf("could not record promo usage: %w", err)
	}

	incrementQuery := `UPDATE promo_codes SET usage_count = usage_count + 1, updated_at = NOW() WHERE id = $1`
	if _, err := tx.ExecContext(ctx, incrementQuery, promo.ID); err != nil {
		r.log.Errorf("Failed to increment usage counter of promo %d for order %d: %v", promo.ID, order.ID, err)
		return fmt.Errorf("could not increment promo usage counter: %w", err)
	}

	r.log.Infof("Promo code '%s' redeemed for order %d (discount: %.2f)", promo.Code, order.ID, discount)
	return nil
}

func (r *postgresOrderRepository) GetOrderByID(ctx context.Context, id int) (*domain.Order, error) {
	order := &domain.Order{}
	var phone, notes sql.NullString
	orderQuery := `
        SELECT id, customer_name, customer_email, customer_phone, customer_address, notes, total, status, created_at, updated_at
        FROM orders
        WHERE id = $1
    `
	err := r.db.QueryRowContext(ctx, orderQuery, id).Scan(
		&order.ID,
		&order.Customer.Name,
		&order.Customer.Email,
		&phone,
		&order.Customer.Address,
		&notes,
		&order.Total,
		&order.Status,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Order with ID %d not found", id)
			return nil, fmt.Errorf("order with id %d: %w", id, domain.ErrOrderNotFound)
		}
		r.log.Errorf("Failed to get order by ID %d: %v", id, err)
		return nil, fmt.Errorf("could not retrieve order: %w", err)
	}
	order.Customer.Phone = phone.String
	order.Customer.Notes = notes.String

	items, err := r.getOrderItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	r.log.Debugf("Order %d retrieved successfully with %d items", order.ID, len(order.Items))
	return order, nil
}

func (r *postgresOrderRepository) getOrderItems(ctx context.Context, orderID int) ([]domain.OrderItem, error) {
	itemsQuery := `
        SELECT product_id, product_name, price, quantity
        FROM order_items
        WHERE order_id = $1
        ORDER BY id
    `
	rows, err := r.db.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		r.log.Errorf("Failed to query order items for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("could not retrieve order items: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
			r.log.Errorf("Failed to scan order item row for order ID %d: %v", orderID, err)
			return nil, fmt.Errorf("error scanning order item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during order items iteration for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("error iterating order items: %w", err)
	}

	return items, nil
}

// ListOrders returns all orders newest-first, each with its items. When
// customerEmail is non-empty the listing is scoped to that customer.
func (r *postgresOrderRepository) ListOrders(ctx context.Context, customerEmail string) ([]domain.Order, error) {
	ordersQuery := `
        SELECT id, customer_name, customer_email, customer_phone, customer_address, notes, total, status, created_at, updated_at
        FROM orders
        WHERE ($1 = '' OR customer_email = $1)
        ORDER BY created_at DESC, id DESC
    `
	rows, err := r.db.QueryContext(ctx, ordersQuery, customerEmail)
	if err != nil {
		r.log.Errorf("Failed to list orders (customer: %q): %v", customerEmail, err)
		return nil, fmt.Errorf("could not retrieve orders: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	orderIDs := []int{}

	for rows.Next() {
		var order domain.Order
		var phone, notes sql.NullString
		if err := rows.Scan(
			&order.ID,
			&order.Customer.Name,
			&order.Customer.Email,
			&phone,
			&order.Customer.Address,
			&notes,
			&order.Total,
			&order.Status,
			&order.CreatedAt,
			&order.UpdatedAt,
		); err != nil {
			r.log.Errorf("Failed to scan order row: %v", err)
			return nil, fmt.Errorf("error scanning order data: %w", err)
		}
		order.Customer.Phone = phone.String
		order.Customer.Notes = notes.String
		orders = append(orders, order)
		orderIDs = append(orderIDs, order.ID)
	}
	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during orders iteration: %v", err)
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}

	if len(orders) == 0 {
		return []domain.Order{}, nil
	}

	itemsQuery := `
        SELECT order_id, product_id, product_name, price, quantity
        FROM order_items
        WHERE order_id = ANY($1::int[])
        ORDER BY order_id, id
    `
	itemRows, err := r.db.QueryContext(ctx, itemsQuery, pq.Array(orderIDs))
	if err != nil {
		r.log.Errorf("Failed to query items for orders %v: %v", orderIDs, err)
		return nil, fmt.Errorf("could not retrieve order items for list: %w", err)
	}
	defer itemRows.Close()

	itemsMap := make(map[int][]domain.OrderItem)
	for itemRows.Next() {
		var item domain.OrderItem
		var orderID int
		if err := itemRows.Scan(&orderID, &item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
			r.log.Errorf("Failed to scan order item row during multi-order fetch: %v", err)
			return nil, fmt.Errorf("error scanning order item data for list: %w", err)
		}
		itemsMap[orderID] = append(itemsMap[orderID], item)
	}
	if err = itemRows.Err(); err != nil {
		r.log.Errorf("Error during multi-order items iteration: %v", err)
		return nil, fmt.Errorf("error iterating order items for list: %w", err)
	}

	for i := range orders {
		if items, ok := itemsMap[orders[i].ID]; ok {
			orders[i].Items = items
		} else {
			orders[i].Items = []domain.OrderItem{}
		}
	}

	r.log.Debugf("Retrieved %d orders (customer: %q)", len(orders), customerEmail)
	return orders, nil
}

// UpdateOrderStatus transitions an order's status and touches its updated
// timestamp. The current row is locked first so the transition check and the
// write see the same state.
func (r *postgresOrderRepository) UpdateOrderStatus(ctx context.Context, id int, status domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		r.log.Errorf("Failed to begin transaction for status update: %v", err)
		return nil, fmt.Errorf("could not start transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		} else if err != nil {
			if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
				r.log.Errorf("UpdateOrderStatus: failed to rollback transaction: %v (original error: %v)", rbErr, err)
			}
		}
	}()

	var current domain.OrderStatus
	err = tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE id = $1 FOR UPDATE`, id).Scan(&current)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.Warnf("Order with ID %d not found for status update", id)
			err = fmt.Errorf("order with id %d: %w", id, domain.ErrOrderNotFound)
			return nil, err
		}
		r.log.Errorf("Failed to lock order %d for status update: %v", id, err)
		err = fmt.Errorf("could not lock order for status update: %w", err)
		return nil, err
	}

	if current != status && !domain.CanTransition(current, status) {
		r.log.Warnf("Rejected status transition '%s' -> '%s' for order %d", current, status, id)
		err = &domain.InvalidTransitionError{From: current, To: status}
		return nil, err
	}

	updateQuery := `
        UPDATE orders
        SET status = $1, updated_at = NOW()
        WHERE id = $2
        RETURNING id, customer_name, customer_email, customer_phone, customer_address, notes, total, status, created_at, updated_at
    `
	updatedOrder := &domain.Order{}
	var phone, notes sql.NullString
	err = tx.QueryRowContext(ctx, updateQuery, status, id).Scan(
		&updatedOrder.ID,
		&updatedOrder.Customer.Name,
		&updatedOrder.Customer.Email,
		&phone,
		&updatedOrder.Customer.Address,
		&notes,
		&updatedOrder.Total,
		&updatedOrder.Status,
		&updatedOrder.CreatedAt,
		&updatedOrder.UpdatedAt,
	)
	if err != nil {
		r.log.Errorf("Failed to update status for order ID %d: %v", id, err)
		err = fmt.Errorf("could not update order status: %w", err)
		return nil, err
	}
	updatedOrder.Customer.Phone = phone.String
	updatedOrder.Customer.Notes = notes.String

	items, err := r.getOrderItemsTx(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	updatedOrder.Items = items

	if err = tx.Commit(); err != nil {
		r.log.Errorf("Failed to commit status update for order %d: %v", id, err)
		return nil, fmt.Errorf("failed to commit status update transaction: %w", err)
	}

	r.log.Infof("Order %d status updated to '%s'.", updatedOrder.ID, updatedOrder.Status)
	return updatedOrder, nil
}

func (r *postgresOrderRepository) getOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int) ([]domain.OrderItem, error) {
	itemsQuery := `
        SELECT product_id, product_name, price, quantity
        FROM order_items
        WHERE order_id = $1
        ORDER BY id
    `
	rows, err := tx.QueryContext(ctx, itemsQuery, orderID)
	if err != nil {
		r.log.Errorf("Failed to query order items within tx for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("could not retrieve order items within tx: %w", err)
	}
	defer rows.Close()

	items := []domain.OrderItem{}
	for rows.Next() {
		var item domain.OrderItem
		if err := rows.Scan(&item.ProductID, &item.ProductName, &item.Price, &item.Quantity); err != nil {
			r.log.Errorf("Failed to scan order item row within tx for order ID %d: %v", orderID, err)
			return nil, fmt.Errorf("error scanning order item within tx: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		r.log.Errorf("Error during order items iteration within tx for order ID %d: %v", orderID, err)
		return nil, fmt.Errorf("error iterating order items within tx: %w", err)
	}

	return items, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func nullIntPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	i := int(v.Int64)
	return &i
}
