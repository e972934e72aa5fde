package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
)

func Create(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	INSERT INTO orders
		(order_id, first_name, last_name, email, phone, service_id, tier, total_amount,
		status, payment_status, checkout_session_id, target_position, industry,
		special_requirements, uploaded_resume, uploaded_cover, uploaded_job_desc,
		completed_resume, completed_cover, referral_code, referral_discount,
		completed_at, created_at, updated_at)
	VALUES
		(:order_id, :first_name, :last_name, :email, :phone, :service_id, :tier, :total_amount,
		:status, :payment_status, :checkout_session_id, :target_position, :industry,
		:special_requirements, :uploaded_resume, :uploaded_cover, :uploaded_job_desc,
		:completed_resume, :completed_cover, :referral_code, :referral_discount,
		:completed_at, :created_at, :updated_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

// Update rewrites the mutable part of an order row. created_at and the
// identity columns never change.
func Update(ctx context.Context, db sqlx.ExtContext, ord Order) error {
	const q = `
	UPDATE orders SET
		total_amount = :total_amount,
		status = :status,
		payment_status = :payment_status,
		checkout_session_id = :checkout_session_id,
		completed_resume = :completed_resume,
		completed_cover = :completed_cover,
		referral_code = :referral_code,
		referral_discount = :referral_discount,
		completed_at = :completed_at,
		updated_at = :updated_at
	WHERE order_id = :order_id`

	if _, err := sqlx.NamedExecContext(ctx, db, q, ord); err != nil {
		return fmt.Errorf("updating order[%s]: %w", ord.ID, err)
	}
	return nil
}

func Fetch(ctx context.Context, db sqlx.ExtContext, id string) (Order, error) {
	const q = `SELECT * FROM orders WHERE order_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order[%s]: %w", id, err)
	}
	return ord, nil
}

// FetchBySession finds the order bound to a checkout session, the key the
// gateway hands back on its asynchronous callbacks.
func FetchBySession(ctx context.Context, db sqlx.ExtContext, sessionID string) (Order, error) {
	const q = `SELECT * FROM orders WHERE checkout_session_id = $1`

	var ord Order
	if err := sqlx.GetContext(ctx, db, &ord, q, sessionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, fmt.Errorf("selecting order bound to session[%s]: %w", sessionID, err)
	}
	return ord, nil
}

func FetchAll(ctx context.Context, db sqlx.ExtContext, status string) ([]Order, error) {
	q := `SELECT * FROM orders ORDER BY created_at DESC`
	args := []any{}

	if status != "" {
		q = `SELECT * FROM orders WHERE status = $1 ORDER BY created_at DESC`
		args = append(args, status)
	}

	orders := []Order{}
	if err := sqlx.SelectContext(ctx, db, &orders, q, args...); err != nil {
		return nil, fmt.Errorf("selecting orders: %w", err)
	}
	return orders, nil
}

func CreateTracking(ctx context.Context, db sqlx.ExtContext, tr Tracking) error {
	const q = `
	INSERT INTO order_tracking (tracking_id, order_id, status, description, created_by, notified, created_at)
	VALUES (:tracking_id, :order_id, :status, :description, :created_by, :notified, :created_at)`

	if _, err := sqlx.NamedExecContext(ctx, db, q, tr); err != nil {
		return fmt.Errorf("inserting tracking entry: %w", err)
	}
	return nil
}

func FetchTracking(ctx context.Context, db sqlx.ExtContext, orderID string) ([]Tracking, error) {
	const q = `SELECT * FROM order_tracking WHERE order_id = $1 ORDER BY created_at DESC`

	entries := []Tracking{}
	if err := sqlx.SelectContext(ctx, db, &entries, q, orderID); err != nil {
		return nil, fmt.Errorf("selecting tracking for order[%s]: %w", orderID, err)
	}
	return entries, nil
}

// Stats summarizes the dashboard counters: orders per status and revenue
// over paid orders.
type Stats struct {
	TotalOrders      int             `json:"totalOrders" db:"total_orders"`
	PendingOrders    int             `json:"pendingOrders" db:"pending_orders"`
	InProgressOrders int             `json:"inProgressOrders" db:"in_progress_orders"`
	CompletedOrders  int             `json:"completedOrders" db:"completed_orders"`
	TotalRevenue     decimal.Decimal `json:"totalRevenue" db:"total_revenue"`
}

func FetchStats(ctx context.Context, db sqlx.ExtContext) (Stats, error) {
	const q = `
	SELECT
		count(*) AS total_orders,
		count(*) FILTER (WHERE status = 'pending') AS pending_orders,
		count(*) FILTER (WHERE status = 'in_progress') AS in_progress_orders,
		count(*) FILTER (WHERE status = 'completed') AS completed_orders,
		coalesce(sum(total_amount) FILTER (WHERE payment_status = 'paid'), 0) AS total_revenue
	FROM orders`

	var st Stats
	if err := sqlx.GetContext(ctx, db, &st, q); err != nil {
		return Stats{}, fmt.Errorf("selecting order stats: %w", err)
	}
	return st, nil
}
