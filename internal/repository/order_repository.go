package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cardbazaar/order-service/internal/domain"
	"github.com/google/uuid"
)

// OrderRepository persists orders in Postgres. Every mutation is a single
// conditional UPDATE scoped to one order id; zero rows affected means the
// precondition no longer holds and surfaces as domain.ErrConflict so the
// caller can re-read and decide.
type OrderRepository struct {
	db *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `
	id, buyer_id, seller_id, listing_id, listing_title, seller_name, amount,
	is_pickup, status, payment_status,
	pickup_code, pickup_token, pickup_code_created_at, pickup_code_expires_at,
	seller_pickup_initiated, pickup_completed, pickup_completed_at,
	has_dispute, refund_status, review_submitted, cancelled_reason,
	auto_completion_eligible_at, created_at, updated_at
`

func (r *OrderRepository) GetOrderByID(ctx context.Context, orderID uuid.UUID) (*domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, orderID))
}

// GetOrderByCredential resolves an order from a presented pickup code or
// token. Completed orders remain resolvable through the credential they were
// completed with, so a replayed code can be answered with AlreadyCompleted
// instead of a bare not-found.
func (r *OrderRepository) GetOrderByCredential(ctx context.Context, credential string) (*domain.Order, error) {
	query := `
		SELECT ` + orderColumns + `
		FROM orders
		WHERE pickup_code = $1 OR pickup_token = $1
		   OR (pickup_completed AND (last_pickup_code = $1 OR last_pickup_token = $1))
		ORDER BY updated_at DESC
		LIMIT 1
	`
	return r.scanOrder(r.db.QueryRowContext(ctx, query, credential))
}

// SetPickupCredential installs a new credential, replacing any previous one
// atomically. Precondition: pickup not completed and status still allows
// credential issuance.
func (r *OrderRepository) SetPickupCredential(ctx context.Context, orderID uuid.UUID, code, token string, createdAt, expiresAt time.Time) error {
	query := `
		UPDATE orders
		SET pickup_code = $2, pickup_token = $3,
			pickup_code_created_at = $4, pickup_code_expires_at = $5,
			seller_pickup_initiated = TRUE, updated_at = $4
		WHERE id = $1
		  AND pickup_completed = FALSE
		  AND status IN ('pending', 'paid', 'awaiting_shipping')
	`
	return r.execConditional(ctx, query, orderID, code, token, createdAt, expiresAt)
}

// CompletePickup commits the pickup hand-off. Precondition: the credential
// just verified is still the active one and nobody completed first. The
// active credential moves to the last_* audit columns so replays stay
// distinguishable.
func (r *OrderRepository) CompletePickup(ctx context.Context, orderID uuid.UUID, token string, completedAt time.Time) error {
	query := `
		UPDATE orders
		SET status = 'completed', pickup_completed = TRUE, pickup_completed_at = $3,
			last_pickup_code = pickup_code, last_pickup_token = pickup_token,
			pickup_code = NULL, pickup_token = NULL,
			pickup_code_created_at = NULL, pickup_code_expires_at = NULL,
			updated_at = $3
		WHERE id = $1
		  AND pickup_completed = FALSE
		  AND pickup_token = $2
	`
	return r.execConditional(ctx, query, orderID, token, completedAt)
}

// CompleteOrder moves the order to completed without the pickup flag (buyer
// fallback completion or delivery confirmation). Any outstanding credential
// is cleared so it cannot be replayed against a finished order.
func (r *OrderRepository) CompleteOrder(ctx context.Context, orderID uuid.UUID, expected domain.OrderStatus, completedAt time.Time) error {
	query := `
		UPDATE orders
		SET status = 'completed',
			last_pickup_code = COALESCE(pickup_code, last_pickup_code),
			last_pickup_token = COALESCE(pickup_token, last_pickup_token),
			pickup_code = NULL, pickup_token = NULL,
			pickup_code_created_at = NULL, pickup_code_expires_at = NULL,
			updated_at = $3
		WHERE id = $1 AND status = $2
	`
	return r.execConditional(ctx, query, orderID, string(expected), completedAt)
}

// UpdateStatus advances the shipping chain one step. Precondition: status
// still equals the value the caller validated against.
func (r *OrderRepository) UpdateStatus(ctx context.Context, orderID uuid.UUID, from, to domain.OrderStatus, at time.Time) error {
	query := `
		UPDATE orders
		SET status = $3, updated_at = $4
		WHERE id = $1 AND status = $2
	`
	return r.execConditional(ctx, query, orderID, string(from), string(to), at)
}

func (r *OrderRepository) CancelOrder(ctx context.Context, orderID uuid.UUID, expected domain.OrderStatus, reason string, at time.Time) error {
	query := `
		UPDATE orders
		SET status = 'cancelled', cancelled_reason = $3,
			pickup_code = NULL, pickup_token = NULL,
			pickup_code_created_at = NULL, pickup_code_expires_at = NULL,
			updated_at = $4
		WHERE id = $1 AND status = $2
	`
	return r.execConditional(ctx, query, orderID, string(expected), reason, at)
}

// MarkPaid records the payment gateway's confirmation and anchors the
// auto-completion window to the confirmation instant.
func (r *OrderRepository) MarkPaid(ctx context.Context, orderID uuid.UUID, paidAt time.Time) error {
	query := `
		UPDATE orders
		SET payment_status = 'paid', status = 'paid',
			auto_completion_eligible_at = $2, updated_at = $2
		WHERE id = $1
		  AND status = 'pending'
		  AND payment_status = 'awaiting_payment'
	`
	return r.execConditional(ctx, query, orderID, paidAt)
}

func (r *OrderRepository) execConditional(ctx context.Context, query string, args ...interface{}) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("order update error: %v", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return domain.ErrConflict
	}

	return nil
}

func (r *OrderRepository) scanOrder(row *sql.Row) (*domain.Order, error) {
	order := &domain.Order{}
	var (
		pickupCode          sql.NullString
		pickupToken         sql.NullString
		pickupCodeCreatedAt sql.NullTime
		pickupCodeExpiresAt sql.NullTime
		pickupCompletedAt   sql.NullTime
		cancelledReason     sql.NullString
		autoCompletionAt    sql.NullTime
	)

	err := row.Scan(
		&order.ID,
		&order.BuyerID,
		&order.SellerID,
		&order.ListingID,
		&order.ListingTitle,
		&order.SellerName,
		&order.Amount,
		&order.IsPickup,
		&order.Status,
		&order.PaymentStatus,
		&pickupCode,
		&pickupToken,
		&pickupCodeCreatedAt,
		&pickupCodeExpiresAt,
		&order.SellerPickupInitiated,
		&order.PickupCompleted,
		&pickupCompletedAt,
		&order.HasDispute,
		&order.RefundStatus,
		&order.ReviewSubmitted,
		&cancelledReason,
		&autoCompletionAt,
		&order.CreatedAt,
		&order.UpdatedAt,
	)

	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("order read error: %v", err)
	}

	if pickupCode.Valid {
		order.PickupCode = &pickupCode.String
	}
	if pickupToken.Valid {
		order.PickupToken = &pickupToken.String
	}
	if pickupCodeCreatedAt.Valid {
		order.PickupCodeCreatedAt = &pickupCodeCreatedAt.Time
	}
	if pickupCodeExpiresAt.Valid {
		order.PickupCodeExpiresAt = &pickupCodeExpiresAt.Time
	}
	if pickupCompletedAt.Valid {
		order.PickupCompletedAt = &pickupCompletedAt.Time
	}
	if cancelledReason.Valid {
		order.CancelledReason = cancelledReason.String
	}
	if autoCompletionAt.Valid {
		order.AutoCompletionEligibleAt = &autoCompletionAt.Time
	}

	return order, nil
}
