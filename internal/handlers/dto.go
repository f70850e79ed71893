package handlers

import (
	"time"

	"github.com/cardbazaar/order-service/internal/domain"
	"github.com/cardbazaar/order-service/internal/service"
	"github.com/google/uuid"
)

type VerifyCredentialRequest struct {
	Credential string `json:"credential"`
}

type CompletePickupRequest struct {
	Credential string `json:"credential"`
}

type CancelOrderRequest struct {
	Reason string `json:"reason"`
}

type AdvanceShippingRequest struct {
	Status string `json:"status"`
}

type PickupCredentialResponse struct {
	OrderID     uuid.UUID `json:"order_id"`
	PickupCode  string    `json:"pickup_code"`
	PickupToken string    `json:"pickup_token"`
	ExpiresAt   time.Time `json:"expires_at"`
	IsExisting  bool      `json:"is_existing"`
}

type PickupSummaryResponse struct {
	OrderID      uuid.UUID `json:"order_id"`
	ListingTitle string    `json:"listing_title"`
	SellerName   string    `json:"seller_name"`
	Amount       float64   `json:"amount"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type AutoCompletionResponse struct {
	Eligible       bool      `json:"eligible"`
	EligibleAt     time.Time `json:"eligible_at"`
	HoursRemaining int       `json:"hours_remaining"`
}

type OrderResponse struct {
	ID                    uuid.UUID               `json:"id"`
	BuyerID               uuid.UUID               `json:"buyer_id"`
	SellerID              uuid.UUID               `json:"seller_id"`
	ListingID             uuid.UUID               `json:"listing_id"`
	ListingTitle          string                  `json:"listing_title"`
	Amount                float64                 `json:"amount"`
	IsPickup              bool                    `json:"is_pickup"`
	Status                string                  `json:"status"`
	PaymentStatus         string                  `json:"payment_status"`
	SellerPickupInitiated bool                    `json:"seller_pickup_initiated"`
	PickupCompleted       bool                    `json:"pickup_completed"`
	PickupCompletedAt     *time.Time              `json:"pickup_completed_at,omitempty"`
	PickupCodeExpiresAt   *time.Time              `json:"pickup_code_expires_at,omitempty"`
	HasDispute            bool                    `json:"has_dispute"`
	RefundStatus          string                  `json:"refund_status"`
	ReviewSubmitted       bool                    `json:"review_submitted"`
	CancelledReason       string                  `json:"cancelled_reason,omitempty"`
	AutoCompletion        *AutoCompletionResponse `json:"auto_completion,omitempty"`
	CreatedAt             time.Time               `json:"created_at"`
	UpdatedAt             time.Time               `json:"updated_at"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	return OrderResponse{
		ID:                    order.ID,
		BuyerID:               order.BuyerID,
		SellerID:              order.SellerID,
		ListingID:             order.ListingID,
		ListingTitle:          order.ListingTitle,
		Amount:                order.Amount,
		IsPickup:              order.IsPickup,
		Status:                string(order.Status),
		PaymentStatus:         string(order.PaymentStatus),
		SellerPickupInitiated: order.SellerPickupInitiated,
		PickupCompleted:       order.PickupCompleted,
		PickupCompletedAt:     order.PickupCompletedAt,
		PickupCodeExpiresAt:   order.PickupCodeExpiresAt,
		HasDispute:            order.HasDispute,
		RefundStatus:          string(order.RefundStatus),
		ReviewSubmitted:       order.ReviewSubmitted,
		CancelledReason:       order.CancelledReason,
		CreatedAt:             order.CreatedAt,
		UpdatedAt:             order.UpdatedAt,
	}
}

func toOrderViewResponse(view *service.OrderView) OrderResponse {
	response := toOrderResponse(view.Order)
	response.AutoCompletion = &AutoCompletionResponse{
		Eligible:       view.Eligibility.Eligible,
		EligibleAt:     view.Eligibility.EligibleAt,
		HoursRemaining: view.Eligibility.HoursRemaining,
	}
	return response
}
