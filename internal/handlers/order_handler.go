package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cardbazaar/order-service/internal/domain"
	"github.com/cardbazaar/order-service/internal/service"
	"github.com/cardbazaar/order-service/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Lifecycle is the slice of the order service the HTTP layer needs.
type Lifecycle interface {
	GeneratePickupCredential(ctx context.Context, orderID, actorID uuid.UUID) (*service.PickupCredentialResult, error)
	VerifyPickupCredential(ctx context.Context, credential string, actorID uuid.UUID) (*service.PickupSummary, error)
	CompletePickup(ctx context.Context, orderID, actorID uuid.UUID, role domain.Role, credential string) (*domain.Order, error)
	CompleteByBuyer(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error)
	Cancel(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error)
	AdvanceShipping(ctx context.Context, orderID, actorID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	GetOrder(ctx context.Context, orderID, actorID uuid.UUID) (*service.OrderView, error)
}

type OrderHandler struct {
	lifecycle Lifecycle
}

func NewOrderHandler(lifecycle Lifecycle) *OrderHandler {
	return &OrderHandler{
		lifecycle: lifecycle,
	}
}

func (h *OrderHandler) GeneratePickupCode(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	result, err := h.lifecycle.GeneratePickupCredential(c.Context(), orderID, actorID)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Pickup code ready", PickupCredentialResponse{
		OrderID:     result.OrderID,
		PickupCode:  result.PickupCode,
		PickupToken: result.PickupToken,
		ExpiresAt:   result.ExpiresAt,
		IsExisting:  result.IsExisting,
	})
}

func (h *OrderHandler) VerifyPickupCredential(c *fiber.Ctx) error {
	actorID, err := actorFromHeader(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	var request VerifyCredentialRequest
	if err := c.BodyParser(&request); err != nil {
		return web.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}
	if request.Credential == "" {
		return web.BadRequestResponse(c, "Credential is required", nil)
	}

	summary, err := h.lifecycle.VerifyPickupCredential(c.Context(), request.Credential, actorID)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Pickup credential verified", PickupSummaryResponse{
		OrderID:      summary.OrderID,
		ListingTitle: summary.ListingTitle,
		SellerName:   summary.SellerName,
		Amount:       summary.Amount,
		ExpiresAt:    summary.ExpiresAt,
	})
}

func (h *OrderHandler) CompletePickup(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	var request CompletePickupRequest
	if err := c.BodyParser(&request); err != nil {
		return web.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}
	if request.Credential == "" {
		return web.BadRequestResponse(c, "Credential is required", nil)
	}

	order, err := h.lifecycle.CompletePickup(c.Context(), orderID, actorID, domain.RoleBuyer, request.Credential)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Pickup completed", toOrderResponse(order))
}

func (h *OrderHandler) CompleteByBuyer(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	order, err := h.lifecycle.CompleteByBuyer(c.Context(), orderID, actorID)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Order completed", toOrderResponse(order))
}

func (h *OrderHandler) CancelOrder(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	var request CancelOrderRequest
	if err := c.BodyParser(&request); err != nil {
		return web.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}

	order, err := h.lifecycle.Cancel(c.Context(), orderID, actorID, request.Reason)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Order cancelled", toOrderResponse(order))
}

func (h *OrderHandler) AdvanceShipping(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	var request AdvanceShippingRequest
	if err := c.BodyParser(&request); err != nil {
		return web.BadRequestResponse(c, "Invalid request body", map[string]interface{}{
			"parse_error": err.Error(),
		})
	}
	if request.Status == "" {
		return web.BadRequestResponse(c, "Status is required", nil)
	}

	order, err := h.lifecycle.AdvanceShipping(c.Context(), orderID, actorID, domain.OrderStatus(request.Status))
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Order status updated", toOrderResponse(order))
}

func (h *OrderHandler) GetOrder(c *fiber.Ctx) error {
	orderID, actorID, err := h.requestIdentity(c)
	if err != nil {
		return web.BadRequestResponse(c, err.Error(), nil)
	}

	view, err := h.lifecycle.GetOrder(c.Context(), orderID, actorID)
	if err != nil {
		return errorResponse(c, err)
	}

	return web.SuccessResponse(c, "Order retrieved", toOrderViewResponse(view))
}

func (h *OrderHandler) HealthCheck(c *fiber.Ctx) error {
	return web.SuccessResponse(c, "Order service is healthy", map[string]interface{}{
		"service": "order-service",
		"status":  "healthy",
	})
}

func (h *OrderHandler) requestIdentity(c *fiber.Ctx) (orderID, actorID uuid.UUID, err error) {
	orderID, err = uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, uuid.Nil, errors.New("invalid order id")
	}
	actorID, err = actorFromHeader(c)
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return orderID, actorID, nil
}

// actorFromHeader reads the authenticated user id the gateway forwards.
func actorFromHeader(c *fiber.Ctx) (uuid.UUID, error) {
	raw := c.Get("X-User-ID")
	if raw == "" {
		return uuid.Nil, errors.New("missing X-User-ID header")
	}
	actorID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid X-User-ID header")
	}
	return actorID, nil
}

// errorResponse maps the domain error taxonomy onto HTTP statuses.
func errorResponse(c *fiber.Ctx, err error) error {
	var notEligible *domain.NotEligibleError
	if errors.As(err, &notEligible) {
		return web.UnprocessableResponse(c, "NOT_ELIGIBLE", notEligible.Error(), map[string]interface{}{
			"eligible_at":     notEligible.EligibleAt.Format(time.RFC3339),
			"hours_remaining": notEligible.HoursRemaining,
		})
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		return web.NotFoundResponse(c, "Order not found")
	case errors.Is(err, domain.ErrCredentialNotFound):
		return web.NotFoundResponse(c, "No active pickup credential matches")
	case errors.Is(err, domain.ErrForbidden):
		return web.ForbiddenResponse(c, "Not allowed for this actor")
	case errors.Is(err, domain.ErrInvalidState):
		return web.ConflictResponse(c, "INVALID_STATE", "Order state does not permit this operation", nil)
	case errors.Is(err, domain.ErrAlreadyCompleted):
		return web.ConflictResponse(c, "ALREADY_COMPLETED", "Order is already completed", nil)
	case errors.Is(err, domain.ErrConflict):
		return web.ConflictResponse(c, "CONFLICT", "Order was modified concurrently, re-fetch and retry", nil)
	case errors.Is(err, domain.ErrDisputeActive):
		return web.ConflictResponse(c, "DISPUTE_ACTIVE", "Order has an active dispute", nil)
	case errors.Is(err, domain.ErrRefundPending):
		return web.ConflictResponse(c, "REFUND_PENDING", "Order has a refund in progress", nil)
	case errors.Is(err, domain.ErrCredentialExpired):
		return web.GoneResponse(c, "CREDENTIAL_EXPIRED", "Pickup credential has expired")
	case errors.Is(err, domain.ErrCredentialInvalid):
		return web.UnprocessableResponse(c, "CREDENTIAL_INVALID", "Pickup credential does not match", nil)
	}

	log.Printf("Unhandled lifecycle error: %v", err)
	return web.InternalServerErrorResponse(c, "Internal error", nil)
}
