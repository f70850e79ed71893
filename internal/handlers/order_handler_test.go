package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cardbazaar/order-service/internal/domain"
	"github.com/cardbazaar/order-service/internal/service"
	"github.com/cardbazaar/order-service/internal/web"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockLifecycle struct {
	generateFn        func(ctx context.Context, orderID, actorID uuid.UUID) (*service.PickupCredentialResult, error)
	verifyFn          func(ctx context.Context, credential string, actorID uuid.UUID) (*service.PickupSummary, error)
	completePickupFn  func(ctx context.Context, orderID, actorID uuid.UUID, role domain.Role, credential string) (*domain.Order, error)
	completeByBuyerFn func(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error)
	cancelFn          func(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error)
	advanceFn         func(ctx context.Context, orderID, actorID uuid.UUID, next domain.OrderStatus) (*domain.Order, error)
	getFn             func(ctx context.Context, orderID, actorID uuid.UUID) (*service.OrderView, error)
}

func (m *mockLifecycle) GeneratePickupCredential(ctx context.Context, orderID, actorID uuid.UUID) (*service.PickupCredentialResult, error) {
	return m.generateFn(ctx, orderID, actorID)
}
func (m *mockLifecycle) VerifyPickupCredential(ctx context.Context, credential string, actorID uuid.UUID) (*service.PickupSummary, error) {
	return m.verifyFn(ctx, credential, actorID)
}
func (m *mockLifecycle) CompletePickup(ctx context.Context, orderID, actorID uuid.UUID, role domain.Role, credential string) (*domain.Order, error) {
	return m.completePickupFn(ctx, orderID, actorID, role, credential)
}
func (m *mockLifecycle) CompleteByBuyer(ctx context.Context, orderID, actorID uuid.UUID) (*domain.Order, error) {
	return m.completeByBuyerFn(ctx, orderID, actorID)
}
func (m *mockLifecycle) Cancel(ctx context.Context, orderID, actorID uuid.UUID, reason string) (*domain.Order, error) {
	return m.cancelFn(ctx, orderID, actorID, reason)
}
func (m *mockLifecycle) AdvanceShipping(ctx context.Context, orderID, actorID uuid.UUID, next domain.OrderStatus) (*domain.Order, error) {
	return m.advanceFn(ctx, orderID, actorID, next)
}
func (m *mockLifecycle) GetOrder(ctx context.Context, orderID, actorID uuid.UUID) (*service.OrderView, error) {
	return m.getFn(ctx, orderID, actorID)
}

func testApp(lifecycle Lifecycle) *fiber.App {
	app := fiber.New()
	handler := NewOrderHandler(lifecycle)

	api := app.Group("/api/v1")
	api.Post("/pickup/verify", handler.VerifyPickupCredential)
	orders := api.Group("/orders")
	orders.Get("/:id", handler.GetOrder)
	orders.Post("/:id/pickup-code", handler.GeneratePickupCode)
	orders.Post("/:id/pickup-complete", handler.CompletePickup)
	orders.Post("/:id/complete", handler.CompleteByBuyer)
	orders.Post("/:id/cancel", handler.CancelOrder)
	orders.Post("/:id/shipping", handler.AdvanceShipping)

	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, actorID uuid.UUID, body interface{}) (*http.Response, web.APIResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if actorID != uuid.Nil {
		req.Header.Set("X-User-ID", actorID.String())
	}

	resp, err := app.Test(req)
	require.NoError(t, err)

	var parsed web.APIResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&parsed))
	return resp, parsed
}

func TestGeneratePickupCodeEndpoint(t *testing.T) {
	orderID := uuid.New()
	sellerID := uuid.New()
	expiresAt := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)

	lifecycle := &mockLifecycle{
		generateFn: func(_ context.Context, gotOrder, gotActor uuid.UUID) (*service.PickupCredentialResult, error) {
			assert.Equal(t, orderID, gotOrder)
			assert.Equal(t, sellerID, gotActor)
			return &service.PickupCredentialResult{
				OrderID:     orderID,
				PickupCode:  "123456",
				PickupToken: "tok_abc",
				ExpiresAt:   expiresAt,
			}, nil
		},
	}
	app := testApp(lifecycle)

	resp, parsed := doRequest(t, app, "POST", "/api/v1/orders/"+orderID.String()+"/pickup-code", sellerID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, parsed.Success)

	data := parsed.Data.(map[string]interface{})
	assert.Equal(t, "123456", data["pickup_code"])
	assert.Equal(t, "tok_abc", data["pickup_token"])
	assert.Equal(t, false, data["is_existing"])
}

func TestGeneratePickupCodeRequiresActorHeader(t *testing.T) {
	app := testApp(&mockLifecycle{})

	resp, parsed := doRequest(t, app, "POST", "/api/v1/orders/"+uuid.New().String()+"/pickup-code", uuid.Nil, nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, parsed.Success)
}

func TestVerifyEndpoint(t *testing.T) {
	buyerID := uuid.New()
	orderID := uuid.New()

	lifecycle := &mockLifecycle{
		verifyFn: func(_ context.Context, cred string, _ uuid.UUID) (*service.PickupSummary, error) {
			assert.Equal(t, "654321", cred)
			return &service.PickupSummary{
				OrderID:      orderID,
				ListingTitle: "Black Lotus (played)",
				SellerName:   "mtg_dave",
				Amount:       9001,
			}, nil
		},
	}
	app := testApp(lifecycle)

	resp, parsed := doRequest(t, app, "POST", "/api/v1/pickup/verify", buyerID, VerifyCredentialRequest{Credential: "654321"})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parsed.Data.(map[string]interface{})
	assert.Equal(t, "Black Lotus (played)", data["listing_title"])
	assert.Equal(t, "mtg_dave", data["seller_name"])
}

func TestVerifyEndpointRequiresCredential(t *testing.T) {
	app := testApp(&mockLifecycle{})

	resp, _ := doRequest(t, app, "POST", "/api/v1/pickup/verify", uuid.New(), VerifyCredentialRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestErrorMapping(t *testing.T) {
	orderID := uuid.New()
	actorID := uuid.New()

	cases := []struct {
		err    error
		status int
		code   string
	}{
		{domain.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrCredentialNotFound, http.StatusNotFound, "NOT_FOUND"},
		{domain.ErrForbidden, http.StatusForbidden, "FORBIDDEN"},
		{domain.ErrInvalidState, http.StatusConflict, "INVALID_STATE"},
		{domain.ErrAlreadyCompleted, http.StatusConflict, "ALREADY_COMPLETED"},
		{domain.ErrConflict, http.StatusConflict, "CONFLICT"},
		{domain.ErrDisputeActive, http.StatusConflict, "DISPUTE_ACTIVE"},
		{domain.ErrRefundPending, http.StatusConflict, "REFUND_PENDING"},
		{domain.ErrCredentialExpired, http.StatusGone, "CREDENTIAL_EXPIRED"},
		{domain.ErrCredentialInvalid, http.StatusUnprocessableEntity, "CREDENTIAL_INVALID"},
	}

	for _, tc := range cases {
		lifecycle := &mockLifecycle{
			completePickupFn: func(context.Context, uuid.UUID, uuid.UUID, domain.Role, string) (*domain.Order, error) {
				return nil, tc.err
			},
		}
		app := testApp(lifecycle)

		resp, parsed := doRequest(t, app, "POST", "/api/v1/orders/"+orderID.String()+"/pickup-complete", actorID,
			CompletePickupRequest{Credential: "123456"})
		assert.Equal(t, tc.status, resp.StatusCode, "error %v", tc.err)
		require.NotNil(t, parsed.Error, "error %v", tc.err)
		assert.Equal(t, tc.code, parsed.Error.Code, "error %v", tc.err)
	}
}

func TestCompleteByBuyerNotEligiblePayload(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()
	eligibleAt := time.Date(2025, 6, 2, 12, 0, 0, 0, time.UTC)

	lifecycle := &mockLifecycle{
		completeByBuyerFn: func(context.Context, uuid.UUID, uuid.UUID) (*domain.Order, error) {
			return nil, &domain.NotEligibleError{EligibleAt: eligibleAt, HoursRemaining: 7}
		},
	}
	app := testApp(lifecycle)

	resp, parsed := doRequest(t, app, "POST", "/api/v1/orders/"+orderID.String()+"/complete", buyerID, nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NotNil(t, parsed.Error)
	assert.Equal(t, "NOT_ELIGIBLE", parsed.Error.Code)
	assert.Equal(t, float64(7), parsed.Error.Details["hours_remaining"])
	assert.Equal(t, eligibleAt.Format(time.RFC3339), parsed.Error.Details["eligible_at"])
}

func TestGetOrderEndpointIncludesCountdown(t *testing.T) {
	orderID := uuid.New()
	buyerID := uuid.New()

	lifecycle := &mockLifecycle{
		getFn: func(context.Context, uuid.UUID, uuid.UUID) (*service.OrderView, error) {
			return &service.OrderView{
				Order: &domain.Order{
					ID:      orderID,
					BuyerID: buyerID,
					Status:  domain.OrderStatusPaid,
				},
				Eligibility: domain.Eligibility{HoursRemaining: 12},
			}, nil
		},
	}
	app := testApp(lifecycle)

	resp, parsed := doRequest(t, app, "GET", "/api/v1/orders/"+orderID.String(), buyerID, nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	data := parsed.Data.(map[string]interface{})
	auto := data["auto_completion"].(map[string]interface{})
	assert.Equal(t, false, auto["eligible"])
	assert.Equal(t, float64(12), auto["hours_remaining"])
}

func TestInvalidOrderIDRejected(t *testing.T) {
	app := testApp(&mockLifecycle{})

	resp, _ := doRequest(t, app, "POST", "/api/v1/orders/not-a-uuid/complete", uuid.New(), nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
