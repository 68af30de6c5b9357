package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/seralvarez/casillero-backend/internal/pickup"
	pkgerrors "github.com/seralvarez/casillero-backend/pkg/errors"
)

type stubPickup struct {
	verifyFn func(ctx context.Context, userID, orderID uuid.UUID, code string) (pickup.VerifyResult, error)
}

func (s stubPickup) Verify(ctx context.Context, userID, orderID uuid.UUID, code string) (pickup.VerifyResult, error) {
	if s.verifyFn != nil {
		return s.verifyFn(ctx, userID, orderID, code)
	}
	return pickup.VerifyResult{}, nil
}

func TestVerifyPickupSuccess(t *testing.T) {
	userID := uuid.New()
	orderID := uuid.New()
	svc := stubPickup{
		verifyFn: func(ctx context.Context, gotUser, gotOrder uuid.UUID, code string) (pickup.VerifyResult, error) {
			if gotUser != userID || gotOrder != orderID {
				t.Fatalf("unexpected identifiers %s %s", gotUser, gotOrder)
			}
			if code != "A1B2C3" {
				t.Fatalf("unexpected code %q", code)
			}
			return pickup.VerifyResult{OrderID: orderID, LockerNumber: 12, VerifiedAt: time.Now()}, nil
		},
	}

	handler := VerifyPickup(svc, testLogger())
	body := `{"order_id":"` + orderID.String() + `","code":"A1B2C3"}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/pickup/verify", jsonBody(body)), userID)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}

	var envelope struct {
		Data pickup.VerifyResult `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if envelope.Data.LockerNumber != 12 {
		t.Fatalf("unexpected locker %d", envelope.Data.LockerNumber)
	}
}

func TestVerifyPickupWrongCode(t *testing.T) {
	svc := stubPickup{
		verifyFn: func(ctx context.Context, userID, orderID uuid.UUID, code string) (pickup.VerifyResult, error) {
			return pickup.VerifyResult{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "pickup code does not match")
		},
	}

	handler := VerifyPickup(svc, testLogger())
	body := `{"order_id":"` + uuid.NewString() + `","code":"XXXXXX"}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/pickup/verify", jsonBody(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestVerifyPickupRateLimited(t *testing.T) {
	svc := stubPickup{
		verifyFn: func(ctx context.Context, userID, orderID uuid.UUID, code string) (pickup.VerifyResult, error) {
			return pickup.VerifyResult{}, pkgerrors.New(pkgerrors.CodeRateLimit, "too many verification attempts")
		},
	}

	handler := VerifyPickup(svc, testLogger())
	body := `{"order_id":"` + uuid.NewString() + `","code":"A1B2C3"}`
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/pickup/verify", jsonBody(body)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", resp.Code)
	}
}

func TestVerifyPickupRejectsMissingFields(t *testing.T) {
	handler := VerifyPickup(stubPickup{}, testLogger())
	req := authedRequest(httptest.NewRequest(http.MethodPost, "/pickup/verify", jsonBody(`{}`)), uuid.New())
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", resp.Code)
	}
}
