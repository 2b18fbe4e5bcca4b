package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewErrorDefaultsStatus(t *testing.T) {
	err := NewError("bad_request", "missing field", 0)
	if err.Status != http.StatusInternalServerError {
		t.Fatalf("expected status %d got %d", http.StatusInternalServerError, err.Status)
	}
}

func TestErrorString(t *testing.T) {
	err := NewError("cart_conflict", "listing sold out", http.StatusConflict)
	got := err.Error()
	if !strings.Contains(got, "cart_conflict") || !strings.Contains(got, "409") || !strings.Contains(got, "listing sold out") {
		t.Fatalf("unexpected error string %q", got)
	}
}

func TestWriteErrorEnvelope(t *testing.T) {
	recorder := httptest.NewRecorder()
	apiErr := NewError("unauthorized", "token expired", http.StatusUnauthorized).
		WithRequestID("req-123").
		WithDetails(map[string]any{"hint": "refresh"})

	WriteError(context.Background(), recorder, apiErr)

	if recorder.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d got %d", http.StatusUnauthorized, recorder.Code)
	}
	if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected json content type got %q", ct)
	}

	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("failed decoding envelope: %v", err)
	}
	if payload["error"] != "unauthorized" {
		t.Fatalf("expected error code unauthorized got %v", payload["error"])
	}
	if payload["message"] != "token expired" {
		t.Fatalf("expected message got %v", payload["message"])
	}
	if payload["status"] != float64(http.StatusUnauthorized) {
		t.Fatalf("expected status field 401 got %v", payload["status"])
	}
	if payload["request_id"] != "req-123" {
		t.Fatalf("expected request_id req-123 got %v", payload["request_id"])
	}
	if payload["hint"] != "refresh" {
		t.Fatalf("expected detail hint got %v", payload["hint"])
	}
}

func TestFromResponseParsesEnvelope(t *testing.T) {
	body := `{"error":"not_found","message":"listing missing","status":404,"request_id":"req-9"}`
	resp := &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     http.Header{},
	}

	got := FromResponse(resp)
	if got.Code != "not_found" {
		t.Fatalf("expected code not_found got %q", got.Code)
	}
	if got.Message != "listing missing" {
		t.Fatalf("expected message got %q", got.Message)
	}
	if got.Status != http.StatusNotFound {
		t.Fatalf("expected status 404 got %d", got.Status)
	}
	if got.RequestID != "req-9" {
		t.Fatalf("expected request id req-9 got %q", got.RequestID)
	}
}

func TestFromResponseToleratesNonJSON(t *testing.T) {
	resp := &http.Response{
		StatusCode: http.StatusBadGateway,
		Body:       io.NopCloser(strings.NewReader("<html>upstream exploded</html>")),
		Header:     http.Header{},
	}

	got := FromResponse(resp)
	if got.Status != http.StatusBadGateway {
		t.Fatalf("expected status 502 got %d", got.Status)
	}
	if got.Code != "bad_gateway" {
		t.Fatalf("expected fallback code bad_gateway got %q", got.Code)
	}
	if got.Message == "" {
		t.Fatal("expected fallback message to be populated")
	}
}

func TestFromResponseCapsBody(t *testing.T) {
	huge := strings.Repeat("x", maxErrorBody*2)
	resp := &http.Response{
		StatusCode: http.StatusServiceUnavailable,
		Body:       io.NopCloser(strings.NewReader(huge)),
		Header:     http.Header{},
	}

	got := FromResponse(resp)
	if got.Status != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 got %d", got.Status)
	}
	if len(got.Message) > 512 {
		t.Fatalf("expected message capped, got %d bytes", len(got.Message))
	}
}

func TestFromResponseHeaderRequestID(t *testing.T) {
	header := http.Header{}
	header.Set("X-Request-Id", "hdr-44")
	resp := &http.Response{
		StatusCode: http.StatusTooManyRequests,
		Body:       io.NopCloser(strings.NewReader("{}")),
		Header:     header,
	}

	got := FromResponse(resp)
	if got.RequestID != "hdr-44" {
		t.Fatalf("expected request id from header got %q", got.RequestID)
	}
}

func TestStatusOf(t *testing.T) {
	envelope := NewError("too_many_requests", "slow down", http.StatusTooManyRequests)
	wrapped := fmt.Errorf("fetch listings: %w", envelope)

	if got := StatusOf(wrapped); got != http.StatusTooManyRequests {
		t.Fatalf("expected 429 got %d", got)
	}
	if !IsStatus(wrapped, http.StatusTooManyRequests) {
		t.Fatal("expected IsStatus to match wrapped envelope")
	}
	if got := StatusOf(errors.New("plain failure")); got != 0 {
		t.Fatalf("expected 0 for non-envelope error got %d", got)
	}
}
