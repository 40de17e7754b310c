package responses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
)

func TestWriteSuccessEnvelope(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSuccess(rec, map[string]string{"hello": "world"})

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var payload struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Data["hello"] != "world" {
		t.Fatalf("unexpected payload: %v", payload.Data)
	}
}

func TestWriteErrorMapsCodeToStatus(t *testing.T) {
	tests := []struct {
		code   pkgerrors.Code
		status int
	}{
		{pkgerrors.CodeValidation, http.StatusBadRequest},
		{pkgerrors.CodeNotFound, http.StatusNotFound},
		{pkgerrors.CodeOutOfStock, http.StatusConflict},
		{pkgerrors.CodeAtCapacity, http.StatusConflict},
		{pkgerrors.CodeAlreadyRedeemed, http.StatusConflict},
		{pkgerrors.CodeInvalidToken, http.StatusNotFound},
		{pkgerrors.CodeNotYetReady, http.StatusUnprocessableEntity},
		{pkgerrors.CodeVendorClosed, http.StatusUnprocessableEntity},
		{pkgerrors.CodePaymentNotConfirmed, http.StatusUnprocessableEntity},
		{pkgerrors.CodeInvalidTransition, http.StatusUnprocessableEntity},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, pkgerrors.New(tt.code, "boom"))
		if rec.Code != tt.status {
			t.Fatalf("%s: expected %d got %d", tt.code, tt.status, rec.Code)
		}
		var payload struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
			t.Fatalf("%s: parse response: %v", tt.code, err)
		}
		if payload.Error.Code != string(tt.code) {
			t.Fatalf("expected code %s got %s", tt.code, payload.Error.Code)
		}
		if payload.Error.Message != "boom" {
			t.Fatalf("expected client-safe message passthrough, got %q", payload.Error.Message)
		}
	}
}

func TestWriteErrorHidesInternalDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), nil, rec, pkgerrors.New(pkgerrors.CodeInternal, "connection string leaked"))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
	var payload struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response: %v", err)
	}
	if payload.Error.Message != "internal server error" {
		t.Fatalf("internal message must not leak, got %q", payload.Error.Message)
	}
}
