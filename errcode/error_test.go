package errcode

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

// TestLayeredError_New checks code composition and defaults
func TestLayeredError_New(t *testing.T) {
	err := New(33, 7, "breaker", "error.breaker.rate_limited", "rate limited")

	if err.Code() != 330007 {
		t.Errorf("expected code 330007, got %d", err.Code())
	}
	if err.Module() != "breaker" {
		t.Errorf("expected module 'breaker', got %s", err.Module())
	}
	if err.MsgKey() != "error.breaker.rate_limited" {
		t.Errorf("unexpected msgKey %s", err.MsgKey())
	}
	if err.HTTPStatus() != http.StatusOK {
		t.Errorf("expected default status 200, got %d", err.HTTPStatus())
	}
}

func TestLayeredError_HTTPStatus(t *testing.T) {
	err := New(33, 1, "breaker", "error.breaker.not_admin", "not admin", http.StatusForbidden)
	if err.HTTPStatus() != http.StatusForbidden {
		t.Errorf("expected 403, got %d", err.HTTPStatus())
	}
}

// TestLayeredError_IsByCode copies derived with WithData/Wrap still match the sentinel
func TestLayeredError_IsByCode(t *testing.T) {
	sentinel := New(33, 7, "breaker", "error.breaker.rate_limited", "rate limited")
	derived := sentinel.WithData("asset", "0xabc").Wrap(errors.New("boom"))

	if !errors.Is(derived, sentinel) {
		t.Error("derived error should match sentinel")
	}
	other := New(33, 8, "breaker", "error.breaker.other", "other")
	if errors.Is(derived, other) {
		t.Error("different codes must not match")
	}

	wrapped := fmt.Errorf("outer: %w", derived)
	if !errors.Is(wrapped, sentinel) {
		t.Error("fmt wrapping should keep the match")
	}
}

func TestLayeredError_WithDataIsCopy(t *testing.T) {
	original := New(33, 1, "breaker", "k", "m")
	modified := original.WithData("amount", "10")

	if len(original.Data()) != 0 {
		t.Errorf("original data should stay empty, got %d items", len(original.Data()))
	}
	if modified.Data()["amount"] != "10" {
		t.Errorf("expected amount=10, got %v", modified.Data()["amount"])
	}
}

func TestLayeredError_Wrap(t *testing.T) {
	cause := errors.New("redis down")
	err := New(35, 1, "store", "error.store.backend", "store backend failed")

	wrapped := err.Wrap(cause)
	if errors.Unwrap(wrapped) != cause {
		t.Errorf("expected cause %v", cause)
	}
	if wrapped.Error() != "store backend failed: redis down" {
		t.Errorf("unexpected message %q", wrapped.Error())
	}
	if err.Wrap(nil) != err {
		t.Error("wrapping nil should return the receiver")
	}
}

func TestLayeredError_WithMsgf(t *testing.T) {
	err := New(32, 2, "limiter", "k", "asset already initialized")
	modified := err.WithMsgf("asset %s already initialized", "0xabc")

	if modified.Message() != "asset 0xabc already initialized" {
		t.Errorf("unexpected message %s", modified.Message())
	}
	if modified.Code() != err.Code() {
		t.Error("code must not change")
	}
}

func TestLayeredError_String(t *testing.T) {
	err := New(34, 1, "governance", "k", "not guardian")
	if err.String() != "LayeredError{code:340001, module:governance, msg:not guardian}" {
		t.Errorf("unexpected string %s", err.String())
	}
}
