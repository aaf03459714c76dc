package handler_test

import (
	"net/http"
	"testing"
)

func TestApprove_requiresToken(t *testing.T) {
	s := setupServer(t)
	w := s.do(http.MethodPost, "/api/v1/asset/approve", "", amount(10))
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}
}

func TestApprove_setsAndRevokesAllowance(t *testing.T) {
	s := setupServer(t)
	authz := s.bearer(t, alice)

	w := s.do(http.MethodPost, "/api/v1/asset/approve", authz, amount(250))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if resp["allowance"].(float64) != 250 || resp["spender"] != custody.Hex() {
		t.Errorf("approve: %s", w.Body.String())
	}
	if got := s.token.Allowance(alice, custody); got != 250 {
		t.Errorf("Allowance: got %d, want 250", got)
	}

	_ = s.do(http.MethodPost, "/api/v1/asset/approve", authz, amount(0))
	if got := s.token.Allowance(alice, custody); got != 0 {
		t.Errorf("revoked Allowance: got %d, want 0", got)
	}
}

func TestAssetBalance(t *testing.T) {
	s := setupServer(t)
	s.approveAll(t, alice)
	_ = s.do(http.MethodPost, "/api/v1/pool/deposit", s.bearer(t, alice), amount(400))

	w := s.do(http.MethodGet, "/api/v1/asset/balances/"+alice.Hex(), "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	resp := decode(t, w)
	if resp["balance"].(float64) != userSupply-400 || resp["symbol"] != "TST" {
		t.Errorf("asset balance: %s", w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/v1/asset/balances/"+custody.Hex(), "", nil)
	if decode(t, w)["balance"].(float64) != 400 {
		t.Errorf("custody balance: %s", w.Body.String())
	}

	w = s.do(http.MethodGet, "/api/v1/asset/balances/123", "", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("invalid address: expected 400, got %d", w.Code)
	}
}

func TestAssetBalance_callerFromToken(t *testing.T) {
	s := setupServer(t)
	s.approveAll(t, alice)

	w := s.do(http.MethodGet, "/api/v1/asset/balance", s.bearer(t, alice), nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body)
	}
	resp := decode(t, w)
	if resp["holder"] != alice.Hex() || resp["balance"].(float64) != userSupply {
		t.Errorf("caller asset balance: %s", w.Body)
	}

	if w := s.do(http.MethodGet, "/api/v1/asset/balance", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous: expected 401, got %d", w.Code)
	}
}
