package handler_test

import (
	"net/http"
	"testing"
)

func TestJournalOverview_genesisOnly(t *testing.T) {
	s := setupServer(t)

	w := s.do(http.MethodGet, "/api/v1/journal", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	resp := decode(t, w)
	if int(resp["entries"].(float64)) != 1 {
		t.Errorf("expected 1 entry (genesis), got %v", resp["entries"])
	}
}

func TestJournalOverview_recordsPoolOperations(t *testing.T) {
	s := setupServer(t)
	s.approveAll(t, alice)
	s.approveAll(t, bob)
	_ = s.do(http.MethodPost, "/api/v1/pool/deposit", s.bearer(t, alice), amount(100))
	_ = s.do(http.MethodPost, "/api/v1/pool/deposit", s.bearer(t, bob), amount(50))
	_ = s.do(http.MethodPost, "/api/v1/pool/withdraw", s.bearer(t, alice), amount(30))

	resp := decode(t, s.do(http.MethodGet, "/api/v1/journal", "", nil))
	if int(resp["entries"].(float64)) != 4 {
		t.Errorf("entries: got %v, want 4", resp["entries"])
	}

	resp = decode(t, s.do(http.MethodGet, "/api/v1/journal?participant="+alice.Hex(), "", nil))
	recent := resp["recent"].([]any)
	if len(recent) != 2 {
		t.Fatalf("alice entries: got %d, want 2", len(recent))
	}
	if recent[0].(map[string]any)["kind"] != "withdraw" {
		t.Errorf("newest entry: %v", recent[0])
	}

	resp = decode(t, s.do(http.MethodGet, "/api/v1/journal?limit=1", "", nil))
	if len(resp["recent"].([]any)) != 1 {
		t.Errorf("limit=1 returned %d entries", len(resp["recent"].([]any)))
	}
}

func TestJournalOverview_badQuery(t *testing.T) {
	s := setupServer(t)
	for _, q := range []string{"?limit=0", "?limit=x", "?participant=zz"} {
		if w := s.do(http.MethodGet, "/api/v1/journal"+q, "", nil); w.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", q, w.Code)
		}
	}
}

func TestJournalVerify_200(t *testing.T) {
	s := setupServer(t)
	s.approveAll(t, alice)
	_ = s.do(http.MethodPost, "/api/v1/pool/deposit", s.bearer(t, alice), amount(10))

	w := s.do(http.MethodGet, "/api/v1/journal/verify", "", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if decode(t, w)["valid"] != true {
		t.Errorf("verify: %s", w.Body.String())
	}
}

func TestJournalGetEntry(t *testing.T) {
	s := setupServer(t)

	if w := s.do(http.MethodGet, "/api/v1/journal/entries/0", "", nil); w.Code != http.StatusOK {
		t.Errorf("genesis: expected 200, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/journal/entries/999", "", nil); w.Code != http.StatusNotFound {
		t.Errorf("missing: expected 404, got %d", w.Code)
	}
	if w := s.do(http.MethodGet, "/api/v1/journal/entries/abc", "", nil); w.Code != http.StatusBadRequest {
		t.Errorf("non-numeric: expected 400, got %d", w.Code)
	}
}
