package journal

import (
	"context"
	"errors"
	"testing"
)

func tamperedJournal(t *testing.T, edit func(e *Entry)) *MemoryJournal {
	t.Helper()
	j := New()
	for _, kind := range []string{"deposit", "withdraw"} {
		if _, err := j.Append(context.Background(), "0xabc", kind, map[string]uint64{"amount": 100}); err != nil {
			t.Fatal(err)
		}
	}
	edit(j.entries[1])
	return j
}

func TestVerify_detectsTampering(t *testing.T) {
	cases := map[string]func(e *Entry){
		"payload rewritten": func(e *Entry) { e.Payload = []byte(`{"amount":1000000}`) },
		"payload erased":    func(e *Entry) { e.Payload = nil },
		"payload emptied":   func(e *Entry) { e.Payload = []byte{} },
		"participant":       func(e *Entry) { e.Participant = "0xdef" },
		"prev hash":         func(e *Entry) { e.PrevHash = GenesisHash },
	}
	for name, edit := range cases {
		t.Run(name, func(t *testing.T) {
			j := tamperedJournal(t, edit)
			if err := j.Verify(context.Background()); !errors.Is(err, ErrChainBroken) {
				t.Fatalf("Verify(): got %v, want ErrChainBroken", err)
			}
		})
	}
}

func TestVerifyLink_dataHashCoversEmptyPayload(t *testing.T) {
	prev := genesisEntry()
	e := &Entry{Index: 1, Kind: "deposit", DataHash: sha256Sum(nil), PrevHash: prev.Hash}
	e.Hash = hashEntry(e)
	if err := verifyLink(prev, e); err != nil {
		t.Fatalf("consistent empty payload: %v", err)
	}

	e.DataHash = sha256Sum([]byte(`{"amount":1}`))
	e.Hash = hashEntry(e)
	if err := verifyLink(prev, e); !errors.Is(err, ErrChainBroken) {
		t.Fatalf("payload dropped after hashing: got %v, want ErrChainBroken", err)
	}
}
