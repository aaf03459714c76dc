package journal

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// GenesisHash is the hash of entry 0. Every chain starts from it.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// KindGenesis is the kind of the first entry of every journal.
const KindGenesis = "genesis"

// Entry is a single audit record in the journal.
type Entry struct {
	Index       int             `json:"index"`
	ID          uuid.UUID       `json:"id"`
	Timestamp   time.Time       `json:"timestamp"`
	Participant string          `json:"participant,omitempty"`
	Kind        string          `json:"kind"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	DataHash    string          `json:"data_hash"` // SHA-256 of Payload
	PrevHash    string          `json:"prev_hash"`
	Hash        string          `json:"hash"`
}

func genesisEntry() *Entry {
	return &Entry{
		Index:     0,
		ID:        uuid.Nil,
		Timestamp: time.Now().UTC(),
		Kind:      KindGenesis,
		DataHash:  GenesisHash,
		PrevHash:  GenesisHash,
		Hash:      GenesisHash,
	}
}

// newEntry builds the entry that follows prev, hashing payload.
func newEntry(prev *Entry, participant, kind string, payload any) (*Entry, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	e := &Entry{
		Index:       prev.Index + 1,
		ID:          uuid.New(),
		Timestamp:   time.Now().UTC().Truncate(time.Microsecond), // timestamptz precision
		Participant: participant,
		Kind:        kind,
		Payload:     raw,
		DataHash:    sha256Sum(raw),
		PrevHash:    prev.Hash,
	}
	e.Hash = hashEntry(e)
	return e, nil
}

// clone returns a copy that shares no memory with e.
func (e *Entry) clone() *Entry {
	c := *e
	if e.Payload != nil {
		c.Payload = append(json.RawMessage(nil), e.Payload...)
	}
	return &c
}

// hashEntry must never be called on the genesis entry.
func hashEntry(e *Entry) string {
	h := sha256.New()
	fmt.Fprintf(h, "%d|%s|%s|%s|%s|%s|%s",
		e.Index, e.ID, e.Timestamp.Format(time.RFC3339Nano),
		e.Participant, e.Kind, e.DataHash, e.PrevHash,
	)
	return hex.EncodeToString(h.Sum(nil))
}

func sha256Sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// verifyLink checks curr against its predecessor prev (nil for index 0).
func verifyLink(prev, curr *Entry) error {
	if prev == nil {
		if curr.Hash != GenesisHash {
			return fmt.Errorf("%w: genesis entry has hash %q", ErrChainBroken, curr.Hash)
		}
		return nil
	}
	if curr.Index != prev.Index+1 {
		return fmt.Errorf("%w: index %d follows %d", ErrChainBroken, curr.Index, prev.Index)
	}
	if curr.PrevHash != prev.Hash {
		return fmt.Errorf("%w: prev hash mismatch at index %d", ErrChainBroken, curr.Index)
	}
	// Every appended entry carries a payload; a missing one hashes to the
	// empty digest and fails here like any other edit.
	if sha256Sum(curr.Payload) != curr.DataHash {
		return fmt.Errorf("%w: payload of entry %d does not match its data hash", ErrChainBroken, curr.Index)
	}
	if curr.Hash != hashEntry(curr) {
		return fmt.Errorf("%w: entry %d has invalid hash", ErrChainBroken, curr.Index)
	}
	return nil
}
