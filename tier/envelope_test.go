package tier

import (
	"testing"
	"time"
)

func TestEnvelope_RoundTrip(t *testing.T) {
	stored := time.Unix(1700000000, 123456789)
	e := Entry{
		Value:     []byte("payload"),
		StoredAt:  stored,
		ExpiresAt: stored.Add(time.Minute),
	}

	got, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if string(got.Value) != "payload" {
		t.Fatalf("value: got %q", got.Value)
	}
	if !got.StoredAt.Equal(e.StoredAt) {
		t.Fatalf("StoredAt: got %v, want %v", got.StoredAt, e.StoredAt)
	}
	if !got.ExpiresAt.Equal(e.ExpiresAt) {
		t.Fatalf("ExpiresAt: got %v, want %v", got.ExpiresAt, e.ExpiresAt)
	}
}

func TestEnvelope_NoExpiry(t *testing.T) {
	e := Entry{Value: []byte("v"), StoredAt: time.Unix(1700000000, 0)}
	got, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if !got.ExpiresAt.IsZero() {
		t.Fatalf("expected zero ExpiresAt, got %v", got.ExpiresAt)
	}
}

func TestEnvelope_EmptyValue(t *testing.T) {
	e := Entry{StoredAt: time.Unix(1700000000, 0)}
	got, err := decodeEntry(encodeEntry(e))
	if err != nil {
		t.Fatalf("decodeEntry: %v", err)
	}
	if len(got.Value) != 0 {
		t.Fatalf("expected empty value, got %q", got.Value)
	}
}

func TestEnvelope_Malformed(t *testing.T) {
	if _, err := decodeEntry(nil); err == nil {
		t.Fatal("expected error for empty input")
	}
	if _, err := decodeEntry([]byte{envelopeVersion, 1, 2}); err == nil {
		t.Fatal("expected error for truncated input")
	}
	buf := encodeEntry(Entry{Value: []byte("v"), StoredAt: time.Now()})
	buf[0] = 99
	if _, err := decodeEntry(buf); err == nil {
		t.Fatal("expected error for unknown version")
	}
}
