package tier

import (
	"encoding/binary"
	"errors"
	"time"
)

// Byte-oriented tiers (remote, client-persisted) cannot keep Entry structs,
// so they store a small binary envelope: one version byte, StoredAt and
// ExpiresAt as big-endian unix-nano int64s, then the raw value.

const (
	envelopeVersion = 1
	envelopeHeader  = 1 + 8 + 8
)

var errBadEnvelope = errors.New("tier: malformed entry envelope")

func encodeEntry(e Entry) []byte {
	buf := make([]byte, envelopeHeader+len(e.Value))
	buf[0] = envelopeVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(e.StoredAt.UnixNano()))
	var exp int64
	if !e.ExpiresAt.IsZero() {
		exp = e.ExpiresAt.UnixNano()
	}
	binary.BigEndian.PutUint64(buf[9:17], uint64(exp))
	copy(buf[envelopeHeader:], e.Value)
	return buf
}

func decodeEntry(b []byte) (Entry, error) {
	if len(b) < envelopeHeader || b[0] != envelopeVersion {
		return Entry{}, errBadEnvelope
	}
	e := Entry{
		StoredAt: time.Unix(0, int64(binary.BigEndian.Uint64(b[1:9]))),
		Value:    append([]byte(nil), b[envelopeHeader:]...),
	}
	if exp := int64(binary.BigEndian.Uint64(b[9:17])); exp != 0 {
		e.ExpiresAt = time.Unix(0, exp)
	}
	return e, nil
}
