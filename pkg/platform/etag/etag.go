// Package etag converts per-row version stamps to and from the opaque tokens
// exchanged with HTTP callers in ETag and If-Match headers.
//
// A token is the standard base64 encoding of the raw stamp bytes. On the wire
// it is wrapped in double quotes:
//
//	ETag: "AZJ3k2n0c1mL0x7qJv1c9w=="
//
// Tokens are compared for equality only; they carry no ordering.
package etag

import (
	"bytes"
	"database/sql/driver"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ErrMalformed is returned by Decode when a token is not valid base64.
// Callers must treat it as a client error.
var ErrMalformed = errors.New("malformed etag")

// Stamp is the opaque version value stored with every versioned row.
// Only the store creates stamps; callers only read and present them back.
type Stamp []byte

// NewStamp returns a fresh 16-byte stamp. UUIDv7 keeps stamps unique across
// writers and roughly time ordered, which helps when reading raw tables.
func NewStamp() Stamp {
	u, err := uuid.NewV7()
	if err != nil {
		u = uuid.New()
	}
	return Stamp(u[:])
}

// Equal reports whether two stamps are byte-for-byte identical.
func (s Stamp) Equal(other Stamp) bool {
	return len(s) > 0 && bytes.Equal(s, other)
}

// Token returns the transport encoding of the stamp.
func (s Stamp) Token() string {
	return Encode(s)
}

// MarshalJSON renders the stamp as its token so payloads embed the same value
// that travels in the ETag header.
func (s Stamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(Encode(s))
}

// UnmarshalJSON accepts a token string.
func (s *Stamp) UnmarshalJSON(data []byte) error {
	var token string
	if err := json.Unmarshal(data, &token); err != nil {
		return err
	}
	stamp, err := Decode(token)
	if err != nil {
		return err
	}
	*s = stamp
	return nil
}

// Scan reads a stamp from a binary column, copying the driver's buffer.
func (s *Stamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*s = nil
	case []byte:
		*s = append(Stamp(nil), v...)
	case string:
		*s = Stamp(v)
	default:
		return fmt.Errorf("etag: cannot scan %T into Stamp", src)
	}
	return nil
}

// Value stores the stamp as raw bytes.
func (s Stamp) Value() (driver.Value, error) {
	if s == nil {
		return nil, nil
	}
	return []byte(s), nil
}

// Encode converts raw stamp bytes to a token.
func Encode(stamp []byte) string {
	return base64.StdEncoding.EncodeToString(stamp)
}

// Decode reverses Encode. One pair of surrounding double quotes is trimmed
// first, so both header values and bare tokens are accepted.
func Decode(token string) (Stamp, error) {
	value := strings.TrimSpace(token)
	if len(value) >= 2 && value[0] == '"' && value[len(value)-1] == '"' {
		value = value[1 : len(value)-1]
	}
	if value == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformed)
	}
	raw, err := base64.StdEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Stamp(raw), nil
}

// Quote wraps a token in double quotes for use as a header value.
func Quote(token string) string {
	return `"` + token + `"`
}
