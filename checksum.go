package omnio

import (
	"database/sql"
	"database/sql/driver"
	"fmt"
	"strings"
)

// checksumHexLen is the length of a hex-encoded MD5 digest.
const checksumHexLen = 32

// Checksum is a 32-hex-character MD5 digest of a full object byte
// stream. The zero value represents an absent checksum (empty object
// rows still carry the digest of the empty stream, and trashed rows keep
// theirs, so the zero value only appears for unset preconditions and
// reads that did not select the checksum).
type Checksum struct {
	value string
}

// ParseChecksum validates raw as a 32-character hex MD5 digest.
// Uppercase input is normalised to lowercase.
func ParseChecksum(raw string) (Checksum, error) {
	if len(raw) != checksumHexLen {
		return Checksum{}, &InvalidInputError{
			Field:  "checksum",
			Reason: "must be 32 hex characters",
			Limit:  checksumHexLen,
			Actual: len(raw),
		}
	}

	lower := strings.ToLower(raw)

	for i := 0; i < len(lower); i++ {
		c := lower[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return Checksum{}, &InvalidInputError{
				Field:  "checksum",
				Reason: fmt.Sprintf("invalid hex character %q", c),
			}
		}
	}

	return Checksum{value: lower}, nil
}

// String returns the lowercase hex digest, or "" for the zero value.
func (c Checksum) String() string { return c.value }

// IsZero reports whether this is the zero-value Checksum.
func (c Checksum) IsZero() bool { return c.value == "" }

// Equal reports whether two checksums are identical.
func (c Checksum) Equal(other Checksum) bool { return c.value == other.value }

// Scan implements sql.Scanner.
func (c *Checksum) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*c = Checksum{}
		return nil
	case string:
		parsed, err := ParseChecksum(v)
		if err != nil {
			return err
		}

		*c = parsed

		return nil
	case []byte:
		return c.Scan(string(v))
	default:
		return fmt.Errorf("omnio: Checksum.Scan: unsupported type %T", src)
	}
}

// Value implements driver.Valuer. The zero Checksum writes SQL NULL.
func (c Checksum) Value() (driver.Value, error) {
	if c.IsZero() {
		return nil, nil
	}

	return c.value, nil
}

// HashState is the exported internal state of the streaming MD5 hasher
// after the last committed append, as an opaque array of machine words.
// It is persisted in the md5state BIGINT[] column and lets a later
// append session resume the digest without re-reading prior parts.
type HashState []uint64

// Clone returns an independent copy of the state.
func (h HashState) Clone() HashState {
	if h == nil {
		return nil
	}

	out := make(HashState, len(h))
	copy(out, h)

	return out
}

// Words returns the state as int64 words for the BIGINT[] column.
// Values round-trip through two's complement.
func (h HashState) Words() []int64 {
	if h == nil {
		return nil
	}

	out := make([]int64, len(h))
	for i, w := range h {
		out[i] = int64(w)
	}

	return out
}

// HashStateFromWords rebuilds a HashState from BIGINT[] column words.
func HashStateFromWords(words []int64) HashState {
	if words == nil {
		return nil
	}

	out := make(HashState, len(words))
	for i, w := range words {
		out[i] = uint64(w)
	}

	return out
}

var (
	_ driver.Valuer = Checksum{}
	_ sql.Scanner   = (*Checksum)(nil)
)
