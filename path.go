package omnio

import (
	"database/sql"
	"database/sql/driver"
	"encoding"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Size and count bounds enforced at the API boundary. Violations surface
// as *InvalidInputError.
const (
	// MaxPathBytes is the maximum byte length of an object path.
	MaxPathBytes = 1024

	// MaxDescriptionBytes is the maximum byte length of an object
	// description, measured before search normalisation.
	MaxDescriptionBytes = 1024

	// MaxTagBytes is the maximum byte length of a single tag.
	MaxTagBytes = 64

	// MaxTags is the maximum number of tags per object.
	MaxTags = 64

	// MaxUserMetadataBytes is the maximum encoded byte length of the
	// user metadata JSON document.
	MaxUserMetadataBytes = 4096

	// MinPartSize is the smallest allowed part size.
	MinPartSize = 1

	// DefaultPartSize is the part size used when none is configured.
	DefaultPartSize = 8 << 20

	// MaxObjectSize is the largest representable object size
	// (2^53-1, exactly representable in every supported runtime).
	MaxObjectSize = 1<<53 - 1
)

// Path is a validated, immutable object path: 1–1024 bytes of UTF-8.
// The string is stored as received; Path.String() is the canonical form
// used as the catalog path_key and as the per-path lock key. The zero
// value (Path{}) represents an absent path.
type Path struct {
	value string
}

// ParsePath validates raw and returns it as a Path. The path must be
// non-empty, valid UTF-8, and at most MaxPathBytes bytes.
func ParsePath(raw string) (Path, error) {
	if raw == "" {
		return Path{}, &InvalidInputError{Field: "objectPath", Reason: "must not be empty"}
	}

	if len(raw) > MaxPathBytes {
		return Path{}, &InvalidInputError{
			Field:  "objectPath",
			Reason: "exceeds maximum byte length",
			Limit:  MaxPathBytes,
			Actual: len(raw),
		}
	}

	if !utf8.ValidString(raw) {
		return Path{}, &InvalidInputError{Field: "objectPath", Reason: "must be valid UTF-8"}
	}

	return Path{value: raw}, nil
}

// MustParsePath is ParsePath for compile-time-known paths; it panics on
// invalid input. Intended for tests and fixtures.
func MustParsePath(raw string) Path {
	p, err := ParsePath(raw)
	if err != nil {
		panic(err)
	}

	return p
}

// String returns the path exactly as received.
func (p Path) String() string {
	return p.value
}

// IsZero reports whether this is the zero-value Path.
func (p Path) IsZero() bool {
	return p.value == ""
}

// Equal reports whether two paths are byte-identical.
func (p Path) Equal(other Path) bool {
	return p.value == other.value
}

// Segments returns the path split on "/". A path with no separator
// yields a single segment.
func (p Path) Segments() []string {
	return strings.Split(p.value, "/")
}

// Depth returns the number of path segments.
func (p Path) Depth() int {
	return strings.Count(p.value, "/") + 1
}

// Dirname returns everything before the final "/" separator, or "" for
// a path with no separator.
func (p Path) Dirname() string {
	i := strings.LastIndexByte(p.value, '/')
	if i < 0 {
		return ""
	}

	return p.value[:i]
}

// Dir returns the parent directory as a DirPath (empty for a top-level
// object).
func (p Path) Dir() DirPath {
	segs := p.Segments()
	return DirPath(segs[:len(segs)-1])
}

// Basename returns the final path segment.
func (p Path) Basename() string {
	i := strings.LastIndexByte(p.value, '/')
	return p.value[i+1:]
}

// Extname returns the extension of the basename including the leading
// dot, or "" when the basename has no extension. A leading dot alone
// (".profile") is not an extension.
func (p Path) Extname() string {
	base := p.Basename()

	i := strings.LastIndexByte(base, '.')
	if i <= 0 {
		return ""
	}

	return base[i:]
}

// Filename returns the basename with the extension removed.
func (p Path) Filename() string {
	base := p.Basename()
	return strings.TrimSuffix(base, p.Extname())
}

// MarshalText implements encoding.TextMarshaler.
func (p Path) MarshalText() ([]byte, error) {
	return []byte(p.value), nil
}

// UnmarshalText implements encoding.TextUnmarshaler with full
// validation.
func (p *Path) UnmarshalText(text []byte) error {
	parsed, err := ParsePath(string(text))
	if err != nil {
		return err
	}

	*p = parsed

	return nil
}

// Scan implements sql.Scanner.
func (p *Path) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = Path{}
		return nil
	case string:
		return p.UnmarshalText([]byte(v))
	case []byte:
		return p.UnmarshalText(v)
	default:
		return fmt.Errorf("omnio: Path.Scan: unsupported type %T", src)
	}
}

// Value implements driver.Valuer. The zero Path writes SQL NULL.
func (p Path) Value() (driver.Value, error) {
	if p.IsZero() {
		return nil, nil
	}

	return p.value, nil
}

// DirPath is a directory identified by its segment list. The empty
// DirPath is the bucket root.
type DirPath []string

// ParseDirPath validates segs as a directory path: no empty segment,
// and the joined form must fit within MaxPathBytes.
func ParseDirPath(segs []string) (DirPath, error) {
	total := 0

	for i, seg := range segs {
		if seg == "" {
			return nil, &InvalidInputError{
				Field:  "dirPath",
				Reason: fmt.Sprintf("segment %d is empty", i),
			}
		}

		if !utf8.ValidString(seg) {
			return nil, &InvalidInputError{
				Field:  "dirPath",
				Reason: fmt.Sprintf("segment %d is not valid UTF-8", i),
			}
		}

		total += len(seg)
	}

	if len(segs) > 1 {
		total += len(segs) - 1
	}

	if total > MaxPathBytes {
		return nil, &InvalidInputError{
			Field:  "dirPath",
			Reason: "joined path exceeds maximum byte length",
			Limit:  MaxPathBytes,
			Actual: total,
		}
	}

	out := make(DirPath, len(segs))
	copy(out, segs)

	return out, nil
}

// IsRoot reports whether this is the bucket root.
func (d DirPath) IsRoot() bool {
	return len(d) == 0
}

// Depth returns the number of segments.
func (d DirPath) Depth() int {
	return len(d)
}

// String returns the "/"-joined form (empty for the root).
func (d DirPath) String() string {
	return strings.Join(d, "/")
}

// Join appends name to the directory and parses the result as a Path.
func (d DirPath) Join(name string) (Path, error) {
	if d.IsRoot() {
		return ParsePath(name)
	}

	return ParsePath(d.String() + "/" + name)
}

// bucketNameMinLen and bucketNameMaxLen bound BucketName per S3-style
// naming rules.
const (
	bucketNameMinLen = 3
	bucketNameMaxLen = 63
)

// BucketName is a validated bucket name: 3–63 bytes of lowercase
// letters, digits, "-", "_" and ".", starting and ending alphanumeric.
type BucketName struct {
	value string
}

// ParseBucketName validates raw and returns it as a BucketName.
func ParseBucketName(raw string) (BucketName, error) {
	if len(raw) < bucketNameMinLen || len(raw) > bucketNameMaxLen {
		return BucketName{}, &InvalidInputError{
			Field:  "bucketName",
			Reason: "length must be between 3 and 63 bytes",
			Limit:  bucketNameMaxLen,
			Actual: len(raw),
		}
	}

	for i := 0; i < len(raw); i++ {
		c := raw[i]

		switch {
		case c >= 'a' && c <= 'z', c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '.':
			if i == 0 || i == len(raw)-1 {
				return BucketName{}, &InvalidInputError{
					Field:  "bucketName",
					Reason: "must start and end with a lowercase letter or digit",
				}
			}
		default:
			return BucketName{}, &InvalidInputError{
				Field:  "bucketName",
				Reason: fmt.Sprintf("invalid character %q", c),
			}
		}
	}

	return BucketName{value: raw}, nil
}

// String returns the bucket name.
func (b BucketName) String() string {
	return b.value
}

// IsZero reports whether this is the zero-value BucketName.
func (b BucketName) IsZero() bool {
	return b.value == ""
}

// Compile-time interface assertions.
var (
	_ fmt.Stringer             = Path{}
	_ encoding.TextMarshaler   = Path{}
	_ encoding.TextUnmarshaler = (*Path)(nil)
	_ driver.Valuer            = Path{}
	_ sql.Scanner              = (*Path)(nil)
)
