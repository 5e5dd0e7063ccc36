package omnio

import (
	"database/sql"
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
)

// ObjectID identifies a catalog row. IDs are UUIDv7, so creation order
// is reflected in lexicographic order, which the catalog relies on for
// deterministic listing of trashed rows.
type ObjectID struct {
	id uuid.UUID
}

// NewObjectID allocates a fresh UUIDv7 ObjectID.
func NewObjectID() (ObjectID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return ObjectID{}, fmt.Errorf("omnio: generating object id: %w", err)
	}

	return ObjectID{id: u}, nil
}

// ParseObjectID parses the canonical textual form of an ObjectID.
func ParseObjectID(raw string) (ObjectID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return ObjectID{}, &InvalidInputError{Field: "objectId", Reason: err.Error()}
	}

	return ObjectID{id: u}, nil
}

// String returns the canonical lowercase UUID form.
func (o ObjectID) String() string { return o.id.String() }

// IsZero reports whether this is the zero-value ObjectID.
func (o ObjectID) IsZero() bool { return o.id == uuid.Nil }

// Scan implements sql.Scanner.
func (o *ObjectID) Scan(src any) error {
	return scanUUID((*uuid.UUID)(&o.id), "ObjectID", src)
}

// Value implements driver.Valuer.
func (o ObjectID) Value() (driver.Value, error) {
	if o.IsZero() {
		return nil, nil
	}

	return o.id.String(), nil
}

// EntityID identifies a physical content directory under
// entities/<EntityID>/. Every write allocates a fresh one; entities are
// never shared between rows.
type EntityID struct {
	id uuid.UUID
}

// NewEntityID allocates a fresh UUIDv7 EntityID.
func NewEntityID() (EntityID, error) {
	u, err := uuid.NewV7()
	if err != nil {
		return EntityID{}, fmt.Errorf("omnio: generating entity id: %w", err)
	}

	return EntityID{id: u}, nil
}

// ParseEntityID parses the canonical textual form of an EntityID.
func ParseEntityID(raw string) (EntityID, error) {
	u, err := uuid.Parse(raw)
	if err != nil {
		return EntityID{}, &InvalidInputError{Field: "entityId", Reason: err.Error()}
	}

	return EntityID{id: u}, nil
}

// String returns the canonical lowercase UUID form.
func (e EntityID) String() string { return e.id.String() }

// IsZero reports whether this is the zero-value EntityID.
func (e EntityID) IsZero() bool { return e.id == uuid.Nil }

// Equal reports whether two EntityIDs are identical.
func (e EntityID) Equal(other EntityID) bool { return e.id == other.id }

// Scan implements sql.Scanner.
func (e *EntityID) Scan(src any) error {
	return scanUUID((*uuid.UUID)(&e.id), "EntityID", src)
}

// Value implements driver.Valuer.
func (e EntityID) Value() (driver.Value, error) {
	if e.IsZero() {
		return nil, nil
	}

	return e.id.String(), nil
}

// scanUUID handles the source types the DuckDB driver produces for UUID
// columns: string, []byte and native uuid values.
func scanUUID(dst *uuid.UUID, typ string, src any) error {
	switch v := src.(type) {
	case nil:
		*dst = uuid.Nil
		return nil
	case string:
		u, err := uuid.Parse(v)
		if err != nil {
			return fmt.Errorf("omnio: %s.Scan: %w", typ, err)
		}

		*dst = u

		return nil
	case []byte:
		u, err := uuid.ParseBytes(v)
		if err != nil {
			return fmt.Errorf("omnio: %s.Scan: %w", typ, err)
		}

		*dst = u

		return nil
	case [16]byte:
		*dst = uuid.UUID(v)
		return nil
	default:
		return fmt.Errorf("omnio: %s.Scan: unsupported type %T", typ, src)
	}
}

// Compile-time interface assertions.
var (
	_ driver.Valuer = ObjectID{}
	_ sql.Scanner   = (*ObjectID)(nil)
	_ driver.Valuer = EntityID{}
	_ sql.Scanner   = (*EntityID)(nil)
)
