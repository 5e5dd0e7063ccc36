package omnio

import (
	"errors"
	"fmt"
)

// Sentinel errors for store-level failure classification.
// Use errors.Is(err, omnio.ErrObjectNotFound) to check; the structured
// error types below wrap these and carry machine-readable fields.
var (
	// ErrClosed is returned by every operation on a closed store.
	ErrClosed = errors.New("omnio: store is closed")

	// ErrObjectNotFound reports that no live catalog row matches the
	// requested path (or object id, for trash operations).
	ErrObjectNotFound = errors.New("omnio: object not found")

	// ErrObjectExists reports a path conflict on an exclusive
	// create/move/copy.
	ErrObjectExists = errors.New("omnio: object already exists")

	// ErrChecksumMismatch reports a failed checksum precondition on an
	// exclusive update.
	ErrChecksumMismatch = errors.New("omnio: checksum mismatch")

	// ErrInvalidCollation reports a list collation not supported by the
	// underlying database.
	ErrInvalidCollation = errors.New("omnio: invalid collation")

	// ErrObjectSizeTooSmall reports an object size below the minimum the
	// declared part layout implies.
	ErrObjectSizeTooSmall = errors.New("omnio: object size too small")

	// ErrObjectSizeTooLarge reports an object size above the maximum the
	// declared part layout allows.
	ErrObjectSizeTooLarge = errors.New("omnio: object size too large")

	// ErrInvalidInput reports a schema validation failure on caller
	// input.
	ErrInvalidInput = errors.New("omnio: invalid input")

	// ErrEntryPathNotFound reports a missing file-system entry beneath
	// the storage root.
	ErrEntryPathNotFound = errors.New("omnio: entry path not found")

	// ErrStreamClosed is returned by write/read stream operations after
	// Close or Abort.
	ErrStreamClosed = errors.New("omnio: stream is closed")

	// ErrDatabaseNotOpen reports catalog use before open or after close.
	ErrDatabaseNotOpen = errors.New("omnio: database is not open")

	// ErrFileSystemNotOpen reports storage use before open or after
	// close.
	ErrFileSystemNotOpen = errors.New("omnio: file system is not open")
)

// InvalidInputError reports a validation failure for a specific input
// field. Limit and Actual are populated for bound violations.
type InvalidInputError struct {
	Field  string
	Reason string
	Limit  int
	Actual int
}

func (e *InvalidInputError) Error() string {
	if e.Limit > 0 {
		return fmt.Sprintf("omnio: invalid input %q: %s (limit %d, got %d)",
			e.Field, e.Reason, e.Limit, e.Actual)
	}

	return fmt.Sprintf("omnio: invalid input %q: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// ObjectNotFoundError carries the bucket and path (or object id) of a
// missing object.
type ObjectNotFoundError struct {
	Bucket   BucketName
	Path     Path
	ObjectID ObjectID
}

func (e *ObjectNotFoundError) Error() string {
	if !e.Path.IsZero() {
		return fmt.Sprintf("omnio: object %q not found in bucket %q", e.Path, e.Bucket)
	}

	return fmt.Sprintf("omnio: object id %s not found in bucket %q trash", e.ObjectID, e.Bucket)
}

func (e *ObjectNotFoundError) Unwrap() error { return ErrObjectNotFound }

// ObjectExistsError carries the bucket and path of a conflicting
// object.
type ObjectExistsError struct {
	Bucket BucketName
	Path   Path
}

func (e *ObjectExistsError) Error() string {
	return fmt.Sprintf("omnio: object %q already exists in bucket %q", e.Path, e.Bucket)
}

func (e *ObjectExistsError) Unwrap() error { return ErrObjectExists }

// ChecksumMismatchError carries the expected and actual checksums of a
// failed exclusive-update precondition.
type ChecksumMismatchError struct {
	Bucket   BucketName
	Path     Path
	Expected Checksum
	Actual   Checksum
}

func (e *ChecksumMismatchError) Error() string {
	return fmt.Sprintf("omnio: checksum mismatch for %q in bucket %q: expected %s, got %s",
		e.Path, e.Bucket, e.Expected, e.Actual)
}

func (e *ChecksumMismatchError) Unwrap() error { return ErrChecksumMismatch }

// ObjectSizeError reports a violated part-layout size bound.
type ObjectSizeError struct {
	Bucket   BucketName
	Path     Path
	Size     int64
	NumParts int
	PartSize int64
	TooLarge bool
}

func (e *ObjectSizeError) Error() string {
	kind := "small"
	if e.TooLarge {
		kind = "large"
	}

	return fmt.Sprintf("omnio: object %q size %d too %s for %d parts of %d bytes",
		e.Path, e.Size, kind, e.NumParts, e.PartSize)
}

func (e *ObjectSizeError) Unwrap() error {
	if e.TooLarge {
		return ErrObjectSizeTooLarge
	}

	return ErrObjectSizeTooSmall
}

// InvalidCollationError carries the rejected collation name and the set
// the database actually supports.
type InvalidCollationError struct {
	Collation string
	Available []string
}

func (e *InvalidCollationError) Error() string {
	return fmt.Sprintf("omnio: collation %q is not supported (available: %v)",
		e.Collation, e.Available)
}

func (e *InvalidCollationError) Unwrap() error { return ErrInvalidCollation }

// EntryPathNotFoundError carries the missing entry path beneath the
// storage root.
type EntryPathNotFoundError struct {
	Bucket BucketName
	Entry  string
}

func (e *EntryPathNotFoundError) Error() string {
	return fmt.Sprintf("omnio: entry %q not found in bucket %q", e.Entry, e.Bucket)
}

func (e *EntryPathNotFoundError) Unwrap() error { return ErrEntryPathNotFound }
