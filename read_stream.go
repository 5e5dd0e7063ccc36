package omnio

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/tai-kun/omnio/internal/storage"
)

// ReadStream reads an object's parts in order. Next yields one part per
// call; the io.Reader methods drain the same sequence byte-wise. The
// stream holds a shared lock on the path until Close, which is
// idempotent.
type ReadStream struct {
	bucket    BucketName
	path      Path
	entityDir storage.Dir
	numParts  int
	size      int64

	nextPart int
	buffered []byte
	release  func()
	closed   bool
}

func newReadStream(bucket BucketName, path Path, entityDir storage.Dir, numParts int, size int64, release func()) *ReadStream {
	return &ReadStream{
		bucket:    bucket,
		path:      path,
		entityDir: entityDir,
		numParts:  numParts,
		size:      size,
		nextPart:  1,
		release:   release,
	}
}

// Size returns the total object size in bytes.
func (rs *ReadStream) Size() int64 { return rs.size }

// NumParts returns the number of part files backing the object.
func (rs *ReadStream) NumParts() int { return rs.numParts }

// Next returns the contents of the next part, or io.EOF after the last
// one. A part file missing underneath a live row surfaces as
// *EntryPathNotFoundError.
func (rs *ReadStream) Next() ([]byte, error) {
	if rs.closed {
		return nil, ErrStreamClosed
	}

	if rs.nextPart > rs.numParts {
		return nil, io.EOF
	}

	name := strconv.Itoa(rs.nextPart)

	file, err := rs.entityDir.GetFile(name, false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &EntryPathNotFoundError{Bucket: rs.bucket, Entry: name}
		}

		return nil, fmt.Errorf("omnio: opening part %d of %q: %w", rs.nextPart, rs.path, err)
	}

	data, err := file.ReadAll()
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &EntryPathNotFoundError{Bucket: rs.bucket, Entry: name}
		}

		return nil, fmt.Errorf("omnio: reading part %d of %q: %w", rs.nextPart, rs.path, err)
	}

	rs.nextPart++

	return data, nil
}

// Read implements io.Reader over the part sequence.
func (rs *ReadStream) Read(p []byte) (int, error) {
	if rs.closed {
		return 0, ErrStreamClosed
	}

	for len(rs.buffered) == 0 {
		chunk, err := rs.Next()
		if err != nil {
			return 0, err
		}

		rs.buffered = chunk
	}

	n := copy(p, rs.buffered)
	rs.buffered = rs.buffered[n:]

	return n, nil
}

// Bytes drains the remaining stream into one buffer.
func (rs *ReadStream) Bytes() ([]byte, error) {
	if rs.closed {
		return nil, ErrStreamClosed
	}

	out := make([]byte, 0, rs.size)

	if len(rs.buffered) > 0 {
		out = append(out, rs.buffered...)
		rs.buffered = nil
	}

	for {
		chunk, err := rs.Next()
		if errors.Is(err, io.EOF) {
			return out, nil
		}

		if err != nil {
			return nil, err
		}

		out = append(out, chunk...)
	}
}

// Close releases the path lock. It is idempotent.
func (rs *ReadStream) Close() error {
	if rs.closed {
		return nil
	}

	rs.closed = true
	rs.buffered = nil
	rs.release()

	return nil
}

var _ io.ReadCloser = (*ReadStream)(nil)
