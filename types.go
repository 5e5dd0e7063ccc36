package omnio

import (
	"io"
	"time"
)

// ObjectInfo is the catalog's view of one object. Which fields are
// populated depends on the ReadSelect used to fetch it; ObjectID and
// Path are always present.
type ObjectInfo struct {
	ObjectID     ObjectID
	Path         Path
	Size         int64
	NumParts     int
	PartSize     int64
	MimeType     string
	CreatedAt    time.Time
	ModifiedAt   time.Time
	Checksum     Checksum
	Tags         []string
	Description  *string
	UserMetadata any
	EntityID     EntityID
}

// Object couples an ObjectInfo with an open ReadStream. Close releases
// the stream (and its path lock); the convenience accessors drain and
// close it in one call.
type Object struct {
	Info   ObjectInfo
	stream *ReadStream
}

// Stream returns the underlying part reader. The caller owns Close.
func (o *Object) Stream() *ReadStream { return o.stream }

// Bytes drains the object into one buffer and closes the stream.
func (o *Object) Bytes() ([]byte, error) {
	defer o.stream.Close()
	return o.stream.Bytes()
}

// Text drains the object as a string and closes the stream.
func (o *Object) Text() (string, error) {
	data, err := o.Bytes()
	if err != nil {
		return "", err
	}

	return string(data), nil
}

// Close releases the read stream. Idempotent.
func (o *Object) Close() error { return o.stream.Close() }

var _ io.Closer = (*Object)(nil)
