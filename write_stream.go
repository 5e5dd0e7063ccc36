package omnio

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/tai-kun/omnio/internal/storage"
	"github.com/tai-kun/omnio/pkg/md5state"
)

// Flag selects the write-stream open mode.
type Flag string

const (
	// FlagWrite creates or overwrites the object.
	FlagWrite Flag = "w"

	// FlagAppend extends the object, creating it when absent. The
	// commit is guarded by the checksum observed at open.
	FlagAppend Flag = "a"

	// FlagWriteExclusive creates the object, failing when present.
	FlagWriteExclusive Flag = "wx"

	// FlagAppendExclusive creates the object append-style, failing when
	// present.
	FlagAppendExclusive Flag = "ax"
)

func (f Flag) valid() bool {
	switch f {
	case FlagWrite, FlagAppend, FlagWriteExclusive, FlagAppendExclusive:
		return true
	default:
		return false
	}
}

// WriteStream is a part-splitting object writer. Bytes stream into
// numbered part files inside a freshly allocated entity directory, each
// staged as a swap file and renamed into place as it fills. Close
// commits the catalog row and removes the displaced entity; Abort
// removes the new one. Exactly one of Close or Abort must be called.
type WriteStream struct {
	store  *Omnio
	flag   Flag
	path   Path
	put    catalogPut // template: identity, mime, tags, description, metadata
	prior  *objectDetail
	hasher *md5state.Digest

	entityDir storage.Dir
	partSize  int64
	size      int64 // total logical object size, including pre-copied bytes
	written   int64 // bytes written through this stream
	partsDone int
	partFill  int64
	writable  storage.Writable

	release  func()
	logger   *slog.Logger
	closed   bool
	abortErr error
	info     *ObjectInfo
}

// Info returns the committed row after a successful Close, nil before.
// An overwrite of an existing path retains the prior row's object id in
// the catalog; fetch via HeadObject when the id matters.
func (ws *WriteStream) Info() *ObjectInfo {
	return ws.info
}

// failure returns the error for use after the stream reached Closed.
func (ws *WriteStream) failure() error {
	if ws.abortErr != nil {
		return fmt.Errorf("%w: aborted: %w", ErrStreamClosed, ws.abortErr)
	}

	return ErrStreamClosed
}

// Path returns the destination object path.
func (ws *WriteStream) Path() Path { return ws.path }

// BytesWritten returns the number of bytes written through this stream
// so far (excluding pre-copied append bytes).
func (ws *WriteStream) BytesWritten() int64 { return ws.written }

// Write appends p to the object, splitting across part files as each
// one fills. An I/O failure leaves the stream open; the caller is
// expected to Abort.
func (ws *WriteStream) Write(p []byte) (int, error) {
	if ws.closed {
		return 0, ws.failure()
	}

	if ws.size+int64(len(p)) > MaxObjectSize {
		return 0, &InvalidInputError{
			Field:  "size",
			Reason: fmt.Sprintf("object would exceed %d bytes", int64(MaxObjectSize)),
		}
	}

	total := 0

	for len(p) > 0 {
		if ws.writable == nil {
			w, err := ws.openPart(ws.partsDone + 1)
			if err != nil {
				return total, err
			}

			ws.writable = w
		}

		remaining := ws.partSize - ws.partFill

		head := p
		if int64(len(head)) > remaining {
			head = p[:remaining]
		}

		n, err := ws.writable.Write(head)

		ws.hasher.Write(head[:n]) //nolint:errcheck // hash writes cannot fail
		ws.partFill += int64(n)
		ws.size += int64(n)
		ws.written += int64(n)
		total += n

		if err != nil {
			return total, fmt.Errorf("omnio: writing part %d of %q: %w", ws.partsDone+1, ws.path, err)
		}

		if ws.partFill == ws.partSize {
			if err := ws.finishPart(); err != nil {
				return total, err
			}
		}

		p = p[n:]
	}

	return total, nil
}

// openPart stages the numbered part file for writing.
func (ws *WriteStream) openPart(n int) (storage.Writable, error) {
	file, err := ws.entityDir.GetFile(strconv.Itoa(n), true)
	if err != nil {
		return nil, fmt.Errorf("omnio: staging part %d of %q: %w", n, ws.path, err)
	}

	w, err := file.CreateWritable(false)
	if err != nil {
		return nil, fmt.Errorf("omnio: staging part %d of %q: %w", n, ws.path, err)
	}

	return w, nil
}

// finishPart commits the in-flight part file (swap rename) and advances
// the part counter.
func (ws *WriteStream) finishPart() error {
	if err := ws.writable.Close(); err != nil {
		return fmt.Errorf("omnio: committing part %d of %q: %w", ws.partsDone+1, ws.path, err)
	}

	ws.writable = nil
	ws.partsDone++
	ws.partFill = 0

	return nil
}

// Close finalises the in-flight part, commits the catalog row per the
// open flag, removes the displaced entity, and releases the path lock.
// It returns only after the row is committed and checkpointed.
func (ws *WriteStream) Close(ctx context.Context) error {
	if ws.closed {
		return ws.failure()
	}

	ws.closed = true
	defer ws.release()

	if ws.writable != nil && ws.partFill > 0 {
		if err := ws.finishPart(); err != nil {
			ws.store.removeEntity(ws.put.EntityID)
			return err
		}
	} else if ws.writable != nil {
		// An opened but empty part never becomes a part file.
		ws.writable.Abort() //nolint:errcheck // best-effort
		ws.writable = nil
		ws.entityDir.RemoveEntry(strconv.Itoa(ws.partsDone+1), false) //nolint:errcheck // best-effort
	}

	sum, err := ParseChecksum(ws.hasher.SumHex())
	if err != nil {
		ws.store.removeEntity(ws.put.EntityID)
		return err
	}

	put := ws.put
	put.Size = ws.size
	put.NumParts = ws.partsDone
	put.PartSize = ws.partSize
	put.Checksum = sum
	put.State = HashState(ws.hasher.State())
	put.Timestamp = ws.store.now()

	if err := ws.commit(ctx, put); err != nil {
		ws.store.removeEntity(ws.put.EntityID)
		return err
	}

	if err := ws.store.cat.checkpoint(ctx); err != nil {
		ws.logger.Error("write: checkpoint failed",
			slog.String("path", ws.path.String()),
			slog.String("reason", err.Error()),
		)
	}

	// The displaced entity is unreferenced once the commit lands.
	if ws.prior != nil && !ws.prior.EntityID.Equal(put.EntityID) {
		ws.store.removeEntity(ws.prior.EntityID)
	}

	ws.info = &ObjectInfo{
		ObjectID:    put.ObjectID,
		Path:        put.Path,
		Size:        put.Size,
		NumParts:    put.NumParts,
		PartSize:    put.PartSize,
		MimeType:    put.MimeType,
		CreatedAt:   put.Timestamp,
		ModifiedAt:  put.Timestamp,
		Checksum:    put.Checksum,
		Tags:        put.Tags,
		Description: put.Description,
		EntityID:    put.EntityID,
	}

	return nil
}

// commit emits the catalog row for the stream's open flag.
func (ws *WriteStream) commit(ctx context.Context, put catalogPut) error {
	switch ws.flag {
	case FlagWrite:
		return ws.store.cat.create(ctx, put)
	case FlagAppend:
		if ws.prior == nil {
			return ws.store.cat.create(ctx, put)
		}

		return ws.store.cat.updateExclusive(ctx, catalogUpdateExclusive{
			Path:         put.Path,
			Expect:       ws.prior.Checksum,
			Checksum:     put.Checksum,
			State:        put.State,
			EntityID:     put.EntityID,
			MimeType:     optionalString(put.MimeType),
			NumParts:     put.NumParts,
			PartSize:     put.PartSize,
			Size:         put.Size,
			Tags:         optionalTags(put.Tags),
			Description:  put.Description,
			UserMetadata: put.UserMetadata,
			Timestamp:    put.Timestamp,
		})
	case FlagWriteExclusive, FlagAppendExclusive:
		return ws.store.cat.createExclusive(ctx, put)
	default:
		return &InvalidInputError{Field: "flag", Reason: fmt.Sprintf("unknown open flag %q", ws.flag)}
	}
}

// Abort removes the newly allocated entity directory and closes the
// stream with the given reason. Further use reports the reason.
func (ws *WriteStream) Abort(reason error) error {
	if ws.closed {
		return ws.failure()
	}

	ws.closed = true
	ws.abortErr = reason

	if ws.writable != nil {
		ws.writable.Abort() //nolint:errcheck // best-effort
		ws.writable = nil
	}

	ws.store.removeEntity(ws.put.EntityID)
	ws.release()

	ws.logger.Debug("write: aborted",
		slog.String("path", ws.path.String()),
		slog.String("entity", ws.put.EntityID.String()),
	)

	return nil
}

// optionalString maps "" to "not provided".
func optionalString(s string) *string {
	if s == "" {
		return nil
	}

	return &s
}

// optionalTags maps an empty tag set to "not provided".
func optionalTags(tags []string) *[]string {
	if len(tags) == 0 {
		return nil
	}

	return &tags
}

// seedFromPrior re-materialises the prior entity's parts into the new
// entity: full parts are copied and committed, and an under-filled
// final part becomes the open write cursor. Entities are never shared,
// so every byte is copied. When hashing is true the copied bytes also
// feed the digest (used when no resumable hash state was stored).
func (ws *WriteStream) seedFromPrior(priorDir storage.Dir, hashing bool) error {
	for i := 1; i <= ws.prior.NumParts; i++ {
		file, err := priorDir.GetFile(strconv.Itoa(i), false)
		if err != nil {
			return fmt.Errorf("omnio: reading prior part %d of %q: %w", i, ws.path, err)
		}

		data, err := file.ReadAll()
		if err != nil {
			return fmt.Errorf("omnio: reading prior part %d of %q: %w", i, ws.path, err)
		}

		if hashing {
			ws.hasher.Write(data) //nolint:errcheck // hash writes cannot fail
		}

		full := int64(len(data)) == ws.partSize

		if full {
			w, err := ws.openPart(ws.partsDone + 1)
			if err != nil {
				return err
			}

			if _, err := w.Write(data); err != nil {
				w.Abort() //nolint:errcheck // best-effort
				return fmt.Errorf("omnio: copying prior part %d of %q: %w", i, ws.path, err)
			}

			ws.writable = w

			if err := ws.finishPart(); err != nil {
				return err
			}

			continue
		}

		// Under-filled final part: becomes the open cursor position.
		w, err := ws.openPart(ws.partsDone + 1)
		if err != nil {
			return err
		}

		if _, err := w.Write(data); err != nil {
			w.Abort() //nolint:errcheck // best-effort
			return fmt.Errorf("omnio: copying prior part %d of %q: %w", i, ws.path, err)
		}

		ws.writable = w
		ws.partFill = int64(len(data))
	}

	ws.size = ws.prior.Size

	return nil
}
