// Package omnio is an embedded, single-bucket object store coupling a
// content-addressed chunked file layout with a relational metadata
// catalog. Objects stream in and out as fixed-size parts; the catalog
// tracks identity, path hierarchy, checksums, tags, descriptions, user
// metadata, and a soft-delete trash lifecycle, and serves directory
// listings and BM25 full-text search over descriptions.
package omnio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tai-kun/omnio/internal/database"
	"github.com/tai-kun/omnio/internal/storage"
	"github.com/tai-kun/omnio/pkg/md5state"
)

// copyWorkers bounds the parallel per-part copies in CopyObject.
const copyWorkers = 4

// Omnio is the store coordinator. It owns the lock manager, the
// metadata catalog, and the entity tree, and sequences them under a
// per-path read/write lock discipline. All methods are safe for
// concurrent use.
type Omnio struct {
	mu     sync.Mutex
	closed bool

	root     string
	bucket   BucketName
	db       *sql.DB
	cat      *catalog
	entities storage.Dir
	locks    *keyedLock
	partSize int64
	logger   *slog.Logger
	codec    JSONCodec
	tsearch  TextSearch
	nowFn    func() time.Time
}

// Open opens (creating as needed) the bucket rooted at root. The layout
// beneath it is buckets/<bucket>/metadata/duckdb for the catalog and
// buckets/<bucket>/entities/ for content. Leftover in-progress swap
// files from a crashed writer are swept on open.
func Open(ctx context.Context, root string, opts ...Option) (*Omnio, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	bucket, err := ParseBucketName(cfg.bucket)
	if err != nil {
		return nil, err
	}

	if cfg.partSize < MinPartSize {
		return nil, &InvalidInputError{
			Field:  "partSize",
			Reason: "below minimum",
			Limit:  MinPartSize,
			Actual: int(cfg.partSize),
		}
	}

	var (
		rootDir storage.Dir
		dbPath  string
	)

	if cfg.inMemory {
		rootDir = storage.NewMemDir()
		dbPath = database.InMemory
	} else {
		rootDir, err = storage.NewOSDir(root)
		if err != nil {
			return nil, err
		}

		dbPath = filepath.Join(root, "buckets", bucket.String(), "metadata", "duckdb")
	}

	bucketDir, err := dirAt(rootDir, "buckets", bucket.String())
	if err != nil {
		return nil, err
	}

	if _, err := bucketDir.GetDir("metadata", true); err != nil {
		return nil, err
	}

	entities, err := bucketDir.GetDir("entities", true)
	if err != nil {
		return nil, err
	}

	if swept, err := storage.CleanSwap(entities); err != nil {
		cfg.logger.Warn("omnio: swap sweep failed", slog.String("reason", err.Error()))
	} else if swept > 0 {
		cfg.logger.Info("omnio: swept crashed writes", slog.Int("count", swept))
	}

	db, err := database.Open(ctx, dbPath, cfg.logger)
	if err != nil {
		return nil, err
	}

	cat := newCatalog(db, bucket, cfg.tsearch, cfg.codec, cfg.logger)

	if err := cat.openCatalog(ctx); err != nil {
		db.Close()
		return nil, err
	}

	cfg.logger.Info("omnio: opened",
		slog.String("bucket", bucket.String()),
		slog.String("root", root),
		slog.Int64("part_size", cfg.partSize),
	)

	return &Omnio{
		root:     root,
		bucket:   bucket,
		db:       db,
		cat:      cat,
		entities: entities,
		locks:    newKeyedLock(),
		partSize: cfg.partSize,
		logger:   cfg.logger,
		codec:    cfg.codec,
		tsearch:  cfg.tsearch,
		nowFn:    cfg.nowFn,
	}, nil
}

// dirAt walks (creating) nested child directories.
func dirAt(dir storage.Dir, names ...string) (storage.Dir, error) {
	var err error

	for _, name := range names {
		dir, err = dir.GetDir(name, true)
		if err != nil {
			return nil, err
		}
	}

	return dir, nil
}

// Close checkpoints the catalog and closes the database. Further calls
// on the store fail with ErrClosed.
func (o *Omnio) Close(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return nil
	}

	o.closed = true

	catErr := o.cat.closeCatalog(ctx)

	if err := o.db.Close(); err != nil {
		return fmt.Errorf("omnio: closing database: %w", err)
	}

	o.logger.Info("omnio: closed", slog.String("bucket", o.bucket.String()))

	return catErr
}

// Bucket returns the bucket this store serves.
func (o *Omnio) Bucket() BucketName { return o.bucket }

func (o *Omnio) ready() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return ErrClosed
	}

	return nil
}

func (o *Omnio) now() time.Time { return o.nowFn() }

// removeEntity deletes an entity directory recursively. Failures are a
// space leak, not a correctness problem; they are logged and dropped.
func (o *Omnio) removeEntity(id EntityID) {
	err := o.entities.RemoveEntry(id.String(), true)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		o.logger.Error("omnio: removing entity failed",
			slog.String("entity", id.String()),
			slog.String("reason", err.Error()),
		)
	}
}

// repairDangling drops a catalog row whose entity directory vanished.
// Best-effort: the caller surfaces ObjectNotFound regardless.
func (o *Omnio) repairDangling(ctx context.Context, path Path, id ObjectID) {
	o.logger.Error("omnio: dangling catalog row",
		slog.String("path", path.String()),
		slog.String("object", id.String()),
	)

	if err := o.cat.deleteRow(ctx, id); err != nil {
		o.logger.Error("omnio: dropping dangling row failed",
			slog.String("object", id.String()),
			slog.String("reason", err.Error()),
		)
	}
}

// PutOptions controls PutObject and CreateWriteStream.
type PutOptions struct {
	// Flag is the open mode; default FlagWrite.
	Flag Flag

	// MimeType overrides extension-based detection.
	MimeType string

	// Tags, Description and UserMetadata populate the catalog row.
	Tags         []string
	Description  *string
	UserMetadata any

	// PartSize overrides the store's part size for this object.
	// Appends to an existing non-empty object keep its part size.
	PartSize int64
}

// validate normalises the options and enforces the input bounds.
func (p *PutOptions) validate(path Path) (string, error) {
	if p.Flag == "" {
		p.Flag = FlagWrite
	}

	if !p.Flag.valid() {
		return "", &InvalidInputError{Field: "flag", Reason: fmt.Sprintf("unknown open flag %q", p.Flag)}
	}

	if len(p.Tags) > MaxTags {
		return "", &InvalidInputError{
			Field:  "objectTags",
			Reason: "too many tags",
			Limit:  MaxTags,
			Actual: len(p.Tags),
		}
	}

	for _, tag := range p.Tags {
		if tag == "" || len(tag) > MaxTagBytes {
			return "", &InvalidInputError{
				Field:  "objectTags",
				Reason: fmt.Sprintf("tag %q must be 1-%d bytes", tag, MaxTagBytes),
				Limit:  MaxTagBytes,
				Actual: len(tag),
			}
		}
	}

	if p.Description != nil && len(*p.Description) > MaxDescriptionBytes {
		return "", &InvalidInputError{
			Field:  "description",
			Reason: "exceeds maximum byte length",
			Limit:  MaxDescriptionBytes,
			Actual: len(*p.Description),
		}
	}

	mimeType := p.MimeType
	if mimeType == "" {
		mimeType = detectMimeType(path)
	}

	return mimeType, nil
}

// detectMimeType maps the path extension to a media type, with any
// parameters stripped.
func detectMimeType(path Path) string {
	typ := mime.TypeByExtension(path.Extname())

	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}

	return typ
}

// encodeUserMetadata runs the codec and enforces the size bound.
func (o *Omnio) encodeUserMetadata(v any) (*string, error) {
	if v == nil {
		return nil, nil
	}

	encoded, err := o.codec.Marshal(v)
	if err != nil {
		return nil, err
	}

	if len(encoded) > MaxUserMetadataBytes {
		return nil, &InvalidInputError{
			Field:  "userMetadata",
			Reason: "exceeds maximum encoded byte length",
			Limit:  MaxUserMetadataBytes,
			Actual: len(encoded),
		}
	}

	return &encoded, nil
}

// CreateWriteStream acquires the write lock on path and opens a
// part-splitting writer in the given mode. The lock is held until the
// stream's Close or Abort.
func (o *Omnio) CreateWriteStream(ctx context.Context, path Path, opts PutOptions) (*WriteStream, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	if path.IsZero() {
		return nil, &InvalidInputError{Field: "objectPath", Reason: "must not be empty"}
	}

	mimeType, err := opts.validate(path)
	if err != nil {
		return nil, err
	}

	userMeta, err := o.encodeUserMetadata(opts.UserMetadata)
	if err != nil {
		return nil, err
	}

	release, err := o.locks.Lock(ctx, path.String())
	if err != nil {
		return nil, err
	}

	ws, err := o.openWriteStream(ctx, path, opts, mimeType, userMeta, release)
	if err != nil {
		release()
		return nil, err
	}

	return ws, nil
}

// openWriteStream does the lock-held half of CreateWriteStream.
func (o *Omnio) openWriteStream(
	ctx context.Context, path Path, opts PutOptions,
	mimeType string, userMeta *string, release func(),
) (*WriteStream, error) {
	var prior *objectDetail

	detail, err := o.cat.readDetail(ctx, path)

	switch {
	case err == nil:
		prior = detail
	case errors.Is(err, ErrObjectNotFound):
	default:
		return nil, err
	}

	objectID, err := NewObjectID()
	if err != nil {
		return nil, err
	}

	entityID, err := NewEntityID()
	if err != nil {
		return nil, err
	}

	partSize := o.partSize
	if opts.PartSize > 0 {
		partSize = opts.PartSize
	}

	appending := opts.Flag == FlagAppend && prior != nil

	if appending && prior.NumParts > 0 {
		partSize = prior.PartSize
	}

	if partSize < MinPartSize {
		return nil, &InvalidInputError{
			Field:  "partSize",
			Reason: "below minimum",
			Limit:  MinPartSize,
			Actual: int(partSize),
		}
	}

	hasher := md5state.New()
	hashDuringSeed := false

	if appending {
		if prior.State != nil {
			restored, err := md5state.Restore(prior.State)
			if err != nil {
				return nil, err
			}

			if restored.Len() != uint64(prior.Size) {
				return nil, fmt.Errorf("omnio: stored hash state for %q does not cover %d bytes", path, prior.Size)
			}

			hasher = restored
		} else {
			hashDuringSeed = true
		}
	}

	entityDir, err := o.entities.GetDir(entityID.String(), true)
	if err != nil {
		return nil, err
	}

	ws := &WriteStream{
		store: o,
		flag:  opts.Flag,
		path:  path,
		put: catalogPut{
			ObjectID:     objectID,
			Path:         path,
			EntityID:     entityID,
			MimeType:     mimeType,
			Tags:         opts.Tags,
			Description:  opts.Description,
			UserMetadata: userMeta,
		},
		prior:     prior,
		hasher:    hasher,
		entityDir: entityDir,
		partSize:  partSize,
		release:   release,
		logger:    o.logger,
	}

	if appending {
		priorDir, err := o.entities.GetDir(prior.EntityID.String(), false)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				// Dangling row: drop it and start the object over.
				o.repairDangling(ctx, path, prior.ObjectID)

				ws.prior = nil
				ws.hasher = md5state.New()

				return ws, nil
			}

			o.removeEntity(entityID)

			return nil, err
		}

		if err := ws.seedFromPrior(priorDir, hashDuringSeed); err != nil {
			o.removeEntity(entityID)
			return nil, err
		}
	}

	return ws, nil
}

// PutObject streams r into path in one call and returns the committed
// row. On any failure the write is aborted and the store is unchanged.
func (o *Omnio) PutObject(ctx context.Context, path Path, r io.Reader, opts PutOptions) (*ObjectInfo, error) {
	ws, err := o.CreateWriteStream(ctx, path, opts)
	if err != nil {
		return nil, err
	}

	if _, err := io.Copy(ws, r); err != nil {
		ws.Abort(err) //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	if err := ws.Close(ctx); err != nil {
		return nil, err
	}

	return ws.Info(), nil
}

// PutString writes a literal string object.
func (o *Omnio) PutString(ctx context.Context, path Path, data string, opts PutOptions) (*ObjectInfo, error) {
	return o.PutObject(ctx, path, strings.NewReader(data), opts)
}

// GetObject acquires a read lock on path and returns the object's
// metadata with an open part stream. The lock is held until the object
// (or its stream) is closed.
func (o *Omnio) GetObject(ctx context.Context, path Path) (*Object, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, path.String())
	if err != nil {
		return nil, err
	}

	info, entityDir, err := o.openEntity(ctx, path, FullReadSelect())
	if err != nil {
		release()
		return nil, err
	}

	stream := newReadStream(o.bucket, path, entityDir, info.NumParts, info.Size, release)

	return &Object{Info: *info, stream: stream}, nil
}

// CreateReadStream acquires a read lock on path and returns the part
// stream alone.
func (o *Omnio) CreateReadStream(ctx context.Context, path Path) (*ReadStream, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, path.String())
	if err != nil {
		return nil, err
	}

	sel := ReadSelect{Size: true, EntityID: true}

	info, entityDir, err := o.openEntity(ctx, path, sel)
	if err != nil {
		release()
		return nil, err
	}

	return newReadStream(o.bucket, path, entityDir, info.NumParts, info.Size, release), nil
}

// openEntity reads the row and opens its entity directory, repairing
// the row when the directory vanished.
func (o *Omnio) openEntity(ctx context.Context, path Path, sel ReadSelect) (*ObjectInfo, storage.Dir, error) {
	sel.Size = true
	sel.EntityID = true

	info, err := o.cat.read(ctx, sel, path)
	if err != nil {
		return nil, nil, err
	}

	entityDir, err := o.entities.GetDir(info.EntityID.String(), false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			o.repairDangling(ctx, path, info.ObjectID)
			return nil, nil, &ObjectNotFoundError{Bucket: o.bucket, Path: path}
		}

		return nil, nil, err
	}

	return info, entityDir, nil
}

// HeadObject returns the catalog row without touching content.
func (o *Omnio) HeadObject(ctx context.Context, path Path) (*ObjectInfo, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, path.String())
	if err != nil {
		return nil, err
	}
	defer release()

	return o.cat.read(ctx, FullReadSelect(), path)
}

// Exists reports whether a live object sits at path.
func (o *Omnio) Exists(ctx context.Context, path Path) (bool, error) {
	if err := o.ready(); err != nil {
		return false, err
	}

	release, err := o.locks.RLock(ctx, path.String())
	if err != nil {
		return false, err
	}
	defer release()

	return o.cat.existsObject(ctx, path)
}

// DirExists reports whether any live object sits beneath dir. The
// bucket root always exists.
func (o *Omnio) DirExists(ctx context.Context, dir DirPath) (bool, error) {
	if err := o.ready(); err != nil {
		return false, err
	}

	release, err := o.locks.RLock(ctx, dir.String())
	if err != nil {
		return false, err
	}
	defer release()

	return o.cat.existsDir(ctx, dir)
}

// Stat reports whether path names an object, a directory, or both.
func (o *Omnio) Stat(ctx context.Context, path Path) (Stat, error) {
	if err := o.ready(); err != nil {
		return Stat{}, err
	}

	release, err := o.locks.RLock(ctx, path.String())
	if err != nil {
		return Stat{}, err
	}
	defer release()

	return o.cat.stat(ctx, path)
}

// List returns the direct children of a directory.
func (o *Omnio) List(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, opts.Dir.String())
	if err != nil {
		return nil, err
	}
	defer release()

	return o.cat.list(ctx, opts)
}

// ListTrash lists trashed rows beneath a directory.
func (o *Omnio) ListTrash(ctx context.Context, opts ListOptions) ([]TrashEntry, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, opts.Dir.String())
	if err != nil {
		return nil, err
	}
	defer release()

	return o.cat.listInTrash(ctx, opts)
}

// Search runs a BM25 description search beneath a directory.
func (o *Omnio) Search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	if err := o.ready(); err != nil {
		return nil, err
	}

	release, err := o.locks.RLock(ctx, opts.Dir.String())
	if err != nil {
		return nil, err
	}
	defer release()

	return o.cat.search(ctx, opts)
}

// UpdateOptions is a partial metadata update. Nil fields are left
// unchanged; pointing Description at "" clears it, and
// ClearUserMetadata drops the metadata document.
type UpdateOptions struct {
	MimeType          *string
	Tags              *[]string
	Description       *string
	UserMetadata      any
	ClearUserMetadata bool
}

// UpdateMetadata applies a partial metadata update to the live row at
// path. With no fields set the call is an existence check.
func (o *Omnio) UpdateMetadata(ctx context.Context, path Path, opts UpdateOptions) error {
	if err := o.ready(); err != nil {
		return err
	}

	if opts.Description != nil && len(*opts.Description) > MaxDescriptionBytes {
		return &InvalidInputError{
			Field:  "description",
			Reason: "exceeds maximum byte length",
			Limit:  MaxDescriptionBytes,
			Actual: len(*opts.Description),
		}
	}

	var userMeta *string

	switch {
	case opts.ClearUserMetadata:
		empty := ""
		userMeta = &empty
	case opts.UserMetadata != nil:
		encoded, err := o.encodeUserMetadata(opts.UserMetadata)
		if err != nil {
			return err
		}

		userMeta = encoded
	}

	release, err := o.locks.Lock(ctx, path.String())
	if err != nil {
		return err
	}
	defer release()

	return o.cat.update(ctx, catalogUpdate{
		Path:         path,
		MimeType:     opts.MimeType,
		Tags:         opts.Tags,
		Description:  opts.Description,
		UserMetadata: userMeta,
		Timestamp:    o.now(),
	})
}

// MoveOptions controls MoveObject.
type MoveOptions struct {
	// Exclusive fails with ErrObjectExists instead of displacing a live
	// destination row.
	Exclusive bool
}

// MoveObject relocates the object at src to dst. Moving a path onto
// itself is a no-op.
func (o *Omnio) MoveObject(ctx context.Context, src, dst Path, opts MoveOptions) error {
	if err := o.ready(); err != nil {
		return err
	}

	if src.Equal(dst) {
		return nil
	}

	release, err := o.locks.LockPair(ctx, src.String(), dst.String())
	if err != nil {
		return err
	}
	defer release()

	if opts.Exclusive {
		return o.cat.moveExclusive(ctx, src, dst)
	}

	var displaced *objectDetail

	detail, err := o.cat.readDetail(ctx, dst)

	switch {
	case err == nil:
		displaced = detail
	case errors.Is(err, ErrObjectNotFound):
	default:
		return err
	}

	if err := o.cat.move(ctx, src, dst); err != nil {
		return err
	}

	if displaced != nil {
		o.removeEntity(displaced.EntityID)
	}

	return nil
}

// CopyOptions controls CopyObject.
type CopyOptions struct {
	// Exclusive fails with ErrObjectExists instead of displacing a live
	// destination row.
	Exclusive bool
}

// CopyObject duplicates the object at src to dst: every part is copied
// into a fresh entity, then the catalog row is duplicated with new
// identities and timestamps. Copying a path onto itself is a no-op.
func (o *Omnio) CopyObject(ctx context.Context, src, dst Path, opts CopyOptions) error {
	if err := o.ready(); err != nil {
		return err
	}

	if src.Equal(dst) {
		return nil
	}

	release, err := o.lockForCopy(ctx, src, dst)
	if err != nil {
		return err
	}
	defer release()

	srcDetail, err := o.cat.readDetail(ctx, src)
	if err != nil {
		return err
	}

	srcDir, err := o.entities.GetDir(srcDetail.EntityID.String(), false)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			o.repairDangling(ctx, src, srcDetail.ObjectID)
			return &ObjectNotFoundError{Bucket: o.bucket, Path: src}
		}

		return err
	}

	var displaced *objectDetail

	if !opts.Exclusive {
		detail, err := o.cat.readDetail(ctx, dst)

		switch {
		case err == nil:
			displaced = detail
		case errors.Is(err, ErrObjectNotFound):
		default:
			return err
		}
	}

	dstEntityID, err := NewEntityID()
	if err != nil {
		return err
	}

	dstObjectID, err := NewObjectID()
	if err != nil {
		return err
	}

	dstDir, err := o.entities.GetDir(dstEntityID.String(), true)
	if err != nil {
		return err
	}

	if err := copyParts(ctx, srcDir, dstDir, srcDetail.NumParts); err != nil {
		o.removeEntity(dstEntityID)
		return err
	}

	inp := catalogCopy{
		Src:         src,
		Dst:         dst,
		DstObjectID: dstObjectID,
		DstEntityID: dstEntityID,
		Timestamp:   o.now(),
	}

	if opts.Exclusive {
		err = o.cat.copyExclusive(ctx, inp)
	} else {
		err = o.cat.copy(ctx, inp)
	}

	if err != nil {
		o.removeEntity(dstEntityID)
		return err
	}

	if err := o.cat.checkpoint(ctx); err != nil {
		o.logger.Error("omnio: checkpoint failed", slog.String("reason", err.Error()))
	}

	if displaced != nil {
		o.removeEntity(displaced.EntityID)
	}

	return nil
}

// lockForCopy takes a shared lock on src and the exclusive lock on dst,
// in global key order so opposing copies cannot deadlock.
func (o *Omnio) lockForCopy(ctx context.Context, src, dst Path) (func(), error) {
	type step struct {
		key    string
		shared bool
	}

	steps := []step{{src.String(), true}, {dst.String(), false}}

	sort.Slice(steps, func(i, j int) bool { return steps[i].key < steps[j].key })

	releases := make([]func(), 0, len(steps))

	fail := func(err error) (func(), error) {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}

		return nil, err
	}

	for _, s := range steps {
		var (
			release func()
			err     error
		)

		if s.shared {
			release, err = o.locks.RLock(ctx, s.key)
		} else {
			release, err = o.locks.Lock(ctx, s.key)
		}

		if err != nil {
			return fail(err)
		}

		releases = append(releases, release)
	}

	var once sync.Once

	return func() {
		once.Do(func() {
			for i := len(releases) - 1; i >= 0; i-- {
				releases[i]()
			}
		})
	}, nil
}

// copyParts clones part files 1..numParts through a bounded worker
// pool. Parts land in distinct files, so workers never contend.
func copyParts(ctx context.Context, srcDir, dstDir storage.Dir, numParts int) error {
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(copyWorkers)

	for i := 1; i <= numParts; i++ {
		name := fmt.Sprint(i)

		g.Go(func() error {
			srcFile, err := srcDir.GetFile(name, false)
			if err != nil {
				return fmt.Errorf("omnio: opening source part %s: %w", name, err)
			}

			data, err := srcFile.ReadAll()
			if err != nil {
				return fmt.Errorf("omnio: reading source part %s: %w", name, err)
			}

			dstFile, err := dstDir.GetFile(name, true)
			if err != nil {
				return fmt.Errorf("omnio: staging part %s: %w", name, err)
			}

			w, err := dstFile.CreateWritable(false)
			if err != nil {
				return fmt.Errorf("omnio: staging part %s: %w", name, err)
			}

			if _, err := w.Write(data); err != nil {
				w.Abort() //nolint:errcheck // best-effort
				return fmt.Errorf("omnio: copying part %s: %w", name, err)
			}

			if err := w.Close(); err != nil {
				return fmt.Errorf("omnio: committing part %s: %w", name, err)
			}

			return nil
		})
	}

	return g.Wait()
}

// TrashObject soft-deletes the object at path: the path is released for
// reuse and the row is retained (with its entity) until DeleteObject.
func (o *Omnio) TrashObject(ctx context.Context, path Path) (TrashRecord, error) {
	if err := o.ready(); err != nil {
		return TrashRecord{}, err
	}

	release, err := o.locks.Lock(ctx, path.String())
	if err != nil {
		return TrashRecord{}, err
	}
	defer release()

	rec, err := o.cat.trash(ctx, path, o.now())
	if err != nil {
		return TrashRecord{}, err
	}

	if err := o.cat.checkpoint(ctx); err != nil {
		o.logger.Error("omnio: checkpoint failed", slog.String("reason", err.Error()))
	}

	return rec, nil
}

// DeleteObject hard-deletes a trashed row and its entity directory.
// Deleting an id that is not in the trash is a no-op.
func (o *Omnio) DeleteObject(ctx context.Context, id ObjectID) error {
	if err := o.ready(); err != nil {
		return err
	}

	entityID, err := o.cat.readInTrash(ctx, id)

	switch {
	case err == nil:
	case errors.Is(err, ErrObjectNotFound):
		// Not in the trash: live rows are only removed via their path
		// (trash first), so there is nothing to delete here.
		return nil
	default:
		return err
	}

	if err := o.cat.deleteRow(ctx, id); err != nil {
		return err
	}

	if err := o.cat.checkpoint(ctx); err != nil {
		o.logger.Error("omnio: checkpoint failed", slog.String("reason", err.Error()))
	}

	o.removeEntity(entityID)

	return nil
}

// RemoveObject trashes and hard-deletes the object at path in one call.
func (o *Omnio) RemoveObject(ctx context.Context, path Path) error {
	if err := o.ready(); err != nil {
		return err
	}

	release, err := o.locks.Lock(ctx, path.String())
	if err != nil {
		return err
	}

	rec, err := o.cat.trash(ctx, path, o.now())

	release()

	if err != nil {
		return err
	}

	if err := o.cat.deleteRow(ctx, rec.ObjectID); err != nil {
		return err
	}

	if err := o.cat.checkpoint(ctx); err != nil {
		o.logger.Error("omnio: checkpoint failed", slog.String("reason", err.Error()))
	}

	o.removeEntity(rec.EntityID)

	return nil
}
