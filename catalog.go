package omnio

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/tai-kun/omnio/internal/database"
)

// Record lifecycle tags for the rec_type column.
const (
	recTypeCreate         = "CREATE"
	recTypeUpdateMetadata = "UPDATE_METADATA"
	recTypeDelete         = "DELETE"
)

// catalogMigrations is the ordered idempotent DDL applied on every
// open. Steps must stay append-only; editing an applied step is a
// schema fork.
var catalogMigrations = []struct {
	name string
	ddl  string
}{
	{
		name: "metadata_v1 table",
		ddl: `CREATE TABLE IF NOT EXISTS metadata_v1 (
			objectid UUID PRIMARY KEY,
			fullpath TEXT NOT NULL,
			path_key TEXT UNIQUE,
			path_seg TEXT[] NOT NULL,
			rec_type TEXT NOT NULL CHECK (rec_type IN ('CREATE', 'UPDATE_METADATA', 'DELETE')),
			rec_time TIMESTAMP NOT NULL,
			obj_size BIGINT NOT NULL,
			numparts INTEGER NOT NULL,
			partsize BIGINT NOT NULL,
			mime_typ TEXT,
			new_time TIMESTAMP NOT NULL,
			mod_time TIMESTAMP NOT NULL,
			hash_md5 CHAR(32),
			md5state BIGINT[],
			obj_tags TEXT[],
			desc_fts TEXT,
			usermeta TEXT,
			entityid UUID NOT NULL UNIQUE
		)`,
	},
	{
		name: "metadata view",
		ddl: `CREATE OR REPLACE VIEW metadata AS
			SELECT
				CAST(objectid AS VARCHAR) AS id,
				fullpath AS path,
				path_seg,
				obj_size AS size,
				numparts,
				partsize,
				mime_typ AS mime_type,
				CAST(epoch_ms(new_time) AS BIGINT) AS created_at,
				CAST(epoch_ms(mod_time) AS BIGINT) AS modified_at,
				hash_md5 AS checksum,
				md5state,
				obj_tags AS tags,
				desc_fts AS description,
				usermeta AS user_metadata,
				CAST(entityid AS VARCHAR) AS entityid
			FROM metadata_v1
			WHERE rec_type <> 'DELETE'`,
	},
}

// catalog is the metadata catalog over the DuckDB connection. It is the
// sole writer; concurrent use is serialised by the store's lock manager
// plus the single-connection pool.
type catalog struct {
	db     *sql.DB
	bucket BucketName
	logger *slog.Logger
	ts     TextSearch
	codec  JSONCodec

	collations map[string]bool

	// The FTS dirty flag is a process-local hint: any operation that
	// may change desc_fts sets it, and the next search rebuilds the
	// index. It starts true because the index may be stale from a
	// previous process.
	ftsMu    sync.Mutex
	ftsDirty bool
	ftsErr   error
	ftsOK    bool

	open bool
}

func newCatalog(db *sql.DB, bucket BucketName, ts TextSearch, codec JSONCodec, logger *slog.Logger) *catalog {
	return &catalog{
		db:       db,
		bucket:   bucket,
		logger:   logger,
		ts:       ts,
		codec:    codec,
		ftsDirty: true,
	}
}

// openCatalog runs the migration list, loads the collation set, and
// attempts to load the FTS extension. A failed FTS load is recorded and
// surfaced at the first search instead of failing open.
func (c *catalog) openCatalog(ctx context.Context) error {
	for _, m := range catalogMigrations {
		if _, err := c.db.ExecContext(ctx, m.ddl); err != nil {
			return fmt.Errorf("omnio: migration %q: %w", m.name, err)
		}

		c.logger.Debug("catalog: migration applied", slog.String("step", m.name))
	}

	collations, err := database.Collations(ctx, c.db)
	if err != nil {
		return err
	}

	c.collations = collations

	if err := database.LoadFTS(ctx, c.db); err != nil {
		c.ftsErr = err
		c.logger.Warn("catalog: fts extension unavailable", slog.String("reason", err.Error()))
	} else {
		c.ftsOK = true
	}

	c.open = true

	return nil
}

func (c *catalog) checkOpen() error {
	if !c.open {
		return ErrDatabaseNotOpen
	}

	return nil
}

func (c *catalog) closeCatalog(ctx context.Context) error {
	if !c.open {
		return nil
	}

	c.open = false

	return database.Checkpoint(ctx, c.db)
}

func (c *catalog) checkpoint(ctx context.Context) error {
	return database.Checkpoint(ctx, c.db)
}

// markFTSDirty defers the next index rebuild to the next search.
func (c *catalog) markFTSDirty() {
	c.ftsMu.Lock()
	c.ftsDirty = true
	c.ftsMu.Unlock()
}

// catalogPut is the row content for create, createExclusive and the
// copy variants.
type catalogPut struct {
	ObjectID     ObjectID
	Path         Path
	EntityID     EntityID
	Size         int64
	NumParts     int
	PartSize     int64
	MimeType     string
	Checksum     Checksum
	State        HashState
	Tags         []string
	Description  *string // presentation form; normalised before storage
	UserMetadata *string // encoded JSON document
	Timestamp    time.Time
}

// validateSizeBounds enforces partSize·(numParts−1) < objSize ≤
// partSize·numParts, with the empty-object exception.
func (c *catalog) validateSizeBounds(p Path, size int64, numParts int, partSize int64) error {
	if size == 0 && numParts == 0 {
		return nil
	}

	if numParts <= 0 || size > partSize*int64(numParts) {
		return &ObjectSizeError{
			Bucket:   c.bucket,
			Path:     p,
			Size:     size,
			NumParts: numParts,
			PartSize: partSize,
			TooLarge: true,
		}
	}

	if size <= partSize*int64(numParts-1) {
		return &ObjectSizeError{
			Bucket:   c.bucket,
			Path:     p,
			Size:     size,
			NumParts: numParts,
			PartSize: partSize,
		}
	}

	return nil
}

// listPlaceholders renders "list_value(?, ?, ...)" for n elements, or a
// typed empty list for n == 0.
func listPlaceholders(n int, typ string) string {
	if n == 0 {
		return "CAST(list_value() AS " + typ + "[])"
	}

	return "list_value(" + strings.TrimSuffix(strings.Repeat("?, ", n), ", ") + ")"
}

// insertValuesSQL renders the VALUES(...) clause for a catalogPut and
// appends the bind arguments.
func (c *catalog) insertValuesSQL(inp *catalogPut, recType string, args *[]any) string {
	segs := inp.Path.Segments()

	var b strings.Builder

	b.WriteString("(CAST(? AS UUID), ?, ?, ")
	*args = append(*args, inp.ObjectID.String(), inp.Path.String(), inp.Path.String())

	b.WriteString(listPlaceholders(len(segs), "TEXT"))
	for _, s := range segs {
		*args = append(*args, s)
	}

	b.WriteString(", ?, ?, ?, ?, ?, ?, ?, ?, ?, ")
	ts := inp.Timestamp.UTC()
	*args = append(*args, recType, ts, inp.Size, inp.NumParts, inp.PartSize,
		nullString(inp.MimeType), ts, ts, nullString(inp.Checksum.String()))

	if inp.State == nil {
		b.WriteString("NULL")
	} else {
		b.WriteString(listPlaceholders(len(inp.State), "BIGINT"))
		for _, w := range inp.State.Words() {
			*args = append(*args, w)
		}
	}

	b.WriteString(", ")

	if len(inp.Tags) == 0 {
		b.WriteString("NULL")
	} else {
		b.WriteString(listPlaceholders(len(inp.Tags), "TEXT"))
		for _, t := range inp.Tags {
			*args = append(*args, t)
		}
	}

	b.WriteString(", ?, ?, CAST(? AS UUID))")

	var desc any
	if inp.Description != nil {
		desc = c.ts.ToQueryString(*inp.Description)
	}

	var meta any
	if inp.UserMetadata != nil {
		meta = *inp.UserMetadata
	}

	*args = append(*args, desc, meta, inp.EntityID.String())

	return b.String()
}

const insertColumnsSQL = `(objectid, fullpath, path_key, path_seg, rec_type, rec_time,
	obj_size, numparts, partsize, mime_typ, new_time, mod_time,
	hash_md5, md5state, obj_tags, desc_fts, usermeta, entityid)`

// create upserts a row by path_key. Overwriting an existing path keeps
// the row's objectid and creation time; everything else is replaced.
func (c *catalog) create(ctx context.Context, inp catalogPut) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.validateSizeBounds(inp.Path, inp.Size, inp.NumParts, inp.PartSize); err != nil {
		return err
	}

	var args []any
	values := c.insertValuesSQL(&inp, recTypeCreate, &args)

	query := `INSERT INTO metadata_v1 ` + insertColumnsSQL + ` VALUES ` + values + `
		ON CONFLICT (path_key) DO UPDATE SET
			path_seg = excluded.path_seg,
			rec_type = excluded.rec_type,
			rec_time = excluded.rec_time,
			obj_size = excluded.obj_size,
			numparts = excluded.numparts,
			partsize = excluded.partsize,
			mime_typ = excluded.mime_typ,
			mod_time = excluded.mod_time,
			hash_md5 = excluded.hash_md5,
			md5state = excluded.md5state,
			obj_tags = excluded.obj_tags,
			desc_fts = excluded.desc_fts,
			usermeta = excluded.usermeta,
			entityid = excluded.entityid`

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("omnio: catalog create %q: %w", inp.Path, err)
	}

	if inp.Description != nil {
		c.markFTSDirty()
	}

	return nil
}

// createExclusive inserts a new row. A live row at the same path yields
// *ObjectExistsError; any other uniqueness violation (entityid reuse)
// surfaces as-is.
func (c *catalog) createExclusive(ctx context.Context, inp catalogPut) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.validateSizeBounds(inp.Path, inp.Size, inp.NumParts, inp.PartSize); err != nil {
		return err
	}

	var args []any
	values := c.insertValuesSQL(&inp, recTypeCreate, &args)

	query := `INSERT INTO metadata_v1 ` + insertColumnsSQL + ` VALUES ` + values

	if _, err := c.db.ExecContext(ctx, query, args...); err != nil {
		if isDuplicateKey(err, "path_key") {
			return &ObjectExistsError{Bucket: c.bucket, Path: inp.Path}
		}

		return fmt.Errorf("omnio: catalog create exclusive %q: %w", inp.Path, err)
	}

	if inp.Description != nil {
		c.markFTSDirty()
	}

	return nil
}

// isDuplicateKey reports whether err is a uniqueness violation on the
// named column. DuckDB surfaces constraint errors as text only, so the
// classification is a message match.
func isDuplicateKey(err error, column string) bool {
	msg := err.Error()

	if !strings.Contains(msg, "Duplicate key") && !strings.Contains(msg, "duplicate key") {
		return false
	}

	return strings.Contains(msg, column)
}

// ReadSelect chooses the columns a read or listing populates. Path and
// ObjectID are always present.
type ReadSelect struct {
	Size         bool
	MimeType     bool
	Timestamps   bool
	Checksum     bool
	Tags         bool
	Description  bool
	UserMetadata bool
	EntityID     bool
}

// FullReadSelect selects every column.
func FullReadSelect() ReadSelect {
	return ReadSelect{
		Size:         true,
		MimeType:     true,
		Timestamps:   true,
		Checksum:     true,
		Tags:         true,
		Description:  true,
		UserMetadata: true,
		EntityID:     true,
	}
}

// infoScanner pairs the projected column expressions with their scan
// destinations and assembles an ObjectInfo afterwards.
type infoScanner struct {
	sel ReadSelect

	id         ObjectID
	path       sql.NullString
	size       sql.NullInt64
	numParts   sql.NullInt32
	partSize   sql.NullInt64
	mimeType   sql.NullString
	createdAt  sql.NullInt64
	modifiedAt sql.NullInt64
	checksum   sql.NullString
	tags       any
	desc       sql.NullString
	userMeta   sql.NullString
	entityID   sql.NullString
}

// columns returns the view column expressions for the selection, with
// alias as the view alias prefix ("" for none).
func (s *infoScanner) columns(alias string) []string {
	cols := []string{alias + "id", alias + "path"}

	if s.sel.Size {
		cols = append(cols, alias+"size", alias+"numparts", alias+"partsize")
	}

	if s.sel.MimeType {
		cols = append(cols, alias+"mime_type")
	}

	if s.sel.Timestamps {
		cols = append(cols, alias+"created_at", alias+"modified_at")
	}

	if s.sel.Checksum {
		cols = append(cols, alias+"checksum")
	}

	if s.sel.Tags {
		cols = append(cols, alias+"tags")
	}

	if s.sel.Description {
		cols = append(cols, alias+"description")
	}

	if s.sel.UserMetadata {
		cols = append(cols, alias+"user_metadata")
	}

	if s.sel.EntityID {
		cols = append(cols, alias+"entityid")
	}

	return cols
}

// dests returns scan destinations matching columns() order.
func (s *infoScanner) dests() []any {
	dest := []any{&s.id, &s.path}

	if s.sel.Size {
		dest = append(dest, &s.size, &s.numParts, &s.partSize)
	}

	if s.sel.MimeType {
		dest = append(dest, &s.mimeType)
	}

	if s.sel.Timestamps {
		dest = append(dest, &s.createdAt, &s.modifiedAt)
	}

	if s.sel.Checksum {
		dest = append(dest, &s.checksum)
	}

	if s.sel.Tags {
		dest = append(dest, &s.tags)
	}

	if s.sel.Description {
		dest = append(dest, &s.desc)
	}

	if s.sel.UserMetadata {
		dest = append(dest, &s.userMeta)
	}

	if s.sel.EntityID {
		dest = append(dest, &s.entityID)
	}

	return dest
}

// info assembles the ObjectInfo from the scanned values.
func (s *infoScanner) info(c *catalog) (*ObjectInfo, error) {
	path, err := ParsePath(s.path.String)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog returned invalid path %q: %w", s.path.String, err)
	}

	out := &ObjectInfo{ObjectID: s.id, Path: path}

	if s.sel.Size {
		out.Size = s.size.Int64
		out.NumParts = int(s.numParts.Int32)
		out.PartSize = s.partSize.Int64
	}

	if s.sel.MimeType {
		out.MimeType = s.mimeType.String
	}

	if s.sel.Timestamps {
		out.CreatedAt = time.UnixMilli(s.createdAt.Int64).UTC()
		out.ModifiedAt = time.UnixMilli(s.modifiedAt.Int64).UTC()
	}

	if s.sel.Checksum && s.checksum.Valid {
		sum, err := ParseChecksum(strings.TrimSpace(s.checksum.String))
		if err != nil {
			return nil, err
		}

		out.Checksum = sum
	}

	if s.sel.Tags {
		tags, err := toStringSlice(s.tags)
		if err != nil {
			return nil, err
		}

		out.Tags = tags
	}

	if s.sel.Description && s.desc.Valid {
		d := c.ts.FromQueryString(s.desc.String)
		out.Description = &d
	}

	if s.sel.UserMetadata && s.userMeta.Valid {
		v, err := c.codec.Unmarshal(s.userMeta.String)
		if err != nil {
			return nil, err
		}

		out.UserMetadata = v
	}

	if s.sel.EntityID && s.entityID.Valid {
		eid, err := ParseEntityID(s.entityID.String)
		if err != nil {
			return nil, err
		}

		out.EntityID = eid
	}

	return out, nil
}

// read returns the projected columns of the live row at path.
func (c *catalog) read(ctx context.Context, sel ReadSelect, path Path) (*ObjectInfo, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	scanner := &infoScanner{sel: sel}

	query := `SELECT ` + strings.Join(scanner.columns(""), ", ") +
		` FROM metadata WHERE path = ?`

	row := c.db.QueryRowContext(ctx, query, path.String())

	if err := row.Scan(scanner.dests()...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &ObjectNotFoundError{Bucket: c.bucket, Path: path}
		}

		return nil, fmt.Errorf("omnio: catalog read %q: %w", path, err)
	}

	return scanner.info(c)
}

// objectDetail is the content-layout slice of a row, used by the append
// flow and entity bookkeeping.
type objectDetail struct {
	ObjectID ObjectID
	Size     int64
	Checksum Checksum
	State    HashState
	EntityID EntityID
	NumParts int
	PartSize int64
}

// readDetail returns the content layout of the live row at path.
func (c *catalog) readDetail(ctx context.Context, path Path) (*objectDetail, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT CAST(objectid AS VARCHAR), obj_size, hash_md5, md5state,
			CAST(entityid AS VARCHAR), numparts, partsize
		 FROM metadata_v1 WHERE path_key = ?`, path.String())

	var (
		d     objectDetail
		sum   sql.NullString
		state any
		eid   string
	)

	err := row.Scan(&d.ObjectID, &d.Size, &sum, &state, &eid, &d.NumParts, &d.PartSize)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &ObjectNotFoundError{Bucket: c.bucket, Path: path}
	}

	if err != nil {
		return nil, fmt.Errorf("omnio: catalog read detail %q: %w", path, err)
	}

	if sum.Valid {
		parsed, err := ParseChecksum(strings.TrimSpace(sum.String))
		if err != nil {
			return nil, err
		}

		d.Checksum = parsed
	}

	words, err := toInt64Slice(state)
	if err != nil {
		return nil, err
	}

	d.State = HashStateFromWords(words)

	entity, err := ParseEntityID(eid)
	if err != nil {
		return nil, err
	}

	d.EntityID = entity

	return &d, nil
}

// readInTrash returns the entity id of a trashed row.
func (c *catalog) readInTrash(ctx context.Context, id ObjectID) (EntityID, error) {
	if err := c.checkOpen(); err != nil {
		return EntityID{}, err
	}

	row := c.db.QueryRowContext(ctx,
		`SELECT CAST(entityid AS VARCHAR) FROM metadata_v1
		 WHERE objectid = CAST(? AS UUID) AND rec_type = '`+recTypeDelete+`'`, id.String())

	var eid string

	err := row.Scan(&eid)
	if errors.Is(err, sql.ErrNoRows) {
		return EntityID{}, &ObjectNotFoundError{Bucket: c.bucket, ObjectID: id}
	}

	if err != nil {
		return EntityID{}, fmt.Errorf("omnio: catalog read in trash %s: %w", id, err)
	}

	return ParseEntityID(eid)
}

// catalogUpdate is the partial-update input. Nil pointers leave the
// column unchanged; a pointer to the zero value clears it.
type catalogUpdate struct {
	Path         Path
	MimeType     *string
	Tags         *[]string
	Description  *string
	UserMetadata *string
	Timestamp    time.Time
}

// update applies a partial metadata update. With no fields provided the
// call degenerates to an existence check.
func (c *catalog) update(ctx context.Context, inp catalogUpdate) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	sets := []string{"rec_type = ?", "rec_time = ?", "mod_time = ?"}
	ts := inp.Timestamp.UTC()
	args := []any{recTypeUpdateMetadata, ts, ts}

	touched := false

	if inp.MimeType != nil {
		sets = append(sets, "mime_typ = ?")
		args = append(args, nullString(*inp.MimeType))
		touched = true
	}

	if inp.Tags != nil {
		if len(*inp.Tags) == 0 {
			sets = append(sets, "obj_tags = NULL")
		} else {
			sets = append(sets, "obj_tags = "+listPlaceholders(len(*inp.Tags), "TEXT"))
			for _, t := range *inp.Tags {
				args = append(args, t)
			}
		}

		touched = true
	}

	if inp.Description != nil {
		sets = append(sets, "desc_fts = ?")

		if *inp.Description == "" {
			args = append(args, nil)
		} else {
			args = append(args, c.ts.ToQueryString(*inp.Description))
		}

		touched = true
	}

	if inp.UserMetadata != nil {
		sets = append(sets, "usermeta = ?")

		if *inp.UserMetadata == "" {
			args = append(args, nil)
		} else {
			args = append(args, *inp.UserMetadata)
		}

		touched = true
	}

	if !touched {
		var count int

		err := c.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM metadata_v1 WHERE path_key = ?`, inp.Path.String()).Scan(&count)
		if err != nil {
			return fmt.Errorf("omnio: catalog update %q: %w", inp.Path, err)
		}

		if count == 0 {
			return &ObjectNotFoundError{Bucket: c.bucket, Path: inp.Path}
		}

		return nil
	}

	args = append(args, inp.Path.String())

	result, err := c.db.ExecContext(ctx,
		`UPDATE metadata_v1 SET `+strings.Join(sets, ", ")+` WHERE path_key = ?`, args...)
	if err != nil {
		return fmt.Errorf("omnio: catalog update %q: %w", inp.Path, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("omnio: catalog update %q rows affected: %w", inp.Path, err)
	}

	if rows == 0 {
		return &ObjectNotFoundError{Bucket: c.bucket, Path: inp.Path}
	}

	if inp.Description != nil {
		c.markFTSDirty()
	}

	return nil
}

// catalogUpdateExclusive is the guarded content update emitted by an
// append commit.
type catalogUpdateExclusive struct {
	Path         Path
	Expect       Checksum
	Checksum     Checksum
	State        HashState
	EntityID     EntityID // zero keeps the current entity
	MimeType     *string
	NumParts     int
	PartSize     int64
	Size         int64
	Tags         *[]string
	Description  *string
	UserMetadata *string
	Timestamp    time.Time
}

// updateExclusive applies a content update guarded by the stored
// checksum. Zero rows updated is disambiguated into *ObjectNotFoundError
// (row gone) or *ChecksumMismatchError (row present, digest moved).
func (c *catalog) updateExclusive(ctx context.Context, inp catalogUpdateExclusive) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.validateSizeBounds(inp.Path, inp.Size, inp.NumParts, inp.PartSize); err != nil {
		return err
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("omnio: catalog update exclusive begin: %w", err)
	}
	defer tx.Rollback()

	sets := []string{
		"rec_time = ?", "mod_time = ?",
		"obj_size = ?", "numparts = ?", "partsize = ?", "hash_md5 = ?",
	}
	ts := inp.Timestamp.UTC()
	args := []any{ts, ts, inp.Size, inp.NumParts, inp.PartSize, inp.Checksum.String()}

	if inp.State == nil {
		sets = append(sets, "md5state = NULL")
	} else {
		sets = append(sets, "md5state = "+listPlaceholders(len(inp.State), "BIGINT"))
		for _, w := range inp.State.Words() {
			args = append(args, w)
		}
	}

	if !inp.EntityID.IsZero() {
		sets = append(sets, "entityid = CAST(? AS UUID)")
		args = append(args, inp.EntityID.String())
	}

	if inp.MimeType != nil {
		sets = append(sets, "mime_typ = ?")
		args = append(args, nullString(*inp.MimeType))
	}

	if inp.Tags != nil {
		if len(*inp.Tags) == 0 {
			sets = append(sets, "obj_tags = NULL")
		} else {
			sets = append(sets, "obj_tags = "+listPlaceholders(len(*inp.Tags), "TEXT"))
			for _, t := range *inp.Tags {
				args = append(args, t)
			}
		}
	}

	if inp.Description != nil {
		sets = append(sets, "desc_fts = ?")

		if *inp.Description == "" {
			args = append(args, nil)
		} else {
			args = append(args, c.ts.ToQueryString(*inp.Description))
		}
	}

	if inp.UserMetadata != nil {
		sets = append(sets, "usermeta = ?")

		if *inp.UserMetadata == "" {
			args = append(args, nil)
		} else {
			args = append(args, *inp.UserMetadata)
		}
	}

	args = append(args, inp.Path.String(), inp.Expect.String())

	result, err := tx.ExecContext(ctx,
		`UPDATE metadata_v1 SET `+strings.Join(sets, ", ")+
			` WHERE path_key = ? AND hash_md5 = ?`, args...)
	if err != nil {
		return fmt.Errorf("omnio: catalog update exclusive %q: %w", inp.Path, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("omnio: catalog update exclusive %q rows affected: %w", inp.Path, err)
	}

	if rows == 0 {
		// Disambiguate: missing row vs moved checksum.
		var actual sql.NullString

		err := tx.QueryRowContext(ctx,
			`SELECT hash_md5 FROM metadata_v1 WHERE path_key = ?`, inp.Path.String()).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return &ObjectNotFoundError{Bucket: c.bucket, Path: inp.Path}
		}

		if err != nil {
			return fmt.Errorf("omnio: catalog update exclusive %q: %w", inp.Path, err)
		}

		mismatch := &ChecksumMismatchError{Bucket: c.bucket, Path: inp.Path, Expected: inp.Expect}

		if actual.Valid {
			if sum, err := ParseChecksum(strings.TrimSpace(actual.String)); err == nil {
				mismatch.Actual = sum
			}
		}

		return mismatch
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("omnio: catalog update exclusive commit: %w", err)
	}

	if inp.Description != nil {
		c.markFTSDirty()
	}

	return nil
}

// move relocates the live row at src to dst, displacing any live dst
// row. The displaced delete and the path update run as separate
// statements: the engine's unique indexes reject a same-transaction
// delete-and-reinsert of one key, and per-path writer locks already
// serialise access to both paths. The source must be confirmed live
// before the displacing delete, so a failed move never destroys the
// destination.
func (c *catalog) move(ctx context.Context, src, dst Path) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	exists, err := c.existsObject(ctx, src)
	if err != nil {
		return err
	}

	if !exists {
		return &ObjectNotFoundError{Bucket: c.bucket, Path: src}
	}

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM metadata_v1 WHERE path_key = ?`, dst.String()); err != nil {
		return fmt.Errorf("omnio: catalog move displacing %q: %w", dst, err)
	}

	return c.movePath(ctx, src, dst)
}

// moveExclusive relocates src to dst, failing on a live dst row.
func (c *catalog) moveExclusive(ctx context.Context, src, dst Path) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.movePath(ctx, src, dst); err != nil {
		if isDuplicateKey(err, "path_key") {
			return &ObjectExistsError{Bucket: c.bucket, Path: dst}
		}

		return err
	}

	return nil
}

func (c *catalog) movePath(ctx context.Context, src, dst Path) error {
	segs := dst.Segments()

	args := []any{dst.String(), dst.String()}

	query := `UPDATE metadata_v1 SET fullpath = ?, path_key = ?, path_seg = ` +
		listPlaceholders(len(segs), "TEXT") + ` WHERE path_key = ?`

	for _, s := range segs {
		args = append(args, s)
	}

	args = append(args, src.String())

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("omnio: catalog move %q -> %q: %w", src, dst, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("omnio: catalog move %q rows affected: %w", src, err)
	}

	if rows == 0 {
		return &ObjectNotFoundError{Bucket: c.bucket, Path: src}
	}

	return nil
}

// catalogCopy duplicates the live src row at dst with fresh identities
// and timestamps.
type catalogCopy struct {
	Src         Path
	Dst         Path
	DstObjectID ObjectID
	DstEntityID EntityID
	Timestamp   time.Time
}

// copyRow is the shared INSERT ... SELECT for both copy variants.
func (c *catalog) copyRow(ctx context.Context, inp catalogCopy) error {
	segs := inp.Dst.Segments()
	ts := inp.Timestamp.UTC()

	args := []any{inp.DstObjectID.String(), inp.Dst.String(), inp.Dst.String()}

	query := `INSERT INTO metadata_v1 ` + insertColumnsSQL + `
		SELECT CAST(? AS UUID), ?, ?, ` + listPlaceholders(len(segs), "TEXT") + `,
			'CREATE', ?, obj_size, numparts, partsize, mime_typ, ?, ?,
			hash_md5, md5state, obj_tags, desc_fts, usermeta, CAST(? AS UUID)
		FROM metadata_v1 WHERE path_key = ?`

	for _, s := range segs {
		args = append(args, s)
	}

	args = append(args, ts, ts, ts, inp.DstEntityID.String(), inp.Src.String())

	result, err := c.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("omnio: catalog copy %q -> %q: %w", inp.Src, inp.Dst, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("omnio: catalog copy %q rows affected: %w", inp.Src, err)
	}

	if rows == 0 {
		return &ObjectNotFoundError{Bucket: c.bucket, Path: inp.Src}
	}

	c.markFTSDirty()

	return nil
}

// copy duplicates src at dst, displacing any live dst row. As with
// move, the source is confirmed live before the displacing delete.
func (c *catalog) copy(ctx context.Context, inp catalogCopy) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	exists, err := c.existsObject(ctx, inp.Src)
	if err != nil {
		return err
	}

	if !exists {
		return &ObjectNotFoundError{Bucket: c.bucket, Path: inp.Src}
	}

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM metadata_v1 WHERE path_key = ?`, inp.Dst.String()); err != nil {
		return fmt.Errorf("omnio: catalog copy displacing %q: %w", inp.Dst, err)
	}

	return c.copyRow(ctx, inp)
}

// copyExclusive duplicates src at dst, failing on a live dst row.
func (c *catalog) copyExclusive(ctx context.Context, inp catalogCopy) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if err := c.copyRow(ctx, inp); err != nil {
		if isDuplicateKey(err, "path_key") {
			return &ObjectExistsError{Bucket: c.bucket, Path: inp.Dst}
		}

		return err
	}

	return nil
}

// TrashRecord identifies a trashed row and its orphaned entity.
type TrashRecord struct {
	ObjectID ObjectID
	EntityID EntityID
}

// trash soft-deletes the live row at path: the path key is released,
// payload columns are cleared, and the row is retained for listInTrash
// until a hard delete.
func (c *catalog) trash(ctx context.Context, path Path, timestamp time.Time) (TrashRecord, error) {
	if err := c.checkOpen(); err != nil {
		return TrashRecord{}, err
	}

	row := c.db.QueryRowContext(ctx,
		`UPDATE metadata_v1 SET
			rec_type = '`+recTypeDelete+`',
			path_key = NULL,
			rec_time = ?,
			obj_size = 0,
			numparts = 0,
			partsize = 0,
			md5state = NULL,
			obj_tags = NULL,
			desc_fts = NULL,
			usermeta = NULL
		 WHERE path_key = ?
		 RETURNING CAST(objectid AS VARCHAR), CAST(entityid AS VARCHAR)`,
		timestamp.UTC(), path.String())

	var oid, eid string

	err := row.Scan(&oid, &eid)
	if errors.Is(err, sql.ErrNoRows) {
		return TrashRecord{}, &ObjectNotFoundError{Bucket: c.bucket, Path: path}
	}

	if err != nil {
		return TrashRecord{}, fmt.Errorf("omnio: catalog trash %q: %w", path, err)
	}

	objectID, err := ParseObjectID(oid)
	if err != nil {
		return TrashRecord{}, err
	}

	entityID, err := ParseEntityID(eid)
	if err != nil {
		return TrashRecord{}, err
	}

	c.markFTSDirty()

	return TrashRecord{ObjectID: objectID, EntityID: entityID}, nil
}

// deleteRow removes a row by object id. Zero rows removed is not an
// error.
func (c *catalog) deleteRow(ctx context.Context, id ObjectID) error {
	if err := c.checkOpen(); err != nil {
		return err
	}

	if _, err := c.db.ExecContext(ctx,
		`DELETE FROM metadata_v1 WHERE objectid = CAST(? AS UUID)`, id.String()); err != nil {
		return fmt.Errorf("omnio: catalog delete %s: %w", id, err)
	}

	return nil
}

// nullString maps "" to SQL NULL.
func nullString(s string) any {
	if s == "" {
		return nil
	}

	return s
}

// toStringSlice converts a scanned DuckDB LIST value to []string.
func toStringSlice(v any) ([]string, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []string:
		out := make([]string, len(list))
		copy(out, list)

		return out, nil
	case []any:
		out := make([]string, 0, len(list))

		for _, el := range list {
			switch s := el.(type) {
			case string:
				out = append(out, s)
			case []byte:
				out = append(out, string(s))
			default:
				return nil, fmt.Errorf("omnio: unexpected list element type %T", el)
			}
		}

		return out, nil
	default:
		return nil, fmt.Errorf("omnio: unexpected list type %T", v)
	}
}

// toInt64Slice converts a scanned DuckDB LIST value to []int64.
func toInt64Slice(v any) ([]int64, error) {
	switch list := v.(type) {
	case nil:
		return nil, nil
	case []int64:
		out := make([]int64, len(list))
		copy(out, list)

		return out, nil
	case []any:
		out := make([]int64, 0, len(list))

		for _, el := range list {
			switch n := el.(type) {
			case int64:
				out = append(out, n)
			case int32:
				out = append(out, int64(n))
			case int:
				out = append(out, int64(n))
			default:
				return nil, fmt.Errorf("omnio: unexpected list element type %T", el)
			}
		}

		return out, nil
	default:
		return nil, fmt.Errorf("omnio: unexpected list type %T", v)
	}
}
