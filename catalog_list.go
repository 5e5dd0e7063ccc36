package omnio

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"
)

// ListFilter selects which entry kinds a listing returns.
type ListFilter int

const (
	// ListAll returns objects and directories. A name that is both an
	// object and a directory prefix yields two entries.
	ListAll ListFilter = iota

	// ListObjectsOnly returns direct child objects.
	ListObjectsOnly

	// ListDirectoriesOnly returns direct child directories.
	ListDirectoriesOnly
)

// ListOptions controls a directory listing.
type ListOptions struct {
	// Dir is the directory to list (empty for the bucket root).
	Dir DirPath

	// Filter selects objects, directories, or both.
	Filter ListFilter

	// Skip and Take page through results. Take <= 0 means unbounded.
	Skip int
	Take int

	// Desc reverses the name ordering.
	Desc bool

	// Collate names the collation applied to the name ordering. Empty
	// means binary comparison; unknown names fail with
	// *InvalidCollationError.
	Collate string

	// PreferObjects lists objects before directories when both kinds
	// are returned.
	PreferObjects bool

	// Select projects the object columns populated on Entry.Info.
	// Nil selects everything.
	Select *ReadSelect
}

// Entry is one listing result. Info is populated for object entries
// and nil for directory entries.
type Entry struct {
	Name     string
	IsObject bool
	Info     *ObjectInfo
}

// Stat reports whether a path names an object, a directory, or both.
type Stat struct {
	IsObject    bool
	IsDirectory bool
}

// TrashEntry is one trashed-object listing result.
type TrashEntry struct {
	Name      string
	IsObject  bool
	ObjectID  ObjectID
	Path      Path
	EntityID  EntityID
	TrashedAt time.Time
}

// existsObject reports whether a live row exists at path.
func (c *catalog) existsObject(ctx context.Context, path Path) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}

	var found bool

	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM metadata_v1 WHERE path_key = ?)`,
		path.String()).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("omnio: catalog exists %q: %w", path, err)
	}

	return found, nil
}

// existsDir reports whether any live row lies beneath dir. The bucket
// root always exists.
func (c *catalog) existsDir(ctx context.Context, dir DirPath) (bool, error) {
	if err := c.checkOpen(); err != nil {
		return false, err
	}

	if dir.IsRoot() {
		return true, nil
	}

	var args []any
	cond := dirPrefixCond("", dir, &args)

	var found bool

	err := c.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM metadata_v1
		 WHERE rec_type <> 'DELETE' AND array_length(path_seg) > `+
			fmt.Sprint(len(dir))+cond+`)`, args...).Scan(&found)
	if err != nil {
		return false, fmt.Errorf("omnio: catalog exists dir %q: %w", dir, err)
	}

	return found, nil
}

// stat answers both existence questions in a single query: an exact
// path_key match, and a deeper prefix match.
func (c *catalog) stat(ctx context.Context, path Path) (Stat, error) {
	if err := c.checkOpen(); err != nil {
		return Stat{}, err
	}

	segs := path.Segments()

	args := []any{path.String()}
	cond := dirPrefixCond("", DirPath(segs), &args)

	var st Stat

	err := c.db.QueryRowContext(ctx,
		`SELECT
			EXISTS(SELECT 1 FROM metadata_v1 WHERE path_key = ?) AS is_object,
			EXISTS(SELECT 1 FROM metadata_v1
				WHERE rec_type <> 'DELETE'
				AND array_length(path_seg) > `+fmt.Sprint(len(segs))+cond+`) AS is_directory`,
		args...).Scan(&st.IsObject, &st.IsDirectory)
	if err != nil {
		return Stat{}, fmt.Errorf("omnio: catalog stat %q: %w", path, err)
	}

	return st, nil
}

// dirPrefixCond renders " AND path_seg[i] = ?" for each segment of dir,
// with alias prefixing the column, and appends the bind arguments.
func dirPrefixCond(alias string, dir DirPath, args *[]any) string {
	var b strings.Builder

	for i, seg := range dir {
		fmt.Fprintf(&b, " AND %spath_seg[%d] = ?", alias, i+1)
		*args = append(*args, seg)
	}

	return b.String()
}

// validateCollation checks name against the collation set loaded at
// open. Empty means binary ordering and is always valid.
func (c *catalog) validateCollation(name string) error {
	if name == "" {
		return nil
	}

	if c.collations[name] {
		return nil
	}

	available := make([]string, 0, len(c.collations))
	for n := range c.collations {
		available = append(available, n)
	}

	sort.Strings(available)

	return &InvalidCollationError{Collation: name, Available: available}
}

// orderExpr renders the name ordering with optional collation.
func orderExpr(collate string, desc bool) string {
	expr := "name"

	if collate != "" {
		expr += " COLLATE " + collate
	}

	if desc {
		expr += " DESC"
	} else {
		expr += " ASC"
	}

	return expr
}

// pageClause renders LIMIT/OFFSET for skip and take.
func pageClause(skip, take int) string {
	var b strings.Builder

	if take > 0 {
		fmt.Fprintf(&b, " LIMIT %d", take)
	}

	if skip > 0 {
		fmt.Fprintf(&b, " OFFSET %d", skip)
	}

	return b.String()
}

// list returns the direct children of a directory in one of three
// shapes: objects only, directories only, or the union of both.
func (c *catalog) list(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	if err := c.validateCollation(opts.Collate); err != nil {
		return nil, err
	}

	switch opts.Filter {
	case ListObjectsOnly:
		return c.listObjects(ctx, opts)
	case ListDirectoriesOnly:
		return c.listDirectories(ctx, opts)
	default:
		return c.listUnion(ctx, opts)
	}
}

func (c *catalog) listSelect(opts ListOptions) ReadSelect {
	if opts.Select != nil {
		return *opts.Select
	}

	return FullReadSelect()
}

// listObjects joins the base table to the metadata view at exactly one
// level below the directory.
func (c *catalog) listObjects(ctx context.Context, opts ListOptions) ([]Entry, error) {
	depth := len(opts.Dir) + 1
	scanner := &infoScanner{sel: c.listSelect(opts)}

	var args []any
	cond := dirPrefixCond("v.", opts.Dir, &args)

	cols := append(
		[]string{fmt.Sprintf("v.path_seg[%d] AS name", depth)},
		scanner.columns("m.")...,
	)

	query := `SELECT ` + strings.Join(cols, ", ") + `
		FROM metadata_v1 AS v
		JOIN metadata AS m ON CAST(v.objectid AS VARCHAR) = m.id
		WHERE array_length(v.path_seg) = ` + fmt.Sprint(depth) + cond + `
		ORDER BY ` + orderExpr(opts.Collate, opts.Desc) + pageClause(opts.Skip, opts.Take)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog list objects %q: %w", opts.Dir, err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var name string

		dest := append([]any{&name}, scanner.dests()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("omnio: catalog list objects scan: %w", err)
		}

		info, err := scanner.info(c)
		if err != nil {
			return nil, err
		}

		out = append(out, Entry{Name: name, IsObject: true, Info: info})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("omnio: catalog list objects rows: %w", err)
	}

	return out, nil
}

// listDirectories synthesises directory names from deeper rows; no
// directory table exists.
func (c *catalog) listDirectories(ctx context.Context, opts ListOptions) ([]Entry, error) {
	depth := len(opts.Dir) + 1

	var args []any
	cond := dirPrefixCond("", opts.Dir, &args)

	query := fmt.Sprintf(`SELECT DISTINCT ON (name) path_seg[%d] AS name
		FROM metadata_v1
		WHERE rec_type <> 'DELETE' AND array_length(path_seg) > %d%s
		ORDER BY %s%s`,
		depth, depth, cond, orderExpr(opts.Collate, opts.Desc), pageClause(opts.Skip, opts.Take))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog list directories %q: %w", opts.Dir, err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("omnio: catalog list directories scan: %w", err)
		}

		out = append(out, Entry{Name: name})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("omnio: catalog list directories rows: %w", err)
	}

	return out, nil
}

// listUnion returns objects and directories together. An object whose
// name is also a directory prefix appears twice, once per kind.
func (c *catalog) listUnion(ctx context.Context, opts ListOptions) ([]Entry, error) {
	depth := len(opts.Dir) + 1
	scanner := &infoScanner{sel: c.listSelect(opts)}

	var args []any
	cond := dirPrefixCond("v.", opts.Dir, &args)

	isObjectExpr := fmt.Sprintf("array_length(v.path_seg) = %d", depth)

	cols := []string{
		fmt.Sprintf("v.path_seg[%d] AS name", depth),
		isObjectExpr + " AS is_object",
	}

	for _, col := range scanner.columns("m.") {
		cols = append(cols, fmt.Sprintf("CASE WHEN %s THEN %s END", isObjectExpr, col))
	}

	kindOrder := "is_object ASC"
	if opts.PreferObjects {
		kindOrder = "is_object DESC"
	}

	query := `SELECT DISTINCT ON (name, is_object) ` + strings.Join(cols, ", ") + `
		FROM metadata_v1 AS v
		JOIN metadata AS m ON CAST(v.objectid AS VARCHAR) = m.id
		WHERE array_length(v.path_seg) >= ` + fmt.Sprint(depth) + cond + `
		ORDER BY ` + kindOrder + `, ` + orderExpr(opts.Collate, opts.Desc) +
		pageClause(opts.Skip, opts.Take)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog list %q: %w", opts.Dir, err)
	}
	defer rows.Close()

	var out []Entry

	for rows.Next() {
		var (
			name     string
			isObject bool
		)

		dest := append([]any{&name, &isObject}, scanner.dests()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("omnio: catalog list scan: %w", err)
		}

		entry := Entry{Name: name, IsObject: isObject}

		if isObject {
			info, err := scanner.info(c)
			if err != nil {
				return nil, err
			}

			entry.Info = info
		}

		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("omnio: catalog list rows: %w", err)
	}

	return out, nil
}

// listInTrash lists trashed rows beneath a directory, in the same three
// shapes as list.
func (c *catalog) listInTrash(ctx context.Context, opts ListOptions) ([]TrashEntry, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	if err := c.validateCollation(opts.Collate); err != nil {
		return nil, err
	}

	depth := len(opts.Dir) + 1

	var args []any
	cond := dirPrefixCond("", opts.Dir, &args)

	var (
		where string
		cols  string
	)

	switch opts.Filter {
	case ListObjectsOnly:
		where = fmt.Sprintf("array_length(path_seg) = %d", depth)
		cols = fmt.Sprintf(
			`path_seg[%d] AS name, TRUE AS is_object,
			 CAST(objectid AS VARCHAR), fullpath,
			 CAST(epoch_ms(rec_time) AS BIGINT), CAST(entityid AS VARCHAR)`, depth)
	case ListDirectoriesOnly:
		where = fmt.Sprintf("array_length(path_seg) > %d", depth)
		cols = fmt.Sprintf(
			`DISTINCT ON (name) path_seg[%d] AS name, FALSE AS is_object,
			 NULL, NULL, NULL, NULL`, depth)
	default:
		isObjectExpr := fmt.Sprintf("array_length(path_seg) = %d", depth)
		where = fmt.Sprintf("array_length(path_seg) >= %d", depth)
		cols = fmt.Sprintf(
			`DISTINCT ON (name, is_object) path_seg[%d] AS name, %s AS is_object,
			 CASE WHEN %s THEN CAST(objectid AS VARCHAR) END,
			 CASE WHEN %s THEN fullpath END,
			 CASE WHEN %s THEN CAST(epoch_ms(rec_time) AS BIGINT) END,
			 CASE WHEN %s THEN CAST(entityid AS VARCHAR) END`,
			depth, isObjectExpr, isObjectExpr, isObjectExpr, isObjectExpr, isObjectExpr)
	}

	kindOrder := "is_object ASC, "
	if opts.Filter != ListAll {
		kindOrder = ""
	} else if opts.PreferObjects {
		kindOrder = "is_object DESC, "
	}

	query := `SELECT ` + cols + `
		FROM metadata_v1
		WHERE rec_type = 'DELETE' AND ` + where + cond + `
		ORDER BY ` + kindOrder + orderExpr(opts.Collate, opts.Desc) + `, objectid` +
		pageClause(opts.Skip, opts.Take)

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog list trash %q: %w", opts.Dir, err)
	}
	defer rows.Close()

	var out []TrashEntry

	for rows.Next() {
		var (
			entry     TrashEntry
			oid       sql.NullString
			fullpath  sql.NullString
			trashedAt sql.NullInt64
			eid       sql.NullString
		)

		err := rows.Scan(&entry.Name, &entry.IsObject, &oid, &fullpath, &trashedAt, &eid)
		if err != nil {
			return nil, fmt.Errorf("omnio: catalog list trash scan: %w", err)
		}

		if oid.Valid {
			if entry.ObjectID, err = ParseObjectID(oid.String); err != nil {
				return nil, err
			}
		}

		if fullpath.Valid {
			if entry.Path, err = ParsePath(fullpath.String); err != nil {
				return nil, err
			}
		}

		if trashedAt.Valid {
			entry.TrashedAt = time.UnixMilli(trashedAt.Int64).UTC()
		}

		if eid.Valid {
			if entry.EntityID, err = ParseEntityID(eid.String); err != nil {
				return nil, err
			}
		}

		out = append(out, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("omnio: catalog list trash rows: %w", err)
	}

	return out, nil
}
