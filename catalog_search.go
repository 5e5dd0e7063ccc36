package omnio

import (
	"context"
	"fmt"
)

// SearchOptions controls a BM25 description search.
type SearchOptions struct {
	// Dir scopes the search (empty for the bucket root).
	Dir DirPath

	// Query is the presentation-form search string; it passes through
	// the TextSearch normaliser before matching.
	Query string

	// Recursive extends the search below the immediate children.
	Recursive bool

	// ScoreThreshold drops results scoring below it.
	ScoreThreshold float64

	// Skip and Take page through results. Take <= 0 means unbounded.
	Skip int
	Take int
}

// SearchResult is one BM25 match, ordered by descending score.
type SearchResult struct {
	ObjectID    ObjectID
	Path        Path
	Description *string
	Score       float64
}

// rebuildFTSIndex recreates the full-text index over
// (objectid, fullpath, desc_fts). Rebuilding is idempotent; the call
// happens lazily on the first search after any description change.
const rebuildFTSIndex = `PRAGMA create_fts_index(
	'metadata_v1', 'objectid', 'fullpath', 'desc_fts',
	stemmer = 'none', stopwords = 'none', lower = 1, overwrite = 1
)`

// ensureFTSIndex rebuilds the index when the dirty flag is set. Racing
// writers may all set the flag; the rebuild absorbs them all.
func (c *catalog) ensureFTSIndex(ctx context.Context) error {
	c.ftsMu.Lock()
	defer c.ftsMu.Unlock()

	if !c.ftsOK {
		return fmt.Errorf("omnio: full-text search unavailable: %w", c.ftsErr)
	}

	if !c.ftsDirty {
		return nil
	}

	if _, err := c.db.ExecContext(ctx, rebuildFTSIndex); err != nil {
		return fmt.Errorf("omnio: rebuilding fts index: %w", err)
	}

	c.ftsDirty = false
	c.logger.Debug("catalog: fts index rebuilt")

	return nil
}

// search runs a BM25 query over descriptions beneath a directory.
func (c *catalog) search(ctx context.Context, opts SearchOptions) ([]SearchResult, error) {
	if err := c.checkOpen(); err != nil {
		return nil, err
	}

	if err := c.ensureFTSIndex(ctx); err != nil {
		return nil, err
	}

	depth := len(opts.Dir) + 1

	depthOp := "="
	if opts.Recursive {
		depthOp = ">="
	}

	args := []any{c.ts.ToQueryString(opts.Query)}
	cond := dirPrefixCond("", opts.Dir, &args)
	args = append(args, opts.ScoreThreshold)

	query := fmt.Sprintf(`SELECT CAST(objectid AS VARCHAR), fullpath, desc_fts, score FROM (
			SELECT objectid, fullpath, desc_fts,
				fts_main_metadata_v1.match_bm25(objectid, ?) AS score
			FROM metadata_v1
			WHERE rec_type <> 'DELETE' AND array_length(path_seg) %s %d%s
		) AS matches
		WHERE score IS NOT NULL AND score >= ?
		ORDER BY score DESC, fullpath ASC%s`,
		depthOp, depth, cond, pageClause(opts.Skip, opts.Take))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("omnio: catalog search %q: %w", opts.Query, err)
	}
	defer rows.Close()

	var out []SearchResult

	for rows.Next() {
		var (
			result   SearchResult
			fullpath string
			desc     *string
		)

		if err := rows.Scan(&result.ObjectID, &fullpath, &desc, &result.Score); err != nil {
			return nil, fmt.Errorf("omnio: catalog search scan: %w", err)
		}

		if result.Path, err = ParsePath(fullpath); err != nil {
			return nil, err
		}

		if desc != nil {
			presented := c.ts.FromQueryString(*desc)
			result.Description = &presented
		}

		out = append(out, result)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("omnio: catalog search rows: %w", err)
	}

	return out, nil
}

// supportsSearch reports whether the full-text extension loaded. Stores
// opened without it serve every operation except search.
func (c *catalog) supportsSearch() bool {
	c.ftsMu.Lock()
	defer c.ftsMu.Unlock()

	return c.ftsOK
}
