package omnio

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio/internal/database"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testBucket(t *testing.T) BucketName {
	t.Helper()

	b, err := ParseBucketName("main")
	require.NoError(t, err)

	return b
}

// newTestCatalog opens a catalog over a fresh in-memory database.
func newTestCatalog(t *testing.T) *catalog {
	t.Helper()

	ctx := context.Background()

	db, err := database.Open(ctx, database.InMemory, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	cat := newCatalog(db, testBucket(t), IdentityTextSearch(), StdJSONCodec(), testLogger())
	require.NoError(t, cat.openCatalog(ctx))

	return cat
}

// testPut builds a plausible row for path: one part holding size bytes.
func testPut(t *testing.T, path string, size int64) catalogPut {
	t.Helper()

	oid, err := NewObjectID()
	require.NoError(t, err)

	eid, err := NewEntityID()
	require.NoError(t, err)

	numParts := 0
	if size > 0 {
		numParts = 1
	}

	sum, err := ParseChecksum("acbd18db4cc2f85cedef654fccc4a4d8")
	require.NoError(t, err)

	return catalogPut{
		ObjectID:  oid,
		Path:      MustParsePath(path),
		EntityID:  eid,
		Size:      size,
		NumParts:  numParts,
		PartSize:  1024,
		MimeType:  "text/plain",
		Checksum:  sum,
		State:     HashState{1, 2, 3, 4, uint64(size), uint64(size % 64)},
		Timestamp: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestCatalog_CreateReadRoundTrip(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	desc := "searchable words"
	meta := `{"owner":"alice","rev":3}`

	put := testPut(t, "docs/readme.md", 42)
	put.Tags = []string{"docs", "markdown"}
	put.Description = &desc
	put.UserMetadata = &meta

	require.NoError(t, cat.create(ctx, put))

	info, err := cat.read(ctx, FullReadSelect(), put.Path)
	require.NoError(t, err)

	assert.Equal(t, "docs/readme.md", info.Path.String())
	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, 1, info.NumParts)
	assert.Equal(t, int64(1024), info.PartSize)
	assert.Equal(t, "text/plain", info.MimeType)
	assert.Equal(t, put.Checksum.String(), info.Checksum.String())
	assert.Equal(t, []string{"docs", "markdown"}, info.Tags)
	require.NotNil(t, info.Description)
	assert.Equal(t, desc, *info.Description)
	assert.True(t, info.EntityID.Equal(put.EntityID))
	assert.Equal(t, put.Timestamp, info.CreatedAt)
	assert.Equal(t, put.Timestamp, info.ModifiedAt)

	// User metadata decodes through the codec.
	decoded, ok := info.UserMetadata.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "alice", decoded["owner"])
}

func TestCatalog_ReadProjection(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	desc := "words"

	put := testPut(t, "file.txt", 42)
	put.Description = &desc
	require.NoError(t, cat.create(ctx, put))

	// A narrow projection leaves unselected fields at their zero value.
	info, err := cat.read(ctx, ReadSelect{Size: true}, put.Path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), info.Size)
	assert.Equal(t, 1, info.NumParts)
	assert.Empty(t, info.MimeType)
	assert.Nil(t, info.Description)
	assert.True(t, info.Checksum.IsZero())
	assert.True(t, info.EntityID.IsZero())
	assert.False(t, info.ObjectID.IsZero())
	assert.Equal(t, "file.txt", info.Path.String())
}

func TestCatalog_ReadMissing(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)

	_, err := cat.read(context.Background(), FullReadSelect(), MustParsePath("nope.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_CreateUpsertsByPath(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	first := testPut(t, "file.txt", 3)
	require.NoError(t, cat.create(ctx, first))

	second := testPut(t, "file.txt", 9)
	second.Timestamp = first.Timestamp.Add(time.Minute)
	require.NoError(t, cat.create(ctx, second))

	info, err := cat.read(ctx, FullReadSelect(), second.Path)
	require.NoError(t, err)

	assert.Equal(t, int64(9), info.Size)
	assert.True(t, info.EntityID.Equal(second.EntityID))
	// Overwrite preserves creation time, advances modification time.
	assert.Equal(t, first.Timestamp, info.CreatedAt)
	assert.Equal(t, second.Timestamp, info.ModifiedAt)

	entries, err := cat.list(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCatalog_CreateExclusiveConflict(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.createExclusive(ctx, testPut(t, "file.txt", 3)))

	err := cat.createExclusive(ctx, testPut(t, "file.txt", 3))
	assert.ErrorIs(t, err, ErrObjectExists)

	var exists *ObjectExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, "file.txt", exists.Path.String())
}

func TestCatalog_SizeBounds(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	// 2 parts of 1024 hold 1025..2048 bytes.
	tooSmall := testPut(t, "s.bin", 1024)
	tooSmall.NumParts = 2
	assert.ErrorIs(t, cat.create(ctx, tooSmall), ErrObjectSizeTooSmall)

	tooLarge := testPut(t, "l.bin", 2049)
	tooLarge.NumParts = 2
	assert.ErrorIs(t, cat.create(ctx, tooLarge), ErrObjectSizeTooLarge)

	ok := testPut(t, "ok.bin", 2048)
	ok.NumParts = 2
	assert.NoError(t, cat.create(ctx, ok))

	empty := testPut(t, "empty.bin", 0)
	empty.NumParts = 0
	assert.NoError(t, cat.create(ctx, empty))
}

func TestCatalog_ReadDetail(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	put := testPut(t, "file.txt", 42)
	require.NoError(t, cat.create(ctx, put))

	detail, err := cat.readDetail(ctx, put.Path)
	require.NoError(t, err)

	assert.Equal(t, int64(42), detail.Size)
	assert.Equal(t, 1, detail.NumParts)
	assert.Equal(t, int64(1024), detail.PartSize)
	assert.Equal(t, put.Checksum.String(), detail.Checksum.String())
	assert.Equal(t, put.State, detail.State)
	assert.True(t, detail.EntityID.Equal(put.EntityID))

	_, err = cat.readDetail(ctx, MustParsePath("missing.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_ExistsAndStat(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	require.NoError(t, cat.create(ctx, testPut(t, "file.txt", 3)))
	require.NoError(t, cat.create(ctx, testPut(t, "file.txt/child", 3)))
	require.NoError(t, cat.create(ctx, testPut(t, "a/b/c.txt", 3)))

	ok, err := cat.existsObject(ctx, MustParsePath("file.txt"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cat.existsObject(ctx, MustParsePath("a"))
	require.NoError(t, err)
	assert.False(t, ok)

	// The root always exists; populated and empty prefixes differ.
	ok, err = cat.existsDir(ctx, DirPath{})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cat.existsDir(ctx, DirPath{"a"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cat.existsDir(ctx, DirPath{"z"})
	require.NoError(t, err)
	assert.False(t, ok)

	// "file.txt" is both an object and a directory prefix.
	st, err := cat.stat(ctx, MustParsePath("file.txt"))
	require.NoError(t, err)
	assert.True(t, st.IsObject)
	assert.True(t, st.IsDirectory)

	st, err = cat.stat(ctx, MustParsePath("a"))
	require.NoError(t, err)
	assert.False(t, st.IsObject)
	assert.True(t, st.IsDirectory)

	st, err = cat.stat(ctx, MustParsePath("a/b/c.txt"))
	require.NoError(t, err)
	assert.True(t, st.IsObject)
	assert.False(t, st.IsDirectory)
}

func TestCatalog_ListShapes(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	for _, p := range []string{
		"dir/alpha.txt",
		"dir/beta.txt",
		"dir/sub/one.txt",
		"dir/sub/two.txt",
		"dir/beta.txt/nested.txt", // beta.txt is object AND directory
		"other/x.txt",
	} {
		require.NoError(t, cat.create(ctx, testPut(t, p, 3)))
	}

	dir := DirPath{"dir"}

	t.Run("objects only", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir, Filter: ListObjectsOnly})
		require.NoError(t, err)

		names := entryNames(entries)
		assert.Equal(t, []string{"alpha.txt", "beta.txt"}, names)

		for _, e := range entries {
			assert.True(t, e.IsObject)
			require.NotNil(t, e.Info)
			assert.Equal(t, int64(3), e.Info.Size)
		}
	})

	t.Run("directories only", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir, Filter: ListDirectoriesOnly})
		require.NoError(t, err)

		assert.Equal(t, []string{"beta.txt", "sub"}, entryNames(entries))

		for _, e := range entries {
			assert.False(t, e.IsObject)
			assert.Nil(t, e.Info)
		}
	})

	t.Run("union preserves duality", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir})
		require.NoError(t, err)

		// beta.txt appears twice: as directory and as object.
		type key struct {
			name     string
			isObject bool
		}

		seen := map[key]bool{}
		for _, e := range entries {
			seen[key{e.Name, e.IsObject}] = true
		}

		assert.True(t, seen[key{"beta.txt", true}])
		assert.True(t, seen[key{"beta.txt", false}])
		assert.True(t, seen[key{"alpha.txt", true}])
		assert.True(t, seen[key{"sub", false}])
		assert.Len(t, entries, 4)
	})

	t.Run("prefer objects first", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir, PreferObjects: true})
		require.NoError(t, err)
		require.NotEmpty(t, entries)
		assert.True(t, entries[0].IsObject)
	})

	t.Run("skip and take", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir, Filter: ListObjectsOnly, Skip: 1, Take: 1})
		require.NoError(t, err)
		assert.Equal(t, []string{"beta.txt"}, entryNames(entries))
	})

	t.Run("descending", func(t *testing.T) {
		entries, err := cat.list(ctx, ListOptions{Dir: dir, Filter: ListObjectsOnly, Desc: true})
		require.NoError(t, err)
		assert.Equal(t, []string{"beta.txt", "alpha.txt"}, entryNames(entries))
	})

	t.Run("unknown collation", func(t *testing.T) {
		_, err := cat.list(ctx, ListOptions{Dir: dir, Collate: "klingon"})
		assert.ErrorIs(t, err, ErrInvalidCollation)
	})

	t.Run("nocase collation", func(t *testing.T) {
		_, err := cat.list(ctx, ListOptions{Dir: dir, Collate: "nocase"})
		assert.NoError(t, err)
	})
}

func entryNames(entries []Entry) []string {
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}

	return names
}

func TestCatalog_TrashLifecycle(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	put := testPut(t, "a.txt", 3)
	require.NoError(t, cat.create(ctx, put))

	rec, err := cat.trash(ctx, put.Path, time.Now())
	require.NoError(t, err)
	assert.False(t, rec.ObjectID.IsZero())
	assert.True(t, rec.EntityID.Equal(put.EntityID))

	// The live row is gone; the path is free for reuse.
	_, err = cat.read(ctx, FullReadSelect(), put.Path)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	require.NoError(t, cat.createExclusive(ctx, testPut(t, "a.txt", 3)))

	// Trash listing shows the original row.
	trashed, err := cat.listInTrash(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, "a.txt", trashed[0].Path.String())
	assert.Equal(t, rec.ObjectID.String(), trashed[0].ObjectID.String())
	assert.True(t, trashed[0].EntityID.Equal(put.EntityID))

	eid, err := cat.readInTrash(ctx, rec.ObjectID)
	require.NoError(t, err)
	assert.True(t, eid.Equal(put.EntityID))

	// Hard delete removes the row; a second delete is a no-op.
	require.NoError(t, cat.deleteRow(ctx, rec.ObjectID))
	require.NoError(t, cat.deleteRow(ctx, rec.ObjectID))

	trashed, err = cat.listInTrash(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	assert.Empty(t, trashed)

	_, err = cat.readInTrash(ctx, rec.ObjectID)
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_TrashMissing(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)

	_, err := cat.trash(context.Background(), MustParsePath("nope.txt"), time.Now())
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_Move(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	put := testPut(t, "src.txt", 3)
	require.NoError(t, cat.create(ctx, put))

	require.NoError(t, cat.move(ctx, put.Path, MustParsePath("moved/dst.txt")))

	_, err := cat.read(ctx, FullReadSelect(), put.Path)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	info, err := cat.read(ctx, FullReadSelect(), MustParsePath("moved/dst.txt"))
	require.NoError(t, err)
	assert.True(t, info.EntityID.Equal(put.EntityID))
	assert.Equal(t, []string{"moved", "dst.txt"}, info.Path.Segments())

	// Missing source.
	err = cat.move(ctx, MustParsePath("gone.txt"), MustParsePath("x.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_MoveDisplacesDestination(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	src := testPut(t, "src.txt", 3)
	dst := testPut(t, "dst.txt", 3)
	require.NoError(t, cat.create(ctx, src))
	require.NoError(t, cat.create(ctx, dst))

	require.NoError(t, cat.move(ctx, src.Path, dst.Path))

	info, err := cat.read(ctx, FullReadSelect(), dst.Path)
	require.NoError(t, err)
	assert.True(t, info.EntityID.Equal(src.EntityID))

	entries, err := cat.list(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestCatalog_MoveMissingSourceLeavesDestination(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	dst := testPut(t, "dst.txt", 3)
	require.NoError(t, cat.create(ctx, dst))

	err := cat.move(ctx, MustParsePath("gone.txt"), dst.Path)
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// The failed move must not displace the destination row.
	info, err := cat.read(ctx, FullReadSelect(), dst.Path)
	require.NoError(t, err)
	assert.True(t, info.EntityID.Equal(dst.EntityID))
}

func TestCatalog_CopyMissingSourceLeavesDestination(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	dst := testPut(t, "dst.txt", 3)
	require.NoError(t, cat.create(ctx, dst))

	oid, err := NewObjectID()
	require.NoError(t, err)

	eid, err := NewEntityID()
	require.NoError(t, err)

	err = cat.copy(ctx, catalogCopy{
		Src:         MustParsePath("gone.txt"),
		Dst:         dst.Path,
		DstObjectID: oid,
		DstEntityID: eid,
		Timestamp:   time.Now(),
	})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	info, err := cat.read(ctx, FullReadSelect(), dst.Path)
	require.NoError(t, err)
	assert.True(t, info.EntityID.Equal(dst.EntityID))
}

func TestCatalog_MoveExclusive(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	src := testPut(t, "src.txt", 3)
	dst := testPut(t, "dst.txt", 3)
	require.NoError(t, cat.create(ctx, src))
	require.NoError(t, cat.create(ctx, dst))

	err := cat.moveExclusive(ctx, src.Path, dst.Path)
	assert.ErrorIs(t, err, ErrObjectExists)

	// Source is untouched after the rejected move.
	_, err = cat.read(ctx, FullReadSelect(), src.Path)
	require.NoError(t, err)

	require.NoError(t, cat.moveExclusive(ctx, src.Path, MustParsePath("free.txt")))

	err = cat.moveExclusive(ctx, MustParsePath("gone.txt"), MustParsePath("other.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_Copy(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	desc := "copy me"

	src := testPut(t, "src.txt", 3)
	src.Description = &desc
	src.Tags = []string{"t1"}
	require.NoError(t, cat.create(ctx, src))

	dstOID, err := NewObjectID()
	require.NoError(t, err)

	dstEID, err := NewEntityID()
	require.NoError(t, err)

	ts := src.Timestamp.Add(time.Hour)

	require.NoError(t, cat.copy(ctx, catalogCopy{
		Src:         src.Path,
		Dst:         MustParsePath("dst.txt"),
		DstObjectID: dstOID,
		DstEntityID: dstEID,
		Timestamp:   ts,
	}))

	info, err := cat.read(ctx, FullReadSelect(), MustParsePath("dst.txt"))
	require.NoError(t, err)

	assert.Equal(t, src.Checksum.String(), info.Checksum.String())
	assert.Equal(t, []string{"t1"}, info.Tags)
	require.NotNil(t, info.Description)
	assert.Equal(t, desc, *info.Description)
	assert.True(t, info.EntityID.Equal(dstEID))
	assert.Equal(t, dstOID.String(), info.ObjectID.String())
	assert.Equal(t, ts, info.CreatedAt)

	// Source is intact.
	_, err = cat.read(ctx, FullReadSelect(), src.Path)
	require.NoError(t, err)

	// Missing source surfaces ObjectNotFound.
	freshOID, err := NewObjectID()
	require.NoError(t, err)

	freshEID, err := NewEntityID()
	require.NoError(t, err)

	err = cat.copy(ctx, catalogCopy{
		Src:         MustParsePath("gone.txt"),
		Dst:         MustParsePath("never.txt"),
		DstObjectID: freshOID,
		DstEntityID: freshEID,
		Timestamp:   ts,
	})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_CopyExclusiveConflict(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	src := testPut(t, "src.txt", 3)
	dst := testPut(t, "dst.txt", 3)
	require.NoError(t, cat.create(ctx, src))
	require.NoError(t, cat.create(ctx, dst))

	oid, err := NewObjectID()
	require.NoError(t, err)

	eid, err := NewEntityID()
	require.NoError(t, err)

	err = cat.copyExclusive(ctx, catalogCopy{
		Src:         src.Path,
		Dst:         dst.Path,
		DstObjectID: oid,
		DstEntityID: eid,
		Timestamp:   time.Now(),
	})
	assert.ErrorIs(t, err, ErrObjectExists)
}

func TestCatalog_UpdatePartial(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	put := testPut(t, "file.txt", 3)
	require.NoError(t, cat.create(ctx, put))

	newMime := "application/json"
	newDesc := "fresh words"
	ts := put.Timestamp.Add(time.Hour)

	require.NoError(t, cat.update(ctx, catalogUpdate{
		Path:        put.Path,
		MimeType:    &newMime,
		Description: &newDesc,
		Timestamp:   ts,
	}))

	info, err := cat.read(ctx, FullReadSelect(), put.Path)
	require.NoError(t, err)

	assert.Equal(t, newMime, info.MimeType)
	require.NotNil(t, info.Description)
	assert.Equal(t, newDesc, *info.Description)
	assert.Equal(t, ts, info.ModifiedAt)
	assert.Equal(t, put.Timestamp, info.CreatedAt)
	// Untouched columns survive.
	assert.Equal(t, int64(3), info.Size)

	// Clearing the description stores NULL.
	empty := ""
	require.NoError(t, cat.update(ctx, catalogUpdate{
		Path:        put.Path,
		Description: &empty,
		Timestamp:   ts,
	}))

	info, err = cat.read(ctx, FullReadSelect(), put.Path)
	require.NoError(t, err)
	assert.Nil(t, info.Description)

	// No fields: pure existence check.
	require.NoError(t, cat.update(ctx, catalogUpdate{Path: put.Path, Timestamp: ts}))

	err = cat.update(ctx, catalogUpdate{Path: MustParsePath("gone.txt"), Timestamp: ts})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_UpdateExclusive(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	put := testPut(t, "file.txt", 3)
	require.NoError(t, cat.create(ctx, put))

	newSum, err := ParseChecksum("6df23dc03f9b54cc38a0fc1483df6e21")
	require.NoError(t, err)

	newEID, err := NewEntityID()
	require.NoError(t, err)

	require.NoError(t, cat.updateExclusive(ctx, catalogUpdateExclusive{
		Path:      put.Path,
		Expect:    put.Checksum,
		Checksum:  newSum,
		State:     HashState{9, 9, 9, 9, 9, 0},
		EntityID:  newEID,
		NumParts:  1,
		PartSize:  1024,
		Size:      9,
		Timestamp: put.Timestamp.Add(time.Hour),
	}))

	detail, err := cat.readDetail(ctx, put.Path)
	require.NoError(t, err)
	assert.Equal(t, newSum.String(), detail.Checksum.String())
	assert.Equal(t, int64(9), detail.Size)
	assert.True(t, detail.EntityID.Equal(newEID))

	// Stale expectation: row present, digest moved.
	err = cat.updateExclusive(ctx, catalogUpdateExclusive{
		Path:      put.Path,
		Expect:    put.Checksum,
		Checksum:  newSum,
		NumParts:  1,
		PartSize:  1024,
		Size:      9,
		Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrChecksumMismatch)

	var mismatch *ChecksumMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, put.Checksum.String(), mismatch.Expected.String())
	assert.Equal(t, newSum.String(), mismatch.Actual.String())

	// Missing row.
	err = cat.updateExclusive(ctx, catalogUpdateExclusive{
		Path:      MustParsePath("gone.txt"),
		Expect:    put.Checksum,
		Checksum:  newSum,
		NumParts:  1,
		PartSize:  1024,
		Size:      9,
		Timestamp: time.Now(),
	})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestCatalog_Search(t *testing.T) {
	t.Parallel()

	cat := newTestCatalog(t)
	ctx := context.Background()

	if !cat.supportsSearch() {
		t.Skip("fts extension unavailable in this environment")
	}

	descs := map[string]string{
		"i/j/x1.txt": "foo foo foo bar baz",
		"i/j/x2.txt": "foo foo bar bar",
		"i/j/x3.txt": "foo",
	}

	for path, d := range descs {
		put := testPut(t, path, 3)
		desc := d
		put.Description = &desc
		require.NoError(t, cat.create(ctx, put))
	}

	results, err := cat.search(ctx, SearchOptions{Dir: DirPath{"i", "j"}, Query: "foo"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Descending BM25 score; x1 carries the most "foo" mass.
	assert.Equal(t, "i/j/x1.txt", results[0].Path.String())
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
	assert.GreaterOrEqual(t, results[1].Score, results[2].Score)

	// Non-recursive search one level up sees nothing from i/j.
	results, err = cat.search(ctx, SearchOptions{Dir: DirPath{"i"}, Query: "foo"})
	require.NoError(t, err)
	assert.Empty(t, results)

	// Recursive search one level up sees everything.
	results, err = cat.search(ctx, SearchOptions{Dir: DirPath{"i"}, Query: "foo", Recursive: true})
	require.NoError(t, err)
	assert.Len(t, results, 3)

	// Trashed rows drop out of the index on the next search.
	_, err = cat.trash(ctx, MustParsePath("i/j/x3.txt"), time.Now())
	require.NoError(t, err)

	results, err = cat.search(ctx, SearchOptions{Dir: DirPath{"i", "j"}, Query: "foo"})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
