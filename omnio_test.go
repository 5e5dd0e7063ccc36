package omnio

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tai-kun/omnio/testutil"
)

// newTestStore opens an in-memory store (memfs entities + in-memory
// catalog).
func newTestStore(t *testing.T, opts ...Option) *Omnio {
	t.Helper()

	ctx := context.Background()

	opts = append([]Option{WithInMemory(), WithLogger(testLogger())}, opts...)

	store, err := Open(ctx, "", opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	return store
}

// newDiskStore opens a store rooted at a temp directory, for tests that
// inspect the on-disk layout.
func newDiskStore(t *testing.T, opts ...Option) (*Omnio, string) {
	t.Helper()

	ctx := context.Background()
	root := testutil.StoreRoot(t)

	opts = append([]Option{WithLogger(testutil.Logger(t))}, opts...)

	store, err := Open(ctx, root, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close(ctx) })

	return store, root
}

func TestOmnio_CreateThenRead(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.PutString(ctx, MustParsePath("file.txt"), "foo", PutOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(3), info.Size)
	assert.Equal(t, 1, info.NumParts)
	assert.Equal(t, "text/plain", info.MimeType)
	assert.Equal(t, "acbd18db4cc2f85cedef654fccc4a4d8", info.Checksum.String())

	obj, err := store.GetObject(ctx, MustParsePath("file.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "foo", text)
	assert.Equal(t, "text/plain", obj.Info.MimeType)
}

func TestOmnio_AppendAcrossParts(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t, WithPartSize(7))
	ctx := context.Background()

	for _, chunk := range []string{"foo", "bar", "baz"} {
		_, err := store.PutString(ctx, MustParsePath("f.bin"), chunk, PutOptions{Flag: FlagAppend})
		require.NoError(t, err)
	}

	info, err := store.HeadObject(ctx, MustParsePath("f.bin"))
	require.NoError(t, err)

	assert.Equal(t, int64(9), info.Size)
	assert.Equal(t, 2, info.NumParts)
	assert.Equal(t, int64(7), info.PartSize)

	whole := mustMD5Hex(t, "foobarbaz")
	assert.Equal(t, whole, info.Checksum.String())

	// Part layout on disk: 1 = "foobarb", 2 = "az".
	entityDir := filepath.Join(root, "buckets", "main", "entities", info.EntityID.String())

	part1, err := os.ReadFile(filepath.Join(entityDir, "1"))
	require.NoError(t, err)
	assert.Equal(t, "foobarb", string(part1))

	part2, err := os.ReadFile(filepath.Join(entityDir, "2"))
	require.NoError(t, err)
	assert.Equal(t, "az", string(part2))

	entries, err := os.ReadDir(entityDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2, "entity holds exactly numParts files")

	// Exactly one entity remains: each append removed its predecessor.
	entities, err := os.ReadDir(filepath.Join(root, "buckets", "main", "entities"))
	require.NoError(t, err)
	assert.Len(t, entities, 1)
}

func TestOmnio_ExclusiveRejection(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("file.txt"), "foo", PutOptions{})
	require.NoError(t, err)

	_, err = store.PutString(ctx, MustParsePath("file.txt"), "x", PutOptions{Flag: FlagWriteExclusive})
	assert.ErrorIs(t, err, ErrObjectExists)

	// Prior contents unchanged.
	obj, err := store.GetObject(ctx, MustParsePath("file.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "foo", text)
}

func TestOmnio_SearchRanking(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	if !store.cat.supportsSearch() {
		t.Skip("fts extension unavailable in this environment")
	}

	descs := map[string]string{
		"i/j/x1.txt": "foo foo foo bar baz",
		"i/j/x2.txt": "foo foo bar bar",
		"i/j/x3.txt": "foo",
	}

	for path, desc := range descs {
		d := desc
		_, err := store.PutString(ctx, MustParsePath(path), "content", PutOptions{Description: &d})
		require.NoError(t, err)
	}

	results, err := store.Search(ctx, SearchOptions{Dir: DirPath{"i", "j"}, Query: "foo"})
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "i/j/x1.txt", results[0].Path.String())

	results, err = store.Search(ctx, SearchOptions{Dir: DirPath{"i"}, Query: "foo"})
	require.NoError(t, err)
	assert.Empty(t, results, "non-recursive search must not descend")
}

func TestOmnio_TrashThenDelete(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t)
	ctx := context.Background()

	info, err := store.PutString(ctx, MustParsePath("a.txt"), "bytes", PutOptions{})
	require.NoError(t, err)

	rec, err := store.TrashObject(ctx, MustParsePath("a.txt"))
	require.NoError(t, err)
	assert.True(t, rec.EntityID.Equal(info.EntityID))

	_, err = store.HeadObject(ctx, MustParsePath("a.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// The entity survives the trash; only the hard delete removes it.
	entityDir := filepath.Join(root, "buckets", "main", "entities", rec.EntityID.String())
	_, err = os.Stat(entityDir)
	require.NoError(t, err)

	trashed, err := store.ListTrash(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	require.Len(t, trashed, 1)
	assert.Equal(t, rec.ObjectID.String(), trashed[0].ObjectID.String())

	require.NoError(t, store.DeleteObject(ctx, rec.ObjectID))

	trashed, err = store.ListTrash(ctx, ListOptions{Filter: ListObjectsOnly})
	require.NoError(t, err)
	assert.Empty(t, trashed)

	_, err = os.Stat(entityDir)
	assert.True(t, os.IsNotExist(err))
}

func TestOmnio_AppendResumeChecksum(t *testing.T) {
	t.Parallel()

	store := newTestStore(t, WithPartSize(4))
	ctx := context.Background()

	oneShot, err := store.PutString(ctx, MustParsePath("f"), "foobarbaz", PutOptions{})
	require.NoError(t, err)

	_, err = store.PutString(ctx, MustParsePath("g"), "foo", PutOptions{})
	require.NoError(t, err)

	resumed, err := store.PutString(ctx, MustParsePath("g"), "barbaz", PutOptions{Flag: FlagAppend})
	require.NoError(t, err)

	assert.Equal(t, oneShot.Checksum.String(), resumed.Checksum.String())
	assert.Equal(t, oneShot.Size, resumed.Size)
	assert.Equal(t, oneShot.NumParts, resumed.NumParts)
}

func TestOmnio_BoundarySizes(t *testing.T) {
	t.Parallel()

	const partSize = 16

	store := newTestStore(t, WithPartSize(partSize))
	ctx := context.Background()

	cases := []struct {
		name     string
		size     int
		numParts int
	}{
		{"empty", 0, 0},
		{"one byte", 1, 1},
		{"exactly one part", partSize, 1},
		{"one over", partSize + 1, 2},
		{"exactly two parts", 2 * partSize, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := MustParsePath("sz/" + tc.name)
			data := strings.Repeat("x", tc.size)

			info, err := store.PutString(ctx, path, data, PutOptions{})
			require.NoError(t, err)

			assert.Equal(t, int64(tc.size), info.Size)
			assert.Equal(t, tc.numParts, info.NumParts)

			obj, err := store.GetObject(ctx, path)
			require.NoError(t, err)

			got, err := obj.Bytes()
			require.NoError(t, err)
			assert.Equal(t, data, string(got))

			assert.Equal(t, mustMD5Hex(t, data), info.Checksum.String())
		})
	}
}

func TestOmnio_EmptyObjectRoundTrip(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	info, err := store.PutString(ctx, MustParsePath("empty.txt"), "", PutOptions{})
	require.NoError(t, err)

	assert.Equal(t, int64(0), info.Size)
	assert.Equal(t, 0, info.NumParts)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", info.Checksum.String())

	obj, err := store.GetObject(ctx, MustParsePath("empty.txt"))
	require.NoError(t, err)

	data, err := obj.Bytes()
	require.NoError(t, err)
	assert.Empty(t, data)

	require.NoError(t, store.RemoveObject(ctx, MustParsePath("empty.txt")))

	_, err = store.HeadObject(ctx, MustParsePath("empty.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOmnio_DescriptionLimit(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	atLimit := strings.Repeat("d", MaxDescriptionBytes)

	_, err := store.PutString(ctx, MustParsePath("ok.txt"), "x", PutOptions{Description: &atLimit})
	require.NoError(t, err)

	over := atLimit + "d"

	_, err = store.PutString(ctx, MustParsePath("no.txt"), "x", PutOptions{Description: &over})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestOmnio_MoveObject(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("a/src.txt"), "payload", PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.MoveObject(ctx, MustParsePath("a/src.txt"), MustParsePath("b/dst.txt"), MoveOptions{}))

	_, err = store.HeadObject(ctx, MustParsePath("a/src.txt"))
	assert.ErrorIs(t, err, ErrObjectNotFound)

	obj, err := store.GetObject(ctx, MustParsePath("b/dst.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "payload", text)

	// Move onto itself is a no-op.
	require.NoError(t, store.MoveObject(ctx, MustParsePath("b/dst.txt"), MustParsePath("b/dst.txt"), MoveOptions{}))

	_, err = store.HeadObject(ctx, MustParsePath("b/dst.txt"))
	require.NoError(t, err)
}

func TestOmnio_MoveMissingSourceLeavesDestination(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("dst.txt"), "precious", PutOptions{})
	require.NoError(t, err)

	err = store.MoveObject(ctx, MustParsePath("gone.txt"), MustParsePath("dst.txt"), MoveOptions{})
	assert.ErrorIs(t, err, ErrObjectNotFound)

	// The failed move is a no-op: the destination object survives.
	obj, err := store.GetObject(ctx, MustParsePath("dst.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "precious", text)
}

func TestOmnio_DeleteObjectIgnoresLiveIDs(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("live.txt"), "alive", PutOptions{})
	require.NoError(t, err)

	info, err := store.HeadObject(ctx, MustParsePath("live.txt"))
	require.NoError(t, err)

	// Hard delete only applies to trashed rows; a live object's id is
	// ignored.
	require.NoError(t, store.DeleteObject(ctx, info.ObjectID))

	obj, err := store.GetObject(ctx, MustParsePath("live.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "alive", text)
}

func TestOmnio_MoveDisplacedEntityRemoved(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("src.txt"), "new", PutOptions{})
	require.NoError(t, err)

	displaced, err := store.PutString(ctx, MustParsePath("dst.txt"), "old", PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.MoveObject(ctx, MustParsePath("src.txt"), MustParsePath("dst.txt"), MoveOptions{}))

	_, err = os.Stat(filepath.Join(root, "buckets", "main", "entities", displaced.EntityID.String()))
	assert.True(t, os.IsNotExist(err), "displaced destination entity must be removed")

	obj, err := store.GetObject(ctx, MustParsePath("dst.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "new", text)
}

func TestOmnio_CopyObject(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t, WithPartSize(4))
	ctx := context.Background()

	src, err := store.PutString(ctx, MustParsePath("src.txt"), "abcdefghij", PutOptions{})
	require.NoError(t, err)

	require.NoError(t, store.CopyObject(ctx, MustParsePath("src.txt"), MustParsePath("cp/dst.txt"), CopyOptions{}))

	obj, err := store.GetObject(ctx, MustParsePath("cp/dst.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "abcdefghij", text)

	// Fresh entity, same checksum; both entities on disk.
	assert.NotEqual(t, src.EntityID.String(), obj.Info.EntityID.String())
	assert.Equal(t, src.Checksum.String(), obj.Info.Checksum.String())

	entities, err := os.ReadDir(filepath.Join(root, "buckets", "main", "entities"))
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	// Exclusive copy onto a live destination fails and leaves no debris.
	err = store.CopyObject(ctx, MustParsePath("src.txt"), MustParsePath("cp/dst.txt"), CopyOptions{Exclusive: true})
	assert.ErrorIs(t, err, ErrObjectExists)

	entities, err = os.ReadDir(filepath.Join(root, "buckets", "main", "entities"))
	require.NoError(t, err)
	assert.Len(t, entities, 2)

	// Copy onto itself is a no-op.
	require.NoError(t, store.CopyObject(ctx, MustParsePath("src.txt"), MustParsePath("src.txt"), CopyOptions{}))
}

func TestOmnio_WriteStreamAbort(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t, WithPartSize(4))
	ctx := context.Background()

	ws, err := store.CreateWriteStream(ctx, MustParsePath("wip.bin"), PutOptions{})
	require.NoError(t, err)

	_, err = ws.Write(bytes.Repeat([]byte{0x1}, 10))
	require.NoError(t, err)

	require.NoError(t, ws.Abort(assert.AnError))

	// Nothing committed, nothing on disk.
	_, err = store.HeadObject(ctx, MustParsePath("wip.bin"))
	assert.ErrorIs(t, err, ErrObjectNotFound)

	entities, err := os.ReadDir(filepath.Join(root, "buckets", "main", "entities"))
	require.NoError(t, err)
	assert.Empty(t, entities)

	// The stream is unusable and reports the abort reason.
	_, err = ws.Write([]byte{0x2})
	assert.ErrorIs(t, err, ErrStreamClosed)
	assert.ErrorIs(t, err, assert.AnError)

	err = ws.Close(ctx)
	assert.ErrorIs(t, err, ErrStreamClosed)
}

func TestOmnio_ExclusiveFailureKeepsPriorEntity(t *testing.T) {
	t.Parallel()

	store, root := newDiskStore(t)
	ctx := context.Background()

	prior, err := store.PutString(ctx, MustParsePath("file.txt"), "keep", PutOptions{})
	require.NoError(t, err)

	_, err = store.PutString(ctx, MustParsePath("file.txt"), "clobber", PutOptions{Flag: FlagWriteExclusive})
	assert.ErrorIs(t, err, ErrObjectExists)

	// Only the prior entity remains; the rejected write's entity is gone.
	entities, err := os.ReadDir(filepath.Join(root, "buckets", "main", "entities"))
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, prior.EntityID.String(), entities[0].Name())
}

func TestOmnio_ListAndStat(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	for _, p := range []string{"dir/a.txt", "dir/b.txt", "dir/sub/c.txt"} {
		_, err := store.PutString(ctx, MustParsePath(p), "x", PutOptions{})
		require.NoError(t, err)
	}

	entries, err := store.List(ctx, ListOptions{Dir: DirPath{"dir"}})
	require.NoError(t, err)
	assert.Len(t, entries, 3) // a.txt, b.txt, sub/

	st, err := store.Stat(ctx, MustParsePath("dir/sub"))
	require.NoError(t, err)
	assert.False(t, st.IsObject)
	assert.True(t, st.IsDirectory)

	ok, err := store.Exists(ctx, MustParsePath("dir/a.txt"))
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.DirExists(ctx, DirPath{"dir", "sub"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestOmnio_ClosedStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	store, err := Open(ctx, "", WithInMemory(), WithLogger(testLogger()))
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))

	_, err = store.PutString(ctx, MustParsePath("x"), "y", PutOptions{})
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.GetObject(ctx, MustParsePath("x"))
	assert.ErrorIs(t, err, ErrClosed)

	_, err = store.List(ctx, ListOptions{})
	assert.ErrorIs(t, err, ErrClosed)

	// Double close is harmless.
	require.NoError(t, store.Close(ctx))
}

func TestOmnio_UpdateMetadata(t *testing.T) {
	t.Parallel()

	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.PutString(ctx, MustParsePath("file.txt"), "x", PutOptions{})
	require.NoError(t, err)

	mime := "application/octet-stream"
	tags := []string{"one", "two"}

	require.NoError(t, store.UpdateMetadata(ctx, MustParsePath("file.txt"), UpdateOptions{
		MimeType:     &mime,
		Tags:         &tags,
		UserMetadata: map[string]any{"k": "v"},
	}))

	info, err := store.HeadObject(ctx, MustParsePath("file.txt"))
	require.NoError(t, err)

	assert.Equal(t, mime, info.MimeType)
	assert.Equal(t, tags, info.Tags)

	meta, ok := info.UserMetadata.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "v", meta["k"])

	err = store.UpdateMetadata(ctx, MustParsePath("gone.txt"), UpdateOptions{})
	assert.ErrorIs(t, err, ErrObjectNotFound)
}

func TestOmnio_PersistenceAcrossReopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	root := testutil.StoreRoot(t)

	store, err := Open(ctx, root, WithLogger(testLogger()))
	require.NoError(t, err)

	_, err = store.PutString(ctx, MustParsePath("keep/me.txt"), "durable", PutOptions{})
	require.NoError(t, err)
	require.NoError(t, store.Close(ctx))

	reopened, err := Open(ctx, root, WithLogger(testLogger()))
	require.NoError(t, err)
	defer reopened.Close(ctx)

	obj, err := reopened.GetObject(ctx, MustParsePath("keep/me.txt"))
	require.NoError(t, err)

	text, err := obj.Text()
	require.NoError(t, err)
	assert.Equal(t, "durable", text)
}
