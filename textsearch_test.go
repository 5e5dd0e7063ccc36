package omnio

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityTextSearch_RoundTrip(t *testing.T) {
	t.Parallel()

	ts := IdentityTextSearch()

	for _, s := range []string{"", "foo", "Grüße", "日本語 テキスト", "MiXeD Case"} {
		assert.Equal(t, s, ts.FromQueryString(ts.ToQueryString(s)))
	}
}

func TestFoldingTextSearch_FoldsCase(t *testing.T) {
	t.Parallel()

	ts := FoldingTextSearch()

	assert.Equal(t, ts.ToQueryString("HELLO World"), ts.ToQueryString("hello world"))
	assert.Equal(t, ts.ToQueryString("STRASSE"), ts.ToQueryString("straße"))

	// Folding is stable: applying it twice changes nothing.
	once := ts.ToQueryString("Grüße")
	assert.Equal(t, once, ts.ToQueryString(once))
}

func TestStdJSONCodec_RoundTrip(t *testing.T) {
	t.Parallel()

	codec := StdJSONCodec()

	in := map[string]any{
		"name":   "alice",
		"rev":    float64(3),
		"nested": map[string]any{"ok": true},
		"list":   []any{"a", float64(1)},
	}

	encoded, err := codec.Marshal(in)
	require.NoError(t, err)

	out, err := codec.Unmarshal(encoded)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	_, err = codec.Unmarshal("{not json")
	assert.Error(t, err)
}
