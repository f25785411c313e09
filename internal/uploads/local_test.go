package uploads

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSource(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "src.bin")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestCreateUsesGivenID(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads")
	src := writeSource(t, "image bytes")

	h, err := store.Create(context.Background(), 42, 7, src, "photo.PNG")
	require.NoError(t, err)

	assert.Equal(t, int64(42), h.ID)
	assert.Equal(t, "/uploads/042/42.png", h.URL)

	// the stored file lives under the id-derived path the URL points at
	stored := filepath.Join(store.BaseDir, "042", "42.png")
	data, err := os.ReadFile(stored)
	require.NoError(t, err)
	assert.Equal(t, "image bytes", string(data))
}

func TestCreateIDsNeverDrift(t *testing.T) {
	store := NewLocalStore(t.TempDir(), "/uploads")
	src := writeSource(t, "x")

	// non-contiguous ids, as left by dedupe-skipped rows spending ids
	for _, id := range []int64{3, 7, 1500} {
		h, err := store.Create(context.Background(), id, 1, src, "f.txt")
		require.NoError(t, err)
		assert.Equal(t, id, h.ID)
		assert.Contains(t, h.URL, fmt.Sprintf("/%d.txt", id))
	}
}

func TestRenderReference(t *testing.T) {
	store := NewLocalStore("", "/uploads")
	h := Handle{ID: 1, URL: "/uploads/001/1.png"}

	assert.Equal(t, "![pic.png](/uploads/001/1.png)", store.RenderReference(h, "pic.png"))
	assert.Equal(t, "[doc.pdf](/uploads/001/1.pdf)",
		store.RenderReference(Handle{ID: 1, URL: "/uploads/001/1.pdf"}, "doc.pdf"))
}

func TestHashFile(t *testing.T) {
	src := writeSource(t, "hello")
	sha, err := HashFile(src)
	require.NoError(t, err)
	assert.Equal(t, "aaf4c61ddcc5e8a2dabede0f3b482cd9aea9434d", sha)
}

func TestDeduper(t *testing.T) {
	d := NewDeduper(map[string]int64{"abc": 5})

	id, ok := d.Lookup("abc")
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)

	_, ok = d.Lookup("def")
	assert.False(t, ok)

	d.Record("def", 9)
	id, ok = d.Lookup("def")
	assert.True(t, ok)
	assert.Equal(t, int64(9), id)
}
