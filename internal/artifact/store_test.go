package artifact

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRelVideoPath_Layout(t *testing.T) {
	got := relVideoPath("proj-1", 2, 0, "video_abc")
	want := filepath.Join(
		"data",
		"video_generations_result_proj-1",
		"segment_2",
		"generation_result_0",
		"generated_video_video_abc.mp4",
	)
	assert.Equal(t, want, got)
}

func TestLocalStore_VideoPath(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path := store.VideoPath("proj-1", 0, 1, "v1")
	assert.True(t, strings.HasPrefix(path, store.Root()))
	assert.True(t, strings.HasSuffix(path, filepath.Join(
		"data", "video_generations_result_proj-1", "segment_0", "generation_result_1", "generated_video_v1.mp4",
	)))

	// Same tuple, same path.
	assert.Equal(t, path, store.VideoPath("proj-1", 0, 1, "v1"))
}

func TestNewLocalStore_CreatesRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "nested", "root")
	store, err := NewLocalStore(root)
	require.NoError(t, err)
	assert.Equal(t, root, store.Root())

	info, err := os.Stat(root)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestLocalStore_SaveAndExists(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	path := store.VideoPath("proj-1", 0, 0, "v1")
	assert.False(t, store.Exists(path))

	require.NoError(t, store.Save(ctx, path, strings.NewReader("mp4-bytes")))
	assert.True(t, store.Exists(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "mp4-bytes", string(data))
}

func TestLocalStore_SaveCancelledContext(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	path := store.VideoPath("proj-1", 0, 0, "v1")
	require.Error(t, store.Save(ctx, path, strings.NewReader("x")))
	assert.False(t, store.Exists(path))
}

func TestLocalStore_ExistsIgnoresDirectories(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	dir := filepath.Join(store.Root(), "somedir")
	require.NoError(t, os.MkdirAll(dir, 0750))
	assert.False(t, store.Exists(dir))
}

// errReader fails after the first byte to exercise cleanup of partial writes.
type errReader struct{ read bool }

func (r *errReader) Read(p []byte) (int, error) {
	if r.read {
		return 0, assert.AnError
	}
	r.read = true
	p[0] = 'x'
	return 1, nil
}

func TestLocalStore_SaveRemovesPartialFile(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	require.NoError(t, err)

	path := store.VideoPath("proj-1", 0, 0, "v1")
	require.Error(t, store.Save(context.Background(), path, &errReader{}))
	assert.False(t, store.Exists(path))
}
