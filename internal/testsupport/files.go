package testsupport

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"linkrelay/internal/resolver"
)

// WriteMedia writes a stand-in media file of exactly size bytes. A size <= 0
// writes a single byte.
func WriteMedia(t testing.TB, path string, size int64) {
	t.Helper()

	if size <= 0 {
		size = 1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, bytes.Repeat([]byte{0x42}, int(size)), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// MediaHandle returns a fetch handle that drops a size-byte video.mp4 into
// the directory the sink hands it.
func MediaHandle(t testing.TB, size int64) resolver.Handle {
	t.Helper()
	return resolver.HandleFunc(func(_ context.Context, dir string) (string, error) {
		path := filepath.Join(dir, "video.mp4")
		WriteMedia(t, path, size)
		return path, nil
	})
}
