package tracker

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// syncBuffer guards a bytes.Buffer against the watcher goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.buf.String()
}

func TestWatchDumpsOnControlFileWrite(t *testing.T) {
	tr := New(newStubAllocator(false), WithWarnWriter(&bytes.Buffer{}))

	_, err := tr.Alloc(128, testOrigin(1))
	require.NoError(t, err)

	ctrl := filepath.Join(t.TempDir(), "dump")
	out := &syncBuffer{}

	watcher, err := tr.Watch(ctrl, out)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(ctrl, []byte("x"), 0o644))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "===== Memory Leak Report =====")
	}, 5*time.Second, 20*time.Millisecond, "no live dump after control file write")

	require.Contains(t, out.String(), "Total bytes allocated:   128")
}

func TestWatchIgnoresOtherFiles(t *testing.T) {
	tr := New(newStubAllocator(false), WithWarnWriter(&bytes.Buffer{}))

	dir := t.TempDir()
	ctrl := filepath.Join(dir, "dump")
	out := &syncBuffer{}

	watcher, err := tr.Watch(ctrl, out)
	require.NoError(t, err)
	defer watcher.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "unrelated"), []byte("x"), 0o644))

	time.Sleep(200 * time.Millisecond)
	require.Empty(t, out.String())
}
