package graph

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

type countingReloader struct {
	calls chan struct{}
}

func (r *countingReloader) Reload(context.Context) *Snapshot {
	r.calls <- struct{}{}
	return EmptySnapshot()
}

func TestWatcher_DebouncedReload(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	path := filepath.Join(dir, "graph.graphml")
	target := &countingReloader{calls: make(chan struct{}, 8)}

	w, err := NewWatcher(path, target, 50*time.Millisecond, zaptest.NewLogger(t))
	require.NoError(t, err)
	w.Start()
	defer w.Stop()

	// A burst of writes collapses into one reload.
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte(sampleGraphML), 0o644))
	}
	select {
	case <-target.calls:
	case <-time.After(5 * time.Second):
		t.Fatal("watcher did not reload")
	}

	// Unrelated files in the same directory are ignored.
	time.Sleep(200 * time.Millisecond)
	for len(target.calls) > 0 {
		<-target.calls
	}
	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.txt"), []byte("x"), 0o644))
	select {
	case <-target.calls:
		t.Fatal("reload triggered by unrelated file")
	case <-time.After(200 * time.Millisecond):
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	defer goleak.VerifyNone(t)

	w, err := NewWatcher(filepath.Join(t.TempDir(), "g.json"), &countingReloader{calls: make(chan struct{}, 1)}, 0, nil)
	require.NoError(t, err)
	w.Start()
	w.Stop()
	w.Stop()

	unstarted, err := NewWatcher(filepath.Join(t.TempDir(), "g.json"), &countingReloader{}, 0, nil)
	require.NoError(t, err)
	assert.NotPanics(t, unstarted.Stop)
}

func TestNewWatcher_MissingDirectory(t *testing.T) {
	_, err := NewWatcher(filepath.Join(t.TempDir(), "nope", "g.json"), &countingReloader{}, 0, nil)
	assert.Error(t, err)
}
