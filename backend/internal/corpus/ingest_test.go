package corpus

import (
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"
)

func TestIngestor_Completes(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "Ada Notes.txt", "Ada Lovelace wrote the first program.")
	writeFile(t, dir, "engine.md", "The Analytical Engine was designed by Babbage.")
	writeFile(t, dir, "blank.txt", "   \n")

	var (
		mu       sync.Mutex
		finished []Status
	)
	ix := NewIndex(200, 20)
	in := NewIngestor(ix, IngestOptions{
		MaxParallel: 2,
		Logger:      zaptest.NewLogger(t),
		OnComplete: func(s Status) {
			mu.Lock()
			finished = append(finished, s)
			mu.Unlock()
		},
	})
	defer in.Close()

	assert.Equal(t, StatusIdle, in.Status().Status)

	started := in.Start(dir)
	assert.Equal(t, StatusProcessing, started.Status)
	assert.NotEmpty(t, started.JobID)
	require.NotNil(t, started.StartedAt)
	in.Wait()

	final := in.Status()
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Equal(t, started.JobID, final.JobID)
	assert.Equal(t, 3, final.TotalDocuments)
	assert.Equal(t, 2, final.DocumentsProcessed, "empty documents are skipped")
	assert.Nil(t, final.Error)
	assert.Nil(t, final.CurrentFile)
	require.NotNil(t, final.FinishedAt)

	assert.Equal(t, 2, ix.Documents())
	hits := ix.Retrieve("who wrote the first program", 1)
	require.Len(t, hits, 1)
	assert.Equal(t, "ada-notes", hits[0].DocID)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, finished, 1)
	assert.Equal(t, final, finished[0])
}

func TestIngestor_RecordsFailures(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "good.txt", "Charles Babbage")
	writeFile(t, dir, "bad.json", "{")
	writeFile(t, dir, "worse.pdf", "not a pdf")

	in := NewIngestor(NewIndex(100, 0), IngestOptions{MaxParallel: 4})
	defer in.Close()

	in.Start(dir)
	in.Wait()

	final := in.Status()
	assert.Equal(t, StatusFailed, final.Status)
	assert.Equal(t, 1, final.DocumentsProcessed)
	assert.Equal(t, 3, final.TotalDocuments)
	require.NotNil(t, final.Error)
	assert.Contains(t, *final.Error, "bad.json: ")
	assert.Contains(t, *final.Error, "; worse.pdf: ")
}

func TestIngestor_MissingDirectoryCompletesEmpty(t *testing.T) {
	defer goleak.VerifyNone(t)

	in := NewIngestor(NewIndex(100, 0), IngestOptions{})
	defer in.Close()

	in.Start(filepath.Join(t.TempDir(), "missing"))
	in.Wait()

	final := in.Status()
	assert.Equal(t, StatusCompleted, final.Status)
	assert.Zero(t, final.TotalDocuments)
}

func TestIngestor_StartWhileProcessingReturnsRunningJob(t *testing.T) {
	defer goleak.VerifyNone(t)

	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "Ada")

	release := make(chan struct{})
	in := NewIngestor(NewIndex(100, 0), IngestOptions{
		OnComplete: func(Status) { <-release },
	})
	defer in.Close()

	first := in.Start(dir)
	second := in.Start(dir)
	assert.Equal(t, first.JobID, second.JobID)

	close(release)
	in.Wait()

	third := in.Start(dir)
	assert.NotEqual(t, first.JobID, third.JobID)
	in.Wait()
}
