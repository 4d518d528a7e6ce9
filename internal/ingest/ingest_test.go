package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
)

func writeFile(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(filepath.Base(path)), 0o644))
}

func TestCollect(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.pdf"))
	writeFile(t, filepath.Join(root, "sub", "b.PNG"))
	writeFile(t, filepath.Join(root, "sub", "notes.txt"))
	writeFile(t, filepath.Join(root, ".hidden", "c.pdf"))
	writeFile(t, filepath.Join(root, ".d.jpg"))
	explicit := filepath.Join(t.TempDir(), "x.docx")
	writeFile(t, explicit)

	files, stats, err := Collect([]string{root, explicit}, true)
	require.NoError(t, err)

	sort.Strings(files)
	want := []string{filepath.Join(root, "a.pdf"), filepath.Join(root, "sub", "b.PNG"), explicit}
	sort.Strings(want)
	assert.Equal(t, want, files)
	assert.Equal(t, uint32(3), stats.Matched)
	assert.Equal(t, uint32(1), stats.Skipped)
}

func TestCollect_MissingPath(t *testing.T) {
	files, stats, err := Collect([]string{filepath.Join(t.TempDir(), "nope")}, true)
	assert.Error(t, err)
	assert.Empty(t, files)
	assert.Equal(t, uint32(1), stats.Failed)
}

type countingProc struct {
	calls atomic.Int32
}

func (p *countingProc) Process(ctx context.Context, doc pipeline.UploadedDocument) (llm.FormFields, error) {
	p.calls.Add(1)
	if common.RequestIDFromContext(ctx) == "" {
		return llm.FormFields{}, errors.New("missing request id")
	}
	if doc.MIMEType != "application/pdf" {
		return llm.FormFields{}, &common.ParseError{}
	}
	return llm.FormFields{EmployerName: string(doc.Content)}, nil
}

func TestBatch_Run(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.pdf")
	b := filepath.Join(dir, "b.png")
	writeFile(t, a)
	writeFile(t, b)
	missing := filepath.Join(dir, "gone.pdf")

	proc := &countingProc{}
	res, err := (&Batch{Proc: proc, Concurrency: 2}).Run(context.Background(), []string{a, b, missing})
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.NoError(t, res[0].Err)
	assert.Equal(t, "a.pdf", res[0].Fields.EmployerName)
	assert.ErrorIs(t, res[1].Err, common.ErrParse)
	assert.True(t, errors.Is(res[2].Err, os.ErrNotExist))
	assert.Equal(t, int32(2), proc.calls.Load())
}

func TestMIMEFromPath(t *testing.T) {
	assert.Equal(t, "application/pdf", MIMEFromPath("/x/F16.PDF"))
	assert.Equal(t, "image/jpeg", MIMEFromPath("scan.jpg"))
	assert.Equal(t, "application/octet-stream", MIMEFromPath("a.txt"))
}

func TestStartWatcher(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "existing.pdf"))
	writeFile(t, filepath.Join(dir, "notes.txt"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := StartWatcher(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, Debounce: 50 * time.Millisecond})
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watch event")
			return ""
		}
	}
	assert.Equal(t, filepath.Join(dir, "existing.pdf"), next())

	writeFile(t, filepath.Join(dir, "new.png"))
	assert.Equal(t, filepath.Join(dir, "new.png"), next())

	cancel()
	for range events {
	}
}

func TestStartWatcher_NoRoots(t *testing.T) {
	_, _, err := StartWatcher(context.Background(), WatchConfig{})
	assert.Error(t, err)
}
