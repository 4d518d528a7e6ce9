package staging

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocal_StageReadRemove(t *testing.T) {
	dir := t.TempDir()
	l, err := NewLocal(dir, nil)
	require.NoError(t, err)

	ctx := context.Background()
	h, err := l.Stage(ctx, "Form16.PDF", []byte("%PDF-1.4"), "application/pdf")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(h.Location()))
	assert.Equal(t, ".pdf", filepath.Ext(h.Location()))

	got, err := h.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.4", string(got))

	require.NoError(t, h.Remove(ctx))
	_, err = os.Stat(h.Location())
	assert.True(t, os.IsNotExist(err))

	// second remove is a no-op
	assert.NoError(t, h.Remove(ctx))
}

func TestSafeExt(t *testing.T) {
	assert.Equal(t, ".png", safeExt("scan.PNG"))
	assert.Equal(t, "", safeExt("noext"))
	assert.Equal(t, "", safeExt("evil.p/g"))
	assert.Equal(t, "", safeExt("x.a b"))
}
