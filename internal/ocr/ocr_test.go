package ocr

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner imitates pdftoppm, tesseract and the HEIC tools by writing the
// files they would produce.
type fakeRunner struct {
	pages    int
	failTess map[string]bool
	calls    []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name)
	switch name {
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := 1; i <= f.pages; i++ {
			if err := os.WriteFile(fmt.Sprintf("%s-%d.png", prefix, i), []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		page := filepath.Base(args[0])
		if f.failTess[page] {
			return nil, []byte("bad image"), errors.New("exit status 1")
		}
		return []byte("text of " + page), nil, nil
	case "heif-convert", "magick":
		return nil, nil, os.WriteFile(args[1], []byte("\x89PNG converted"), 0o600)
	case "sips":
		return nil, nil, os.WriteFile(args[len(args)-1], []byte("\x89PNG sips"), 0o600)
	}
	return nil, nil, fmt.Errorf("unexpected command %s", name)
}

func TestOCRPDF_ConcatenatesPages(t *testing.T) {
	r := &fakeRunner{pages: 3, failTess: map[string]bool{"page-2.png": true}}
	e := NewExtractorWithRunner(Config{}, r, nil)

	text, pages, warns, err := e.OCRPDF(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 3, pages)
	assert.Equal(t, "text of page-1.png\ntext of page-3.png", text)
	require.NotEmpty(t, warns)
	assert.True(t, strings.Contains(strings.Join(warns, " "), "tesseract"))
}

func TestOCRPDF_MaxPagesAndNoOutput(t *testing.T) {
	r := &fakeRunner{pages: 5}
	e := NewExtractorWithRunner(Config{MaxPages: 2}, r, nil)
	_, pages, _, err := e.OCRPDF(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, 2, pages)

	e = NewExtractorWithRunner(Config{}, &fakeRunner{pages: 0}, nil)
	_, _, _, err = e.OCRPDF(context.Background(), []byte("%PDF"))
	assert.Error(t, err)
}

func TestHEICConverter(t *testing.T) {
	for _, tool := range []string{"heif-convert", "magick", "sips"} {
		c, err := NewHEICConverterWithRunner(tool, &fakeRunner{}, nil)
		require.NoError(t, err)
		png, err := c.ToPNG(context.Background(), []byte("heic bytes"))
		require.NoError(t, err, tool)
		assert.True(t, strings.HasPrefix(string(png), "\x89PNG"), tool)
	}

	_, err := NewHEICConverterWithRunner("ffmpeg", &fakeRunner{}, nil)
	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	in := "FORM NO. 16\r\n\r\n\r\n\r\nName  of\tEmployer:   Acme\f"
	out := Normalize(in)
	assert.NotContains(t, out, "\r")
	assert.NotContains(t, out, "\f")
	assert.Contains(t, out, "Name of Employer: Acme")
	assert.NotContains(t, out, "\n\n\n\n")
}
