package ingest

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/common"
	"github.com/joseph-ayodele/form16-extractor/internal/llm"
	"github.com/joseph-ayodele/form16-extractor/internal/pipeline"
)

type Processor interface {
	Process(ctx context.Context, doc pipeline.UploadedDocument) (llm.FormFields, error)
}

// FileResult is the outcome for one file. Err is nil on success.
type FileResult struct {
	Path    string
	Fields  llm.FormFields
	Err     error
	Elapsed time.Duration
}

type Batch struct {
	Proc        Processor
	Concurrency int
	Logger      *zap.Logger
}

// Run processes files with at most Concurrency in flight and returns results
// in input order. Per-file failures land in FileResult.Err; Run itself only
// fails when ctx is cancelled.
func (b *Batch) Run(ctx context.Context, files []string) ([]FileResult, error) {
	logger := b.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	limit := b.Concurrency
	if limit <= 0 {
		limit = 1
	}

	results := make([]FileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = FileResult{Path: path, Err: err}
				return err
			}
			results[i] = b.one(gctx, logger, path)
			return nil
		})
	}
	err := g.Wait()
	return results, err
}

func (b *Batch) one(ctx context.Context, logger *zap.Logger, path string) FileResult {
	start := time.Now()
	rid := "file:" + filepath.Base(path)
	ctx = common.WithLogger(common.WithRequestID(ctx, rid), logger.With(zap.String("req_id", rid)))

	content, err := os.ReadFile(path)
	if err != nil {
		return FileResult{Path: path, Err: err, Elapsed: time.Since(start)}
	}
	fields, err := b.Proc.Process(ctx, pipeline.UploadedDocument{
		Content:  content,
		MIMEType: MIMEFromPath(path),
		Filename: filepath.Base(path),
	})
	return FileResult{Path: path, Fields: fields, Err: err, Elapsed: time.Since(start)}
}

// MIMEFromPath derives the upload MIME type a browser would send for path.
func MIMEFromPath(path string) string {
	switch constants.MapExtToKind(filepath.Ext(path)) {
	case constants.PDF:
		return "application/pdf"
	case constants.IMAGE:
		return constants.ImageMIMEFromExt(path)
	default:
		return "application/octet-stream"
	}
}
