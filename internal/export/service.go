package export

import (
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/joseph-ayodele/form16-extractor/internal/journal"
)

// Service turns journal entries into an XLSX workbook.
type Service struct {
	store  journal.Store
	logger *zap.Logger
}

func NewService(store journal.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// JournalXLSX returns the journal for a date window as XLSX bytes.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> everything.
func (s *Service) JournalXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()

	f := journal.Filter{}
	if from != nil {
		d := dateOnly(*from)
		f.From = &d
	}
	if to != nil {
		d := dateOnly(*to).AddDate(0, 0, 1)
		f.To = &d
	} else if from != nil {
		d := dateOnly(time.Now()).AddDate(0, 0, 1)
		f.To = &d
	}

	entries, err := s.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}

	x := excelize.NewFile()
	defer x.Close()
	const sheet = "Journal"
	if err := x.SetSheetName(x.GetSheetName(0), sheet); err != nil {
		return nil, err
	}

	headers := []string{"Job ID", "Started", "Kind", "File", "Status", "Error Code", "Model", "Duration (ms)"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = x.SetCellValue(sheet, cell, h)
	}

	for i, e := range entries {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = x.SetCellValue(sheet, cell, v)
		}
		write(1, e.ID.String())
		write(2, e.StartedAt.UTC().Format(time.RFC3339))
		write(3, string(e.Kind))
		write(4, truncate(e.Filename, 120))
		write(5, string(e.Status))
		write(6, e.ErrorCode)
		write(7, e.Model)
		write(8, e.DurationMS)
	}

	_ = x.SetColWidth(sheet, "A", "A", 38) // id
	_ = x.SetColWidth(sheet, "B", "B", 22) // started
	_ = x.SetColWidth(sheet, "D", "D", 48) // file
	_ = x.SetColWidth(sheet, "E", "G", 18)

	buf, err := x.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		zap.Int("rows", len(entries)),
		zap.Int64("elapsed_ms", time.Since(start).Milliseconds()),
	)
	return buf.Bytes(), nil
}

func dateOnly(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	if n <= 1 {
		return s[:n]
	}
	return s[:n-1] + "…"
}
