package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/form16-extractor/constants"
	"github.com/joseph-ayodele/form16-extractor/internal/journal"
)

type fakeStore struct {
	journal.Noop
	entries []journal.Entry
	got     journal.Filter
}

func (f *fakeStore) List(_ context.Context, flt journal.Filter) ([]journal.Entry, error) {
	f.got = flt
	return f.entries, nil
}

func TestJournalXLSX(t *testing.T) {
	id := uuid.New()
	store := &fakeStore{entries: []journal.Entry{{
		ID:         id,
		Kind:       constants.PDF,
		Filename:   "form16.pdf",
		Status:     constants.JobStatusNotRecognized,
		ErrorCode:  "PARSE_ERROR",
		Model:      "gpt-4",
		StartedAt:  time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC),
		DurationMS: 812,
	}}}

	from := time.Date(2024, 6, 1, 15, 0, 0, 0, time.UTC)
	to := time.Date(2024, 6, 30, 8, 0, 0, 0, time.UTC)
	b, err := NewService(store, nil).JournalXLSX(context.Background(), &from, &to)
	require.NoError(t, err)

	require.NotNil(t, store.got.From)
	require.NotNil(t, store.got.To)
	assert.Equal(t, time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), *store.got.From)
	assert.Equal(t, time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC), *store.got.To)

	x, err := excelize.OpenReader(bytes.NewReader(b))
	require.NoError(t, err)
	rows, err := x.GetRows("Journal")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Job ID", rows[0][0])
	assert.Equal(t, id.String(), rows[1][0])
	assert.Equal(t, "NOT_RECOGNIZED", rows[1][4])
	assert.Equal(t, "812", rows[1][7])
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "ab…", truncate("abcdef", 3))
}
