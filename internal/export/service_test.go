package export

import (
	"bytes"
	"encoding/csv"
	"testing"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleRecords() []domain.ChangeRecord {
	at := time.Date(2025, time.June, 14, 9, 30, 0, 0, time.UTC)
	return []domain.ChangeRecord{
		{
			ID:        uuid.New(),
			MemberID:  uuid.New(),
			Section:   "Contact Information",
			UpdatedBy: "registrar",
			Timestamp: at,
			Changes: domain.Changes{
				"mobile": {New: "07700 900123", OldAbsent: true},
				"email":  {Old: "ana@old.example", New: "ana@new.example"},
			},
		},
		{
			ID:        uuid.New(),
			Section:   "Roles",
			Timestamp: at.Add(time.Hour),
			Changes:   domain.Changes{"roles": {Old: []any{"player"}, New: []any{"player", "coach"}}},
		},
	}
}

func TestRowsFlattenRecords(t *testing.T) {
	rows := Rows(sampleRecords())
	require.Len(t, rows, 3)
	assert.Equal(t, Row{Timestamp: "2025-06-14T09:30:00Z", Section: "Contact Information", UpdatedBy: "registrar", Path: "email", Old: "ana@old.example", New: "ana@new.example"}, rows[0])
	assert.Equal(t, unsetCell, rows[1].Old)
	assert.Equal(t, `["player","coach"]`, rows[2].New)
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleRecords()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, header, records[0])
	assert.Equal(t, "mobile", records[2][3])
}

func TestWriteXLSXRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleRecords()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{"2025-06-14T10:30:00Z", "Roles", "", "roles", `["player"]`, `["player","coach"]`}, rows[3])
}

func TestParseFormat(t *testing.T) {
	got, err := ParseFormat(" XLSX ")
	require.NoError(t, err)
	assert.Equal(t, FormatXLSX, got)

	_, err = ParseFormat("pdf")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestFileName(t *testing.T) {
	now := time.Date(2025, time.June, 14, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "change-history-ana-silva-20250614.xlsx", FileName("Ana Silva", FormatXLSX, now))
	assert.Equal(t, "change-history-20250614.csv", FileName("", FormatCSV, now))
}
