package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/xuri/excelize/v2"
)

// Format is an audit export file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"

	sheetName = "Changes"
	unsetCell = "(unset)"
)

var header = []string{"Timestamp", "Section", "Updated By", "Field", "Old Value", "New Value"}

// ParseFormat accepts csv or xlsx, case-insensitively.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case FormatCSV:
		return FormatCSV, nil
	case FormatXLSX:
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, raw)
	}
}

// ContentType is the MIME type served for the format.
func (f Format) ContentType() string {
	if f == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv"
}

// Row is one changed field of one change record.
type Row struct {
	Timestamp string
	Section   string
	UpdatedBy string
	Path      string
	Old       string
	New       string
}

func (r Row) cells() []string {
	return []string{r.Timestamp, r.Section, r.UpdatedBy, r.Path, r.Old, r.New}
}

// Rows flattens records into one row per changed field, keeping record
// order and sorting fields by path within a record.
func Rows(records []domain.ChangeRecord) []Row {
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		for _, path := range rec.Changes.Paths() {
			change := rec.Changes[path]
			old := formatValue(change.Old)
			if change.OldAbsent {
				old = unsetCell
			}
			rows = append(rows, Row{
				Timestamp: rec.Timestamp.UTC().Format(time.RFC3339),
				Section:   rec.Section,
				UpdatedBy: rec.UpdatedBy,
				Path:      path,
				Old:       old,
				New:       formatValue(change.New),
			})
		}
	}
	return rows
}

// Write renders records to w in the given format.
func Write(w io.Writer, format Format, records []domain.ChangeRecord) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, records)
	case FormatXLSX:
		return WriteXLSX(w, records)
	default:
		return fmt.Errorf("%w: unsupported export format %q", domain.ErrInvalidInput, format)
	}
}

func WriteCSV(w io.Writer, records []domain.ChangeRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	for _, row := range Rows(records) {
		if err := writer.Write(row.cells()); err != nil {
			return fmt.Errorf("failed to write csv row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func WriteXLSX(w io.Writer, records []domain.ChangeRecord) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &header); err != nil {
		return fmt.Errorf("failed to write xlsx header: %w", err)
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(sheetName, "A1", "F1", bold); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range Rows(records) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		cells := row.cells()
		if err := f.SetSheetRow(sheetName, cell, &cells); err != nil {
			return fmt.Errorf("failed to write xlsx row %d: %w", i+2, err)
		}
	}
	if err := f.SetColWidth(sheetName, "A", "F", 24); err != nil {
		return fmt.Errorf("failed to size columns: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write xlsx: %w", err)
	}
	return nil
}

// FileName builds a download name such as change-history-ana-silva-20250614.xlsx.
func FileName(label string, format Format, now time.Time) string {
	name := "change-history"
	if component := sanitizeFileComponent(label); component != "" {
		name += "-" + component
	}
	return fmt.Sprintf("%s-%s.%s", name, now.UTC().Format("20060102"), format)
}

func sanitizeFileComponent(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	builder := strings.Builder{}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-' || r == '_':
			builder.WriteRune(r)
		default:
			builder.WriteRune('-')
		}
	}
	return strings.Trim(builder.String(), "-")
}

func formatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float32, float64, int, int32, int64:
		return fmt.Sprintf("%v", v)
	case map[string]any, []any:
		encoded, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}
