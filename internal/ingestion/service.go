package ingestion

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rpattn/clubhouse/internal/catalog"
	"github.com/rpattn/clubhouse/internal/domain"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned when an uploaded file is not supported.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	byteOrderMark = []byte{0xEF, 0xBB, 0xBF}
)

// Column keys after header normalisation.
const (
	colName           = "name"
	colDescription    = "description"
	colScope          = "scope"
	colOwner          = "owner"
	colMinAge         = "minage"
	colMaxAge         = "maxage"
	colBaseAmount     = "baseamount"
	colCurrency       = "currency"
	colFrequency      = "frequency"
	colAdditionalFees = "additionalfees"
	colActive         = "active"
)

var headerAliases = map[string]string{
	"type":           colName,
	"membershiptype": colName,
	"ownerid":        colOwner,
	"scopeownerid":   colOwner,
	"fee":            colBaseAmount,
	"amount":         colBaseAmount,
	"extras":         colAdditionalFees,
	"extrafees":      colAdditionalFees,
}

var requiredColumns = []string{colName, colScope, colBaseAmount, colCurrency, colFrequency}

// Creator stores imported definitions.
type Creator interface {
	Create(ctx context.Context, def domain.MembershipTypeDefinition) (domain.MembershipTypeDefinition, error)
}

// Service imports membership types from CSV or XLSX sheets.
type Service struct {
	catalog Creator
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService creates a new import service.
func NewService(creator Creator, opts ...Option) *Service {
	s := &Service{catalog: creator}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Request describes the import input.
type Request struct {
	FileName       string
	HeaderRowIndex *int
	// DryRun validates every row without writing.
	DryRun bool
	Data   io.Reader
}

// RowError ties a validation failure to its 1-based sheet row.
type RowError struct {
	RowNumber int    `json:"rowNumber"`
	Message   string `json:"message"`
}

// HeaderCandidate represents a potential header row option.
type HeaderCandidate struct {
	Index   int      `json:"index"`
	Values  []string `json:"values"`
	Current bool     `json:"current"`
}

// Summary returns import level counts.
type Summary struct {
	TotalRows        int                               `json:"totalRows"`
	ValidRows        int                               `json:"validRows"`
	InvalidRows      int                               `json:"invalidRows"`
	Created          []domain.MembershipTypeDefinition `json:"created"`
	Errors           []RowError                        `json:"errors"`
	HeaderCandidates []HeaderCandidate                 `json:"headerCandidates,omitempty"`
}

type tableData struct {
	headers        []string
	rawHeaders     []string
	rows           [][]string
	rowNumbers     []int
	headerRowIndex int
}

// Import reads the uploaded sheet and creates one membership type per valid
// row. Invalid rows are reported and skipped; a failing store write stops the
// import.
func (s *Service) Import(ctx context.Context, req Request) (Summary, error) {
	summary := Summary{
		Created: []domain.MembershipTypeDefinition{},
		Errors:  []RowError{},
	}

	if req.Data == nil {
		return summary, fmt.Errorf("%w: data reader is required", domain.ErrInvalidInput)
	}
	payload, err := io.ReadAll(req.Data)
	if err != nil {
		return summary, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(payload) == 0 {
		return summary, fmt.Errorf("%w: file is empty", domain.ErrInvalidInput)
	}

	table, records, err := parseTable(req.FileName, payload, req.HeaderRowIndex)
	if err != nil {
		return summary, err
	}
	summary.HeaderCandidates = buildHeaderCandidates(records, 5, table.headerRowIndex)

	columns, err := mapColumns(table.headers)
	if err != nil {
		return summary, err
	}

	summary.TotalRows = len(table.rows)
	defs := make([]domain.MembershipTypeDefinition, 0, len(table.rows))
	for i, row := range table.rows {
		def, err := rowDefinition(columns, row)
		if err != nil {
			summary.InvalidRows++
			summary.Errors = append(summary.Errors, RowError{RowNumber: table.rowNumbers[i], Message: err.Error()})
			continue
		}
		summary.ValidRows++
		defs = append(defs, def)
	}

	if req.DryRun {
		summary.Created = append(summary.Created, defs...)
		return summary, nil
	}

	for _, def := range defs {
		created, err := s.catalog.Create(ctx, def)
		if err != nil {
			return summary, fmt.Errorf("import membership type %q: %w", def.Name, err)
		}
		summary.Created = append(summary.Created, created)
	}

	s.logger.InfoContext(ctx, "membership types imported",
		"file", req.FileName, "created", len(summary.Created), "invalid_rows", summary.InvalidRows)
	return summary, nil
}

func parseTable(fileName string, payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	ext := strings.ToLower(filepath.Ext(fileName))
	switch ext {
	case ".csv":
		return parseCSV(payload, headerRowIndex)
	case ".xlsx":
		return parseExcel(payload, headerRowIndex)
	default:
		return tableData{}, nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

func parseCSV(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return tableData{}, nil, fmt.Errorf("%w: failed to read csv: %w", domain.ErrInvalidInput, err)
	}

	table, err := normalizeTable(records, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, records, nil
}

func parseExcel(payload []byte, headerRowIndex *int) (tableData, [][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return tableData{}, nil, fmt.Errorf("%w: failed to open xlsx: %w", domain.ErrInvalidInput, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return tableData{}, nil, fmt.Errorf("%w: excel file has no sheets", domain.ErrInvalidInput)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return tableData{}, nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	table, err := normalizeTable(rows, headerRowIndex)
	if err != nil {
		return tableData{}, nil, err
	}
	return table, rows, nil
}

func normalizeTable(records [][]string, headerRowIndex *int) (tableData, error) {
	if len(records) == 0 {
		return tableData{}, fmt.Errorf("%w: no rows found in file", domain.ErrInvalidInput)
	}

	headerIndex := -1
	if headerRowIndex != nil {
		if *headerRowIndex < 0 || *headerRowIndex >= len(records) {
			return tableData{}, fmt.Errorf("%w: header row index %d out of range", domain.ErrInvalidInput, *headerRowIndex)
		}
		if len(cleanRow(records[*headerRowIndex])) == 0 {
			return tableData{}, fmt.Errorf("%w: selected header row %d is empty", domain.ErrInvalidInput, *headerRowIndex+1)
		}
		headerIndex = *headerRowIndex
	} else {
		for idx, row := range records {
			if len(cleanRow(row)) > 0 {
				headerIndex = idx
				break
			}
		}
	}
	if headerIndex < 0 {
		return tableData{}, fmt.Errorf("%w: header row could not be detected", domain.ErrInvalidInput)
	}

	headerRow := records[headerIndex]
	headers := sanitizeHeaders(headerRow)
	rawHeaders := make([]string, len(headerRow))
	for i, value := range headerRow {
		rawHeaders[i] = strings.TrimSpace(value)
	}

	table := tableData{headers: headers, rawHeaders: rawHeaders, headerRowIndex: headerIndex}
	for idx := headerIndex + 1; idx < len(records); idx++ {
		row := padRow(records[idx], len(headers))
		if len(cleanRow(row)) == 0 {
			continue
		}
		table.rows = append(table.rows, row)
		table.rowNumbers = append(table.rowNumbers, idx+1)
	}
	return table, nil
}

func buildHeaderCandidates(records [][]string, limit int, currentIndex int) []HeaderCandidate {
	if limit <= 0 {
		limit = 10
	}

	candidates := make([]HeaderCandidate, 0, limit)
	for idx, row := range records {
		if len(cleanRow(row)) == 0 {
			continue
		}

		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = strings.TrimSpace(cell)
		}

		candidates = append(candidates, HeaderCandidate{
			Index:   idx,
			Values:  values,
			Current: idx == currentIndex,
		})

		if len(candidates) >= limit {
			break
		}
	}

	return candidates
}

func cleanRow(row []string) []string {
	var cleaned []string
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			cleaned = append(cleaned, cell)
		}
	}
	return cleaned
}

func sanitizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := strings.ToLower(strings.TrimSpace(value))
		name = strings.NewReplacer(" ", "", ".", "", "-", "", "_", "").Replace(name)
		if alias, ok := headerAliases[name]; ok {
			name = alias
		}
		if name == "" {
			name = fmt.Sprintf("column%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

func padRow(row []string, length int) []string {
	if len(row) >= length {
		return row[:length]
	}
	padded := make([]string, length)
	copy(padded, row)
	return padded
}

func mapColumns(headers []string) (map[string]int, error) {
	columns := make(map[string]int, len(headers))
	for idx, header := range headers {
		columns[header] = idx
	}
	var missing []string
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing columns %s", domain.ErrInvalidInput, strings.Join(missing, ", "))
	}
	return columns, nil
}

// rowDefinition builds a definition through the same path as the YAML seed.
func rowDefinition(columns map[string]int, row []string) (domain.MembershipTypeDefinition, error) {
	cell := func(name string) string {
		idx, ok := columns[name]
		if !ok {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	entry := catalog.SeedMembershipType{
		Name:        cell(colName),
		Description: cell(colDescription),
		Scope:       cell(colScope),
		Owner:       cell(colOwner),
		Fee: catalog.SeedFee{
			BaseAmount: cell(colBaseAmount),
			Currency:   cell(colCurrency),
			Frequency:  cell(colFrequency),
		},
	}

	var err error
	if entry.MinAge, err = optionalInt(colMinAge, cell(colMinAge)); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	if entry.MaxAge, err = optionalInt(colMaxAge, cell(colMaxAge)); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	if entry.Fee.AdditionalFees, err = parseAdditionalFees(cell(colAdditionalFees)); err != nil {
		return domain.MembershipTypeDefinition{}, err
	}
	if raw := cell(colActive); raw != "" {
		active, err := parseBool(raw)
		if err != nil {
			return domain.MembershipTypeDefinition{}, err
		}
		entry.Inactive = !active
	}
	return entry.Definition()
}

func optionalInt(column, raw string) (*int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %q is not a whole number", domain.ErrInvalidInput, column, raw)
	}
	return &v, nil
}

// parseAdditionalFees reads "Insurance:10.00:required; Kit:25.00".
func parseAdditionalFees(raw string) ([]catalog.SeedExtraFee, error) {
	if raw == "" {
		return nil, nil
	}
	var fees []catalog.SeedExtraFee
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		fields := strings.Split(part, ":")
		if len(fields) < 2 || len(fields) > 3 {
			return nil, fmt.Errorf("%w: additional fee %q must be name:amount[:required]", domain.ErrInvalidInput, part)
		}
		fee := catalog.SeedExtraFee{Name: strings.TrimSpace(fields[0]), Amount: strings.TrimSpace(fields[1])}
		if len(fields) == 3 {
			switch strings.ToLower(strings.TrimSpace(fields[2])) {
			case "required", "req", "true", "yes":
				fee.Required = true
			case "optional", "opt", "false", "no", "":
			default:
				return nil, fmt.Errorf("%w: additional fee %q has unknown flag %q", domain.ErrInvalidInput, fee.Name, fields[2])
			}
		}
		fees = append(fees, fee)
	}
	return fees, nil
}

func parseBool(raw string) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(raw))
	switch value {
	case "1", "yes", "y":
		return true, nil
	case "0", "no", "n":
		return false, nil
	}
	v, err := strconv.ParseBool(value)
	if err != nil {
		return false, fmt.Errorf("%w: unable to read %q as a boolean", domain.ErrInvalidInput, raw)
	}
	return v, nil
}
