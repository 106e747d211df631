package feed

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/opencorp/clientsync/internal/domain"
)

// ErrSourceFetch marks failures reaching or decoding the external source.
// These are fatal to the whole run.
var ErrSourceFetch = errors.New("source fetch failed")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// Row is one record keyed by normalized header.
type Row map[string]string

// Table is the ordered result of fetching a feed: the resolved header list
// plus the data rows in source order.
type Table struct {
	Headers []string
	Rows    []Row
}

// Source fetches raw rows for a feed configuration.
type Source interface {
	Fetch(ctx context.Context, cfg Config) (Table, error)
}

// HTTPSource fetches spreadsheets from an export URL or a local path.
type HTTPSource struct {
	client *http.Client
}

// NewHTTPSource builds a source with a bounded request timeout.
func NewHTTPSource() *HTTPSource {
	return &HTTPSource{client: &http.Client{Timeout: 30 * time.Second}}
}

// Fetch downloads and parses the configured source. The file extension of the
// location decides the decoder; xlsx tabs are selected by cfg.Sheet.
func (s *HTTPSource) Fetch(ctx context.Context, cfg Config) (Table, error) {
	payload, name, err := s.read(ctx, cfg.Location)
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrSourceFetch, err)
	}
	if len(payload) == 0 {
		return Table{}, fmt.Errorf("%w: source %s is empty", ErrSourceFetch, cfg.Location)
	}

	var records [][]string
	switch ext := strings.ToLower(path.Ext(name)); ext {
	case ".csv":
		records, err = parseCSV(payload)
	case ".xlsx":
		records, err = parseExcel(payload, cfg.Sheet)
	default:
		err = fmt.Errorf("unsupported source format %q", ext)
	}
	if err != nil {
		return Table{}, fmt.Errorf("%w: %v", ErrSourceFetch, err)
	}

	return buildTable(records), nil
}

func (s *HTTPSource) read(ctx context.Context, location string) ([]byte, string, error) {
	if u, err := url.Parse(location); err == nil && (u.Scheme == "http" || u.Scheme == "https") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, "", fmt.Errorf("source returned status %d", resp.StatusCode)
		}
		payload, err := io.ReadAll(resp.Body)
		return payload, u.Path, err
	}

	payload, err := os.ReadFile(location)
	return payload, location, err
}

func parseCSV(payload []byte) ([][]string, error) {
	reader := bufio.NewReader(bytes.NewReader(payload))
	if prefix, err := reader.Peek(len(byteOrderMark)); err == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = reader.Discard(len(byteOrderMark))
	}

	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	records, err := csvReader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read csv: %w", err)
	}
	return records, nil
}

func parseExcel(payload []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("xlsx file has no sheets")
	}

	target := sheets[0]
	if sheet != "" {
		found := false
		for _, name := range sheets {
			if strings.EqualFold(name, sheet) {
				target = name
				found = true
				break
			}
		}
		if !found {
			return nil, fmt.Errorf("sheet %q not found", sheet)
		}
	}

	rows, err := f.GetRows(target)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}
	return rows, nil
}

// buildTable picks the first non-empty record as the header row, normalizes
// headers, and keys every remaining non-empty record by them.
func buildTable(records [][]string) Table {
	var headerRow []string
	var dataRows [][]string
	for _, record := range records {
		if isEmptyRecord(record) {
			continue
		}
		if headerRow == nil {
			headerRow = record
			continue
		}
		dataRows = append(dataRows, record)
	}
	if headerRow == nil {
		return Table{}
	}

	headers := NormalizeHeaders(headerRow)
	rows := make([]Row, 0, len(dataRows))
	for _, record := range dataRows {
		row := make(Row, len(headers))
		for i, header := range headers {
			if i < len(record) {
				row[header] = strings.TrimSpace(record[i])
			} else {
				row[header] = ""
			}
		}
		rows = append(rows, row)
	}

	return Table{Headers: headers, Rows: rows}
}

func isEmptyRecord(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// NormalizeHeaders maps raw header labels to stable keys: case folded,
// diacritics stripped, whitespace and punctuation collapsed to underscores.
// Colliding names get a numeric suffix so both columns stay addressable.
func NormalizeHeaders(raw []string) []string {
	headers := make([]string, len(raw))
	seen := make(map[string]int)

	for idx, value := range raw {
		name := NormalizeHeader(value)
		if name == "" {
			name = fmt.Sprintf("column_%d", idx+1)
		}

		base := name
		count := seen[base]
		if count > 0 {
			name = fmt.Sprintf("%s_%d", base, count+1)
		}
		seen[base] = count + 1

		headers[idx] = name
	}

	return headers
}

// NormalizeHeader folds one label to its canonical key.
func NormalizeHeader(value string) string {
	value = domain.StripDiacritics(strings.ToLower(strings.TrimSpace(value)))
	var b strings.Builder
	b.Grow(len(value))
	lastUnderscore := false
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "_")
}
