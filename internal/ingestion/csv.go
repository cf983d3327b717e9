package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"b3-genetic-lab/internal/domain"
)

// ErrMalformedCSV is returned when the input cannot be read as a price table.
var ErrMalformedCSV = errors.New("malformed price csv")

// DefaultSymbolPattern accepts five-character B3 tickers such as PETR4 or VALE3.
const DefaultSymbolPattern = `^[A-Z0-9]{5}$`

// dateLayouts are tried in order when parsing the date column.
var dateLayouts = []string{
	domain.DateLayout,
	"02/01/2006", // B3 exports are day-first
	time.RFC3339,
	"2006-01-02 15:04:05",
}

// Stats summarizes one CSV parse.
type Stats struct {
	RowsRead         int // data rows, header excluded
	RowsKept         int
	RejectedBySymbol int
	RejectedByDate   int
	Malformed        int // rows with fewer than 3 fields
	UndefinedPrices  int // kept rows whose close is undefined
}

// CSVOptions configures the CSV parser.
type CSVOptions struct {
	Comma         rune   // field separator, default ';'
	SymbolPattern string // default DefaultSymbolPattern
}

// ParseCSV reads a (date; symbol; close) table with a header row.
// Columns are taken positionally; header names are ignored.
// Close prices use a comma decimal separator. Empty, NaN or unparsable
// values yield an undefined close instead of an error.
// Rows are returned sorted by (date, symbol).
func ParseCSV(r io.Reader, opts CSVOptions) ([]*domain.PricePoint, Stats, error) {
	var stats Stats

	comma := opts.Comma
	if comma == 0 {
		comma = ';'
	}
	pattern := opts.SymbolPattern
	if pattern == "" {
		pattern = DefaultSymbolPattern
	}
	symbolRe, err := regexp.Compile(pattern)
	if err != nil {
		return nil, stats, fmt.Errorf("compile symbol pattern: %w", err)
	}

	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, stats, fmt.Errorf("%w: missing header", ErrMalformedCSV)
	}
	if err != nil {
		return nil, stats, fmt.Errorf("%w: read header: %v", ErrMalformedCSV, err)
	}
	if len(header) < 3 {
		return nil, stats, fmt.Errorf("%w: expected 3 columns, got %d", ErrMalformedCSV, len(header))
	}

	var points []*domain.PricePoint
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, stats, fmt.Errorf("%w: read row %d: %v", ErrMalformedCSV, stats.RowsRead+1, err)
		}
		stats.RowsRead++

		if len(record) < 3 {
			stats.Malformed++
			continue
		}

		symbol := strings.TrimSpace(record[1])
		if !symbolRe.MatchString(symbol) {
			stats.RejectedBySymbol++
			continue
		}

		date, ok := parseDate(record[0])
		if !ok {
			stats.RejectedByDate++
			continue
		}

		p := &domain.PricePoint{Date: date, Symbol: symbol, Close: parseClose(record[2])}
		if p.Close == nil {
			stats.UndefinedPrices++
		}
		points = append(points, p)
		stats.RowsKept++
	}

	SortPrices(points)
	return points, stats, nil
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return domain.TruncateDate(t), true
		}
	}
	return time.Time{}, false
}

// parseClose converts "12,34" (or "12.34") into a price; nil when undefined.
func parseClose(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") {
		return nil
	}
	if strings.Contains(s, ",") {
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

// CSVFileSource reads prices from a CSV file on disk.
// Implements PriceSource.
type CSVFileSource struct {
	Path    string
	Options CSVOptions

	stats Stats
}

// NewCSVFileSource creates a source for the file at path.
func NewCSVFileSource(path string, opts CSVOptions) *CSVFileSource {
	return &CSVFileSource{Path: path, Options: opts}
}

// Fetch parses the file.
func (s *CSVFileSource) Fetch(_ context.Context) ([]*domain.PricePoint, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open price csv: %w", err)
	}
	defer f.Close()

	points, stats, err := ParseCSV(f, s.Options)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", s.Path, err)
	}
	s.stats = stats
	return points, nil
}

// Stats returns the summary of the last Fetch.
func (s *CSVFileSource) Stats() Stats {
	return s.stats
}

var _ PriceSource = (*CSVFileSource)(nil)
