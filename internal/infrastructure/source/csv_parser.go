package source

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// CSVParser reads a header row followed by data rows from UTF-8 CSV.
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	headers    []string
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// NewCSVParser creates a new CSV parser from a reader
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
	}

	for _, opt := range opts {
		opt(parser)
	}

	br := bufio.NewReader(r)

	// UTF-8 BOM: 0xEF, 0xBB, 0xBF
	bom, err := br.Peek(3)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(bom) == 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		_, _ = br.Discard(3)
	}

	if err := validateUTF8(br); err != nil {
		return nil, err
	}

	parser.reader = csv.NewReader(br)
	parser.reader.Comma = parser.delimiter
	parser.reader.LazyQuotes = parser.lazyQuotes
	parser.reader.TrimLeadingSpace = true
	parser.reader.FieldsPerRecord = -1 // Spreadsheet exports drop trailing empty cells

	return parser, nil
}

// validateUTF8 checks the start of the content is valid UTF-8
func validateUTF8(r *bufio.Reader) error {
	const checkSize = 4096
	content, err := r.Peek(checkSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return fmt.Errorf("failed to read file for encoding validation: %w", err)
	}

	if len(content) == 0 {
		return ErrEmptyFile
	}

	// A multi-byte rune may straddle the peek boundary
	if len(content) == checkSize {
		for i := len(content) - 1; i >= 0 && i >= len(content)-utf8.UTFMax; i-- {
			if utf8.RuneStart(content[i]) {
				if !utf8.FullRune(content[i:]) {
					content = content[:i]
				}
				break
			}
		}
	}

	if !utf8.Valid(content) {
		return ErrInvalidEncoding
	}
	return nil
}

// ParseHeader reads the header row
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	p.headers = make([]string, len(record))
	for i, h := range record {
		p.headers[i] = strings.TrimSpace(h)
	}

	return nil
}

// Headers returns the parsed header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// Row is a parsed row keyed by header, with its 1-based line number.
type Row struct {
	LineNumber int
	Data       map[string]string
}

// IsEmpty returns true if the row has no non-empty values
func (r *Row) IsEmpty() bool {
	return isBlank(r.Data)
}

// ReadRow reads the next row. It returns io.EOF after the last row.
// LineNumber is the file line the row starts on, so empty lines the
// reader skips still count.
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	if err != nil {
		return nil, fmt.Errorf("error reading row: %w", err)
	}

	line, _ := p.reader.FieldPos(0)
	return &Row{
		LineNumber: line,
		Data:       zipRow(p.headers, record),
	}, nil
}

// ReadAllRows reads all remaining rows, skipping blank ones.
func (p *CSVParser) ReadAllRows() ([]*Row, error) {
	var rows []*Row
	for {
		row, err := p.ReadRow()
		if err == io.EOF {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.IsEmpty() {
			continue
		}
		rows = append(rows, row)
	}
}

// zipRow maps values onto headers. Missing trailing cells become "",
// cells beyond the last header are dropped.
func zipRow(headers, values []string) map[string]string {
	data := make(map[string]string, len(headers))
	for i, h := range headers {
		if h == "" {
			continue
		}
		if i < len(values) {
			data[h] = strings.TrimSpace(values[i])
		} else {
			data[h] = ""
		}
	}
	return data
}
