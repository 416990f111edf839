// Package export renders tabular schedule data as downloadable documents.
package export

import (
	"errors"
	"fmt"
	"strings"
)

// Format identifies a supported document format.
type Format string

const (
	FormatCSV Format = "csv"
	FormatPDF Format = "pdf"
)

// ErrUnsupportedFormat is returned by ParseFormat for unknown formats.
var ErrUnsupportedFormat = errors.New("unsupported export format")

// ParseFormat normalises a query value into a Format. Empty defaults to CSV.
func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(raw))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatPDF:
		return FormatPDF, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, raw)
	}
}

// ContentType returns the MIME type for the format.
func (f Format) ContentType() string {
	if f == FormatPDF {
		return "application/pdf"
	}
	return "text/csv; charset=utf-8"
}

// Table is a titled grid of cells. Each row must have len(Headers) cells.
type Table struct {
	Title   string
	Headers []string
	Rows    [][]string
}

// Renderer turns a table into document bytes.
type Renderer interface {
	Render(table Table) ([]byte, error)
}

// NewRenderer returns the renderer for format.
func NewRenderer(format Format) Renderer {
	if format == FormatPDF {
		return NewPDFRenderer()
	}
	return NewCSVRenderer()
}

func validate(table Table) error {
	if len(table.Headers) == 0 {
		return errors.New("table requires at least one header")
	}
	for i, row := range table.Rows {
		if len(row) != len(table.Headers) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(table.Headers))
		}
	}
	return nil
}
