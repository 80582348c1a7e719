// Package source reads recipient records from tabular input files.
package source

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/pubnect/dispatch/internal/core"
)

// ErrNoHeader indicates a CSV file without a header row.
var ErrNoHeader = errors.New("no header row in CSV file")

// CSV streams recipient records from a CSV file with a header row. Each
// row becomes one core.Record keyed by column name. The file is read
// once, front to back; it is never loaded into memory whole.
type CSV struct {
	file   *os.File
	reader *csv.Reader
	header []string
}

// OpenCSV opens the CSV file at path and reads its header row.
func OpenCSV(path string) (*CSV, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open recipient file: %w", err)
	}

	reader := csv.NewReader(file)
	// Rows shorter or longer than the header are tolerated; missing
	// columns are simply absent from the record.
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		file.Close()
		return nil, ErrNoHeader
	}
	if err != nil {
		file.Close()
		return nil, fmt.Errorf("read CSV header: %w", err)
	}

	return &CSV{
		file:   file,
		reader: reader,
		header: header,
	}, nil
}

// Header returns the column names from the header row.
func (c *CSV) Header() []string {
	return c.header
}

// Next returns the next record, or io.EOF when the file is exhausted.
func (c *CSV) Next() (core.Record, error) {
	row, err := c.reader.Read()
	if err != nil {
		return nil, err
	}

	record := make(core.Record, len(c.header))
	for i, column := range c.header {
		if i < len(row) {
			record[column] = row[i]
		}
	}
	return record, nil
}

// Close releases the underlying file.
func (c *CSV) Close() error {
	return c.file.Close()
}
