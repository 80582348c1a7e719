package dispatch

import (
	"context"
	"io"

	"github.com/pubnect/dispatch/internal/source"
)

// Public interfaces for the dispatch library
type (
	// Dispatcher drives one full send run over a recipient stream.
	Dispatcher interface {
		// Run processes every record from src in input order and
		// returns the aggregate summary. Per-recipient failures do
		// not stop the run.
		Run(ctx context.Context, src RecordSource) (Summary, error)
	}

	// RecordSource yields recipient records one at a time, in input
	// order. Next returns io.EOF when the stream is exhausted.
	RecordSource interface {
		Next() (Record, error)
	}
)

// CSVSource streams recipient records from a CSV file with a header row.
type CSVSource = source.CSV

// OpenCSV opens a CSV recipient file as a RecordSource. The first row
// names the columns; the caller closes the source when the run is done.
func OpenCSV(path string) (*CSVSource, error) {
	return source.OpenCSV(path)
}

// Records adapts an in-memory slice of records to a RecordSource.
// Useful for tests and for callers that already hold their recipients.
func Records(records []Record) RecordSource {
	return &sliceSource{records: records}
}

type sliceSource struct {
	records []Record
	pos     int
}

func (s *sliceSource) Next() (Record, error) {
	if s.pos >= len(s.records) {
		return nil, io.EOF
	}
	r := s.records[s.pos]
	s.pos++
	return r, nil
}
