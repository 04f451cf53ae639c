package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"convergence_worker/internal/experiment"
)

// csvSink writes the result table. The header goes out on creation and every
// row is flushed before WriteRow returns.
type csvSink struct {
	w      *csv.Writer
	closer io.Closer
}

func newCSVSink(w io.Writer, header []string) (*csvSink, error) {
	s := &csvSink{w: csv.NewWriter(w)}
	if c, ok := w.(io.Closer); ok {
		s.closer = c
	}
	if err := s.write(header); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}
	return s, nil
}

func createCSVSink(path string, header []string) (*csvSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create result file: %w", err)
	}
	s, err := newCSVSink(f, header)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *csvSink) write(record []string) error {
	if err := s.w.Write(record); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

func (s *csvSink) WriteRow(row experiment.Row) error {
	return s.write(row.Record())
}

func (s *csvSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if s.closer != nil {
		return s.closer.Close()
	}
	return nil
}
