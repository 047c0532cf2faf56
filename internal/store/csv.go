package store

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/listing"
)

var csvHeader = []string{listing.FieldCompany, listing.FieldVacancy, listing.FieldApplyLink, listing.FieldScrapeDate}

// CSVSink appends batches to a CSV file for runs without a database. The header is written
// once, when the file is created or empty.
type CSVSink struct {
	path string
	mu   sync.Mutex
}

func NewCSVSink(path string) *CSVSink {
	return &CSVSink{path: path}
}

func (c *CSVSink) Append(ctx context.Context, batch *listing.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat csv: %w", err)
	}

	bufw := bufio.NewWriterSize(f, 1<<20)
	if err := writeCSV(bufw, batch, info.Size() == 0); err != nil {
		return err
	}
	if err := bufw.Flush(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return f.Sync()
}

// WriterSink writes batches as CSV to an arbitrary writer, header first.
type WriterSink struct {
	w      io.Writer
	mu     sync.Mutex
	header bool
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) Append(_ context.Context, batch *listing.Batch) error {
	if batch == nil || batch.Len() == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := writeCSV(s.w, batch, !s.header); err != nil {
		return err
	}
	s.header = true
	return nil
}

func writeCSV(dst io.Writer, batch *listing.Batch, header bool) error {
	w := csv.NewWriter(dst)
	if header {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("write csv header: %w", err)
		}
	}
	date := batch.ScrapeDate().Format(time.RFC3339Nano)
	for _, r := range batch.Records() {
		if err := w.Write([]string{r.Company, r.Vacancy, r.ApplyLink, date}); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return errors.Join(errors.New("flush csv rows"), err)
	}
	return nil
}
