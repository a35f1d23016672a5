// Package export serializes topic records to a delimited file.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"go.uber.org/zap"

	"github.com/mehranoffline/tripadvisor-scraper/internal/scraper"
)

// Header is the fixed first row of every export file.
var Header = []string{"title", "author", "reply_count", "last_activity", "url"}

// CSVWriter writes records to a CSV file, atomically replacing the
// destination. A failed write leaves any prior destination file untouched.
type CSVWriter struct {
	logger *zap.Logger
}

// NewCSVWriter returns a ready writer.
func NewCSVWriter(logger *zap.Logger) *CSVWriter {
	return &CSVWriter{logger: logger}
}

// Export writes the header plus one row per record, in input order, to a
// sibling temp file and renames it into place on success. It returns the
// number of records written.
func (w *CSVWriter) Export(records []scraper.TopicRecord, destination string) (int, error) {
	dir := filepath.Dir(destination)
	tmp, err := os.CreateTemp(dir, filepath.Base(destination)+".tmp-*")
	if err != nil {
		return 0, fmt.Errorf("create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()
	defer func() {
		// No-op after a successful rename.
		if rmErr := os.Remove(tmpPath); rmErr != nil && !os.IsNotExist(rmErr) {
			w.logger.Debug("failed to remove temp export file", zap.String("path", tmpPath), zap.Error(rmErr))
		}
	}()

	if err := writeAll(tmp, records); err != nil {
		tmp.Close()
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, destination); err != nil {
		return 0, fmt.Errorf("rename %s to %s: %w", tmpPath, destination, err)
	}

	w.logger.Info("export written",
		zap.String("path", destination),
		zap.Int("records", len(records)),
	)
	return len(records), nil
}

func writeAll(f *os.File, records []scraper.TopicRecord) error {
	cw := csv.NewWriter(f)
	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, record := range records {
		row := []string{
			record.Title,
			record.Author,
			strconv.Itoa(record.ReplyCount),
			record.LastActivity,
			record.URL,
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write record %q: %w", record.Title, err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
