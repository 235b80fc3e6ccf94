// Package export writes sampled or loaded trip frames to disk. The output
// format follows the file extension: .csv or .parquet.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xitongsys/parquet-go-source/local"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"citisampler/internal/trips"
)

// UnsupportedFormatError reports an output path whose extension maps to no
// known format.
type UnsupportedFormatError struct {
	Path string
}

func (e *UnsupportedFormatError) Error() string {
	return fmt.Sprintf("unsupported output format %q (expected .csv or .parquet)", filepath.Ext(e.Path))
}

// Write stores a frame at the given path, picking the format from the
// extension.
func Write(frame *trips.Frame, path string) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return WriteCSV(frame, path)
	case ".parquet":
		return WriteParquet(frame, path)
	default:
		return &UnsupportedFormatError{Path: path}
	}
}

// WriteCSV stores the frame as a plain CSV file with a header row.
func WriteCSV(frame *trips.Frame, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create output file: %w", err)
	}

	w := csv.NewWriter(file)
	if err := w.Write(frame.Columns); err != nil {
		file.Close()
		return fmt.Errorf("write header: %w", err)
	}
	if err := w.WriteAll(frame.Rows); err != nil {
		file.Close()
		return fmt.Errorf("write rows: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		file.Close()
		return fmt.Errorf("flush output: %w", err)
	}
	return file.Close()
}

// WriteParquet stores the frame as a snappy-compressed Parquet file. Every
// column is written as a UTF8 byte array: trip records arrive as strings and
// downstream tools are better at schema inference than a CSV round-trip.
func WriteParquet(frame *trips.Frame, path string) error {
	meta := make([]string, len(frame.Columns))
	for i, col := range frame.Columns {
		meta[i] = fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, encoding=PLAIN_DICTIONARY", col)
	}

	fw, err := local.NewLocalFileWriter(path)
	if err != nil {
		return fmt.Errorf("create parquet file: %w", err)
	}
	pw, err := writer.NewCSVWriter(meta, fw, 4)
	if err != nil {
		fw.Close()
		return fmt.Errorf("init parquet writer: %w", err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range frame.Rows {
		rec := make([]*string, len(row))
		for i := range row {
			rec[i] = &row[i]
		}
		if err := pw.WriteString(rec); err != nil {
			fw.Close()
			return fmt.Errorf("write parquet row: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		fw.Close()
		return fmt.Errorf("finalise parquet file: %w", err)
	}
	return fw.Close()
}
