package ingest

import (
	"bytes"
	"encoding/csv"
	"io"
	"strings"

	"github.com/sells-group/advisor-cli/internal/config"
	"github.com/sells-group/advisor-cli/internal/model"
)

// RequiredColumns must all be present in the CSV header. Missing any fails
// the entire file; there is no partial import.
var RequiredColumns = []string{
	"Category",
	"Business Impact",
	"Recommendation",
	"Subscription ID",
	"Subscription Name",
	"Currency",
}

// ValidationResult describes a structurally valid CSV file.
type ValidationResult struct {
	Header    []string
	Columns   map[string]int // normalized column name -> index
	RowCount  int            // data rows, excluding the header
	Encoding  string
	Decoded   []byte // UTF-8 file contents, header included
}

// SchemaValidator checks raw CSV structure before any row parsing.
type SchemaValidator struct {
	cfg config.IngestConfig
}

// NewSchemaValidator creates a validator with the given ingest bounds.
func NewSchemaValidator(cfg config.IngestConfig) *SchemaValidator {
	return &SchemaValidator{cfg: cfg}
}

// Validate reads the whole file and checks size bounds, encoding, required
// columns, and row-count bounds. It is read-only: no rows are persisted.
func (v *SchemaValidator) Validate(r io.Reader) (*ValidationResult, error) {
	// Read one byte past the cap so oversized files are detected without
	// buffering arbitrarily large input.
	data, err := io.ReadAll(io.LimitReader(r, v.cfg.MaxFileBytes+1))
	if err != nil {
		return nil, model.NewValidationError("could not read file: %v", err)
	}
	if int64(len(data)) > v.cfg.MaxFileBytes {
		return nil, model.NewValidationError("file exceeds maximum size of %d bytes", v.cfg.MaxFileBytes)
	}

	decoded, encoding, err := DetectEncoding(data)
	if err != nil {
		return nil, model.NewValidationError("file is not decodable as utf-8, utf-8-sig, or latin-1")
	}

	reader := csv.NewReader(bytes.NewReader(decoded))
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, model.NewValidationError("file is empty")
	}
	if err != nil {
		return nil, model.NewValidationError("could not parse CSV header: %v", err)
	}

	columns := mapColumns(header)
	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := columns[normalizeCol(col)]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &model.ValidationError{Reason: "missing required columns", MissingColumns: missing}
	}

	rowCount := 0
	for {
		_, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structurally broken rows still count toward the total; the
			// normalizer reports them individually during ingestion.
			rowCount++
			continue
		}
		rowCount++
	}

	if rowCount < v.cfg.MinRows {
		return nil, model.NewValidationError("file contains no data rows")
	}
	if rowCount > v.cfg.MaxRows {
		return nil, model.NewValidationError("file contains %d rows, maximum is %d", rowCount, v.cfg.MaxRows)
	}

	return &ValidationResult{
		Header:   header,
		Columns:  columns,
		RowCount: rowCount,
		Encoding: encoding,
		Decoded:  decoded,
	}, nil
}

// normalizeCol lowercases and collapses whitespace for header matching, so
// "Business Impact", "business impact", and "Business  Impact" all match.
func normalizeCol(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(strings.TrimSpace(s))), " ")
}

// mapColumns builds a normalized column name -> index map.
func mapColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		m[normalizeCol(col)] = i
	}
	return m
}

// getCol gets a column value by normalized name.
func getCol(record []string, columns map[string]int, name string) string {
	idx, ok := columns[normalizeCol(name)]
	if !ok || idx >= len(record) {
		return ""
	}
	return record[idx]
}
