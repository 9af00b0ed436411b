// Package ingest implements the Azure Advisor CSV ingestion pipeline:
// file-level schema validation, row normalization, and chunked bulk
// persistence with error-rate accounting.
package ingest

import (
	"bytes"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/charmap"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding decodes raw CSV bytes to UTF-8, trying utf-8, utf-8-sig,
// and latin-1 in order. The first encoding that decodes cleanly wins.
// Advisor exports are normally UTF-8 with a BOM; latin-1 covers exports
// re-saved by older spreadsheet tools.
func DetectEncoding(data []byte) ([]byte, string, error) {
	if bytes.HasPrefix(data, utf8BOM) {
		stripped := data[len(utf8BOM):]
		if utf8.Valid(stripped) {
			return stripped, "utf-8-sig", nil
		}
	} else if utf8.Valid(data) {
		return data, "utf-8", nil
	}

	decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return nil, "", eris.Wrap(err, "ingest: decode latin-1")
	}
	return decoded, "latin-1", nil
}
