package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"visa-portal/internal/records"
)

var (
	ErrEmptyUpload       = errors.New("upload contains no data rows")
	ErrUnsupportedFormat = errors.New("unsupported upload format")
)

// Decode picks the decoder from the file extension. Anything that is not
// .xlsx is treated as CSV.
func Decode(filename string, data []byte) ([]records.Row, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx":
		return DecodeXLSX(bytes.NewReader(data))
	case ".xls":
		return nil, fmt.Errorf("%w: legacy .xls, save as .xlsx or .csv", ErrUnsupportedFormat)
	default:
		return DecodeCSV(data)
	}
}

// DecodeCSV parses a CSV upload into rows keyed by the header line.
// Spreadsheet tools save CSV as UTF-8 with or without a BOM, UTF-16 with a
// BOM, or Windows-1252; all four are accepted.
//
// The returned slice is indexed by data row: rows[i] is the line i+1 below
// the header. Blank lines keep their slot as a nil Row so row numbers in
// import errors match the file.
func DecodeCSV(data []byte) ([]records.Row, error) {
	text, err := toUTF8(data)
	if err != nil {
		return nil, err
	}

	reader := csv.NewReader(bytes.NewReader(text))
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyUpload
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	headerLine, _ := reader.FieldPos(0)

	var rows []records.Row
	for {
		values, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		line, _ := reader.FieldPos(0)
		// encoding/csv drops empty lines; pad their slots.
		for len(rows) < line-headerLine-1 {
			rows = append(rows, nil)
		}
		if blank(values) {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, records.NewRow(header, values))
	}
	return nonEmpty(rows)
}

func toUTF8(data []byte) ([]byte, error) {
	if hasBOM(data) {
		out, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
		if err != nil {
			return nil, fmt.Errorf("decode byte order mark: %w", err)
		}
		return out, nil
	}
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return out, nil
}

func hasBOM(data []byte) bool {
	return bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}) ||
		bytes.HasPrefix(data, []byte{0xFE, 0xFF}) ||
		bytes.HasPrefix(data, []byte{0xFF, 0xFE})
}

// DecodeXLSX reads the first sheet of a workbook. The first row is the
// header; blank rows are kept as nil like in DecodeCSV.
func DecodeXLSX(r io.Reader) ([]records.Row, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, fmt.Errorf("%w: workbook has no sheets", ErrEmptyUpload)
	}
	all, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(all) < 2 {
		return nil, ErrEmptyUpload
	}

	header := all[0]
	rows := make([]records.Row, 0, len(all)-1)
	for _, values := range all[1:] {
		if blank(values) {
			rows = append(rows, nil)
			continue
		}
		rows = append(rows, records.NewRow(header, values))
	}
	return nonEmpty(rows)
}

func nonEmpty(rows []records.Row) ([]records.Row, error) {
	for _, row := range rows {
		if row != nil {
			return rows, nil
		}
	}
	return nil, ErrEmptyUpload
}

func blank(values []string) bool {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
