package sandbox

import (
	"bytes"
	"encoding/csv"
	"io"
	"math"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/go-faster/errors"
	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFile is returned for uploads that are not csv, xls or xlsx.
var ErrUnsupportedFile = errors.New("Unsupported file type")

// ErrMissingName is returned when the header row has no NAME column.
var ErrMissingName = errors.New("File is missing the required 'NAME' column.")

const maxSheetRows = 100000

// ReadRoster parses an uploaded roster into employees ready for insertion.
// Headers are trimmed and upper-cased; NAME is required and each score is
// read from its <SKILL>_SCORE column when present.
func ReadRoster(r io.Reader, filename string) ([]NewEmployee, error) {
	rows, err := readRows(r, filename)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, ErrMissingName
	}
	header := map[string]int{}
	for i, h := range rows[0] {
		h = strings.TrimPrefix(h, "\ufeff")
		header[strings.ToUpper(strings.TrimSpace(h))] = i
	}
	nameIdx, ok := header["NAME"]
	if !ok {
		return nil, ErrMissingName
	}
	scoreIdx := make([]int, len(scoreColumns))
	for i, col := range scoreColumns {
		scoreIdx[i] = -1
		if idx, ok := header[col.Key+"_SCORE"]; ok {
			scoreIdx[i] = idx
		}
	}

	var out []NewEmployee
	for _, row := range rows[1:] {
		name := cell(row, nameIdx)
		if name == "" {
			continue
		}
		emp := NewEmployee{Name: name}
		for i, idx := range scoreIdx {
			emp.Scores[i] = parseScore(cell(row, idx))
		}
		out = append(out, emp)
	}
	return out, nil
}

func readRows(r io.Reader, filename string) ([][]string, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".csv", ".xls", ".xlsx":
	default:
		return nil, ErrUnsupportedFile
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read upload")
	}
	switch ext {
	case ".csv":
		reader := csv.NewReader(bytes.NewReader(data))
		reader.FieldsPerRecord = -1
		reader.TrimLeadingSpace = true
		rows, err := reader.ReadAll()
		if err != nil {
			return nil, errors.Wrap(err, "parse csv")
		}
		return rows, nil
	case ".xls":
		return readXLS(data)
	default:
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, errors.Wrap(err, "open xlsx")
		}
		defer func() { _ = file.Close() }()
		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, errors.New("no worksheet found")
		}
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, errors.Wrap(err, "read sheet")
		}
		return rows, nil
	}
}

// readXLS recovers from the panics the BIFF reader raises on truncated files.
func readXLS(data []byte) (rows [][]string, err error) {
	defer func() {
		if r := recover(); r != nil {
			rows, err = nil, errors.Errorf("open xls: malformed workbook: %v", r)
		}
	}()
	workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
	if err != nil {
		return nil, errors.Wrap(err, "open xls")
	}
	if workbook == nil || workbook.NumSheets() == 0 {
		return nil, errors.New("no worksheet found")
	}
	return workbook.ReadAllCells(maxSheetRows), nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// parseScore accepts integers and spreadsheet floats; anything else is 0.
func parseScore(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(v)
}
