// Package importer reads customer lists from uploaded spreadsheets.
package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/deliverydesk/deliverydesk/internal/model"
)

// MaxRows caps how many spreadsheet rows are read from one upload.
const MaxRows = 10000

var (
	ErrUnsupportedFile = errors.New("unsupported file type: upload .xlsx, .xls or .csv")
	ErrEmptySheet      = errors.New("worksheet is empty")
	ErrNoWorksheet     = errors.New("no worksheet found")
	ErrTooManyRows     = fmt.Errorf("spreadsheet has more than %d rows", MaxRows)
)

// MissingColumnsError lists required headers absent from the first row.
type MissingColumnsError struct {
	Columns []string
}

func (e *MissingColumnsError) Error() string {
	return "missing required columns: " + strings.Join(e.Columns, ", ")
}

// RowError reports why a single data row was skipped. Row is 1-based and
// counts the header, so it matches what a spreadsheet shows.
type RowError struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// Result holds the customers that parsed cleanly and the rows that did not.
type Result struct {
	Customers []model.Customer
	Rows      []int // spreadsheet row of each customer
	Errors    []RowError
}

// ReadRows loads every cell of the first worksheet as strings.
func ReadRows(r io.Reader, filename string) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var rows [][]string
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("open xls: %w", err)
		}
		if workbook.NumSheets() == 0 {
			return nil, ErrNoWorksheet
		}
		rows = workbook.ReadAllCells(MaxRows + 1)
	case ".xlsx":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open xlsx: %w", err)
		}
		defer func() { _ = file.Close() }()

		sheetName := file.GetSheetName(0)
		if sheetName == "" {
			return nil, ErrNoWorksheet
		}
		rows, err = file.GetRows(sheetName)
		if err != nil {
			return nil, fmt.Errorf("read xlsx rows: %w", err)
		}
	case ".csv":
		cr := csv.NewReader(bytes.NewReader(data))
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		rows, err = cr.ReadAll()
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
	default:
		return nil, ErrUnsupportedFile
	}

	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}
	if len(rows) > MaxRows+1 {
		return nil, ErrTooManyRows
	}
	return rows, nil
}

// Column names recognised in the header row, after normalisation.
var headerAliases = map[string]string{
	"name":          "name",
	"customer":      "name",
	"customer_name": "name",
	"address":       "address",
	"delivery_day":  "delivery_day",
	"day":           "delivery_day",
	"account_type":  "account_type",
	"account":       "account_type",
	"type":          "account_type",
	"territory":     "territory",
	"area":          "territory",
	"region":        "territory",
}

var requiredColumns = []string{"name", "address", "delivery_day", "account_type", "territory"}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer(" ", "_", "-", "_").Replace(h)
	return h
}

// ParseCustomers maps the header row to customer fields and validates each
// data row. Blank rows are ignored.
func ParseCustomers(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	index := make(map[string]int)
	for i, h := range rows[0] {
		if field, ok := headerAliases[normalizeHeader(h)]; ok {
			if _, seen := index[field]; !seen {
				index[field] = i
			}
		}
	}

	var missing []string
	for _, col := range requiredColumns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Columns: missing}
	}

	res := &Result{}
	for i, row := range rows[1:] {
		rowNum := i + 2
		cell := func(field string) string {
			col := index[field]
			if col >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[col])
		}

		if isBlank(row) {
			continue
		}

		c := model.Customer{
			Name:        cell("name"),
			Address:     cell("address"),
			AccountType: cell("account_type"),
			Territory:   cell("territory"),
		}

		var problems []string
		for _, f := range []struct{ name, value string }{
			{"name", c.Name},
			{"address", c.Address},
			{"account_type", c.AccountType},
			{"territory", c.Territory},
		} {
			if f.value == "" {
				problems = append(problems, f.name+" is required")
			}
		}

		rawDay := cell("delivery_day")
		day, ok := model.NormalizeDeliveryDay(rawDay)
		if !ok {
			problems = append(problems, fmt.Sprintf("delivery_day %q is not a weekday", rawDay))
		}
		c.DeliveryDay = day

		if len(problems) > 0 {
			res.Errors = append(res.Errors, RowError{Row: rowNum, Error: strings.Join(problems, "; ")})
			continue
		}
		res.Customers = append(res.Customers, c)
		res.Rows = append(res.Rows, rowNum)
	}

	return res, nil
}

// Customers reads and parses an uploaded customer spreadsheet.
func Customers(r io.Reader, filename string) (*Result, error) {
	rows, err := ReadRows(r, filename)
	if err != nil {
		return nil, err
	}
	return ParseCustomers(rows)
}

func isBlank(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
