package inventory

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"jewelshop-backend/internal/ledger"

	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type column int

const (
	colSerial column = iota
	colName
	colCategory
	colPurity
	colWeight
	colQty
	numColumns
)

// header aliases, lower case
var headerAliases = map[string]column{
	"serial":       colSerial,
	"serial no":    colSerial,
	"serial_no":    colSerial,
	"sku":          colSerial,
	"name":         colName,
	"product":      colName,
	"product name": colName,
	"category":     colCategory,
	"purity":       colPurity,
	"karat":        colPurity,
	"gross weight": colWeight,
	"gross_weight": colWeight,
	"weight":       colWeight,
	"qty":          colQty,
	"quantity":     colQty,
	"stock":        colQty,
	"stock qty":    colQty,
}

type RowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

type ImportResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Skipped int        `json:"skipped"`
	Errors  []RowError `json:"errors"`
}

type ImportRow struct {
	Row   int
	Input ProductInput
}

// ParseWorkbook reads product rows from the first sheet. A first row that
// names known columns is treated as a header; otherwise columns are taken
// in the order serial, name, category, purity, gross weight, qty.
func ParseWorkbook(r io.Reader) ([]ImportRow, []RowError, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, nil, ledger.Validationf("could not read workbook: %v", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, ledger.Validationf("workbook has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, ledger.Validationf("could not read sheet %q: %v", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, nil, ledger.Validationf("sheet %q is empty", sheets[0])
	}

	layout, hasHeader := detectHeader(rows[0])
	start := 0
	if hasHeader {
		start = 1
	}

	var out []ImportRow
	var errs []RowError
	for i := start; i < len(rows); i++ {
		cells := rows[i]
		rowNum := i + 1
		if isBlank(cells) {
			continue
		}
		cell := func(c column) string {
			idx := layout[c]
			if idx < 0 || idx >= len(cells) {
				return ""
			}
			return strings.TrimSpace(cells[idx])
		}

		in := ProductInput{
			SerialNo: cell(colSerial),
			Name:     cell(colName),
			Category: cell(colCategory),
			Purity:   cell(colPurity),
		}
		if in.SerialNo == "" {
			errs = append(errs, RowError{Row: rowNum, Message: "serial is empty"})
			continue
		}
		if s := cell(colWeight); s != "" {
			w, err := ledger.ParseDecimal(s)
			if err != nil {
				errs = append(errs, RowError{Row: rowNum, Message: fmt.Sprintf("bad gross weight %q", s)})
				continue
			}
			in.GrossWeight = w
		}
		if s := cell(colQty); s != "" {
			q, err := strconv.Atoi(s)
			if err != nil {
				errs = append(errs, RowError{Row: rowNum, Message: fmt.Sprintf("bad quantity %q", s)})
				continue
			}
			in.Quantity = q
		}
		out = append(out, ImportRow{Row: rowNum, Input: in})
	}
	return out, errs, nil
}

func detectHeader(first []string) ([numColumns]int, bool) {
	var layout [numColumns]int
	for i := range layout {
		layout[i] = -1
	}
	found := 0
	for idx, cell := range first {
		if c, ok := headerAliases[strings.ToLower(strings.TrimSpace(cell))]; ok && layout[c] < 0 {
			layout[c] = idx
			found++
		}
	}
	if found > 0 && layout[colSerial] >= 0 {
		return layout, true
	}
	for i := range layout {
		layout[i] = i
	}
	return layout, false
}

func isBlank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Import upserts parsed rows, each in its own savepoint so one bad row
// does not sink the batch. Stock is set to the sheet quantity.
func Import(db *gorm.DB, rows []ImportRow, parseErrs []RowError) (*ImportResult, error) {
	res := &ImportResult{Errors: append([]RowError{}, parseErrs...)}
	res.Skipped = len(parseErrs)

	err := db.Transaction(func(tx *gorm.DB) error {
		for _, r := range rows {
			var created bool
			err := tx.Transaction(func(row *gorm.DB) error {
				var err error
				_, created, err = Set(row, r.Input)
				return err
			})
			if err != nil {
				res.Skipped++
				res.Errors = append(res.Errors, RowError{Row: r.Row, Message: ledger.Message(err)})
				continue
			}
			if created {
				res.Created++
			} else {
				res.Updated++
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
