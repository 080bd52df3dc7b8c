package inventory

import (
	"bytes"
	"testing"
	"time"

	"jewelshop-backend/internal/ledger"
	"jewelshop-backend/internal/models"
	"jewelshop-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		r := row
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &r))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func TestParseWorkbook_HeaderAndErrors(t *testing.T) {
	buf := workbook(t,
		[]any{"Name", "Serial No", "Gross Weight", "Qty", "Purity"},
		[]any{"Ring", "R-001", "4.125", "3", "22K"},
		[]any{"", "", "", "", ""},
		[]any{"Chain", "", "10", "1", "22K"},
		[]any{"Bangle", "B-001", "heavy", "1", "22K"},
		[]any{"Stud", "S-001", "1.2", "two", "18K"},
	)

	rows, errs, err := ParseWorkbook(buf)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "R-001", rows[0].Input.SerialNo)
	assert.Equal(t, "Ring", rows[0].Input.Name)
	assert.Equal(t, "22K", rows[0].Input.Purity)
	assert.Equal(t, 3, rows[0].Input.Quantity)
	assert.Equal(t, "4.125", rows[0].Input.GrossWeight.String())

	require.Len(t, errs, 3)
	assert.Equal(t, 4, errs[0].Row)
	assert.Equal(t, 5, errs[1].Row)
	assert.Equal(t, 6, errs[2].Row)
}

func TestParseWorkbook_PositionalColumns(t *testing.T) {
	buf := workbook(t,
		[]any{"R-010", "Ring", "Rings", "22K", "2.5", "4"},
	)
	rows, errs, err := ParseWorkbook(buf)
	require.NoError(t, err)
	assert.Empty(t, errs)
	require.Len(t, rows, 1)
	assert.Equal(t, "Rings", rows[0].Input.Category)
	assert.Equal(t, 4, rows[0].Input.Quantity)
}

func TestParseWorkbook_NotAWorkbook(t *testing.T) {
	_, _, err := ParseWorkbook(bytes.NewBufferString("plain text"))
	assert.ErrorIs(t, err, ledger.ErrValidation)
}

func TestImport_UpsertsBySerial(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, db.Create(&models.Product{SerialNo: "R-001", Name: "Old", GrossWeight: decimal.NewFromInt(4), StockQty: 9}).Error)

	buf := workbook(t,
		[]any{"Serial", "Name", "Weight", "Qty"},
		[]any{"R-001", "Ring", "4.125", "3"},
		[]any{"N-001", "Necklace", "20", "1"},
		[]any{"X-001", "", "1", "1"},
	)
	rows, errs, err := ParseWorkbook(buf)
	require.NoError(t, err)

	res, err := Import(db, rows, errs)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 1, res.Updated)
	assert.Equal(t, 1, res.Skipped)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, 4, res.Errors[0].Row)

	p, err := FindBySerial(db, "R-001")
	require.NoError(t, err)
	assert.Equal(t, "Ring", p.Name)
	assert.Equal(t, 3, p.StockQty)
	assert.Equal(t, "4.125", ledger.FormatGrams(p.GrossWeight))

	_, err = FindBySerial(db, "X-001")
	assert.ErrorIs(t, err, ledger.ErrNotFound)
}

func TestTakeAndRestock(t *testing.T) {
	db := testutil.NewDB(t)
	p, created, err := Receive(db, ProductInput{SerialNo: "R-1", Name: "Ring", GrossWeight: decimal.NewFromInt(5), Quantity: 2})
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = Receive(db, ProductInput{SerialNo: "R-1", Quantity: 3})
	require.NoError(t, err)
	assert.False(t, created)

	require.NoError(t, Take(db, p.ID, 4))
	err = Take(db, p.ID, 2)
	assert.ErrorIs(t, err, ledger.ErrValidation)

	require.NoError(t, Restock(db, p.ID, 1))
	require.NoError(t, db.First(p, p.ID).Error)
	assert.Equal(t, 2, p.StockQty)
	assert.Equal(t, "5.000", ledger.FormatGrams(p.GrossWeight))

	assert.ErrorIs(t, Take(db, 999, 1), ledger.ErrNotFound)
}

func TestReferences(t *testing.T) {
	db := testutil.NewDB(t)
	used, _, err := Receive(db, ProductInput{SerialNo: "R-1", Name: "Ring", GrossWeight: decimal.NewFromInt(5), Quantity: 2})
	require.NoError(t, err)
	idle, _, err := Receive(db, ProductInput{SerialNo: "C-1", Name: "Chain", GrossWeight: decimal.NewFromInt(9), Quantity: 1})
	require.NoError(t, err)

	pid := used.ID
	day := time.Date(2026, 5, 9, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.Create(&models.LineStock{
		CounterpartyID:     1,
		PersonName:         "Kumar",
		PhoneNumber:        "9000000002",
		IssuedDate:         day,
		ExpectedReturnDate: day,
		Status:             models.LineStockIssued,
		Items: []models.LineStockItem{{
			ProductID:   &pid,
			SerialNo:    used.SerialNo,
			Name:        used.Name,
			GrossWeight: used.GrossWeight,
			IssuedQty:   1,
		}},
	}).Error)

	n, err := References(db, used.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = References(db, idle.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
