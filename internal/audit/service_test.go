package audit

import (
	"testing"
	"time"

	"jewelshop-backend/internal/database"
	"jewelshop-backend/internal/models"
	"jewelshop-backend/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var actor = Actor{UserID: 7, UserName: "admin"}

func lastLog(t *testing.T) models.AuditLog {
	t.Helper()
	var l models.AuditLog
	require.NoError(t, database.DB.Order("id DESC").First(&l).Error)
	return l
}

func TestUndo_CreateDeletesEntity(t *testing.T) {
	db := testutil.NewDB(t)
	e := models.Expense{Name: "tea", Type: models.ExpenseDaily, Amount: decimal.NewFromInt(10), Date: time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC)}
	require.NoError(t, db.Create(&e).Error)
	require.NoError(t, actor.Log(db, EntityExpense, e.ID, models.AuditActionCreate, "expense created", nil, e))

	entry := lastLog(t)
	require.NoError(t, UndoLog(entry.ID, 7, "admin"))

	var count int64
	db.Model(&models.Expense{}).Count(&count)
	assert.Zero(t, count)

	assert.ErrorIs(t, UndoLog(entry.ID, 7, "admin"), ErrAlreadyUndone)
	assert.Equal(t, models.AuditActionUndo, lastLog(t).Action)
}

func TestUndo_UpdateRestoresAndDeleteRecreates(t *testing.T) {
	db := testutil.NewDB(t)
	p := models.Product{SerialNo: "R-1", Name: "Ring", GrossWeight: decimal.RequireFromString("4.5"), StockQty: 2}
	require.NoError(t, db.Create(&p).Error)

	before := p
	p.Name = "Gold ring"
	p.StockQty = 9
	require.NoError(t, db.Save(&p).Error)
	require.NoError(t, actor.Log(db, EntityProduct, p.ID, models.AuditActionUpdate, "renamed", before, p))
	require.NoError(t, UndoLog(lastLog(t).ID, 7, "admin"))

	var got models.Product
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, "Ring", got.Name)
	assert.Equal(t, 2, got.StockQty)

	require.NoError(t, db.Delete(&models.Product{}, p.ID).Error)
	require.NoError(t, actor.Log(db, EntityProduct, p.ID, models.AuditActionDelete, "deleted", got, nil))
	require.NoError(t, UndoLog(lastLog(t).ID, 7, "admin"))

	require.NoError(t, db.First(&got, p.ID).Error)
	assert.Equal(t, "R-1", got.SerialNo)
}

func TestUndo_RefusesLedgerEntries(t *testing.T) {
	db := testutil.NewDB(t)
	require.NoError(t, actor.Log(db, EntityLedger, 1, models.AuditActionCreate, "stock-in", nil, nil))

	assert.ErrorIs(t, UndoLog(lastLog(t).ID, 7, "admin"), ErrNotUndoable)
	assert.ErrorIs(t, UndoLog(999, 7, "admin"), ErrLogNotFound)
}
