package wallet

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/dtrandev/marketloop-backend/pkg/db/models"
	pkgerrors "github.com/dtrandev/marketloop-backend/pkg/errors"
	"github.com/dtrandev/marketloop-backend/pkg/logger"
)

func setupWalletTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:wallet_" + uuid.NewString() + "?mode=memory&cache=shared"
	gdb, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS wallet_transactions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  reason TEXT NOT NULL,
  refund_id TEXT UNIQUE,
  metadata TEXT,
  created_at DATETIME
);`
	require.NoError(t, gdb.Exec(ddl).Error)
	return gdb
}

func newTestCrediter(t *testing.T, gdb *gorm.DB) Crediter {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Level: zerolog.ErrorLevel})
	c, err := NewCrediter(gdb, logg)
	require.NoError(t, err)
	return c
}

func TestCredit(t *testing.T) {
	gdb := setupWalletTestDB(t)
	c := newTestCrediter(t, gdb)

	userID := uuid.New()
	refundID := uuid.New()
	entry, err := c.Credit(context.Background(), nil, userID, 4500, refundID, "refund payout")
	require.NoError(t, err)
	assert.Equal(t, 4500, entry.AmountCents)

	var count int64
	require.NoError(t, gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditDuplicateRefundRejected(t *testing.T) {
	gdb := setupWalletTestDB(t)
	c := newTestCrediter(t, gdb)

	userID := uuid.New()
	refundID := uuid.New()
	_, err := c.Credit(context.Background(), nil, userID, 4500, refundID, "refund payout")
	require.NoError(t, err)

	_, err = c.Credit(context.Background(), nil, userID, 4500, refundID, "refund payout")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("expected conflict on duplicate refund payout, got %v", err)
	}

	var count int64
	require.NoError(t, gdb.Model(&models.WalletTransaction{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestCreditValidation(t *testing.T) {
	gdb := setupWalletTestDB(t)
	c := newTestCrediter(t, gdb)

	_, err := c.Credit(context.Background(), nil, uuid.New(), 0, uuid.New(), "refund payout")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
	_, err = c.Credit(context.Background(), nil, uuid.New(), 100, uuid.New(), "")
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error for empty reason, got %v", err)
	}
}
