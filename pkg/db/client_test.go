package db

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/benchlot/benchlot-backend/pkg/db/dbtest"
	"github.com/benchlot/benchlot-backend/pkg/logger"
)

type ledgerRow struct {
	ID         int
	Reference  string
	TotalCents int64
}

func countRows(t *testing.T, conn *gorm.DB) int64 {
	t.Helper()
	var n int64
	require.NoError(t, conn.Model(&ledgerRow{}).Count(&n).Error)
	return n
}

func TestWithTxCommitsOnSuccess(t *testing.T) {
	conn := dbtest.Open(t, &ledgerRow{})
	client := FromGorm(conn)

	err := client.WithTx(context.Background(), func(tx *gorm.DB) error {
		return tx.Create(&ledgerRow{Reference: "pi_committed", TotalCents: 20000}).Error
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, countRows(t, conn))
}

func TestWithTxRollsBackOnErrorAndPanic(t *testing.T) {
	conn := dbtest.Open(t, &ledgerRow{})
	client := FromGorm(conn)
	ctx := context.Background()

	boom := errors.New("items insert failed")
	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		require.NoError(t, tx.Create(&ledgerRow{Reference: "pi_rolled"}).Error)
		return boom
	})
	require.ErrorIs(t, err, boom)

	require.Panics(t, func() {
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			require.NoError(t, tx.Create(&ledgerRow{Reference: "pi_panicked"}).Error)
			panic("mid-transaction")
		})
	})
	require.Zero(t, countRows(t, conn))
}

func TestPing(t *testing.T) {
	require.NoError(t, FromGorm(dbtest.Open(t)).Ping(context.Background()))
}

func TestQueryLoggerReportsSlowAndFailedStatements(t *testing.T) {
	buf := &bytes.Buffer{}
	ql := newQueryLogger(logger.New(logger.Options{ServiceName: "test", Output: buf}), 10*time.Millisecond)
	ctx := context.Background()
	stmt := func() (string, int64) { return "SELECT 1", 1 }

	ql.Trace(ctx, time.Now(), stmt, nil)
	require.Zero(t, buf.Len(), "fast queries stay quiet")

	ql.Trace(ctx, time.Now(), stmt, gorm.ErrRecordNotFound)
	require.Zero(t, buf.Len(), "missing rows are not failures")

	ql.Trace(ctx, time.Now().Add(-time.Second), stmt, nil)
	require.Contains(t, buf.String(), `"message":"slow query"`)
	buf.Reset()

	ql.Trace(ctx, time.Now(), stmt, errors.New("deadlock detected"))
	require.Contains(t, buf.String(), `"error":"deadlock detected"`)
	buf.Reset()

	ql.LogMode(gormlogger.Silent).Trace(ctx, time.Now(), stmt, errors.New("ignored"))
	require.Zero(t, buf.Len())
}
