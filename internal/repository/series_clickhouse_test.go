package repository

import (
	"context"
	"testing"
	"time"

	domrepo "MacroGate/internal/domain/repository"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCHSeriesSourceFetchSeries(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src := NewCHSeriesSource(db, "market_bars", domrepo.Interval5m, time.Hour)
	src.now = func() time.Time { return t0 }

	rows := sqlmock.NewRows([]string{"bucket", "open", "high", "low", "close"}).
		AddRow(t0.Add(-10*time.Minute), 1.08, 1.09, 1.07, 1.085).
		AddRow(t0.Add(-5*time.Minute), 1.085, 1.086, 1.08, 1.081)
	mock.ExpectQuery(`SELECT toStartOfInterval`).
		WithArgs(300, "EURUSD=X", t0.Add(-time.Hour)).
		WillReturnRows(rows)

	bars, err := src.FetchSeries(context.Background(), "EURUSD=X")
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 1.081, bars[1].Close)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestCHSeriesSourceEmpty(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	src := NewCHSeriesSource(db, "market_bars", domrepo.Interval1m, 0)
	mock.ExpectQuery(`SELECT toStartOfInterval`).
		WillReturnRows(sqlmock.NewRows([]string{"bucket", "open", "high", "low", "close"}))
	_, err = src.FetchSeries(context.Background(), "^VIX")
	assert.ErrorIs(t, err, domrepo.ErrNoSeries)

	mock.ExpectQuery(`SELECT count\(\), argMax`).
		WithArgs("^VIX").
		WillReturnRows(sqlmock.NewRows([]string{"n", "price"}).AddRow(uint64(0), 0.0))
	_, err = src.FetchLastPrice(context.Background(), "^VIX")
	assert.ErrorIs(t, err, domrepo.ErrNoSeries)
}

func TestCHSeriesSourceLastPrice(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT count\(\), argMax`).
		WillReturnRows(sqlmock.NewRows([]string{"n", "price"}).AddRow(uint64(12), 14.5))
	price, err := NewCHSeriesSource(db, "market_bars", domrepo.Interval5m, 0).FetchLastPrice(context.Background(), "^VIX")
	require.NoError(t, err)
	assert.Equal(t, 14.5, price)
}
