package pricesync

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectHasDate(mock pgxmock.PgxPoolIface, has bool) {
	mock.ExpectQuery("SELECT EXISTS").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(has))
}

func TestCoverage_HasDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	expectHasDate(mock, true)

	cov := NewCoverage(mock)
	has, err := cov.HasDate(context.Background(), time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.True(t, has)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCoverage_CountForDate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery("SELECT count").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(4312)))

	cov := NewCoverage(mock)
	n, err := cov.CountForDate(context.Background(), time.Date(2025, 11, 3, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(4312), n)
}

func TestCoverage_MissingDates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	// Nov 1 covered, Nov 2 missing, Nov 3 covered, Nov 4 missing.
	expectHasDate(mock, true)
	expectHasDate(mock, false)
	expectHasDate(mock, true)
	expectHasDate(mock, false)

	cov := NewCoverage(mock)
	from := time.Date(2025, 11, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2025, 11, 4, 0, 0, 0, 0, time.UTC)
	missing, err := cov.MissingDates(context.Background(), from, to)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	assert.Equal(t, 2, missing[0].Day())
	assert.Equal(t, 4, missing[1].Day())
	assert.NoError(t, mock.ExpectationsWereMet())
}
