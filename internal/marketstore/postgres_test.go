package marketstore

import (
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newMockedPostgresStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return newPostgresStoreWithDB(db, zaptest.NewLogger(t)), mock
}

func TestPostgresStoreFind(t *testing.T) {
	store, mock := newMockedPostgresStore(t)

	market := fileMarket("0xaa01")
	data, err := json.Marshal(market)
	require.NoError(t, err)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM markets WHERE address = $1`)).
		WithArgs(market.Address.Hex()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	found, err := store.Find(market.Address)
	require.NoError(t, err)
	assert.Equal(t, market.Address, found.Address)
	assert.Equal(t, market.Question, found.Question)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreFindMissing(t *testing.T) {
	store, mock := newMockedPostgresStore(t)

	missing := common.HexToAddress("0xdead")
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM markets WHERE address = $1`)).
		WithArgs(missing.Hex()).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	_, err := store.Find(missing)
	assert.ErrorIs(t, err, ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateUpserts(t *testing.T) {
	store, mock := newMockedPostgresStore(t)

	market := fileMarket("0xaa01")
	data, err := json.Marshal(market)
	require.NoError(t, err)

	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO markets (address, data) VALUES ($1, $2)`)).
		WithArgs(market.Address.Hex(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM markets ORDER BY created_at ASC`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}).AddRow(data))

	all, err := store.Update(market)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, market.Address, all[0].Address)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreGetRecentEmpty(t *testing.T) {
	store, mock := newMockedPostgresStore(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT data FROM markets ORDER BY created_at DESC LIMIT 1`)).
		WillReturnRows(sqlmock.NewRows([]string{"data"}))

	recent, err := store.GetRecent()
	require.NoError(t, err)
	assert.Nil(t, recent)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreDeleteOld(t *testing.T) {
	store, mock := newMockedPostgresStore(t)

	mock.ExpectExec(`DELETE FROM markets WHERE address NOT IN`).
		WithArgs(3).
		WillReturnResult(sqlmock.NewResult(0, 2))

	err := store.DeleteOld(3)
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
