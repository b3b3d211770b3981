package marketstore

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/predmarket/predmarket/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newFileStore(t *testing.T) *FileStore {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "registry", "markets.json"), zaptest.NewLogger(t))
	require.NoError(t, err)
	return store
}

func fileMarket(hexAddress string) *types.PredictionMarket {
	return &types.PredictionMarket{
		Address:     common.HexToAddress(hexAddress),
		Type:        types.MarketTypeLMSR,
		Question:    "Stored?",
		QuestionID:  common.HexToHash("0x01"),
		ConditionID: common.HexToHash("0x02"),
		Outcomes: []types.OutcomeToken{
			{Title: "Yes", TokenIndex: 0},
			{Title: "No", TokenIndex: 1},
		},
		CollateralToken: types.CollateralToken{
			Address:  common.HexToAddress("0x03"),
			Symbol:   "WETH",
			Decimals: 18,
		},
		Oracle:    types.Oracle{Type: types.OracleCentralized},
		StartedAt: time.Now().UTC().Truncate(time.Second),
	}
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := newFileStore(t)

	market := fileMarket("0xaa01")
	all, err := store.Update(market)
	require.NoError(t, err)
	require.Len(t, all, 1)

	found, err := store.Find(market.Address)
	require.NoError(t, err)
	assert.Equal(t, market.Question, found.Question)
	assert.Equal(t, market.ConditionID, found.ConditionID)
	assert.Len(t, found.Outcomes, 2)
}

func TestFileStoreUpdateReplacesByAddress(t *testing.T) {
	store := newFileStore(t)

	market := fileMarket("0xaa01")
	_, err := store.Update(market)
	require.NoError(t, err)

	closedAt := time.Now()
	market.ClosedAt = &closedAt
	all, err := store.Update(market)
	require.NoError(t, err)
	require.Len(t, all, 1, "same address must replace, not append")

	found, err := store.Find(market.Address)
	require.NoError(t, err)
	assert.True(t, found.IsClosed())
}

func TestFileStoreFindMissing(t *testing.T) {
	store := newFileStore(t)

	_, err := store.Find(common.HexToAddress("0xdead"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePersistsSubMarkets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "markets.json")
	store, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	market := fileMarket("0xaa01")
	market.SubMarkets = map[string]*types.PredictionMarket{"Yes": fileMarket("0xbb01")}
	market.SubConditions = map[string]types.SubCondition{
		"Yes": {ID: common.HexToHash("0x04"), Question: "Nested?"},
	}
	_, err = store.Update(market)
	require.NoError(t, err)

	// A fresh store over the same file sees the full tree.
	reopened, err := NewFileStore(path, zaptest.NewLogger(t))
	require.NoError(t, err)
	found, err := reopened.Find(market.Address)
	require.NoError(t, err)
	require.Contains(t, found.SubMarkets, "Yes")
	assert.Equal(t, common.HexToAddress("0xbb01"), found.SubMarkets["Yes"].Address)
	assert.Equal(t, "Nested?", found.SubConditions["Yes"].Question)
}

func TestFileStoreGetRecent(t *testing.T) {
	store := newFileStore(t)

	recent, err := store.GetRecent()
	require.NoError(t, err)
	assert.Nil(t, recent, "empty registry has no recent market")

	_, err = store.Update(fileMarket("0xaa01"))
	require.NoError(t, err)
	_, err = store.Update(fileMarket("0xaa02"))
	require.NoError(t, err)

	recent, err = store.GetRecent()
	require.NoError(t, err)
	require.NotNil(t, recent)
	assert.Equal(t, common.HexToAddress("0xaa02"), recent.Address)
}

func TestFileStoreDeleteOld(t *testing.T) {
	store := newFileStore(t)

	for i := 0; i < 5; i++ {
		_, err := store.Update(fileMarket(fmt.Sprintf("0xaa0%d", i)))
		require.NoError(t, err)
	}

	err := store.DeleteOld(2)
	require.NoError(t, err)

	all, err := store.FindAll()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, common.HexToAddress("0xaa03"), all[0].Address)
	assert.Equal(t, common.HexToAddress("0xaa04"), all[1].Address)

	// Trimming below the current size is a no-op.
	err = store.DeleteOld(10)
	require.NoError(t, err)
	all, err = store.FindAll()
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
