package marketstore

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	_ "github.com/lib/pq"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// PostgresStore keeps the registry in a markets table, one JSONB document per
// market keyed by its AMM address.
type PostgresStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// PostgresConfig holds PostgreSQL configuration.
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Database string
	SSLMode  string
	Logger   *zap.Logger
}

const createMarketsTable = `
	CREATE TABLE IF NOT EXISTS markets (
		address    TEXT PRIMARY KEY,
		data       JSONB NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`

// NewPostgresStore connects and ensures the markets table exists.
func NewPostgresStore(cfg *PostgresConfig) (*PostgresStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	err = db.Ping()
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	_, err = db.Exec(createMarketsTable)
	if err != nil {
		return nil, fmt.Errorf("create markets table: %w", err)
	}

	cfg.Logger.Info("postgres-store-connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Database))

	return &PostgresStore{db: db, logger: cfg.Logger}, nil
}

// newPostgresStoreWithDB is used by tests to inject a mocked connection.
func newPostgresStoreWithDB(db *sql.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{db: db, logger: logger}
}

func (s *PostgresStore) FindAll() ([]*types.PredictionMarket, error) {
	rows, err := s.db.Query(`SELECT data FROM markets ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("query markets: %w", err)
	}
	defer rows.Close()

	var markets []*types.PredictionMarket
	for rows.Next() {
		var data []byte
		err = rows.Scan(&data)
		if err != nil {
			return nil, fmt.Errorf("scan market row: %w", err)
		}

		var market types.PredictionMarket
		err = json.Unmarshal(data, &market)
		if err != nil {
			return nil, fmt.Errorf("decode market row: %w", err)
		}
		markets = append(markets, &market)
	}

	return markets, rows.Err()
}

func (s *PostgresStore) Find(address common.Address) (*types.PredictionMarket, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM markets WHERE address = $1`, address.Hex()).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, address.Hex())
	}
	if err != nil {
		return nil, fmt.Errorf("query market: %w", err)
	}

	var market types.PredictionMarket
	err = json.Unmarshal(data, &market)
	if err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}
	return &market, nil
}

func (s *PostgresStore) Update(market *types.PredictionMarket) ([]*types.PredictionMarket, error) {
	data, err := json.Marshal(market)
	if err != nil {
		return nil, fmt.Errorf("encode market: %w", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO markets (address, data) VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET data = $2, updated_at = now()`,
		market.Address.Hex(), data)
	if err != nil {
		return nil, fmt.Errorf("upsert market: %w", err)
	}

	return s.FindAll()
}

func (s *PostgresStore) GetRecent() (*types.PredictionMarket, error) {
	var data []byte
	err := s.db.QueryRow(`SELECT data FROM markets ORDER BY created_at DESC LIMIT 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query recent market: %w", err)
	}

	var market types.PredictionMarket
	err = json.Unmarshal(data, &market)
	if err != nil {
		return nil, fmt.Errorf("decode market: %w", err)
	}
	return &market, nil
}

func (s *PostgresStore) DeleteOld(max int) error {
	_, err := s.db.Exec(`
		DELETE FROM markets WHERE address NOT IN (
			SELECT address FROM markets ORDER BY created_at DESC LIMIT $1
		)`, max)
	if err != nil {
		return fmt.Errorf("delete old markets: %w", err)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
