package marketstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"github.com/goccy/go-json"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// FileStore keeps the registry in a single JSON file. Suited to the demo and
// single-operator setups; the postgres store covers everything else.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu sync.Mutex
}

// NewFileStore creates a file-backed store at path, creating the parent
// directory when needed.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		err := os.MkdirAll(dir, 0o755)
		if err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	logger.Info("file-store-initialized", zap.String("path", path))
	return &FileStore{path: path, logger: logger}, nil
}

func (s *FileStore) FindAll() ([]*types.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

func (s *FileStore) Find(address common.Address) (*types.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.load()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(address.Hex())
	for _, market := range markets {
		if strings.ToLower(market.Address.Hex()) == want {
			return market, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrNotFound, address.Hex())
}

func (s *FileStore) Update(market *types.PredictionMarket) ([]*types.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.load()
	if err != nil {
		return nil, err
	}

	replaced := false
	for i, existing := range markets {
		if existing.Address == market.Address {
			markets[i] = market
			replaced = true
			break
		}
	}
	if !replaced {
		markets = append(markets, market)
	}

	err = s.save(markets)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("market-stored",
		zap.String("address", market.Address.Hex()),
		zap.Bool("replaced", replaced))
	return markets, nil
}

func (s *FileStore) GetRecent() (*types.PredictionMarket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.load()
	if err != nil {
		return nil, err
	}
	if len(markets) == 0 {
		return nil, nil
	}
	return markets[len(markets)-1], nil
}

func (s *FileStore) DeleteOld(max int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	markets, err := s.load()
	if err != nil {
		return err
	}
	if len(markets) <= max {
		return nil
	}

	return s.save(markets[len(markets)-max:])
}

func (s *FileStore) Close() error {
	return nil
}

func (s *FileStore) load() ([]*types.PredictionMarket, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read market file: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var markets []*types.PredictionMarket
	err = json.Unmarshal(data, &markets)
	if err != nil {
		return nil, fmt.Errorf("decode market file: %w", err)
	}
	return markets, nil
}

func (s *FileStore) save(markets []*types.PredictionMarket) error {
	data, err := json.MarshalIndent(markets, "", "  ")
	if err != nil {
		return fmt.Errorf("encode markets: %w", err)
	}

	// Write-then-rename keeps the registry readable across a crash mid-save.
	tmp := s.path + ".tmp"
	err = os.WriteFile(tmp, data, 0o644)
	if err != nil {
		return fmt.Errorf("write market file: %w", err)
	}

	err = os.Rename(tmp, s.path)
	if err != nil {
		return fmt.Errorf("replace market file: %w", err)
	}
	return nil
}
