package chain

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/predmarket/predmarket/pkg/config"
)

// Role distinguishes the signing identities the system uses.
type Role string

const (
	RoleOperator Role = "operator"
	RoleOracle   Role = "oracle"
	RoleTrader   Role = "trader"
)

// Identity is a signing account. Sign produces an EIP-155 signed transaction.
type Identity struct {
	Role    Role
	Index   int
	Address common.Address

	key *ecdsa.PrivateKey
}

// Sign signs the transaction for the given chain.
func (id *Identity) Sign(tx *ethtypes.Transaction, chainID *big.Int) (*ethtypes.Transaction, error) {
	signed, err := ethtypes.SignTx(tx, ethtypes.NewEIP155Signer(chainID), id.key)
	if err != nil {
		return nil, fmt.Errorf("sign tx as %s[%d]: %w", id.Role, id.Index, err)
	}
	return signed, nil
}

// Keyring hands out deterministic signing identities per role+index.
// Explicitly configured keys take precedence; otherwise keys are derived
// from the dev seed, which pins the same demo accounts across runs.
type Keyring struct {
	operatorKey string
	oracleKey   string
	traderKeys  []string
	seed        []byte

	mu    sync.Mutex
	cache map[string]*Identity
}

// NewKeyring builds a keyring from configuration.
func NewKeyring(cfg *config.Config) *Keyring {
	return &Keyring{
		operatorKey: cfg.OperatorKey,
		oracleKey:   cfg.OracleKey,
		traderKeys:  cfg.TraderKeys,
		seed:        []byte(cfg.DevAccountSeed),
		cache:       make(map[string]*Identity),
	}
}

// Get returns the identity for a role. Index is only meaningful for traders;
// operator and oracle ignore it.
func (k *Keyring) Get(role Role, index int) (*Identity, error) {
	if role != RoleTrader {
		index = 0
	}

	cacheKey := fmt.Sprintf("%s/%d", role, index)

	k.mu.Lock()
	defer k.mu.Unlock()

	if id, ok := k.cache[cacheKey]; ok {
		return id, nil
	}

	key, err := k.keyFor(role, index)
	if err != nil {
		return nil, err
	}

	id := &Identity{
		Role:    role,
		Index:   index,
		Address: crypto.PubkeyToAddress(key.PublicKey),
		key:     key,
	}
	k.cache[cacheKey] = id
	return id, nil
}

// Operator is a shorthand for Get(RoleOperator, 0).
func (k *Keyring) Operator() (*Identity, error) {
	return k.Get(RoleOperator, 0)
}

func (k *Keyring) keyFor(role Role, index int) (*ecdsa.PrivateKey, error) {
	var configured string
	switch role {
	case RoleOperator:
		configured = k.operatorKey
	case RoleOracle:
		configured = k.oracleKey
	case RoleTrader:
		if index < len(k.traderKeys) {
			configured = k.traderKeys[index]
		}
	default:
		return nil, fmt.Errorf("unknown role %q", role)
	}

	if configured != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(configured, "0x"))
		if err != nil {
			return nil, fmt.Errorf("parse %s[%d] private key: %w", role, index, err)
		}
		return key, nil
	}

	return k.deriveKey(role, index)
}

// deriveKey hashes seed+role+index into a private-key scalar. The salt bump
// handles the (astronomically rare) case of an out-of-range scalar.
func (k *Keyring) deriveKey(role Role, index int) (*ecdsa.PrivateKey, error) {
	for salt := 0; salt < 16; salt++ {
		material := crypto.Keccak256(k.seed, []byte(role), []byte(fmt.Sprintf("%d/%d", index, salt)))
		key, err := crypto.ToECDSA(material)
		if err == nil {
			return key, nil
		}
	}
	return nil, fmt.Errorf("derive %s[%d] key: no valid scalar", role, index)
}
