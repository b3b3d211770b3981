package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/predmarket/predmarket/pkg/types"
	"go.uber.org/zap"
)

// CallOpts describes how to execute a single ledger call.
type CallOpts struct {
	Method   string
	ReadOnly bool

	// Identity signs mutating calls. Defaults to the operator.
	Identity *Identity

	// SkipConfirmation returns right after submission without waiting for
	// the receipt. An account with a failed tx may hit a nonce mismatch on
	// its next call; the gateway's retry covers that.
	SkipConfirmation bool

	// PreventRetry disables the sequencing-conflict retry. Set internally on
	// the second attempt so the retry is single-shot.
	PreventRetry bool

	// Value is the native amount attached to payable calls (e.g. deposit).
	Value *big.Int
}

// CallResult carries either the decoded outputs of a read-only call or the
// receipt of a confirmed mutating call.
type CallResult struct {
	Outputs []interface{}
	TxHash  common.Hash
	Receipt *ethtypes.Receipt
}

// BigInt returns output i as *big.Int.
func (r *CallResult) BigInt(i int) (*big.Int, error) {
	if i >= len(r.Outputs) {
		return nil, fmt.Errorf("output %d out of range (%d outputs)", i, len(r.Outputs))
	}
	v, ok := r.Outputs[i].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("output %d is %T, not *big.Int", i, r.Outputs[i])
	}
	return v, nil
}

// Bool returns output i as bool.
func (r *CallResult) Bool(i int) (bool, error) {
	if i >= len(r.Outputs) {
		return false, fmt.Errorf("output %d out of range (%d outputs)", i, len(r.Outputs))
	}
	v, ok := r.Outputs[i].(bool)
	if !ok {
		return false, fmt.Errorf("output %d is %T, not bool", i, r.Outputs[i])
	}
	return v, nil
}

// Hash returns output i as common.Hash (bytes32 outputs decode to [32]byte).
func (r *CallResult) Hash(i int) (common.Hash, error) {
	if i >= len(r.Outputs) {
		return common.Hash{}, fmt.Errorf("output %d out of range (%d outputs)", i, len(r.Outputs))
	}
	v, ok := r.Outputs[i].([32]byte)
	if !ok {
		return common.Hash{}, fmt.Errorf("output %d is %T, not bytes32", i, r.Outputs[i])
	}
	return common.Hash(v), nil
}

// Address returns output i as common.Address.
func (r *CallResult) Address(i int) (common.Address, error) {
	if i >= len(r.Outputs) {
		return common.Address{}, fmt.Errorf("output %d out of range (%d outputs)", i, len(r.Outputs))
	}
	v, ok := r.Outputs[i].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("output %d is %T, not address", i, r.Outputs[i])
	}
	return v, nil
}

// DecodedEvent is one decoded log entry, indexed and non-indexed args merged.
type DecodedEvent struct {
	Name string
	Args map[string]interface{}
}

// Gateway is the uniform dispatcher for read-only and state-mutating ledger
// calls. It owns the retry-on-sequencing-conflict policy: a mutating call
// that fails with a recognizable nonce conflict is retried exactly once.
type Gateway struct {
	backend         Backend
	keyring         *Keyring
	chainID         *big.Int
	confirmInterval time.Duration
	confirmAttempts int
	gasFallback     uint64
	logger          *zap.Logger
}

// GatewayConfig holds gateway construction parameters.
type GatewayConfig struct {
	Backend          Backend
	Keyring          *Keyring
	ChainID          int64
	ConfirmInterval  time.Duration
	ConfirmAttempts  int
	GasLimitFallback uint64
	Logger           *zap.Logger
}

// NewGateway creates a gateway bound to one ledger backend.
func NewGateway(cfg *GatewayConfig) *Gateway {
	interval := cfg.ConfirmInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}
	attempts := cfg.ConfirmAttempts
	if attempts <= 0 {
		attempts = 60
	}
	gasFallback := cfg.GasLimitFallback
	if gasFallback == 0 {
		gasFallback = 500000
	}

	return &Gateway{
		backend:         cfg.Backend,
		keyring:         cfg.Keyring,
		chainID:         big.NewInt(cfg.ChainID),
		confirmInterval: interval,
		confirmAttempts: attempts,
		gasFallback:     gasFallback,
		logger:          cfg.Logger,
	}
}

// Backend exposes the underlying ledger backend for balance reads.
func (g *Gateway) Backend() Backend {
	return g.backend
}

// Invoke executes one ledger call against the target contract.
func (g *Gateway) Invoke(ctx context.Context, target *Contract, opts CallOpts, args ...interface{}) (*CallResult, error) {
	start := time.Now()

	result, err := g.invoke(ctx, target, opts, args...)

	mode := "mutating"
	if opts.ReadOnly {
		mode = "read_only"
	}
	LedgerCallDuration.WithLabelValues(mode).Observe(time.Since(start).Seconds())

	if err != nil {
		LedgerCallErrorsTotal.WithLabelValues(target.Name, opts.Method).Inc()
		return nil, &types.LedgerCallError{Target: target.Name, Method: opts.Method, Err: err}
	}

	LedgerCallsTotal.WithLabelValues(target.Name, opts.Method, mode).Inc()
	return result, nil
}

func (g *Gateway) invoke(ctx context.Context, target *Contract, opts CallOpts, args ...interface{}) (*CallResult, error) {
	data, err := target.ABI.Pack(opts.Method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", opts.Method, err)
	}

	if opts.ReadOnly {
		return g.view(ctx, target, opts, data)
	}

	return g.mutate(ctx, target, opts, data, args...)
}

func (g *Gateway) view(ctx context.Context, target *Contract, opts CallOpts, data []byte) (*CallResult, error) {
	msg := ethereum.CallMsg{
		To:   &target.Address,
		Data: data,
	}
	if opts.Identity != nil {
		msg.From = opts.Identity.Address
	}

	raw, err := g.backend.CallContract(ctx, msg, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", opts.Method, err)
	}

	outputs, err := target.ABI.Unpack(opts.Method, raw)
	if err != nil {
		return nil, fmt.Errorf("unpack %s result: %w", opts.Method, err)
	}

	return &CallResult{Outputs: outputs}, nil
}

func (g *Gateway) mutate(ctx context.Context, target *Contract, opts CallOpts, data []byte, args ...interface{}) (*CallResult, error) {
	identity := opts.Identity
	if identity == nil {
		var err error
		identity, err = g.keyring.Operator()
		if err != nil {
			return nil, fmt.Errorf("operator identity: %w", err)
		}
	}

	result, err := g.submit(ctx, target, opts, identity, data)
	if err == nil {
		return result, nil
	}

	// Single-shot recovery: one retry with the same arguments when the
	// failure is a sequencing conflict and retry is not suppressed.
	if opts.PreventRetry || ClassifyFailure(err) != FailureSequencingConflict {
		return nil, err
	}

	SequencingRetriesTotal.Inc()
	g.logger.Warn("sequencing-conflict-retry",
		zap.String("contract", target.Name),
		zap.String("method", opts.Method),
		zap.String("signer", identity.Address.Hex()),
		zap.Error(err))

	retryOpts := opts
	retryOpts.PreventRetry = true
	result, retryErr := g.submit(ctx, target, retryOpts, identity, data)
	if retryErr != nil {
		return nil, fmt.Errorf("%w (after sequencing-conflict retry): %w", types.ErrSequencingConflict, retryErr)
	}
	return result, nil
}

func (g *Gateway) submit(ctx context.Context, target *Contract, opts CallOpts, identity *Identity, data []byte) (*CallResult, error) {
	nonce, err := g.backend.PendingNonceAt(ctx, identity.Address)
	if err != nil {
		return nil, fmt.Errorf("get nonce: %w", err)
	}

	gasPrice, err := g.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("suggest gas price: %w", err)
	}

	value := opts.Value
	if value == nil {
		value = big.NewInt(0)
	}

	gasLimit, err := g.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  identity.Address,
		To:    &target.Address,
		Value: value,
		Data:  data,
	})
	if err != nil {
		// Some dev-chain backends refuse estimation for not-yet-valid
		// state; fall back to a generous fixed limit.
		gasLimit = g.gasFallback
	}

	tx := ethtypes.NewTransaction(nonce, target.Address, value, gasLimit, gasPrice, data)

	signedTx, err := identity.Sign(tx, g.chainID)
	if err != nil {
		return nil, err
	}

	err = g.backend.SendTransaction(ctx, signedTx)
	if err != nil {
		return nil, fmt.Errorf("send tx: %w", err)
	}

	txHash := signedTx.Hash()
	g.logger.Debug("tx-submitted",
		zap.String("contract", target.Name),
		zap.String("method", opts.Method),
		zap.String("tx-hash", txHash.Hex()),
		zap.String("signer", identity.Address.Hex()),
		zap.Uint64("nonce", nonce))

	if opts.SkipConfirmation {
		return &CallResult{TxHash: txHash}, nil
	}

	receipt, err := g.waitMined(ctx, txHash)
	if err != nil {
		return nil, err
	}

	if receipt.Status != ethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("tx %s reverted", txHash.Hex())
	}

	return &CallResult{TxHash: txHash, Receipt: receipt}, nil
}

func (g *Gateway) waitMined(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	for i := 0; i < g.confirmAttempts; i++ {
		receipt, err := g.backend.TransactionReceipt(ctx, txHash)
		if err == nil {
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(g.confirmInterval):
		}
	}

	return nil, fmt.Errorf("timeout waiting for receipt of %s", txHash.Hex())
}

// EventsFromReceipt decodes every log entry in the receipt whose signature
// topic matches the named event of the target's ABI. Returns ErrEventNotFound
// when the target exposes no such event.
func (g *Gateway) EventsFromReceipt(receipt *ethtypes.Receipt, target *Contract, eventName string) ([]DecodedEvent, error) {
	event, ok := target.ABI.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("%w: %s has no event %q", types.ErrEventNotFound, target.Name, eventName)
	}

	var decoded []DecodedEvent
	for _, log := range receipt.Logs {
		if len(log.Topics) == 0 || log.Topics[0] != event.ID {
			continue
		}

		args := make(map[string]interface{})
		err := target.ABI.UnpackIntoMap(args, eventName, log.Data)
		if err != nil {
			return nil, fmt.Errorf("unpack %s data: %w", eventName, err)
		}

		var indexed abi.Arguments
		for _, input := range event.Inputs {
			if input.Indexed {
				indexed = append(indexed, input)
			}
		}
		if len(indexed) > 0 {
			err = abi.ParseTopicsIntoMap(args, indexed, log.Topics[1:])
			if err != nil {
				return nil, fmt.Errorf("parse %s topics: %w", eventName, err)
			}
		}

		decoded = append(decoded, DecodedEvent{Name: eventName, Args: args})
	}

	return decoded, nil
}

// FailureReason is the structured classification of a mutating-call failure.
// Text matching against backend error strings is confined to ClassifyFailure
// so the rest of the gateway works off the enum.
type FailureReason int

const (
	FailureOther FailureReason = iota
	FailureSequencingConflict
)

var sequencingConflictPatterns = []string{
	"correct nonce",
	"nonce too low",
	"invalid nonce",
	"incorrect sequence",
	"transaction underpriced",
	"replacement transaction underpriced",
}

// ClassifyFailure maps a backend error to a failure reason.
func ClassifyFailure(err error) FailureReason {
	if err == nil {
		return FailureOther
	}
	if errors.Is(err, types.ErrSequencingConflict) {
		return FailureSequencingConflict
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range sequencingConflictPatterns {
		if strings.Contains(msg, pattern) {
			return FailureSequencingConflict
		}
	}
	return FailureOther
}
