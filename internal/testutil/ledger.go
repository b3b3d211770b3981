// Package testutil provides an in-memory ledger that simulates the
// conditional-token system, the collateral token and LMSR market makers well
// enough to exercise the full call paths without a running node.
package testutil

import (
	"context"
	"fmt"
	"math"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/predmarket/predmarket/internal/chain"
)

// TestChainID is the chain id the fake ledger signs and verifies against.
const TestChainID int64 = 1337

type ammState struct {
	conditionID  common.Hash
	outcomeCount int
	quantities   []float64 // net outcome tokens sold, minor units
	funding      float64   // minor units
	fee          uint64
	closed       bool
}

type conditionState struct {
	oracle       common.Address
	questionID   common.Hash
	outcomeCount int
	payouts      []*big.Int
	payoutTotal  *big.Int
}

// FakeLedger implements chain.Backend with an in-memory contract state
// machine. All state transitions happen synchronously in SendTransaction and
// the receipt is available immediately.
type FakeLedger struct {
	mu sync.Mutex

	contracts *chain.Contracts
	decimals  int
	symbol    string

	conditions        map[common.Hash]*conditionState
	questionCondition map[common.Hash]common.Hash

	collateral     map[common.Address]*big.Int
	allowances     map[common.Address]map[common.Address]*big.Int
	positions      map[string]map[common.Address]*big.Int
	transferApproval map[common.Address]map[common.Address]bool

	amms       map[common.Address]*ammState
	ammCounter int

	nonces   map[common.Address]uint64
	receipts map[common.Hash]*ethtypes.Receipt

	// sendErrors are popped one per SendTransaction before any state change.
	sendErrors []error

	// SendCount tallies SendTransaction attempts, failed ones included.
	SendCount int
}

// NewFakeLedger creates an empty ledger bound to the contract set it should
// recognize call targets from.
func NewFakeLedger(contracts *chain.Contracts, decimals int, symbol string) *FakeLedger {
	return &FakeLedger{
		contracts:         contracts,
		decimals:          decimals,
		symbol:            symbol,
		conditions:        make(map[common.Hash]*conditionState),
		questionCondition: make(map[common.Hash]common.Hash),
		collateral:        make(map[common.Address]*big.Int),
		allowances:        make(map[common.Address]map[common.Address]*big.Int),
		positions:         make(map[string]map[common.Address]*big.Int),
		transferApproval:  make(map[common.Address]map[common.Address]bool),
		amms:              make(map[common.Address]*ammState),
		nonces:            make(map[common.Address]uint64),
		receipts:          make(map[common.Hash]*ethtypes.Receipt),
	}
}

// QueueSendError makes the next SendTransaction fail with err before any
// state change. Queued errors pop in order.
func (l *FakeLedger) QueueSendError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.sendErrors = append(l.sendErrors, err)
}

// SetCollateral seeds an account's collateral balance in minor units.
func (l *FakeLedger) SetCollateral(account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.collateral[account] = new(big.Int).Set(amount)
}

// CollateralBalance reads an account's collateral balance in minor units.
func (l *FakeLedger) CollateralBalance(account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return new(big.Int).Set(l.balanceOf(account))
}

// SetPosition seeds an account's outcome token balance for a position id in
// minor units.
func (l *FakeLedger) SetPosition(positionID *big.Int, account common.Address, amount *big.Int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	key := positionID.String()
	if l.positions[key] == nil {
		l.positions[key] = make(map[common.Address]*big.Int)
	}
	l.positions[key][account] = new(big.Int).Set(amount)
}

// PositionBalance reads an account's outcome token balance for a position id.
func (l *FakeLedger) PositionBalance(positionID *big.Int, account common.Address) *big.Int {
	l.mu.Lock()
	defer l.mu.Unlock()
	holders, ok := l.positions[positionID.String()]
	if !ok {
		return new(big.Int)
	}
	balance, ok := holders[account]
	if !ok {
		return new(big.Int)
	}
	return new(big.Int).Set(balance)
}

// AMMQuantities returns a copy of an AMM's net sold quantities in minor units.
func (l *FakeLedger) AMMQuantities(amm common.Address) []float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	state, ok := l.amms[amm]
	if !ok {
		return nil
	}
	out := make([]float64, len(state.quantities))
	copy(out, state.quantities)
	return out
}

// --- chain.Backend ---

func (l *FakeLedger) CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if msg.To == nil {
		return nil, fmt.Errorf("contract creation not supported")
	}
	return l.dispatchView(*msg.To, msg.Data)
}

func (l *FakeLedger) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.nonces[account], nil
}

func (l *FakeLedger) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (l *FakeLedger) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return 100_000, nil
}

func (l *FakeLedger) SendTransaction(ctx context.Context, tx *ethtypes.Transaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.SendCount++

	if len(l.sendErrors) > 0 {
		err := l.sendErrors[0]
		l.sendErrors = l.sendErrors[1:]
		return err
	}

	signer := ethtypes.NewEIP155Signer(big.NewInt(TestChainID))
	sender, err := ethtypes.Sender(signer, tx)
	if err != nil {
		return fmt.Errorf("recover sender: %w", err)
	}

	if tx.To() == nil {
		return fmt.Errorf("contract creation not supported")
	}

	logs, err := l.applyMutation(sender, *tx.To(), tx.Value(), tx.Data())
	if err != nil {
		return err
	}

	l.nonces[sender]++

	txHash := tx.Hash()
	for _, log := range logs {
		log.TxHash = txHash
	}
	l.receipts[txHash] = &ethtypes.Receipt{
		Status:  ethtypes.ReceiptStatusSuccessful,
		TxHash:  txHash,
		GasUsed: 50_000,
		Logs:    logs,
	}
	return nil
}

func (l *FakeLedger) TransactionReceipt(ctx context.Context, txHash common.Hash) (*ethtypes.Receipt, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	receipt, ok := l.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (l *FakeLedger) BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error) {
	// Every account carries ample native balance; deposit conversion never
	// fails for lack of it.
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(24), nil), nil
}

func (l *FakeLedger) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(TestChainID), nil
}

// --- view dispatch ---

func (l *FakeLedger) dispatchView(to common.Address, data []byte) ([]byte, error) {
	switch {
	case to == l.contracts.ConditionalTokens.Address:
		return l.viewCTF(data)
	case l.contracts.Collateral != nil && to == l.contracts.Collateral.Address:
		return l.viewCollateral(data)
	default:
		if _, ok := l.amms[to]; ok {
			return l.viewAMM(to, data)
		}
		return nil, fmt.Errorf("no contract at %s", to.Hex())
	}
}

func (l *FakeLedger) viewCTF(data []byte) ([]byte, error) {
	method, args, err := decodeCall(l.contracts.ConditionalTokens.ABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "getConditionId":
		oracle := args[0].(common.Address)
		questionID := args[1].([32]byte)
		count := args[2].(*big.Int)
		return method.Outputs.Pack(deriveConditionID(oracle, questionID, count))

	case "getCollectionId":
		parent := args[0].([32]byte)
		conditionID := common.Hash(args[1].([32]byte))
		indexSet := args[2].(*big.Int)
		return method.Outputs.Pack(deriveCollectionID(parent, conditionID, indexSet))

	case "getPositionId":
		collateral := args[0].(common.Address)
		collectionID := args[1].([32]byte)
		return method.Outputs.Pack(derivePositionID(collateral, collectionID))

	case "getOutcomeSlotCount":
		conditionID := common.Hash(args[0].([32]byte))
		condition, ok := l.conditions[conditionID]
		if !ok {
			return method.Outputs.Pack(big.NewInt(0))
		}
		return method.Outputs.Pack(big.NewInt(int64(condition.outcomeCount)))

	case "balanceOf":
		owner := args[0].(common.Address)
		id := args[1].(*big.Int)
		holders, ok := l.positions[id.String()]
		if !ok {
			return method.Outputs.Pack(new(big.Int))
		}
		balance, ok := holders[owner]
		if !ok {
			return method.Outputs.Pack(new(big.Int))
		}
		return method.Outputs.Pack(new(big.Int).Set(balance))

	case "isApprovedForAll":
		owner := args[0].(common.Address)
		operator := args[1].(common.Address)
		return method.Outputs.Pack(l.transferApproval[owner][operator])

	default:
		return nil, fmt.Errorf("view %s not supported on conditional tokens", method.Name)
	}
}

func (l *FakeLedger) viewCollateral(data []byte) ([]byte, error) {
	method, args, err := decodeCall(l.contracts.Collateral.ABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "balanceOf":
		owner := args[0].(common.Address)
		return method.Outputs.Pack(new(big.Int).Set(l.balanceOf(owner)))

	case "allowance":
		owner := args[0].(common.Address)
		spender := args[1].(common.Address)
		return method.Outputs.Pack(new(big.Int).Set(l.allowanceOf(owner, spender)))

	case "decimals":
		return method.Outputs.Pack(uint8(l.decimals))

	case "symbol":
		return method.Outputs.Pack(l.symbol)

	default:
		return nil, fmt.Errorf("view %s not supported on collateral", method.Name)
	}
}

func (l *FakeLedger) viewAMM(amm common.Address, data []byte) ([]byte, error) {
	state := l.amms[amm]
	method, args, err := decodeCall(l.contracts.MarketMaker(amm).ABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "calcNetCost":
		deltas := args[0].([]*big.Int)
		if len(deltas) != state.outcomeCount {
			return nil, fmt.Errorf("expected %d outcome amounts, got %d", state.outcomeCount, len(deltas))
		}
		cost := state.netCost(deltas)
		return method.Outputs.Pack(cost)

	case "calcMarginalPrice":
		index := int(args[0].(uint8))
		if index >= state.outcomeCount {
			return nil, fmt.Errorf("outcome index %d out of range", index)
		}
		price := state.marginalPrice(index)
		scaled := new(big.Float).Mul(big.NewFloat(price), big.NewFloat(math.Pow10(l.decimals)))
		out, _ := scaled.Int(nil)
		return method.Outputs.Pack(out)

	case "funding":
		return method.Outputs.Pack(big.NewInt(int64(state.funding)))

	case "fee":
		return method.Outputs.Pack(state.fee)

	default:
		return nil, fmt.Errorf("view %s not supported on market maker", method.Name)
	}
}

// --- mutation dispatch ---

func (l *FakeLedger) applyMutation(sender, to common.Address, value *big.Int, data []byte) ([]*ethtypes.Log, error) {
	switch {
	case to == l.contracts.ConditionalTokens.Address:
		return l.mutateCTF(sender, data)
	case l.contracts.Collateral != nil && to == l.contracts.Collateral.Address:
		return l.mutateCollateral(sender, value, data)
	case to == l.contracts.LMSRFactory.Address:
		return l.mutateFactory(sender, data)
	default:
		if _, ok := l.amms[to]; ok {
			return l.mutateAMM(sender, to, data)
		}
		return nil, fmt.Errorf("no contract at %s", to.Hex())
	}
}

func (l *FakeLedger) mutateCTF(sender common.Address, data []byte) ([]*ethtypes.Log, error) {
	ctfABI := l.contracts.ConditionalTokens.ABI
	method, args, err := decodeCall(ctfABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "prepareCondition":
		oracle := args[0].(common.Address)
		questionID := args[1].([32]byte)
		count := args[2].(*big.Int)
		conditionID := common.Hash(deriveConditionID(oracle, questionID, count))
		if _, exists := l.conditions[conditionID]; exists {
			return nil, fmt.Errorf("condition already prepared")
		}
		l.conditions[conditionID] = &conditionState{
			oracle:       oracle,
			questionID:   questionID,
			outcomeCount: int(count.Int64()),
		}
		l.questionCondition[questionID] = conditionID
		return nil, nil

	case "reportPayouts":
		questionID := args[0].([32]byte)
		payouts := args[1].([]*big.Int)
		conditionID, ok := l.questionCondition[questionID]
		if !ok {
			return nil, fmt.Errorf("condition not prepared for question")
		}
		condition := l.conditions[conditionID]
		if sender != condition.oracle {
			return nil, fmt.Errorf("payouts may only be reported by the oracle")
		}
		if len(payouts) != condition.outcomeCount {
			return nil, fmt.Errorf("payout vector length %d, condition has %d slots", len(payouts), condition.outcomeCount)
		}
		total := new(big.Int)
		for _, p := range payouts {
			total.Add(total, p)
		}
		if total.Sign() == 0 {
			return nil, fmt.Errorf("payout vector is all zeroes")
		}
		condition.payouts = payouts
		condition.payoutTotal = total
		return nil, nil

	case "setApprovalForAll":
		operator := args[0].(common.Address)
		approved := args[1].(bool)
		if l.transferApproval[sender] == nil {
			l.transferApproval[sender] = make(map[common.Address]bool)
		}
		l.transferApproval[sender][operator] = approved
		return nil, nil

	case "redeemPositions":
		return l.redeemPositions(sender, args)

	default:
		return nil, fmt.Errorf("mutation %s not supported on conditional tokens", method.Name)
	}
}

func (l *FakeLedger) redeemPositions(sender common.Address, args []interface{}) ([]*ethtypes.Log, error) {
	collateral := args[0].(common.Address)
	parent := args[1].([32]byte)
	conditionID := common.Hash(args[2].([32]byte))
	indexSets := args[3].([]*big.Int)

	condition, ok := l.conditions[conditionID]
	if !ok {
		return nil, fmt.Errorf("condition not prepared")
	}
	if condition.payouts == nil {
		return nil, fmt.Errorf("result for condition not received yet")
	}

	payout := new(big.Int)
	for _, indexSet := range indexSets {
		collectionID := deriveCollectionID(parent, conditionID, indexSet)
		positionID := derivePositionID(collateral, collectionID)

		holders := l.positions[positionID.String()]
		if holders == nil {
			continue
		}
		balance := holders[sender]
		if balance == nil || balance.Sign() == 0 {
			continue
		}

		numerator := new(big.Int)
		for i := 0; i < condition.outcomeCount; i++ {
			if indexSet.Bit(i) == 1 {
				numerator.Add(numerator, condition.payouts[i])
			}
		}

		share := new(big.Int).Mul(balance, numerator)
		share.Div(share, condition.payoutTotal)
		payout.Add(payout, share)

		holders[sender] = new(big.Int)
	}

	l.credit(sender, payout)

	log, err := l.payoutRedemptionLog(sender, collateral, parent, conditionID, indexSets, payout)
	if err != nil {
		return nil, err
	}
	return []*ethtypes.Log{log}, nil
}

func (l *FakeLedger) payoutRedemptionLog(redeemer, collateral common.Address, parent [32]byte, conditionID common.Hash, indexSets []*big.Int, payout *big.Int) (*ethtypes.Log, error) {
	event := l.contracts.ConditionalTokens.ABI.Events["PayoutRedemption"]
	data, err := event.Inputs.NonIndexed().Pack(conditionID, indexSets, payout)
	if err != nil {
		return nil, fmt.Errorf("pack redemption log: %w", err)
	}
	return &ethtypes.Log{
		Address: l.contracts.ConditionalTokens.Address,
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(redeemer.Bytes()),
			common.BytesToHash(collateral.Bytes()),
			common.Hash(parent),
		},
		Data: data,
	}, nil
}

func (l *FakeLedger) mutateCollateral(sender common.Address, value *big.Int, data []byte) ([]*ethtypes.Log, error) {
	method, args, err := decodeCall(l.contracts.Collateral.ABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "deposit":
		l.credit(sender, value)
		return nil, nil

	case "withdraw":
		wad := args[0].(*big.Int)
		return nil, l.debit(sender, wad)

	case "approve":
		guy := args[0].(common.Address)
		wad := args[1].(*big.Int)
		if l.allowances[sender] == nil {
			l.allowances[sender] = make(map[common.Address]*big.Int)
		}
		l.allowances[sender][guy] = new(big.Int).Set(wad)
		return nil, nil

	case "transfer":
		dst := args[0].(common.Address)
		wad := args[1].(*big.Int)
		err := l.debit(sender, wad)
		if err != nil {
			return nil, err
		}
		l.credit(dst, wad)
		return nil, nil

	default:
		return nil, fmt.Errorf("mutation %s not supported on collateral", method.Name)
	}
}

func (l *FakeLedger) mutateFactory(sender common.Address, data []byte) ([]*ethtypes.Log, error) {
	method, args, err := decodeCall(l.contracts.LMSRFactory.ABI, data)
	if err != nil {
		return nil, err
	}
	if method.Name != "createLMSRMarketMaker" {
		return nil, fmt.Errorf("mutation %s not supported on factory", method.Name)
	}

	conditionIDs := args[2].([][32]byte)
	fee := args[3].(uint64)
	funding := args[5].(*big.Int)

	if len(conditionIDs) != 1 {
		return nil, fmt.Errorf("exactly one condition per market maker, got %d", len(conditionIDs))
	}
	conditionID := common.Hash(conditionIDs[0])
	condition, ok := l.conditions[conditionID]
	if !ok {
		return nil, fmt.Errorf("condition not prepared")
	}

	err = l.spendAllowance(sender, l.contracts.LMSRFactory.Address, funding)
	if err != nil {
		return nil, err
	}

	l.ammCounter++
	ammAddress := crypto.CreateAddress(l.contracts.LMSRFactory.Address, uint64(l.ammCounter))
	l.amms[ammAddress] = &ammState{
		conditionID:  conditionID,
		outcomeCount: condition.outcomeCount,
		quantities:   make([]float64, condition.outcomeCount),
		funding:      float64(funding.Int64()),
		fee:          fee,
	}

	event := l.contracts.LMSRFactory.ABI.Events["LMSRMarketMakerCreation"]
	logData, err := event.Inputs.NonIndexed().Pack(
		ammAddress,
		l.contracts.ConditionalTokens.Address,
		l.contracts.Collateral.Address,
		conditionIDs,
		fee,
		funding,
	)
	if err != nil {
		return nil, fmt.Errorf("pack creation log: %w", err)
	}

	return []*ethtypes.Log{{
		Address: l.contracts.LMSRFactory.Address,
		Topics: []common.Hash{
			event.ID,
			common.BytesToHash(sender.Bytes()),
		},
		Data: logData,
	}}, nil
}

func (l *FakeLedger) mutateAMM(sender, amm common.Address, data []byte) ([]*ethtypes.Log, error) {
	state := l.amms[amm]
	method, args, err := decodeCall(l.contracts.MarketMaker(amm).ABI, data)
	if err != nil {
		return nil, err
	}

	switch method.Name {
	case "trade":
		if state.closed {
			return nil, fmt.Errorf("market maker closed")
		}
		deltas := args[0].([]*big.Int)
		limit := args[1].(*big.Int)
		return nil, l.executeTrade(sender, amm, state, deltas, limit)

	case "close":
		state.closed = true
		return nil, nil

	default:
		return nil, fmt.Errorf("mutation %s not supported on market maker", method.Name)
	}
}

// executeTrade settles one basket trade: positive cost pulls collateral from
// the trader via allowance, negative cost pays collateral out, and outcome
// token balances move opposite to the AMM's quantities.
func (l *FakeLedger) executeTrade(trader, amm common.Address, state *ammState, deltas []*big.Int, limit *big.Int) error {
	if len(deltas) != state.outcomeCount {
		return fmt.Errorf("expected %d outcome amounts, got %d", state.outcomeCount, len(deltas))
	}

	cost := state.netCost(deltas)
	if limit.Sign() != 0 && cost.Cmp(limit) > 0 {
		return fmt.Errorf("cost %s exceeds collateral limit %s", cost.String(), limit.String())
	}

	// Selling requires transfer rights on the trader's outcome tokens.
	for _, delta := range deltas {
		if delta.Sign() < 0 && !l.transferApproval[trader][amm] {
			return fmt.Errorf("transfer not approved for market maker")
		}
	}

	if cost.Sign() > 0 {
		err := l.spendAllowance(trader, amm, cost)
		if err != nil {
			return err
		}
	} else if cost.Sign() < 0 {
		l.credit(trader, new(big.Int).Neg(cost))
	}

	collateralAddr := l.contracts.Collateral.Address
	for i, delta := range deltas {
		if delta.Sign() == 0 {
			continue
		}
		collectionID := deriveCollectionID([32]byte{}, state.conditionID, big.NewInt(1<<uint(i)))
		positionID := derivePositionID(collateralAddr, collectionID)
		key := positionID.String()
		if l.positions[key] == nil {
			l.positions[key] = make(map[common.Address]*big.Int)
		}
		balance := l.positions[key][trader]
		if balance == nil {
			balance = new(big.Int)
		}
		updated := new(big.Int).Add(balance, delta)
		if updated.Sign() < 0 {
			return fmt.Errorf("insufficient outcome token balance for position %s", key)
		}
		l.positions[key][trader] = updated

		state.quantities[i] += float64(delta.Int64())
	}

	return nil
}

// --- balances ---

func (l *FakeLedger) balanceOf(account common.Address) *big.Int {
	balance, ok := l.collateral[account]
	if !ok {
		return new(big.Int)
	}
	return balance
}

func (l *FakeLedger) allowanceOf(owner, spender common.Address) *big.Int {
	spenders, ok := l.allowances[owner]
	if !ok {
		return new(big.Int)
	}
	allowance, ok := spenders[spender]
	if !ok {
		return new(big.Int)
	}
	return allowance
}

func (l *FakeLedger) credit(account common.Address, amount *big.Int) {
	l.collateral[account] = new(big.Int).Add(l.balanceOf(account), amount)
}

func (l *FakeLedger) debit(account common.Address, amount *big.Int) error {
	balance := l.balanceOf(account)
	if balance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient collateral balance")
	}
	l.collateral[account] = new(big.Int).Sub(balance, amount)
	return nil
}

func (l *FakeLedger) spendAllowance(owner, spender common.Address, amount *big.Int) error {
	allowance := l.allowanceOf(owner, spender)
	if allowance.Cmp(amount) < 0 {
		return fmt.Errorf("insufficient collateral allowance")
	}
	err := l.debit(owner, amount)
	if err != nil {
		return err
	}
	l.allowances[owner][spender] = new(big.Int).Sub(allowance, amount)
	return nil
}

// --- LMSR math ---

// lmsrCost is b * ln(sum exp(q_i / b)) over minor-unit quantities.
func lmsrCost(quantities []float64, b float64) float64 {
	sum := 0.0
	for _, q := range quantities {
		sum += math.Exp(q / b)
	}
	return b * math.Log(sum)
}

func (s *ammState) netCost(deltas []*big.Int) *big.Int {
	after := make([]float64, len(s.quantities))
	for i := range s.quantities {
		after[i] = s.quantities[i] + float64(deltas[i].Int64())
	}
	cost := lmsrCost(after, s.funding) - lmsrCost(s.quantities, s.funding)
	return big.NewInt(int64(math.Ceil(cost)))
}

func (s *ammState) marginalPrice(index int) float64 {
	sum := 0.0
	for _, q := range s.quantities {
		sum += math.Exp(q / s.funding)
	}
	return math.Exp(s.quantities[index]/s.funding) / sum
}

// --- identity derivation ---

func deriveConditionID(oracle common.Address, questionID [32]byte, count *big.Int) [32]byte {
	return crypto.Keccak256Hash(oracle.Bytes(), questionID[:], common.BigToHash(count).Bytes())
}

func deriveCollectionID(parent [32]byte, conditionID common.Hash, indexSet *big.Int) [32]byte {
	return crypto.Keccak256Hash(parent[:], conditionID.Bytes(), common.BigToHash(indexSet).Bytes())
}

func derivePositionID(collateral common.Address, collectionID [32]byte) *big.Int {
	return new(big.Int).SetBytes(crypto.Keccak256(collateral.Bytes(), collectionID[:]))
}

func decodeCall(contractABI abi.ABI, data []byte) (*abi.Method, []interface{}, error) {
	if len(data) < 4 {
		return nil, nil, fmt.Errorf("calldata too short")
	}
	method, err := contractABI.MethodById(data[:4])
	if err != nil {
		return nil, nil, fmt.Errorf("unknown method: %w", err)
	}
	args, err := method.Inputs.Unpack(data[4:])
	if err != nil {
		return nil, nil, fmt.Errorf("unpack %s inputs: %w", method.Name, err)
	}
	return method, args, nil
}
