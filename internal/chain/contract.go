package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract pairs a deployed address with its parsed interface. All ledger
// calls go through the gateway with a *Contract target.
type Contract struct {
	Name    string
	Address common.Address
	ABI     abi.ABI
}

// NewContract parses the ABI JSON and binds it to an address.
func NewContract(name, address, abiJSON string) (*Contract, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, fmt.Errorf("parse %s ABI: %w", name, err)
	}

	return &Contract{
		Name:    name,
		Address: common.HexToAddress(address),
		ABI:     parsed,
	}, nil
}

// At rebinds the same interface to a different address. Used for AMM
// instances, which share one ABI but live at per-market addresses.
func (c *Contract) At(address common.Address) *Contract {
	return &Contract{
		Name:    c.Name,
		Address: address,
		ABI:     c.ABI,
	}
}

// Conditional-token ledger interface (Gnosis CTF).
const conditionalTokensABI = `[
	{"type":"function","name":"prepareCondition","stateMutability":"nonpayable","inputs":[{"name":"oracle","type":"address"},{"name":"questionId","type":"bytes32"},{"name":"outcomeSlotCount","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"reportPayouts","stateMutability":"nonpayable","inputs":[{"name":"questionId","type":"bytes32"},{"name":"payouts","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"getConditionId","stateMutability":"pure","inputs":[{"name":"oracle","type":"address"},{"name":"questionId","type":"bytes32"},{"name":"outcomeSlotCount","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"getCollectionId","stateMutability":"view","inputs":[{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSet","type":"uint256"}],"outputs":[{"name":"","type":"bytes32"}]},
	{"type":"function","name":"getPositionId","stateMutability":"pure","inputs":[{"name":"collateralToken","type":"address"},{"name":"collectionId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"getOutcomeSlotCount","stateMutability":"view","inputs":[{"name":"conditionId","type":"bytes32"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"id","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"redeemPositions","stateMutability":"nonpayable","inputs":[{"name":"collateralToken","type":"address"},{"name":"parentCollectionId","type":"bytes32"},{"name":"conditionId","type":"bytes32"},{"name":"indexSets","type":"uint256[]"}],"outputs":[]},
	{"type":"function","name":"setApprovalForAll","stateMutability":"nonpayable","inputs":[{"name":"operator","type":"address"},{"name":"approved","type":"bool"}],"outputs":[]},
	{"type":"function","name":"isApprovedForAll","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"operator","type":"address"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"event","name":"ConditionPreparation","inputs":[{"name":"conditionId","type":"bytes32","indexed":true},{"name":"oracle","type":"address","indexed":true},{"name":"questionId","type":"bytes32","indexed":true},{"name":"outcomeSlotCount","type":"uint256","indexed":false}]},
	{"type":"event","name":"ConditionResolution","inputs":[{"name":"conditionId","type":"bytes32","indexed":true},{"name":"oracle","type":"address","indexed":true},{"name":"questionId","type":"bytes32","indexed":true},{"name":"outcomeSlotCount","type":"uint256","indexed":false},{"name":"payoutNumerators","type":"uint256[]","indexed":false}]},
	{"type":"event","name":"PayoutRedemption","inputs":[{"name":"redeemer","type":"address","indexed":true},{"name":"collateralToken","type":"address","indexed":true},{"name":"parentCollectionId","type":"bytes32","indexed":true},{"name":"conditionId","type":"bytes32","indexed":false},{"name":"indexSets","type":"uint256[]","indexed":false},{"name":"payout","type":"uint256","indexed":false}]}
]`

// LMSR market maker instance interface.
const lmsrMarketMakerABI = `[
	{"type":"function","name":"calcNetCost","stateMutability":"view","inputs":[{"name":"outcomeTokenAmounts","type":"int256[]"}],"outputs":[{"name":"netCost","type":"int256"}]},
	{"type":"function","name":"calcMarginalPrice","stateMutability":"view","inputs":[{"name":"outcomeTokenIndex","type":"uint8"}],"outputs":[{"name":"price","type":"uint256"}]},
	{"type":"function","name":"trade","stateMutability":"nonpayable","inputs":[{"name":"outcomeTokenAmounts","type":"int256[]"},{"name":"collateralLimit","type":"int256"}],"outputs":[{"name":"netCost","type":"int256"}]},
	{"type":"function","name":"close","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"funding","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"fee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"event","name":"AMMOutcomeTokenTrade","inputs":[{"name":"transactor","type":"address","indexed":true},{"name":"outcomeTokenAmounts","type":"int256[]","indexed":false},{"name":"outcomeTokenNetCost","type":"int256","indexed":false},{"name":"marketFees","type":"uint256","indexed":false}]},
	{"type":"event","name":"AMMClosing","inputs":[]}
]`

// LMSR market maker factory interface.
const lmsrFactoryABI = `[
	{"type":"function","name":"createLMSRMarketMaker","stateMutability":"nonpayable","inputs":[{"name":"pmSystem","type":"address"},{"name":"collateralToken","type":"address"},{"name":"conditionIds","type":"bytes32[]"},{"name":"fee","type":"uint64"},{"name":"whitelist","type":"address"},{"name":"funding","type":"uint256"}],"outputs":[{"name":"lmsrMarketMaker","type":"address"}]},
	{"type":"event","name":"LMSRMarketMakerCreation","inputs":[{"name":"creator","type":"address","indexed":true},{"name":"lmsrMarketMaker","type":"address","indexed":false},{"name":"pmSystem","type":"address","indexed":false},{"name":"collateralToken","type":"address","indexed":false},{"name":"conditionIds","type":"bytes32[]","indexed":false},{"name":"fee","type":"uint64","indexed":false},{"name":"funding","type":"uint256","indexed":false}]}
]`

// Wrapped-native collateral token interface (WETH9 shape). deposit converts
// native balance into collateral at 1:1, which is the buy-path top-up hook.
const collateralTokenABI = `[
	{"type":"function","name":"deposit","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"withdraw","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[{"name":"guy","type":"address"},{"name":"wad","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"allowance","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"owner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[{"name":"dst","type":"address"},{"name":"wad","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"symbol","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"string"}]},
	{"type":"event","name":"Deposit","inputs":[{"name":"dst","type":"address","indexed":true},{"name":"wad","type":"uint256","indexed":false}]}
]`
