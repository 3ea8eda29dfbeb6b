package chain

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// winzzersABIJSON is the subset of the betting contract ABI used here.
const winzzersABIJSON = `[
  {"type":"function","name":"marketCounter","stateMutability":"view","inputs":[],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"getMarketSummary","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[
     {"name":"creator","type":"address"},
     {"name":"state","type":"uint8"},
     {"name":"creatorFee","type":"uint16"},
     {"name":"virtualLiquidity","type":"uint256"},
     {"name":"outcomeCount","type":"uint8"},
     {"name":"outcomeNames","type":"string[]"},
     {"name":"totalStaked","type":"uint256"},
     {"name":"winningOutcome","type":"uint8"},
     {"name":"distributable","type":"uint256"}]},
  {"type":"function","name":"getMarketOdds","stateMutability":"view",
   "inputs":[{"name":"marketId","type":"uint256"}],
   "outputs":[{"name":"odds","type":"uint256[]"},{"name":"names","type":"string[]"}]},
  {"type":"function","name":"createMarket","stateMutability":"nonpayable",
   "inputs":[
     {"name":"outcomeNames","type":"string[]"},
     {"name":"virtualLiquidityPerOutcome","type":"uint256"},
     {"name":"creatorFeeBps","type":"uint16"}],
   "outputs":[{"name":"marketId","type":"uint256"}]},
  {"type":"function","name":"placeBet","stateMutability":"nonpayable",
   "inputs":[
     {"name":"marketId","type":"uint256"},
     {"name":"outcomeId","type":"uint8"},
     {"name":"amount","type":"uint256"},
     {"name":"minOdds","type":"uint256"}],
   "outputs":[{"name":"ticketId","type":"uint256"}]},
  {"type":"function","name":"claim","stateMutability":"nonpayable",
   "inputs":[{"name":"ticketId","type":"uint256"}],"outputs":[]},
  {"type":"event","name":"MarketCreated","anonymous":false,"inputs":[
     {"name":"marketId","type":"uint256","indexed":true},
     {"name":"creator","type":"address","indexed":true},
     {"name":"outcomeCount","type":"uint256","indexed":false}]},
  {"type":"event","name":"BetPlaced","anonymous":false,"inputs":[
     {"name":"ticketId","type":"uint256","indexed":true},
     {"name":"marketId","type":"uint256","indexed":true},
     {"name":"bettor","type":"address","indexed":true},
     {"name":"outcomeId","type":"uint8","indexed":false},
     {"name":"amount","type":"uint256","indexed":false},
     {"name":"odds","type":"uint256","indexed":false}]}
]`

// erc20ABIJSON covers the collateral token calls.
const erc20ABIJSON = `[
  {"type":"function","name":"balanceOf","stateMutability":"view",
   "inputs":[{"name":"account","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"allowance","stateMutability":"view",
   "inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],
   "outputs":[{"name":"","type":"uint256"}]},
  {"type":"function","name":"approve","stateMutability":"nonpayable",
   "inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],
   "outputs":[{"name":"","type":"bool"}]}
]`

var (
	winzzersABI = mustParseABI(winzzersABIJSON)
	erc20ABI    = mustParseABI(erc20ABIJSON)
)

func mustParseABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(fmt.Sprintf("chain: parse abi: %v", err))
	}
	return parsed
}
