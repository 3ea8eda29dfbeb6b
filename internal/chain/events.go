package chain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/core/types"
)

// DecodeMarketCreated returns the id carried by the first MarketCreated event
// in logs. ok is false when no such event is present.
func DecodeMarketCreated(logs []*types.Log) (id uint64, ok bool) {
	return firstIndexedUint(logs, "MarketCreated", "marketId")
}

// DecodeBetPlaced returns the ticket id carried by the first BetPlaced event
// in logs.
func DecodeBetPlaced(logs []*types.Log) (ticketID uint64, ok bool) {
	return firstIndexedUint(logs, "BetPlaced", "ticketId")
}

func firstIndexedUint(logs []*types.Log, event, field string) (uint64, bool) {
	ev, found := winzzersABI.Events[event]
	if !found {
		return 0, false
	}

	var indexed abi.Arguments
	for _, in := range ev.Inputs {
		if in.Indexed {
			indexed = append(indexed, in)
		}
	}

	for _, lg := range logs {
		if lg == nil || len(lg.Topics) != len(indexed)+1 || lg.Topics[0] != ev.ID {
			continue
		}
		fields := make(map[string]any, len(indexed))
		if err := abi.ParseTopicsIntoMap(fields, indexed, lg.Topics[1:]); err != nil {
			continue
		}
		n, ok := fields[field].(*big.Int)
		if !ok || !n.IsUint64() {
			continue
		}
		return n.Uint64(), true
	}
	return 0, false
}
