package chain

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
)

var transferTopic = ethcrypto.Keccak256Hash([]byte("Transfer(address,address,uint256)"))

func marketCreatedLog(id int64) *types.Log {
	return &types.Log{
		Topics: []common.Hash{
			winzzersABI.Events["MarketCreated"].ID,
			common.BigToHash(big.NewInt(id)),
			common.BytesToHash(common.HexToAddress("0x00000000000000000000000000000000000000aa").Bytes()),
		},
		Data: common.LeftPadBytes(big.NewInt(2).Bytes(), 32),
	}
}

func TestMarketCreatedSignature(t *testing.T) {
	want := ethcrypto.Keccak256Hash([]byte("MarketCreated(uint256,address,uint256)"))
	if got := winzzersABI.Events["MarketCreated"].ID; got != want {
		t.Errorf("event id = %s, want %s", got.Hex(), want.Hex())
	}
}

func TestDecodeMarketCreated(t *testing.T) {
	transfer := &types.Log{Topics: []common.Hash{transferTopic, {}, {}}}

	tests := []struct {
		name   string
		logs   []*types.Log
		wantID uint64
		wantOK bool
	}{
		{"single event", []*types.Log{marketCreatedLog(12)}, 12, true},
		{"after token transfer", []*types.Log{transfer, marketCreatedLog(3)}, 3, true},
		{"first of many", []*types.Log{marketCreatedLog(5), marketCreatedLog(6)}, 5, true},
		{"no logs", nil, 0, false},
		{"unrelated only", []*types.Log{transfer}, 0, false},
		{"truncated topics", []*types.Log{{Topics: marketCreatedLog(9).Topics[:2]}}, 0, false},
		{"nil entry", []*types.Log{nil, marketCreatedLog(4)}, 4, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := DecodeMarketCreated(tt.logs)
			if id != tt.wantID || ok != tt.wantOK {
				t.Errorf("got (%d, %v), want (%d, %v)", id, ok, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestDecodeMarketCreatedOverflow(t *testing.T) {
	huge := new(big.Int).Lsh(big.NewInt(1), 70)
	lg := marketCreatedLog(0)
	lg.Topics[1] = common.BigToHash(huge)
	if _, ok := DecodeMarketCreated([]*types.Log{lg}); ok {
		t.Error("id above uint64 must not decode")
	}
}

func TestDecodeBetPlaced(t *testing.T) {
	bettor := common.HexToAddress("0x00000000000000000000000000000000000000bb")
	lg := &types.Log{
		Topics: []common.Hash{
			winzzersABI.Events["BetPlaced"].ID,
			common.BigToHash(big.NewInt(77)),
			common.BigToHash(big.NewInt(3)),
			common.BytesToHash(bettor.Bytes()),
		},
	}
	id, ok := DecodeBetPlaced([]*types.Log{marketCreatedLog(1), lg})
	if !ok || id != 77 {
		t.Errorf("got (%d, %v), want (77, true)", id, ok)
	}
}
