package uniswapv2

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// DefaultFeeRate is the swap fee of every V2 pair (0.30%).
const DefaultFeeRate = "0.003"

// PairABI is the subset of IUniswapV2Pair read by the provider.
const PairABI = `[
	{
		"constant": true,
		"inputs": [],
		"name": "getReserves",
		"outputs": [
			{"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
			{"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
			{"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"constant": true,
		"inputs": [],
		"name": "token0",
		"outputs": [{"internalType": "address", "name": "", "type": "address"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// Reserves is the decoded output of getReserves.
type Reserves struct {
	Reserve0           *big.Int
	Reserve1           *big.Int
	BlockTimestampLast uint32
}

func decodeReserves(pairABI abi.ABI, data []byte) (*Reserves, error) {
	out, err := pairABI.Unpack("getReserves", data)
	if err != nil {
		return nil, fmt.Errorf("decode getReserves: %w", err)
	}
	if len(out) != 3 {
		return nil, fmt.Errorf("getReserves: unexpected output length %d", len(out))
	}

	r0, ok0 := out[0].(*big.Int)
	r1, ok1 := out[1].(*big.Int)
	ts, ok2 := out[2].(uint32)
	if !ok0 || !ok1 || !ok2 {
		return nil, fmt.Errorf("getReserves: unexpected output types %T %T %T", out[0], out[1], out[2])
	}
	return &Reserves{Reserve0: r0, Reserve1: r1, BlockTimestampLast: ts}, nil
}

func decodeToken0(pairABI abi.ABI, data []byte) (common.Address, error) {
	out, err := pairABI.Unpack("token0", data)
	if err != nil {
		return common.Address{}, fmt.Errorf("decode token0: %w", err)
	}
	if len(out) != 1 {
		return common.Address{}, fmt.Errorf("token0: unexpected output length %d", len(out))
	}
	addr, ok := out[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("token0: unexpected output type %T", out[0])
	}
	return addr, nil
}
