package transaction

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const script = `[
  {"type": "Token", "symbol": "USDC", "decimals": 6},
  {"type": "Fund", "account": "alice", "symbol": "USDC", "amount": "1000000"},
  {"type": "Pool", "tokenA": "USDC", "tokenB": "WETH", "fee": 3000},
  {"type": "Mint", "caller": "alice", "tokenA": "USDC", "tokenB": "WETH", "fee": 3000,
   "amount0": "1000", "amount1": "1000", "tickLower": -600, "tickUpper": 600, "label": "lp"},
  {"type": "Collect", "caller": "bob", "position": "lp", "expect": "not_owner"},
  {"type": "Decrease", "caller": "alice", "position": "lp", "amount": "all"},
  {"type": "SwapExactOutput", "caller": "bob", "path": ["USDC", "WETH"], "fees": [3000],
   "amount": "100", "limit": "1000"},
  {"type": "Advance", "seconds": 3600}
]`

func TestParse(t *testing.T) {
	steps, err := Parse([]byte(script))
	require.NoError(t, err)
	require.Len(t, steps, 8)

	mint := steps[3]
	assert.Equal(t, Mint, mint.Type)
	assert.Equal(t, uint64(1000), mint.Amount0.Uint64())
	require.NotNil(t, mint.TickLower)
	assert.Equal(t, -600, *mint.TickLower)
	assert.Equal(t, "lp", mint.Label)

	assert.Equal(t, "not_owner", steps[4].Expect)
	assert.True(t, steps[5].AllLiquidity)
	assert.Nil(t, steps[5].Amount)
	assert.Equal(t, uint64(1000), steps[6].Limit.Uint64())
	assert.Nil(t, steps[2].SqrtPriceX96)
}

func TestParseRejects(t *testing.T) {
	tests := map[string]string{
		"unknown type":    `[{"type": "Flash"}]`,
		"bad amount":      `[{"type": "Fund", "account": "a", "symbol": "X", "amount": "-5"}]`,
		"one tick":        `[{"type": "Mint", "caller": "a", "tokenA": "X", "tokenB": "Y", "fee": 500, "amount0": "1", "amount1": "1", "tickLower": 0}]`,
		"fee per hop":     `[{"type": "SwapExactInput", "caller": "a", "path": ["X", "Y"], "amount": "1"}]`,
		"still advancing": `[{"type": "Advance"}]`,
		"not json":        `{`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestMarshalKeepsAllLiquidity(t *testing.T) {
	steps, err := Parse([]byte(script))
	require.NoError(t, err)
	data, err := json.Marshal(steps[5])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type": "Decrease", "caller": "alice", "position": "lp", "amount": "all"}`, string(data))
}
