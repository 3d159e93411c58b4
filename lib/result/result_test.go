package result

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
)

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		v        *uint256.Int
		decimals uint8
		want     string
	}{
		{uint256.NewInt(1_500_000), 6, "1.5"},
		{uint256.NewInt(1), 18, "0.000000000000000001"},
		{uint256.NewInt(42), 0, "42"},
		{nil, 6, "0"},
		{uint256.MustFromDecimal("123456789000000000000000000"), 18, "123456789"},
	}
	for _, test := range tests {
		assert.Equal(t, test.want, FormatAmount(test.v, test.decimals))
	}
	assert.Equal(t, "", Raw(nil))
	assert.Equal(t, "7", Raw(uint256.NewInt(7)))
}

func TestStepMatched(t *testing.T) {
	assert.True(t, Step{Outcome: "ok", Expected: "ok"}.Matched())
	assert.False(t, Step{Outcome: "not_owner", Expected: "ok"}.Matched())
}
