package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCustodyMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCustody(reg, "uniswap")

	m.ObserveOperation("mint", "ok", 20*time.Millisecond)
	m.ObserveOperation("mint", "ok", 30*time.Millisecond)
	m.ObserveOperation("collect", "not_owner", time.Millisecond)
	m.ObserveRefund("mint")
	m.ObserveMint()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("mint", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("collect", "not_owner")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Refunds.WithLabelValues("mint")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PositionsMinted))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Duration))

	expected := `
# HELP uniswap_custody_positions_minted_total Positions minted through custody
# TYPE uniswap_custody_positions_minted_total counter
uniswap_custody_positions_minted_total 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "uniswap_custody_positions_minted_total"))
}

func TestNilRegisterer(t *testing.T) {
	m := NewCustody(nil, "")
	m.ObserveMint()
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PositionsMinted))
}
