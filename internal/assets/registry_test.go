package assets

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
)

const (
	usdcAddr = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
	daiAddr  = "0x6B175474E89094C44Da98b954EedeAC495271d0F"
)

func testRegistry(t *testing.T) *Registry {
	t.Helper()
	r, err := NewRegistry([]AssetConfig{
		{Symbol: "ETH", Native: true, PriceID: "ethereum"},
		{Symbol: "USDC", Address: usdcAddr, Stable: true},
		{Symbol: "DAI", Address: daiAddr, Stable: true},
	})
	require.NoError(t, err)
	return r
}

func TestRegistryLookup(t *testing.T) {
	r := testRegistry(t)

	eth, ok := r.Lookup("eth")
	require.True(t, ok)
	assert.True(t, eth.Native)
	assert.Equal(t, common.HexToAddress(constants.NativeAddr), eth.Address)
	assert.Equal(t, uint8(constants.NativeDecimals), eth.Decimals)

	usdc, ok := r.Lookup(" Usdc ")
	require.True(t, ok)
	assert.Equal(t, "USDC", usdc.Symbol)
	assert.Equal(t, common.HexToAddress(usdcAddr), usdc.Address)

	_, ok = r.Lookup("WBTC")
	assert.False(t, ok)

	assert.Len(t, r.Tokens(), 2)
	assert.Equal(t, []string{"ETH", "USDC", "DAI"}, symbols(r.All()))
}

func TestRegistryRejectsBadConfig(t *testing.T) {
	tests := []struct {
		name    string
		entries []AssetConfig
		errHas  string
	}{
		{
			name:    "no native",
			entries: []AssetConfig{{Symbol: "USDC", Address: usdcAddr, Stable: true}},
			errHas:  "native",
		},
		{
			name: "two natives",
			entries: []AssetConfig{
				{Symbol: "ETH", Native: true},
				{Symbol: "ETH2", Native: true},
				{Symbol: "USDC", Address: usdcAddr, Stable: true},
			},
			errHas: "native",
		},
		{
			name:    "no stable",
			entries: []AssetConfig{{Symbol: "ETH", Native: true}},
			errHas:  "stable",
		},
		{
			name: "duplicate symbol",
			entries: []AssetConfig{
				{Symbol: "ETH", Native: true},
				{Symbol: "usdc", Address: usdcAddr, Stable: true},
				{Symbol: "USDC", Address: daiAddr, Stable: true},
			},
			errHas: "duplicate",
		},
		{
			name: "bad address",
			entries: []AssetConfig{
				{Symbol: "ETH", Native: true},
				{Symbol: "USDC", Address: "0x1234", Stable: true},
			},
			errHas: "invalid address",
		},
		{
			name: "sentinel as token",
			entries: []AssetConfig{
				{Symbol: "ETH", Native: true},
				{Symbol: "USDC", Address: constants.NativeAddr, Stable: true},
			},
			errHas: "reserved",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.entries)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errHas)
		})
	}
}

func symbols(in []Asset) []string {
	out := make([]string, 0, len(in))
	for _, a := range in {
		out = append(out, a.Symbol)
	}
	return out
}
