package assets

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-swap-agent/internal/units"
)

// AssetConfig is one registry entry as it appears in config.yaml.
type AssetConfig struct {
	Symbol  string `json:"symbol" yaml:"symbol" mapstructure:"symbol"`
	Address string `json:"address" yaml:"address" mapstructure:"address"`
	Native  bool   `json:"native" yaml:"native" mapstructure:"native"`
	Stable  bool   `json:"stable" yaml:"stable" mapstructure:"stable"`
	PriceID string `json:"priceId" yaml:"priceId" mapstructure:"priceId"`
}

type Asset struct {
	Symbol  string         `json:"symbol"`
	Address common.Address `json:"address"`
	// Decimals is fixed for the native coin; token decimals are read from the contract.
	Decimals uint8  `json:"decimals,omitempty"`
	Name     string `json:"name,omitempty"`
	Native   bool   `json:"native"`
	Stable   bool   `json:"stable"`
	PriceID  string `json:"priceId,omitempty"`
}

// Snapshot is the formatted balance view for one wallet. A balance that could
// not be read holds constants.BalanceErrorMarker.
type Snapshot struct {
	Wallet   common.Address    `json:"wallet"`
	ChainID  uint64            `json:"chainId"`
	Balances map[string]string `json:"balances"`
}

// Holding is a raw balance with the decimals needed to interpret it.
type Holding struct {
	Asset    Asset
	Amount   *big.Int
	Decimals uint8
	Err      error
}

func (h Holding) Decimal() decimal.Decimal {
	return units.FromBaseUnits(h.Amount, h.Decimals)
}
