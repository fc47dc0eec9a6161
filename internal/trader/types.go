package trader

import (
	"github.com/google/uuid"

	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/swap"
)

type TradeRequest struct {
	SourceSymbol string  `json:"sourceSymbol"`
	TargetSymbol string  `json:"targetSymbol"`
	RiskPct      float64 `json:"riskPct"`
}

type TradeResult struct {
	RequestID       uuid.UUID          `json:"requestId"`
	Source          string             `json:"source"`
	Target          string             `json:"target"`
	Sizing          sizing.TradeSizing `json:"sizing"`
	AmountBaseUnits string             `json:"amountBaseUnits"`
	Outcome         swap.Outcome       `json:"outcome"`
	ExplorerURL     string             `json:"explorerUrl,omitempty"`
	// Balances is the snapshot after the swap; nil when the re-read failed.
	Balances map[string]string `json:"balances,omitempty"`
}
