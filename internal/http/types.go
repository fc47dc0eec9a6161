package http

import (
	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/trader"
)

type corsPolicy struct {
	allowedOrigins map[string]struct{}
	allowMethods   string

	allowHeaders string
	maxAge       int
}

// swapRequest mirrors trader.TradeRequest on the wire.
type swapRequest = trader.TradeRequest

type swapResponse struct {
	OK              bool                `json:"ok"`
	RequestID       string              `json:"requestId,omitempty"`
	Stage           string              `json:"stage,omitempty"`
	Error           string              `json:"error,omitempty"`
	TxHash          string              `json:"txHash,omitempty"`
	ApprovalTxHash  string              `json:"approvalTxHash,omitempty"`
	ExplorerURL     string              `json:"explorerUrl,omitempty"`
	AmountBaseUnits string              `json:"amountBaseUnits,omitempty"`
	Sizing          *sizing.TradeSizing `json:"sizing,omitempty"`
	Balances        map[string]string   `json:"balances,omitempty"`
}

type errorResponse struct {
	OK    bool   `json:"ok"`
	Stage string `json:"stage,omitempty"`
	Error string `json:"error"`
}

type healthResponse struct {
	Status  string `json:"status"`
	Network string `json:"network,omitempty"`
	ChainID uint64 `json:"chainId,omitempty"`
	Wallet  string `json:"wallet,omitempty"`
}
