package swap

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"

	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
)

// Request is one swap of AmountBaseUnits of From into To.
type Request struct {
	ID              uuid.UUID
	From            assets.Asset
	To              assets.Asset
	AmountBaseUnits *big.Int
	Wallet          common.Address
	// SlippageBps zero falls back to the orchestrator default.
	SlippageBps uint32
	ChainID     uint64
}

// AllowanceState is fetched fresh for every swap.
type AllowanceState struct {
	Token   common.Address
	Owner   common.Address
	Current *big.Int
}

func (a AllowanceState) Covers(amount *big.Int) bool {
	return a.Current != nil && a.Current.Cmp(amount) >= 0
}

type Outcome struct {
	RequestID    uuid.UUID   `json:"requestId"`
	ApprovalHash common.Hash `json:"approvalHash,omitempty"`
	TxHash       common.Hash `json:"txHash"`
	DstAmount    *big.Int    `json:"dstAmount,omitempty"`
	Confirmed    bool        `json:"confirmed"`
}

func (o Outcome) Approved() bool { return o.ApprovalHash != (common.Hash{}) }

type Config struct {
	// ExactApproval scopes approvals to the swap amount instead of an unbounded allowance.
	ExactApproval bool   `mapstructure:"exactApproval"`
	SlippageBps   uint32 `mapstructure:"slippageBps"`
}

const (
	DefaultSlippageBps = 100
	maxSlippageBps     = 5000
)

func DefaultConfig() Config {
	return Config{ExactApproval: true, SlippageBps: DefaultSlippageBps}
}
