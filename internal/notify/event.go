// Package notify delivers trade outcomes to external channels without ever
// holding up the trade itself.
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindSwapConfirmed Kind = "swap_confirmed"
	KindSwapFailed    Kind = "swap_failed"
)

type Event struct {
	ID          uuid.UUID         `json:"id"`
	Kind        Kind              `json:"kind"`
	Source      string            `json:"source"`
	Target      string            `json:"target"`
	Amount      string            `json:"amount,omitempty"`
	Stage       string            `json:"stage,omitempty"`
	TxHash      string            `json:"txHash,omitempty"`
	ExplorerURL string            `json:"explorerUrl,omitempty"`
	Balances    map[string]string `json:"balances,omitempty"`
	Error       string            `json:"error,omitempty"`
	At          time.Time         `json:"at"`
}

// Sink is one delivery channel. Deliver must honour ctx.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}
