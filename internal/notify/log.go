package notify

import (
	"context"

	"github.com/quantumauth-io/quantum-go-utils/log"
)

// LogSink writes events to the process log.
type LogSink struct{}

func (LogSink) Name() string { return "log" }

func (LogSink) Deliver(_ context.Context, e Event) error {
	kv := []any{"id", e.ID.String(), "kind", string(e.Kind), "source", e.Source, "target", e.Target}
	if e.TxHash != "" {
		kv = append(kv, "tx", e.TxHash, "explorer", e.ExplorerURL)
	}
	if e.Kind == KindSwapFailed {
		log.Warn("trade notification", append(kv, "stage", e.Stage, "error", e.Error)...)
		return nil
	}
	log.Info("trade notification", append(kv, "amount", e.Amount, "balances", e.Balances)...)
	return nil
}
