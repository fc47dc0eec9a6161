package txsender

import (
	"context"
	"fmt"
	"math/big"
)

type feeQuote struct {
	legacy   bool
	gasPrice *big.Int
	feeCap   *big.Int
	tip      *big.Int
}

// suggestFees prefers EIP-1559: fee history tip over the next base fee, then the
// cached header's base fee with the node's suggested tip, then a legacy gas price.
func (s *Sender) suggestFees(ctx context.Context) (feeQuote, error) {
	history, err := s.node.FeeHistory(ctx, 5, nil, []float64{10})
	if err == nil && history != nil && len(history.BaseFee) > 0 {
		baseNext := history.BaseFee[len(history.BaseFee)-1]

		var priority *big.Int
		if len(history.Reward) > 0 {
			last := history.Reward[len(history.Reward)-1]
			if len(last) > 0 && last[0] != nil && last[0].Sign() > 0 {
				priority = new(big.Int).Set(last[0])
			}
		}
		if priority == nil {
			if tip, tipErr := s.node.SuggestGasTipCap(ctx); tipErr == nil && tip != nil && tip.Sign() >= 0 {
				priority = tip
			}
		}
		if priority != nil && baseNext != nil {
			return dynamicQuote(baseNext, priority), nil
		}
	}

	if header, err := s.node.HeaderByNumber(ctx, nil); err == nil && header != nil && header.BaseFee != nil {
		if tip, tipErr := s.node.SuggestGasTipCap(ctx); tipErr == nil && tip != nil {
			return dynamicQuote(header.BaseFee, tip), nil
		}
	}

	gasPrice, err := s.node.SuggestGasPrice(ctx)
	if err != nil {
		return feeQuote{}, fmt.Errorf("suggest gas price: %w", err)
	}
	if gasPrice == nil || gasPrice.Sign() <= 0 {
		return feeQuote{}, fmt.Errorf("node suggested no usable gas price")
	}
	return feeQuote{legacy: true, gasPrice: new(big.Int).Set(gasPrice)}, nil
}

// dynamicQuote caps fees at 2x base fee plus tip so the tx survives a few full blocks.
func dynamicQuote(baseFee, tip *big.Int) feeQuote {
	feeCap := new(big.Int).Mul(baseFee, big.NewInt(2))
	feeCap.Add(feeCap, tip)
	return feeQuote{feeCap: feeCap, tip: new(big.Int).Set(tip)}
}
