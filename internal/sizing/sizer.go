// Package sizing turns a risk budget into a trade amount, scaled down when the
// volatile asset has been moving more than the target volatility.
package sizing

import (
	"context"
	"math"

	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/metrics"
	"github.com/quantumauth-io/quantum-swap-agent/internal/pricefeed"
)

// AmountPlaces is the number of fractional digits kept in a sized amount.
const AmountPlaces = 6

type Direction string

const (
	// SourceToTarget sells the volatile asset for the stable one.
	SourceToTarget Direction = "SOURCE_TO_TARGET"
	// TargetToSource buys the volatile asset with the stable one.
	TargetToSource Direction = "TARGET_TO_SOURCE"
)

func (d Direction) Valid() bool {
	return d == SourceToTarget || d == TargetToSource
}

type Config struct {
	TargetVolatility float64 `mapstructure:"targetVolatility"`
	VolatilityFloor  float64 `mapstructure:"volatilityFloor"`
	LookbackDays     int     `mapstructure:"lookbackDays"`
}

func DefaultConfig() Config {
	return Config{
		TargetVolatility: 0.02,
		VolatilityFloor:  0.001,
		LookbackDays:     365,
	}
}

type TradeSizing struct {
	Direction            Direction       `json:"direction"`
	RiskPct              float64         `json:"riskPct"`
	CurrentPrice         decimal.Decimal `json:"currentPrice"`
	ObservedVolatility   float64         `json:"observedVolatility"`
	VolatilityAdjustment decimal.Decimal `json:"volatilityAdjustment"`
	Amount               decimal.Decimal `json:"amount"`
}

type Sizer struct {
	feed pricefeed.Source
	cfg  Config
}

func NewSizer(feed pricefeed.Source, cfg Config) *Sizer {
	def := DefaultConfig()
	if cfg.TargetVolatility <= 0 {
		cfg.TargetVolatility = def.TargetVolatility
	}
	if cfg.VolatilityFloor <= 0 {
		cfg.VolatilityFloor = def.VolatilityFloor
	}
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = def.LookbackDays
	}
	return &Sizer{feed: feed, cfg: cfg}
}

// Size prices the volatile asset identified by priceID and sizes the trade
// from whichever balance is being spent.
func (s *Sizer) Size(
	ctx context.Context,
	priceID string,
	volatileBalance, stableBalance decimal.Decimal,
	dir Direction,
	riskPct float64,
) (TradeSizing, error) {
	if !dir.Valid() {
		return TradeSizing{}, errs.Validation("unknown direction %q", dir)
	}
	if math.IsNaN(riskPct) || riskPct <= 0 || riskPct > 1 {
		return TradeSizing{}, errs.Validation("riskPct %v outside (0, 1]", riskPct)
	}

	price, err := s.feed.LatestPrice(ctx, priceID)
	if err != nil {
		return TradeSizing{}, err
	}
	series, err := s.feed.DailySeries(ctx, priceID, s.cfg.LookbackDays)
	if err != nil {
		return TradeSizing{}, err
	}
	if len(series) < 2 {
		return TradeSizing{}, errs.ErrPriceDataUnavailable
	}

	prices := make([]float64, len(series))
	for i, p := range series {
		prices[i] = p.Price
	}
	observed := math.Max(StdDev(LogReturns(prices)), s.cfg.VolatilityFloor)
	metrics.ObservedVolatility.WithLabelValues(priceID).Set(observed)

	balance := volatileBalance
	if dir == TargetToSource {
		balance = stableBalance
	}

	adj := VolAdjustment(s.cfg.TargetVolatility, observed)
	out := TradeSizing{
		Direction:            dir,
		RiskPct:              riskPct,
		CurrentPrice:         decimal.NewFromFloat(price),
		ObservedVolatility:   observed,
		VolatilityAdjustment: adj,
		Amount:               SizeAmount(balance, riskPct, adj),
	}

	log.Info("trade sized",
		"priceId", priceID,
		"direction", dir,
		"price", out.CurrentPrice.String(),
		"volatility", observed,
		"adjustment", adj.String(),
		"amount", out.Amount.String(),
	)
	return out, nil
}

// VolAdjustment is min(1, target/observed). observed must already be floored.
func VolAdjustment(target, observed float64) decimal.Decimal {
	if observed <= 0 {
		return decimal.NewFromInt(1)
	}
	adj := decimal.NewFromFloat(target).Div(decimal.NewFromFloat(observed))
	if adj.GreaterThan(decimal.NewFromInt(1)) {
		return decimal.NewFromInt(1)
	}
	return adj
}

// SizeAmount is balance x riskPct x adjustment, truncated so it never exceeds
// riskPct x balance.
func SizeAmount(balance decimal.Decimal, riskPct float64, adjustment decimal.Decimal) decimal.Decimal {
	if balance.IsNegative() {
		return decimal.Zero
	}
	return balance.Mul(decimal.NewFromFloat(riskPct)).Mul(adjustment).Truncate(AmountPlaces)
}
