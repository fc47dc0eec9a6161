// Package trader runs the end-to-end trade workflow: balances, sizing,
// conversion to base units, the swap itself and the follow-up notification.
package trader

import (
	"context"
	"math"
	"math/big"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/metrics"
	"github.com/quantumauth-io/quantum-swap-agent/internal/notify"
	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/swap"
)

type BalanceReader interface {
	ReadBalances(ctx context.Context, wallet string, chainID uint64) (assets.Snapshot, error)
	ReadRaw(ctx context.Context, owner common.Address) (map[string]assets.Holding, error)
}

type Sizer interface {
	Size(ctx context.Context, priceID string, volatileBalance, stableBalance decimal.Decimal, dir sizing.Direction, riskPct float64) (sizing.TradeSizing, error)
}

type Converter interface {
	ToBaseUnits(ctx context.Context, amount string, token common.Address) (*big.Int, error)
}

type Swapper interface {
	ExecuteSwap(ctx context.Context, req swap.Request) (swap.Outcome, error)
}

type Publisher interface {
	Publish(e notify.Event) bool
}

type Deps struct {
	Registry  *assets.Registry
	Balances  BalanceReader
	Sizer     Sizer
	Converter Converter
	Swapper   Swapper
	// Notifier may be nil.
	Notifier Publisher
}

type Config struct {
	Wallet      common.Address
	ChainID     uint64
	SlippageBps uint32
	// ExplorerTxURL links a tx hash; nil leaves links empty.
	ExplorerTxURL func(hash string) string
}

type Service struct {
	deps Deps
	cfg  Config
}

func NewService(deps Deps, cfg Config) *Service {
	return &Service{deps: deps, cfg: cfg}
}

func (s *Service) Wallet() common.Address { return s.cfg.Wallet }

func (s *Service) Balances(ctx context.Context) (assets.Snapshot, error) {
	return s.deps.Balances.ReadBalances(ctx, s.cfg.Wallet.Hex(), s.cfg.ChainID)
}

// pair is a validated trade: exactly one side is stable.
type pair struct {
	source, target   assets.Asset
	volatile, stable assets.Asset
	dir              sizing.Direction
}

// Trigger sizes and executes one trade. Any failure is a *errs.StageError
// naming the stage that failed; notification never changes the result.
func (s *Service) Trigger(ctx context.Context, req TradeRequest) (TradeResult, error) {
	id := uuid.New()
	res := TradeResult{RequestID: id, Source: req.SourceSymbol, Target: req.TargetSymbol}

	res, err := s.run(ctx, id, req, res)
	if err != nil {
		stage := errs.StageOf(err)
		metrics.SwapsFailed.WithLabelValues(string(stage)).Inc()
		log.Error("trade failed", "requestId", id.String(), "stage", string(stage), "error", err)
		s.publishFailure(id, req, res, err)
		return res, err
	}
	s.publish(notify.Event{
		ID:          id,
		Kind:        notify.KindSwapConfirmed,
		Source:      res.Source,
		Target:      res.Target,
		Amount:      res.Sizing.Amount.String(),
		TxHash:      res.Outcome.TxHash.Hex(),
		ExplorerURL: res.ExplorerURL,
		Balances:    res.Balances,
		At:          time.Now().UTC(),
	})
	return res, nil
}

func (s *Service) run(ctx context.Context, id uuid.UUID, req TradeRequest, res TradeResult) (TradeResult, error) {
	p, err := s.resolvePair(req)
	if err != nil {
		return res, errs.AtStage(errs.StageValidate, errs.ErrValidation, err)
	}
	res.Source, res.Target = p.source.Symbol, p.target.Symbol

	holdings, err := s.deps.Balances.ReadRaw(ctx, s.cfg.Wallet)
	if err != nil {
		return res, errs.AtStage(errs.StageReadBalances, errs.ErrBalanceRead, err)
	}
	spend, ok := holdings[p.source.Symbol]
	if !ok || spend.Err != nil {
		cause := errors.Newf("balance of %s unavailable", p.source.Symbol)
		if ok {
			cause = errors.Wrapf(spend.Err, "balance of %s", p.source.Symbol)
		}
		return res, errs.AtStage(errs.StageReadBalances, errs.ErrBalanceRead, cause)
	}

	volatileBal := balanceOrZero(holdings, p.volatile.Symbol)
	stableBal := balanceOrZero(holdings, p.stable.Symbol)
	sized, err := s.deps.Sizer.Size(ctx, p.volatile.PriceID, volatileBal, stableBal, p.dir, req.RiskPct)
	if err != nil {
		return res, errs.AtStage(errs.StageSize, kindOf(err, errs.ErrValidation, errs.ErrPriceDataUnavailable), err)
	}
	res.Sizing = sized
	if !sized.Amount.IsPositive() {
		return res, errs.AtStage(errs.StageSize, errs.ErrValidation, errs.Validation("amount rounds to zero"))
	}

	base, err := s.deps.Converter.ToBaseUnits(ctx, sized.Amount.String(), p.source.Address)
	if err != nil {
		return res, errs.AtStage(errs.StageConvert, kindOf(err, errs.ErrValidation, errs.ErrDecimalQuery), err)
	}
	if base.Sign() <= 0 {
		return res, errs.AtStage(errs.StageConvert, errs.ErrValidation, errs.Validation("amount rounds to zero"))
	}
	res.AmountBaseUnits = base.String()

	log.Info("executing trade",
		"requestId", id.String(),
		"source", p.source.Symbol,
		"target", p.target.Symbol,
		"direction", string(p.dir),
		"amount", sized.Amount.String(),
		"baseUnits", base.String(),
	)

	out, err := s.deps.Swapper.ExecuteSwap(ctx, swap.Request{
		ID:              id,
		From:            p.source,
		To:              p.target,
		AmountBaseUnits: base,
		Wallet:          s.cfg.Wallet,
		SlippageBps:     s.cfg.SlippageBps,
		ChainID:         s.cfg.ChainID,
	})
	res.Outcome = out
	if out.TxHash != (common.Hash{}) {
		res.ExplorerURL = s.explorerURL(out.TxHash.Hex())
	}
	if err != nil {
		return res, err
	}

	snap, err := s.deps.Balances.ReadBalances(ctx, s.cfg.Wallet.Hex(), s.cfg.ChainID)
	if err != nil {
		log.Warn("post-trade balance read failed", "requestId", id.String(), "error", err)
	} else {
		res.Balances = snap.Balances
	}
	return res, nil
}

func (s *Service) resolvePair(req TradeRequest) (pair, error) {
	if math.IsNaN(req.RiskPct) || req.RiskPct <= 0 || req.RiskPct > 1 {
		return pair{}, errs.Validation("riskPct %v outside (0, 1]", req.RiskPct)
	}
	src, ok := s.deps.Registry.Lookup(req.SourceSymbol)
	if !ok {
		return pair{}, errs.Validation("unknown source asset %q", req.SourceSymbol)
	}
	dst, ok := s.deps.Registry.Lookup(req.TargetSymbol)
	if !ok {
		return pair{}, errs.Validation("unknown target asset %q", req.TargetSymbol)
	}
	if strings.EqualFold(src.Symbol, dst.Symbol) {
		return pair{}, errs.Validation("source and target are both %s", src.Symbol)
	}

	p := pair{source: src, target: dst}
	switch {
	case src.Stable == dst.Stable:
		return pair{}, errs.Validation("a trade needs exactly one stable asset, got %s and %s", src.Symbol, dst.Symbol)
	case src.Stable:
		p.volatile, p.stable, p.dir = dst, src, sizing.TargetToSource
	default:
		p.volatile, p.stable, p.dir = src, dst, sizing.SourceToTarget
	}
	if p.volatile.PriceID == "" {
		return pair{}, errs.Validation("asset %s has no price id", p.volatile.Symbol)
	}
	return p, nil
}

func (s *Service) explorerURL(hash string) string {
	if s.cfg.ExplorerTxURL == nil {
		return ""
	}
	return s.cfg.ExplorerTxURL(hash)
}

func (s *Service) publishFailure(id uuid.UUID, req TradeRequest, res TradeResult, err error) {
	e := notify.Event{
		ID:     id,
		Kind:   notify.KindSwapFailed,
		Source: req.SourceSymbol,
		Target: req.TargetSymbol,
		Stage:  string(errs.StageOf(err)),
		Error:  err.Error(),
		At:     time.Now().UTC(),
	}
	var se *errs.StageError
	if errors.As(err, &se) && se.TxHash != "" {
		e.TxHash = se.TxHash
		e.ExplorerURL = s.explorerURL(se.TxHash)
	}
	if !res.Sizing.Amount.IsZero() {
		e.Amount = res.Sizing.Amount.String()
	}
	s.publish(e)
}

func (s *Service) publish(e notify.Event) {
	if s.deps.Notifier == nil {
		return
	}
	s.deps.Notifier.Publish(e)
}

func balanceOrZero(h map[string]assets.Holding, symbol string) decimal.Decimal {
	v, ok := h[symbol]
	if !ok || v.Err != nil || v.Amount == nil {
		return decimal.Zero
	}
	return v.Decimal()
}

// kindOf returns the first sentinel err matches, or nil.
func kindOf(err error, kinds ...error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}
