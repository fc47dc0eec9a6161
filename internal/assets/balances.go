package assets

import (
	"context"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"golang.org/x/sync/errgroup"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/metrics"
	"github.com/quantumauth-io/quantum-swap-agent/internal/units"
)

const defaultReadConcurrency = 4

// Reader builds balance snapshots for every registered asset.
type Reader struct {
	registry    *Registry
	native      NativeBalancer
	tokens      TokenBalancer
	chainID     uint64
	concurrency int
}

func NewReader(registry *Registry, native NativeBalancer, tokens TokenBalancer, chainID uint64, concurrency int) *Reader {
	if concurrency <= 0 {
		concurrency = defaultReadConcurrency
	}
	return &Reader{
		registry:    registry,
		native:      native,
		tokens:      tokens,
		chainID:     chainID,
		concurrency: concurrency,
	}
}

// ReadBalances returns one formatted entry per registered asset.
func (r *Reader) ReadBalances(ctx context.Context, wallet string, chainID uint64) (Snapshot, error) {
	w := strings.TrimSpace(wallet)
	if !common.IsHexAddress(w) {
		return Snapshot{}, errs.Validation("invalid wallet address %q", wallet)
	}
	if chainID != r.chainID {
		return Snapshot{}, errs.Validation("chain id %d does not match configured chain %d", chainID, r.chainID)
	}
	owner := common.HexToAddress(w)

	raw, err := r.ReadRaw(ctx, owner)
	if err != nil {
		return Snapshot{}, err
	}

	out := Snapshot{
		Wallet:   owner,
		ChainID:  chainID,
		Balances: make(map[string]string, len(raw)),
	}
	for symbol, h := range raw {
		if h.Err != nil {
			out.Balances[symbol] = constants.BalanceErrorMarker
			continue
		}
		out.Balances[symbol] = units.FormatUnitsTrim(h.Amount, h.Decimals, constants.DisplayFractionDigits)
	}
	return out, nil
}

// ReadRaw returns exact balances keyed by symbol. A per-asset failure is kept in
// Holding.Err; only an unreachable node or a cancelled context fails the call.
func (r *Reader) ReadRaw(ctx context.Context, owner common.Address) (map[string]Holding, error) {
	all := r.registry.All()
	holdings := make([]Holding, len(all))

	nativeIdx := -1
	for i, a := range all {
		if a.Native {
			nativeIdx = i
		}
	}

	// native first: a failure here means the node is unreachable
	if nativeIdx >= 0 {
		a := all[nativeIdx]
		bal, err := r.balanceOf(ctx, a, owner)
		if err != nil {
			if isTransportError(err) {
				return nil, errs.Wrap(errs.ErrBalanceRead, err, "native balance of %s", owner.Hex())
			}
			log.Warn("native balance read failed", "wallet", owner.Hex(), "error", err)
			metrics.BalanceReadErrors.WithLabelValues(a.Symbol).Inc()
		}
		holdings[nativeIdx] = Holding{Asset: a, Amount: bal, Decimals: a.Decimals, Err: err}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, a := range all {
		if a.Native {
			continue
		}
		g.Go(func() error {
			holdings[i] = r.readToken(gctx, a, owner)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(errs.ErrBalanceRead, err, "balances of %s", owner.Hex())
	}

	out := make(map[string]Holding, len(holdings))
	for _, h := range holdings {
		out[h.Asset.Symbol] = h
	}
	return out, nil
}

// readToken fetches balance and decimals concurrently. Either failing marks the asset.
func (r *Reader) readToken(ctx context.Context, a Asset, owner common.Address) Holding {
	h := Holding{Asset: a}

	var (
		g      errgroup.Group
		bal    *big.Int
		dec    uint8
		balErr error
		decErr error
	)
	g.Go(func() error {
		bal, balErr = r.balanceOf(ctx, a, owner)
		return nil
	})
	g.Go(func() error {
		dec, decErr = r.tokens.Decimals(ctx, a.Address)
		return nil
	})
	_ = g.Wait()

	switch {
	case balErr != nil:
		h.Err = balErr
	case decErr != nil:
		h.Err = decErr
	default:
		h.Amount = bal
		h.Decimals = dec
		return h
	}

	log.Warn("token balance read failed", "symbol", a.Symbol, "token", a.Address.Hex(), "wallet", owner.Hex(), "error", h.Err)
	metrics.BalanceReadErrors.WithLabelValues(a.Symbol).Inc()
	return h
}
