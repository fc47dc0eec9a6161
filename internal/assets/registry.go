package assets

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
)

// Registry is the fixed set of assets the agent trades, keyed by symbol.
type Registry struct {
	bySymbol map[string]Asset
	order    []string
}

func NewRegistry(entries []AssetConfig) (*Registry, error) {
	r := &Registry{bySymbol: make(map[string]Asset, len(entries))}

	natives, stables := 0, 0
	for i, e := range entries {
		symbol := strings.TrimSpace(e.Symbol)
		if symbol == "" {
			return nil, fmt.Errorf("assets[%d]: empty symbol", i)
		}
		key := symbolKey(symbol)
		if _, dup := r.bySymbol[key]; dup {
			return nil, fmt.Errorf("assets[%d]: duplicate symbol %q", i, symbol)
		}

		a := Asset{
			Symbol:  symbol,
			Native:  e.Native,
			Stable:  e.Stable,
			PriceID: strings.TrimSpace(e.PriceID),
		}

		if e.Native {
			natives++
			a.Address = common.HexToAddress(constants.NativeAddr)
			a.Decimals = constants.NativeDecimals
		} else {
			addr, err := normalizeAddress(e.Address)
			if err != nil {
				return nil, fmt.Errorf("assets[%d] %s: %w", i, symbol, err)
			}
			if addr == (common.Address{}) || addr == common.HexToAddress(constants.NativeAddr) {
				return nil, fmt.Errorf("assets[%d] %s: token address %s is reserved", i, symbol, addr.Hex())
			}
			a.Address = addr
		}
		if e.Stable {
			stables++
		}

		r.bySymbol[key] = a
		r.order = append(r.order, key)
	}

	if natives != 1 {
		return nil, fmt.Errorf("registry needs exactly one native asset, got %d", natives)
	}
	if stables == 0 {
		return nil, fmt.Errorf("registry needs at least one stable asset")
	}
	return r, nil
}

// Lookup finds an asset by symbol, case-insensitively.
func (r *Registry) Lookup(symbol string) (Asset, bool) {
	a, ok := r.bySymbol[symbolKey(symbol)]
	return a, ok
}

// All returns every asset in registration order.
func (r *Registry) All() []Asset {
	out := make([]Asset, 0, len(r.order))
	for _, k := range r.order {
		out = append(out, r.bySymbol[k])
	}
	return out
}

// Tokens returns the non-native assets in registration order.
func (r *Registry) Tokens() []Asset {
	out := make([]Asset, 0, len(r.order))
	for _, a := range r.All() {
		if !a.Native {
			out = append(out, a)
		}
	}
	return out
}

func symbolKey(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// normalizeAddress => checksummed canonical form
func normalizeAddress(addr string) (common.Address, error) {
	a := strings.TrimSpace(addr)
	if a == "" {
		return common.Address{}, fmt.Errorf("empty address")
	}
	if !strings.HasPrefix(a, "0x") && !strings.HasPrefix(a, "0X") {
		a = "0x" + a
	}
	a = strings.ToLower(a)
	if !common.IsHexAddress(a) {
		return common.Address{}, fmt.Errorf("invalid address: %q", addr)
	}
	return common.HexToAddress(a), nil
}

type assetFetcher interface {
	FetchAsset(ctx context.Context, token common.Address) (Asset, error)
}

// Verify reads every token's metadata once so a wrong address fails at startup
// rather than mid-trade. A symbol that differs from the contract only warns.
func (r *Registry) Verify(ctx context.Context, fetcher assetFetcher) error {
	for _, a := range r.Tokens() {
		onChain, err := fetcher.FetchAsset(ctx, a.Address)
		if err != nil {
			return fmt.Errorf("verify %s at %s: %w", a.Symbol, a.Address.Hex(), err)
		}
		if !strings.EqualFold(onChain.Symbol, a.Symbol) {
			log.Warn("configured symbol differs from contract",
				"configured", a.Symbol, "contract", onChain.Symbol, "address", a.Address.Hex())
		}
		log.Info("asset verified", "symbol", a.Symbol, "decimals", onChain.Decimals, "name", onChain.Name)
	}
	return nil
}
