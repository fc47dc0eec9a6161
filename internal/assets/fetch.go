package assets

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/quantumauth-io/quantum-swap-agent/internal/contracts/bindings/go/erc20"
)

const defaultDecimalsCacheSize = 256

// TokenReader reads ERC-20 state. Decimals never change on-chain, so they are
// cached per token address.
type TokenReader struct {
	backend  bind.ContractCaller
	decimals *lru.Cache[common.Address, uint8]
}

func NewTokenReader(backend bind.ContractCaller, cacheSize int) (*TokenReader, error) {
	if backend == nil {
		return nil, fmt.Errorf("assets: token backend is nil")
	}
	if cacheSize <= 0 {
		cacheSize = defaultDecimalsCacheSize
	}
	cache, err := lru.New[common.Address, uint8](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("assets: decimals cache: %w", err)
	}
	return &TokenReader{backend: backend, decimals: cache}, nil
}

func (t *TokenReader) caller(token common.Address) (*erc20.ERC20Caller, error) {
	c, err := erc20.NewERC20Caller(token, t.backend)
	if err != nil {
		return nil, fmt.Errorf("assets: bind erc20: %w", err)
	}
	return c, nil
}

func (t *TokenReader) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	if d, ok := t.decimals.Get(token); ok {
		return d, nil
	}
	c, err := t.caller(token)
	if err != nil {
		return 0, err
	}
	d, err := c.Decimals(&bind.CallOpts{Context: ctx})
	if err != nil {
		return 0, fmt.Errorf("assets: erc20 decimals: %w", err)
	}
	t.decimals.Add(token, d)
	return d, nil
}

func (t *TokenReader) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	c, err := t.caller(token)
	if err != nil {
		return nil, err
	}
	bal, err := c.BalanceOf(&bind.CallOpts{Context: ctx}, owner)
	if err != nil {
		return nil, fmt.Errorf("assets: erc20 balanceOf: %w", err)
	}
	return bal, nil
}

// FetchAsset reads symbol, name and decimals of a deployed token.
func (t *TokenReader) FetchAsset(ctx context.Context, token common.Address) (Asset, error) {
	c, err := t.caller(token)
	if err != nil {
		return Asset{}, err
	}
	call := &bind.CallOpts{Context: ctx}

	sym, err := c.Symbol(call)
	if err != nil {
		return Asset{}, fmt.Errorf("symbol: %w", err)
	}
	dec, err := t.Decimals(ctx, token)
	if err != nil {
		return Asset{}, err
	}
	name := ""
	if n, err := c.Name(call); err == nil {
		name = n
	}

	return Asset{
		Address:  token,
		Symbol:   sym,
		Decimals: dec,
		Name:     name,
	}, nil
}
