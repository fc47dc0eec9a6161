package assets

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"net/url"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
)

// NativeBalancer is the node call used for the native coin.
type NativeBalancer interface {
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// TokenBalancer reads ERC-20 balances and decimals.
type TokenBalancer interface {
	BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error)
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

// balanceOf returns the balance of owner:
// - native sentinel: wei from the node
// - otherwise: ERC-20 raw units
func (r *Reader) balanceOf(ctx context.Context, a Asset, owner common.Address) (*big.Int, error) {
	// zero address always holds nothing, no RPC call
	if owner == (common.Address{}) {
		return big.NewInt(0), nil
	}

	if a.Native {
		wei, err := r.native.BalanceAt(ctx, owner, nil) // latest
		if err != nil {
			return nil, fmt.Errorf("assets: native balance: %w", err)
		}
		return wei, nil
	}
	return r.tokens.BalanceOf(ctx, a.Address, owner)
}

// isTransportError separates "the node is unreachable" from "the node answered
// with an error". Only the former aborts a balance read.
func isTransportError(err error) bool {
	if err == nil {
		return false
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) {
		return true
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
