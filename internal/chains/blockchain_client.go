package chains

import (
	"context"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/quantumauth-io/quantum-go-utils/log"
	"github.com/quantumauth-io/quantum-go-utils/qa_evm"
	"github.com/quantumauth-io/quantum-go-utils/retry"
)

var _ qa_evm.BlockchainClient = (*BlockchainClientWithCache)(nil)

// BlockchainClientWithCache serves the latest header from memory and refreshes it
// in the background. A cached header older than staleAfter is not served; the
// node is asked instead. Every other call goes straight to the node.
type BlockchainClientWithCache struct {
	latestHeader             atomic.Pointer[types.Header]
	timeReceivedLatestHeader atomic.Pointer[time.Time]
	staleAfter               time.Duration
	*ethclient.Client
}

func NewBlockchainClientWithCache(ctx context.Context, url string, refresh time.Duration) (*BlockchainClientWithCache, error) {
	eclient, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to blockchain at %s", redactURL(url))
	}

	cc := &BlockchainClientWithCache{
		Client:     eclient,
		staleAfter: 2 * refresh,
	}

	if err = cc.getLatestHeaderFromChain(ctx); err != nil {
		eclient.Close()
		return nil, err
	}

	go maintainLatestHeaderFromChain(ctx, cc, refresh)

	return cc, nil
}

func maintainLatestHeaderFromChain(ctx context.Context, cc *BlockchainClientWithCache, duration time.Duration) {
	cfg := retry.DefaultConfig()
	cfg.MaxDelayBeforeRetrying = duration
	cfg.InitialDelayBeforeRetrying = duration / 10

	timer := time.NewTimer(duration)
	defer timer.Stop()
	numCallsToChain := 0
	for {
		timer.Reset(duration)
		select {
		case <-ctx.Done():
			log.Info("header refresher exiting", "numCallsToChain", numCallsToChain)
			return
		case <-timer.C:
			_, _ = retry.Retry(ctx, cfg,
				func(ctx context.Context) ([]interface{}, error) {
					numCallsToChain++
					return nil, cc.getLatestHeaderFromChain(ctx)
				},
				nil, // always retry
				"get latest header from chain")
		}
	}
}

func (b *BlockchainClientWithCache) getLatestHeaderFromChain(ctx context.Context) error {
	header, err := b.Client.HeaderByNumber(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to get latest header from chain")
	}
	now := time.Now().UTC()
	b.latestHeader.Store(header)
	b.timeReceivedLatestHeader.Store(&now)
	return nil
}

// HeaderByNumber answers nil (latest) from the cache while it is fresh. A stale
// cache, e.g. while the refresher is backing off, falls through to the node so
// fee estimation never prices against an old base fee.
func (b *BlockchainClientWithCache) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if number == nil {
		if h, ok := b.cachedHeader(); ok {
			return h, nil
		}
		if err := b.getLatestHeaderFromChain(ctx); err != nil {
			return nil, err
		}
		return b.latestHeader.Load(), nil
	}
	return b.Client.HeaderByNumber(ctx, number)
}

func (b *BlockchainClientWithCache) cachedHeader() (*types.Header, bool) {
	h := b.latestHeader.Load()
	if h == nil {
		return nil, false
	}
	if b.staleAfter > 0 && b.HeaderAge() > b.staleAfter {
		log.Warn("cached header is stale", "age", b.HeaderAge().String(), "block", h.Number)
		return nil, false
	}
	return h, true
}

// HeaderAge reports how long ago the cached header was fetched.
func (b *BlockchainClientWithCache) HeaderAge() time.Duration {
	t := b.timeReceivedLatestHeader.Load()
	if t == nil {
		return 0
	}
	return time.Since(*t)
}
