// Package txsender signs and broadcasts transactions for one hot wallet and
// waits for them to be mined.
package txsender

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/wtypes"
)

const (
	minGasLimit = 21_000

	defaultConfirmTimeout = 3 * time.Minute
	defaultPollInitial    = 750 * time.Millisecond
	defaultPollMax        = 3 * time.Second
	pollStep              = 250 * time.Millisecond
)

// ErrReverted is returned with the receipt of a mined transaction that failed.
var ErrReverted = errors.New("transaction reverted")

// Node is the subset of an execution client the sender uses.
type Node interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	FeeHistory(ctx context.Context, blockCount uint64, lastBlock *big.Int, rewardPercentiles []float64) (*ethereum.FeeHistory, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

type TxRequest struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// GasLimit zero means estimate against the node.
	GasLimit uint64
	// GasPrice forces a legacy transaction at that price.
	GasPrice *big.Int
}

type Config struct {
	ConfirmTimeout time.Duration `mapstructure:"confirmTimeout"`
	PollInitial    time.Duration `mapstructure:"pollInitial"`
	PollMax        time.Duration `mapstructure:"pollMax"`
}

type Sender struct {
	node    Node
	wallet  wtypes.Wallet
	chainID *big.Int
	cfg     Config
}

// accountLocks serializes nonce use per sending address across all Senders.
var accountLocks sync.Map // common.Address -> *sync.Mutex

func lockFor(addr common.Address) *sync.Mutex {
	m, _ := accountLocks.LoadOrStore(addr, &sync.Mutex{})
	return m.(*sync.Mutex)
}

func New(node Node, wallet wtypes.Wallet, chainID uint64, cfg Config) (*Sender, error) {
	if node == nil || wallet == nil {
		return nil, fmt.Errorf("txsender: missing node or wallet")
	}
	if chainID == 0 {
		return nil, fmt.Errorf("txsender: chain id is 0")
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = defaultConfirmTimeout
	}
	if cfg.PollInitial <= 0 {
		cfg.PollInitial = defaultPollInitial
	}
	if cfg.PollMax < cfg.PollInitial {
		cfg.PollMax = max(defaultPollMax, cfg.PollInitial)
	}
	return &Sender{
		node:    node,
		wallet:  wallet,
		chainID: new(big.Int).SetUint64(chainID),
		cfg:     cfg,
	}, nil
}

func (s *Sender) From() common.Address { return s.wallet.Address() }

// EstimateGas asks the node and adds 10% headroom, never below a plain transfer.
func (s *Sender) EstimateGas(ctx context.Context, req TxRequest) (uint64, error) {
	to := req.To
	est, err := s.node.EstimateGas(ctx, ethereum.CallMsg{
		From:  s.wallet.Address(),
		To:    &to,
		Value: req.Value,
		Data:  req.Data,
	})
	if err != nil {
		return 0, fmt.Errorf("estimate gas: %w", err)
	}
	u := est + est/10 // +10%
	if u < minGasLimit {
		u = minGasLimit
	}
	return u, nil
}

// Send builds, signs and broadcasts req. The account lock is held from the
// pending-nonce read until the node has accepted the transaction. Once the tx
// is signed its hash is returned even when the broadcast fails.
func (s *Sender) Send(ctx context.Context, req TxRequest) (common.Hash, error) {
	from := s.wallet.Address()
	lock := lockFor(from)
	lock.Lock()
	defer lock.Unlock()

	nonce, err := s.node.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}

	gas := req.GasLimit
	if gas == 0 {
		if gas, err = s.EstimateGas(ctx, req); err != nil {
			return common.Hash{}, err
		}
	}

	value := req.Value
	if value == nil {
		value = new(big.Int)
	}
	to := req.To

	var tx *types.Transaction
	if req.GasPrice != nil && req.GasPrice.Sign() > 0 {
		tx = types.NewTx(&types.LegacyTx{
			Nonce:    nonce,
			GasPrice: req.GasPrice,
			Gas:      gas,
			To:       &to,
			Value:    value,
			Data:     req.Data,
		})
	} else {
		fees, err := s.suggestFees(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("fee resolution: %w", err)
		}
		if fees.legacy {
			tx = types.NewTx(&types.LegacyTx{
				Nonce:    nonce,
				GasPrice: fees.gasPrice,
				Gas:      gas,
				To:       &to,
				Value:    value,
				Data:     req.Data,
			})
		} else {
			tx = types.NewTx(&types.DynamicFeeTx{
				ChainID:   s.chainID,
				Nonce:     nonce,
				GasTipCap: fees.tip,
				GasFeeCap: fees.feeCap,
				Gas:       gas,
				To:        &to,
				Value:     value,
				Data:      req.Data,
			})
		}
	}

	signed, err := s.sign(ctx, tx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("sign: %w", err)
	}
	hash := signed.Hash()
	if err := s.node.SendTransaction(ctx, signed); err != nil {
		// The node may have accepted the tx before the error surfaced, so the
		// hash is returned alongside it.
		log.Warn("transaction send failed", "hash", hash.Hex(), "nonce", nonce, "error", err)
		return hash, fmt.Errorf("send transaction %s: %w", hash.Hex(), err)
	}

	log.Info("transaction broadcast",
		"hash", hash.Hex(),
		"from", from.Hex(),
		"to", to.Hex(),
		"nonce", nonce,
		"gas", gas,
		"type", signed.Type(),
	)
	return hash, nil
}

// MaybeBroadcast reports whether a failed Send may still have reached the
// node: a signed tx exists and the failure was the caller's context rather
// than a rejection.
func MaybeBroadcast(hash common.Hash, err error) bool {
	if hash == (common.Hash{}) || err == nil {
		return false
	}
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

func (s *Sender) sign(ctx context.Context, tx *types.Transaction) (*types.Transaction, error) {
	signer := types.LatestSignerForChainID(s.chainID)
	sig, err := s.wallet.SignHash(ctx, signer.Hash(tx).Bytes())
	if err != nil {
		return nil, err
	}
	return tx.WithSignature(signer, sig)
}

// WaitConfirmed polls for the receipt with a growing delay. Once a transaction
// is broadcast the caller's cancellation no longer applies; only the confirm
// timeout bounds the wait.
func (s *Sender) WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ConfirmTimeout)
	defer cancel()

	delay := s.cfg.PollInitial
	for {
		receipt, err := s.node.TransactionReceipt(waitCtx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status != types.ReceiptStatusSuccessful {
				return receipt, fmt.Errorf("%w: %s in block %v", ErrReverted, hash.Hex(), receipt.BlockNumber)
			}
			return receipt, nil
		case err != nil && !errors.Is(err, ethereum.NotFound) && waitCtx.Err() == nil:
			log.Warn("receipt poll failed", "hash", hash.Hex(), "error", err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-waitCtx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %s after %s", errs.ErrConfirmationTimeout, hash.Hex(), s.cfg.ConfirmTimeout)
		case <-timer.C:
			if delay < s.cfg.PollMax {
				delay = min(delay+pollStep, s.cfg.PollMax)
			}
		}
	}
}
