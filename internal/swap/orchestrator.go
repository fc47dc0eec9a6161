// Package swap drives one swap through the aggregation API: allowance check,
// optional approval, then the swap itself, each confirmed on-chain.
package swap

import (
	"context"
	stderrors "errors"
	"math/big"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-swap-agent/internal/aggregator"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/ethwallet/txsender"
	"github.com/quantumauth-io/quantum-swap-agent/internal/metrics"
)

type Aggregator interface {
	Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error)
	ApproveTransaction(ctx context.Context, token common.Address, amount *big.Int) (aggregator.TxPayload, error)
	Swap(ctx context.Context, p aggregator.SwapParams) (aggregator.SwapResponse, error)
}

type Signer interface {
	From() common.Address
	EstimateGas(ctx context.Context, req txsender.TxRequest) (uint64, error)
	Send(ctx context.Context, req txsender.TxRequest) (common.Hash, error)
	WaitConfirmed(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

type Orchestrator struct {
	api     Aggregator
	signer  Signer
	chainID uint64
	cfg     Config
}

func NewOrchestrator(api Aggregator, signer Signer, chainID uint64, cfg Config) *Orchestrator {
	if cfg.SlippageBps == 0 {
		cfg.SlippageBps = DefaultSlippageBps
	}
	return &Orchestrator{api: api, signer: signer, chainID: chainID, cfg: cfg}
}

// ExecuteSwap runs the swap state machine once. Nothing is retried: a failed
// stage returns a *errs.StageError, carrying the tx hash once one exists.
func (o *Orchestrator) ExecuteSwap(ctx context.Context, req Request) (out Outcome, err error) {
	out.RequestID = req.ID
	if err := o.validate(req); err != nil {
		return out, errs.AtStage(errs.StageValidate, errs.ErrValidation, err)
	}
	metrics.SwapsAttempted.Inc()

	logger := stageLogger{id: req.ID.String()}
	defer func() {
		if err != nil {
			log.Error("swap failed", "requestId", logger.id, "stage", string(errs.StageOf(err)), "error", err)
		}
	}()
	logger.info(errs.StageCheckAllowance, "swap requested",
		"from", req.From.Symbol,
		"to", req.To.Symbol,
		"amount", req.AmountBaseUnits.String(),
		"wallet", req.Wallet.Hex(),
	)

	var approvalGas uint64
	if !req.From.Native {
		done := timeStage(errs.StageCheckAllowance)
		allowance, err := o.allowance(ctx, req)
		done()
		if err != nil {
			return out, errs.AtStage(errs.StageCheckAllowance, errs.ErrApprovalFailed, err)
		}
		logger.info(errs.StageCheckAllowance, "allowance checked", "current", allowance.Current.String())

		if !allowance.Covers(req.AmountBaseUnits) {
			hash, gas, err := o.approve(ctx, req, logger)
			out.ApprovalHash = hash
			if err != nil {
				return out, err
			}
			approvalGas = gas
		}
	}

	done := timeStage(errs.StageBuildSwap)
	slippage := req.SlippageBps
	if slippage == 0 {
		slippage = o.cfg.SlippageBps
	}
	resp, err := o.api.Swap(ctx, aggregator.SwapParams{
		Src:         req.From.Address,
		Dst:         req.To.Address,
		Amount:      req.AmountBaseUnits,
		From:        req.Wallet,
		SlippageBps: slippage,
	})
	done()
	if err != nil {
		return out, errs.AtStage(errs.StageBuildSwap, errs.ErrSwapBuildFailed, errors.Wrap(err, "build swap"))
	}
	out.DstAmount = resp.DstAmount
	logger.info(errs.StageBuildSwap, "swap built", "router", resp.Tx.To.Hex(), "dstAmount", resp.DstAmount.String(), "gas", resp.Tx.Gas)

	done = timeStage(errs.StageSendSwap)
	hash, err := o.signer.Send(ctx, txsender.TxRequest{
		To:       resp.Tx.To,
		Data:     resp.Tx.Data,
		Value:    resp.Tx.Value,
		GasLimit: swapGasLimit(approvalGas, resp.Tx.Gas),
		GasPrice: resp.Tx.GasPrice,
	})
	done()
	if hash != (common.Hash{}) {
		out.TxHash = hash
	}
	if err != nil {
		if !txsender.MaybeBroadcast(hash, err) {
			return out, sendError(errs.StageSendSwap, errs.ErrBroadcastFailed, hash, errors.Wrap(err, "send swap"))
		}
		logger.warn(errs.StageSendSwap, "swap send interrupted, awaiting receipt", "tx", hash.Hex(), "error", err)
	} else {
		logger.info(errs.StageSendSwap, "swap broadcast", "tx", hash.Hex())
	}

	done = timeStage(errs.StageAwaitSwap)
	_, err = o.signer.WaitConfirmed(ctx, hash)
	done()
	if err != nil {
		return out, awaitSwapError(hash, err)
	}

	out.Confirmed = true
	metrics.SwapsConfirmed.Inc()
	logger.info(errs.StageDone, "swap confirmed", "tx", hash.Hex())
	return out, nil
}

func (o *Orchestrator) validate(req Request) error {
	switch {
	case req.AmountBaseUnits == nil || req.AmountBaseUnits.Sign() <= 0:
		return errs.Validation("amount must be positive")
	case req.From.Address == req.To.Address:
		return errs.Validation("source and target are the same asset %s", req.From.Symbol)
	case req.ChainID != o.chainID:
		return errs.Validation("chain id %d does not match node chain %d", req.ChainID, o.chainID)
	case req.Wallet != o.signer.From():
		return errs.Validation("wallet %s is not the signing account", req.Wallet.Hex())
	case req.SlippageBps > maxSlippageBps:
		return errs.Validation("slippage %d bps exceeds %d", req.SlippageBps, maxSlippageBps)
	}
	return nil
}

func (o *Orchestrator) allowance(ctx context.Context, req Request) (AllowanceState, error) {
	current, err := o.api.Allowance(ctx, req.From.Address, req.Wallet)
	if err != nil {
		return AllowanceState{}, errors.Wrapf(err, "allowance of %s", req.From.Symbol)
	}
	return AllowanceState{Token: req.From.Address, Owner: req.Wallet, Current: current}, nil
}

// approve runs BUILD_APPROVAL through AWAIT_APPROVAL and returns the approval
// hash (once broadcast) and the gas limit it was sent with.
func (o *Orchestrator) approve(ctx context.Context, req Request, logger stageLogger) (common.Hash, uint64, error) {
	var amount *big.Int
	if o.cfg.ExactApproval {
		amount = req.AmountBaseUnits
	}

	done := timeStage(errs.StageBuildApproval)
	payload, err := o.api.ApproveTransaction(ctx, req.From.Address, amount)
	if err != nil {
		done()
		return common.Hash{}, 0, errs.AtStage(errs.StageBuildApproval, errs.ErrApprovalFailed, errors.Wrap(err, "build approval"))
	}
	txReq := txsender.TxRequest{To: payload.To, Data: payload.Data, Value: payload.Value, GasPrice: payload.GasPrice}
	gas, err := o.signer.EstimateGas(ctx, txReq)
	done()
	if err != nil {
		return common.Hash{}, 0, errs.AtStage(errs.StageBuildApproval, errs.ErrApprovalFailed, err)
	}
	txReq.GasLimit = gas

	done = timeStage(errs.StageSendApproval)
	hash, err := o.signer.Send(ctx, txReq)
	done()
	if err != nil {
		if !txsender.MaybeBroadcast(hash, err) {
			return hash, 0, sendError(errs.StageSendApproval, errs.ErrApprovalFailed, hash, errors.Wrap(err, "send approval"))
		}
		logger.warn(errs.StageSendApproval, "approval send interrupted, awaiting receipt", "tx", hash.Hex(), "error", err)
	} else {
		logger.info(errs.StageSendApproval, "approval broadcast", "tx", hash.Hex(), "spender", payload.To.Hex(), "gas", gas, "exact", o.cfg.ExactApproval)
	}
	metrics.ApprovalsSent.Inc()

	done = timeStage(errs.StageAwaitApproval)
	_, err = o.signer.WaitConfirmed(ctx, hash)
	done()
	if err != nil {
		return hash, 0, errs.AtStage(errs.StageAwaitApproval, errs.ErrApprovalFailed, err).WithTx(hash.Hex())
	}
	logger.info(errs.StageAwaitApproval, "approval confirmed", "tx", hash.Hex())
	return hash, gas, nil
}

// awaitSwapError keeps a confirmation timeout distinguishable from a revert.
func awaitSwapError(hash common.Hash, err error) error {
	kind := errs.ErrBroadcastFailed
	if stderrors.Is(err, errs.ErrConfirmationTimeout) {
		kind = errs.ErrConfirmationTimeout
	}
	return errs.AtStage(errs.StageAwaitSwap, kind, err).WithTx(hash.Hex())
}

// sendError tags a failed send, keeping the hash when the tx was signed.
func sendError(stage errs.Stage, kind error, hash common.Hash, err error) *errs.StageError {
	se := errs.AtStage(stage, kind, err)
	if hash != (common.Hash{}) {
		se.WithTx(hash.Hex())
	}
	return se
}

// swapGasLimit takes the larger of the approval estimate and the quoted gas.
// Without a quote it returns zero so the sender estimates the swap itself.
func swapGasLimit(approvalGas, payloadGas uint64) uint64 {
	if payloadGas == 0 {
		return 0
	}
	return max(approvalGas, payloadGas)
}

func timeStage(stage errs.Stage) func() {
	start := time.Now()
	return func() {
		metrics.StageDuration.WithLabelValues(string(stage)).Observe(time.Since(start).Seconds())
	}
}

type stageLogger struct{ id string }

func (l stageLogger) info(stage errs.Stage, msg string, kv ...any) {
	log.Info(msg, l.fields(stage, kv)...)
}

func (l stageLogger) warn(stage errs.Stage, msg string, kv ...any) {
	log.Warn(msg, l.fields(stage, kv)...)
}

func (l stageLogger) fields(stage errs.Stage, kv []any) []any {
	return append([]any{"requestId", l.id, "stage", string(stage)}, kv...)
}
