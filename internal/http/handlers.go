package http

import (
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/quantumauth-io/quantum-go-utils/log"

	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Network: s.identity.Network,
		ChainID: s.identity.ChainID,
		Wallet:  s.identity.Wallet,
	})
}

func (s *Server) handleBalances(w http.ResponseWriter, r *http.Request) {
	snap, err := s.trader.Balances(r.Context())
	if err != nil {
		log.Warn("balances request failed", "error", err)
		writeJSON(w, statusFor(err), errorResponse{OK: false, Stage: string(errs.StageReadBalances), Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleSwap(w http.ResponseWriter, r *http.Request) {
	var req swapRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	res, err := s.trader.Trigger(r.Context(), req)

	resp := swapResponse{
		OK:              err == nil,
		RequestID:       res.RequestID.String(),
		ExplorerURL:     res.ExplorerURL,
		AmountBaseUnits: res.AmountBaseUnits,
		Balances:        res.Balances,
	}
	if res.Outcome.TxHash != (common.Hash{}) {
		resp.TxHash = res.Outcome.TxHash.Hex()
	}
	if res.Outcome.Approved() {
		resp.ApprovalTxHash = res.Outcome.ApprovalHash.Hex()
	}
	if !res.Sizing.Amount.IsZero() {
		sized := res.Sizing
		resp.Sizing = &sized
	}

	if err != nil {
		resp.Stage = string(errs.StageOf(err))
		resp.Error = err.Error()
		var se *errs.StageError
		if errors.As(err, &se) && se.TxHash != "" {
			resp.TxHash = se.TxHash
		}
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}
