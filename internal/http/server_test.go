package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/assets"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
	"github.com/quantumauth-io/quantum-swap-agent/internal/sizing"
	"github.com/quantumauth-io/quantum-swap-agent/internal/swap"
	"github.com/quantumauth-io/quantum-swap-agent/internal/trader"
)

type fakeTrader struct {
	snap     assets.Snapshot
	snapErr  error
	result   trader.TradeResult
	err      error
	got      trader.TradeRequest
	triggers int
}

func (f *fakeTrader) Balances(context.Context) (assets.Snapshot, error) {
	return f.snap, f.snapErr
}

func (f *fakeTrader) Trigger(_ context.Context, req trader.TradeRequest) (trader.TradeResult, error) {
	f.triggers++
	f.got = req
	return f.result, f.err
}

func newTestServer(cfg Config, t Trader) *Server {
	return NewServer(cfg, t, Identity{Network: "mainnet", ChainID: 1, Wallet: "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"})
}

func do(s *Server, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, path, strings.NewReader(body))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.RemoteAddr = "127.0.0.1:40000"
	for k, v := range header {
		r.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.ServeHTTP(w, r)
	return w
}

func TestHealth(t *testing.T) {
	s := newTestServer(Config{}, &fakeTrader{})
	w := do(s, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var got healthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "ok", got.Status)
	assert.Equal(t, uint64(1), got.ChainID)

	w = do(s, http.MethodPost, "/healthz", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(Config{}, &fakeTrader{})
	w := do(s, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "swap_agent_swaps_attempted_total")
}

func TestBalances(t *testing.T) {
	ft := &fakeTrader{snap: assets.Snapshot{ChainID: 1, Balances: map[string]string{"ETH": "1.5", "USDC": "Error"}}}
	s := newTestServer(Config{}, ft)

	w := do(s, http.MethodGet, "/balances", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var got assets.Snapshot
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "Error", got.Balances["USDC"])

	ft.snapErr = errs.Wrap(errs.ErrBalanceRead, errors.New("connection refused"), "native balance")
	w = do(s, http.MethodGet, "/balances", "", nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
}

func TestSwapSuccess(t *testing.T) {
	id := uuid.New()
	hash := common.HexToHash("0xfeed")
	ft := &fakeTrader{result: trader.TradeResult{
		RequestID:       id,
		Sizing:          sizing.TradeSizing{Direction: sizing.SourceToTarget, Amount: decimal.RequireFromString("0.04")},
		AmountBaseUnits: "40000000000000000",
		Outcome:         swap.Outcome{TxHash: hash, Confirmed: true},
		ExplorerURL:     "https://etherscan.io/tx/" + hash.Hex(),
		Balances:        map[string]string{"ETH": "1.96"},
	}}
	s := newTestServer(Config{}, ft)

	w := do(s, http.MethodPost, "/swap", `{"sourceSymbol":"ETH","targetSymbol":"USDC","riskPct":0.02}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	assert.Equal(t, trader.TradeRequest{SourceSymbol: "ETH", TargetSymbol: "USDC", RiskPct: 0.02}, ft.got)

	var got swapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.True(t, got.OK)
	assert.Equal(t, hash.Hex(), got.TxHash)
	assert.Equal(t, id.String(), got.RequestID)
	require.NotNil(t, got.Sizing)
	assert.Equal(t, "0.04", got.Sizing.Amount.String())
	assert.Empty(t, got.ApprovalTxHash)
}

func TestSwapFailureStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		stage  errs.Stage
	}{
		{"validation", errs.AtStage(errs.StageValidate, errs.ErrValidation, errs.Validation("unknown source asset")), http.StatusBadRequest, errs.StageValidate},
		{"price data", errs.AtStage(errs.StageSize, errs.ErrPriceDataUnavailable, errs.ErrPriceDataUnavailable), http.StatusBadGateway, errs.StageSize},
		{"approval", errs.AtStage(errs.StageSendApproval, errs.ErrApprovalFailed, errors.New("nonce too low")), http.StatusBadGateway, errs.StageSendApproval},
		{"timeout", errs.AtStage(errs.StageAwaitSwap, errs.ErrConfirmationTimeout, errors.New("3m")).WithTx("0xabc"), http.StatusGatewayTimeout, errs.StageAwaitSwap},
		{"feed outage", errs.AtStage(errs.StageSize, nil, errors.New("dial tcp: i/o timeout")), http.StatusBadGateway, errs.StageSize},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := newTestServer(Config{}, &fakeTrader{err: tc.err})
			w := do(s, http.MethodPost, "/swap", `{"sourceSymbol":"ETH","targetSymbol":"USDC","riskPct":0.02}`, nil)
			require.Equal(t, tc.status, w.Code)

			var got swapResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
			assert.False(t, got.OK)
			assert.Equal(t, string(tc.stage), got.Stage)
			assert.NotEmpty(t, got.Error)
		})
	}

	s := newTestServer(Config{}, &fakeTrader{err: errs.AtStage(errs.StageAwaitSwap, errs.ErrConfirmationTimeout, errors.New("3m")).WithTx("0xabc")})
	w := do(s, http.MethodPost, "/swap", `{"sourceSymbol":"ETH","targetSymbol":"USDC","riskPct":0.02}`, nil)
	var got swapResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &got))
	assert.Equal(t, "0xabc", got.TxHash)
}

func TestSwapRejectsBadBody(t *testing.T) {
	ft := &fakeTrader{}
	s := newTestServer(Config{}, ft)

	w := do(s, http.MethodPost, "/swap", `{"sourceSymbol":"ETH","amount":"all"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(s, http.MethodPost, "/swap", `not json`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(s, http.MethodGet, "/swap", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Zero(t, ft.triggers)
}

func TestGuards(t *testing.T) {
	ft := &fakeTrader{snap: assets.Snapshot{Balances: map[string]string{}}}
	s := newTestServer(Config{APIToken: "s3cret", LoopbackOnly: true, AllowedOrigins: []string{"http://localhost:3000"}}, ft)

	w := do(s, http.MethodGet, "/balances", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = do(s, http.MethodGet, "/balances", "", map[string]string{"Authorization": "Bearer s3cret"})
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(s, http.MethodGet, "/balances", "", map[string]string{"Authorization": "Bearer s3cret", "Origin": "https://evil.example"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = do(s, http.MethodOptions, "/swap", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	r := httptest.NewRequest(http.MethodGet, "/balances", nil)
	r.RemoteAddr = "10.0.0.7:5555"
	r.Header.Set("Authorization", "Bearer s3cret")
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, r)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
