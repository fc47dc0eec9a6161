// Package aggregator talks to a 1inch-compatible swap aggregation API.
package aggregator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

const (
	defaultBaseURL = "https://api.1inch.dev/swap/v6.0"
	defaultTimeout = 15 * time.Second
)

type Config struct {
	BaseURL string        `mapstructure:"baseUrl"`
	APIKey  string        `mapstructure:"apiKey"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient binds the client to one chain: every path is {base}/{chainID}/...
func NewClient(cfg Config, chainID uint64) *Client {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    base + "/" + strconv.FormatUint(chainID, 10),
		apiKey:     cfg.APIKey,
	}
}

// Allowance wraps GET /approve/allowance.
func (c *Client) Allowance(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	q := url.Values{}
	q.Set("tokenAddress", token.Hex())
	q.Set("walletAddress", owner.Hex())

	var out allowanceResponse
	if err := c.get(ctx, "/approve/allowance", q, &out); err != nil {
		return nil, err
	}
	v, err := parseUint(out.Allowance, "allowance", false)
	if err != nil {
		return nil, fmt.Errorf("aggregator: %w", err)
	}
	return v, nil
}

// Spender wraps GET /approve/spender: the router contract approvals are granted to.
func (c *Client) Spender(ctx context.Context) (common.Address, error) {
	var out spenderResponse
	if err := c.get(ctx, "/approve/spender", nil, &out); err != nil {
		return common.Address{}, err
	}
	if !common.IsHexAddress(out.Address) {
		return common.Address{}, fmt.Errorf("aggregator: invalid spender %q", out.Address)
	}
	return common.HexToAddress(out.Address), nil
}

// ApproveTransaction wraps GET /approve/transaction. A nil amount asks for an
// unbounded approval.
func (c *Client) ApproveTransaction(ctx context.Context, token common.Address, amount *big.Int) (TxPayload, error) {
	q := url.Values{}
	q.Set("tokenAddress", token.Hex())
	if amount != nil {
		q.Set("amount", amount.String())
	}

	var out txResponse
	if err := c.get(ctx, "/approve/transaction", q, &out); err != nil {
		return TxPayload{}, err
	}
	p, err := out.payload()
	if err != nil {
		return TxPayload{}, fmt.Errorf("aggregator: approve tx: %w", err)
	}
	return p, nil
}

// Swap wraps GET /swap. The API picks the route; we only validate what comes back.
func (c *Client) Swap(ctx context.Context, p SwapParams) (SwapResponse, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return SwapResponse{}, fmt.Errorf("aggregator: swap amount must be positive")
	}
	q := url.Values{}
	q.Set("src", p.Src.Hex())
	q.Set("dst", p.Dst.Hex())
	q.Set("amount", p.Amount.String())
	q.Set("from", p.From.Hex())
	q.Set("origin", p.From.Hex())
	q.Set("slippage", SlippagePercent(p.SlippageBps))
	q.Set("disableEstimate", "false")
	q.Set("allowPartialFill", "false")

	var out swapResponse
	if err := c.get(ctx, "/swap", q, &out); err != nil {
		return SwapResponse{}, err
	}
	dst, err := parseUint(out.DstAmount, "dstAmount", false)
	if err != nil {
		return SwapResponse{}, fmt.Errorf("aggregator: %w", err)
	}
	tx, err := out.Tx.payload()
	if err != nil {
		return SwapResponse{}, fmt.Errorf("aggregator: swap tx: %w", err)
	}
	return SwapResponse{DstAmount: dst, Tx: tx}, nil
}

// SlippagePercent renders basis points as the percent string the API expects.
func SlippagePercent(bps uint32) string {
	return decimal.New(int64(bps), -2).String()
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	u := c.baseURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("aggregator: read %s: %w", path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{}
		_ = json.Unmarshal(bodyBytes, apiErr)
		apiErr.Status = resp.StatusCode
		if apiErr.Description == "" && apiErr.Message == "" {
			apiErr.Description = strings.TrimSpace(string(bodyBytes))
		}
		return apiErr
	}

	if err := json.Unmarshal(bodyBytes, out); err != nil {
		return fmt.Errorf("aggregator: decode %s: %w", path, err)
	}
	return nil
}
