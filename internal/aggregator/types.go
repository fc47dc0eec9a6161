package aggregator

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// APIError is a non-2xx answer from the aggregation API.
type APIError struct {
	Status      int    `json:"statusCode"`
	Message     string `json:"error"`
	Description string `json:"description"`
	RequestID   string `json:"requestId"`
}

func (e *APIError) Error() string {
	msg := e.Description
	if msg == "" {
		msg = e.Message
	}
	return fmt.Sprintf("aggregator: status %d: %s", e.Status, msg)
}

// TxPayload is a transaction the API built for us, validated at the boundary.
type TxPayload struct {
	To    common.Address
	Data  []byte
	Value *big.Int
	// Gas is zero when the API did not estimate.
	Gas      uint64
	GasPrice *big.Int
}

type SwapParams struct {
	Src         common.Address
	Dst         common.Address
	Amount      *big.Int
	From        common.Address
	SlippageBps uint32
}

type SwapResponse struct {
	DstAmount *big.Int
	Tx        TxPayload
}

type allowanceResponse struct {
	Allowance string `json:"allowance"`
}

type spenderResponse struct {
	Address string `json:"address"`
}

type txResponse struct {
	From     string     `json:"from"`
	To       string     `json:"to"`
	Data     string     `json:"data"`
	Value    string     `json:"value"`
	Gas      jsonUint64 `json:"gas"`
	GasPrice string     `json:"gasPrice"`
}

type swapResponse struct {
	DstAmount string     `json:"dstAmount"`
	Tx        txResponse `json:"tx"`
}

// jsonUint64 accepts a gas value sent either as a number or a decimal string.
type jsonUint64 uint64

func (j *jsonUint64) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*j = 0
		return nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || !v.IsUint64() {
		return fmt.Errorf("invalid gas %q", s)
	}
	*j = jsonUint64(v.Uint64())
	return nil
}

func (t txResponse) payload() (TxPayload, error) {
	if !common.IsHexAddress(t.To) {
		return TxPayload{}, fmt.Errorf("invalid tx.to %q", t.To)
	}
	data, err := hexutil.Decode(t.Data)
	if err != nil {
		return TxPayload{}, fmt.Errorf("invalid tx.data: %w", err)
	}
	value, err := parseUint(t.Value, "tx.value", true)
	if err != nil {
		return TxPayload{}, err
	}
	var gasPrice *big.Int
	if strings.TrimSpace(t.GasPrice) != "" {
		if gasPrice, err = parseUint(t.GasPrice, "tx.gasPrice", false); err != nil {
			return TxPayload{}, err
		}
	}
	return TxPayload{
		To:       common.HexToAddress(t.To),
		Data:     data,
		Value:    value,
		Gas:      uint64(t.Gas),
		GasPrice: gasPrice,
	}, nil
}

// parseUint reads a non-negative decimal integer. Empty is zero when allowEmpty.
func parseUint(s, field string, allowEmpty bool) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		if allowEmpty {
			return new(big.Int), nil
		}
		return nil, fmt.Errorf("missing %s", field)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid %s %q", field, s)
	}
	return v, nil
}
