package units

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

// DecimalsSource reads token decimals from the chain.
type DecimalsSource interface {
	Decimals(ctx context.Context, token common.Address) (uint8, error)
}

type Converter struct {
	tokens DecimalsSource
}

func NewConverter(tokens DecimalsSource) *Converter {
	return &Converter{tokens: tokens}
}

// ToBaseUnits scales a decimal-string amount for token. The native sentinel
// uses 18 decimals without touching the network.
func (c *Converter) ToBaseUnits(ctx context.Context, amount string, token common.Address) (*big.Int, error) {
	decimals, err := c.DecimalsOf(ctx, token)
	if err != nil {
		return nil, err
	}
	out, err := ToBaseUnits(amount, decimals)
	if err != nil {
		return nil, errs.Validation("%v", err)
	}
	return out, nil
}

func (c *Converter) DecimalsOf(ctx context.Context, token common.Address) (uint8, error) {
	if IsNative(token) {
		return constants.NativeDecimals, nil
	}
	d, err := c.tokens.Decimals(ctx, token)
	if err != nil {
		return 0, errs.Wrap(errs.ErrDecimalQuery, err, "decimals of %s", token.Hex())
	}
	return d, nil
}

func IsNative(token common.Address) bool {
	return token == common.HexToAddress(constants.NativeAddr)
}
