// Package units converts between human-readable amounts and on-chain base units.
package units

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
)

// ToBaseUnits parses a decimal string and scales it by 10^decimals.
// Fractional digits beyond decimals are truncated toward zero.
func ToBaseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", amount, err)
	}
	return DecimalToBaseUnits(d, decimals)
}

func DecimalToBaseUnits(d decimal.Decimal, decimals uint8) (*big.Int, error) {
	if d.IsNegative() {
		return nil, fmt.Errorf("negative amount %s", d.String())
	}
	return d.Shift(int32(decimals)).Truncate(0).BigInt(), nil
}

// FromBaseUnits is the exact inverse of DecimalToBaseUnits for whole base units.
func FromBaseUnits(amount *big.Int, decimals uint8) decimal.Decimal {
	if amount == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(amount, -int32(decimals))
}

// FormatUnitsTrim converts a token balance to a human string:
// - divides by 10^decimals
// - trims to maxFrac decimal places (no rounding)
// - removes trailing zeros
//
// Examples:
//
//	balance=1234500000000000000, decimals=18, maxFrac=6 -> "1.2345"
//	balance=1000000000000000000, decimals=18, maxFrac=6 -> "1"
//	balance=1, decimals=18, maxFrac=6 -> "0"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	sign := ""
	abs := amount
	if amount.Sign() < 0 {
		sign = "-"
		abs = new(big.Int).Neg(amount)
	}

	ten := big.NewInt(10)
	base := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)

	intPart := new(big.Int).Div(abs, base)
	fracPart := new(big.Int).Mod(abs, base)

	if fracPart.Sign() == 0 || maxFrac <= 0 {
		return withSign(sign, intPart.String(), "")
	}

	// Left-pad fractional part to `decimals`
	fracStr := fracPart.String()
	if len(fracStr) < int(decimals) {
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	}

	if len(fracStr) > maxFrac {
		fracStr = fracStr[:maxFrac]
	}

	fracStr = strings.TrimRight(fracStr, "0")
	return withSign(sign, intPart.String(), fracStr)
}

func withSign(sign, intPart, frac string) string {
	if intPart == "0" && frac == "" {
		return "0"
	}
	if frac == "" {
		return sign + intPart
	}
	return sign + intPart + "." + frac
}
