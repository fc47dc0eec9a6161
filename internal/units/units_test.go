package units

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantumauth-io/quantum-swap-agent/internal/constants"
	"github.com/quantumauth-io/quantum-swap-agent/internal/errs"
)

func TestToBaseUnits(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     string
		wantErr  bool
	}{
		{name: "usdc", amount: "40", decimals: 6, want: "40000000"},
		{name: "ether fraction", amount: "0.5", decimals: 18, want: "500000000000000000"},
		{name: "truncates excess digits", amount: "1.1234567", decimals: 6, want: "1123456"},
		{name: "zero", amount: "0", decimals: 18, want: "0"},
		{name: "negative", amount: "-1", decimals: 6, wantErr: true},
		{name: "negative fraction", amount: "-0.000001", decimals: 6, wantErr: true},
		{name: "garbage", amount: "ten", decimals: 6, wantErr: true},
		{name: "empty", amount: " ", decimals: 6, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ToBaseUnits(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestRoundTripWithinPrecision(t *testing.T) {
	for _, s := range []string{"1", "0.000001", "123456.789", "40.000000", "0.999999999999999999"} {
		for _, decimals := range []uint8{6, 8, 18} {
			d := decimal.RequireFromString(s)
			if d.Exponent() < -int32(decimals) {
				continue
			}
			base, err := DecimalToBaseUnits(d, decimals)
			require.NoError(t, err)
			assert.True(t, FromBaseUnits(base, decimals).Equal(d), "%s at %d decimals", s, decimals)
		}
	}
}

func TestFormatUnitsTrim(t *testing.T) {
	wei, _ := new(big.Int).SetString("1234500000000000000", 10)
	assert.Equal(t, "1.2345", FormatUnitsTrim(wei, 18, 6))
	assert.Equal(t, "1", FormatUnitsTrim(big.NewInt(1_000_000), 6, 6))
	assert.Equal(t, "0", FormatUnitsTrim(big.NewInt(1), 18, 6))
	assert.Equal(t, "0", FormatUnitsTrim(nil, 18, 6))
	assert.Equal(t, "12", FormatUnitsTrim(big.NewInt(12_345_678), 6, 0))
	assert.Equal(t, "-1.5", FormatUnitsTrim(big.NewInt(-1_500_000), 6, 6))
}

type fakeDecimals struct {
	calls int
	value uint8
	err   error
}

func (f *fakeDecimals) Decimals(context.Context, common.Address) (uint8, error) {
	f.calls++
	return f.value, f.err
}

func TestConverterNativeSkipsNetwork(t *testing.T) {
	src := &fakeDecimals{err: errors.New("should not be called")}
	c := NewConverter(src)

	got, err := c.ToBaseUnits(context.Background(), "0.25", common.HexToAddress(constants.NativeAddr))
	require.NoError(t, err)
	assert.Equal(t, "250000000000000000", got.String())
	assert.Zero(t, src.calls)
}

func TestConverterToken(t *testing.T) {
	src := &fakeDecimals{value: 6}
	c := NewConverter(src)
	token := common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")

	got, err := c.ToBaseUnits(context.Background(), "40.000000", token)
	require.NoError(t, err)
	assert.Equal(t, "40000000", got.String())
	assert.Equal(t, 1, src.calls)

	src.err = errors.New("no code at address")
	_, err = c.ToBaseUnits(context.Background(), "1", token)
	require.ErrorIs(t, err, errs.ErrDecimalQuery)

	src.err = nil
	_, err = c.ToBaseUnits(context.Background(), "-1", token)
	require.ErrorIs(t, err, errs.ErrValidation)

	_, err = c.ToBaseUnits(context.Background(), "1e", token)
	require.ErrorIs(t, err, errs.ErrValidation)
}
