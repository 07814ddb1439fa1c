package wallet

import (
	"encoding/hex"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelector(t *testing.T) {
	assert.Equal(t, "a9059cbb", hex.EncodeToString(Selector("transfer(address,uint256)")))
}

func TestScaleAmount(t *testing.T) {
	v, err := ScaleAmount(0.1, 18)
	require.NoError(t, err)
	assert.Equal(t, "100000000000000000", v.String())

	v, err = ScaleAmount(1.5, 18)
	require.NoError(t, err)
	assert.Equal(t, "1500000000000000000", v.String())

	v, err = ScaleAmount(2.345, 2)
	require.NoError(t, err)
	assert.Equal(t, "234", v.String(), "sub-unit remainder is truncated")

	_, err = ScaleAmount(0, 18)
	assert.Error(t, err)
	_, err = ScaleAmount(-1, 18)
	assert.Error(t, err)
	_, err = ScaleAmount(0.001, 2)
	assert.Error(t, err)
}

func TestEncodePredictionLayout(t *testing.T) {
	sel := Selector("placePrediction(uint256,uint256)")
	amount, err := ScaleAmount(1, 18)
	require.NoError(t, err)

	data, err := EncodePrediction(sel, amount, 2)
	require.NoError(t, err)
	require.Len(t, data, 68)

	assert.Equal(t, sel, data[:4])
	assert.Equal(t, amount, new(big.Int).SetBytes(data[4:36]))
	assert.Equal(t, int64(2), new(big.Int).SetBytes(data[36:68]).Int64())
	for _, b := range data[4:24] {
		assert.Zero(t, b, "amount is left padded")
	}
}

func TestEncodePredictionRejectsBadInput(t *testing.T) {
	sel := Selector("placePrediction(uint256,uint256)")
	_, err := EncodePrediction(sel[:3], big.NewInt(1), 1)
	assert.Error(t, err)
	_, err = EncodePrediction(sel, big.NewInt(0), 1)
	assert.Error(t, err)
	_, err = EncodePrediction(sel, big.NewInt(1), -1)
	assert.Error(t, err)
}

func TestOptionCode(t *testing.T) {
	assert.Equal(t, 3, OptionCode("3", 0))
	assert.Equal(t, 0, OptionCode(" 0 ", 4))
	assert.Equal(t, 2, OptionCode("home", 1))
	assert.Equal(t, 1, OptionCode("", 0))
	assert.Equal(t, 3, OptionCode("-4", 2))
}

func TestHexChainID(t *testing.T) {
	p := ChainParams{ChainID: 88888}
	assert.Equal(t, "0x15b38", p.HexChainID())

	id, err := ParseHexChainID("0x15B38")
	require.NoError(t, err)
	assert.Equal(t, int64(88888), id)

	_, err = ParseHexChainID("0xzz")
	assert.Error(t, err)
	_, err = ParseHexChainID("0x0")
	assert.Error(t, err)
}
