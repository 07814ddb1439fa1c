package wallet

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Selector returns the 4-byte function selector of signature, e.g.
// "placePrediction(uint256,uint256)".
func Selector(signature string) []byte {
	return crypto.Keccak256([]byte(signature))[:4]
}

// ScaleAmount converts a decimal token amount into base units. The amount is
// parsed from its shortest decimal representation so 0.1 scales to exactly
// 10^17 at 18 decimals. Sub-unit remainders are truncated.
func ScaleAmount(amount float64, decimals int) (*big.Int, error) {
	if amount <= 0 {
		return nil, fmt.Errorf("wallet: amount must be positive, got %v", amount)
	}
	r, ok := new(big.Rat).SetString(strconv.FormatFloat(amount, 'f', -1, 64))
	if !ok {
		return nil, fmt.Errorf("wallet: amount %v is not a finite number", amount)
	}
	scale := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(decimals)), nil)
	r.Mul(r, new(big.Rat).SetInt(scale))

	out := new(big.Int).Quo(r.Num(), r.Denom())
	if out.Sign() == 0 {
		return nil, fmt.Errorf("wallet: amount %v is below one base unit", amount)
	}
	if out.BitLen() > 256 {
		return nil, fmt.Errorf("wallet: amount %v overflows uint256", amount)
	}
	return out, nil
}

// EncodePrediction builds selector || uint256(amount) || uint256(optionCode).
func EncodePrediction(selector []byte, amount *big.Int, optionCode int) ([]byte, error) {
	if len(selector) != 4 {
		return nil, fmt.Errorf("wallet: selector must be 4 bytes, got %d", len(selector))
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, fmt.Errorf("wallet: amount must be positive")
	}
	if optionCode < 0 {
		return nil, fmt.Errorf("wallet: option code must not be negative, got %d", optionCode)
	}

	data := make([]byte, 4+32+32)
	copy(data[0:4], selector)
	copy(data[4:36], common.LeftPadBytes(amount.Bytes(), 32))
	copy(data[36:68], common.LeftPadBytes(big.NewInt(int64(optionCode)).Bytes(), 32))
	return data, nil
}

// OptionCode maps an option to the integer the contract expects: the option
// key when it is numeric, otherwise its 1-based position.
func OptionCode(key string, index int) int {
	if n, err := strconv.Atoi(strings.TrimSpace(key)); err == nil && n >= 0 {
		return n
	}
	return index + 1
}
