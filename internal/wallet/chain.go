package wallet

import (
	"fmt"
	"math/big"
	"strings"
)

// Currency is the native currency block of wallet_addEthereumChain.
type Currency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// ChainParams describes the network predictions are placed on.
type ChainParams struct {
	ChainID           int64    `json:"-"`
	ChainName         string   `json:"chainName"`
	NativeCurrency    Currency `json:"nativeCurrency"`
	RPCURLs           []string `json:"rpcUrls"`
	BlockExplorerURLs []string `json:"blockExplorerUrls"`
}

// HexChainID renders the chain id the way wallets expect it, e.g. "0x15b38".
func (p ChainParams) HexChainID() string {
	return "0x" + big.NewInt(p.ChainID).Text(16)
}

// ParseHexChainID is the inverse of HexChainID.
func ParseHexChainID(s string) (int64, error) {
	v, ok := new(big.Int).SetString(strings.TrimPrefix(strings.ToLower(s), "0x"), 16)
	if !ok || !v.IsInt64() || v.Sign() <= 0 {
		return 0, fmt.Errorf("wallet: invalid chain id %q", s)
	}
	return v.Int64(), nil
}
