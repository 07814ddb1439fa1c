// Package wallet carries the chain side of a prediction: the request/response
// provider contract a page exposes, provider detection, calldata encoding,
// and the accounts -> switch chain -> send transaction sequence.
package wallet

import (
	"context"
	"fmt"
	"math/big"
)

// Provider error codes shared with injected browser wallets (EIP-1193).
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnrecognizedChain = 4902
)

// ProviderError is an error reported by the wallet provider itself.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error %d: %s", e.Code, e.Message)
}

// TxRequest is an eth_sendTransaction request.
type TxRequest struct {
	From  string
	To    string
	Data  []byte
	Value *big.Int
}

// Provider is the page-world wallet. Every call is a request with a reply.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]string, error)
	SwitchChain(ctx context.Context, chainIDHex string) error
	AddChain(ctx context.Context, params ChainParams) error
	SendTransaction(ctx context.Context, tx TxRequest) (string, error)
}
