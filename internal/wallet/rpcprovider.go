package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// JSON-RPC error codes used when the provider itself rejects a call.
const (
	codeInvalidParams = -32602
	codeInternal      = -32603
)

// RPCProvider is a Provider backed by a local signing key and a JSON-RPC node.
// Only chains it was seeded with, or that were added, can be switched to.
type RPCProvider struct {
	key     *ecdsa.PrivateKey
	address common.Address
	logger  *slog.Logger

	mu      sync.Mutex
	chains  map[int64]string
	active  int64
	chainID *big.Int
	client  *ethclient.Client
}

// NewRPCProvider creates a provider for key. known maps chain ids to RPC URLs
// the wallet already trusts; it may be empty.
func NewRPCProvider(key *ecdsa.PrivateKey, known map[int64]string, logger *slog.Logger) *RPCProvider {
	chains := make(map[int64]string, len(known))
	for id, url := range known {
		chains[id] = url
	}
	return &RPCProvider{
		key:     key,
		address: crypto.PubkeyToAddress(key.PublicKey),
		chains:  chains,
		logger:  logger.With(slog.String("component", "rpc_provider")),
	}
}

// Address is the signing account.
func (p *RPCProvider) Address() common.Address {
	return p.address
}

// RequestAccounts returns the single signing account.
func (p *RPCProvider) RequestAccounts(context.Context) ([]string, error) {
	return []string{p.address.Hex()}, nil
}

// SwitchChain connects to the RPC endpoint of chainIDHex. Unknown chains fail
// with CodeUnrecognizedChain.
func (p *RPCProvider) SwitchChain(ctx context.Context, chainIDHex string) error {
	id, err := ParseHexChainID(chainIDHex)
	if err != nil {
		return &ProviderError{Code: codeInvalidParams, Message: err.Error()}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	url, ok := p.chains[id]
	if !ok {
		return &ProviderError{Code: CodeUnrecognizedChain, Message: fmt.Sprintf("Unrecognized chain ID %q", chainIDHex)}
	}
	if p.active == id && p.client != nil {
		return nil
	}

	client, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return &ProviderError{Code: codeInternal, Message: fmt.Sprintf("dial %s: %v", url, err)}
	}
	remote, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return &ProviderError{Code: codeInternal, Message: fmt.Sprintf("chain id from %s: %v", url, err)}
	}
	if remote.Int64() != id {
		client.Close()
		return &ProviderError{Code: codeInternal, Message: fmt.Sprintf("%s serves chain %s, not %d", url, remote, id)}
	}

	if p.client != nil {
		p.client.Close()
	}
	p.client = client
	p.active = id
	p.chainID = remote
	p.logger.Info("switched chain", slog.Int64("chain_id", id), slog.String("rpc", url))
	return nil
}

// AddChain trusts the first RPC URL of params.
func (p *RPCProvider) AddChain(_ context.Context, params ChainParams) error {
	if params.ChainID <= 0 || len(params.RPCURLs) == 0 || strings.TrimSpace(params.RPCURLs[0]) == "" {
		return &ProviderError{Code: codeInvalidParams, Message: "chain id and at least one rpc url are required"}
	}
	p.mu.Lock()
	p.chains[params.ChainID] = params.RPCURLs[0]
	p.mu.Unlock()
	p.logger.Info("chain added", slog.Int64("chain_id", params.ChainID), slog.String("name", params.ChainName))
	return nil
}

// SendTransaction signs an EIP-1559 transaction and broadcasts it.
func (p *RPCProvider) SendTransaction(ctx context.Context, req TxRequest) (string, error) {
	p.mu.Lock()
	client, chainID := p.client, p.chainID
	p.mu.Unlock()

	if client == nil {
		return "", &ProviderError{Code: CodeUnauthorized, Message: "no active chain"}
	}
	if !strings.EqualFold(req.From, p.address.Hex()) {
		return "", &ProviderError{Code: CodeUnauthorized, Message: fmt.Sprintf("account %s is not authorised", req.From)}
	}
	if !common.IsHexAddress(req.To) {
		return "", &ProviderError{Code: codeInvalidParams, Message: fmt.Sprintf("invalid recipient %q", req.To)}
	}
	to := common.HexToAddress(req.To)
	value := req.Value
	if value == nil {
		value = new(big.Int)
	}

	nonce, err := client.PendingNonceAt(ctx, p.address)
	if err != nil {
		return "", fmt.Errorf("wallet: nonce: %w", err)
	}
	tip, err := client.SuggestGasTipCap(ctx)
	if err != nil {
		return "", fmt.Errorf("wallet: gas tip: %w", err)
	}
	gasPrice, err := client.SuggestGasPrice(ctx)
	if err != nil {
		return "", fmt.Errorf("wallet: gas price: %w", err)
	}
	feeCap := new(big.Int).Mul(gasPrice, big.NewInt(2))
	if feeCap.Cmp(tip) < 0 {
		feeCap.Set(tip)
	}

	gas, err := client.EstimateGas(ctx, ethereum.CallMsg{
		From:  p.address,
		To:    &to,
		Value: value,
		Data:  req.Data,
	})
	if err != nil {
		return "", fmt.Errorf("wallet: estimate gas: %w", err)
	}
	gas = gas * 12 / 10

	tx := &types.DynamicFeeTx{
		ChainID:   chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &to,
		Value:     value,
		Data:      req.Data,
	}
	signed, err := types.SignNewTx(p.key, types.LatestSignerForChainID(chainID), tx)
	if err != nil {
		return "", fmt.Errorf("wallet: sign: %w", err)
	}
	if err := client.SendTransaction(ctx, signed); err != nil {
		return "", fmt.Errorf("wallet: send: %w", err)
	}
	return signed.Hash().Hex(), nil
}

// Close drops the RPC connection.
func (p *RPCProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		p.client.Close()
		p.client = nil
		p.active = 0
	}
}
