package wallet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Stage names the sub-step of a chain interaction that failed.
type Stage string

const (
	StageAccounts    Stage = "request_accounts"
	StageSwitchChain Stage = "switch_chain"
	StageAddChain    Stage = "add_chain"
	StageCalldata    Stage = "calldata"
	StageSend        Stage = "send_transaction"
)

// ChainError is a failed chain interaction. It matches
// domain.ErrChainInteraction and the underlying cause with errors.Is.
type ChainError struct {
	Stage Stage
	Err   error
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("wallet: %s: %v", e.Stage, e.Err)
}

func (e *ChainError) Unwrap() []error {
	return []error{domain.ErrChainInteraction, e.Err}
}

// ChainStep runs the on-chain half of a prediction against a Provider.
type ChainStep struct {
	chain    ChainParams
	contract common.Address
	selector []byte
	decimals int
	logger   *slog.Logger
}

// NewChainStep creates a ChainStep for contract on chain. method is the
// Solidity signature whose selector prefixes the calldata.
func NewChainStep(chain ChainParams, contract common.Address, method string, amountDecimals int, logger *slog.Logger) *ChainStep {
	return &ChainStep{
		chain:    chain,
		contract: contract,
		selector: Selector(method),
		decimals: amountDecimals,
		logger:   logger.With(slog.String("component", "chain_step")),
	}
}

// Execute requests accounts, switches to the configured chain (adding it when
// the wallet does not know it), and sends the prediction transaction.
func (s *ChainStep) Execute(ctx context.Context, p Provider, choice domain.PendingChoice) (domain.TxResult, error) {
	accounts, err := p.RequestAccounts(ctx)
	if err != nil {
		return failed(StageAccounts, err)
	}
	if len(accounts) == 0 {
		return failed(StageAccounts, errors.New("no accounts authorised"))
	}
	from := accounts[0]

	if stage, err := s.ensureChain(ctx, p); err != nil {
		return failed(stage, err)
	}

	amount, err := ScaleAmount(choice.Amount, s.decimals)
	if err != nil {
		return failed(StageCalldata, err)
	}
	data, err := EncodePrediction(s.selector, amount, choice.OptionCode)
	if err != nil {
		return failed(StageCalldata, err)
	}

	hash, err := p.SendTransaction(ctx, TxRequest{
		From:  from,
		To:    s.contract.Hex(),
		Data:  data,
		Value: new(big.Int),
	})
	if err != nil {
		return failed(StageSend, err)
	}

	s.logger.Info("prediction transaction sent",
		slog.String("from", from),
		slog.String("tx_hash", hash),
		slog.String("challenge_id", choice.ChallengeID),
		slog.Int("option_code", choice.OptionCode),
	)
	return domain.TxResult{Success: true, TxHash: hash}, nil
}

func (s *ChainStep) ensureChain(ctx context.Context, p Provider) (Stage, error) {
	hexID := s.chain.HexChainID()

	err := p.SwitchChain(ctx, hexID)
	if err == nil {
		return "", nil
	}

	var pe *ProviderError
	if !errors.As(err, &pe) || pe.Code != CodeUnrecognizedChain {
		return StageSwitchChain, err
	}

	s.logger.Info("chain unknown to wallet, adding it", slog.String("chain_id", hexID))
	if err := p.AddChain(ctx, s.chain); err != nil {
		return StageAddChain, err
	}
	if err := p.SwitchChain(ctx, hexID); err != nil {
		return StageSwitchChain, err
	}
	return "", nil
}

func failed(stage Stage, err error) (domain.TxResult, error) {
	ce := &ChainError{Stage: stage, Err: err}
	return domain.TxResult{Success: false, Error: ce.Error()}, ce
}
