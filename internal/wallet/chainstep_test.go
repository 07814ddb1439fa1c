package wallet

import (
	"context"
	"errors"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

var testContract = common.HexToAddress("0xbCE7457679913BD81Da8ba3106dF11191141E12D")

func testChain() ChainParams {
	return ChainParams{
		ChainID:           88888,
		ChainName:         "Chiliz Testnet",
		NativeCurrency:    Currency{Name: "CHZ", Symbol: "CHZ", Decimals: 18},
		RPCURLs:           []string{"https://testnet-rpc.chiliz.com"},
		BlockExplorerURLs: []string{"https://testnet-explorer.chiliz.com"},
	}
}

func newTestStep() *ChainStep {
	return NewChainStep(testChain(), testContract, "placePrediction(uint256,uint256)", 18, testLogger())
}

var testChoice = domain.PendingChoice{ChallengeID: "c-1", OptionID: "o-2", OptionKey: "2", OptionCode: 2, TokenName: "CHZ", Amount: 1}

func TestChainStepAddsUnknownChainThenRetriesSwitch(t *testing.T) {
	p := &fakeProvider{accounts: []string{"0xabc"}}

	res, err := newTestStep().Execute(context.Background(), p, testChoice)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "0xfeed", res.TxHash)

	assert.Equal(t, []string{"accounts", "switch:0x15b38", "add:0x15b38", "switch:0x15b38", "send"}, p.calls)
	require.Len(t, p.added, 1)
	assert.Equal(t, "Chiliz Testnet", p.added[0].ChainName)

	require.Len(t, p.sent, 1)
	tx := p.sent[0]
	assert.Equal(t, "0xabc", tx.From)
	assert.Equal(t, testContract.Hex(), tx.To)
	assert.Zero(t, tx.Value.Sign())

	amount, _ := ScaleAmount(1, 18)
	want, _ := EncodePrediction(Selector("placePrediction(uint256,uint256)"), amount, 2)
	assert.Equal(t, want, tx.Data)
}

func TestChainStepKnownChainSkipsAdd(t *testing.T) {
	p := &fakeProvider{accounts: []string{"0xabc"}, known: map[string]bool{"0x15b38": true}}

	_, err := newTestStep().Execute(context.Background(), p, testChoice)
	require.NoError(t, err)
	assert.Equal(t, []string{"accounts", "switch:0x15b38", "send"}, p.calls)
}

func TestChainStepStages(t *testing.T) {
	rejected := &ProviderError{Code: CodeUserRejected, Message: "User rejected the request."}

	cases := []struct {
		name  string
		p     *fakeProvider
		stage Stage
	}{
		{"no accounts", &fakeProvider{}, StageAccounts},
		{"switch rejected", &fakeProvider{accounts: []string{"0xabc"}, switchErr: rejected}, StageSwitchChain},
		{"add rejected", &fakeProvider{accounts: []string{"0xabc"}, addErr: rejected}, StageAddChain},
		{"send rejected", &fakeProvider{accounts: []string{"0xabc"}, known: map[string]bool{"0x15b38": true}, sendErr: rejected}, StageSend},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := newTestStep().Execute(context.Background(), tc.p, testChoice)
			require.Error(t, err)
			assert.False(t, res.Success)
			assert.NotEmpty(t, res.Error)
			assert.ErrorIs(t, err, domain.ErrChainInteraction)

			var ce *ChainError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tc.stage, ce.Stage)
		})
	}
}

func TestChainStepBadAmountFailsAtCalldata(t *testing.T) {
	p := &fakeProvider{accounts: []string{"0xabc"}, known: map[string]bool{"0x15b38": true}}
	choice := testChoice
	choice.Amount = 0

	_, err := newTestStep().Execute(context.Background(), p, choice)
	var ce *ChainError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, StageCalldata, ce.Stage)
	assert.NotContains(t, p.calls, "send")
}

func TestChainErrorExposesProviderCode(t *testing.T) {
	p := &fakeProvider{accounts: []string{"0xabc"}, known: map[string]bool{"0x15b38": true},
		sendErr: &ProviderError{Code: CodeUserRejected, Message: "denied"}}

	_, err := newTestStep().Execute(context.Background(), p, testChoice)
	var pe *ProviderError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, CodeUserRejected, pe.Code)
}
