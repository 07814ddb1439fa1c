package domain

// WalletStatus is owned by the background coordinator; every other context
// only holds a cached copy.
type WalletStatus struct {
	IsConnected bool   `json:"isConnected"`
	Address     string `json:"address"`
}

// PendingChoice is the option a user picked before a wallet was connected.
// The background keeps it until the popup reads it once.
type PendingChoice struct {
	ChallengeID string  `json:"challengeId"`
	OptionID    string  `json:"optionId"`
	OptionKey   string  `json:"optionKey"`
	OptionCode  int     `json:"optionCode"`
	TokenName   string  `json:"tokenName"`
	Amount      float64 `json:"amount"`
}

// TxResult is what the page-world transaction function reports back.
type TxResult struct {
	Success bool   `json:"success"`
	TxHash  string `json:"txHash,omitempty"`
	Error   string `json:"error,omitempty"`
}
