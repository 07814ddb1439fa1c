package domain

// PredictionSubmission is the body posted to the prediction intake endpoint.
type PredictionSubmission struct {
	ChallengeID string  `json:"challengeId"`
	UserID      string  `json:"userId"`
	OptionID    string  `json:"optionId"`
	Amount      float64 `json:"amount"`
	TokenName   string  `json:"tokenName"`
}

// PredictionReceipt is the optional data block of a successful intake.
type PredictionReceipt struct {
	PredictionID string  `json:"predictionId"`
	Amount       float64 `json:"amount"`
	Odds         float64 `json:"odds"`
	TokenName    string  `json:"tokenName"`
}

// PredictionResponse is the intake endpoint's reply.
type PredictionResponse struct {
	Success bool               `json:"success"`
	Message string             `json:"message"`
	Data    *PredictionReceipt `json:"data,omitempty"`
}
