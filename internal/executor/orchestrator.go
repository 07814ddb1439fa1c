// Package executor runs the prediction flow a user starts by picking an
// option: wallet precondition, on-chain transaction, then the off-chain
// submission relay.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/notify"
	"github.com/alanyoungcy/predictlive/internal/wallet"
)

// WalletDetector confirms a provider is present in the page world of a tab.
type WalletDetector interface {
	Detect(ctx context.Context, tabID string) (wallet.DetectState, error)
}

// TxRunner asks the background to run the chain step for this tab.
type TxRunner interface {
	ExecuteTransaction(ctx context.Context, choice domain.PendingChoice) (domain.TxResult, error)
}

// PredictionRelay posts the off-chain submission. It never fails; transport
// errors come back as an unsuccessful response.
type PredictionRelay interface {
	SendPrediction(ctx context.Context, sub domain.PredictionSubmission) domain.PredictionResponse
}

// Alerter shows user-facing notifications.
type Alerter interface {
	Notify(ctx context.Context, n notify.Notification) error
}

// Config holds the per-tab parameters of an Orchestrator.
type Config struct {
	TabID           string
	UserID          string
	DuplicateWindow time.Duration
}

// Outcome keeps the chain result and the submission result apart: a
// confirmed transaction can still have a failed submission.
type Outcome struct {
	Choice      domain.PendingChoice
	Wallet      wallet.DetectState
	Chain       domain.TxResult
	ChainErr    error
	Submitted   bool
	Submission  domain.PredictionResponse
	SubmitErr   error
	CompletedAt time.Time
}

// ChainConfirmed reports whether the transaction was accepted by the wallet.
func (o Outcome) ChainConfirmed() bool {
	return o.ChainErr == nil && o.Chain.Success
}

// Err joins every failure of the flow, or nil.
func (o Outcome) Err() error {
	return errors.Join(o.ChainErr, o.SubmitErr)
}

// Orchestrator runs the three-step prediction flow for one content tab.
type Orchestrator struct {
	detector WalletDetector
	runner   TxRunner
	relay    PredictionRelay
	alerter  Alerter
	dedup    *Dedup
	cfg      Config
	logger   *slog.Logger

	cleanupInterval time.Duration
}

// NewOrchestrator creates an Orchestrator. alerter may be nil.
func NewOrchestrator(detector WalletDetector, runner TxRunner, relay PredictionRelay, alerter Alerter, cfg Config, logger *slog.Logger) *Orchestrator {
	if cfg.DuplicateWindow <= 0 {
		cfg.DuplicateWindow = 3 * time.Second
	}
	return &Orchestrator{
		detector:        detector,
		runner:          runner,
		relay:           relay,
		alerter:         alerter,
		dedup:           NewDedup(cfg.DuplicateWindow),
		cfg:             cfg,
		logger:          logger.With(slog.String("component", "orchestrator"), slog.String("tab", cfg.TabID)),
		cleanupInterval: 30 * time.Second,
	}
}

// Run prunes the duplicate guard until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.dedup.Cleanup()
		}
	}
}

func dedupKey(c domain.PendingChoice) string {
	return c.ChallengeID + "/" + c.OptionID
}

// Place runs the flow for choice. The returned error is the first failure
// (wrapping domain.ErrDuplicateSubmission, domain.ErrWalletUnavailable,
// domain.ErrChainInteraction or domain.ErrSubmission); the Outcome always
// describes how far the flow got.
func (o *Orchestrator) Place(ctx context.Context, choice domain.PendingChoice) (Outcome, error) {
	out := Outcome{Choice: choice, Wallet: wallet.Searching}
	log := o.logger.With(
		slog.String("challenge_id", choice.ChallengeID),
		slog.String("option_id", choice.OptionID),
	)

	key := dedupKey(choice)
	if !o.dedup.Begin(key) {
		log.Info("duplicate submission rejected")
		o.alert(ctx, notify.Notification{
			Event: notify.EventDuplicate, Level: notify.LevelInfo,
			Title: "Already submitted", Message: "This prediction is already being placed.",
		})
		return out, fmt.Errorf("executor: place: %w", domain.ErrDuplicateSubmission)
	}
	confirmed := false
	defer func() { o.dedup.Finish(key, confirmed) }()

	// 1. Wallet precondition.
	state, err := o.detector.Detect(ctx, o.cfg.TabID)
	out.Wallet = state
	if err != nil {
		out.ChainErr = err
		log.Warn("wallet unavailable", slog.String("error", err.Error()))
		o.alert(ctx, notify.Notification{
			Event: notify.EventWalletUnavailable, Level: notify.LevelError,
			Title: "Wallet not found", Message: "Install or unlock a browser wallet, then try again.",
		})
		return out, fmt.Errorf("executor: place: %w", err)
	}

	// 2. Chain interaction through the background.
	res, err := o.runner.ExecuteTransaction(ctx, choice)
	out.Chain = res
	if err == nil && !res.Success {
		err = fmt.Errorf("%w: %s", domain.ErrChainInteraction, res.Error)
	}
	if err != nil {
		if !errors.Is(err, domain.ErrChainInteraction) && !errors.Is(err, domain.ErrWalletUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrChainInteraction, err)
		}
		out.ChainErr = err
		log.Warn("chain step failed", slog.String("error", err.Error()))
		msg := res.Error
		if msg == "" {
			msg = err.Error()
		}
		o.alert(ctx, notify.Notification{
			Event: notify.EventChainFailed, Level: notify.LevelError,
			Title: "Transaction failed", Message: msg,
		})
		return out, fmt.Errorf("executor: place: %w", err)
	}
	confirmed = true
	log.Info("transaction sent", slog.String("tx_hash", res.TxHash))

	// 3. Off-chain submission relay.
	out.Submitted = true
	out.Submission = o.relay.SendPrediction(ctx, domain.PredictionSubmission{
		ChallengeID: choice.ChallengeID,
		UserID:      o.cfg.UserID,
		OptionID:    choice.OptionID,
		Amount:      choice.Amount,
		TokenName:   choice.TokenName,
	})
	out.CompletedAt = time.Now()

	if !out.Submission.Success {
		out.SubmitErr = fmt.Errorf("%w: %s", domain.ErrSubmission, out.Submission.Message)
		log.Warn("submission failed",
			slog.String("tx_hash", res.TxHash),
			slog.String("message", out.Submission.Message),
		)
		o.alert(ctx, notify.Notification{
			Event: notify.EventSubmissionFailed, Level: notify.LevelError,
			Title:   "Prediction not recorded",
			Message: fmt.Sprintf("Transaction %s was sent but the prediction was not saved: %s", res.TxHash, out.Submission.Message),
		})
		return out, fmt.Errorf("executor: place: %w", out.SubmitErr)
	}

	log.Info("prediction placed")
	o.alert(ctx, notify.Notification{
		Event: notify.EventPredictionPlaced, Level: notify.LevelSuccess,
		Title:   "Success!",
		Message: fmt.Sprintf("%g %s on %s", choice.Amount, choice.TokenName, choice.OptionKey),
	})
	return out, nil
}

func (o *Orchestrator) alert(ctx context.Context, n notify.Notification) {
	if o.alerter == nil {
		return
	}
	if err := o.alerter.Notify(ctx, n); err != nil {
		o.logger.Debug("notification relay failed", slog.String("error", err.Error()))
	}
}
