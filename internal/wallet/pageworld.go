package wallet

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// PageWorld stands in for the page scripts of each open tab: the place where
// a wallet provider lives and where the transaction is actually executed.
// Providers may register late, after the tab has opened.
type PageWorld struct {
	step    *ChainStep
	timeout time.Duration
	logger  *slog.Logger

	mu        sync.RWMutex
	providers map[string]Provider
}

// NewPageWorld creates an empty registry. timeout bounds each transaction.
func NewPageWorld(step *ChainStep, timeout time.Duration, logger *slog.Logger) *PageWorld {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &PageWorld{
		step:      step,
		timeout:   timeout,
		logger:    logger.With(slog.String("component", "page_world")),
		providers: make(map[string]Provider),
	}
}

// Register exposes p in tabID's page.
func (w *PageWorld) Register(tabID string, p Provider) {
	w.mu.Lock()
	w.providers[tabID] = p
	w.mu.Unlock()
}

// Unregister removes the provider of tabID.
func (w *PageWorld) Unregister(tabID string) {
	w.mu.Lock()
	delete(w.providers, tabID)
	w.mu.Unlock()
}

// HasProvider implements Probe.
func (w *PageWorld) HasProvider(tabID string) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	_, ok := w.providers[tabID]
	return ok
}

// Provider returns the provider registered for tabID.
func (w *PageWorld) Provider(tabID string) (Provider, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	p, ok := w.providers[tabID]
	return p, ok
}

// ExecuteTransaction runs the chain step inside tabID's page with the
// transaction timeout applied.
func (w *PageWorld) ExecuteTransaction(ctx context.Context, tabID string, choice domain.PendingChoice) (domain.TxResult, error) {
	p, ok := w.Provider(tabID)
	if !ok {
		err := fmt.Errorf("wallet: execute in tab %s: %w", tabID, domain.ErrWalletUnavailable)
		return domain.TxResult{Success: false, Error: err.Error()}, err
	}

	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()

	res, err := w.step.Execute(ctx, p, choice)
	if err != nil {
		w.logger.Warn("transaction failed",
			slog.String("tab", tabID),
			slog.String("challenge_id", choice.ChallengeID),
			slog.String("error", err.Error()),
		)
	}
	return res, err
}
