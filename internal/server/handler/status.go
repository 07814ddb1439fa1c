package handler

import (
	"net/http"

	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/widget"
)

// CardSource exposes the current prediction card.
type CardSource interface {
	Snapshot() widget.Card
}

// WalletSource exposes the background's wallet status.
type WalletSource interface {
	Status() domain.WalletStatus
}

// StatusHandler reports what the widget is doing.
type StatusHandler struct {
	Mode   string
	card   CardSource
	wallet WalletSource
}

// NewStatusHandler creates a StatusHandler. card may be nil when no stream
// is followed.
func NewStatusHandler(mode string, card CardSource, wallet WalletSource) *StatusHandler {
	return &StatusHandler{Mode: mode, card: card, wallet: wallet}
}

// GetStatus responds with the session, challenge and wallet summary.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"mode": h.Mode,
	}
	if h.wallet != nil {
		out["wallet"] = h.wallet.Status()
	}
	if h.card != nil {
		c := h.card.Snapshot()
		out["channel"] = c.Channel
		out["stream_id"] = c.StreamID
		out["connection"] = c.Status
		out["live"] = c.Live
		out["challenge_id"] = c.ChallengeID
		out["challenge_state"] = c.State
		out["countdown"] = c.Label
		out["tier"] = c.Tier
	}
	writeJSON(w, http.StatusOK, out)
}
