package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/executor"
	"github.com/alanyoungcy/predictlive/internal/widget"
)

// Card is the widget surface the gateway drives.
type Card interface {
	CardSource
	Select(ctx context.Context, optionID string, amount float64) (executor.Outcome, error)
	Reconnect(ctx context.Context) (bool, error)
}

// CardHandler serves the prediction card.
type CardHandler struct {
	card   Card
	logger *slog.Logger
}

// NewCardHandler creates a CardHandler.
func NewCardHandler(card Card, logger *slog.Logger) *CardHandler {
	return &CardHandler{card: card, logger: logHandler(logger, "card")}
}

// GetCard returns the render-ready card.
// GET /api/card
func (h *CardHandler) GetCard(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.card.Snapshot())
}

type selectRequest struct {
	OptionID string  `json:"optionId"`
	Amount   float64 `json:"amount"`
}

type outcomeResponse struct {
	OptionID      string                     `json:"optionId"`
	Chain         domain.TxResult            `json:"chain"`
	Submitted     bool                       `json:"submitted"`
	Submission    *domain.PredictionResponse `json:"submission,omitempty"`
	Error         string                     `json:"error,omitempty"`
	WalletPending bool                       `json:"walletPending,omitempty"`
}

// Select picks an option of the live challenge.
// POST /api/card/select
func (h *CardHandler) Select(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if err := decodeJSON(w, r, &req); err != nil {
		badRequest(w, err)
		return
	}
	if req.OptionID == "" {
		writeError(w, http.StatusBadRequest, "optionId is required")
		return
	}

	out, err := h.card.Select(r.Context(), req.OptionID, req.Amount)
	resp := outcomeResponse{
		OptionID:  req.OptionID,
		Chain:     out.Chain,
		Submitted: out.Submitted,
	}
	if out.Submitted {
		resp.Submission = &out.Submission
	}
	if err == nil {
		writeJSON(w, http.StatusOK, resp)
		return
	}

	resp.Error = err.Error()
	status := http.StatusBadGateway
	switch {
	case errors.Is(err, widget.ErrWalletRequired):
		resp.WalletPending = true
		status = http.StatusAccepted
	case errors.Is(err, widget.ErrNoChallenge):
		status = http.StatusConflict
	case errors.Is(err, widget.ErrUnknownOption):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrDuplicateSubmission):
		status = http.StatusTooManyRequests
	case errors.Is(err, domain.ErrWalletUnavailable):
		status = http.StatusPreconditionFailed
	}
	h.logger.Info("select failed",
		slog.String("option_id", req.OptionID),
		slog.Int("status", status),
		slog.String("error", err.Error()),
	)
	writeJSON(w, status, resp)
}

// Reconnect reopens the realtime session.
// POST /api/card/reconnect
func (h *CardHandler) Reconnect(w http.ResponseWriter, r *http.Request) {
	if err := requireJSON(r); err != nil {
		badRequest(w, err)
		return
	}
	live, err := h.card.Reconnect(r.Context())
	if err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"live": live})
}
