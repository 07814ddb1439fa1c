package widget

import (
	"time"

	"github.com/alanyoungcy/predictlive/internal/challenge"
	"github.com/alanyoungcy/predictlive/internal/domain"
	"github.com/alanyoungcy/predictlive/internal/notify"
	"github.com/alanyoungcy/predictlive/internal/wallet"
)

// OptionView is one selectable option as the card shows it.
type OptionView struct {
	ID          string  `json:"id"`
	Key         string  `json:"key"`
	Code        int     `json:"code"`
	DisplayName string  `json:"displayName"`
	TokenName   string  `json:"tokenName"`
	Odds        float64 `json:"odds"`
	Winner      bool    `json:"winner,omitempty"`
}

// Card is the render-ready state of the prediction card.
type Card struct {
	Channel    string                 `json:"channel"`
	StreamID   string                 `json:"streamId,omitempty"`
	Connection domain.ConnectionState `json:"-"`
	Status     string                 `json:"connection"`
	Live       bool                   `json:"live"`

	ChallengeID string                `json:"challengeId,omitempty"`
	Title       string                `json:"title,omitempty"`
	State       domain.ChallengeState `json:"state,omitempty"`
	Options     []OptionView          `json:"options,omitempty"`
	WinnerID    string                `json:"winnerId,omitempty"`

	Remaining time.Duration `json:"remaining"`
	Tier      string        `json:"tier,omitempty"`
	Label     string        `json:"label,omitempty"`

	Wallet   domain.WalletStatus `json:"wallet"`
	Busy     bool                `json:"busy"`
	Toasts   []notify.Toast      `json:"toasts,omitempty"`
	LastPing time.Time           `json:"lastSignal,omitempty"`
}

// Selectable reports whether options can be picked right now.
func (c Card) Selectable() bool {
	return c.ChallengeID != "" && c.State == domain.ChallengeOpen && !c.Busy
}

func optionViews(ch domain.Challenge) []OptionView {
	out := make([]OptionView, len(ch.Options))
	for i, o := range ch.Options {
		out[i] = OptionView{
			ID:          o.ID,
			Key:         o.Key,
			Code:        wallet.OptionCode(o.Key, i),
			DisplayName: o.DisplayName,
			TokenName:   o.TokenName,
			Odds:        o.Odds,
			Winner:      o.IsWinner,
		}
	}
	return out
}

// applyChallenge copies a challenge snapshot into the card.
func (c *Card) applyChallenge(ch domain.Challenge, now time.Time) {
	c.ChallengeID = ch.ID
	c.Title = ch.Title
	c.State = ch.State
	c.Options = optionViews(ch)
	c.WinnerID = ch.WinnerOptionID

	if ch.State != domain.ChallengeOpen {
		c.Remaining = 0
		c.Label = challenge.ClosedLabel
		c.Tier = challenge.TierCritical.String()
		return
	}
	remaining := ch.ClosingAt.Sub(now)
	c.Remaining = max(remaining, 0)
	c.Label = challenge.Label(remaining)
	c.Tier = challenge.TierFor(remaining, ch.Duration()).String()
}

func (c *Card) clearChallenge() {
	c.ChallengeID = ""
	c.Title = ""
	c.State = ""
	c.Options = nil
	c.WinnerID = ""
	c.Remaining = 0
	c.Tier = ""
	c.Label = ""
}

func (c *Card) applyTick(t challenge.Tick) {
	// A tick computed before a close or resolve can land after it.
	if t.ChallengeID != c.ChallengeID || c.State != domain.ChallengeOpen {
		return
	}
	c.Remaining = max(t.Remaining, 0)
	c.Label = t.Label
	c.Tier = t.Tier.String()
}
