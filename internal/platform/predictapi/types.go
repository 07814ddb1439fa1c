package predictapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alanyoungcy/predictlive/internal/domain"
)

// Push frame tags.
const (
	TagConnected         = "connected"
	TagChallengeNew      = "challenge:new"
	TagChallengeWinner   = "challenge:winner"
	TagChallengeUpdate   = "challenge:update"
	TagChallengeClosed   = "challenge:closed"
	TagChallengeResolved = "challenge:resolved"
	TagTest              = "test"
	TagPing              = "ping"
	TagDiagnostic        = "diagnostic"
)

// Frame is one push message: a tag and its raw payload.
type Frame struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
	// Payload is the older envelope key; Data wins when both are present.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Body returns whichever payload key the frame carried.
func (f Frame) Body() json.RawMessage {
	if len(f.Data) > 0 && !bytes.Equal(f.Data, []byte("null")) {
		return f.Data
	}
	return f.Payload
}

// DecodeFrame parses a raw push message. event is the SSE event name, used as
// the tag when the JSON body does not name one.
func DecodeFrame(event string, raw []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return Frame{}, fmt.Errorf("predictapi: decode frame: %w", err)
	}
	if f.Type == "" {
		f.Type = event
	}
	if f.Type == "" {
		return Frame{}, fmt.Errorf("predictapi: decode frame: missing type")
	}
	return f, nil
}

// --------------------------------------------------------------------------
// REST bodies
// --------------------------------------------------------------------------

type lookupResponse struct {
	ID string `json:"id"`
}

type statusResponse struct {
	Open            *bool  `json:"open"`
	HasActiveStream *bool  `json:"hasActiveStream"`
	StreamID        string `json:"streamId"`
	StreamIDSnake   string `json:"stream_id"`
}

func (s statusResponse) toDomain(requested string) domain.StreamStatus {
	out := domain.StreamStatus{StreamID: first(s.StreamID, s.StreamIDSnake, requested)}
	switch {
	case s.Open != nil:
		out.Open = *s.Open
	case s.HasActiveStream != nil:
		out.Open = *s.HasActiveStream
	}
	return out
}

// --------------------------------------------------------------------------
// Challenge payloads
// --------------------------------------------------------------------------

// ChallengePayload is the body of a creation frame. Keys are snake_case;
// camelCase spellings are accepted too.
type ChallengePayload struct {
	ID           string          `json:"id"`
	StreamID     string          `json:"stream_id"`
	StreamIDAlt  string          `json:"streamId"`
	Title        string          `json:"title"`
	State        string          `json:"state"`
	CreatedAt    flexTime        `json:"created_at"`
	CreatedAtAlt flexTime        `json:"createdAt"`
	StartedAt    flexTime        `json:"startedAt"`
	ClosingAt    flexTime        `json:"closing_at"`
	ClosingAtAlt flexTime        `json:"closingAt"`
	Options      []OptionPayload `json:"options"`
}

// OptionPayload is one option inside a creation frame.
type OptionPayload struct {
	ID             string   `json:"id"`
	ChallengeID    string   `json:"challenge_id"`
	ChallengeIDAlt string   `json:"challengeId"`
	OptionKey      string   `json:"option_key"`
	OptionKeyAlt   string   `json:"optionKey"`
	DisplayName    string   `json:"display_name"`
	DisplayNameAlt string   `json:"displayName"`
	TokenName      string   `json:"token_name"`
	TokenNameAlt   string   `json:"tokenName"`
	Odds           *float64 `json:"odds"`
}

// WinnerPayload is the body of a winner broadcast.
type WinnerPayload struct {
	ChallengeID      string   `json:"challenge_id"`
	ChallengeIDAlt   string   `json:"challengeId"`
	ID               string   `json:"id"`
	WinnerOptionID   string   `json:"winner_option_id"`
	WinnerOptionAlt  string   `json:"winnerOptionId"`
	WinningOptionIDs []string `json:"winning_option_ids"`
	Winner           *struct {
		ID string `json:"id"`
	} `json:"winner"`
}

// StatePayload is the body of an explicit state update.
type StatePayload struct {
	ChallengeID    string `json:"challenge_id"`
	ChallengeIDAlt string `json:"challengeId"`
	ID             string `json:"id"`
	State          string `json:"state"`
}

// DecodeChallenge converts a creation payload into a domain challenge. A
// missing closing time falls back to created+window; a missing creation time
// falls back to now.
func DecodeChallenge(raw json.RawMessage, window time.Duration, now time.Time) (domain.Challenge, error) {
	var p ChallengePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return domain.Challenge{}, fmt.Errorf("predictapi: decode challenge: %w", err)
	}
	if p.ID == "" {
		return domain.Challenge{}, fmt.Errorf("predictapi: decode challenge: %w: missing id", domain.ErrInvalidChallenge)
	}

	created := firstTime(p.CreatedAt, p.CreatedAtAlt, p.StartedAt)
	if created.IsZero() {
		created = now
	}
	closing := firstTime(p.ClosingAt, p.ClosingAtAlt)
	if closing.IsZero() {
		closing = created.Add(window)
	}

	state := domain.ChallengeState(strings.ToLower(p.State))
	if !state.Valid() {
		state = domain.ChallengeOpen
	}

	c := domain.Challenge{
		ID:        p.ID,
		StreamID:  first(p.StreamID, p.StreamIDAlt),
		Title:     p.Title,
		State:     state,
		CreatedAt: created,
		ClosingAt: closing,
		Options:   make([]domain.ChallengeOption, 0, len(p.Options)),
	}
	for _, o := range p.Options {
		opt := domain.ChallengeOption{
			ID:          o.ID,
			ChallengeID: first(o.ChallengeID, o.ChallengeIDAlt, p.ID),
			Key:         first(o.OptionKey, o.OptionKeyAlt),
			DisplayName: first(o.DisplayName, o.DisplayNameAlt),
			TokenName:   first(o.TokenName, o.TokenNameAlt),
		}
		if o.Odds != nil {
			opt.Odds = *o.Odds
		}
		c.Options = append(c.Options, opt)
	}
	return c, nil
}

// DecodeWinner returns the challenge id and the winning option ids. The ids
// may be empty when the broadcast names none.
func DecodeWinner(raw json.RawMessage) (string, []string, error) {
	var p WinnerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", nil, fmt.Errorf("predictapi: decode winner: %w", err)
	}
	id := first(p.ChallengeID, p.ChallengeIDAlt, p.ID)
	if id == "" {
		return "", nil, fmt.Errorf("predictapi: decode winner: missing challenge id")
	}

	var winners []string
	seen := make(map[string]bool)
	add := func(v string) {
		if v != "" && !seen[v] {
			seen[v] = true
			winners = append(winners, v)
		}
	}
	add(p.WinnerOptionID)
	add(p.WinnerOptionAlt)
	for _, w := range p.WinningOptionIDs {
		add(w)
	}
	if p.Winner != nil {
		add(p.Winner.ID)
	}
	return id, winners, nil
}

// DecodeState returns the challenge id and target state of an update frame.
// fallback is used when the payload omits the state (closed/resolved tags).
func DecodeState(raw json.RawMessage, fallback domain.ChallengeState) (string, domain.ChallengeState, error) {
	var p StatePayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", "", fmt.Errorf("predictapi: decode state: %w", err)
	}
	id := first(p.ChallengeID, p.ChallengeIDAlt, p.ID)
	if id == "" {
		return "", "", fmt.Errorf("predictapi: decode state: missing challenge id")
	}
	state := domain.ChallengeState(strings.ToLower(p.State))
	if p.State == "" {
		state = fallback
	}
	if !state.Valid() {
		return "", "", fmt.Errorf("predictapi: decode state: unknown state %q", p.State)
	}
	return id, state, nil
}

// --------------------------------------------------------------------------
// Helpers
// --------------------------------------------------------------------------

// flexTime accepts RFC 3339 strings and unix timestamps (seconds or
// milliseconds).
type flexTime struct {
	time.Time
}

func (t *flexTime) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unquoted, err := strconv.Unquote(s)
		if err != nil {
			return fmt.Errorf("predictapi: time: %w", err)
		}
		if n, err := strconv.ParseInt(unquoted, 10, 64); err == nil {
			t.Time = fromUnix(n)
			return nil
		}
		parsed, err := time.Parse(time.RFC3339Nano, unquoted)
		if err != nil {
			return fmt.Errorf("predictapi: time %q: %w", unquoted, err)
		}
		t.Time = parsed
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("predictapi: time %s: %w", s, err)
	}
	t.Time = fromUnix(int64(f))
	return nil
}

func fromUnix(n int64) time.Time {
	if n > 1e12 {
		return time.UnixMilli(n).UTC()
	}
	return time.Unix(n, 0).UTC()
}

func firstTime(ts ...flexTime) time.Time {
	for _, t := range ts {
		if !t.IsZero() {
			return t.Time
		}
	}
	return time.Time{}
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
