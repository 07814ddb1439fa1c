package notify

import (
	"context"
	"net/http"
)

// Embed colours per level.
var discordColors = map[Level]int{
	LevelInfo:    0x5865F2,
	LevelSuccess: 0x57F287,
	LevelError:   0xED4245,
}

// DiscordSender mirrors notifications to a Discord webhook as embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: senderTimeout},
	}
}

type discordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
}

type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

// Send posts n as a single embed. Discord replies 204 on success.
func (d *DiscordSender) Send(ctx context.Context, n Notification) error {
	return postJSON(ctx, d.client, "discord", d.webhookURL, discordPayload{
		Embeds: []discordEmbed{{
			Title:       prefix(n.Level) + n.Title,
			Description: n.Message,
			Color:       discordColors[n.Level],
		}},
	})
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
