package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

type DiscordMessage struct {
	Embeds []DiscordEmbed `json:"embeds"`
}

type DiscordEmbed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Color       int    `json:"color"`
}

const (
	colorRed   = 16711680
	colorGreen = 65280
)

// Discord posts run outcomes to webhooks. An empty URL disables that kind of
// notification.
type Discord struct {
	errorURL   string
	successURL string
	client     *http.Client
}

func NewDiscord(errorURL, successURL string) *Discord {
	return &Discord{
		errorURL:   errorURL,
		successURL: successURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *Discord) SendDiscordErrorNotification(errorMessage string) error {
	return d.send(d.errorURL, DiscordEmbed{
		Title:       "🚨 Error Notification",
		Description: fmt.Sprintf("Index calculation failed.\n\n%s", errorMessage),
		Color:       colorRed,
	})
}

func (d *Discord) SendDiscordSuccessNotification(successMessage string) error {
	return d.send(d.successURL, DiscordEmbed{
		Title:       "✅ Success Notification",
		Description: successMessage,
		Color:       colorGreen,
	})
}

func (d *Discord) send(url string, embed DiscordEmbed) error {
	if url == "" {
		return nil
	}

	payload, err := json.Marshal(DiscordMessage{Embeds: []DiscordEmbed{embed}})
	if err != nil {
		return err
	}

	resp, err := d.client.Post(url, "application/json", bytes.NewBuffer(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to send Discord notification, status code: %d", resp.StatusCode)
	}

	return nil
}
