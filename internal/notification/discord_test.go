package notification

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiscordSendsEmbeds(t *testing.T) {
	var received []DiscordMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg DiscordMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		received = append(received, msg)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	discord := NewDiscord(server.URL, server.URL)
	require.NoError(t, discord.SendDiscordErrorNotification("scene S2A_X: band B08 not found"))
	require.NoError(t, discord.SendDiscordSuccessNotification("3 scenes processed"))

	require.Len(t, received, 2)
	assert.Equal(t, colorRed, received[0].Embeds[0].Color)
	assert.Contains(t, received[0].Embeds[0].Description, "band B08 not found")
	assert.Equal(t, colorGreen, received[1].Embeds[0].Color)
	assert.Equal(t, "3 scenes processed", received[1].Embeds[0].Description)
}

func TestDiscordStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	err := NewDiscord(server.URL, "").SendDiscordErrorNotification("boom")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestDiscordDisabled(t *testing.T) {
	discord := NewDiscord("", "")
	assert.NoError(t, discord.SendDiscordErrorNotification("boom"))
	assert.NoError(t, discord.SendDiscordSuccessNotification("ok"))
}
