package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Synthesize converts text to audio through the speech-synthesis API and
// returns the raw bytes with their content type. The call is audit-logged
// like every other outbound request, keyed by the message being read
// aloud.
func (c *Client) Synthesize(ctx context.Context, text, model, voice string, messageID *string) ([]byte, string, error) {
	if model == "" {
		model = "tts-1"
	}
	if voice == "" {
		voice = "alloy"
	}

	payload, err := json.Marshal(map[string]string{
		"model": model,
		"voice": voice,
		"input": text,
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to serialize json payload: %w", err)
	}

	resp, contentType, err := c.Speech(ctx, payload, messageID)
	if err != nil {
		return nil, "", err
	}
	if resp.StatusCode != 200 {
		return nil, "", fmt.Errorf("speech synthesis failed with status %d", resp.StatusCode)
	}

	log.Info().Int("size", len(resp.Body)).Msg("Got a voice file")
	return resp.Body, contentType, nil
}
