package ai

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/anochat/internal/chat"
)

// Model generation and tool execution can take a while, so round-trips to
// the completion API block for up to this long.
const defaultTimeout = 10 * time.Minute

// Auditor persists one audit record per outbound API call.
type Auditor interface {
	InsertHTTPRequestLog(ctx context.Context, entry chat.HTTPRequestLog) error
}

// Client talks to the external completion and speech-synthesis APIs. Every
// call is recorded through the Auditor with its full request and response
// bodies, keyed by the message that triggered it, regardless of outcome.
type Client struct {
	APIURL  string
	TTSURL  string
	APIKey  string
	Auditor Auditor

	HTTPClient *http.Client
}

// NewClient creates a client for the given endpoints.
func NewClient(apiURL, ttsURL, apiKey string, auditor Auditor) *Client {
	return &Client{
		APIURL:     apiURL,
		TTSURL:     ttsURL,
		APIKey:     apiKey,
		Auditor:    auditor,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
	}
}

// Response is the raw outcome of one API round-trip.
type Response struct {
	StatusCode int
	Body       []byte
}

// Complete POSTs a serialized conversation payload to the completion API.
// A non-nil error means the request never completed; a non-200 status is
// returned to the caller to decide on, not turned into an error here.
func (c *Client) Complete(ctx context.Context, payload []byte, messageID *string) (*Response, error) {
	resp, _, err := c.do(ctx, c.APIURL, payload, messageID)
	return resp, err
}

// Speech POSTs a speech-synthesis request and returns the raw audio bytes
// on 200 (body) together with the response content type.
func (c *Client) Speech(ctx context.Context, payload []byte, messageID *string) (*Response, string, error) {
	return c.do(ctx, c.TTSURL, payload, messageID)
}

func (c *Client) do(ctx context.Context, url string, payload []byte, messageID *string) (*Response, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	start := time.Now()
	httpResp, err := c.HTTPClient.Do(req)
	duration := time.Since(start)
	if err != nil {
		c.audit(ctx, chat.HTTPRequestLog{
			MessageID:       messageID,
			URL:             url,
			DurationMS:      duration.Milliseconds(),
			RequestContent:  string(payload),
			ResponseContent: err.Error(),
		})
		return nil, "", fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read response body: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		log.Debug().Str("url", url).Int("status", httpResp.StatusCode).
			Str("request_content", string(payload)).Msg("AI request failed")
	}

	c.audit(ctx, chat.HTTPRequestLog{
		MessageID:       messageID,
		URL:             url,
		DurationMS:      duration.Milliseconds(),
		StatusCode:      httpResp.StatusCode,
		RequestContent:  string(payload),
		ResponseHeaders: flattenHeaders(httpResp.Header),
		ResponseContent: auditBody(httpResp.Header.Get("Content-Type"), body),
	})

	return &Response{StatusCode: httpResp.StatusCode, Body: body},
		httpResp.Header.Get("Content-Type"), nil
}

func (c *Client) audit(ctx context.Context, entry chat.HTTPRequestLog) {
	if err := c.Auditor.InsertHTTPRequestLog(ctx, entry); err != nil {
		log.Error().Err(err).Str("url", entry.URL).Msg("Failed to store HTTP request audit log")
	}
}

func flattenHeaders(h http.Header) string {
	keys := make([]string, 0, len(h))
	for k := range h {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s: %s\n", k, strings.Join(h[k], ", "))
	}
	return b.String()
}

// auditBody keeps binary payloads (audio) out of the audit table.
func auditBody(contentType string, body []byte) string {
	if strings.HasPrefix(contentType, "audio/") ||
		strings.HasPrefix(contentType, "application/octet-stream") {
		return fmt.Sprintf("<%d bytes of %s>", len(body), contentType)
	}
	return string(body)
}
