package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const maxModelResponseBytes = 1 << 20

// Responder turns a natural-language question into an answer.
type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

// ModelClient calls a hosted text-to-SQL model over HTTP. The endpoint takes
// {"data": [prompt]} and answers {"data": [text]} (Gradio's predict shape),
// {"response": text} or a bare JSON string.
type ModelClient struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewModelClient(endpoint, token string, timeout time.Duration) (*ModelClient, error) {
	if !isValidModelURL(endpoint) {
		return nil, fmt.Errorf("invalid model URL %q", endpoint)
	}
	return &ModelClient{
		endpoint: endpoint,
		token:    token,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

func (c *ModelClient) Respond(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{"data": []string{prompt}})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	start := time.Now()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		log.Error().
			Err(err).
			Dur("elapsed", elapsed).
			Msg("model request error")
		return "", fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		log.Error().
			Int("status", resp.StatusCode).
			Dur("elapsed", elapsed).
			Msg("model request failed")
		return "", fmt.Errorf("model failed with status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxModelResponseBytes))
	if err != nil {
		return "", fmt.Errorf("read model response: %w", err)
	}

	answer, err := parseModelAnswer(raw)
	if err != nil {
		return "", err
	}

	log.Info().
		Int("status", resp.StatusCode).
		Dur("elapsed", elapsed).
		Int("length", len(answer)).
		Msg("model answered")

	return answer, nil
}

func parseModelAnswer(raw []byte) (string, error) {
	var envelope struct {
		Data     []any  `json:"data"`
		Response string `json:"response"`
	}
	if err := json.Unmarshal(raw, &envelope); err == nil {
		if envelope.Response != "" {
			return strings.TrimSpace(envelope.Response), nil
		}
		if len(envelope.Data) > 0 {
			if s := strings.TrimSpace(fmt.Sprint(envelope.Data[0])); s != "" {
				return s, nil
			}
		}
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil && strings.TrimSpace(s) != "" {
		return strings.TrimSpace(s), nil
	}
	return "", fmt.Errorf("model returned no answer")
}

func isValidModelURL(rawURL string) bool {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	if parsed.Scheme != "https" && parsed.Scheme != "http" {
		return false
	}
	return parsed.Host != ""
}

// FallbackResponder answers with a structured template when no model is
// reachable.
type FallbackResponder struct{}

func (FallbackResponder) Respond(ctx context.Context, prompt string) (string, error) {
	return FallbackAnswer(prompt), nil
}

func FallbackAnswer(message string) string {
	intro := "The conversational model is not loaded right now, but I'm still here to help. " +
		"Here's a structured reply you can use:"
	return intro + "\n\n" +
		"1) I received your request:\n" +
		fmt.Sprintf("   \"%s\"\n\n", message) +
		"2) Suggested next steps:\n" +
		"- Confirm the database tables and columns involved.\n" +
		"- Identify any filters, ordering, or aggregations needed.\n" +
		"- Translate the above into SQL using the database's dialect.\n\n" +
		"3) Example prompt you can try once the model is ready:\n" +
		fmt.Sprintf("   \"Write a SQL query to address: %s\"", message)
}
