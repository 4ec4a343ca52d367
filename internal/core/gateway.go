package core

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const (
	systemInstruction = "You are a helpful AI assistant focused on data analysis, Excel, SQL, and automation."

	maxResponseBytes = 10 * 1024 * 1024
)

// Gateway sends one question to a completion provider and returns the raw
// answer text. Exactly one provider request is made per call.
type Gateway interface {
	Complete(ctx context.Context, question string) (string, error)
}

type OpenRouterConfig struct {
	APIKey   string
	URL      string
	Model    string
	SiteURL  string
	SiteName string
	Timeout  time.Duration
}

// OpenRouterGateway talks to an OpenAI-compatible chat completions endpoint.
type OpenRouterGateway struct {
	apiKey     string
	url        string
	model      string
	siteURL    string
	siteName   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *zap.Logger
}

func NewOpenRouterGateway(cfg OpenRouterConfig, logger *zap.Logger) *OpenRouterGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenRouterGateway{
		apiKey:     cfg.APIKey,
		url:        cfg.URL,
		model:      cfg.Model,
		siteURL:    cfg.SiteURL,
		siteName:   cfg.SiteName,
		timeout:    cfg.Timeout,
		httpClient: &http.Client{},
		logger:     logger,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content *string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (g *OpenRouterGateway) Complete(ctx context.Context, question string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	payload, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemInstruction},
			{Role: "user", Content: question},
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)
	if g.siteURL != "" {
		req.Header.Set("HTTP-Referer", g.siteURL)
	}
	if g.siteName != "" {
		req.Header.Set("X-Title", g.siteName)
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", fmt.Errorf("%w: failed to read response: %w", ErrTransport, err)
	}

	g.logger.Debug("completion response",
		zap.String("model", g.model),
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode != http.StatusOK {
		return "", &ProviderError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}
	if parsed.Error != nil {
		code := parsed.Error.Code
		if code == 0 {
			code = resp.StatusCode
		}
		return "", &ProviderError{StatusCode: code, Body: parsed.Error.Message}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == nil {
		return "", fmt.Errorf("%w: no choices[0].message.content", ErrMalformedResponse)
	}
	return *parsed.Choices[0].Message.Content, nil
}
