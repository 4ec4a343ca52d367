package core

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/googleapis/gax-go/v2/apierror"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// GeminiGateway answers questions with a Gemini model.
type GeminiGateway struct {
	client  *genai.Client
	model   string
	timeout time.Duration
	logger  *zap.Logger
}

func NewGeminiGateway(ctx context.Context, apiKey, model string, timeout time.Duration, logger *zap.Logger, opts ...option.ClientOption) (*GeminiGateway, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	opts = append([]option.ClientOption{option.WithAPIKey(apiKey)}, opts...)
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GeminiGateway{
		client:  client,
		model:   model,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (g *GeminiGateway) Close() {
	if g.client != nil {
		if err := g.client.Close(); err != nil {
			g.logger.Warn("error closing GenAI client", zap.Error(err))
		}
	}
}

func (g *GeminiGateway) Complete(ctx context.Context, question string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	model := g.client.GenerativeModel(g.model)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	resp, err := model.GenerateContent(ctx, genai.Text(question))
	if err != nil {
		return "", classifyGeminiError(err)
	}

	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no candidates in gemini response", ErrMalformedResponse)
	}

	var responseText strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			responseText.WriteString(string(txt))
		} else {
			g.logger.Debug("skipping non-text gemini part", zap.String("type", fmt.Sprintf("%T", part)))
		}
	}
	if responseText.Len() == 0 {
		return "", fmt.Errorf("%w: gemini response had no text parts", ErrMalformedResponse)
	}
	return responseText.String(), nil
}

func classifyGeminiError(err error) error {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return fmt.Errorf("%w: %w", ErrMalformedResponse, err)
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPCode() > 0 {
		return &ProviderError{StatusCode: apiErr.HTTPCode(), Body: apiErr.Error()}
	}

	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		body := gErr.Message
		if body == "" {
			body = gErr.Body
		}
		return &ProviderError{StatusCode: gErr.Code, Body: body}
	}

	return fmt.Errorf("%w: %w", ErrTransport, err)
}
