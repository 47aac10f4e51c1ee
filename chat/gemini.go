package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const DefaultGeminiModel = "gemini-2.0-flash"

type GeminiConfig struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64
}

// Gemini answers through the Google GenAI SDK.
type Gemini struct {
	cfg    GeminiConfig
	client *genai.Client
}

// NewGemini builds a client. An empty key yields a backend that always
// reports ErrNotConfigured.
func NewGemini(ctx context.Context, cfg GeminiConfig) (*Gemini, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	g := &Gemini{cfg: cfg}
	if cfg.APIKey == "" {
		return g, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("chat: create genai client: %w", err)
	}
	g.client = client

	return g, nil
}

func (g *Gemini) Complete(ctx context.Context, req Request) (string, error) {
	if g.client == nil {
		return "", ErrNotConfigured
	}

	contents := make([]*genai.Content, 0, 2*len(req.History)+1)
	for _, t := range req.History {
		if t.User != "" {
			contents = append(contents, genai.NewContentFromText(t.User, genai.RoleUser))
		}
		if t.Assistant != "" {
			contents = append(contents, genai.NewContentFromText(t.Assistant, genai.RoleModel))
		}
	}
	contents = append(contents, genai.NewContentFromText(req.Question, genai.RoleUser))

	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(req.System, genai.RoleUser),
		Temperature:       genai.Ptr(float32(g.cfg.Temperature)),
	}
	if g.cfg.MaxTokens > 0 {
		config.MaxOutputTokens = int32(g.cfg.MaxTokens)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.cfg.Model, contents, config)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", &StatusError{Code: apiErr.Code, Body: apiErr.Status + ": " + apiErr.Message}
		}
		return "", fmt.Errorf("chat: genai generate: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("chat: no completion returned")
	}

	return text, nil
}
