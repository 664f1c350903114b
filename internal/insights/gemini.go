package insights

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"google.golang.org/genai"
)

// GeminiGenerator asks a Gemini model through the Generative Language API.
type GeminiGenerator struct {
	client *genai.Client
	model  string
}

// NewGemini builds a generator for model. An empty endpoint uses the public
// API host.
func NewGemini(ctx context.Context, apiKey, model, endpoint string) (*GeminiGenerator, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    endpoint,
			APIVersion: "v1beta",
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}
	return &GeminiGenerator{client: client, model: model}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, system, prompt string, jsonMode bool) (string, error) {
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
	}
	if jsonMode {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("gemini: %w", err)
	}
	return resp.Text(), nil
}
