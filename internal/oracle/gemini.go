// Package oracle provides the Gemini-backed relevance classifier used as the
// second stage of the smart filter.
package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"newswatch_bot/internal/filter"
)

// DefaultModel is used when no model name is configured.
const DefaultModel = "gemini-2.0-flash"

// The answer budget is tiny on purpose: the prompt asks for a single word.
const maxAnswerTokens = 8

var _ filter.Oracle = (*Gemini)(nil)

// Gemini implements filter.Oracle on the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates a Gemini oracle with the given API key and model name.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// Classify asks the model whether the message is genuinely about the keyword
// in a news context. The caller is responsible for the timeout on ctx.
func (g *Gemini) Classify(ctx context.Context, keyword, message, channelContext string) (string, error) {
	prompt := fmt.Sprintf(
		"Is this message genuinely about %q in a news context? Answer with one word, YES or NO.\n\n"+
			"Channel: %s\nMessage: %s",
		keyword, channelContext, message,
	)

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt),
		&genai.GenerateContentConfig{
			Temperature:     genai.Ptr[float32](0),
			MaxOutputTokens: maxAnswerTokens,
		})
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return resp.Text(), nil
}
