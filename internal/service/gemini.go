package service

import (
	"context"
	"fmt"
	"log"
	"time"

	"google.golang.org/genai"
)

// ChatClient abstracts the assistant backend so quota logic can be tested
// without network calls.
type ChatClient interface {
	Generate(ctx context.Context, message string) (string, error)
}

// GeminiClient answers reader questions using Google's Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a chat client backed by the Gemini API.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	if model == "" {
		model = "gemini-2.0-flash"
	}

	ctx := context.Background()
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey: apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &GeminiClient{
		client: client,
		model:  model,
	}, nil
}

// Generate sends the reader's message and returns the assistant reply text.
func (c *GeminiClient) Generate(ctx context.Context, message string) (string, error) {
	startTime := time.Now()

	contents := []*genai.Content{
		genai.NewContentFromText(message, genai.RoleUser),
	}

	result, err := c.client.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("Gemini generate failed: %w", err)
	}

	reply := result.Text()
	if reply == "" {
		return "", fmt.Errorf("Gemini returned an empty reply")
	}

	log.Printf("[GeminiClient] Generate OK: model=%s duration=%v", c.model, time.Since(startTime))
	return reply, nil
}
