package answer

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/calicogames/lorechat/internal/observability"
)

const loreSystemPrompt = "You are the keeper of the game's lore. Answer questions " +
	"about the world, its factions and its history accurately and concisely. " +
	"If a question falls outside the lore, say so instead of inventing an answer."

// VertexClient answers questions by calling Gemini on Vertex AI directly,
// bypassing the external answering endpoint. It satisfies the same
// contract as HTTPClient: failures become fallback reply strings.
type VertexClient struct {
	client    *genai.Client
	modelName string
}

func NewVertexClient(ctx context.Context, projectID, location, modelName string) (*VertexClient, error) {
	if projectID == "" || location == "" {
		return nil, fmt.Errorf("projectID and location are required for the Vertex answering client")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Project:  projectID,
		Location: location,
		Backend:  genai.BackendVertexAI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating Vertex AI client: %w", err)
	}

	return &VertexClient{
		client:    client,
		modelName: modelName,
	}, nil
}

func (v *VertexClient) Ask(ctx context.Context, query string) string {
	temp := float32(0.7)
	topP := float32(0.9)
	outputTokens := int32(8192)

	cfg := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(loreSystemPrompt, genai.RoleUser),
		Temperature:       &temp,
		TopP:              &topP,
		MaxOutputTokens:   outputTokens,
	}

	contents := []*genai.Content{
		genai.NewContentFromText(query, genai.RoleUser),
	}

	res, err := v.client.Models.GenerateContent(ctx, v.modelName, contents, cfg)
	if err != nil {
		observability.LoggerFromContext(ctx).Error("vertex generate content failed", "error", err)
		return failureReply(err.Error())
	}

	text := res.Text()
	if text == "" {
		return genericFallback
	}
	return text
}
