package server

import (
	"context"
	"errors"
	"log"
	"strings"
)

// ResponseGenerator owns the invocation strategy against the generation
// backend: a contextual multi-turn primary path and a context-free
// single-shot fallback. It fails only when both are exhausted.
type ResponseGenerator struct {
	client GenerationClient
}

func NewResponseGenerator(client GenerationClient) *ResponseGenerator {
	return &ResponseGenerator{client: client}
}

// Generate produces a reply for the given conversation window. conversation
// holds user/assistant turns only (oldest first, last turn is the live user
// message); briefing, when non-empty, is the health-context system framing.
func (g *ResponseGenerator) Generate(ctx context.Context, conversation []Message, briefing string) (string, error) {
	system := briefing
	if strings.TrimSpace(system) == "" {
		system = defaultPersonaPrompt
	}

	reply, err := g.generateContextual(ctx, conversation, system)
	if err != nil {
		log.Printf("contextual generation failed, trying direct fallback: %v", err)
		reply, err = g.generateDirectFallback(ctx, conversation)
		if err != nil {
			return "", err
		}
	}

	if strings.TrimSpace(reply) == "" {
		return defaultApology, nil
	}
	return strings.TrimSpace(reply), nil
}

// generateContextual is the primary strategy: the system instruction is
// folded into the first user turn (the backend has no system-turn concept),
// user turns map to the backend's "user" role and assistant turns to "model".
func (g *ResponseGenerator) generateContextual(ctx context.Context, conversation []Message, system string) (string, error) {
	turns := make([]GenerationTurn, 0, len(conversation))
	prefixed := false
	for _, msg := range conversation {
		switch msg.Role {
		case roleUser:
			content := msg.Content
			if !prefixed {
				content = systemPrefixedTurn(system, msg.Content)
				prefixed = true
			}
			turns = append(turns, GenerationTurn{Role: "user", Content: content})
		case roleAssistant:
			turns = append(turns, GenerationTurn{Role: "model", Content: msg.Content})
		}
	}
	if !prefixed {
		return "", errors.New("no user message found to generate a response for")
	}

	// A lone user turn needs no dialogue state; one direct call is cheaper
	// and avoids the empty-history edge case.
	if len(turns) == 1 && turns[0].Role == "user" {
		return g.client.GenerateText(ctx, turns[0].Content)
	}
	return g.client.GenerateChat(ctx, turns)
}

// generateDirectFallback drops the conversation history and asks one
// self-contained question built from the most recent user message. Degraded
// but still on-topic.
func (g *ResponseGenerator) generateDirectFallback(ctx context.Context, conversation []Message) (string, error) {
	var lastUser string
	for i := len(conversation) - 1; i >= 0; i-- {
		if conversation[i].Role == roleUser {
			lastUser = conversation[i].Content
			break
		}
	}
	if strings.TrimSpace(lastUser) == "" {
		return "", errors.New("no user message found to generate a response for")
	}
	return g.client.GenerateText(ctx, directFallbackPrompt(lastUser))
}
