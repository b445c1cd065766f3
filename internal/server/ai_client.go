package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/ishiiii10/health-spark-chat/internal/config"
)

// Closed set of generation-backend failure causes. Classification happens
// once, here at the adapter boundary; callers only ever check these with
// errors.Is and never inspect provider error text again.
var (
	ErrQuotaExceeded      = errors.New("generation backend quota exceeded")
	ErrInvalidCredentials = errors.New("generation backend rejected credentials")
)

// GenerationTurn is one backend-native dialogue turn. Role is "user" or
// "model" (the backend's name for the assistant side).
type GenerationTurn struct {
	Role    string
	Content string
}

// GenerationClient is the opaque generate(prompt-or-history) -> text
// capability. Implementations must return ErrQuotaExceeded or
// ErrInvalidCredentials (wrapped) when the backend signals those causes.
type GenerationClient interface {
	GenerateChat(ctx context.Context, turns []GenerationTurn) (string, error)
	GenerateText(ctx context.Context, prompt string) (string, error)
}

type GeminiClient struct {
	apiKey          string
	baseURL         string
	model           string
	maxOutputTokens int
	httpClient      *http.Client
}

func NewGeminiClient(cfg config.Config) *GeminiClient {
	timeoutSeconds := cfg.AITimeoutSeconds
	if timeoutSeconds <= 0 {
		timeoutSeconds = 30
	}
	maxTokens := cfg.AIMaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = 1000
	}
	return &GeminiClient{
		apiKey:          strings.TrimSpace(cfg.GeminiAPIKey),
		baseURL:         strings.TrimRight(strings.TrimSpace(cfg.GeminiBaseURL), "/"),
		model:           strings.TrimSpace(cfg.GeminiModel),
		maxOutputTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiSafetySetting struct {
	Category  string `json:"category"`
	Threshold string `json:"threshold"`
}

type geminiGenerationConfig struct {
	Temperature     float64 `json:"temperature"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
	SafetySettings   []geminiSafetySetting  `json:"safetySettings"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
}

var geminiSafetySettings = []geminiSafetySetting{
	{Category: "HARM_CATEGORY_HATE_SPEECH", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_DANGEROUS_CONTENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_SEXUALLY_EXPLICIT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
	{Category: "HARM_CATEGORY_HARASSMENT", Threshold: "BLOCK_MEDIUM_AND_ABOVE"},
}

func (c *GeminiClient) GenerateChat(ctx context.Context, turns []GenerationTurn) (string, error) {
	if strings.TrimSpace(c.apiKey) == "" {
		return "", fmt.Errorf("%w: GEMINI_API_KEY is not configured", ErrInvalidCredentials)
	}
	if len(turns) == 0 {
		return "", errors.New("generation request has no turns")
	}

	contents := make([]geminiContent, 0, len(turns))
	for _, turn := range turns {
		content := strings.TrimSpace(turn.Content)
		if content == "" {
			continue
		}
		contents = append(contents, geminiContent{
			Role:  turn.Role,
			Parts: []geminiPart{{Text: content}},
		})
	}
	if len(contents) == 0 {
		return "", errors.New("generation request has no non-empty turns")
	}

	payload := geminiRequest{
		Contents: contents,
		GenerationConfig: geminiGenerationConfig{
			Temperature:     0.7,
			MaxOutputTokens: c.maxOutputTokens,
		},
		SafetySettings: geminiSafetySettings,
	}
	bodyRaw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(bodyRaw))
	if err != nil {
		return "", err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("x-goog-api-key", c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("gemini request failed: %w", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return "", err
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return "", classifyGenerationError(response.StatusCode, string(responseBody))
	}

	var parsed geminiResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return "", fmt.Errorf("gemini response parse failed: %w", err)
	}
	return extractCandidateText(parsed), nil
}

func (c *GeminiClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	return c.GenerateChat(ctx, []GenerationTurn{{Role: "user", Content: prompt}})
}

// classifyGenerationError maps a provider failure onto the closed cause set.
// Raw provider text stays inside the wrapped error for server-side logs and
// must never be shown to a client.
func classifyGenerationError(statusCode int, body string) error {
	lowered := strings.ToLower(body)
	switch {
	case statusCode == http.StatusTooManyRequests,
		strings.Contains(lowered, "resource_exhausted"),
		strings.Contains(lowered, "quota"):
		return fmt.Errorf("%w: gemini status %d: %s", ErrQuotaExceeded, statusCode, compactForLog(body))
	case statusCode == http.StatusUnauthorized,
		statusCode == http.StatusForbidden,
		strings.Contains(lowered, "api key"),
		strings.Contains(lowered, "unauthenticated"),
		strings.Contains(lowered, "permission_denied"):
		return fmt.Errorf("%w: gemini status %d: %s", ErrInvalidCredentials, statusCode, compactForLog(body))
	default:
		return fmt.Errorf("gemini generate error (%d): %s", statusCode, compactForLog(body))
	}
}

func extractCandidateText(parsed geminiResponse) string {
	parts := make([]string, 0)
	for _, candidate := range parsed.Candidates {
		for _, part := range candidate.Content.Parts {
			if text := strings.TrimSpace(part.Text); text != "" {
				parts = append(parts, text)
			}
		}
		if len(parts) > 0 {
			break
		}
	}
	return strings.TrimSpace(strings.Join(parts, "\n"))
}

func compactForLog(value string) string {
	trimmed := strings.Join(strings.Fields(value), " ")
	if len(trimmed) > 600 {
		return trimmed[:600] + "...(truncated)"
	}
	return trimmed
}

// MockGenerationClient stands in for the real backend when no API key is
// configured (local development).
type MockGenerationClient struct{}

func (MockGenerationClient) GenerateChat(_ context.Context, turns []GenerationTurn) (string, error) {
	question := ""
	for i := len(turns) - 1; i >= 0; i-- {
		if turns[i].Role == "user" {
			question = strings.TrimSpace(turns[i].Content)
			break
		}
	}
	if question == "" {
		return "Mock response: no question provided.", nil
	}
	return "Mock response: " + question, nil
}

func (m MockGenerationClient) GenerateText(ctx context.Context, prompt string) (string, error) {
	if strings.Contains(prompt, "Return only valid JSON") {
		return `{"intent":"information","healthConcern":"general wellness","symptoms":[],"relevantFactors":[],"urgencyLevel":"low","recommendedTopics":["general health"]}`, nil
	}
	return m.GenerateChat(ctx, []GenerationTurn{{Role: "user", Content: prompt}})
}
