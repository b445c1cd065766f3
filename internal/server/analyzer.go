package server

import (
	"context"
	"encoding/json"
	"log"
	"strings"
)

// QueryAnalysis is a structured classification of one user message. It is
// advisory only: it rides along in the response payload and in the session's
// healthContext, but nothing downstream depends on it succeeding.
type QueryAnalysis struct {
	Intent            string   `json:"intent"`
	HealthConcern     string   `json:"healthConcern"`
	Symptoms          []string `json:"symptoms"`
	RelevantFactors   []string `json:"relevantFactors"`
	UrgencyLevel      string   `json:"urgencyLevel"`
	RecommendedTopics []string `json:"recommendedTopics"`
}

func defaultQueryAnalysis(query string) QueryAnalysis {
	return QueryAnalysis{
		Intent:            "information",
		HealthConcern:     query,
		Symptoms:          []string{},
		RelevantFactors:   []string{},
		UrgencyLevel:      "low",
		RecommendedTopics: []string{"general health"},
	}
}

type QueryAnalyzer struct {
	client GenerationClient
}

func NewQueryAnalyzer(client GenerationClient) *QueryAnalyzer {
	return &QueryAnalyzer{client: client}
}

// Analyze classifies a single user query via the generation backend. It never
// fails: one attempt, and any backend or parse error degrades to the fixed
// default record. The second return value reports that degradation.
func (a *QueryAnalyzer) Analyze(ctx context.Context, query string) (QueryAnalysis, bool) {
	answer, err := a.client.GenerateText(ctx, analysisPrompt(query))
	if err != nil {
		log.Printf("query analysis failed, using default record: %v", err)
		return defaultQueryAnalysis(query), true
	}

	var analysis QueryAnalysis
	if err := json.Unmarshal([]byte(stripCodeFence(answer)), &analysis); err != nil {
		log.Printf("query analysis returned unparseable JSON, using default record: %v", err)
		return defaultQueryAnalysis(query), true
	}
	if analysis.Symptoms == nil {
		analysis.Symptoms = []string{}
	}
	if analysis.RelevantFactors == nil {
		analysis.RelevantFactors = []string{}
	}
	if analysis.RecommendedTopics == nil {
		analysis.RecommendedTopics = []string{}
	}
	return analysis, false
}

// stripCodeFence removes an optional ```json fenced wrapper around a model
// reply before JSON parsing.
func stripCodeFence(answer string) string {
	candidate := strings.TrimSpace(answer)
	if !strings.HasPrefix(candidate, "```") {
		return candidate
	}
	candidate = strings.TrimPrefix(candidate, "```json")
	candidate = strings.TrimPrefix(candidate, "```")
	candidate = strings.TrimSuffix(strings.TrimSpace(candidate), "```")
	return strings.TrimSpace(candidate)
}
