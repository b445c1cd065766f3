package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/ishiiii10/health-spark-chat/internal/config"
)

func newTestApp(store Store, client GenerationClient) *App {
	cfg := config.Config{
		APIPrefix:          "/api",
		ChatWindowSize:     10,
		RateLimitMax:       1000,
		RateLimitWindowMin: 15,
	}
	return New(cfg, store, client)
}

func TestSendChatMessagePersistsBothTurns(t *testing.T) {
	store := newMemStore()
	// The seeded greeting makes the window multi-turn, so generation rides
	// the chat path while the analysis rides the text path.
	client := &scriptedClient{
		textByPrompt: map[string]string{
			"Return only valid JSON": `{"intent":"advice","healthConcern":"hydration","symptoms":[],"relevantFactors":[],"urgencyLevel":"low","recommendedTopics":["nutrition"]}`,
		},
		chatReply: "aim for about two liters a day",
	}
	app := newTestApp(store, client)

	session, err := store.CreateSession(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	result, err := app.sendChatMessage(context.Background(), session.SessionID, "how much water should I drink?", "user-1")
	if err != nil {
		t.Fatalf("sendChatMessage: %v", err)
	}
	if result.Message != "aim for about two liters a day" {
		t.Fatalf("unexpected reply: %q", result.Message)
	}
	if result.State != stateDelivered {
		t.Fatalf("expected delivered state, got %q", result.State)
	}
	if result.Analysis.HealthConcern != "hydration" {
		t.Fatalf("analysis not carried into the result: %+v", result.Analysis)
	}

	stored := store.sessions[session.SessionID]
	// greeting + user turn + assistant turn
	if len(stored.Messages) != 3 {
		t.Fatalf("expected 3 stored messages, got %d", len(stored.Messages))
	}
	if stored.Messages[1].Role != roleUser || stored.Messages[1].Content != "how much water should I drink?" {
		t.Fatalf("user turn not persisted: %+v", stored.Messages[1])
	}
	if stored.Messages[2].Role != roleAssistant {
		t.Fatalf("assistant turn not persisted: %+v", stored.Messages[2])
	}
	if stored.HealthContext.RecentAnalysis == nil || stored.HealthContext.RecentAnalysis.HealthConcern != "hydration" {
		t.Fatalf("recentAnalysis not merged into session context: %+v", stored.HealthContext)
	}
}

func TestSendChatMessageUnknownSessionMaterializesWithoutGreeting(t *testing.T) {
	store := newMemStore()
	client := &scriptedClient{
		textByPrompt: map[string]string{
			"Return only valid JSON": `{"intent":"information","healthConcern":"sleep","symptoms":[],"relevantFactors":[],"urgencyLevel":"low","recommendedTopics":[]}`,
		},
		textReply: "seven to nine hours",
	}
	app := newTestApp(store, client)

	result, err := app.sendChatMessage(context.Background(), "never-created", "how long should I sleep?", "")
	if err != nil {
		t.Fatalf("sendChatMessage: %v", err)
	}
	if result.SessionID != "never-created" {
		t.Fatalf("session id not preserved: %q", result.SessionID)
	}

	stored := store.sessions["never-created"]
	if stored == nil {
		t.Fatalf("implicit session was not persisted")
	}
	if len(stored.Messages) != 2 {
		t.Fatalf("implicit session should hold exactly user+assistant, got %d messages", len(stored.Messages))
	}
	for _, msg := range stored.Messages {
		if msg.Content == sessionGreeting {
			t.Fatalf("implicit session must not be seeded with the greeting")
		}
	}
}

func TestSendChatMessageQuotaRefusalKeepsUserTurn(t *testing.T) {
	quota := fmt.Errorf("%w: status 429", ErrQuotaExceeded)
	store := newMemStore()
	client := &scriptedClient{textErr: quota, chatErr: quota}
	app := newTestApp(store, client)

	session, err := store.CreateSession(context.Background(), "")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	_, err = app.sendChatMessage(context.Background(), session.SessionID, "hello?", "")
	var refused *generationRefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("expected generationRefusedError, got %v", err)
	}
	if refused.UserMessage != quotaUserMessage {
		t.Fatalf("unexpected user message: %q", refused.UserMessage)
	}
	if refused.SessionID != session.SessionID {
		t.Fatalf("refusal must carry the session id")
	}
	if !errors.Is(refused, ErrQuotaExceeded) {
		t.Fatalf("refusal must wrap the quota cause")
	}
	// Analysis also failed (same backend), so it degraded to the default.
	if refused.Analysis.Intent != "information" {
		t.Fatalf("expected default analysis in refusal, got %+v", refused.Analysis)
	}

	stored := store.sessions[session.SessionID]
	last := stored.Messages[len(stored.Messages)-1]
	if last.Role != roleUser || last.Content != "hello?" {
		t.Fatalf("user turn must survive a refusal; last message: %+v", last)
	}
}

func TestSendChatMessageCredentialsRefusal(t *testing.T) {
	creds := fmt.Errorf("%w: status 401", ErrInvalidCredentials)
	store := newMemStore()
	client := &scriptedClient{textErr: creds, chatErr: creds}
	app := newTestApp(store, client)

	session, _ := store.CreateSession(context.Background(), "")
	_, err := app.sendChatMessage(context.Background(), session.SessionID, "hi", "")
	var refused *generationRefusedError
	if !errors.As(err, &refused) {
		t.Fatalf("expected generationRefusedError, got %v", err)
	}
	if refused.UserMessage != credentialsUserMessage {
		t.Fatalf("unexpected user message: %q", refused.UserMessage)
	}
}

func TestSendChatMessageDegradedAnalysisStillDelivers(t *testing.T) {
	store := newMemStore()
	client := &scriptedClient{
		textByPrompt: map[string]string{
			"Return only valid JSON": "not json at all",
		},
		chatReply: "an answer anyway",
	}
	app := newTestApp(store, client)

	session, _ := store.CreateSession(context.Background(), "")
	result, err := app.sendChatMessage(context.Background(), session.SessionID, "question", "")
	if err != nil {
		t.Fatalf("sendChatMessage: %v", err)
	}
	if result.State != stateDegraded {
		t.Fatalf("expected degraded state, got %q", result.State)
	}
	if result.Message != "an answer anyway" {
		t.Fatalf("unexpected reply: %q", result.Message)
	}
}

func TestSendChatMessageUsesProfileBriefing(t *testing.T) {
	store := newMemStore()
	age := 42
	if _, err := store.CreateProfile(context.Background(), "user-9", ProfileUpdate{
		BasicInfo: &BasicInfo{Age: &age},
	}); err != nil {
		t.Fatalf("CreateProfile: %v", err)
	}

	client := &scriptedClient{
		textByPrompt: map[string]string{
			"Return only valid JSON": `{"intent":"information","healthConcern":"x","symptoms":[],"relevantFactors":[],"urgencyLevel":"low","recommendedTopics":[]}`,
		},
		chatReply: "ok",
	}
	app := newTestApp(store, client)

	session, _ := store.CreateSession(context.Background(), "user-9")
	if _, err := app.sendChatMessage(context.Background(), session.SessionID, "am I healthy?", "user-9"); err != nil {
		t.Fatalf("sendChatMessage: %v", err)
	}

	if len(client.chatCalls) != 1 {
		t.Fatalf("expected one chat call, got %d", len(client.chatCalls))
	}
	var firstUser string
	for _, turn := range client.chatCalls[0] {
		if turn.Role == "user" {
			firstUser = turn.Content
			break
		}
	}
	if !strings.Contains(firstUser, "Age: 42") {
		t.Fatalf("profile briefing missing from generation prompt:\n%s", firstUser)
	}
	if !strings.Contains(firstUser, "User message: am I healthy?") {
		t.Fatalf("user message missing from prefixed turn:\n%s", firstUser)
	}
}

func TestBuildGenerationWindowTrailingAndProjected(t *testing.T) {
	messages := make([]Message, 0, 15)
	for i := 0; i < 15; i++ {
		role := roleUser
		if i%2 == 0 {
			role = roleAssistant
		}
		messages = append(messages, Message{Role: role, Content: fmt.Sprintf("m%d", i)})
	}

	window := buildGenerationWindow(messages, 10)
	if len(window) != 10 {
		t.Fatalf("expected window of 10, got %d", len(window))
	}
	if window[0].Content != "m5" || window[9].Content != "m14" {
		t.Fatalf("window must keep the trailing messages oldest first: first=%q last=%q", window[0].Content, window[9].Content)
	}
}

func TestBuildGenerationWindowSystemBecomesAssistant(t *testing.T) {
	window := buildGenerationWindow([]Message{
		{Role: roleSystem, Content: "housekeeping"},
		{Role: roleUser, Content: "hi"},
	}, 10)
	if window[0].Role != roleAssistant {
		t.Fatalf("system turn must project to assistant, got %q", window[0].Role)
	}
	if window[1].Role != roleUser {
		t.Fatalf("user turn must stay user, got %q", window[1].Role)
	}
}

func TestBuildGenerationWindowShortTranscript(t *testing.T) {
	window := buildGenerationWindow([]Message{
		{Role: roleUser, Content: "only one"},
	}, 10)
	if len(window) != 1 || window[0].Content != "only one" {
		t.Fatalf("short transcript should pass through whole: %+v", window)
	}
}
