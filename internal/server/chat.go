package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"
)

type deliveryState string

const (
	stateDelivered deliveryState = "delivered"
	stateDegraded  deliveryState = "degraded"
	stateFailed    deliveryState = "failed"
)

const (
	quotaUserMessage       = "AI service quota exceeded. Please check billing details or try again later."
	credentialsUserMessage = "Invalid API key configuration. Please contact support."
)

type sendMessageResult struct {
	Message   string
	SessionID string
	Analysis  QueryAnalysis
	State     deliveryState
}

// generationRefusedError carries the user-safe payload for quota/credential
// failures: the session keeps the user turn, gets no assistant turn, and the
// client is told to retry later.
type generationRefusedError struct {
	UserMessage string
	SessionID   string
	Analysis    QueryAnalysis
	cause       error
}

func (e *generationRefusedError) Error() string {
	return e.UserMessage
}

func (e *generationRefusedError) Unwrap() error {
	return e.cause
}

// sendChatMessage runs the per-message pipeline: resolve session, persist the
// user turn, resolve health context, analyze, generate, persist the reply.
func (a *App) sendChatMessage(ctx context.Context, sessionID, content, userID string) (*sendMessageResult, error) {
	session, err := a.store.GetSession(ctx, sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		// A message to an unknown session id implicitly creates the
		// session. No greeting is seeded on this path.
		now := time.Now().UTC()
		session = &ChatSession{
			SessionID: sessionID,
			UserID:    userID,
			Messages:  []Message{},
			CreatedAt: now,
			UpdatedAt: now,
		}
	} else if err != nil {
		return nil, fmt.Errorf("load chat session: %w", err)
	}

	// The user's turn must survive even if the caller abandons the request
	// mid-flight, so the write runs outside the request's cancellation.
	userMsg := Message{Role: roleUser, Content: content, Timestamp: time.Now().UTC()}
	if err := a.store.AppendAndSave(context.WithoutCancel(ctx), session, userMsg); err != nil {
		return nil, fmt.Errorf("persist user message: %w", err)
	}

	briefing := ""
	if userID != "" {
		profile, err := a.store.GetProfile(ctx, userID)
		switch {
		case err == nil:
			briefing = healthContextPrompt(profile.BasicInfo, profile.MedicalHistory, profile.Lifestyle)
		case errors.Is(err, ErrProfileNotFound):
			// No profile is fine; generation proceeds without context.
		default:
			return nil, fmt.Errorf("load health profile: %w", err)
		}
	}

	analysis, degraded := a.analyzer.Analyze(ctx, content)
	session.HealthContext.RecentAnalysis = &analysis

	window := buildGenerationWindow(session.Messages, a.cfg.ChatWindowSize)
	reply, err := a.generator.Generate(ctx, window, briefing)
	if err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			log.Printf("generation refused (quota) session_id=%s: %v", session.SessionID, err)
			return nil, &generationRefusedError{
				UserMessage: quotaUserMessage,
				SessionID:   session.SessionID,
				Analysis:    analysis,
				cause:       err,
			}
		}
		if errors.Is(err, ErrInvalidCredentials) {
			log.Printf("generation refused (credentials) session_id=%s: %v", session.SessionID, err)
			return nil, &generationRefusedError{
				UserMessage: credentialsUserMessage,
				SessionID:   session.SessionID,
				Analysis:    analysis,
				cause:       err,
			}
		}
		return nil, fmt.Errorf("generate reply: %w", err)
	}

	assistantMsg := Message{Role: roleAssistant, Content: reply, Timestamp: time.Now().UTC()}
	if err := a.store.AppendAndSave(ctx, session, assistantMsg); err != nil {
		return nil, fmt.Errorf("persist assistant message: %w", err)
	}

	state := stateDelivered
	if degraded {
		state = stateDegraded
	}
	return &sendMessageResult{
		Message:   reply,
		SessionID: session.SessionID,
		Analysis:  analysis,
		State:     state,
	}, nil
}

// buildGenerationWindow projects the trailing window of the transcript
// (oldest first) down to user/assistant turns. A stored system-tagged
// message, should one ever appear, is treated as assistant-equivalent.
func buildGenerationWindow(messages []Message, size int) []Message {
	if size <= 0 {
		size = 10
	}
	start := 0
	if len(messages) > size {
		start = len(messages) - size
	}

	window := make([]Message, 0, len(messages)-start)
	for _, msg := range messages[start:] {
		role := roleAssistant
		if msg.Role == roleUser {
			role = roleUser
		}
		window = append(window, Message{Role: role, Content: msg.Content})
	}
	return window
}
