package server

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// memStore is an in-memory Store used by orchestrator and handler tests.
type memStore struct {
	sessions map[string]*ChatSession
	profiles map[string]*HealthProfile

	failAppend error
	nextID     int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[string]*ChatSession{},
		profiles: map[string]*HealthProfile{},
	}
}

func (s *memStore) CreateSession(_ context.Context, userID string) (*ChatSession, error) {
	s.nextID++
	now := time.Now().UTC()
	session := &ChatSession{
		SessionID: fmt.Sprintf("session-%d", s.nextID),
		UserID:    userID,
		Messages: []Message{
			{Role: roleAssistant, Content: sessionGreeting, Timestamp: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[session.SessionID] = session
	return session, nil
}

func (s *memStore) GetSession(_ context.Context, sessionID string) (*ChatSession, error) {
	session, ok := s.sessions[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *memStore) ListUserSessions(_ context.Context, userID string) ([]*ChatSession, error) {
	sessions := make([]*ChatSession, 0)
	for _, session := range s.sessions {
		if session.UserID == userID {
			sessions = append(sessions, session)
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

func (s *memStore) AppendAndSave(_ context.Context, session *ChatSession, msg Message) error {
	if s.failAppend != nil {
		return s.failAppend
	}
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now().UTC()
	}
	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = time.Now().UTC()
	s.sessions[session.SessionID] = session
	return nil
}

func (s *memStore) CreateProfile(_ context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error) {
	if _, ok := s.profiles[userID]; ok {
		return nil, ErrDuplicateProfile
	}
	now := time.Now().UTC()
	profile := &HealthProfile{
		UserID:     userID,
		VitalSigns: []VitalSignEntry{},
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	applyProfileUpdate(profile, patch)
	s.profiles[userID] = profile
	return profile, nil
}

func (s *memStore) GetProfile(_ context.Context, userID string) (*HealthProfile, error) {
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	return profile, nil
}

func (s *memStore) UpdateProfile(_ context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error) {
	profile, ok := s.profiles[userID]
	if !ok {
		return nil, ErrProfileNotFound
	}
	applyProfileUpdate(profile, patch)
	profile.UpdatedAt = time.Now().UTC()
	return profile, nil
}

// scriptedClient is a GenerationClient whose chat and text paths can be
// scripted independently. Calls are recorded for assertions.
type scriptedClient struct {
	chatReply string
	chatErr   error
	textReply string
	textErr   error

	// Text replies keyed by a substring of the prompt; checked before the
	// scalar textReply.
	textByPrompt map[string]string

	chatCalls []([]GenerationTurn)
	textCalls []string
}

func (c *scriptedClient) GenerateChat(_ context.Context, turns []GenerationTurn) (string, error) {
	copied := make([]GenerationTurn, len(turns))
	copy(copied, turns)
	c.chatCalls = append(c.chatCalls, copied)
	if c.chatErr != nil {
		return "", c.chatErr
	}
	return c.chatReply, nil
}

func (c *scriptedClient) GenerateText(_ context.Context, prompt string) (string, error) {
	c.textCalls = append(c.textCalls, prompt)
	for needle, reply := range c.textByPrompt {
		if strings.Contains(prompt, needle) {
			return reply, nil
		}
	}
	if c.textErr != nil {
		return "", c.textErr
	}
	return c.textReply, nil
}
