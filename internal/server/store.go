package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	roleUser      = "user"
	roleAssistant = "assistant"
	roleSystem    = "system"
)

const sessionGreeting = "Hi, I'm HealthSpark AI. How can I assist you with your health questions today?"

var (
	ErrSessionNotFound  = errors.New("chat session not found")
	ErrProfileNotFound  = errors.New("health profile not found")
	ErrDuplicateProfile = errors.New("health profile already exists")
)

type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// HealthContext is the per-session scratch state carried across turns. Only
// recentAnalysis is tracked today; merging a new analysis overwrites that key
// and leaves the rest of the struct alone.
type HealthContext struct {
	RecentAnalysis *QueryAnalysis `json:"recentAnalysis,omitempty"`
}

type ChatSession struct {
	SessionID     string        `json:"sessionId"`
	UserID        string        `json:"userId,omitempty"`
	Messages      []Message     `json:"messages"`
	HealthContext HealthContext `json:"healthContext"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

// Store is the persistence boundary for sessions and profiles. The chat
// orchestrator and the HTTP handlers only ever talk to this interface, so
// tests can swap in an in-memory double.
type Store interface {
	CreateSession(ctx context.Context, userID string) (*ChatSession, error)
	GetSession(ctx context.Context, sessionID string) (*ChatSession, error)
	ListUserSessions(ctx context.Context, userID string) ([]*ChatSession, error)
	AppendAndSave(ctx context.Context, session *ChatSession, msg Message) error

	CreateProfile(ctx context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error)
	GetProfile(ctx context.Context, userID string) (*HealthProfile, error)
	UpdateProfile(ctx context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error)
}

type PGStore struct {
	db *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{db: pool}
}

func (s *PGStore) CreateSession(ctx context.Context, userID string) (*ChatSession, error) {
	now := time.Now().UTC()
	session := &ChatSession{
		SessionID: uuid.NewString(),
		UserID:    userID,
		Messages:  []Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	greeting := Message{Role: roleAssistant, Content: sessionGreeting, Timestamp: now}
	if err := s.AppendAndSave(ctx, session, greeting); err != nil {
		return nil, fmt.Errorf("seed session greeting: %w", err)
	}
	return session, nil
}

func (s *PGStore) GetSession(ctx context.Context, sessionID string) (*ChatSession, error) {
	session := &ChatSession{}
	var userID *string
	var contextRaw []byte
	err := s.db.QueryRow(
		ctx,
		`SELECT "sessionId", "userId", "healthContextJson", "createdAt", "updatedAt"
		 FROM "ChatSession"
		 WHERE "sessionId" = $1`,
		sessionID,
	).Scan(&session.SessionID, &userID, &contextRaw, &session.CreatedAt, &session.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	if userID != nil {
		session.UserID = *userID
	}
	if len(contextRaw) > 0 {
		_ = json.Unmarshal(contextRaw, &session.HealthContext)
	}

	messages, err := s.loadMessages(ctx, session.SessionID)
	if err != nil {
		return nil, err
	}
	session.Messages = messages
	return session, nil
}

func (s *PGStore) ListUserSessions(ctx context.Context, userID string) ([]*ChatSession, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT "sessionId", "userId", "healthContextJson", "createdAt", "updatedAt"
		 FROM "ChatSession"
		 WHERE "userId" = $1
		 ORDER BY "updatedAt" DESC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]*ChatSession, 0)
	for rows.Next() {
		session := &ChatSession{}
		var rowUserID *string
		var contextRaw []byte
		if err := rows.Scan(&session.SessionID, &rowUserID, &contextRaw, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		if rowUserID != nil {
			session.UserID = *rowUserID
		}
		if len(contextRaw) > 0 {
			_ = json.Unmarshal(contextRaw, &session.HealthContext)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, session := range sessions {
		messages, err := s.loadMessages(ctx, session.SessionID)
		if err != nil {
			return nil, err
		}
		session.Messages = messages
	}
	return sessions, nil
}

// AppendAndSave is the only mutation path for transcripts. It upserts the
// session row (a message to a not-yet-persisted session materializes it) and
// appends exactly one message; updatedAt is bumped on every save.
func (s *PGStore) AppendAndSave(ctx context.Context, session *ChatSession, msg Message) error {
	now := time.Now().UTC()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	contextJSON, err := json.Marshal(session.HealthContext)
	if err != nil {
		return err
	}

	var userValue any
	if session.UserID != "" {
		userValue = session.UserID
	}
	if _, err := s.db.Exec(
		ctx,
		`INSERT INTO "ChatSession" ("sessionId", "userId", "healthContextJson", "createdAt", "updatedAt")
		 VALUES ($1, $2, $3, $4, $4)
		 ON CONFLICT ("sessionId") DO UPDATE
		 SET "healthContextJson" = EXCLUDED."healthContextJson",
		     "updatedAt" = EXCLUDED."updatedAt"`,
		session.SessionID,
		userValue,
		contextJSON,
		now,
	); err != nil {
		return err
	}

	if _, err := s.db.Exec(
		ctx,
		`INSERT INTO "ChatMessage" (id, "sessionId", role, content, "createdAt")
		 VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(),
		session.SessionID,
		msg.Role,
		msg.Content,
		msg.Timestamp,
	); err != nil {
		return err
	}

	session.Messages = append(session.Messages, msg)
	session.UpdatedAt = now
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	return nil
}

func (s *PGStore) loadMessages(ctx context.Context, sessionID string) ([]Message, error) {
	rows, err := s.db.Query(
		ctx,
		`SELECT role, content, "createdAt"
		 FROM "ChatMessage"
		 WHERE "sessionId" = $1
		 ORDER BY "createdAt" ASC`,
		sessionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *PGStore) CreateProfile(ctx context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error) {
	var exists bool
	if err := s.db.QueryRow(
		ctx,
		`SELECT EXISTS (SELECT 1 FROM "HealthProfile" WHERE "userId" = $1)`,
		userID,
	).Scan(&exists); err != nil {
		return nil, err
	}
	if exists {
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

	basicJSON, historyJSON, lifestyleJSON, vitalsJSON, err := marshalProfileSections(profile)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		ctx,
		`INSERT INTO "HealthProfile" (
			"userId", "basicInfoJson", "medicalHistoryJson", "lifestyleJson", "vitalSignsJson", "createdAt", "updatedAt"
		) VALUES ($1, $2, $3, $4, $5, $6, $6)`,
		userID,
		basicJSON,
		historyJSON,
		lifestyleJSON,
		vitalsJSON,
		now,
	); err != nil {
		return nil, err
	}
	return profile, nil
}

func (s *PGStore) GetProfile(ctx context.Context, userID string) (*HealthProfile, error) {
	profile := &HealthProfile{}
	var basicRaw, historyRaw, lifestyleRaw, vitalsRaw []byte
	err := s.db.QueryRow(
		ctx,
		`SELECT "userId", "basicInfoJson", "medicalHistoryJson", "lifestyleJson", "vitalSignsJson", "createdAt", "updatedAt"
		 FROM "HealthProfile"
		 WHERE "userId" = $1`,
		userID,
	).Scan(&profile.UserID, &basicRaw, &historyRaw, &lifestyleRaw, &vitalsRaw, &profile.CreatedAt, &profile.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}

	if len(basicRaw) > 0 {
		_ = json.Unmarshal(basicRaw, &profile.BasicInfo)
	}
	if len(historyRaw) > 0 {
		_ = json.Unmarshal(historyRaw, &profile.MedicalHistory)
	}
	if len(lifestyleRaw) > 0 {
		_ = json.Unmarshal(lifestyleRaw, &profile.Lifestyle)
	}
	if len(vitalsRaw) > 0 {
		_ = json.Unmarshal(vitalsRaw, &profile.VitalSigns)
	}
	if profile.VitalSigns == nil {
		profile.VitalSigns = []VitalSignEntry{}
	}
	return profile, nil
}

func (s *PGStore) UpdateProfile(ctx context.Context, userID string, patch ProfileUpdate) (*HealthProfile, error) {
	profile, err := s.GetProfile(ctx, userID)
	if err != nil {
		return nil, err
	}
	applyProfileUpdate(profile, patch)

	now := time.Now().UTC()
	basicJSON, historyJSON, lifestyleJSON, vitalsJSON, err := marshalProfileSections(profile)
	if err != nil {
		return nil, err
	}
	if _, err := s.db.Exec(
		ctx,
		`UPDATE "HealthProfile"
		 SET "basicInfoJson" = $2,
		     "medicalHistoryJson" = $3,
		     "lifestyleJson" = $4,
		     "vitalSignsJson" = $5,
		     "updatedAt" = $6
		 WHERE "userId" = $1`,
		userID,
		basicJSON,
		historyJSON,
		lifestyleJSON,
		vitalsJSON,
		now,
	); err != nil {
		return nil, err
	}
	profile.UpdatedAt = now
	return profile, nil
}

func marshalProfileSections(profile *HealthProfile) ([]byte, []byte, []byte, []byte, error) {
	basicJSON, err := json.Marshal(profile.BasicInfo)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	historyJSON, err := json.Marshal(profile.MedicalHistory)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	lifestyleJSON, err := json.Marshal(profile.Lifestyle)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	vitalsJSON, err := json.Marshal(profile.VitalSigns)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return basicJSON, historyJSON, lifestyleJSON, vitalsJSON, nil
}
