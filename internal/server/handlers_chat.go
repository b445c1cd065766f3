package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type createSessionRequest struct {
	UserID string `json:"userId"`
}

type sendMessageRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
	UserID    string `json:"userId"`
}

// POST /api/chat/sessions
func (a *App) createChatSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if !mustJSON(c, &req) {
			return
		}
	}

	session, err := a.store.CreateSession(c.Request.Context(), strings.TrimSpace(req.UserID))
	if err != nil {
		log.Printf("create chat session failed: %v", err)
		writeError(c, http.StatusInternalServerError, "Failed to create chat session")
		return
	}
	writeData(c, http.StatusCreated, gin.H{"sessionId": session.SessionID})
}

// GET /api/chat/sessions/:sessionId
func (a *App) getChatSession(c *gin.Context) {
	sessionID := c.Param("sessionId")
	session, err := a.store.GetSession(c.Request.Context(), sessionID)
	if errors.Is(err, ErrSessionNotFound) {
		writeError(c, http.StatusNotFound, "Chat session not found")
		return
	}
	if err != nil {
		log.Printf("get chat session failed session_id=%s: %v", sessionID, err)
		writeError(c, http.StatusInternalServerError, "Failed to get chat session")
		return
	}
	writeData(c, http.StatusOK, session)
}

// GET /api/chat/sessions/user/:userId
//
// Registered as /sessions/:sessionId/:userId to avoid a route conflict with
// the single-session lookup, so the first segment must literally be "user".
func (a *App) getUserChatSessions(c *gin.Context) {
	if c.Param("sessionId") != "user" {
		writeError(c, http.StatusNotFound, "Not found")
		return
	}
	userID := c.Param("userId")
	sessions, err := a.store.ListUserSessions(c.Request.Context(), userID)
	if err != nil {
		log.Printf("list user sessions failed user_id=%s: %v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to get user chat sessions")
		return
	}
	writeData(c, http.StatusOK, sessions)
}

// POST /api/chat/messages
func (a *App) sendMessage(c *gin.Context) {
	var req sendMessageRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.SessionID) == "" || strings.TrimSpace(req.Message) == "" {
		writeError(c, http.StatusBadRequest, "Session ID and message are required")
		return
	}

	result, err := a.sendChatMessage(c.Request.Context(), req.SessionID, req.Message, strings.TrimSpace(req.UserID))
	if err != nil {
		var refused *generationRefusedError
		if errors.As(err, &refused) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"success":   false,
				"error":     refused.UserMessage,
				"sessionId": refused.SessionID,
				"analysis":  refused.Analysis,
			})
			return
		}
		log.Printf("send message failed session_id=%s: %v", req.SessionID, err)
		writeError(c, http.StatusInternalServerError, "Failed to send message")
		return
	}

	writeData(c, http.StatusOK, gin.H{
		"message":   result.Message,
		"sessionId": result.SessionID,
		"analysis":  result.Analysis,
	})
}
