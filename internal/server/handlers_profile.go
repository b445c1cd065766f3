package server

import (
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type profileCreateRequest struct {
	UserID string `json:"userId"`
	ProfileUpdate
}

// POST /api/health/profile
func (a *App) createHealthProfile(c *gin.Context) {
	var req profileCreateRequest
	if !mustJSON(c, &req) {
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		writeError(c, http.StatusBadRequest, "User ID is required")
		return
	}

	profile, err := a.store.CreateProfile(c.Request.Context(), strings.TrimSpace(req.UserID), req.ProfileUpdate)
	if errors.Is(err, ErrDuplicateProfile) {
		writeError(c, http.StatusBadRequest, "Health profile already exists for this user")
		return
	}
	if err != nil {
		log.Printf("create health profile failed user_id=%s: %v", req.UserID, err)
		writeError(c, http.StatusInternalServerError, "Failed to create health profile")
		return
	}
	writeData(c, http.StatusCreated, profile)
}

// GET /api/health/profile/:userId
func (a *App) getHealthProfile(c *gin.Context) {
	userID := c.Param("userId")
	profile, err := a.store.GetProfile(c.Request.Context(), userID)
	if errors.Is(err, ErrProfileNotFound) {
		writeError(c, http.StatusNotFound, "Health profile not found")
		return
	}
	if err != nil {
		log.Printf("get health profile failed user_id=%s: %v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to get health profile")
		return
	}
	writeData(c, http.StatusOK, profile)
}

// PUT /api/health/profile/:userId
func (a *App) updateHealthProfile(c *gin.Context) {
	userID := c.Param("userId")
	var patch ProfileUpdate
	if !mustJSON(c, &patch) {
		return
	}

	profile, err := a.store.UpdateProfile(c.Request.Context(), userID, patch)
	if errors.Is(err, ErrProfileNotFound) {
		writeError(c, http.StatusNotFound, "Health profile not found")
		return
	}
	if err != nil {
		log.Printf("update health profile failed user_id=%s: %v", userID, err)
		writeError(c, http.StatusInternalServerError, "Failed to update health profile")
		return
	}
	writeData(c, http.StatusOK, profile)
}

// GET /api/health/topics
func (a *App) getHealthTopics(c *gin.Context) {
	writeData(c, http.StatusOK, healthTopics)
}

// GET /api/health/topics/:topic
func (a *App) getTopicInfo(c *gin.Context) {
	topic, ok := findHealthTopic(c.Param("topic"))
	if !ok {
		writeError(c, http.StatusNotFound, "Health topic not found")
		return
	}
	writeData(c, http.StatusOK, topic)
}
