package server

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/ishiiii10/health-spark-chat/internal/config"
)

// App wires the chat orchestration pipeline: a Store for sessions and
// profiles, plus an analyzer and a generator that share one generation
// backend. Collaborators are injected at construction so tests can swap in
// doubles.
type App struct {
	cfg       config.Config
	store     Store
	analyzer  *QueryAnalyzer
	generator *ResponseGenerator
	limiter   *rateLimiter
}

func New(cfg config.Config, store Store, client GenerationClient) *App {
	return &App{
		cfg:       cfg,
		store:     store,
		analyzer:  NewQueryAnalyzer(client),
		generator: NewResponseGenerator(client),
		limiter:   newRateLimiter(cfg.RateLimitMax, time.Duration(cfg.RateLimitWindowMin)*time.Minute),
	}
}

func (a *App) Router() *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     a.cfg.CORSAllowOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	router.Use(a.limiter.middleware())

	router.GET("/", a.root)

	api := router.Group(a.cfg.APIPrefix)

	chat := api.Group("/chat")
	chat.POST("/sessions", a.createChatSession)
	chat.GET("/sessions/:sessionId", a.getChatSession)
	// Matches GET /chat/sessions/user/:userId; the handler rejects any
	// other value in the first segment.
	chat.GET("/sessions/:sessionId/:userId", a.getUserChatSessions)
	chat.POST("/messages", a.sendMessage)

	health := api.Group("/health")
	health.POST("/profile", a.createHealthProfile)
	health.GET("/profile/:userId", a.getHealthProfile)
	health.PUT("/profile/:userId", a.updateHealthProfile)
	health.GET("/topics", a.getHealthTopics)
	health.GET("/topics/:topic", a.getTopicInfo)
	health.GET("/status", a.healthStatus)

	return router
}

func (a *App) root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Health Assistant API is running"})
}

func (a *App) healthStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "message": "Health API is running"})
}

func writeError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"success": false, "error": message})
}

func writeData(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

func mustJSON(c *gin.Context, payload any) bool {
	if err := c.ShouldBindJSON(payload); err != nil {
		writeError(c, http.StatusBadRequest, "Invalid request payload")
		return false
	}
	return true
}
