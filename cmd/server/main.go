package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Skufu/GoSia/internal/app"
	"github.com/Skufu/GoSia/internal/config"
	"github.com/Skufu/GoSia/internal/conversation"
	"github.com/Skufu/GoSia/internal/knowledge"
	"github.com/Skufu/GoSia/internal/responder"
)

type HealthChecker interface {
	Ping(ctx context.Context) error
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	SessionID string           `json:"sessionId"`
	Reply     string           `json:"reply"`
	Source    responder.Source `json:"source"`
}

type SessionResponse struct {
	SessionID string              `json:"sessionId"`
	Messages  []conversation.Turn `json:"messages"`
}

// server holds the collaborators the routes need. db may be nil.
type server struct {
	db        HealthChecker
	kb        *knowledge.Base
	responder *responder.Responder
	store     conversation.Store
	logger    *slog.Logger
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("config error", "error", err)
		os.Exit(1)
	}
	logger := config.ConfigureLogging(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	rt, err := app.Start(context.Background(), cfg, logger)
	if err != nil {
		logger.Error("startup failed", "error", err)
		os.Exit(1)
	}
	defer rt.Close()

	s := &server{
		kb:        rt.Assistant.Knowledge,
		responder: rt.Assistant.Responder,
		store:     rt.Store,
		logger:    logger,
	}
	if rt.Pool != nil {
		s.db = rt.Pool
	}

	staticRoot := detectStaticRoot()
	router := setupRouter(s, staticRoot)
	httpServer := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		// Generation can be slow; leave room beyond the generation timeout.
		WriteTimeout: writeTimeout(cfg.GenerationTimeout),
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	logger.Info("server listening", "port", cfg.Port, "model", cfg.ModelName, "db", cfg.EnableDB)
	waitForShutdown(httpServer, logger)
}

func writeTimeout(generation time.Duration) time.Duration {
	if generation <= 0 {
		return 0
	}
	return generation + 15*time.Second
}

func setupRouter(s *server, staticRoot string) *gin.Engine {
	router := gin.New()
	router.Use(
		gin.Logger(),
		gin.Recovery(),
		limitBodySize(1<<20), // 1MB max body
		cors.New(cors.Config{
			AllowOrigins: []string{"*"},
			AllowMethods: []string{"GET", "POST", "OPTIONS"},
			AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
			MaxAge:       12 * time.Hour,
		}),
	)

	router.Static("/static", staticRoot)
	router.StaticFile("/", filepath.Join(staticRoot, "index.html"))
	router.StaticFile("/styles.css", filepath.Join(staticRoot, "styles.css"))
	router.StaticFile("/app.js", filepath.Join(staticRoot, "app.js"))

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/readyz", s.readyz)

	api := router.Group("/api")
	api.GET("/about", s.about)
	api.POST("/sessions", s.createSession)
	api.GET("/sessions/:id/messages", s.sessionMessages)
	api.POST("/chat", s.chat)

	return router
}

func (s *server) readyz(c *gin.Context) {
	if s.db == nil {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "disabled"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if err := s.db.Ping(ctx); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"db":     "unhealthy: " + err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok", "db": "ok"})
}

func (s *server) about(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":       s.kb.Name,
		"welcome":    s.kb.Welcome,
		"disclaimer": s.kb.Disclaimer,
	})
}

func (s *server) createSession(c *gin.Context) {
	id, turns, err := conversation.Start(c.Request.Context(), s.store, s.kb.Welcome)
	if err != nil {
		s.logger.Error("create session", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{SessionID: id.String(), Messages: turns})
}

func (s *server) sessionMessages(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
		return
	}

	turns, err := s.store.History(c.Request.Context(), id)
	if errors.Is(err, conversation.ErrSessionNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if err != nil {
		s.logger.Error("load history", "session", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
		return
	}
	c.JSON(http.StatusOK, SessionResponse{SessionID: id.String(), Messages: turns})
}

func (s *server) chat(c *gin.Context) {
	var payload ChatRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	ctx := c.Request.Context()
	var sessionID uuid.UUID
	if payload.SessionID == "" {
		id, _, err := conversation.Start(ctx, s.store, s.kb.Welcome)
		if err != nil {
			s.logger.Error("create session", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not start session"})
			return
		}
		sessionID = id
	} else {
		id, err := uuid.Parse(payload.SessionID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}
		if _, err := s.store.History(ctx, id); err != nil {
			if errors.Is(err, conversation.ErrSessionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
				return
			}
			s.logger.Error("load history", "session", id, "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "could not load history"})
			return
		}
		sessionID = id
	}

	reply := s.responder.Reply(ctx, payload.Message)
	s.logger.Debug("reply", "session", sessionID, "source", reply.Source, "phrase", reply.Phrase)

	if err := conversation.Record(ctx, s.store, sessionID, payload.Message, reply.Text); err != nil {
		s.logger.Warn("record turn", "session", sessionID, "error", err)
	}

	c.JSON(http.StatusOK, ChatResponse{
		SessionID: sessionID.String(),
		Reply:     reply.Text,
		Source:    reply.Source,
	})
}

func waitForShutdown(server *http.Server, logger *slog.Logger) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logger.Info("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
	}
}

func limitBodySize(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// detectStaticRoot finds the web/ directory holding the chat page, looking
// in the working directory and up to two parents.
func detectStaticRoot() string {
	startDir, err := os.Getwd()
	if err != nil {
		return "web"
	}

	candidates := []string{
		startDir,
		filepath.Dir(startDir),
		filepath.Dir(filepath.Dir(startDir)),
	}

	for _, dir := range candidates {
		web := filepath.Join(dir, "web")
		if fileExists(filepath.Join(web, "index.html")) {
			return web
		}
	}

	return filepath.Join(startDir, "web")
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
