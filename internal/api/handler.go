// Package api exposes the monitor's HTTP surface: on-demand batch checks,
// listener lifecycle management and Prometheus metrics.
package api

import (
	"context"
	"net/http"
	"time"

	"challenge-monitor/internal/dispatch"
	"challenge-monitor/internal/monitor"
	"challenge-monitor/pkg/db"

	"github.com/gin-gonic/gin"
)

// ChallengeStore is the slice of the account store the HTTP layer needs.
type ChallengeStore interface {
	InsertChallenge(ctx context.Context, c db.Challenge) error
	GetByAccountID(ctx context.Context, accountID string) (db.Challenge, error)
	ListInProgress(ctx context.Context, accountType string) ([]db.Challenge, error)
}

// BatchRunner evaluates a set of challenge rows in one pass.
type BatchRunner interface {
	RunBatch(ctx context.Context, chs []db.Challenge) []dispatch.Outcome
}

// ListenerRegistry manages per-account push subscriptions.
type ListenerRegistry interface {
	Register(ctx context.Context, accountID string) error
	Deregister(accountID string)
	Active() []string
}

// Server wires HTTP endpoints around the dispatcher and listener registry.
type Server struct {
	Router   *gin.Engine
	Store    ChallengeStore
	Batch    BatchRunner
	Registry ListenerRegistry
}

func NewServer(store ChallengeStore, batch BatchRunner, registry ListenerRegistry) *Server {
	r := gin.New()

	// Middleware stack (order matters!)
	r.Use(gin.Recovery())        // Panic recovery (first)
	r.Use(RequestIDMiddleware()) // Request ID tracking
	r.Use(RequestLogger())       // Request logging (after ID is set)
	r.Use(RateLimitMiddleware()) // Rate limiting
	r.Use(TimeoutMiddleware(60 * time.Second))
	r.Use(CORSMiddleware()) // CORS (last before routes)

	s := &Server{
		Router:   r,
		Store:    store,
		Batch:    batch,
		Registry: registry,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.Router.GET("/health", s.health)
	s.Router.GET("/metrics", gin.WrapH(monitor.Handler()))

	api := s.Router.Group("/api")
	{
		api.GET("/accounts/check", s.checkAccounts)

		api.POST("/challenges", s.createChallenge)
		api.GET("/challenges/:accountId", s.getChallenge)

		api.GET("/listeners", s.listListeners)
		api.POST("/listeners/:accountId", s.startListener)
		api.DELETE("/listeners/:accountId", s.stopListener)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
