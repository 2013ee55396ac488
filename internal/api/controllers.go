package api

import (
	"errors"
	"net/http"

	"challenge-monitor/internal/dispatch"
	"challenge-monitor/pkg/db"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

var accountTypes = []string{db.AccountTypeOnePhase, db.AccountTypeTwoPhase, db.AccountTypeFunded}

func validAccountType(t string) bool {
	for _, known := range accountTypes {
		if t == known {
			return true
		}
	}
	return false
}

// checkAccounts runs an evaluation pass over every in-progress challenge.
// An optional ?type= query restricts the pass to one account type.
func (s *Server) checkAccounts(c *gin.Context) {
	accountType := c.Query("type")
	if accountType != "" && !validAccountType(accountType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown account type: " + accountType})
		return
	}

	chs, err := s.Store.ListInProgress(c.Request.Context(), accountType)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load challenges"})
		return
	}

	outcomes := s.Batch.RunBatch(c.Request.Context(), chs)
	if outcomes == nil {
		outcomes = []dispatch.Outcome{}
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(outcomes),
		"outcomes": outcomes,
	})
}

type createChallengeRequest struct {
	ID             string  `json:"id"`
	AccountID      string  `json:"accountId"`
	ChallengeType  string  `json:"challengeType" binding:"required"`
	AccountType    string  `json:"accountType" binding:"required"`
	InitialBalance float64 `json:"initialBalance" binding:"required,gt=0"`
}

func (s *Server) createChallenge(c *gin.Context) {
	var req createChallengeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !validAccountType(req.AccountType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown account type: " + req.AccountType})
		return
	}
	if req.ID == "" {
		req.ID = uuid.NewString()
	}

	ch := db.Challenge{
		ID:              req.ID,
		AccountID:       req.AccountID,
		ChallengeType:   req.ChallengeType,
		AccountType:     req.AccountType,
		Status:          db.StatusInProgress,
		InitialBalance:  req.InitialBalance,
		StartingBalance: req.InitialBalance,
	}
	if err := s.Store.InsertChallenge(c.Request.Context(), ch); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create challenge"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"id": ch.ID, "status": ch.Status})
}

func (s *Server) getChallenge(c *gin.Context) {
	accountID := c.Param("accountId")

	ch, err := s.Store.GetByAccountID(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, db.ErrChallengeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no challenge for account " + accountID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load challenge"})
		return
	}

	c.JSON(http.StatusOK, dispatch.SnapshotFrom(ch))
}

func (s *Server) listListeners(c *gin.Context) {
	active := s.Registry.Active()
	c.JSON(http.StatusOK, gin.H{
		"count":    len(active),
		"accounts": active,
	})
}

func (s *Server) startListener(c *gin.Context) {
	accountID := c.Param("accountId")

	// Only accounts with an in-progress challenge may be subscribed.
	if _, err := s.Store.GetByAccountID(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, db.ErrChallengeNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "no challenge for account " + accountID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load challenge"})
		return
	}

	if err := s.Registry.Register(c.Request.Context(), accountID); err != nil {
		if errors.Is(err, dispatch.ErrAlreadyListening) {
			c.JSON(http.StatusConflict, gin.H{"error": "listener already running for " + accountID})
			return
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": "failed to open equity stream: " + err.Error()})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"account": accountID, "listening": true})
}

func (s *Server) stopListener(c *gin.Context) {
	accountID := c.Param("accountId")
	s.Registry.Deregister(accountID)
	c.JSON(http.StatusOK, gin.H{"account": accountID, "listening": false})
}
