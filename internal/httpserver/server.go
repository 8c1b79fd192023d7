package httpserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/sendwren/wren/internal/command"
	"github.com/sendwren/wren/internal/model"
)

// Server exposes the merged session state and the command surface over HTTP.
type Server struct {
	addr      string
	view      model.StatusReader
	commands  model.CommandAPI
	server    *http.Server
	ctx       context.Context
	cancel    context.CancelFunc
	startTime time.Time
}

// NewServer creates a new HTTP API server.
func NewServer(addr string, view model.StatusReader, commands model.CommandAPI) *Server {
	if addr == "" {
		addr = "0.0.0.0:3000"
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:     addr,
		view:     view,
		commands: commands,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start begins serving HTTP requests.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/api/health", s.handleHealth)
	r.GET("/api/accounts", s.handleAccounts)
	r.GET("/api/accounts/:id", s.handleAccount)
	r.POST("/api/accounts", s.handleConnect)
	r.POST("/api/accounts/:id/disconnect", s.handleDisconnect)
	r.POST("/api/accounts/:id/reconnect", s.handleReconnect)
	r.DELETE("/api/accounts/:id", s.handleDelete)
	r.DELETE("/api/accounts/:id/pairing", s.handleDismissPairing)
	r.GET("/api/notifications", s.handleNotifications)
	r.DELETE("/api/notifications/:id", s.handleDismissNotification)
	r.GET("/api/campaigns", s.handleCampaigns)
	r.POST("/api/campaigns", s.handleStartCampaign)
	r.GET("/api/activity", s.handleActivity)

	s.server = &http.Server{
		Handler:           r,
		BaseContext:       func(_ net.Listener) context.Context { return s.ctx },
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.addr = listener.Addr().String()
	s.startTime = time.Now()

	go s.server.Serve(listener)
	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	s.cancel()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

// Addr returns the active listen address.
func (s *Server) Addr() string { return s.addr }

func (s *Server) handleHealth(c *gin.Context) {
	accounts, err := s.view.Accounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read accounts"})
		return
	}
	active, _ := s.view.ActiveCampaign()

	c.JSON(http.StatusOK, gin.H{
		"status":          "ok",
		"uptime":          time.Since(s.startTime).String(),
		"accounts":        len(accounts),
		"campaign_active": active != nil,
	})
}

func (s *Server) handleAccounts(c *gin.Context) {
	accounts, err := s.view.Accounts()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"accounts": accounts})
}

func (s *Server) handleAccount(c *gin.Context) {
	st, err := s.view.AccountStatus(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleConnect(c *gin.Context) {
	var req struct {
		Name string `json:"name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body or missing name field"})
		return
	}

	accountID, err := s.commands.Connect(c.Request.Context(), req.Name)
	if err != nil {
		s.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"account_id": accountID})
}

func (s *Server) handleDisconnect(c *gin.Context) {
	if err := s.commands.Disconnect(c.Request.Context(), c.Param("id")); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleReconnect(c *gin.Context) {
	if err := s.commands.Reconnect(c.Request.Context(), c.Param("id")); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusAccepted)
}

func (s *Server) handleDelete(c *gin.Context) {
	if err := s.commands.Delete(c.Request.Context(), c.Param("id")); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleDismissPairing(c *gin.Context) {
	if err := s.commands.DismissPairing(c.Param("id")); err != nil {
		s.commandError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) handleNotifications(c *gin.Context) {
	notes, err := s.view.Notifications()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"notifications": notes})
}

func (s *Server) handleDismissNotification(c *gin.Context) {
	s.commands.DismissNotification(c.Param("id"))
	c.Status(http.StatusNoContent)
}

func (s *Server) handleCampaigns(c *gin.Context) {
	active, _ := s.view.ActiveCampaign()
	history, err := s.view.CampaignHistory()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"active": active, "history": history})
}

func (s *Server) handleStartCampaign(c *gin.Context) {
	var req model.CampaignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}

	campaignID, err := s.commands.StartCampaign(c.Request.Context(), req)
	if err != nil {
		s.commandError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"campaign_id": campaignID})
}

func (s *Server) handleActivity(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	activity, err := s.view.RecentActivity(limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"activity": activity})
}

// commandError maps issuer errors to HTTP statuses: local precondition
// violations are conflicts, unknown accounts are 404, everything else is a
// backend-side failure.
func (s *Server) commandError(c *gin.Context, err error) {
	var pe *command.PreconditionError
	switch {
	case errors.As(err, &pe):
		c.JSON(http.StatusConflict, gin.H{"error": pe.Error()})
	case errors.Is(err, command.ErrUnknownAccount):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	}
}
