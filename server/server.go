// Package server exposes the engine over HTTP and websockets: CRUD
// routes for conversations, the semantic query endpoint, and the
// realtime chat socket. Inbound traffic is treated as already
// authenticated and scoped to a conversation id.
package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/parleylabs/recall-go/core"
	"github.com/parleylabs/recall-go/room"
	"github.com/parleylabs/recall-go/search"
	"github.com/parleylabs/recall-go/store"
)

// Server holds the transport's collaborators.
type Server struct {
	hub    *room.Hub
	store  store.Store
	search *search.Service
}

// New builds a Server.
func New(hub *room.Hub, st store.Store, searcher *search.Service) *Server {
	return &Server{hub: hub, store: st, search: searcher}
}

// RegisterRoutes mounts all routes on r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api")
	{
		api.POST("/conversations", s.createConversation)
		api.GET("/conversations", s.listConversations)
		api.GET("/conversations/:id", s.getConversation)
		api.POST("/conversations/:id/end", s.endConversation)
		api.POST("/conversations/:id/messages", s.postMessage)
		api.POST("/query", s.queryPast)
	}
	r.GET("/ws/chat/:id", s.chatSocket)
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (s *Server) createConversation(c *gin.Context) {
	var req createConversationRequest
	// An empty or absent body is fine; the title defaults.
	_ = c.ShouldBindJSON(&req)
	rm, err := s.hub.CreateConversation(c.Request.Context(), req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	conv, err := s.store.GetConversation(c.Request.Context(), rm.ID())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, conv)
}

func (s *Server) listConversations(c *gin.Context) {
	filter := store.ListFilter{
		Status: core.ConversationStatus(c.Query("status")),
	}
	convs, err := s.store.ListConversations(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs, "count": len(convs)})
}

func (s *Server) getConversation(c *gin.Context) {
	id := c.Param("id")
	conv, err := s.store.GetConversation(c.Request.Context(), id)
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	msgs, err := s.store.ListMessages(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversation": conv, "messages": msgs})
}

func (s *Server) endConversation(c *gin.Context) {
	conv, err := s.hub.CloseConversation(c.Request.Context(), c.Param("id"))
	if err != nil {
		status := http.StatusInternalServerError
		var closed *core.ConversationClosedError
		switch {
		case errors.Is(err, core.ErrNotFound):
			status = http.StatusNotFound
		case errors.As(err, &closed):
			status = http.StatusBadRequest
		case errors.Is(err, core.ErrTurnInFlight):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, conv)
}

type postMessageRequest struct {
	Message string `json:"message" binding:"required"`
}

// postMessage is the HTTP fallback for clients without a socket: it
// runs the full turn and returns the assistant's reply.
func (s *Server) postMessage(c *gin.Context) {
	var req postMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	rm, err := s.hub.Room(c.Request.Context(), c.Param("id"))
	if errors.Is(err, core.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	reply, err := rm.SubmitMessage(c.Request.Context(), req.Message)
	if err != nil {
		status := http.StatusInternalServerError
		var closed *core.ConversationClosedError
		switch {
		case core.IsValidation(err):
			status = http.StatusBadRequest
		case errors.As(err, &closed):
			status = http.StatusBadRequest
		case errors.Is(err, core.ErrTurnInFlight):
			status = http.StatusConflict
		}
		c.JSON(status, gin.H{"error": err.Error(), "partial": reply})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": reply, "timestamp": time.Now().UTC()})
}

type queryRequest struct {
	Query         string   `json:"query"`
	TopK          int      `json:"top_k"`
	MinSimilarity *float64 `json:"min_similarity"`
	DateFrom      string   `json:"date_from"`
	DateTo        string   `json:"date_to"`
}

func (s *Server) queryPast(c *gin.Context) {
	var req queryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	opts := search.Options{TopK: req.TopK, MinSimilarity: req.MinSimilarity}
	if req.DateFrom != "" {
		t, err := time.Parse("2006-01-02", req.DateFrom)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_from"})
			return
		}
		opts.From = &t
	}
	if req.DateTo != "" {
		t, err := time.Parse("2006-01-02", req.DateTo)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date_to"})
			return
		}
		// Inclusive end of day.
		t = t.Add(24*time.Hour - time.Nanosecond)
		opts.To = &t
	}

	results, err := s.search.Search(c.Request.Context(), req.Query, opts)
	if err != nil {
		if core.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"query": req.Query, "results": results, "count": len(results)})
}
