package handler

import (
	"net/http"
	"strconv"

	"campus-rag-go/internal/middleware"
	"campus-rag-go/internal/model"
	"campus-rag-go/internal/service"
	"campus-rag-go/pkg/log"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// streamDoneMarker tells the WebSocket client the current answer is complete.
const streamDoneMarker = "[DONE]"

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Token auth happens in the middleware; origins are not restricted here.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatHandler serves question answering and conversation history.
type ChatHandler struct {
	chatService service.ChatService
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chatService service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

// Ask answers one question synchronously.
func (h *ChatHandler) Ask(c *gin.Context) {
	var req model.AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question is required"})
		return
	}

	claims := middleware.CurrentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
		return
	}

	resp, err := h.chatService.Ask(c.Request.Context(), claims.UserID, req.Question)
	if err != nil {
		log.Error("Ask: failed to answer question", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate answer"})
		return
	}

	c.JSON(http.StatusOK, resp)
}

// History returns the caller's recent exchanges, newest first.
func (h *ChatHandler) History(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		var err error
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
	}

	entries, err := h.chatService.History(c.Request.Context(), claims.UserID, limit)
	if err != nil {
		log.Error("History: failed to load conversation history", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load history"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"history": entries})
}

// Stream upgrades to WebSocket and answers each incoming text message as a
// question, streaming fragments back and terminating each answer with the
// done marker.
func (h *ChatHandler) Stream(c *gin.Context) {
	claims := middleware.CurrentClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Warnf("Stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		messageType, payload, err := conn.ReadMessage()
		if err != nil {
			// Normal closure or network drop; either way the session ends.
			return
		}
		if messageType != websocket.TextMessage || len(payload) == 0 {
			continue
		}

		question := string(payload)
		if err := h.chatService.AskStream(c.Request.Context(), claims.UserID, question, conn); err != nil {
			log.Error("Stream: failed to stream answer", err)
			if writeErr := conn.WriteMessage(websocket.TextMessage, []byte("failed to generate answer")); writeErr != nil {
				return
			}
		}
		if err := conn.WriteMessage(websocket.TextMessage, []byte(streamDoneMarker)); err != nil {
			return
		}
	}
}
