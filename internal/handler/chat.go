package handler

import (
	"errors"
	"net/http"

	"kingk/internal/assistant"

	"github.com/gin-gonic/gin"
)

type chatRequest struct {
	Message string `json:"message"`
}

// GetChat godoc
// @Summary      Assistant history
// @Description  Returns the conversation, or the greeting when there is none
// @Tags         chat
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  map[string]interface{}
// @Router       /api/chat [get]
func (h *Handler) GetChat(c *gin.Context) {
	if h.chats == nil {
		unavailable(c, "assistant")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.get-chat")
	defer span.End()

	conv := h.chats.For(ctx, userID(c))
	c.JSON(http.StatusOK, gin.H{"messages": conv.Messages(), "busy": conv.Busy()})
}

// PostChat godoc
// @Summary      Send a message to the assistant
// @Tags         chat
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        body  body  chatRequest  true  "Message"
// @Success      200  {object}  domain.ChatMessage
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Failure      503  {object}  map[string]string
// @Router       /api/chat [post]
func (h *Handler) PostChat(c *gin.Context) {
	if h.chats == nil {
		unavailable(c, "assistant")
		return
	}
	ctx, span := h.tracer.Start(c.Request.Context(), "handler.post-chat")
	defer span.End()

	var body chatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message is required"})
		return
	}

	reply, err := h.chats.For(ctx, userID(c)).Send(ctx, body.Message)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, reply)
	case errors.Is(err, assistant.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, assistant.ErrSendInFlight):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, assistant.ErrLinkSevered):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": SeveredMessage})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
