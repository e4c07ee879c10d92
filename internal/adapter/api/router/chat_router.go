package router

import (
	"github.com/labstack/echo/v4"

	"agrolink/internal/adapter/api/handler"
	"agrolink/internal/adapter/api/middleware"
)

// SetupChatRouter sets up all chat REST routes (excluding WebSocket).
func SetupChatRouter(e *echo.Echo, authMiddleware *middleware.AuthMiddleware) {
	chatHandler := handler.GetChatHandler()

	chatGroup := e.Group("/v1/chat")
	chatGroup.Use(authMiddleware.Authenticate)

	chatGroup.GET("/conversations", chatHandler.GetConversations)        // GET /v1/chat/conversations - inbox
	chatGroup.GET("/history/:recipientId", chatHandler.GetHistory)       // GET /v1/chat/history/:recipientId - thread + ack
	chatGroup.POST("/send", chatHandler.SendMessage)                     // POST /v1/chat/send - text message
	chatGroup.POST("/quotation", chatHandler.SendQuotation)              // POST /v1/chat/quotation - quotation message
	chatGroup.PATCH("/mark-read/:conversationId", chatHandler.MarkAsRead) // PATCH /v1/chat/mark-read/:conversationId
}
